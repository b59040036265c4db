package gateway

import "github.com/go-monolith/mono/pkg/types"

type nopLogger struct{}

// NopLogger returns a types.Logger that discards everything.
func NopLogger() types.Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...any)             {}
func (nopLogger) Info(string, ...any)              {}
func (nopLogger) Warn(string, ...any)              {}
func (nopLogger) Error(string, ...any)             {}
func (n nopLogger) With(...any) types.Logger       { return n }
func (n nopLogger) WithError(error) types.Logger   { return n }
func (n nopLogger) WithModule(string) types.Logger { return n }
