package stubserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// FieldError is one entry of a 422 validation response.
type FieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// ValidationError is rendered as 422 with a detail list.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		loc := make([]string, 0, len(f.Loc))
		for _, part := range f.Loc {
			loc = append(loc, fmt.Sprint(part))
		}
		parts = append(parts, strings.Join(loc, ".")+": "+f.Msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func missingField(loc ...any) FieldError {
	return FieldError{Loc: loc, Msg: "field required", Type: "value_error.missing"}
}

func invalidField(msg string, loc ...any) FieldError {
	return FieldError{Loc: loc, Msg: msg, Type: "type_error"}
}

// detail returns an error rendered as {"detail": message}.
func detail(status int, message string) error {
	return fiber.NewError(status, message)
}

// bindJSON decodes the request body into dst after checking that every required field is present.
func bindJSON(c *fiber.Ctx, dst any, required ...string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &fields); err != nil {
		return &ValidationError{Fields: []FieldError{{
			Loc: []any{"body"}, Msg: "value is not a valid dict", Type: "type_error.dict",
		}}}
	}

	var problems []FieldError
	for _, name := range required {
		if raw, ok := fields[name]; !ok || string(raw) == "null" {
			problems = append(problems, missingField("body", name))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Fields: problems}
	}

	if err := json.Unmarshal(c.Body(), dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &ValidationError{Fields: []FieldError{invalidField("invalid value", "body", typeErr.Field)}}
		}
		return &ValidationError{Fields: []FieldError{invalidField(err.Error(), "body")}}
	}
	return nil
}

// pathID reads an integer path parameter.
func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := c.ParamsInt(name)
	if err != nil {
		return 0, &ValidationError{Fields: []FieldError{invalidField("value is not a valid integer", "path", name)}}
	}
	return int64(id), nil
}

// errorHandler renders errors the way the platform backend does.
func (m *Module) errorHandler(c *fiber.Ctx, err error) error {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"detail": validation.Fields})
	}

	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	if code >= fiber.StatusInternalServerError {
		m.logger.Error("HTTP error", "code", code, "path", c.Path(), "requestID", requestID(c), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"detail": message})
}
