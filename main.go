package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/example/sportsedu-client/gateway"
	"github.com/example/sportsedu-client/modules/chat"
	"github.com/example/sportsedu-client/modules/console"
	"github.com/example/sportsedu-client/modules/session"
	"github.com/example/sportsedu-client/modules/stubserver"
	"github.com/example/sportsedu-client/modules/view"
	"github.com/example/sportsedu-client/platform"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}
	cfg := loadConfig()

	log.Println("=== SportsEdu Client ===")
	log.Printf("API URL: %s", cfg.APIURL)
	log.Printf("WebSocket URL: %s", cfg.WebSocketURL)
	log.Printf("Storage Path: %s", cfg.StoragePath)

	logLevel := mono.LogLevelError
	if cfg.verbose() {
		logLevel = mono.LogLevelInfo
	}

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(logLevel),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(cfg.StoragePath),
		mono.WithNATSPort(cfg.NATSPort),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// The access token survives restarts in this bucket.
	storagePlugin, err := fsjetstream.New(fsjetstream.Config{
		Buckets: []fsjetstream.BucketConfig{
			{
				Name:        session.BucketName,
				Description: "Client session storage",
				MaxBytes:    1024 * 1024,
				Storage:     fsjetstream.FileStorage,
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create storage plugin: %v", err)
	}
	if err := app.RegisterPlugin(storagePlugin, "storage"); err != nil {
		log.Fatalf("Failed to register storage plugin: %v", err)
	}

	logger := app.Logger()

	sessionModule := session.NewModule(logger)
	sessions := sessionModule.Manager()

	api := gateway.NewClient(cfg.APIURL, sessions,
		gateway.WithTimeout(cfg.HTTPTimeout),
		gateway.WithLogger(logger.WithModule("gateway")),
	)
	backend := platform.NewService(api)

	chatModule := chat.NewModule(chat.Config{
		WebSocketURL: cfg.WebSocketURL,
		QueueSize:    cfg.ChatQueueSize,
		DialTimeout:  cfg.HTTPTimeout,
	}, backend, logger)
	viewModule := view.NewModule(sessions, backend, view.FromChatModule(chatModule), logger)
	consoleModule := console.NewModule(viewModule.Controller(), os.Stdin, os.Stdout, logger)

	// Order: the optional local backend first, then session, chat, view and the console on top.
	if cfg.DevBackend {
		stubCfg := stubserver.DefaultConfig()
		stubCfg.Addr = fmt.Sprintf("127.0.0.1:%d", cfg.DevBackendPort)
		stubCfg.DSN = cfg.DevBackendDB
		stubCfg.JWTSecret = cfg.DevJWTSecret
		stubCfg.SeedDemo = cfg.DevSeed
		app.Register(stubserver.NewModule(stubCfg, logger))
		log.Printf("Local backend enabled on %s", stubCfg.Addr)
		if cfg.DevSeed {
			log.Printf("Demo accounts: %s/%s (admin), %s/%s",
				stubserver.DemoAdminUsername, stubserver.DemoAdminPassword,
				stubserver.DemoStudentUsername, stubserver.DemoStudentPassword)
		}
	}
	app.Register(sessionModule)
	app.Register(chatModule)
	app.Register(viewModule)
	app.Register(consoleModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	stop := func(ctx context.Context) error {
		log.Println("Graceful shutdown initiated...")
		return app.Stop(ctx)
	}

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": stop,
		},
	)

	var exitCode int
	select {
	case exitCode = <-wait:
	case <-consoleModule.Done():
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := stop(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
			exitCode = 1
		}
		cancel()
	}
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}
