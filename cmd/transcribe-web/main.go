package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fankserver/transcribe-web/internal/app"
	"github.com/fankserver/transcribe-web/internal/config"
	"github.com/fankserver/transcribe-web/internal/mcp"
	"github.com/fankserver/transcribe-web/internal/metrics"
	"github.com/fankserver/transcribe-web/internal/web"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var version = "dev"

var (
	Address         string
	TranscriberType string
	EnableMCP       bool
)

func init() {
	flag.StringVar(&Address, "addr", "", "Listen address (overrides TRANSCRIBE_ADDRESS)")
	flag.StringVar(&TranscriberType, "transcriber", "", "Transcriber type: whisper, faster-whisper, whisper-cpp or mock (overrides TRANSCRIBER_TYPE)")
	flag.BoolVar(&EnableMCP, "mcp", false, "Also serve MCP tools over stdio")
	flag.Parse()

	// Load from environment
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("Error loading .env file, using environment variables")
	}
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

func main() {
	// Configure logrus
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.New()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	setLogLevel(cfg.Service.LogLevel)

	if Address != "" {
		cfg.Service.Address = Address
	}
	if TranscriberType != "" {
		cfg.Transcriber.Type = TranscriberType
	}

	// stdout carries the MCP protocol
	if EnableMCP {
		logrus.SetOutput(os.Stderr)
	}

	if err := cfg.EnsureDirs(); err != nil {
		logrus.WithError(err).Fatal("Failed to create data directories")
	}

	// Set up signal handling with context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer cancel()

	application, err := app.New(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize transcription backend")
	}
	defer application.Close()

	metricMiddleware := metrics.NewMiddleware("transcribe_web")
	metricMiddleware.MustRegister(prometheus.DefaultRegisterer)

	handlers := web.NewHandlers(application.Launcher, application.Reporter, cfg.MaxUploadBytes(), application.Worker.Ready)
	server := web.NewServer(cfg.Service.Address, handlers.Router(metricMiddleware))

	var wg sync.WaitGroup
	if EnableMCP {
		mcpServer := mcp.NewServer(application.Launcher, application.Reporter, application.Store, version)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mcpServer.Run(ctx); err != nil && ctx.Err() == nil {
				logrus.WithError(err).Error("MCP server error")
			}
		}()
		logrus.Info("MCP server started")
	}

	logrus.WithFields(logrus.Fields{
		"address":     cfg.Service.Address,
		"transcriber": cfg.Transcriber.Type,
		"diarization": cfg.DiarizationEnabled(),
	}).Info("Transcribe web is running. Press CTRL-C to exit.")

	if err := server.Run(ctx); err != nil {
		logrus.WithError(err).Error("Web server error")
		cancel()
	}

	wg.Wait()
	logrus.Info("Shutting down gracefully...")
}
