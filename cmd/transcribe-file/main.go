package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fankserver/transcribe-web/internal/app"
	"github.com/fankserver/transcribe-web/internal/config"
	"github.com/fankserver/transcribe-web/internal/jobs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const pollInterval = 500 * time.Millisecond

func main() {
	language := flag.String("language", "auto", "Language code, or auto to detect")
	transcriberType := flag.String("transcriber", "", "Transcriber type (overrides TRANSCRIBER_TYPE)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file> [file...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.WarnLevel)

	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("Error loading .env file, using environment variables")
	}

	cfg, err := config.New()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	if *transcriberType != "" {
		cfg.Transcriber.Type = *transcriberType
	}
	if err := cfg.EnsureDirs(); err != nil {
		logrus.WithError(err).Fatal("Failed to create data directories")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize transcription backend")
	}
	defer application.Close()

	failed := 0
	for _, path := range flag.Args() {
		if err := transcribe(ctx, application, path, *language); err != nil {
			fmt.Fprintf(os.Stderr, "❌ %s: %v\n", path, err)
			failed++
		}
	}

	if failed > 0 {
		application.Close()
		os.Exit(1)
	}
}

func transcribe(ctx context.Context, application *app.App, path, language string) error {
	jobID, err := application.Launcher.SubmitFile(ctx, path, language)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s: job %s queued\n", path, jobID)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastProgress := -1
	for {
		job := application.Reporter.Poll(jobID)
		if job.Progress != lastProgress {
			fmt.Fprintf(os.Stderr, "%s: %s %d%%\n", path, job.Status, job.Progress)
			lastProgress = job.Progress
		}

		switch job.Status {
		case jobs.StatusDone:
			fmt.Fprintf(os.Stderr, "✅ %s -> %s\n", path, job.ResultFilename)
			fmt.Println(job.Text)
			return nil
		case jobs.StatusError:
			return fmt.Errorf("transcription failed: %s", job.Error)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
