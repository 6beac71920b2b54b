package app

import (
	"fmt"
	"strings"

	"github.com/fankserver/transcribe-web/internal/config"
	"github.com/fankserver/transcribe-web/internal/feedback"
	"github.com/fankserver/transcribe-web/internal/jobs"
	"github.com/fankserver/transcribe-web/pkg/diarizer"
	"github.com/fankserver/transcribe-web/pkg/transcriber"
	"github.com/sirupsen/logrus"
)

// Transcriber backends selectable with TRANSCRIBER_TYPE
const (
	TranscriberWhisper       = "whisper"
	TranscriberFasterWhisper = "faster-whisper"
	TranscriberWhisperCpp    = "whisper-cpp"
	TranscriberMock          = "mock"
)

const eventBufferSize = 256

// App holds the job components shared by the web and MCP surfaces
type App struct {
	Store    *jobs.Store
	Worker   *jobs.Worker
	Launcher *jobs.Launcher
	Reporter *jobs.Reporter
	Events   *feedback.EventBus

	transcriber transcriber.Transcriber
	diarizer    diarizer.Diarizer
	unsubscribe func()
}

// New creates the collaborators selected by cfg and wires the job components around them
func New(cfg *config.Config) (*App, error) {
	trans, err := NewTranscriber(cfg)
	if err != nil {
		return nil, err
	}

	var diar diarizer.Diarizer
	if cfg.DiarizationEnabled() {
		pyannote, err := diarizer.NewPyannoteDiarizer(cfg.Transcriber.PythonPath, cfg.Diarizer.Pipeline, cfg.Diarizer.Token)
		if err != nil {
			_ = trans.Close()
			return nil, fmt.Errorf("failed to initialize diarizer: %w", err)
		}
		diar = pyannote
		logrus.WithField("pipeline", cfg.Diarizer.Pipeline).Info("Speaker diarization enabled")
	} else {
		logrus.Info("HF_TOKEN not set, speaker diarization disabled")
	}

	return Wire(cfg, trans, diar), nil
}

// Wire builds the job components around already constructed collaborators.
// diar may be nil.
func Wire(cfg *config.Config, trans transcriber.Transcriber, diar diarizer.Diarizer) *App {
	a := &App{
		Store:       jobs.NewStore(),
		Events:      feedback.NewEventBus(eventBufferSize),
		transcriber: trans,
		diarizer:    diar,
	}
	a.Worker = jobs.NewWorker(a.Store, trans, diar, cfg.Service.ResultDir, a.Events)
	a.Launcher = jobs.NewLauncher(a.Store, a.Worker, cfg.Service.UploadDir, a.Events)
	a.Reporter = jobs.NewReporter(a.Store, cfg.Service.ResultDir)
	a.unsubscribe = a.Events.SubscribeAll(logEvent)
	return a
}

// NewTranscriber creates the backend named by cfg.Transcriber.Type
func NewTranscriber(cfg *config.Config) (transcriber.Transcriber, error) {
	tc := cfg.Transcriber
	backendCfg := transcriber.TranscriberConfig{
		Model:       tc.Model,
		Executable:  tc.Executable,
		Device:      tc.Device,
		ComputeType: tc.ComputeType,
		NumThreads:  tc.NumThreads,
	}

	switch strings.ToLower(tc.Type) {
	case TranscriberWhisper:
		t, err := transcriber.NewWhisperTranscriber(backendCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize whisper transcriber: %w", err)
		}
		logrus.WithField("model", tc.Model).Info("Using whisper transcriber")
		return t, nil
	case TranscriberFasterWhisper:
		if backendCfg.Executable == "" {
			backendCfg.Executable = tc.PythonPath
		}
		t, err := transcriber.NewFasterWhisperTranscriber(backendCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize faster-whisper transcriber: %w", err)
		}
		logrus.WithField("model", tc.Model).Info("Using faster-whisper transcriber")
		return t, nil
	case TranscriberWhisperCpp:
		t, err := transcriber.NewWhisperCppTranscriber(backendCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize whisper.cpp transcriber: %w", err)
		}
		logrus.WithField("model", tc.Model).Info("Using whisper.cpp transcriber")
		return t, nil
	case TranscriberMock:
		logrus.Info("Using mock transcriber")
		return &transcriber.MockTranscriber{}, nil
	default:
		return nil, fmt.Errorf("unknown transcriber type %q", tc.Type)
	}
}

// Close stops the event feed and releases the collaborators
func (a *App) Close() {
	a.unsubscribe()
	a.Events.Stop()

	if err := a.transcriber.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close transcriber")
	}
	if a.diarizer != nil {
		if err := a.diarizer.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close diarizer")
		}
	}
}

func logEvent(event feedback.Event) {
	logrus.WithFields(logrus.Fields{
		"event":  event.Type,
		"job_id": event.JobID,
		"data":   fmt.Sprintf("%+v", event.Data),
	}).Debug("Job event")
}
