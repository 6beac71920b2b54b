package jobs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fankserver/transcribe-web/internal/feedback"
	"github.com/fankserver/transcribe-web/internal/metrics"
	"github.com/fankserver/transcribe-web/pkg/transcriber"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Validation messages shown inline on the upload form
const (
	MsgNoFilePart     = "No file part"
	MsgNoSelectedFile = "No selected file"
	MsgFileNotAllowed = "File type not allowed"
)

// ValidationError is returned when an upload is rejected before a job is created
type ValidationError struct {
	Message string
	Reason  string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(reason, message string) *ValidationError {
	metrics.IncreaseJobsRejectedMetric(reason)
	return &ValidationError{Message: message, Reason: reason}
}

// Upload is a file received from a client
type Upload struct {
	Filename string
	Body     io.Reader
}

// Runner executes a job; *Worker is the production implementation
type Runner interface {
	Run(ctx context.Context, jobID, filePath, language string)
}

// Launcher accepts uploads and starts one worker goroutine per job
type Launcher struct {
	store     *Store
	runner    Runner
	uploadDir string
	events    *feedback.EventBus
	newID     func() string
	logger    *logrus.Entry
}

// NewLauncher creates a launcher saving uploads into uploadDir
func NewLauncher(store *Store, runner Runner, uploadDir string, events *feedback.EventBus) *Launcher {
	return &Launcher{
		store:     store,
		runner:    runner,
		uploadDir: uploadDir,
		events:    events,
		newID:     func() string { return uuid.New().String() },
		logger:    logrus.WithField("component", "launcher"),
	}
}

// Submit validates and saves the upload, registers a job and starts its
// worker. It returns without waiting for the transcription.
func (l *Launcher) Submit(ctx context.Context, upload *Upload, language string) (string, error) {
	if upload == nil || upload.Body == nil {
		return "", newValidationError("missing_file", MsgNoFilePart)
	}
	if upload.Filename == "" {
		return "", newValidationError("empty_filename", MsgNoSelectedFile)
	}
	if !AllowedFile(upload.Filename) {
		return "", newValidationError("extension", MsgFileNotAllowed)
	}

	jobID := l.newID()

	// names without any ASCII stem (e.g. "会议.mp3") are saved under the job id
	filename := SecureFilename(upload.Filename)
	if !AllowedFile(filename) {
		filename = jobID + "." + fileExtension(upload.Filename)
	}

	if language == "" {
		language = transcriber.AutoLanguage
	}

	filePath, err := l.save(filename, upload.Body)
	if err != nil {
		return "", err
	}

	l.store.Register(jobID)
	metrics.IncreaseJobsSubmittedMetric()
	l.events.PublishJobQueued(jobID, feedback.JobQueuedData{
		Filename: filename,
		Language: language,
	})

	l.logger.WithFields(logrus.Fields{
		"job_id":   jobID,
		"file":     filename,
		"language": language,
	}).Info("Transcription job submitted")

	// the job outlives the request that submitted it
	go l.runner.Run(context.WithoutCancel(ctx), jobID, filePath, language)

	return jobID, nil
}

// SubmitFile submits a file that already exists on local disk
func (l *Launcher) SubmitFile(ctx context.Context, path, language string) (string, error) {
	if path == "" {
		return "", newValidationError("missing_file", MsgNoFilePart)
	}
	if !AllowedFile(path) {
		return "", newValidationError("extension", MsgFileNotAllowed)
	}

	// #nosec G304 - local files are only submitted by the operator
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	return l.Submit(ctx, &Upload{Filename: filepath.Base(path), Body: f}, language)
}

func (l *Launcher) save(filename string, body io.Reader) (string, error) {
	// #nosec G301 - Upload directory is shared with the transcription backends
	if err := os.MkdirAll(l.uploadDir, 0750); err != nil {
		return "", fmt.Errorf("error creating upload directory: %w", err)
	}

	filePath := filepath.Join(l.uploadDir, filename)
	// #nosec G304 - filename is sanitized
	f, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("error creating upload file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("error saving upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("error saving upload: %w", err)
	}
	return filePath, nil
}
