package transcriber

import (
	"context"
	"strings"
	"time"
)

// AutoLanguage lets the backend detect the spoken language itself
const AutoLanguage = "auto"

// Transcriber is the unified interface for all transcription backends
type Transcriber interface {
	// Transcribe converts a whole audio/video file into text
	Transcribe(ctx context.Context, audioPath string, opts TranscriptionOptions) (*TranscriptResult, error)

	// Check if the transcriber is ready to process
	IsReady() bool

	// Close releases resources
	Close() error
}

// TranscriptionOptions provides options for a single transcription
type TranscriptionOptions struct {
	// Language hint (e.g., "en", "de", "auto")
	Language string
}

// ExplicitLanguage returns the language constraint to pass to the backend.
// The second value is false when the backend should auto-detect.
func (o TranscriptionOptions) ExplicitLanguage() (string, bool) {
	lang := strings.TrimSpace(o.Language)
	if lang == "" || strings.EqualFold(lang, AutoLanguage) {
		return "", false
	}
	return lang, true
}

// TranscriptResult contains the transcription result with metadata
type TranscriptResult struct {
	// Full-document text
	Text string

	// Detected or specified language
	Language string

	// Processing duration
	Duration time.Duration
}

// TranscriberConfig holds common configuration for transcribers
type TranscriberConfig struct {
	// Model name (whisper, faster-whisper) or model file path (whisper.cpp)
	Model string

	// Executable used to run the backend (whisper CLI, python interpreter, whisper.cpp binary)
	Executable string

	// Device for faster-whisper: "auto", "cpu", "cuda"
	Device string

	// Compute type for faster-whisper: "float16", "int8_float16", "int8"
	ComputeType string

	// Number of threads for CPU processing
	NumThreads int
}

// TranscribeText is a helper that returns only the text of a transcription
func TranscribeText(ctx context.Context, t Transcriber, audioPath string, opts TranscriptionOptions) (string, error) {
	result, err := t.Transcribe(ctx, audioPath, opts)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}
