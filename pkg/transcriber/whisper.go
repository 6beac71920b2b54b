package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultWhisperModel matches the model size the service was tuned for
const DefaultWhisperModel = "small"

// WhisperTranscriber runs the openai-whisper CLI on a whole file
type WhisperTranscriber struct {
	model       string
	whisperPath string
}

// NewWhisperTranscriber creates a whisper CLI based transcriber
func NewWhisperTranscriber(cfg TranscriberConfig) (*WhisperTranscriber, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultWhisperModel
	}
	executable := cfg.Executable
	if executable == "" {
		executable = "whisper"
	}

	whisperPath, err := exec.LookPath(executable)
	if err != nil {
		return nil, fmt.Errorf("whisper executable not found in PATH: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"whisper": whisperPath,
		"model":   model,
	}).Info("Whisper transcriber initialized")

	return &WhisperTranscriber{
		model:       model,
		whisperPath: whisperPath,
	}, nil
}

// Transcribe writes the transcript into a scratch directory and reads it back
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string, opts TranscriptionOptions) (*TranscriptResult, error) {
	startTime := time.Now()

	outDir, err := os.MkdirTemp("", "whisper-out-")
	if err != nil {
		return nil, fmt.Errorf("error creating output directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := wt.buildArgs(audioPath, outDir, opts)

	// #nosec G204 - whisperPath is resolved at initialization, audioPath is a sanitized upload
	cmd := exec.CommandContext(ctx, wt.whisperPath, args...)
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf

	logrus.WithFields(logrus.Fields{
		"file":  filepath.Base(audioPath),
		"model": wt.model,
	}).Debug("WhisperTranscriber: Starting transcription")

	if err := cmd.Run(); err != nil {
		logrus.WithFields(logrus.Fields{
			"error":  err,
			"stderr": errBuf.String(),
		}).Error("Whisper transcription failed")
		return nil, fmt.Errorf("whisper transcription failed: %w: %s", err, strings.TrimSpace(errBuf.String()))
	}

	outFile := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))+".json")
	data, err := os.ReadFile(outFile)
	if err != nil {
		return nil, fmt.Errorf("error reading whisper output: %w", err)
	}

	output, err := parseWhisperOutput(data)
	if err != nil {
		return nil, err
	}

	lang, ok := opts.ExplicitLanguage()
	if !ok {
		lang = AutoLanguage
		if output.Language != "" {
			lang = output.Language
		}
	}

	result := &TranscriptResult{
		Text:     output.Text,
		Language: lang,
		Duration: time.Since(startTime),
	}

	logrus.WithFields(logrus.Fields{
		"transcript_length": len(result.Text),
		"processing_time":   result.Duration,
	}).Info("WhisperTranscriber: Transcription complete")

	return result, nil
}

func (wt *WhisperTranscriber) buildArgs(audioPath, outDir string, opts TranscriptionOptions) []string {
	args := []string{
		audioPath,
		"--model", wt.model,
		"--output_format", "json",
		"--output_dir", outDir,
		"--verbose", "False",
	}
	if lang, ok := opts.ExplicitLanguage(); ok {
		args = append(args, "--language", lang)
	}
	return args
}

// whisperOutput is the part of the CLI's JSON result we use. Text is the
// whole-document transcript; the txt writer would give one line per segment.
type whisperOutput struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func parseWhisperOutput(data []byte) (whisperOutput, error) {
	var output whisperOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return whisperOutput{}, fmt.Errorf("error parsing whisper output: %w", err)
	}
	return output, nil
}

func (wt *WhisperTranscriber) IsReady() bool {
	return wt.whisperPath != ""
}

func (wt *WhisperTranscriber) Close() error {
	return nil
}
