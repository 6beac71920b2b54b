package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// WhisperCppTranscriber uses whisper.cpp with a local ggml model file
type WhisperCppTranscriber struct {
	modelPath   string
	whisperPath string
	ffmpegPath  string
	threads     string
}

// NewWhisperCppTranscriber creates a whisper.cpp based transcriber
func NewWhisperCppTranscriber(cfg TranscriberConfig) (*WhisperCppTranscriber, error) {
	// Validate model file exists
	if _, err := os.Stat(cfg.Model); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("whisper model file not found: %s", cfg.Model)
		}
		return nil, fmt.Errorf("whisper model file not accessible: %w", err)
	}

	executable := cfg.Executable
	if executable == "" {
		executable = "whisper-cli"
	}
	whisperPath, err := exec.LookPath(executable)
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp executable not found in PATH: %w", err)
	}

	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg executable not found in PATH: %w", err)
	}

	threads := strconv.Itoa(runtime.NumCPU())
	if cfg.NumThreads > 0 {
		threads = strconv.Itoa(cfg.NumThreads)
	}

	logrus.WithFields(logrus.Fields{
		"whisper": whisperPath,
		"ffmpeg":  ffmpegPath,
		"model":   cfg.Model,
		"threads": threads,
	}).Info("whisper.cpp transcriber initialized")

	return &WhisperCppTranscriber{
		modelPath:   cfg.Model,
		whisperPath: whisperPath,
		ffmpegPath:  ffmpegPath,
		threads:     threads,
	}, nil
}

// Transcribe decodes the file to 16kHz mono WAV with ffmpeg and pipes it into whisper.cpp
func (wt *WhisperCppTranscriber) Transcribe(ctx context.Context, audioPath string, opts TranscriptionOptions) (*TranscriptResult, error) {
	startTime := time.Now()

	// #nosec G204 - ffmpegPath is validated at initialization
	cmd := exec.CommandContext(ctx, wt.ffmpegPath,
		"-nostdin",
		"-i", audioPath,
		"-ar", "16000",
		"-ac", "1",
		"-f", "wav",
		"-",
	)

	var wavBuf bytes.Buffer
	var ffmpegErr bytes.Buffer
	cmd.Stdout = &wavBuf
	cmd.Stderr = &ffmpegErr

	if err := cmd.Run(); err != nil {
		logrus.WithFields(logrus.Fields{
			"error":  err,
			"stderr": ffmpegErr.String(),
		}).Error("Failed to convert audio to WAV")
		return nil, fmt.Errorf("audio conversion failed: %w", err)
	}

	lang, ok := opts.ExplicitLanguage()
	if !ok {
		lang = AutoLanguage
	}

	// #nosec G204 - whisperPath is validated at initialization
	whisperCmd := exec.CommandContext(ctx, wt.whisperPath, wt.buildArgs(lang)...)
	whisperCmd.Stdin = &wavBuf

	var outBuf, errBuf bytes.Buffer
	whisperCmd.Stdout = &outBuf
	whisperCmd.Stderr = &errBuf
	whisperCmd.Env = os.Environ()

	if err := whisperCmd.Run(); err != nil {
		logrus.WithFields(logrus.Fields{
			"error":  err,
			"stderr": errBuf.String(),
		}).Error("whisper.cpp transcription failed")
		return nil, fmt.Errorf("whisper.cpp transcription failed: %w: %s", err, strings.TrimSpace(errBuf.String()))
	}

	result := &TranscriptResult{
		Text:     joinSegments(outBuf.String()),
		Language: lang,
		Duration: time.Since(startTime),
	}

	logrus.WithFields(logrus.Fields{
		"transcript_length": len(result.Text),
		"processing_time":   result.Duration,
	}).Info("WhisperCppTranscriber: Transcription complete")

	return result, nil
}

func (wt *WhisperCppTranscriber) buildArgs(lang string) []string {
	return []string{
		"-m", wt.modelPath,
		"-l", lang,
		"-t", wt.threads,
		"--no-timestamps",
		"-f", "-",
	}
}

// joinSegments turns whisper.cpp's one-segment-per-line output into a single line
func joinSegments(out string) string {
	segments := make([]string, 0)
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			segments = append(segments, line)
		}
	}
	return strings.Join(segments, " ")
}

func (wt *WhisperCppTranscriber) IsReady() bool {
	return wt.whisperPath != "" && wt.ffmpegPath != ""
}

func (wt *WhisperCppTranscriber) Close() error {
	return nil
}
