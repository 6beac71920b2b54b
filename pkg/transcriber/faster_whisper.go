package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// FasterWhisperTranscriber uses faster-whisper for transcription
// Provides 4x faster transcription than OpenAI Whisper with prebuilt wheels
type FasterWhisperTranscriber struct {
	modelName   string
	device      string // "auto", "cpu", "cuda"
	computeType string // "float16", "int8_float16", "int8"
	pythonPath  string
}

// FasterWhisperResponse represents the JSON response from faster-whisper
type FasterWhisperResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Error    string `json:"error,omitempty"`
}

// NewFasterWhisperTranscriber creates a faster-whisper based transcriber
func NewFasterWhisperTranscriber(cfg TranscriberConfig) (*FasterWhisperTranscriber, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultWhisperModel
	}

	pythonPath, err := lookupPython(cfg.Executable)
	if err != nil {
		return nil, err
	}

	// Check if faster-whisper is installed
	cmd := exec.Command(pythonPath, "-c", "import faster_whisper")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("faster-whisper not installed. Install with: pip install faster-whisper")
	}

	device := cfg.Device
	if device == "" {
		device = "auto"
	}
	computeType := cfg.ComputeType
	if computeType == "" {
		computeType = "int8"
	}

	logrus.WithFields(logrus.Fields{
		"python":       pythonPath,
		"model":        modelName,
		"device":       device,
		"compute_type": computeType,
	}).Info("FasterWhisper transcriber initialized successfully")

	return &FasterWhisperTranscriber{
		modelName:   modelName,
		device:      device,
		computeType: computeType,
		pythonPath:  pythonPath,
	}, nil
}

// Transcribe runs the embedded helper script against the file
func (ft *FasterWhisperTranscriber) Transcribe(ctx context.Context, audioPath string, opts TranscriptionOptions) (*TranscriptResult, error) {
	startTime := time.Now()

	lang, ok := opts.ExplicitLanguage()
	if !ok {
		lang = AutoLanguage
	}

	logrus.WithFields(logrus.Fields{
		"model":    ft.modelName,
		"language": lang,
	}).Debug("FasterWhisperTranscriber: Starting transcription")

	// #nosec G204 - pythonPath is resolved at initialization, arguments go through argv
	cmd := exec.CommandContext(ctx, ft.pythonPath, "-c", fasterWhisperScript,
		audioPath, ft.modelName, ft.device, ft.computeType, lang)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()

	var response FasterWhisperResponse
	if err := json.Unmarshal(outBuf.Bytes(), &response); err != nil {
		if runErr != nil {
			logrus.WithFields(logrus.Fields{
				"error":  runErr,
				"stderr": errBuf.String(),
			}).Error("FasterWhisper transcription failed")
			return nil, fmt.Errorf("faster-whisper transcription failed: %w: %s", runErr, strings.TrimSpace(errBuf.String()))
		}
		return nil, fmt.Errorf("error parsing faster-whisper output: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("faster-whisper transcription failed: %s", response.Error)
	}
	if runErr != nil {
		return nil, fmt.Errorf("faster-whisper transcription failed: %w", runErr)
	}

	if response.Language != "" {
		lang = response.Language
	}

	result := &TranscriptResult{
		Text:     response.Text,
		Language: lang,
		Duration: time.Since(startTime),
	}

	logrus.WithFields(logrus.Fields{
		"transcript_length": len(result.Text),
		"processing_time":   result.Duration,
	}).Info("FasterWhisperTranscriber: Transcription complete")

	return result, nil
}

func (ft *FasterWhisperTranscriber) IsReady() bool {
	return ft.pythonPath != ""
}

func (ft *FasterWhisperTranscriber) Close() error {
	return nil
}

// lookupPython resolves the interpreter, falling back from python3 to python
func lookupPython(preferred string) (string, error) {
	candidates := []string{"python3", "python"}
	if preferred != "" {
		candidates = append([]string{preferred}, candidates...)
	}
	for _, c := range candidates {
		if p, err := exec.LookPath(c); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("python executable not found in PATH")
}

// argv: file, model, device, compute_type, language
const fasterWhisperScript = `
import sys
import json
import warnings

warnings.filterwarnings("ignore")

try:
    from faster_whisper import WhisperModel

    path, model_name, device, compute_type, language = sys.argv[1:6]
    model = WhisperModel(model_name, device=device, compute_type=compute_type)
    segments, info = model.transcribe(
        path,
        language=None if language == "auto" else language,
    )
    text = "".join(segment.text for segment in segments)
    print(json.dumps({"text": text, "language": info.language}))
except Exception as e:
    print(json.dumps({"text": "", "language": "", "error": str(e)}))
    sys.exit(1)
`
