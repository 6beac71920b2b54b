package diarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// PyannoteDiarizer runs a pyannote.audio pipeline through a python helper
type PyannoteDiarizer struct {
	pythonPath string
	pipeline   string
	token      string
}

type pyannoteTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

type pyannoteResponse struct {
	Turns []pyannoteTurn `json:"turns"`
	Error string         `json:"error,omitempty"`
}

// NewPyannoteDiarizer creates a diarizer authenticated with a Hugging Face token
func NewPyannoteDiarizer(pythonPath, pipeline, token string) (*PyannoteDiarizer, error) {
	if token == "" {
		return nil, fmt.Errorf("hugging face token is required for pyannote diarization")
	}
	if pipeline == "" {
		pipeline = DefaultPipeline
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	resolved, err := exec.LookPath(pythonPath)
	if err != nil {
		return nil, fmt.Errorf("python executable not found in PATH: %w", err)
	}

	pd := &PyannoteDiarizer{
		pythonPath: resolved,
		pipeline:   pipeline,
		token:      token,
	}

	// load the pipeline once so a bad token or model name fails at startup
	if _, err := pd.runHelper(context.Background(), pyannoteCheckScript, pipeline); err != nil {
		return nil, fmt.Errorf("failed to load diarization pipeline %s: %w", pipeline, err)
	}

	logrus.WithFields(logrus.Fields{
		"python":   resolved,
		"pipeline": pipeline,
	}).Info("Pyannote diarizer initialized")

	return pd, nil
}

// Diarize returns the speaker turns of the file in time order
func (pd *PyannoteDiarizer) Diarize(ctx context.Context, audioPath string) ([]Turn, error) {
	startTime := time.Now()

	turns, err := pd.runHelper(ctx, pyannoteScript, pd.pipeline, audioPath)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"turns":           len(turns),
		"processing_time": time.Since(startTime),
	}).Info("Pyannote diarization complete")

	return turns, nil
}

func (pd *PyannoteDiarizer) runHelper(ctx context.Context, script string, args ...string) ([]Turn, error) {
	// #nosec G204 - pythonPath is resolved at initialization, arguments go through argv
	cmd := exec.CommandContext(ctx, pd.pythonPath, append([]string{"-c", script}, args...)...)
	// token goes through the environment, not argv
	cmd.Env = append(os.Environ(), "HF_TOKEN="+pd.token)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	if runErr != nil {
		logrus.WithFields(logrus.Fields{
			"error":  runErr,
			"stderr": errBuf.String(),
		}).Error("Pyannote helper failed")
	}
	return decodeHelperOutput(outBuf.Bytes(), runErr, errBuf.String())
}

// decodeHelperOutput prefers the helper's own JSON error over the exit status
func decodeHelperOutput(out []byte, runErr error, stderr string) ([]Turn, error) {
	turns, err := parseTurns(out)
	if err != nil {
		if runErr != nil && !bytes.HasPrefix(bytes.TrimSpace(out), []byte("{")) {
			return nil, fmt.Errorf("diarization failed: %w: %s", runErr, strings.TrimSpace(stderr))
		}
		return nil, err
	}
	if runErr != nil {
		return nil, fmt.Errorf("diarization failed: %w", runErr)
	}
	return turns, nil
}

func (pd *PyannoteDiarizer) Close() error {
	return nil
}

func parseTurns(out []byte) ([]Turn, error) {
	var response pyannoteResponse
	if err := json.Unmarshal(out, &response); err != nil {
		return nil, fmt.Errorf("error parsing diarization output: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("diarization failed: %s", response.Error)
	}

	turns := make([]Turn, 0, len(response.Turns))
	for _, t := range response.Turns {
		turns = append(turns, Turn{
			Start:   secondsToDuration(t.Start),
			End:     secondsToDuration(t.End),
			Speaker: t.Speaker,
		})
	}
	return turns, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// argv: pipeline name; HF_TOKEN from the environment
const pyannoteCheckScript = `
import os
import sys
import json
import warnings

warnings.filterwarnings("ignore")

try:
    from pyannote.audio import Pipeline

    name = sys.argv[1]
    pipeline = Pipeline.from_pretrained(name, use_auth_token=os.environ["HF_TOKEN"])
    if pipeline is None:
        raise RuntimeError("pipeline %s could not be loaded, check HF_TOKEN and model access" % name)
    print(json.dumps({"turns": []}))
except Exception as e:
    print(json.dumps({"turns": [], "error": str(e)}))
    sys.exit(1)
`

// argv: pipeline name, file; HF_TOKEN from the environment
const pyannoteScript = `
import os
import sys
import json
import warnings

warnings.filterwarnings("ignore")

try:
    from pyannote.audio import Pipeline

    name, path = sys.argv[1:3]
    pipeline = Pipeline.from_pretrained(name, use_auth_token=os.environ["HF_TOKEN"])
    if pipeline is None:
        raise RuntimeError("pipeline %s could not be loaded, check HF_TOKEN and model access" % name)
    diarization = pipeline(path)
    turns = [
        {"start": turn.start, "end": turn.end, "speaker": speaker}
        for turn, _, speaker in diarization.itertracks(yield_label=True)
    ]
    print(json.dumps({"turns": turns}))
except Exception as e:
    print(json.dumps({"turns": [], "error": str(e)}))
    sys.exit(1)
`
