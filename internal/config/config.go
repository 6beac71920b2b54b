package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Service     *svcConfig
	Transcriber *transcriberConfig
	Diarizer    *diarizerConfig
}

type svcConfig struct {
	Address     string `envconfig:"TRANSCRIBE_ADDRESS" default:":5000"`
	UploadDir   string `envconfig:"TRANSCRIBE_UPLOAD_DIR" default:"uploads"`
	ResultDir   string `envconfig:"TRANSCRIBE_RESULT_DIR" default:"results"`
	MaxUploadMB int64  `envconfig:"TRANSCRIBE_MAX_UPLOAD_MB" default:"512"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

type transcriberConfig struct {
	Type        string `envconfig:"TRANSCRIBER_TYPE" default:"whisper"`
	Model       string `envconfig:"WHISPER_MODEL" default:"small"`
	Executable  string `envconfig:"WHISPER_PATH" default:""`
	PythonPath  string `envconfig:"PYTHON_PATH" default:"python3"`
	Device      string `envconfig:"WHISPER_DEVICE" default:"auto"`
	ComputeType string `envconfig:"WHISPER_COMPUTE_TYPE" default:"int8"`
	NumThreads  int    `envconfig:"WHISPER_THREADS" default:"0"`
}

type diarizerConfig struct {
	Token    string `envconfig:"HF_TOKEN" default:""`
	Pipeline string `envconfig:"DIARIZATION_MODEL" default:"pyannote/speaker-diarization"`
}

// New reads the configuration from the environment
func New() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DiarizationEnabled reports whether a Hugging Face token was provided
func (c *Config) DiarizationEnabled() bool {
	return c.Diarizer.Token != ""
}

// MaxUploadBytes is the upload size limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.Service.MaxUploadMB << 20
}

// EnsureDirs creates the upload and result directories
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Service.UploadDir, c.Service.ResultDir} {
		// #nosec G301 - directories are shared with the transcription backends
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("error creating directory %s: %w", dir, err)
		}
	}
	return nil
}
