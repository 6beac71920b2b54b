package diarizer

import (
	"context"
	"time"
)

// DefaultPipeline is the pretrained pyannote pipeline loaded when a token is configured
const DefaultPipeline = "pyannote/speaker-diarization"

// Turn is one contiguous stretch of audio attributed to a single speaker
type Turn struct {
	Start   time.Duration `json:"start"`
	End     time.Duration `json:"end"`
	Speaker string        `json:"speaker"`
}

// Diarizer segments a file into ordered speaker turns
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]Turn, error)
	Close() error
}

// MockDiarizer returns a fixed set of turns, for testing
type MockDiarizer struct {
	Turns []Turn
	Err   error
}

func (md *MockDiarizer) Diarize(ctx context.Context, audioPath string) ([]Turn, error) {
	if md.Err != nil {
		return nil, md.Err
	}
	turns := make([]Turn, len(md.Turns))
	copy(turns, md.Turns)
	return turns, nil
}

func (md *MockDiarizer) Close() error {
	return nil
}
