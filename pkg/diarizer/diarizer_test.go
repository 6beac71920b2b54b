package diarizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTurns(t *testing.T) {
	out := []byte(`{"turns": [
		{"start": 0.0, "end": 1.5, "speaker": "SPEAKER_00"},
		{"start": 1.75, "end": 4.0, "speaker": "SPEAKER_01"}
	]}`)

	turns, err := parseTurns(out)
	require.NoError(t, err)
	require.Len(t, turns, 2)

	assert.Equal(t, Turn{Start: 0, End: 1500 * time.Millisecond, Speaker: "SPEAKER_00"}, turns[0])
	assert.Equal(t, Turn{Start: 1750 * time.Millisecond, End: 4 * time.Second, Speaker: "SPEAKER_01"}, turns[1])
}

func TestParseTurnsEmpty(t *testing.T) {
	turns, err := parseTurns([]byte(`{"turns": []}`))
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestParseTurnsErrors(t *testing.T) {
	_, err := parseTurns([]byte(`{"turns": [], "error": "401 Unauthorized"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401 Unauthorized")

	_, err = parseTurns([]byte("Traceback (most recent call last):"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing diarization output")
}

func TestNewPyannoteDiarizerRequiresToken(t *testing.T) {
	_, err := NewPyannoteDiarizer("python3", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
}

func TestMockDiarizer(t *testing.T) {
	ctx := context.Background()
	turns := []Turn{{Speaker: "SPEAKER_00"}, {Speaker: "SPEAKER_01"}}

	md := &MockDiarizer{Turns: turns}
	got, err := md.Diarize(ctx, "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, turns, got)

	// callers get their own slice
	got[0].Speaker = "changed"
	assert.Equal(t, "SPEAKER_00", md.Turns[0].Speaker)

	failing := &MockDiarizer{Err: errors.New("no gpu")}
	_, err = failing.Diarize(ctx, "clip.mp4")
	assert.EqualError(t, err, "no gpu")
}

func TestDecodeHelperOutput(t *testing.T) {
	exitErr := errors.New("exit status 1")

	tests := []struct {
		name    string
		out     string
		runErr  error
		stderr  string
		turns   int
		errText string
	}{
		{name: "success", out: `{"turns": [{"start": 0, "end": 1, "speaker": "SPEAKER_00"}]}`, turns: 1},
		{name: "pipeline_loaded", out: `{"turns": []}`, turns: 0},
		{name: "bad_token", out: `{"turns": [], "error": "pipeline pyannote/speaker-diarization could not be loaded, check HF_TOKEN and model access"}`, runErr: exitErr, errText: "check HF_TOKEN"},
		{name: "interpreter_crash", out: "", runErr: exitErr, stderr: "Segmentation fault\n", errText: "exit status 1: Segmentation fault"},
		{name: "nonzero_exit_with_turns", out: `{"turns": []}`, runErr: exitErr, errText: "diarization failed: exit status 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turns, err := decodeHelperOutput([]byte(tt.out), tt.runErr, tt.stderr)
			if tt.errText != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
				return
			}
			require.NoError(t, err)
			assert.Len(t, turns, tt.turns)
		})
	}
}
