package transcriber

import (
	"context"
	"fmt"
	"path/filepath"
)

// MockTranscriber for testing without actual transcription.
// Text overrides the generated transcript and Err forces a failure.
type MockTranscriber struct {
	Text string
	Err  error
}

func (mt *MockTranscriber) Transcribe(ctx context.Context, audioPath string, opts TranscriptionOptions) (*TranscriptResult, error) {
	if mt.Err != nil {
		return nil, mt.Err
	}
	text := mt.Text
	if text == "" {
		text = fmt.Sprintf("[Mock transcript: %s]", filepath.Base(audioPath))
	}
	lang, ok := opts.ExplicitLanguage()
	if !ok {
		lang = AutoLanguage
	}
	return &TranscriptResult{Text: text, Language: lang}, nil
}

func (mt *MockTranscriber) IsReady() bool {
	return true
}

func (mt *MockTranscriber) Close() error {
	return nil
}
