package jobs

import (
	"fmt"
	"strings"

	"github.com/fankserver/transcribe-web/pkg/diarizer"
)

// MergeSpeakerTurns tags every speaker turn with the full-document transcript.
// Turns are not transcribed individually; each line carries the whole text,
// folded onto one line so the output has exactly one line per turn.
func MergeSpeakerTurns(turns []diarizer.Turn, text string) string {
	trimmed := singleLine(text)
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, fmt.Sprintf("[%s] %s", turn.Speaker, trimmed))
	}
	return strings.Join(lines, "\n")
}

func singleLine(text string) string {
	parts := strings.Split(text, "\n")
	kept := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " ")
}
