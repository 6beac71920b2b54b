package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fankserver/transcribe-web/internal/feedback"
	"github.com/fankserver/transcribe-web/internal/metrics"
	"github.com/fankserver/transcribe-web/pkg/diarizer"
	"github.com/fankserver/transcribe-web/pkg/transcriber"
	"github.com/sirupsen/logrus"
)

// ResultSuffix is appended to the upload filename to name its transcript
const ResultSuffix = ".txt"

// Worker runs transcription jobs and reports their progress through the store
type Worker struct {
	store       *Store
	transcriber transcriber.Transcriber
	diarizer    diarizer.Diarizer
	resultDir   string
	events      *feedback.EventBus
	logger      *logrus.Entry
}

// outcome is what a job produced: a transcript written to disk, or an error
type outcome struct {
	resultFilename string
	text           string
	speakers       int
	err            error
}

// NewWorker creates a worker. A nil diarizer disables speaker tagging, a nil
// event bus disables event publishing.
func NewWorker(store *Store, trans transcriber.Transcriber, diar diarizer.Diarizer, resultDir string, events *feedback.EventBus) *Worker {
	return &Worker{
		store:       store,
		transcriber: trans,
		diarizer:    diar,
		resultDir:   resultDir,
		events:      events,
		logger:      logrus.WithField("component", "worker"),
	}
}

// Ready reports whether the transcription backend can accept work
func (w *Worker) Ready() bool {
	return w.transcriber.IsReady()
}

// DiarizationEnabled reports whether speaker turns are added to transcripts
func (w *Worker) DiarizationEnabled() bool {
	return w.diarizer != nil
}

// Run processes one job to completion. It never returns a result; the
// terminal record in the store is the only output.
func (w *Worker) Run(ctx context.Context, jobID, filePath, language string) {
	startTime := time.Now()
	logger := w.logger.WithFields(logrus.Fields{
		"job_id": jobID,
		"file":   filepath.Base(filePath),
	})

	// only registered, unfinished jobs run; a finished job's result file stays as recorded
	if current, ok := w.store.Get(jobID); !ok || current.IsTerminal() {
		logger.WithField("status", w.store.Lookup(jobID).Status).Warn("Job is not runnable, skipping")
		return
	}

	metrics.JobStarted()
	w.setProgress(logger, jobID, ProgressStarted)

	res := w.process(ctx, logger, jobID, filePath, language)
	processTime := time.Since(startTime)

	if res.err != nil {
		w.finish(logger, Job{
			ID:       jobID,
			Status:   StatusError,
			Progress: ProgressDone,
			Error:    res.err.Error(),
		})
		metrics.JobFinished(string(StatusError), processTime.Seconds())
		w.events.PublishJobFailed(jobID, feedback.JobFailedData{
			Error:       res.err.Error(),
			ProcessTime: processTime,
		})
		logger.WithError(res.err).WithField("process_time", processTime).Error("Transcription job failed")
		return
	}

	w.finish(logger, Job{
		ID:             jobID,
		Status:         StatusDone,
		Progress:       ProgressDone,
		ResultFilename: res.resultFilename,
		Text:           res.text,
	})
	metrics.JobFinished(string(StatusDone), processTime.Seconds())
	w.events.PublishJobCompleted(jobID, feedback.JobCompletedData{
		ResultFilename: res.resultFilename,
		TextLength:     len(res.text),
		Speakers:       res.speakers,
		ProcessTime:    processTime,
	})
	logger.WithFields(logrus.Fields{
		"result":       res.resultFilename,
		"text_length":  len(res.text),
		"process_time": processTime,
	}).Info("Transcription job completed")
}

// process runs the transcription steps in order, stopping at the first error.
// A panic inside a collaborator is turned into an error.
func (w *Worker) process(ctx context.Context, logger *logrus.Entry, jobID, filePath, language string) (res outcome) {
	defer func() {
		if r := recover(); r != nil {
			res = outcome{err: fmt.Errorf("transcription panicked: %v", r)}
		}
	}()

	text, err := transcriber.TranscribeText(ctx, w.transcriber, filePath, transcriber.TranscriptionOptions{
		Language: language,
	})
	if err != nil {
		return outcome{err: err}
	}
	w.setProgress(logger, jobID, ProgressTranscribed)

	diarized := text
	speakers := 0
	if w.diarizer != nil {
		turns, err := w.diarizer.Diarize(ctx, filePath)
		if err != nil {
			return outcome{err: err}
		}
		diarized = MergeSpeakerTurns(turns, text)
		speakers = countSpeakers(turns)
	}
	w.setProgress(logger, jobID, ProgressMerged)

	resultFilename := filepath.Base(filePath) + ResultSuffix
	if err := w.writeResult(resultFilename, diarized); err != nil {
		return outcome{err: err}
	}

	return outcome{
		resultFilename: resultFilename,
		text:           diarized,
		speakers:       speakers,
	}
}

func (w *Worker) writeResult(name, text string) error {
	// #nosec G301 - Result directory is served for downloads
	if err := os.MkdirAll(w.resultDir, 0750); err != nil {
		return fmt.Errorf("error creating result directory: %w", err)
	}
	// #nosec G306 - Result files need to be readable by the user
	if err := os.WriteFile(filepath.Join(w.resultDir, name), []byte(text), 0640); err != nil {
		return fmt.Errorf("error writing result file: %w", err)
	}
	return nil
}

func (w *Worker) setProgress(logger *logrus.Entry, jobID string, progress int) {
	err := w.store.Update(Job{
		ID:       jobID,
		Status:   StatusProcessing,
		Progress: progress,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to update job progress")
		return
	}
	w.events.PublishJobProgress(jobID, feedback.JobProgressData{
		Status:   string(StatusProcessing),
		Progress: progress,
	})
	logger.WithField("progress", progress).Debug("Job progress")
}

func (w *Worker) finish(logger *logrus.Entry, job Job) {
	if err := w.store.Update(job); err != nil {
		logger.WithError(err).Warn("Failed to record job result")
		return
	}
	w.events.PublishJobProgress(job.ID, feedback.JobProgressData{
		Status:   string(job.Status),
		Progress: job.Progress,
	})
}

func countSpeakers(turns []diarizer.Turn) int {
	seen := make(map[string]struct{}, len(turns))
	for _, t := range turns {
		seen[t.Speaker] = struct{}{}
	}
	return len(seen)
}
