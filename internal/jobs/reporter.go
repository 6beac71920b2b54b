package jobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrNotReady is returned while a job has not finished successfully
	ErrNotReady = errors.New("job result not ready")

	// ErrInvalidFilename is returned for download names that are not plain filenames
	ErrInvalidFilename = errors.New("invalid result filename")
)

// Result is the transcript of a finished job
type Result struct {
	Text     string
	Filename string
}

// Reporter is the read-only view over the job store used by polling clients
type Reporter struct {
	store     *Store
	resultDir string
}

// NewReporter creates a reporter resolving result files inside resultDir
func NewReporter(store *Store, resultDir string) *Reporter {
	return &Reporter{
		store:     store,
		resultDir: resultDir,
	}
}

// Poll returns the job record, never failing for unknown ids
func (r *Reporter) Poll(jobID string) Job {
	return r.store.Lookup(jobID)
}

// FetchResult returns the transcript of a done job, or ErrNotReady
func (r *Reporter) FetchResult(jobID string) (Result, error) {
	job, ok := r.store.Get(jobID)
	if !ok || job.Status != StatusDone {
		return Result{}, ErrNotReady
	}
	return Result{
		Text:     job.Text,
		Filename: job.ResultFilename,
	}, nil
}

// ResultPath resolves a result filename to an existing file in the result directory
func (r *Reporter) ResultPath(filename string) (string, error) {
	if !isPlainFilename(filename) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	path := filepath.Join(r.resultDir, filename)
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return path, nil
}
