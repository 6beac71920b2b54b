package jobs

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	store := NewStore()
	assert.NotNil(t, store)
	assert.NotNil(t, store.jobs)
	assert.Empty(t, store.jobs)
	assert.Equal(t, 0, store.Len())
}

func TestRegister(t *testing.T) {
	store := NewStore()

	job := store.Register("job-1")
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.NotZero(t, job.CreatedAt)

	got, ok := store.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, job, got)
}

func TestRegisterTwiceOverwrites(t *testing.T) {
	store := NewStore()
	store.Register("job-1")
	require.NoError(t, store.Update(Job{ID: "job-1", Status: StatusProcessing, Progress: 60}))

	store.Register("job-1")

	got, ok := store.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, StatusQueued, got.Status)
	assert.Equal(t, 0, got.Progress)
	assert.Equal(t, 1, store.Len())
}

func TestUpdateReplacesWholeRecord(t *testing.T) {
	store := NewStore()
	registered := store.Register("job-1")

	require.NoError(t, store.Update(Job{ID: "job-1", Status: StatusProcessing, Progress: 10, Text: "partial"}))
	require.NoError(t, store.Update(Job{ID: "job-1", Status: StatusProcessing, Progress: 60}))

	got, _ := store.Get("job-1")
	assert.Equal(t, 60, got.Progress)
	assert.Empty(t, got.Text)
	assert.Equal(t, registered.CreatedAt, got.CreatedAt)
}

func TestUpdateUnknownJob(t *testing.T) {
	store := NewStore()

	err := store.Update(Job{ID: "non-existent", Status: StatusProcessing, Progress: 10})
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestUpdateTerminalJob(t *testing.T) {
	for _, terminal := range []Job{
		{ID: "job-1", Status: StatusDone, Progress: 100, ResultFilename: "a.wav.txt", Text: "hi"},
		{ID: "job-1", Status: StatusError, Progress: 100, Error: "boom"},
	} {
		t.Run(string(terminal.Status), func(t *testing.T) {
			store := NewStore()
			store.Register("job-1")
			require.NoError(t, store.Update(terminal))

			err := store.Update(Job{ID: "job-1", Status: StatusProcessing, Progress: 100})
			assert.ErrorIs(t, err, ErrTerminal)

			err = store.Update(Job{ID: "job-1", Status: StatusDone, Progress: 100, Text: "other"})
			assert.ErrorIs(t, err, ErrTerminal)

			got, _ := store.Get("job-1")
			assert.Equal(t, terminal.Status, got.Status)
			assert.Equal(t, terminal.Text, got.Text)
			assert.Equal(t, terminal.Error, got.Error)
		})
	}
}

func TestUpdateRejectsProgressRegression(t *testing.T) {
	store := NewStore()
	store.Register("job-1")
	require.NoError(t, store.Update(Job{ID: "job-1", Status: StatusProcessing, Progress: 60}))

	err := store.Update(Job{ID: "job-1", Status: StatusProcessing, Progress: 10})
	assert.ErrorIs(t, err, ErrProgressRegression)

	got, _ := store.Get("job-1")
	assert.Equal(t, 60, got.Progress)
}

func TestLookup(t *testing.T) {
	store := NewStore()
	store.Register("job-1")

	assert.Equal(t, StatusQueued, store.Lookup("job-1").Status)

	missing := store.Lookup("non-existent")
	assert.Equal(t, StatusNotFound, missing.Status)
	assert.Equal(t, 0, missing.Progress)
	assert.Equal(t, "non-existent", missing.ID)
}

func TestList(t *testing.T) {
	store := NewStore()
	assert.Empty(t, store.List())

	id1 := store.Register("job-1").ID
	id2 := store.Register("job-2").ID

	jobs := store.List()
	require.Len(t, jobs, 2)

	ids := make(map[string]bool)
	for _, j := range jobs {
		ids[j.ID] = true
	}
	assert.True(t, ids[id1])
	assert.True(t, ids[id2])
	assert.False(t, jobs[1].CreatedAt.Before(jobs[0].CreatedAt))
}

func TestGetReturnsCopy(t *testing.T) {
	store := NewStore()
	store.Register("job-1")

	got, _ := store.Get("job-1")
	got.Status = StatusDone

	again, _ := store.Get("job-1")
	assert.Equal(t, StatusQueued, again.Status)
}

func TestConcurrentJobs(t *testing.T) {
	store := NewStore()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("job-%d", i)
			store.Register(id)
			for _, p := range []int{ProgressStarted, ProgressTranscribed, ProgressMerged} {
				assert.NoError(t, store.Update(Job{ID: id, Status: StatusProcessing, Progress: p}))
				_ = store.Lookup(id)
				_ = store.List()
			}
			assert.NoError(t, store.Update(Job{ID: id, Status: StatusDone, Progress: ProgressDone}))
		}(i)
	}
	wg.Wait()

	require.Equal(t, n, store.Len())
	for _, j := range store.List() {
		assert.Equal(t, StatusDone, j.Status)
		assert.Equal(t, ProgressDone, j.Progress)
	}
}
