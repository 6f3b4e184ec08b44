package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	ids    []string
	err    error
	cutoff time.Time
}

func (f *fakeLister) ListArchivable(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	f.cutoff = cutoff
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.ids) {
		return f.ids[:limit], nil
	}
	return f.ids, nil
}

type fakeArchiver struct {
	archived []string
	failFor  map[string]error
}

func (f *fakeArchiver) Archive(ctx context.Context, orderID string) error {
	if err, ok := f.failFor[orderID]; ok && err != nil {
		return err
	}
	f.archived = append(f.archived, orderID)
	return nil
}

func TestArchiveWorker_ArchivesEachCandidate(t *testing.T) {
	lister := &fakeLister{ids: []string{"order-1", "order-2"}}
	archiver := &fakeArchiver{}
	worker := NewArchiveWorker(lister, archiver, 100, 24*time.Hour, nil)

	now := time.Now()
	err := worker.Run(context.Background(), now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"order-1", "order-2"}, archiver.archived)
	assert.WithinDuration(t, now.Add(-24*time.Hour), lister.cutoff, time.Second)
}

func TestArchiveWorker_OneFailureDoesNotBlockOthers(t *testing.T) {
	lister := &fakeLister{ids: []string{"order-1", "order-2"}}
	archiver := &fakeArchiver{failFor: map[string]error{"order-1": assert.AnError}}
	worker := NewArchiveWorker(lister, archiver, 100, 24*time.Hour, nil)

	err := worker.Run(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"order-2"}, archiver.archived)
}

func TestArchiveWorker_PropagatesListError(t *testing.T) {
	lister := &fakeLister{err: assert.AnError}
	archiver := &fakeArchiver{}
	worker := NewArchiveWorker(lister, archiver, 100, 24*time.Hour, nil)

	err := worker.Run(context.Background(), time.Now())
	require.Error(t, err)
}

func TestArchiveWorker_DefaultsAppliedWhenZero(t *testing.T) {
	worker := NewArchiveWorker(&fakeLister{}, &fakeArchiver{}, 0, 0, nil)
	assert.Equal(t, 100, worker.batchSize)
	assert.Equal(t, 24*time.Hour, worker.age)
}
