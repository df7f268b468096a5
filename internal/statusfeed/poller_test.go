package statusfeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/jobwatch/internal/domain"
)

// mockFeed implements Feed for testing.
type mockFeed struct {
	jobs []domain.JobStatus
	err  error
}

func (m *mockFeed) Fetch(context.Context) ([]domain.JobStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.jobs, nil
}

// mockSync implements SyncTarget for testing.
type mockSync struct {
	calls [][]domain.JobStatus
	err   error
}

func (m *mockSync) SyncStatuses(_ context.Context, jobs []domain.JobStatus) error {
	m.calls = append(m.calls, jobs)
	return m.err
}

func TestPoll_UpdatesSnapshotAndSyncs(t *testing.T) {
	// Arrange
	feed := &mockFeed{jobs: []domain.JobStatus{
		{Name: "etl-nightly", Status: "Critical"},
		{Name: "cache-warmup", Status: "Log"},
	}}
	engine := &mockSync{}
	poller := NewPoller(DefaultPollerConfig(), feed, engine)

	// Act
	poller.poll(context.Background())

	// Assert
	jobs, stale := poller.Snapshot()
	assert.False(t, stale)
	require.Len(t, jobs, 2)

	status, ok := poller.StatusFor("etl-nightly")
	require.True(t, ok)
	assert.Equal(t, "Critical", status)

	_, ok = poller.StatusFor("no-such-job")
	assert.False(t, ok)

	require.Len(t, engine.calls, 1)
	assert.Equal(t, feed.jobs, engine.calls[0])
	assert.False(t, poller.LastUpdated().IsZero())
}

func TestPoll_FailureKeepsLastKnown(t *testing.T) {
	// Arrange
	feed := &mockFeed{jobs: []domain.JobStatus{{Name: "etl-nightly", Status: "Warning"}}}
	poller := NewPoller(DefaultPollerConfig(), feed, &mockSync{})
	poller.poll(context.Background())

	// Act: feed goes down
	feed.err = errors.New("connection refused")
	poller.poll(context.Background())

	// Assert: last snapshot survives, marked stale
	jobs, stale := poller.Snapshot()
	assert.True(t, stale)
	require.Len(t, jobs, 1)
	assert.Equal(t, "etl-nightly", jobs[0].Name)

	status, ok := poller.StatusFor("etl-nightly")
	require.True(t, ok)
	assert.Equal(t, "Warning", status)
}

func TestPoll_RecoveryClearsStale(t *testing.T) {
	feed := &mockFeed{err: errors.New("connection refused")}
	poller := NewPoller(DefaultPollerConfig(), feed, &mockSync{})

	poller.poll(context.Background())
	_, stale := poller.Snapshot()
	assert.True(t, stale)

	feed.err = nil
	feed.jobs = []domain.JobStatus{{Name: "etl-nightly", Status: "Log"}}
	poller.poll(context.Background())

	jobs, stale := poller.Snapshot()
	assert.False(t, stale)
	assert.Len(t, jobs, 1)
}

func TestPoll_StartsStale(t *testing.T) {
	poller := NewPoller(DefaultPollerConfig(), &mockFeed{}, nil)

	jobs, stale := poller.Snapshot()
	assert.True(t, stale)
	assert.Empty(t, jobs)
}

func TestPoll_SyncErrorDoesNotPoisonSnapshot(t *testing.T) {
	feed := &mockFeed{jobs: []domain.JobStatus{{Name: "etl-nightly", Status: "Critical"}}}
	engine := &mockSync{err: errors.New("database down")}
	poller := NewPoller(DefaultPollerConfig(), feed, engine)

	poller.poll(context.Background())

	_, stale := poller.Snapshot()
	assert.False(t, stale)
	require.Len(t, engine.calls, 1)
}

func TestStartStop(t *testing.T) {
	feed := &mockFeed{jobs: []domain.JobStatus{{Name: "etl-nightly", Status: "Log"}}}
	engine := &mockSync{}
	poller := NewPoller(PollerConfig{Interval: time.Hour}, feed, engine)

	poller.Start(context.Background())
	poller.Stop()

	// The immediate first cycle ran before Stop returned.
	_, stale := poller.Snapshot()
	assert.False(t, stale)
}
