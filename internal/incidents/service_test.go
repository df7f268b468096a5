package incidents

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/jobwatch/internal/domain"
)

// mockStore implements Store for testing. A single mutex makes every
// compare-and-act primitive atomic, mirroring the real implementations.
type mockStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.Incident
	open   map[string]int64

	openErr    error
	claimErr   error
	resolveErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		nextID: 1,
		byID:   make(map[int64]*domain.Incident),
		open:   make(map[string]int64),
	}
}

func (m *mockStore) OpenIncident(_ context.Context, jobName, status string, detectionTime time.Time) (OpenResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.openErr != nil {
		return OpenResult{}, m.openErr
	}
	if id, ok := m.open[jobName]; ok {
		return OpenResult{IncidentID: id, AlreadyOpen: true}, nil
	}

	id := m.nextID
	m.nextID++
	m.byID[id] = &domain.Incident{
		ID:                id,
		JobName:           jobName,
		StatusAtDetection: status,
		DetectionTime:     detectionTime,
		Priority:          domain.DefaultPriority,
	}
	m.open[jobName] = id
	return OpenResult{IncidentID: id}, nil
}

func (m *mockStore) ClaimIncident(_ context.Context, id int64, responder string, priority domain.Priority, startTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.claimErr != nil {
		return m.claimErr
	}
	inc, ok := m.byID[id]
	if !ok {
		return ErrIncidentNotFound
	}
	if !inc.IsOpen() {
		return ErrAlreadyResolved
	}
	if inc.Responder != nil {
		return &AlreadyClaimedError{IncidentID: id, Responder: *inc.Responder}
	}

	inc.Responder = &responder
	inc.Priority = priority
	inc.ResponseStartTime = &startTime
	return nil
}

func (m *mockStore) ResolveIncident(_ context.Context, id int64, resolutionTime time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.resolveErr != nil {
		return 0, m.resolveErr
	}
	inc, ok := m.byID[id]
	if !ok {
		return 0, ErrIncidentNotFound
	}
	if !inc.IsOpen() {
		return 0, ErrAlreadyResolved
	}

	start := inc.DetectionTime
	if inc.ResponseStartTime != nil {
		start = *inc.ResponseStartTime
	}
	duration := int64(resolutionTime.Sub(start).Seconds())
	inc.ResolutionTime = &resolutionTime
	inc.ResolutionDurationSeconds = &duration
	delete(m.open, inc.JobName)
	return duration, nil
}

func (m *mockStore) UpdatePriority(_ context.Context, id int64, priority domain.Priority) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inc, ok := m.byID[id]
	if !ok {
		return ErrIncidentNotFound
	}
	if !inc.IsOpen() {
		return ErrIncidentClosed
	}
	inc.Priority = priority
	return nil
}

func (m *mockStore) GetIncident(_ context.Context, id int64) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inc, ok := m.byID[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	cp := *inc
	return &cp, nil
}

func (m *mockStore) ListOpen(_ context.Context) (map[string]*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]*domain.Incident, len(m.open))
	for job, id := range m.open {
		cp := *m.byID[id]
		out[job] = &cp
	}
	return out, nil
}

func (m *mockStore) ListHistory(_ context.Context, _ int, _ time.Time) ([]*domain.Incident, error) {
	return nil, nil
}

// mockStatuses implements StatusSource for testing.
type mockStatuses map[string]string

func (m mockStatuses) StatusFor(name string) (string, bool) {
	s, ok := m[name]
	return s, ok
}

// mockNotifier implements Notifier. Calls are signalled on channels
// because the service notifies from a goroutine.
type mockNotifier struct {
	started  chan string
	resolved chan string
	err      error
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{
		started:  make(chan string, 8),
		resolved: make(chan string, 8),
	}
}

func (m *mockNotifier) ResponseStarted(_ context.Context, jobName string, _ int64) error {
	m.started <- jobName
	return m.err
}

func (m *mockNotifier) ResponseResolved(_ context.Context, jobName string, _ int64) error {
	m.resolved <- jobName
	return m.err
}

func waitForNotification(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case job := <-ch:
		return job
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return ""
	}
}

func newTestService(store Store) *Service {
	return NewService(store, nil, nil, DefaultConfig())
}

func TestSyncStatuses_OpensIncidentsForFailingJobs(t *testing.T) {
	// Arrange
	store := newMockStore()
	service := newTestService(store)

	jobs := []domain.JobStatus{
		{Name: "etl-nightly", Status: "Critical"},
		{Name: "billing-export", Status: "Error"},
		{Name: "cache-warmup", Status: "Warning"},
		{Name: "log-rotate", Status: "Log"},
	}

	// Act
	err := service.SyncStatuses(context.Background(), jobs)

	// Assert: only Critical and Error tiers require response
	require.NoError(t, err)
	open, err := store.ListOpen(context.Background())
	require.NoError(t, err)
	assert.Len(t, open, 2)
	assert.Contains(t, open, "etl-nightly")
	assert.Contains(t, open, "billing-export")
	assert.Equal(t, "Critical", open["etl-nightly"].StatusAtDetection)
}

func TestSyncStatuses_SkipsJobsWithOpenIncident(t *testing.T) {
	// Arrange
	store := newMockStore()
	service := newTestService(store)

	jobs := []domain.JobStatus{{Name: "etl-nightly", Status: "Critical"}}
	require.NoError(t, service.SyncStatuses(context.Background(), jobs))

	open, _ := store.ListOpen(context.Background())
	firstID := open["etl-nightly"].ID

	// Act: second cycle sees the same failure
	err := service.SyncStatuses(context.Background(), jobs)

	// Assert: no duplicate incident
	require.NoError(t, err)
	open, _ = store.ListOpen(context.Background())
	assert.Len(t, open, 1)
	assert.Equal(t, firstID, open["etl-nightly"].ID)
}

func TestRespond_OpensAndClaims(t *testing.T) {
	// Arrange
	store := newMockStore()
	statuses := mockStatuses{"etl-nightly": "Critical"}
	service := NewService(store, statuses, nil, DefaultConfig())

	// Act
	id, err := service.Respond(context.Background(), "etl-nightly", "Alice", "")

	// Assert
	require.NoError(t, err)
	inc, err := store.GetIncident(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Critical", inc.StatusAtDetection)
	require.NotNil(t, inc.Responder)
	assert.Equal(t, "Alice", *inc.Responder)
	assert.Equal(t, domain.DefaultPriority, inc.Priority)
	assert.NotNil(t, inc.ResponseStartTime)
}

func TestRespond_UnknownJobStatusRecordedAsUnknown(t *testing.T) {
	// Arrange: the feed has never reported this job
	store := newMockStore()
	service := NewService(store, mockStatuses{}, nil, DefaultConfig())

	// Act
	id, err := service.Respond(context.Background(), "ad-hoc-job", "Bob", domain.PriorityP1)

	// Assert
	require.NoError(t, err)
	inc, _ := store.GetIncident(context.Background(), id)
	assert.Equal(t, "Unknown", inc.StatusAtDetection)
	assert.Equal(t, domain.PriorityP1, inc.Priority)
}

func TestRespond_RejectsWhenClaimedByOther(t *testing.T) {
	// Arrange
	store := newMockStore()
	service := newTestService(store)

	id, err := service.Respond(context.Background(), "etl-nightly", "Alice", "")
	require.NoError(t, err)

	// Act
	_, err = service.Respond(context.Background(), "etl-nightly", "Bob", "")

	// Assert: the loser learns who holds the incident
	var claimed *AlreadyClaimedError
	require.ErrorAs(t, err, &claimed)
	assert.Equal(t, id, claimed.IncidentID)
	assert.Equal(t, "Alice", claimed.Responder)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestRespond_SameResponderIsNoOp(t *testing.T) {
	// Arrange
	store := newMockStore()
	service := newTestService(store)

	first, err := service.Respond(context.Background(), "etl-nightly", "Alice", "")
	require.NoError(t, err)

	// Act
	second, err := service.Respond(context.Background(), "etl-nightly", "Alice", "")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClaim_FirstClaimWins(t *testing.T) {
	// Arrange
	store := newMockStore()
	service := newTestService(store)

	res, err := store.OpenIncident(context.Background(), "etl-nightly", "Critical", time.Now())
	require.NoError(t, err)

	// Act: two responders race for the same incident
	responders := []string{"Alice", "Bob"}
	errs := make([]error, len(responders))
	var wg sync.WaitGroup
	for i, responder := range responders {
		wg.Add(1)
		go func(i int, responder string) {
			defer wg.Done()
			errs[i] = service.Claim(context.Background(), res.IncidentID, responder, domain.DefaultPriority)
		}(i, responder)
	}
	wg.Wait()

	// Assert: exactly one claim succeeds
	var wins, losses int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		losses++
		var claimed *AlreadyClaimedError
		require.ErrorAs(t, err, &claimed)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	inc, _ := store.GetIncident(context.Background(), res.IncidentID)
	require.NotNil(t, inc.Responder)
	assert.Contains(t, responders, *inc.Responder)
}

func TestClaim_ResolvedIncident(t *testing.T) {
	// Arrange
	store := newMockStore()
	service := newTestService(store)

	res, _ := store.OpenIncident(context.Background(), "etl-nightly", "Critical", time.Now())
	_, err := store.ResolveIncident(context.Background(), res.IncidentID, time.Now())
	require.NoError(t, err)

	// Act
	err = service.Claim(context.Background(), res.IncidentID, "Alice", domain.DefaultPriority)

	// Assert
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestClaim_NotifiesResponseStarted(t *testing.T) {
	// Arrange
	store := newMockStore()
	notifier := newMockNotifier()
	service := NewService(store, nil, notifier, DefaultConfig())

	res, _ := store.OpenIncident(context.Background(), "etl-nightly", "Critical", time.Now())

	// Act
	err := service.Claim(context.Background(), res.IncidentID, "Alice", domain.DefaultPriority)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "etl-nightly", waitForNotification(t, notifier.started))
}

func TestResolve_DurationFromResponseStart(t *testing.T) {
	// Arrange: detection at t0, claim at t0+2s, resolve at t0+10s
	store := newMockStore()
	service := newTestService(store)

	t0 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	clock := t0
	service.now = func() time.Time { return clock }

	res, err := store.OpenIncident(context.Background(), "etl-nightly", "Critical", t0)
	require.NoError(t, err)

	clock = t0.Add(2 * time.Second)
	require.NoError(t, service.Claim(context.Background(), res.IncidentID, "Alice", domain.DefaultPriority))

	// Act
	clock = t0.Add(10 * time.Second)
	duration, err := service.Resolve(context.Background(), res.IncidentID)

	// Assert: measured from claim, not detection
	require.NoError(t, err)
	assert.Equal(t, int64(8), duration)
}

func TestResolve_UnclaimedFallsBackToDetectionTime(t *testing.T) {
	// Arrange
	store := newMockStore()
	service := newTestService(store)

	t0 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	clock := t0
	service.now = func() time.Time { return clock }

	res, err := store.OpenIncident(context.Background(), "etl-nightly", "Critical", t0)
	require.NoError(t, err)

	// Act
	clock = t0.Add(30 * time.Second)
	duration, err := service.Resolve(context.Background(), res.IncidentID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(30), duration)
}

func TestResolve_AlreadyResolved(t *testing.T) {
	// Arrange
	store := newMockStore()
	service := newTestService(store)

	id, err := service.Respond(context.Background(), "etl-nightly", "Alice", "")
	require.NoError(t, err)
	_, err = service.Resolve(context.Background(), id)
	require.NoError(t, err)

	// Act
	_, err = service.Resolve(context.Background(), id)

	// Assert: idempotent from the job's point of view, the caller
	// just had stale state
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestResolve_NotifiesResponseResolved(t *testing.T) {
	// Arrange
	store := newMockStore()
	notifier := newMockNotifier()
	service := NewService(store, nil, notifier, DefaultConfig())

	id, err := service.Respond(context.Background(), "etl-nightly", "Alice", "")
	require.NoError(t, err)
	waitForNotification(t, notifier.started)

	// Act
	_, err = service.Resolve(context.Background(), id)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "etl-nightly", waitForNotification(t, notifier.resolved))
}

func TestResolve_SucceedsWhenNotifierFails(t *testing.T) {
	// Arrange
	store := newMockStore()
	notifier := newMockNotifier()
	notifier.err = errors.New("receiver down")
	service := NewService(store, nil, notifier, DefaultConfig())

	id, err := service.Respond(context.Background(), "etl-nightly", "Alice", "")
	require.NoError(t, err)
	waitForNotification(t, notifier.started)

	// Act
	duration, err := service.Resolve(context.Background(), id)

	// Assert: notification failure never rolls back the transition
	require.NoError(t, err)
	assert.GreaterOrEqual(t, duration, int64(0))

	inc, _ := store.GetIncident(context.Background(), id)
	assert.False(t, inc.IsOpen())
}

func TestSetPriority_RejectsInvalid(t *testing.T) {
	store := newMockStore()
	service := newTestService(store)

	err := service.SetPriority(context.Background(), 1, "P9")
	assert.Error(t, err)
}

func TestSetPriority_ClosedIncident(t *testing.T) {
	// Arrange
	store := newMockStore()
	service := newTestService(store)

	id, err := service.Respond(context.Background(), "etl-nightly", "Alice", "")
	require.NoError(t, err)
	_, err = service.Resolve(context.Background(), id)
	require.NoError(t, err)

	// Act
	err = service.SetPriority(context.Background(), id, domain.PriorityP1)

	// Assert
	assert.ErrorIs(t, err, ErrIncidentClosed)
}

func TestActiveIncidents_SlowResponseFlag(t *testing.T) {
	// Arrange
	store := newMockStore()
	service := NewService(store, nil, nil, Config{SlowResponseThreshold: 20 * time.Second})

	t0 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	clock := t0
	service.now = func() time.Time { return clock }

	// slow: unclaimed, older than threshold
	_, err := store.OpenIncident(context.Background(), "slow-job", "Critical", t0.Add(-30*time.Second))
	require.NoError(t, err)
	// fresh: unclaimed, within threshold
	_, err = store.OpenIncident(context.Background(), "fresh-job", "Error", t0.Add(-5*time.Second))
	require.NoError(t, err)
	// claimed: old but someone is on it
	res, err := store.OpenIncident(context.Background(), "claimed-job", "Critical", t0.Add(-5*time.Minute))
	require.NoError(t, err)
	require.NoError(t, store.ClaimIncident(context.Background(), res.IncidentID, "Alice", domain.DefaultPriority, t0))

	// Act
	active, err := service.ActiveIncidents(context.Background())

	// Assert
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.True(t, active["slow-job"].SlowResponse)
	assert.False(t, active["fresh-job"].SlowResponse)
	assert.False(t, active["claimed-job"].SlowResponse)
}

func TestSyncStatuses_StoreError(t *testing.T) {
	// Arrange
	store := newMockStore()
	store.openErr = errors.New("database down")
	service := newTestService(store)

	// Act
	err := service.SyncStatuses(context.Background(), []domain.JobStatus{
		{Name: "etl-nightly", Status: "Critical"},
	})

	// Assert
	assert.Error(t, err)
}
