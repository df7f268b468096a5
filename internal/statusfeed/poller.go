package statusfeed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/jobwatch/internal/domain"
)

// Feed fetches the current job statuses. Implemented by *Client.
type Feed interface {
	Fetch(ctx context.Context) ([]domain.JobStatus, error)
}

// SyncTarget receives each successful poll cycle. Implemented by the
// incident lifecycle engine.
type SyncTarget interface {
	SyncStatuses(ctx context.Context, jobs []domain.JobStatus) error
}

// PollerConfig contains poller configuration.
type PollerConfig struct {
	Interval time.Duration
}

// DefaultPollerConfig returns default poller configuration.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{Interval: 10 * time.Second}
}

// Poller refreshes job statuses on a fixed schedule, decoupled from
// request handling. Readers get the last successful snapshot with a
// staleness marker; a feed outage never takes the service down.
type Poller struct {
	config PollerConfig
	feed   Feed
	engine SyncTarget

	mu          sync.RWMutex
	lastKnown   []domain.JobStatus
	statusIndex map[string]string
	lastUpdated time.Time
	stale       bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPoller creates a new status feed poller.
func NewPoller(config PollerConfig, feed Feed, engine SyncTarget) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultPollerConfig().Interval
	}
	return &Poller{
		config:      config,
		feed:        feed,
		engine:      engine,
		statusIndex: make(map[string]string),
		stale:       true,
		stopCh:      make(chan struct{}),
	}
}

// Bind sets the sync target. Must be called before Start; the engine
// needs the poller as its status source, so the two are wired in two
// steps.
func (p *Poller) Bind(engine SyncTarget) {
	p.engine = engine
}

// Start launches the polling loop. The first cycle runs immediately.
func (p *Poller) Start(ctx context.Context) {
	slog.Info("starting status feed poller", "interval", p.config.Interval)

	p.wg.Add(1)
	go p.run(ctx)
}

// Stop gracefully stops the poller.
func (p *Poller) Stop() {
	close(p.stopCh)
	p.wg.Wait()
	slog.Info("status feed poller stopped")
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	p.poll(ctx)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	jobs, err := p.feed.Fetch(ctx)
	if err != nil {
		feedPollFailures.Inc()
		p.markStale()
		slog.Warn("status feed poll failed, serving last-known statuses", "error", err)
		return
	}

	p.update(jobs)
	feedPolls.Inc()

	if p.engine == nil {
		return
	}
	if err := p.engine.SyncStatuses(ctx, jobs); err != nil {
		slog.Error("status sync failed", "error", err)
	}
}

func (p *Poller) update(jobs []domain.JobStatus) {
	index := make(map[string]string, len(jobs))
	for _, job := range jobs {
		index[job.Name] = job.Status
	}

	p.mu.Lock()
	p.lastKnown = jobs
	p.statusIndex = index
	p.lastUpdated = time.Now()
	p.stale = false
	p.mu.Unlock()
}

func (p *Poller) markStale() {
	p.mu.Lock()
	p.stale = true
	p.mu.Unlock()
}

// StatusFor returns the last-known raw status of a job.
func (p *Poller) StatusFor(name string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	status, ok := p.statusIndex[name]
	return status, ok
}

// Snapshot returns the last successful poll result and whether it is
// stale (the most recent poll failed or none has succeeded yet).
func (p *Poller) Snapshot() ([]domain.JobStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	jobs := make([]domain.JobStatus, len(p.lastKnown))
	copy(jobs, p.lastKnown)
	return jobs, p.stale
}

// LastUpdated returns when the snapshot was last refreshed.
func (p *Poller) LastUpdated() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastUpdated
}
