package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"
)

const defaultPublishInterval = 30 * time.Second

// CycleOutcome classifies one publish cycle.
type CycleOutcome string

// Publish cycle outcomes.
const (
	CycleIdle      CycleOutcome = "idle"
	CycleBusy      CycleOutcome = "busy"
	CycleFailed    CycleOutcome = "failed"
	CyclePublished CycleOutcome = "published"
)

// ErrPublisherStarted is returned by a second Start call.
var ErrPublisherStarted = errors.New("realtime: publisher already started")

// PublisherConfig describes the dependencies of the periodic publisher.
type PublisherConfig struct {
	Registry  *Registry
	Snapshots SnapshotSource
	Interval  time.Duration
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Publisher broadcasts a periodic_update on a fixed schedule while clients are connected.
type Publisher struct {
	registry  *Registry
	snapshots SnapshotSource
	interval  time.Duration
	clock     func() time.Time
	logger    *zap.Logger
	started   atomic.Bool
	inFlight  atomic.Bool
}

// NewPublisher constructs a publisher.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.Registry == nil {
		return nil, errMissingRegistry
	}
	if cfg.Snapshots == nil {
		return nil, errMissingSnapshots
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPublishInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		registry:  cfg.Registry,
		snapshots: cfg.Snapshots,
		interval:  interval,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Start schedules RunCycle every interval until ctx is cancelled. Only the first call succeeds.
func (p *Publisher) Start(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrPublisherStarted
	}
	scheduler := cron.New()
	if err := scheduler.AddFunc(fmt.Sprintf("@every %s", p.interval), func() {
		p.RunCycle(ctx)
	}); err != nil {
		p.started.Store(false)
		return fmt.Errorf("schedule periodic publisher: %w", err)
	}
	scheduler.Start()
	p.logger.Info("periodic publisher started", zap.Duration("interval", p.interval))

	go func() {
		<-ctx.Done()
		scheduler.Stop()
		p.logger.Info("periodic publisher stopped")
	}()
	return nil
}

// RunCycle performs one publish cycle. Failures are logged and reported through the outcome only.
func (p *Publisher) RunCycle(ctx context.Context) CycleOutcome {
	outcome := p.runCycle(ctx)
	publishCyclesTotal.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (p *Publisher) runCycle(ctx context.Context) CycleOutcome {
	if ctx.Err() != nil || p.registry.Len() == 0 {
		return CycleIdle
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Debug("periodic publish skipped; previous cycle still running")
		return CycleBusy
	}
	defer p.inFlight.Store(false)

	counts, err := p.snapshots.LikeCounts(ctx)
	if err != nil {
		p.logger.Error("periodic like snapshot failed", zap.Error(err))
		return CycleFailed
	}
	delivered := p.registry.Broadcast(NewPeriodicUpdate(counts, p.registry.ActiveUsers(), p.clock()))
	p.logger.Debug("periodic update broadcast", zap.Int("delivered", delivered))
	return CyclePublished
}
