package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultNotifyBuffer = 64

type likeEvent struct {
	employeeID string
	liked      bool
	occurredAt time.Time
}

// NotifierConfig describes the dependencies of the like notifier.
type NotifierConfig struct {
	Registry *Registry
	Buffer   int
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Notifier queues like events from committed submissions and broadcasts them from Run.
type Notifier struct {
	registry *Registry
	queue    chan likeEvent
	clock    func() time.Time
	logger   *zap.Logger
}

// NewNotifier constructs a notifier with a bounded queue.
func NewNotifier(cfg NotifierConfig) (*Notifier, error) {
	if cfg.Registry == nil {
		return nil, errMissingRegistry
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = defaultNotifyBuffer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		registry: cfg.Registry,
		queue:    make(chan likeEvent, buffer),
		clock:    clock,
		logger:   logger,
	}, nil
}

// NotifyLike enqueues a like_update without blocking. A full queue drops the event.
func (n *Notifier) NotifyLike(employeeID string, liked bool) {
	event := likeEvent{employeeID: employeeID, liked: liked, occurredAt: n.clock()}
	select {
	case n.queue <- event:
	default:
		notificationsDroppedTotal.Inc()
		n.logger.Warn("like notification dropped; queue full",
			zap.String("employee_id", employeeID),
			zap.Bool("liked", liked))
	}
}

// Run broadcasts queued events until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-n.queue:
			delivered := n.registry.Broadcast(NewLikeUpdate(event.employeeID, event.liked, event.occurredAt))
			n.logger.Debug("like update broadcast",
				zap.String("employee_id", event.employeeID),
				zap.Int("delivered", delivered))
		}
	}
}
