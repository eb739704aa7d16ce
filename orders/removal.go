package orders

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plateful/plateful-client/types"
)

// Phase is the removal lifecycle of one delivered order on the operator
// dashboard: Active -> PendingRemoval(deadline) -> Removed. The window is
// a UX affordance only; it never delays the status-change request.
type Phase int

const (
	PhaseActive Phase = iota
	PhasePendingRemoval
	PhaseRemoved
)

func (p Phase) String() string {
	switch p {
	case PhasePendingRemoval:
		return "pending-removal"
	case PhaseRemoved:
		return "removed"
	}
	return "active"
}

type pending struct {
	deadline time.Time
	timer    types.TimerHandle
}

// RemovalQueue drives the grace window with a single injected clock
// instead of ad hoc timers, so it runs under a virtual clock in tests.
// onRemove fires once per order after the grace elapses and performs the
// second local write that drops the record from the active list.
type RemovalQueue struct {
	clock    types.Clock
	grace    time.Duration
	logger   types.Logger
	onRemove func(orderID uuid.UUID)

	mu      sync.Mutex
	items   map[uuid.UUID]*pending
	removed map[uuid.UUID]struct{}
}

func NewRemovalQueue(clock types.Clock, grace time.Duration, logger types.Logger, onRemove func(orderID uuid.UUID)) *RemovalQueue {
	if grace <= 0 {
		grace = 2 * time.Second
	}

	return &RemovalQueue{
		clock:    clock,
		grace:    grace,
		logger:   logger,
		onRemove: onRemove,
		items:    make(map[uuid.UUID]*pending),
		removed:  make(map[uuid.UUID]struct{}),
	}
}

// Mark enters PendingRemoval without a deadline: the optimistic
// delivered write happened, the server has not confirmed yet. The order
// stays visible in the active list.
func (q *RemovalQueue) Mark(orderID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, done := q.removed[orderID]; done {
		return
	}
	if _, ok := q.items[orderID]; ok {
		return
	}

	q.items[orderID] = &pending{}
}

// Confirm starts the grace countdown after the server accepted the
// status change.
func (q *RemovalQueue) Confirm(orderID uuid.UUID) {
	q.mu.Lock()

	item, ok := q.items[orderID]
	if !ok || item.timer != nil {
		q.mu.Unlock()
		return
	}

	item.deadline = q.clock.Now().Add(q.grace)
	item.timer = q.clock.AfterFunc(q.grace, func() {
		q.fire(orderID)
	})
	q.mu.Unlock()

	q.logger.Debug("Delivered order scheduled for removal",
		zap.String("order_id", orderID.String()),
		zap.Duration("grace", q.grace))
}

// Cancel aborts the window after a failed write; the order is active
// again once the rollback settles.
func (q *RemovalQueue) Cancel(orderID uuid.UUID) {
	q.mu.Lock()
	item, ok := q.items[orderID]
	if ok {
		delete(q.items, orderID)
	}
	q.mu.Unlock()

	if ok && item.timer != nil {
		item.timer.Stop()
	}
}

func (q *RemovalQueue) Phase(orderID uuid.UUID) Phase {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, done := q.removed[orderID]; done {
		return PhaseRemoved
	}
	if _, ok := q.items[orderID]; ok {
		return PhasePendingRemoval
	}
	return PhaseActive
}

func (q *RemovalQueue) fire(orderID uuid.UUID) {
	q.mu.Lock()
	if _, ok := q.items[orderID]; !ok {
		q.mu.Unlock()
		return
	}
	delete(q.items, orderID)
	q.removed[orderID] = struct{}{}
	q.mu.Unlock()

	if q.onRemove != nil {
		q.onRemove(orderID)
	}
}
