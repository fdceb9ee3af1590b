package app

import (
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
)

type pendingQueue struct {
	since time.Time
	items []domain.Signal
}

// SignalBuffer holds signals that arrived before their peer connection exists.
// Order is preserved per remote id only.
type SignalBuffer struct {
	limit  int
	ttl    time.Duration
	now    func() time.Time
	queues map[domain.ParticipantID]*pendingQueue
}

// NewSignalBuffer bounds each queue to limit signals and ttl age; zero disables a bound.
func NewSignalBuffer(limit int, ttl time.Duration) *SignalBuffer {
	return &SignalBuffer{
		limit:  limit,
		ttl:    ttl,
		now:    time.Now,
		queues: make(map[domain.ParticipantID]*pendingQueue),
	}
}

// Enqueue appends sig for id. It returns false when the queue is full and sig was dropped.
func (b *SignalBuffer) Enqueue(id domain.ParticipantID, sig domain.Signal) bool {
	q, ok := b.queues[id]
	if !ok {
		q = &pendingQueue{since: b.now()}
		b.queues[id] = q
	}
	if b.limit > 0 && len(q.items) >= b.limit {
		return false
	}
	q.items = append(q.items, sig)
	return true
}

// DrainAndClear returns and forgets everything queued for id.
func (b *SignalBuffer) DrainAndClear(id domain.ParticipantID) []domain.Signal {
	q, ok := b.queues[id]
	if !ok {
		return nil
	}
	delete(b.queues, id)
	return q.items
}

func (b *SignalBuffer) Clear(id domain.ParticipantID) { delete(b.queues, id) }

func (b *SignalBuffer) Len(id domain.ParticipantID) int {
	if q, ok := b.queues[id]; ok {
		return len(q.items)
	}
	return 0
}

// Expire drops queues whose first signal is older than ttl.
func (b *SignalBuffer) Expire() []domain.ParticipantID {
	if b.ttl <= 0 {
		return nil
	}
	var dropped []domain.ParticipantID
	deadline := b.now().Add(-b.ttl)
	for id, q := range b.queues {
		if q.since.Before(deadline) {
			delete(b.queues, id)
			dropped = append(dropped, id)
		}
	}
	return dropped
}

func (b *SignalBuffer) Reset() { clear(b.queues) }
