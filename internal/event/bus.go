package event

import (
	"time"
)

type (
	bus struct {
		q chan Queueable
	}

	// Queueable is a unit of deferred work. The worker discards expired
	// events, re-queues events that are not yet due and keeps re-queueing
	// delivered events until a subscriber marks them processed or dropped.
	Queueable interface {
		Process()
		IsProcessed() bool
		Drop()
		IsDropped() bool
		Due() bool
		Expired() bool
		Type() string
	}

	Base struct {
		processed bool
		dropped   bool
		dueAt     time.Time
		expireAt  time.Time
		eventType string
	}
)

func CreateBase(eventType string, dueAt, expireAt time.Time) *Base {
	return &Base{
		dueAt:     dueAt,
		expireAt:  expireAt,
		eventType: eventType,
	}
}

func (b *Base) Process() {
	b.processed = true
}

func (b *Base) IsProcessed() bool {
	return b.processed
}

func (b *Base) Drop() {
	b.dropped = true
}

func (b *Base) IsDropped() bool {
	return b.dropped
}

func (b *Base) Due() bool {
	return !time.Now().Before(b.dueAt)
}

func (b *Base) Expired() bool {
	return time.Now().After(b.expireAt)
}

func (b *Base) Type() string {
	return b.eventType
}

var Bus = &bus{q: make(chan Queueable, 100000)}

// NQ enqueues without blocking the caller even when the queue is full.
func (b *bus) NQ(event Queueable) {
	go func() { b.q <- event }()
}

// DQ returns the next event or nil when the queue is empty.
func (b *bus) DQ() Queueable {
	select {
	case q := <-b.q:
		return q
	default:
		return nil
	}
}

func (b *bus) Len() int {
	return len(b.q)
}
