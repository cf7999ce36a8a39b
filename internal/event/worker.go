package event

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/infra"
)

type worker struct {
	subscriptions map[string][]func(event Queueable)
}

var (
	instance = &worker{
		subscriptions: map[string][]func(event Queueable){},
	}
	l = log.WithField("context", "event_worker")
)

// Subscribe registers a handler for an event type. Handlers run on the
// worker goroutine. Registration must happen before RunWorker.
func Subscribe(eventType string, handler func(event Queueable)) {
	instance.subscriptions[eventType] = append(instance.subscriptions[eventType], handler)
}

func RunWorker() context.CancelFunc {
	ctx, cancelFunc := context.WithCancel(context.Background())
	instance.Run(ctx)
	return cancelFunc
}

func (w *worker) Run(ctx context.Context) {
	done := ctx.Done()
	var toProfile atomic.Bool
	profileTicker := time.NewTicker(time.Minute * 5)

	go func() {
		defer profileTicker.Stop()
		for {
			select {
			case <-done:
				return
			case <-profileTicker.C:
				toProfile.Store(true)
			}
		}
	}()

	go infra.GoRecoverable(-1, "event_worker", func() {
		l.Trace("events runner go")
		var event Queueable
		for {
			select {
			case <-done:
				l.Info("shutting down event worker by cancelled context")
				return
			default:
				time.Sleep(1 * time.Millisecond)
				event = Bus.DQ()
				if event == nil {
					continue
				}

				if event.Expired() {
					continue
				}
				if !event.Due() {
					Bus.NQ(event)
					continue
				}

				subscribers, ok := w.subscriptions[event.Type()]
				if !ok {
					Bus.NQ(event)
					continue
				}
				for _, sub := range subscribers {
					sub(event)
					if event.IsDropped() {
						break
					}
				}

				if event.IsDropped() {
					continue
				}
				if !event.IsProcessed() {
					Bus.NQ(event)
				}

				if qlen := Bus.Len(); toProfile.Swap(false) && qlen > 0 {
					l.Debugf("unprocessed queue length: %d", qlen)
				}
			}
		}
	})
}
