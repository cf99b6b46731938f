package eventconductor

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"keyholder/engine/actors"
	"keyholder/engine/library"
	"keyholder/engine/metrics"
	"keyholder/messaging/eventcatcher"
	"keyholder/state/identity"
)

// EventHandler applies one operation event.
type EventHandler interface {
	HandleEvent(event nostr.Event) (identity.Mapped, error)
}

// Start subscribes to operation events of kind on the relay at url and feeds
// them to handler until the engine shuts down.
func Start(handler EventHandler, url string, kind int) {
	eventChan := make(chan nostr.Event)
	go eventcatcher.SubscribeToOperations(url, kind, eventChan, actors.GetTerminateChan())
	actors.GetWaitGroup().Add(1)
	go func() {
		defer actors.GetWaitGroup().Done()
		handleEvents(handler, eventChan, actors.GetTerminateChan())
	}()
}

// handleEvents applies events one at a time, in the order they arrived. Events
// are buffered as they come in so the relay subscription is never held up by
// a slow handler.
func handleEvents(handler EventHandler, eventChan <-chan nostr.Event, terminate <-chan struct{}) {
	stack := library.NewEventStack(16)
	stackLock := &deadlock.Mutex{}
	ready := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case event := <-eventChan:
				stackLock.Lock()
				stack.Push(&event)
				stackLock.Unlock()
				select {
				case ready <- struct{}{}:
				default:
				}
			case <-terminate:
				return
			}
		}
	}()
	for {
		select {
		case <-ready:
			for {
				stackLock.Lock()
				next, ok := stack.Pop()
				stackLock.Unlock()
				if !ok {
					break
				}
				apply(handler, *next)
			}
		case <-terminate:
			return
		}
	}
}

func apply(handler EventHandler, event nostr.Event) {
	m, err := handler.HandleEvent(event)
	metrics.EventsHandled.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		library.LogCLI(fmt.Sprintf("event %s: %s", event.ID, err), 3)
		return
	}
	library.LogCLI(fmt.Sprintf("event %s applied to %s", event.ID, m.Address.Hex()), 4)
}
