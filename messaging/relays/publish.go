package relays

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"keyholder/engine/library"
)

// PublishToRelays sends events to every relay in urls and waits until each
// relay has been tried.
func PublishToRelays(ctx context.Context, events []nostr.Event, urls []string) {
	var wg = &deadlock.WaitGroup{}
	for _, url := range urls {
		wg.Add(1)
		go func(url string, events []nostr.Event) {
			defer wg.Done()
			relay, err := nostr.RelayConnect(ctx, url)
			if err != nil {
				library.LogCLI(fmt.Sprintf("could not connect to relay %s: %s", url, err), 2)
				return
			}
			defer relay.Close()
			for _, event := range events {
				if _, err := relay.Publish(ctx, event); err != nil {
					library.LogCLI(fmt.Sprintf("could not publish %s to relay %s: %s", event.ID, url, err), 2)
				}
			}
		}(url, events)
	}
	wg.Wait()
}

// publishQueue is how many events may wait for a relay before senders block.
const publishQueue = 256

type publishFunc func(ctx context.Context, e nostr.Event) error

// StartPublisher connects to every relay in urls and returns a channel; each
// event sent on it is published to all connected relays, in the order it was
// sent. Relays that cannot be reached are skipped. The publisher stops when
// ctx is done.
func StartPublisher(ctx context.Context, urls []string) chan<- nostr.Event {
	sendChan := make(chan nostr.Event, publishQueue)
	var sinks []publishFunc
	for _, url := range urls {
		relay, err := nostr.RelayConnect(ctx, url)
		if err != nil {
			library.LogCLI(fmt.Sprintf("could not connect to relay %s: %s", url, err), 2)
			continue
		}
		go func() {
			<-ctx.Done()
			relay.Close()
		}()
		sinks = append(sinks, func(ctx context.Context, e nostr.Event) error {
			_, err := relay.Publish(ctx, e)
			if err != nil {
				return fmt.Errorf("relay %s: %w", relay.URL, err)
			}
			return nil
		})
	}
	go fanOut(ctx, sendChan, sinks)
	return sendChan
}

// fanOut copies each event from sendChan to one queue per sink. Every sink
// publishes from its own goroutine, one event at a time, so a slow relay
// delays only itself and never reorders its own events.
func fanOut(ctx context.Context, sendChan <-chan nostr.Event, sinks []publishFunc) {
	queues := make([]chan nostr.Event, len(sinks))
	for i, sink := range sinks {
		queues[i] = make(chan nostr.Event, publishQueue)
		go func(sink publishFunc, queue <-chan nostr.Event) {
			for {
				select {
				case e := <-queue:
					pubCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
					if err := sink(pubCtx, e); err != nil {
						library.LogCLI(fmt.Sprintf("could not publish %s: %s", e.ID, err), 2)
					}
					cancel()
				case <-ctx.Done():
					return
				}
			}
		}(sink, queues[i])
	}
	for {
		select {
		case e := <-sendChan:
			for _, queue := range queues {
				select {
				case queue <- e:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
