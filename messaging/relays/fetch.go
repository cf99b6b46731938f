package relays

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/exp/slices"
	"keyholder/engine/library"
)

// FetchEvents collects stored events matching filters from every relay in
// urls, waiting at most timeout per relay. The result is de-duplicated and
// ordered by creation time, then id.
func FetchEvents(ctx context.Context, urls []string, filters nostr.Filters, timeout time.Duration) []nostr.Event {
	events := make(map[string]nostr.Event)
	eventsMu := &deadlock.Mutex{}
	wait := &deadlock.WaitGroup{}
	for _, url := range urls {
		wait.Add(1)
		go func(url string) {
			defer wait.Done()
			relay, err := nostr.RelayConnect(ctx, url)
			if err != nil {
				library.LogCLI(err.Error(), 3)
				return
			}
			defer relay.Close()
			ctxsub, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			sub, err := relay.Subscribe(ctxsub, filters)
			if err != nil {
				library.LogCLI(err.Error(), 2)
				return
			}
			defer sub.Unsub()
			for {
				select {
				case ev, ok := <-sub.Events:
					if !ok || ev == nil {
						return
					}
					if valid, _ := ev.CheckSignature(); !valid {
						continue
					}
					eventsMu.Lock()
					events[ev.ID] = *ev
					eventsMu.Unlock()
				case <-sub.EndOfStoredEvents:
					return
				case <-ctxsub.Done():
					return
				}
			}
		}(url)
	}
	wait.Wait()
	out := make([]nostr.Event, 0, len(events))
	for _, e := range events {
		out = append(out, e)
	}
	SortEvents(out)
	return out
}

// SortEvents orders events by creation time, breaking ties by id.
func SortEvents(events []nostr.Event) {
	slices.SortFunc(events, func(a, b nostr.Event) int {
		if a.CreatedAt != b.CreatedAt {
			if a.CreatedAt < b.CreatedAt {
				return -1
			}
			return 1
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
