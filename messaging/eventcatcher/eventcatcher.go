package eventcatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"keyholder/engine/library"
	"keyholder/messaging/relays"
)

type seenSet struct {
	ids   map[string]struct{}
	mutex *deadlock.Mutex
}

func newSeenSet() *seenSet {
	return &seenSet{ids: make(map[string]struct{}), mutex: &deadlock.Mutex{}}
}

// mark records id and reports whether it is new.
func (s *seenSet) mark(id string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// SubscribeToOperations streams operation events of the given kind from the
// relay at url into eChan until terminate is closed. Stored events are
// delivered oldest first once the relay signals the end of stored events, so
// a fresh engine rebuilds the same state; live events follow in arrival
// order. The subscription is re-established after a dropped connection or a
// system sleep, and events already delivered are not delivered again.
func SubscribeToOperations(url string, kind int, eChan chan<- nostr.Event, terminate <-chan struct{}) {
	sleepChan := make(chan bool)
	sleeper(sleepChan)
	seen := newSeenSet()
	for {
		if !catch(url, kind, seen, eChan, terminate, sleepChan) {
			return
		}
		select {
		case <-terminate:
			return
		case <-time.After(5 * time.Second):
		}
		library.LogCLI("Restarting Eventcatcher", 4)
	}
}

// catch runs one subscription and reports whether it should be restarted.
func catch(url string, kind int, seen *seenSet, eChan chan<- nostr.Event, terminate <-chan struct{}, sleepChan chan bool) bool {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		library.LogCLI(fmt.Sprintf("could not connect to relay %s: %s", url, err), 2)
		return true
	}
	defer relay.Close()
	library.LogCLI("Connecting to "+relay.URL, 4)
	sub, err := relay.Subscribe(ctx, nostr.Filters{{Kinds: []int{kind}}})
	if err != nil {
		library.LogCLI(err.Error(), 2)
		return true
	}

	deliver := func(e nostr.Event) bool {
		select {
		case eChan <- e:
			return true
		case <-terminate:
			return false
		}
	}
	var stored []nostr.Event
	eose := sub.EndOfStoredEvents
	for {
		select {
		case <-sleepChan:
			library.LogCLI("system sleep detected, reconnecting to "+url, 2)
			return true
		case <-eose:
			eose = nil
			relays.SortEvents(stored)
			for _, e := range stored {
				if !deliver(e) {
					return false
				}
			}
			stored = nil
		case ev, ok := <-sub.Events:
			if !ok || ev == nil {
				library.LogCLI("Terminating connection to relay", 3)
				return true
			}
			if !accept(ev, kind, seen) {
				continue
			}
			if eose != nil {
				stored = append(stored, *ev)
				continue
			}
			if !deliver(*ev) {
				return false
			}
		case <-terminate:
			return false
		}
	}
}

func accept(ev *nostr.Event, kind int, seen *seenSet) bool {
	if ev.Kind != kind {
		return false
	}
	if ok, _ := ev.CheckSignature(); !ok {
		library.LogCLI("dropping event with invalid signature "+ev.ID, 3)
		return false
	}
	return seen.mark(ev.ID)
}
