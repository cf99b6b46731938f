package eventcatcher

import (
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

func signed(t *testing.T, kind int) *nostr.Event {
	t.Helper()
	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		t.Fatalf("GetPublicKey: %v", err)
	}
	e := &nostr.Event{
		PubKey:    pk,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      kind,
		Tags:      nostr.Tags{nostr.Tag{"op", "identity.create"}},
	}
	if err := e.Sign(sk); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return e
}

func TestAccept(t *testing.T) {
	seen := newSeenSet()
	e := signed(t, 7250)
	if !accept(e, 7250, seen) {
		t.Fatalf("valid event rejected")
	}
	if accept(e, 7250, seen) {
		t.Fatalf("duplicate event accepted")
	}
	if accept(signed(t, 1), 7250, seen) {
		t.Fatalf("event of another kind accepted")
	}
	forged := signed(t, 7250)
	forged.Content = "changed after signing"
	if accept(forged, 7250, seen) {
		t.Fatalf("forged event accepted")
	}
}
