package library

import (
	"github.com/nbd-wtf/go-nostr"
)

func GetFirstTag(e nostr.Event, startsWith string) (string, bool) {
	for _, tag := range e.Tags {
		if tag.StartsWith([]string{startsWith}) {
			if len(tag) < 2 {
				return "", false
			}
			return tag.Value(), true
		}
	}
	return "", false
}

// GetOperation returns the value of the op tag, e.g. "identity.addKey".
func GetOperation(e nostr.Event) (string, bool) {
	return GetFirstTag(e, "op")
}
