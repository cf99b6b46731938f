package actors

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"keyholder/state/identity"
)

type notificationContent struct {
	Event       string `json:"event"`
	Identity    string `json:"identity"`
	Key         string `json:"key,omitempty"`
	Purpose     string `json:"purpose,omitempty"`
	KeyType     string `json:"keyType,omitempty"`
	ExecutionID uint64 `json:"executionId,omitempty"`
	Target      string `json:"target,omitempty"`
	Value       string `json:"value,omitempty"`
	Decision    *bool  `json:"decision,omitempty"`
	Failed      bool   `json:"failed,omitempty"`
	ClaimID     string `json:"claimId,omitempty"`
	Topic       uint64 `json:"topic,omitempty"`
}

// BuildNotification turns an identity notification into an unsigned event of
// the given kind. The identity and the notification name are tags, everything
// else is in the JSON content.
func BuildNotification(n identity.Notification, kind int) nostr.Event {
	c := notificationContent{Event: string(n.Event), Identity: n.Identity.Hex()}
	tags := nostr.Tags{
		nostr.Tag{"identity", n.Identity.Hex()},
		nostr.Tag{"notification", string(n.Event)},
		// relays only index single letter tags
		nostr.Tag{"t", strings.ToLower(n.Identity.Hex())},
	}
	switch n.Event {
	case identity.KeyAdded, identity.KeyRemoved:
		c.Key = n.Key.Hex()
		c.Purpose = n.Purpose.String()
		c.KeyType = n.KeyType.String()
	case identity.ExecutionRequested, identity.Executed:
		c.ExecutionID = n.ExecutionID
		c.Target = n.Target.Hex()
		c.Failed = n.Failed
		tags = append(tags, nostr.Tag{"execution", strconv.FormatUint(n.ExecutionID, 10)})
	case identity.Approved:
		c.ExecutionID = n.ExecutionID
		decision := n.Decision
		c.Decision = &decision
		tags = append(tags, nostr.Tag{"execution", strconv.FormatUint(n.ExecutionID, 10)})
	case identity.ClaimAdded, identity.ClaimChanged, identity.ClaimRemoved:
		c.ClaimID = n.ClaimID.Hex()
		c.Topic = n.Topic
	case identity.PaymentExecuted:
		c.Key = n.Key.Hex()
		c.Target = n.Target.Hex()
	}
	if n.Value != nil {
		c.Value = n.Value.String()
	}
	content, err := json.Marshal(c)
	if err != nil {
		LogCLI(err.Error(), 1)
	}
	return nostr.Event{
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      kind,
		Tags:      tags,
		Content:   string(content),
	}
}

// SignedNotification builds the notification event and signs it with the
// operator wallet.
func SignedNotification(n identity.Notification) (nostr.Event, error) {
	e := BuildNotification(n, MakeOrGetConfig().GetInt("notificationKind"))
	if err := SignEvent(&e); err != nil {
		return nostr.Event{}, err
	}
	return e, nil
}
