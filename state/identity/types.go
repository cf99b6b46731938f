package identity

import (
	"math/big"

	"keyholder/engine/library"
	"keyholder/state/claims"
	"keyholder/state/executions"
	"keyholder/state/keys"
)

// Event names a state change an identity announces to its subscribers.
type Event string

const (
	KeyAdded           Event = "KeyAdded"
	KeyRemoved         Event = "KeyRemoved"
	ExecutionRequested Event = "ExecutionRequested"
	Approved           Event = "Approved"
	Executed           Event = "Executed"
	ClaimAdded         Event = "ClaimAdded"
	ClaimChanged       Event = "ClaimChanged"
	ClaimRemoved       Event = "ClaimRemoved"
	PaymentExecuted    Event = "PaymentExecuted"
)

// Notification carries the fields relevant to its Event, the rest are zero.
// ExecutionRequested always carries the new ExecutionID, which is what an
// approver needs.
type Notification struct {
	Event    Event
	Identity library.Address

	Key     library.KeyID
	Purpose keys.Purpose
	KeyType keys.Type

	ExecutionID uint64
	Target      library.Address
	Value       *big.Int
	Decision    bool
	Failed      bool

	ClaimID library.Hash
	Topic   uint64
}

// Subscriber receives notifications synchronously, after the identity has
// finished the operation and released its lock. It may call back into the
// identity.
type Subscriber func(Notification)

// Mapped is a point in time snapshot of one identity.
type Mapped struct {
	Address    library.Address
	Balance    *big.Int
	Keys       keys.Mapped
	Claims     claims.Mapped
	Executions executions.Mapped
}
