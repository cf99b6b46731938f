package executions

import (
	"math/big"

	"keyholder/engine/library"
)

// Approval is the tri-state decision on a queued execution.
type Approval uint8

const (
	Undecided Approval = iota
	Approved
	Rejected
)

func (a Approval) String() string {
	switch a {
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	}
	return "pending"
}

// Execution is a queued outbound call. Once Executed is set the record never
// changes again.
type Execution struct {
	ID        uint64
	Requester library.KeyID
	Target    library.Address
	Value     *big.Int
	Data      []byte
	Approval  Approval
	Executed  bool
	// Failed is set when the approved call was issued and the executor
	// reported an error.
	Failed bool
}

// State names where the record is in Pending -> {Approved -> Executed | Rejected}.
func (e Execution) State() string {
	switch {
	case e.Executed:
		return "executed"
	case e.Approval == Rejected:
		return "rejected"
	case e.Approval == Approved:
		return "approved"
	}
	return "pending"
}

// Resolved is true once the record has reached a terminal state.
func (e Execution) Resolved() bool {
	return e.Executed || e.Approval == Rejected
}

func (e Execution) clone() Execution {
	c := e
	if e.Value != nil {
		c.Value = new(big.Int).Set(e.Value)
	}
	c.Data = append([]byte(nil), e.Data...)
	return c
}

// Result reports what a request did. Queued is false when the call ran on
// the spot, in which case ID is zero.
type Result struct {
	ID     uint64
	Queued bool
}

type Mapped map[uint64]Execution
