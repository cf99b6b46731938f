package identity

import (
	"fmt"
	"math/big"

	"github.com/sasha-s/go-deadlock"
	"golang.org/x/exp/slices"
	"keyholder/engine/library"
	"keyholder/engine/metrics"
	"keyholder/state/claims"
	"keyholder/state/executions"
	"keyholder/state/keys"
	"keyholder/state/payments"
)

// Identity is one identity account. Every entry point runs to completion under
// the identity's mutex, so entry points are totally ordered and a conflicting
// second request (e.g. a repeated approval) sees the first one's result.
type Identity struct {
	address    library.Address
	executor   library.CallExecutor
	keys       *keys.Registry
	claims     *claims.Registry
	executions *executions.Pipeline
	payments   *payments.Gateway

	subscribers []Subscriber
	mutex       *deadlock.Mutex
}

// New creates the identity at address. creator becomes its only key, with
// MANAGEMENT purpose and ECDSA type.
func New(address library.Address, creator library.KeyID, executor library.CallExecutor) *Identity {
	registry := keys.NewRegistry(creator)
	return &Identity{
		address:    address,
		executor:   executor,
		keys:       registry,
		claims:     claims.NewRegistry(registry),
		executions: executions.NewPipeline(address, registry, executor),
		payments:   payments.NewGateway(address, registry, executor),
		mutex:      &deadlock.Mutex{},
	}
}

func (i *Identity) Address() library.Address {
	return i.address
}

func (i *Identity) Subscribe(s Subscriber) {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	i.subscribers = append(i.subscribers, s)
}

func (i *Identity) AddKey(caller, id library.KeyID, purpose keys.Purpose, keyType keys.Type) error {
	return i.apply("addKey", func() ([]Notification, error) {
		added, err := i.keys.Add(caller, id, purpose, keyType)
		if err != nil || !added {
			return nil, err
		}
		k := i.keys.Get(id, purpose)
		return []Notification{{Event: KeyAdded, Key: id, Purpose: purpose, KeyType: k.Type}}, nil
	})
}

func (i *Identity) RemoveKey(caller, id library.KeyID, purpose keys.Purpose) error {
	return i.apply("removeKey", func() ([]Notification, error) {
		k, err := i.keys.Remove(caller, id, purpose)
		if err != nil {
			return nil, err
		}
		return []Notification{{Event: KeyRemoved, Key: id, Purpose: purpose, KeyType: k.Type}}, nil
	})
}

func (i *Identity) GetKey(id library.KeyID, purpose keys.Purpose) keys.Key {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.keys.Get(id, purpose)
}

func (i *Identity) KeyPurposes(id library.KeyID) []keys.Purpose {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.keys.PurposesOf(id)
}

func (i *Identity) KeysByPurpose(purpose keys.Purpose) []library.KeyID {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.keys.ByPurpose(purpose)
}

func (i *Identity) KeyHasPurpose(id library.KeyID, purpose keys.Purpose) bool {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.keys.HasPurpose(id, purpose)
}

// Execute requests an outbound call. A MANAGEMENT caller executes it at once;
// an ACTION caller gets back the id of a queued execution.
func (i *Identity) Execute(caller library.KeyID, target library.Address, value *big.Int, data []byte) (result executions.Result, err error) {
	err = i.apply("execute", func() ([]Notification, error) {
		result, err = i.executions.Request(caller, target, value, data)
		if err != nil {
			return nil, err
		}
		if !result.Queued {
			metrics.TransfersTotal.WithLabelValues("direct").Inc()
			return nil, nil
		}
		metrics.ExecutionsPending.Inc()
		return []Notification{{Event: ExecutionRequested, ExecutionID: result.ID, Target: target, Value: valueOrZero(value)}}, nil
	})
	return result, err
}

// Approve decides a queued execution. A failed call still closes the
// execution; the failure is returned as ExecutionFailed.
func (i *Identity) Approve(caller library.KeyID, id uint64, decision bool) error {
	return i.apply("approve", func() ([]Notification, error) {
		rec, err := i.executions.Approve(caller, id, decision)
		if err != nil && !library.IsKind(err, library.KindExecutionFailed) {
			return nil, err
		}
		metrics.ExecutionsPending.Dec()
		notes := []Notification{{Event: Approved, ExecutionID: id, Decision: decision}}
		if rec.Executed {
			metrics.TransfersTotal.WithLabelValues("approved").Inc()
			notes = append(notes, Notification{Event: Executed, ExecutionID: id, Target: rec.Target, Value: rec.Value, Failed: rec.Failed})
		}
		return notes, err
	})
}

func (i *Identity) GetExecution(id uint64) (executions.Execution, bool) {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.executions.Get(id)
}

func (i *Identity) PendingExecutions() []executions.Execution {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.executions.Pending()
}

func (i *Identity) AddClaim(caller library.KeyID, c claims.Claim) (id library.Hash, err error) {
	err = i.apply("addClaim", func() ([]Notification, error) {
		var changed bool
		id, changed, err = i.claims.Add(caller, c)
		if err != nil {
			return nil, err
		}
		event := ClaimAdded
		if changed {
			event = ClaimChanged
		}
		return []Notification{{Event: event, ClaimID: id, Topic: c.Topic}}, nil
	})
	return id, err
}

func (i *Identity) RemoveClaim(caller library.KeyID, id library.Hash) error {
	return i.apply("removeClaim", func() ([]Notification, error) {
		c, err := i.claims.Remove(caller, id)
		if err != nil {
			return nil, err
		}
		return []Notification{{Event: ClaimRemoved, ClaimID: id, Topic: c.Topic}}, nil
	})
}

func (i *Identity) GetClaim(id library.Hash) claims.Claim {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.claims.Get(id)
}

func (i *Identity) ClaimIDsByTopic(topic uint64) []library.Hash {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.claims.IDsByTopic(topic)
}

// VerifyClaim checks the stored claim's signature. It never changes state.
func (i *Identity) VerifyClaim(id library.Hash) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.claims.Verify(i.address, id)
}

// ExecutePayment is the restricted direct transfer for PAYMENT keys.
func (i *Identity) ExecutePayment(caller library.KeyID, target library.Address, value *big.Int) error {
	return i.apply("executePayment", func() ([]Notification, error) {
		p, err := i.payments.Pay(caller, target, value)
		if err != nil {
			return nil, err
		}
		metrics.TransfersTotal.WithLabelValues("payment").Inc()
		return []Notification{{Event: PaymentExecuted, Key: p.Payer, Target: p.Target, Value: p.Value}}, nil
	})
}

func (i *Identity) Balance() *big.Int {
	return i.executor.Balance(i.address)
}

// Receive lets the identity accept plain value transfers from the ledger.
// Calls carrying data are refused. It takes no lock: the identity may be
// paying itself while inside an entry point.
func (i *Identity) Receive(from library.Address, value *big.Int, data []byte) error {
	if len(data) > 0 {
		return fmt.Errorf("identity %s does not accept calldata", i.address.Hex())
	}
	return nil
}

func (i *Identity) Mapped() Mapped {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return Mapped{
		Address:    i.address,
		Balance:    i.executor.Balance(i.address),
		Keys:       i.keys.Mapped(),
		Claims:     i.claims.Mapped(),
		Executions: i.executions.Mapped(),
	}
}

// apply runs fn under the identity lock and delivers the resulting
// notifications once the lock is released.
func (i *Identity) apply(op string, fn func() ([]Notification, error)) error {
	i.mutex.Lock()
	notes, err := fn()
	subscribers := slices.Clone(i.subscribers)
	i.mutex.Unlock()

	metrics.OperationsTotal.WithLabelValues(op, metrics.Outcome(err)).Inc()
	switch library.KindOf(err) {
	case "":
		if err != nil {
			library.LogCLI(err.Error(), 2)
		}
	case library.KindExecutionFailed:
		library.LogCLI(err.Error(), 2)
	default:
		library.LogCLI(err.Error(), 3)
	}
	for _, n := range notes {
		n.Identity = i.address
		for _, s := range subscribers {
			s(n)
		}
	}
	return err
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
