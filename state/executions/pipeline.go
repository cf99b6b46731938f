package executions

import (
	"math/big"

	"golang.org/x/exp/slices"
	"keyholder/engine/library"
	"keyholder/state/keys"
)

// Pipeline runs outbound calls for one identity. MANAGEMENT keys execute
// directly; ACTION keys can only queue a request that a MANAGEMENT key must
// approve. Pipeline does no locking, the owning identity serializes access.
type Pipeline struct {
	self      library.Address
	authority keys.Authority
	executor  library.CallExecutor
	lastID    uint64
	records   map[uint64]*Execution
	pending   []uint64
}

func NewPipeline(self library.Address, authority keys.Authority, executor library.CallExecutor) *Pipeline {
	return &Pipeline{
		self:      self,
		authority: authority,
		executor:  executor,
		records:   make(map[uint64]*Execution),
	}
}

// Request asks for a call to target carrying value and data.
func (p *Pipeline) Request(caller library.KeyID, target library.Address, value *big.Int, data []byte) (Result, error) {
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return Result{}, library.NewError(library.KindInvalid, "execute", "value must be non-negative")
	}
	switch {
	case p.authority.HasPurpose(caller, keys.Management):
		if err := p.checkBalance(value, "execute"); err != nil {
			return Result{}, err
		}
		if err := p.call(target, value, data, "execute"); err != nil {
			return Result{}, err
		}
		return Result{}, nil
	case p.authority.HasPurpose(caller, keys.Action):
		p.lastID++
		p.records[p.lastID] = &Execution{
			ID:        p.lastID,
			Requester: caller,
			Target:    target,
			Value:     new(big.Int).Set(value),
			Data:      append([]byte(nil), data...),
		}
		p.pending = append(p.pending, p.lastID)
		return Result{ID: p.lastID, Queued: true}, nil
	}
	return Result{}, library.NewError(library.KindUnauthorized, "execute", "%s holds neither MANAGEMENT nor ACTION", caller.Hex())
}

// Approve resolves a pending execution. A rejected execution is closed
// without a call. An approved one is executed once; if the call fails the
// record is still closed and the failure is returned as ExecutionFailed.
// When the identity cannot cover the value the record is left pending.
func (p *Pipeline) Approve(caller library.KeyID, id uint64, approve bool) (Execution, error) {
	if !p.authority.HasPurpose(caller, keys.Management) {
		return Execution{}, library.NewError(library.KindUnauthorized, "approve", "%s does not hold MANAGEMENT", caller.Hex())
	}
	rec, ok := p.records[id]
	if !ok {
		return Execution{}, library.NewError(library.KindNotFound, "approve", "no execution %d", id)
	}
	if rec.Resolved() {
		return rec.clone(), library.NewError(library.KindAlreadyResolved, "approve", "execution %d is already %s", id, rec.State())
	}
	if !approve {
		rec.Approval = Rejected
		p.dropPending(id)
		return rec.clone(), nil
	}
	if err := p.checkBalance(rec.Value, "approve"); err != nil {
		return rec.clone(), err
	}
	rec.Approval = Approved
	err := p.call(rec.Target, rec.Value, rec.Data, "approve")
	rec.Executed = true
	rec.Failed = err != nil
	p.dropPending(id)
	return rec.clone(), err
}

// Get returns a copy of the execution record.
func (p *Pipeline) Get(id uint64) (Execution, bool) {
	rec, ok := p.records[id]
	if !ok {
		return Execution{}, false
	}
	return rec.clone(), true
}

// Pending lists undecided executions in request order.
func (p *Pipeline) Pending() []Execution {
	out := make([]Execution, 0, len(p.pending))
	for _, id := range p.pending {
		out = append(out, p.records[id].clone())
	}
	return out
}

func (p *Pipeline) Mapped() Mapped {
	m := make(Mapped, len(p.records))
	for id, rec := range p.records {
		m[id] = rec.clone()
	}
	return m
}

func (p *Pipeline) checkBalance(value *big.Int, op string) error {
	if balance := p.executor.Balance(p.self); balance.Cmp(value) < 0 {
		return library.NewError(library.KindInsufficientFunds, op, "balance %s is less than %s", balance, value)
	}
	return nil
}

func (p *Pipeline) call(target library.Address, value *big.Int, data []byte, op string) error {
	if err := p.executor.Call(p.self, target, value, data); err != nil {
		return library.WrapError(library.KindExecutionFailed, op, err, "call to %s failed", target.Hex())
	}
	return nil
}

func (p *Pipeline) dropPending(id uint64) {
	if i := slices.Index(p.pending, id); i >= 0 {
		p.pending = slices.Delete(p.pending, i, i+1)
	}
}
