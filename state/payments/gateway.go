package payments

import (
	"math/big"

	"keyholder/engine/library"
	"keyholder/state/keys"
)

// Payment is a completed direct transfer.
type Payment struct {
	Payer  library.KeyID
	Target library.Address
	Value  *big.Int
}

// Gateway moves value for PAYMENT keys without the approval workflow. The
// caller may itself be another program's address; it is treated exactly like
// any other key. Gateway does no locking, the owning identity serializes
// access.
type Gateway struct {
	self      library.Address
	authority keys.Authority
	executor  library.CallExecutor
}

func NewGateway(self library.Address, authority keys.Authority, executor library.CallExecutor) *Gateway {
	return &Gateway{self: self, authority: authority, executor: executor}
}

// Pay transfers value to target. PAYMENT is unlimited-use, the only limit is
// the identity's balance.
func (g *Gateway) Pay(caller library.KeyID, target library.Address, value *big.Int) (Payment, error) {
	if !g.authority.HasPurpose(caller, keys.Payment) {
		return Payment{}, library.NewError(library.KindUnauthorized, "executePayment", "%s does not hold PAYMENT", caller.Hex())
	}
	if value == nil || value.Sign() <= 0 {
		return Payment{}, library.NewError(library.KindInvalid, "executePayment", "value must be positive")
	}
	if balance := g.executor.Balance(g.self); balance.Cmp(value) < 0 {
		return Payment{}, library.NewError(library.KindInsufficientFunds, "executePayment", "balance %s is less than %s", balance, value)
	}
	if err := g.executor.Call(g.self, target, value, nil); err != nil {
		if library.IsKind(err, library.KindInsufficientFunds) {
			return Payment{}, err
		}
		return Payment{}, library.WrapError(library.KindExecutionFailed, "executePayment", err, "payment to %s failed", target.Hex())
	}
	return Payment{Payer: caller, Target: target, Value: new(big.Int).Set(value)}, nil
}
