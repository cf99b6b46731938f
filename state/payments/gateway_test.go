package payments

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"keyholder/engine/library"
	"keyholder/state/keys"
	"keyholder/state/ledger"
)

var (
	self   = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	target = common.HexToAddress("0x0000000000000000000000000000000000000077")
	owner  = library.KeyIDFromAddress(common.HexToAddress("0x01"))
	// psp is a program address registered as a PAYMENT key.
	psp    = library.KeyIDFromAddress(common.HexToAddress("0x0000000000000000000000000000000000000e5e"))
	action = library.KeyIDFromAddress(common.HexToAddress("0x03"))
)

func setup(t *testing.T, balance int64) (*Gateway, *ledger.Ledger) {
	t.Helper()
	k := keys.NewRegistry(owner)
	if _, err := k.Add(owner, psp, keys.Payment, keys.ECDSA); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := k.Add(owner, action, keys.Action, keys.ECDSA); err != nil {
		t.Fatalf("Add: %v", err)
	}
	l := ledger.New()
	if err := l.Credit(self, big.NewInt(balance)); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	return NewGateway(self, k, l), l
}

func TestPay_UntilBalanceExhausted(t *testing.T) {
	g, l := setup(t, 1)
	p, err := g.Pay(psp, target, big.NewInt(1))
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if p.Payer != psp || p.Target != target || p.Value.Int64() != 1 {
		t.Fatalf("unexpected payment %+v", p)
	}
	if l.Balance(target).Int64() != 1 {
		t.Fatalf("target balance = %s, want 1", l.Balance(target))
	}
	if _, err := g.Pay(psp, target, big.NewInt(1)); !library.IsKind(err, library.KindInsufficientFunds) {
		t.Fatalf("expected InsufficientFunds, got %v", err)
	}
	if err := l.Credit(self, big.NewInt(1)); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if _, err := g.Pay(psp, target, big.NewInt(1)); err != nil {
		t.Fatalf("PAYMENT key should be reusable once funded: %v", err)
	}
}

func TestPay_RequiresPaymentPurpose(t *testing.T) {
	g, l := setup(t, 10)
	for _, caller := range []library.KeyID{owner, action} {
		if _, err := g.Pay(caller, target, big.NewInt(1)); !library.IsKind(err, library.KindUnauthorized) {
			t.Fatalf("expected Unauthorized for %s, got %v", caller.Hex(), err)
		}
	}
	if l.Balance(self).Int64() != 10 {
		t.Fatalf("rejected payment moved value")
	}
}

func TestPay_RejectsNonPositiveValue(t *testing.T) {
	g, _ := setup(t, 10)
	if _, err := g.Pay(psp, target, big.NewInt(0)); !library.IsKind(err, library.KindInvalid) {
		t.Fatalf("expected Invalid, got %v", err)
	}
}

type refusing struct{}

func (refusing) Receive(library.Address, *big.Int, []byte) error {
	return errors.New("no thanks")
}

func TestPay_TargetReverts(t *testing.T) {
	g, l := setup(t, 10)
	if err := l.Deploy(target, refusing{}); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if _, err := g.Pay(psp, target, big.NewInt(1)); !library.IsKind(err, library.KindExecutionFailed) {
		t.Fatalf("expected ExecutionFailed, got %v", err)
	}
	if l.Balance(self).Int64() != 10 {
		t.Fatalf("reverted payment moved value")
	}
}
