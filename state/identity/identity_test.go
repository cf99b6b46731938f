package identity

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"keyholder/engine/library"
	"keyholder/state/claims"
	"keyholder/state/keys"
	"keyholder/state/ledger"
)

var (
	creator = common.HexToAddress("0x0000000000000000000000000000000000c0ffee")
	actor   = common.HexToAddress("0x00000000000000000000000000000000000ac7ed")
	payer   = common.HexToAddress("0x0000000000000000000000000000000000000bad")
	target  = common.HexToAddress("0x0000000000000000000000000000000000007a67")
)

func keyOf(a common.Address) library.KeyID {
	return library.KeyIDFromAddress(a)
}

func deploy(t *testing.T) (*Directory, *Identity, *[]Notification) {
	t.Helper()
	d := NewDirectory(ledger.New())
	var seen []Notification
	d.Subscribe(func(n Notification) { seen = append(seen, n) })
	id, err := d.Create(creator)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return d, id, &seen
}

func TestCreate_SingleManagementKey(t *testing.T) {
	_, id, _ := deploy(t)
	if id.Address() != crypto.CreateAddress(creator, 0) {
		t.Fatalf("identity deployed at %s", id.Address().Hex())
	}
	m := id.Mapped()
	if len(m.Keys) != 1 {
		t.Fatalf("expected exactly one key, got %d", len(m.Keys))
	}
	rec, ok := m.Keys[keyOf(creator)]
	if !ok || rec.Type != keys.ECDSA || len(rec.Purposes) != 1 || rec.Purposes[0] != keys.Management {
		t.Fatalf("unexpected bootstrap key %+v", rec)
	}
	if got := id.KeysByPurpose(keys.Management); len(got) != 1 || got[0] != keyOf(creator) {
		t.Fatalf("unexpected MANAGEMENT index %v", got)
	}
}

func TestCreate_DistinctAddressesPerNonce(t *testing.T) {
	d, first, _ := deploy(t)
	second, err := d.Create(creator)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.Address() == second.Address() {
		t.Fatalf("two identities share %s", first.Address().Hex())
	}
	if got := d.Addresses(); len(got) != 2 || got[1] != second.Address() {
		t.Fatalf("unexpected directory order %v", got)
	}
}

func TestEndToEnd_ActionRequestApprovedByManagement(t *testing.T) {
	d, id, seen := deploy(t)
	l := d.Ledger()
	if err := l.Credit(creator, big.NewInt(1)); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if err := d.Deposit(creator, id.Address(), big.NewInt(1)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if id.Balance().Int64() != 1 {
		t.Fatalf("identity balance = %s, want 1", id.Balance())
	}
	if err := id.AddKey(keyOf(creator), keyOf(actor), keys.Action, keys.ECDSA); err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	res, err := id.Execute(keyOf(actor), target, big.NewInt(1), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Queued {
		t.Fatalf("ACTION request was not queued")
	}
	if l.Balance(target).Sign() != 0 {
		t.Fatalf("target paid before approval")
	}
	if err := id.Approve(keyOf(actor), res.ID, true); !library.IsKind(err, library.KindUnauthorized) {
		t.Fatalf("expected Unauthorized self approval, got %v", err)
	}
	if err := id.Approve(keyOf(creator), res.ID, true); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if l.Balance(target).Int64() != 1 {
		t.Fatalf("target balance = %s, want 1", l.Balance(target))
	}
	rec, _ := id.GetExecution(res.ID)
	if rec.State() != "executed" {
		t.Fatalf("record is %s", rec.State())
	}
	if err := id.Approve(keyOf(creator), res.ID, true); !library.IsKind(err, library.KindAlreadyResolved) {
		t.Fatalf("expected AlreadyResolved, got %v", err)
	}
	if l.Balance(target).Int64() != 1 {
		t.Fatalf("second approval paid again")
	}

	var events []Event
	for _, n := range *seen {
		if n.Identity != id.Address() {
			t.Fatalf("notification for wrong identity %s", n.Identity.Hex())
		}
		events = append(events, n.Event)
	}
	want := []Event{KeyAdded, ExecutionRequested, Approved, Executed}
	if len(events) != len(want) {
		t.Fatalf("notifications = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("notifications = %v, want %v", events, want)
		}
	}
	if (*seen)[1].ExecutionID != res.ID {
		t.Fatalf("ExecutionRequested carried id %d, want %d", (*seen)[1].ExecutionID, res.ID)
	}
}

func TestExecute_ManagementFastPath(t *testing.T) {
	d, id, seen := deploy(t)
	_ = d.Ledger().Credit(id.Address(), big.NewInt(5))
	res, err := id.Execute(keyOf(creator), target, big.NewInt(2), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Queued || len(id.PendingExecutions()) != 0 {
		t.Fatalf("fast path queued a record")
	}
	if d.Ledger().Balance(target).Int64() != 2 {
		t.Fatalf("target not paid")
	}
	if len(*seen) != 0 {
		t.Fatalf("fast path emitted %v", *seen)
	}
}

func TestExecute_CallIntoIdentityWithData(t *testing.T) {
	d, id, _ := deploy(t)
	other, _ := d.Create(creator)
	_ = d.Ledger().Credit(id.Address(), big.NewInt(5))
	_, err := id.Execute(keyOf(creator), other.Address(), big.NewInt(1), []byte{0x01})
	if !library.IsKind(err, library.KindExecutionFailed) {
		t.Fatalf("expected ExecutionFailed, got %v", err)
	}
	if id.Balance().Int64() != 5 {
		t.Fatalf("reverted call moved value")
	}
	if _, err := id.Execute(keyOf(creator), other.Address(), big.NewInt(1), nil); err != nil {
		t.Fatalf("plain transfer between identities: %v", err)
	}
	if other.Balance().Int64() != 1 {
		t.Fatalf("other identity balance = %s", other.Balance())
	}
}

func TestKeys_OnlyManagementMutates(t *testing.T) {
	_, id, seen := deploy(t)
	if err := id.AddKey(keyOf(creator), keyOf(actor), keys.Action, keys.ECDSA); err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	if err := id.AddKey(keyOf(actor), keyOf(target), keys.Action, keys.ECDSA); !library.IsKind(err, library.KindUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if err := id.RemoveKey(keyOf(actor), keyOf(creator), keys.Management); !library.IsKind(err, library.KindUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	if !id.KeyHasPurpose(keyOf(creator), keys.Management) || id.KeyHasPurpose(keyOf(target), keys.Action) {
		t.Fatalf("rejected calls changed keys")
	}
	// duplicate add is silent
	if err := id.AddKey(keyOf(creator), keyOf(actor), keys.Action, keys.ECDSA); err != nil {
		t.Fatalf("duplicate AddKey: %v", err)
	}
	if len(*seen) != 1 {
		t.Fatalf("expected one KeyAdded, got %v", *seen)
	}
	if err := id.RemoveKey(keyOf(creator), keyOf(actor), keys.Action); err != nil {
		t.Fatalf("RemoveKey: %v", err)
	}
	if got := id.GetKey(keyOf(actor), keys.Action); got.Exists() {
		t.Fatalf("removed key still present: %+v", got)
	}
	last := (*seen)[len(*seen)-1]
	if last.Event != KeyRemoved || last.Key != keyOf(actor) || last.KeyType != keys.ECDSA {
		t.Fatalf("unexpected notification %+v", last)
	}
}

func TestClaims_ThroughIdentity(t *testing.T) {
	_, id, seen := deploy(t)
	if err := id.AddKey(keyOf(creator), keyOf(actor), keys.Claim, keys.ECDSA); err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	c := claims.Claim{Topic: 1, Scheme: claims.SchemeRSA, Issuer: actor, Signature: []byte{0x12}, Data: []byte{0x34}, URI: "http://testclaim"}
	claimID, err := id.AddClaim(keyOf(actor), c)
	if err != nil {
		t.Fatalf("AddClaim: %v", err)
	}
	if _, err := id.AddClaim(keyOf(actor), c); err != nil {
		t.Fatalf("AddClaim again: %v", err)
	}
	if ids := id.ClaimIDsByTopic(1); len(ids) != 1 || ids[0] != claimID {
		t.Fatalf("unexpected topic index %v", ids)
	}
	if err := id.RemoveClaim(keyOf(creator), claimID); err != nil {
		t.Fatalf("RemoveClaim by MANAGEMENT: %v", err)
	}
	if got := id.GetClaim(claimID); got.Exists() {
		t.Fatalf("removed claim still readable: %+v", got)
	}
	var events []Event
	for _, n := range *seen {
		events = append(events, n.Event)
	}
	want := []Event{KeyAdded, ClaimAdded, ClaimChanged, ClaimRemoved}
	if len(events) != len(want) {
		t.Fatalf("notifications = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("notifications = %v, want %v", events, want)
		}
	}
}

func TestPayment_ProgramKey(t *testing.T) {
	d, id, seen := deploy(t)
	psp, err := d.Create(payer)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	pspKey := library.KeyIDFromAddress(psp.Address())
	if err := id.AddKey(keyOf(creator), pspKey, keys.Payment, keys.ECDSA); err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	_ = d.Ledger().Credit(id.Address(), big.NewInt(1))
	if err := id.ExecutePayment(pspKey, target, big.NewInt(1)); err != nil {
		t.Fatalf("ExecutePayment: %v", err)
	}
	if err := id.ExecutePayment(pspKey, target, big.NewInt(1)); !library.IsKind(err, library.KindInsufficientFunds) {
		t.Fatalf("expected InsufficientFunds, got %v", err)
	}
	if err := id.ExecutePayment(keyOf(creator), target, big.NewInt(1)); !library.IsKind(err, library.KindUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
	last := (*seen)[len(*seen)-1]
	if last.Event != PaymentExecuted || last.Key != pspKey || last.Value.Int64() != 1 {
		t.Fatalf("unexpected notification %+v", last)
	}
}

func TestSubscriberMayCallBack(t *testing.T) {
	d := NewDirectory(ledger.New())
	id, _ := d.Create(creator)
	var pending int
	id.Subscribe(func(n Notification) {
		if n.Event == ExecutionRequested {
			pending = len(id.PendingExecutions())
		}
	})
	_ = id.AddKey(keyOf(creator), keyOf(actor), keys.Action, keys.ECDSA)
	if _, err := id.Execute(keyOf(actor), target, big.NewInt(0), nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if pending != 1 {
		t.Fatalf("subscriber saw %d pending executions", pending)
	}
}

func TestDeposit_UnknownIdentity(t *testing.T) {
	d, _, _ := deploy(t)
	if err := d.Deposit(creator, target, big.NewInt(1)); !library.IsKind(err, library.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
