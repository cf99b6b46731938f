package identity

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/nbd-wtf/go-nostr"
	"keyholder/engine/library"
	"keyholder/state/claims"
	"keyholder/state/keys"
	"keyholder/state/replay"
)

// Handler applies signed operation events to a Directory. The caller of every
// operation is the event author; nothing in the content can change that.
type Handler struct {
	directory *Directory
	kind      int
	replay    *replay.Guard
}

func NewHandler(directory *Directory, kind int) *Handler {
	return &Handler{directory: directory, kind: kind, replay: replay.NewGuard()}
}

// HandleEvent applies one operation event and returns a snapshot of the
// identity it touched.
func (h *Handler) HandleEvent(event nostr.Event) (m Mapped, e error) {
	if sig, _ := event.CheckSignature(); !sig {
		return m, library.NewError(library.KindInvalid, "handleEvent", "invalid signature on event %s", event.ID)
	}
	if event.Kind != h.kind {
		return m, fmt.Errorf("event %s of kind %d did not cause a state change", event.ID, event.Kind)
	}
	// the id field is not covered by the signature, so recompute it
	if !h.replay.Claim(event.PubKey, event.GetID()) {
		return m, library.NewError(library.KindAlreadyResolved, "handleEvent", "event %s was already handled", event.GetID())
	}
	return h.handleByTags(event)
}

func (h *Handler) handleByTags(event nostr.Event) (m Mapped, e error) {
	operation, ok := library.GetOperation(event)
	if !ok {
		return m, library.NewError(library.KindInvalid, "handleEvent", "event %s has no op tag", event.ID)
	}
	ops := strings.Split(operation, ".")
	if len(ops) != 2 || ops[0] != "identity" {
		return m, library.NewError(library.KindInvalid, "handleEvent", "unknown operation %q", operation)
	}
	caller, err := library.AddressFromAccount(event.PubKey)
	if err != nil {
		return m, library.WrapError(library.KindInvalid, "handleEvent", err, "cannot derive caller")
	}
	if ops[1] == "create" {
		id, err := h.directory.Create(caller)
		if err != nil {
			return m, err
		}
		return id.Mapped(), nil
	}
	id, err := h.identity(event)
	if err != nil {
		return m, err
	}
	callerID := library.KeyIDFromAddress(caller)
	switch o := ops[1]; {
	case o == "deposit":
		err = handleDeposit(h.directory, caller, id, event)
	case o == "addKey":
		err = handleAddKey(callerID, id, event)
	case o == "removeKey":
		err = handleRemoveKey(callerID, id, event)
	case o == "execute":
		err = handleExecute(callerID, id, event)
	case o == "approve":
		err = handleApprove(callerID, id, event)
	case o == "addClaim":
		err = handleAddClaim(callerID, id, event)
	case o == "removeClaim":
		err = handleRemoveClaim(callerID, id, event)
	case o == "executePayment":
		err = handleExecutePayment(callerID, id, event)
	default:
		return m, library.NewError(library.KindInvalid, "handleEvent", "unknown operation %q", operation)
	}
	if err != nil {
		return m, err
	}
	return id.Mapped(), nil
}

func (h *Handler) identity(event nostr.Event) (*Identity, error) {
	s, ok := library.GetFirstTag(event, "identity")
	if !ok {
		return nil, library.NewError(library.KindInvalid, "handleEvent", "event %s does not name an identity", event.ID)
	}
	address, err := library.ParseAddress(s)
	if err != nil {
		return nil, library.WrapError(library.KindInvalid, "handleEvent", err, "bad identity tag")
	}
	id, ok := h.directory.Get(address)
	if !ok {
		return nil, library.NewError(library.KindNotFound, "handleEvent", "no identity at %s", address.Hex())
	}
	return id, nil
}

func handleDeposit(d *Directory, from library.Address, id *Identity, event nostr.Event) error {
	value, err := requiredValue(event)
	if err != nil {
		return err
	}
	return d.Deposit(from, id.Address(), value)
}

func handleAddKey(caller library.KeyID, id *Identity, event nostr.Event) error {
	key, purpose, err := keyAndPurpose(event)
	if err != nil {
		return err
	}
	keyType := keys.ECDSA
	if s, ok := library.GetFirstTag(event, "keyType"); ok {
		if keyType, err = keys.ParseType(s); err != nil {
			return invalid(err)
		}
	}
	return id.AddKey(caller, key, purpose, keyType)
}

func handleRemoveKey(caller library.KeyID, id *Identity, event nostr.Event) error {
	key, purpose, err := keyAndPurpose(event)
	if err != nil {
		return err
	}
	return id.RemoveKey(caller, key, purpose)
}

func handleExecute(caller library.KeyID, id *Identity, event nostr.Event) error {
	target, err := requiredAddress(event, "target")
	if err != nil {
		return err
	}
	value := new(big.Int)
	if s, ok := library.GetFirstTag(event, "value"); ok {
		if value, err = parseValue(s); err != nil {
			return err
		}
	}
	data, err := optionalBytes(event, "data")
	if err != nil {
		return err
	}
	_, err = id.Execute(caller, target, value, data)
	return err
}

func handleApprove(caller library.KeyID, id *Identity, event nostr.Event) error {
	s, ok := library.GetFirstTag(event, "execution")
	if !ok {
		return invalid(fmt.Errorf("event %s does not name an execution", event.ID))
	}
	executionID, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return invalid(fmt.Errorf("bad execution id %q", s))
	}
	decision := true
	if s, ok := library.GetFirstTag(event, "decision"); ok {
		if decision, err = strconv.ParseBool(s); err != nil {
			return invalid(fmt.Errorf("bad decision %q", s))
		}
	}
	return id.Approve(caller, executionID, decision)
}

func handleAddClaim(caller library.KeyID, id *Identity, event nostr.Event) error {
	s, ok := library.GetFirstTag(event, "topic")
	if !ok {
		return invalid(fmt.Errorf("event %s has no claim topic", event.ID))
	}
	topic, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return invalid(fmt.Errorf("bad topic %q", s))
	}
	scheme := claims.SchemeECDSA
	if s, ok := library.GetFirstTag(event, "scheme"); ok {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return invalid(fmt.Errorf("bad scheme %q", s))
		}
		scheme = claims.Scheme(n)
	}
	issuer, err := requiredAddress(event, "issuer")
	if err != nil {
		return err
	}
	signature, err := optionalBytes(event, "signature")
	if err != nil {
		return err
	}
	data, err := optionalBytes(event, "data")
	if err != nil {
		return err
	}
	uri, _ := library.GetFirstTag(event, "uri")
	_, err = id.AddClaim(caller, claims.Claim{
		Topic:     topic,
		Scheme:    scheme,
		Issuer:    issuer,
		Signature: signature,
		Data:      data,
		URI:       uri,
	})
	return err
}

func handleRemoveClaim(caller library.KeyID, id *Identity, event nostr.Event) error {
	s, ok := library.GetFirstTag(event, "claim")
	if !ok {
		return invalid(fmt.Errorf("event %s does not name a claim", event.ID))
	}
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return invalid(fmt.Errorf("bad claim id %q", s))
	}
	return id.RemoveClaim(caller, common.BytesToHash(b))
}

func handleExecutePayment(caller library.KeyID, id *Identity, event nostr.Event) error {
	target, err := requiredAddress(event, "target")
	if err != nil {
		return err
	}
	value, err := requiredValue(event)
	if err != nil {
		return err
	}
	return id.ExecutePayment(caller, target, value)
}

func keyAndPurpose(event nostr.Event) (library.KeyID, keys.Purpose, error) {
	s, ok := library.GetFirstTag(event, "key")
	if !ok {
		return library.KeyID{}, 0, invalid(fmt.Errorf("event %s does not name a key", event.ID))
	}
	key, err := library.ParseKeyID(s)
	if err != nil {
		return library.KeyID{}, 0, invalid(err)
	}
	s, ok = library.GetFirstTag(event, "purpose")
	if !ok {
		return library.KeyID{}, 0, invalid(fmt.Errorf("event %s does not name a purpose", event.ID))
	}
	purpose, err := keys.ParsePurpose(s)
	if err != nil {
		return library.KeyID{}, 0, invalid(err)
	}
	return key, purpose, nil
}

func requiredAddress(event nostr.Event, tag string) (library.Address, error) {
	s, ok := library.GetFirstTag(event, tag)
	if !ok {
		return library.Address{}, invalid(fmt.Errorf("event %s has no %s tag", event.ID, tag))
	}
	address, err := library.ParseAddress(s)
	if err != nil {
		return library.Address{}, invalid(err)
	}
	return address, nil
}

func requiredValue(event nostr.Event) (*big.Int, error) {
	s, ok := library.GetFirstTag(event, "value")
	if !ok {
		return nil, invalid(fmt.Errorf("event %s has no value tag", event.ID))
	}
	return parseValue(s)
}

func parseValue(s string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || value.Sign() < 0 {
		return nil, invalid(fmt.Errorf("bad value %q", s))
	}
	return value, nil
}

func optionalBytes(event nostr.Event, tag string) ([]byte, error) {
	s, ok := library.GetFirstTag(event, tag)
	if !ok || s == "" {
		return nil, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, invalid(fmt.Errorf("bad %s %q: %w", tag, s, err))
	}
	return b, nil
}

func invalid(err error) error {
	return library.WrapError(library.KindInvalid, "handleEvent", err, "malformed operation")
}
