package requester

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	decodepay "github.com/nbd-wtf/ln-decodepay"
	"keyholder/engine/library"
)

// Payer is the restricted payment entry point of an identity.
type Payer interface {
	ExecutePayment(caller library.KeyID, target library.Address, value *big.Int) error
}

// Invoice is the part of a lightning invoice the requester acts on.
type Invoice struct {
	Payee       library.Address
	Value       *big.Int
	PaymentHash string
	Description string
}

// Decoder turns an encoded invoice into an Invoice.
type Decoder func(invoice string) (Invoice, error)

// Requester forwards payment instructions into identities under its own key
// id. It holds no authority of its own: an identity only pays if that key id
// holds PAYMENT there.
type Requester struct {
	key    library.KeyID
	decode Decoder
	client *http.Client
}

func New(key library.KeyID) *Requester {
	return NewWithDecoder(key, DecodeBolt11)
}

func NewWithDecoder(key library.KeyID, decode Decoder) *Requester {
	return &Requester{
		key:    key,
		decode: decode,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *Requester) Key() library.KeyID {
	return r.key
}

// RequestPayment decodes invoice and asks identity to pay its payee the
// invoiced amount.
func (r *Requester) RequestPayment(identity Payer, invoice string) (Invoice, error) {
	inv, err := r.decode(invoice)
	if err != nil {
		return Invoice{}, library.WrapError(library.KindInvalid, "requestPayment", err, "cannot decode invoice")
	}
	if inv.Value == nil || inv.Value.Sign() <= 0 {
		return Invoice{}, library.NewError(library.KindInvalid, "requestPayment", "invoice %s has no amount", inv.PaymentHash)
	}
	if err := identity.ExecutePayment(r.key, inv.Payee, inv.Value); err != nil {
		return inv, err
	}
	library.LogCLI(fmt.Sprintf("paid %s to %s for invoice %s", inv.Value, inv.Payee.Hex(), inv.PaymentHash), 4)
	return inv, nil
}

// DecodeBolt11 decodes a BOLT11 invoice. The payee node key becomes the
// target address and the amount is taken in whole satoshis.
func DecodeBolt11(invoice string) (inv Invoice, err error) {
	invoice = strings.TrimSpace(invoice)
	// decodepay slices the human readable part before validating it
	if !strings.HasPrefix(strings.ToLower(invoice), "ln") || strings.IndexAny(invoice, "0123456789") < 2 {
		return Invoice{}, fmt.Errorf("%q is not a bolt11 invoice", invoice)
	}
	defer func() {
		if r := recover(); r != nil {
			inv, err = Invoice{}, fmt.Errorf("malformed bolt11 invoice: %v", r)
		}
	}()
	bolt11, err := decodepay.Decodepay(invoice)
	if err != nil {
		return Invoice{}, err
	}
	return fromBolt11(bolt11)
}

func fromBolt11(bolt11 decodepay.Bolt11) (Invoice, error) {
	if bolt11.MSatoshi%1000 != 0 {
		return Invoice{}, fmt.Errorf("invoice %s asks for %d msat, not a whole number of satoshis", bolt11.PaymentHash, bolt11.MSatoshi)
	}
	payee, err := library.AddressFromNodeKey(bolt11.Payee)
	if err != nil {
		return Invoice{}, err
	}
	return Invoice{
		Payee:       payee,
		Value:       big.NewInt(bolt11.MSatoshi / 1000),
		PaymentHash: bolt11.PaymentHash,
		Description: bolt11.Description,
	}, nil
}
