package requester

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	decodepay "github.com/nbd-wtf/ln-decodepay"
	"keyholder/engine/library"
	"keyholder/state/identity"
	"keyholder/state/keys"
	"keyholder/state/ledger"
)

var (
	creator = common.HexToAddress("0x0000000000000000000000000000000000c0ffee")
	payee   = common.HexToAddress("0x000000000000000000000000000000000000be11")
	pspKey  = library.KeyIDFromAddress(common.HexToAddress("0x0000000000000000000000000000000000000e5e"))
)

func fixedDecoder(inv Invoice) Decoder {
	return func(string) (Invoice, error) {
		return inv, nil
	}
}

func setup(t *testing.T, balance int64) (*identity.Identity, *ledger.Ledger) {
	t.Helper()
	d := identity.NewDirectory(ledger.New())
	id, err := d.Create(creator)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := id.AddKey(library.KeyIDFromAddress(creator), pspKey, keys.Payment, keys.ECDSA); err != nil {
		t.Fatalf("AddKey: %v", err)
	}
	if err := d.Ledger().Credit(id.Address(), big.NewInt(balance)); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	return id, d.Ledger()
}

func TestRequestPayment(t *testing.T) {
	id, l := setup(t, 1)
	r := NewWithDecoder(pspKey, fixedDecoder(Invoice{Payee: payee, Value: big.NewInt(1), PaymentHash: "ab"}))
	inv, err := r.RequestPayment(id, "lnbc1...")
	if err != nil {
		t.Fatalf("RequestPayment: %v", err)
	}
	if inv.Payee != payee || l.Balance(payee).Int64() != 1 {
		t.Fatalf("payee not paid: %+v, balance %s", inv, l.Balance(payee))
	}
	if _, err := r.RequestPayment(id, "lnbc1..."); !library.IsKind(err, library.KindInsufficientFunds) {
		t.Fatalf("expected InsufficientFunds, got %v", err)
	}
}

func TestRequestPayment_WithoutPaymentKey(t *testing.T) {
	id, _ := setup(t, 5)
	stranger := library.KeyIDFromAddress(common.HexToAddress("0x01"))
	r := NewWithDecoder(stranger, fixedDecoder(Invoice{Payee: payee, Value: big.NewInt(1)}))
	if _, err := r.RequestPayment(id, "lnbc1..."); !library.IsKind(err, library.KindUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestRequestPayment_BadInvoice(t *testing.T) {
	id, _ := setup(t, 5)
	r := NewWithDecoder(pspKey, func(string) (Invoice, error) { return Invoice{}, errors.New("checksum") })
	if _, err := r.RequestPayment(id, "garbage"); !library.IsKind(err, library.KindInvalid) {
		t.Fatalf("expected Invalid, got %v", err)
	}
	r = NewWithDecoder(pspKey, fixedDecoder(Invoice{Payee: payee, Value: new(big.Int)}))
	if _, err := r.RequestPayment(id, "lnbc"); !library.IsKind(err, library.KindInvalid) {
		t.Fatalf("expected Invalid for zero amount, got %v", err)
	}
}

func TestDecodeBolt11_Garbage(t *testing.T) {
	for _, in := range []string{"", "l", "not an invoice", "1nbc", "ln1abc", "lnbc", "lnbc10n1qqqq", "LNBC1"} {
		if _, err := DecodeBolt11(in); err == nil {
			t.Errorf("DecodeBolt11(%q) decoded garbage", in)
		}
	}
	id, l := setup(t, 5)
	if _, err := New(pspKey).RequestPayment(id, "not an invoice"); !library.IsKind(err, library.KindInvalid) {
		t.Fatalf("expected Invalid, got %v", err)
	}
	if l.Balance(id.Address()).Int64() != 5 {
		t.Fatalf("balance moved on a rejected invoice")
	}
}

func TestFromBolt11(t *testing.T) {
	k, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	nodeKey := hex.EncodeToString(crypto.CompressPubkey(&k.PublicKey))
	inv, err := fromBolt11(decodepay.Bolt11{Payee: nodeKey, MSatoshi: 21000, PaymentHash: "ab"})
	if err != nil {
		t.Fatalf("fromBolt11: %v", err)
	}
	if inv.Payee != crypto.PubkeyToAddress(k.PublicKey) || inv.Value.Int64() != 21 {
		t.Fatalf("unexpected invoice %+v", inv)
	}
	if _, err := fromBolt11(decodepay.Bolt11{Payee: nodeKey, MSatoshi: 1500}); err == nil {
		t.Fatalf("sub-satoshi amount accepted")
	}
}

func TestRequestAddressPayment_AmountBounds(t *testing.T) {
	id, _ := setup(t, 5)
	r := NewWithDecoder(pspKey, fixedDecoder(Invoice{Payee: payee, Value: big.NewInt(1)}))
	for _, sats := range []int64{0, -1, maxSats + 1} {
		if _, err := r.RequestAddressPayment(context.Background(), id, "alice@example.com", sats, ""); !library.IsKind(err, library.KindInvalid) {
			t.Errorf("sats=%d: expected Invalid, got %v", sats, err)
		}
	}
}

func TestPayEndpoint(t *testing.T) {
	got, err := PayEndpoint("alice@example.com")
	if err != nil {
		t.Fatalf("PayEndpoint: %v", err)
	}
	if want := "https://example.com/.well-known/lnurlp/alice"; got != want {
		t.Fatalf("PayEndpoint = %s, want %s", got, want)
	}
	encoded, err := EncodeAddress("alice@example.com")
	if err != nil {
		t.Fatalf("EncodeAddress: %v", err)
	}
	back, err := PayEndpoint(encoded)
	if err != nil {
		t.Fatalf("PayEndpoint(%s): %v", encoded, err)
	}
	if back != got {
		t.Fatalf("lnurl round trip gave %s", back)
	}
	if _, err := PayEndpoint("not-an-address"); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestFetchInvoice(t *testing.T) {
	var gotAmount, gotComment string
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/.well-known/lnurlp/alice", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(payResponse{
			Callback:    srv.URL + "/callback",
			MinSendable: 1000,
			MaxSendable: 100000,
			Tag:         "payRequest",
		})
	})
	mux.HandleFunc("/callback", func(w http.ResponseWriter, req *http.Request) {
		gotAmount = req.URL.Query().Get("amount")
		gotComment = req.URL.Query().Get("comment")
		_ = json.NewEncoder(w).Encode(invoiceResponse{Pr: "lnbc10n1test"})
	})

	r := NewWithDecoder(pspKey, DecodeBolt11)
	pr, err := r.fetchInvoice(context.Background(), srv.URL+"/.well-known/lnurlp/alice", 10000, " thanks ")
	if err != nil {
		t.Fatalf("fetchInvoice: %v", err)
	}
	if pr != "lnbc10n1test" || gotAmount != "10000" || gotComment != "thanks" {
		t.Fatalf("unexpected exchange: pr=%s amount=%s comment=%q", pr, gotAmount, gotComment)
	}
	if _, err := r.fetchInvoice(context.Background(), srv.URL+"/.well-known/lnurlp/alice", 500000, ""); !library.IsKind(err, library.KindInvalid) {
		t.Fatalf("expected Invalid for an amount above maxSendable, got %v", err)
	}
}
