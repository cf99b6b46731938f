package requester

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fiatjaf/go-lnurl"
	"keyholder/engine/library"
)

// maxSats keeps the millisatoshi amount inside an int64.
const maxSats = math.MaxInt64 / 1000

type payResponse struct {
	Callback    string `json:"callback"`
	MaxSendable int64  `json:"maxSendable"`
	MinSendable int64  `json:"minSendable"`
	Metadata    string `json:"metadata"`
	Tag         string `json:"tag"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
}

type invoiceResponse struct {
	Pr     string `json:"pr"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// RequestAddressPayment fetches an invoice for sats from a lightning address
// (name@domain) or a bech32 LNURL and pays it through identity.
func (r *Requester) RequestAddressPayment(ctx context.Context, identity Payer, address string, sats int64, comment string) (Invoice, error) {
	endpoint, err := PayEndpoint(address)
	if err != nil {
		return Invoice{}, library.WrapError(library.KindInvalid, "requestPayment", err, "cannot resolve %s", address)
	}
	if sats <= 0 || sats > maxSats {
		return Invoice{}, library.NewError(library.KindInvalid, "requestPayment", "cannot request %d sats", sats)
	}
	invoice, err := r.fetchInvoice(ctx, endpoint, sats*1000, comment)
	if err != nil {
		return Invoice{}, err
	}
	inv, err := r.decode(invoice)
	if err != nil {
		return Invoice{}, library.WrapError(library.KindInvalid, "requestPayment", err, "cannot decode invoice from %s", address)
	}
	if inv.Value == nil || inv.Value.Cmp(big.NewInt(sats)) != 0 {
		return Invoice{}, library.NewError(library.KindInvalid, "requestPayment", "%s returned an invoice for %s, asked for %d", address, inv.Value, sats)
	}
	return r.RequestPayment(identity, invoice)
}

// PayEndpoint resolves a lightning address or a bech32 LNURL to its LNURL-pay
// endpoint.
func PayEndpoint(address string) (string, error) {
	address = strings.TrimSpace(address)
	if strings.HasPrefix(strings.ToLower(address), "lnurl") {
		return lnurl.LNURLDecode(address)
	}
	split := strings.Split(address, "@")
	if len(split) != 2 || split[0] == "" || split[1] == "" {
		return "", fmt.Errorf("invalid lightning address %q", address)
	}
	return "https://" + strings.Trim(split[1], "<>") + "/.well-known/lnurlp/" + strings.Trim(split[0], "<>"), nil
}

// EncodeAddress returns the bech32 LNURL of a lightning address.
func EncodeAddress(address string) (string, error) {
	endpoint, err := PayEndpoint(address)
	if err != nil {
		return "", err
	}
	return lnurl.Encode(endpoint)
}

func (r *Requester) fetchInvoice(ctx context.Context, endpoint string, msat int64, comment string) (string, error) {
	var pay payResponse
	if err := r.getJSON(ctx, endpoint, &pay); err != nil {
		return "", err
	}
	if strings.EqualFold(pay.Status, "ERROR") {
		return "", fmt.Errorf("lnurl service refused: %s", pay.Reason)
	}
	if pay.Tag != "payRequest" {
		return "", fmt.Errorf("%s is not an lnurl-pay endpoint", endpoint)
	}
	if msat < pay.MinSendable || (pay.MaxSendable > 0 && msat > pay.MaxSendable) {
		return "", library.NewError(library.KindInvalid, "requestPayment", "%d msat is outside [%d, %d]", msat, pay.MinSendable, pay.MaxSendable)
	}
	callback, err := url.Parse(pay.Callback)
	if err != nil {
		return "", fmt.Errorf("bad callback %q: %w", pay.Callback, err)
	}
	q := callback.Query()
	q.Set("amount", strconv.FormatInt(msat, 10))
	if c := strings.TrimSpace(comment); c != "" {
		q.Set("comment", c)
	}
	callback.RawQuery = q.Encode()

	var inv invoiceResponse
	if err := r.getJSON(ctx, callback.String(), &inv); err != nil {
		return "", err
	}
	if strings.EqualFold(inv.Status, "ERROR") || inv.Pr == "" {
		return "", fmt.Errorf("lnurl service returned no invoice: %s", inv.Reason)
	}
	return inv.Pr, nil
}

func (r *Requester) getJSON(ctx context.Context, endpoint string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", endpoint, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
