package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"keyholder/engine/actors"
	"keyholder/engine/library"
	"keyholder/messaging/relays"
	"keyholder/state/requester"
)

const usage = `usage: event-tool [flags] <operation> [tag=value ...]

operations: create deposit addKey removeKey execute approve addClaim removeClaim executePayment
            pay invoice=<bolt11> | pay address=<name@domain> sats=<n> [comment=<text>]
            watch  (print the notifications of --identity)

flags:
`

func main() {
	flags := pflag.NewFlagSet("event-tool", pflag.ExitOnError)
	flags.String("identity", "", "identity address the operation applies to")
	flags.Bool("dry-run", false, "print the signed event instead of publishing it")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	conf := viper.New()
	// Now we initialise this configuration with basic settings that are required on startup.
	actors.InitConfig(conf)
	if err := conf.BindPFlags(flags); err != nil {
		library.LogCLI(err.Error(), 0)
	}
	// make the config accessible globally
	actors.SetConfig(conf)

	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}
	op, params, err := parseArgs(args)
	if err != nil {
		library.LogCLI(err.Error(), 2)
		os.Exit(2)
	}
	if id := conf.GetString("identity"); id != "" {
		params["identity"] = id
	}

	switch op {
	case "watch":
		watch(params["identity"])
	case "pay":
		if err := pay(params); err != nil {
			library.LogCLI(err.Error(), 2)
			os.Exit(1)
		}
	default:
		e, err := operationEvent(op, params)
		if err != nil {
			library.LogCLI(err.Error(), 2)
			os.Exit(1)
		}
		send(e)
	}
}

func parseArgs(args []string) (string, map[string]string, error) {
	params := make(map[string]string)
	for _, arg := range args[1:] {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return "", nil, fmt.Errorf("expected tag=value, got %q", arg)
		}
		params[k] = v
	}
	return args[0], params, nil
}

// operationEvent builds and signs an operation event. Tags are sorted so the
// same command always yields the same tag order.
func operationEvent(op string, params map[string]string) (nostr.Event, error) {
	tags := nostr.Tags{nostr.Tag{"op", "identity." + op}}
	for _, k := range sortedKeys(params) {
		tags = append(tags, nostr.Tag{k, params[k]})
	}
	e := nostr.Event{
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      actors.MakeOrGetConfig().GetInt("eventKind"),
		Tags:      tags,
	}
	if err := actors.SignEvent(&e); err != nil {
		return nostr.Event{}, err
	}
	return e, nil
}

func send(e nostr.Event) {
	if actors.MakeOrGetConfig().GetBool("dry-run") || actors.MakeOrGetConfig().GetBool("doNotPublish") {
		fmt.Printf("%#v\n", e)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	relays.PublishToRelays(ctx, []nostr.Event{e}, actors.MakeOrGetConfig().GetStringSlice("relays"))
	fmt.Println(e.ID)
}

// eventPayer asks an identity for a payment by publishing an executePayment
// event signed by this wallet, so the wallet's key must hold PAYMENT there.
type eventPayer struct {
	identity string
}

func (p eventPayer) ExecutePayment(caller library.KeyID, target library.Address, value *big.Int) error {
	e, err := operationEvent("executePayment", map[string]string{
		"identity": p.identity,
		"target":   target.Hex(),
		"value":    value.String(),
	})
	if err != nil {
		return err
	}
	send(e)
	return nil
}

func pay(params map[string]string) error {
	if params["identity"] == "" {
		return fmt.Errorf("pay needs an identity")
	}
	key, err := library.KeyIDFromAccount(actors.MyWallet().Account)
	if err != nil {
		return err
	}
	psp := requester.New(key)
	payer := eventPayer{identity: params["identity"]}
	if invoice, ok := params["invoice"]; ok {
		_, err := psp.RequestPayment(payer, invoice)
		return err
	}
	address, ok := params["address"]
	if !ok {
		return fmt.Errorf("pay needs invoice=<bolt11> or address=<name@domain>")
	}
	var sats int64
	if _, err := fmt.Sscan(params["sats"], &sats); err != nil || sats <= 0 {
		return fmt.Errorf("pay needs sats=<n>")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err = psp.RequestAddressPayment(ctx, payer, address, sats, params["comment"])
	return err
}

func watch(identity string) {
	if identity == "" {
		library.LogCLI("watch needs --identity", 2)
		return
	}
	address, err := library.ParseAddress(identity)
	if err != nil {
		library.LogCLI(err.Error(), 2)
		return
	}
	filters := nostr.Filters{{
		Kinds: []int{actors.MakeOrGetConfig().GetInt("notificationKind")},
		Tags:  map[string][]string{"t": {strings.ToLower(address.Hex())}},
	}}
	for _, e := range relays.FetchEvents(context.Background(), actors.MakeOrGetConfig().GetStringSlice("relays"), filters, 10*time.Second) {
		fmt.Printf("%s %s\n", time.Unix(int64(e.CreatedAt), 0).Format(time.RFC3339), e.Content)
	}
}
