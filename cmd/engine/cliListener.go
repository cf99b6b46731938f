package main

import (
	"fmt"

	"github.com/eiannone/keyboard"
	"keyholder/engine/actors"
	"keyholder/state/identity"
)

// cliListener is a cheap and nasty way to look at state while the engine runs. It listens for keypresses and prints things.
func cliListener(interrupt chan struct{}, directory *identity.Directory) {
	fmt.Println("VIEW CURRENT STATE:\ni: identities\nk: keys\ne: pending executions\nl: claims\nb: ledger balances\nw: current wallet\nc: engine config\nq: to quit\nSee cliListener.go for more")
	for {
		r, k, err := keyboard.GetSingleKey()
		if err != nil {
			actors.LogCLI(err.Error(), 2)
			return
		}
		str := string(r)
		switch str {
		default:
			if k == keyboard.KeyEnter {
				fmt.Println("\n-----------------------------------")
				break
			}
			if r == 0 {
				break
			}
			fmt.Println("Key " + str + " is not bound to anything. See main.cliListener for more details.")
		case "q":
			close(interrupt)
			return
		case "i":
			for address, m := range directory.Mapped() {
				fmt.Printf("\nIDENTITY: %s\nBalance: %s\nKeys: %d Claims: %d Executions: %d\n", address.Hex(), m.Balance, len(m.Keys), len(m.Claims), len(m.Executions))
			}
		case "k":
			for address, m := range directory.Mapped() {
				fmt.Printf("\n--------- Keys of %s -----------\n", address.Hex())
				for id, rec := range m.Keys {
					fmt.Printf("%s type %s purposes %v\n", id.Hex(), rec.Type, rec.Purposes)
				}
			}
		case "e":
			for _, address := range directory.Addresses() {
				id, _ := directory.Get(address)
				for _, e := range id.PendingExecutions() {
					fmt.Printf("\n%s #%d requested by %s: %s to %s data %x\n", address.Hex(), e.ID, e.Requester.Hex(), e.Value, e.Target.Hex(), e.Data)
				}
			}
		case "l":
			for address, m := range directory.Mapped() {
				fmt.Printf("\n--------- Claims on %s -----------\n", address.Hex())
				for id, c := range m.Claims {
					fmt.Printf("%s topic %d scheme %d issuer %s uri %s\n", id.Hex(), c.Topic, c.Scheme, c.Issuer.Hex(), c.URI)
				}
			}
		case "b":
			for address, balance := range directory.Ledger().Snapshot() {
				if _, ok := directory.Ledger().Contract(address); ok {
					fmt.Printf("%s (identity): %s\n", address.Hex(), balance)
					continue
				}
				fmt.Printf("%s: %s\n", address.Hex(), balance)
			}
		case "w":
			fmt.Printf("Current Wallet: \n%s\nAddress: %s\n", actors.MyWallet().Account, actors.MyAddress().Hex())
		case "c":
			fmt.Println("CURRENT CONFIG")
			for k, v := range actors.MakeOrGetConfig().AllSettings() {
				fmt.Printf("\nKey: %s; Value: %v\n", k, v)
			}
		}
	}
}
