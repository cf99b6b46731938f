package identity

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/exp/slices"
	"keyholder/engine/library"
	"keyholder/engine/metrics"
	"keyholder/state/ledger"
)

// Directory deploys identities onto a ledger and finds them again by address.
type Directory struct {
	ledger      *ledger.Ledger
	identities  map[library.Address]*Identity
	order       []library.Address
	nonces      map[library.Address]uint64
	subscribers []Subscriber
	mutex       *deadlock.Mutex
}

func NewDirectory(l *ledger.Ledger) *Directory {
	return &Directory{
		ledger:     l,
		identities: make(map[library.Address]*Identity),
		nonces:     make(map[library.Address]uint64),
		mutex:      &deadlock.Mutex{},
	}
}

func (d *Directory) Ledger() *ledger.Ledger {
	return d.ledger
}

// Subscribe registers s with every identity created from now on.
func (d *Directory) Subscribe(s Subscriber) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.subscribers = append(d.subscribers, s)
}

// Create deploys a new identity whose only key is creator with MANAGEMENT.
// The address is derived from the creator and a per-creator nonce, so one
// creator can own several identities.
func (d *Directory) Create(creator library.Address) (*Identity, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	nonce := d.nonces[creator]
	address := crypto.CreateAddress(creator, nonce)
	id := New(address, library.KeyIDFromAddress(creator), d.ledger)
	for _, s := range d.subscribers {
		id.Subscribe(s)
	}
	if err := d.ledger.Deploy(address, id); err != nil {
		return nil, err
	}
	d.nonces[creator] = nonce + 1
	d.identities[address] = id
	d.order = append(d.order, address)
	metrics.IdentitiesDeployed.Set(float64(len(d.order)))
	library.LogCLI(fmt.Sprintf("deployed identity %s for %s", address.Hex(), creator.Hex()), 4)
	return id, nil
}

func (d *Directory) Get(address library.Address) (*Identity, bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	id, ok := d.identities[address]
	return id, ok
}

// Addresses lists deployed identities in creation order.
func (d *Directory) Addresses() []library.Address {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return slices.Clone(d.order)
}

// Deposit moves value from from into the identity at to.
func (d *Directory) Deposit(from, to library.Address, value *big.Int) error {
	if _, ok := d.Get(to); !ok {
		return library.NewError(library.KindNotFound, "deposit", "no identity at %s", to.Hex())
	}
	if value == nil || value.Sign() <= 0 {
		return library.NewError(library.KindInvalid, "deposit", "value must be positive")
	}
	err := d.ledger.Call(from, to, value, nil)
	metrics.OperationsTotal.WithLabelValues("deposit", metrics.Outcome(err)).Inc()
	return err
}

// Mapped snapshots every identity. Each identity is locked on its own, so the
// result is not a single atomic view across identities.
func (d *Directory) Mapped() map[library.Address]Mapped {
	m := make(map[library.Address]Mapped)
	for _, address := range d.Addresses() {
		if id, ok := d.Get(address); ok {
			m[address] = id.Mapped()
		}
	}
	return m
}
