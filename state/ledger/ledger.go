package ledger

import (
	"fmt"
	"math/big"

	"github.com/sasha-s/go-deadlock"
	"keyholder/engine/library"
)

// Contract is a program deployed at an address. Receive is called after value
// has been moved to the contract; returning an error reverts the transfer.
type Contract interface {
	Receive(from library.Address, value *big.Int, data []byte) error
}

// Ledger is the in-process host: it holds balances and dispatches calls to
// deployed contracts. It implements library.CallExecutor.
type Ledger struct {
	balances  map[library.Address]*big.Int
	contracts map[library.Address]Contract
	mutex     *deadlock.Mutex
}

func New() *Ledger {
	return &Ledger{
		balances:  make(map[library.Address]*big.Int),
		contracts: make(map[library.Address]Contract),
		mutex:     &deadlock.Mutex{},
	}
}

// Credit mints value to account. It is used at genesis and in tests.
func (l *Ledger) Credit(account library.Address, value *big.Int) error {
	if value == nil || value.Sign() < 0 {
		return library.NewError(library.KindInvalid, "credit", "value must be non-negative")
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.add(account, value)
	return nil
}

// Balance returns a copy of the balance held by account.
func (l *Ledger) Balance(account library.Address) *big.Int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.balance(account)
}

// Deploy registers c at address. Deploying twice to the same address fails.
func (l *Ledger) Deploy(address library.Address, c Contract) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if _, exists := l.contracts[address]; exists {
		return library.NewError(library.KindInvalid, "deploy", "a contract already exists at %s", address.Hex())
	}
	l.contracts[address] = c
	return nil
}

// Contract returns the contract deployed at address, if any.
func (l *Ledger) Contract(address library.Address) (Contract, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	c, ok := l.contracts[address]
	return c, ok
}

// Call moves value from from to to and, if to is a contract, hands it the call.
// The ledger lock is released before the contract runs so that the contract
// may itself call back into the ledger.
func (l *Ledger) Call(from, to library.Address, value *big.Int, data []byte) error {
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return library.NewError(library.KindInvalid, "call", "value must be non-negative")
	}
	l.mutex.Lock()
	if l.balance(from).Cmp(value) < 0 {
		l.mutex.Unlock()
		return library.NewError(library.KindInsufficientFunds, "call", "%s holds less than %s", from.Hex(), value)
	}
	l.sub(from, value)
	l.add(to, value)
	c, isContract := l.contracts[to]
	l.mutex.Unlock()

	if !isContract {
		return nil
	}
	if err := c.Receive(from, value, data); err != nil {
		l.revert(from, to, value)
		return library.WrapError(library.KindExecutionFailed, "call", err, "call to %s reverted", to.Hex())
	}
	return nil
}

// Snapshot returns a copy of every non-zero balance.
func (l *Ledger) Snapshot() map[library.Address]*big.Int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	m := make(map[library.Address]*big.Int, len(l.balances))
	for account, b := range l.balances {
		if b.Sign() != 0 {
			m[account] = new(big.Int).Set(b)
		}
	}
	return m
}

func (l *Ledger) revert(from, to library.Address, value *big.Int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.balance(to).Cmp(value) < 0 {
		library.LogCLI(fmt.Sprintf("cannot revert transfer of %s from %s, contract %s already spent it", value, from.Hex(), to.Hex()), 1)
		return
	}
	l.sub(to, value)
	l.add(from, value)
}

func (l *Ledger) balance(account library.Address) *big.Int {
	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (l *Ledger) add(account library.Address, value *big.Int) {
	b := l.entry(account)
	b.Add(b, value)
}

func (l *Ledger) sub(account library.Address, value *big.Int) {
	b := l.entry(account)
	b.Sub(b, value)
}

func (l *Ledger) entry(account library.Address) *big.Int {
	b, ok := l.balances[account]
	if !ok {
		b = new(big.Int)
		l.balances[account] = b
	}
	return b
}
