package replay

import (
	"github.com/sasha-s/go-deadlock"
	"keyholder/engine/library"
)

// Guard remembers every operation event that has been handled, and the last
// one per account. A signed event is applied at most once: otherwise anyone
// could re-broadcast an old execute or executePayment event.
type Guard struct {
	handled map[library.Sha256]struct{}
	last    map[library.Account]library.Sha256
	mutex   *deadlock.Mutex
}

func NewGuard() *Guard {
	return &Guard{
		handled: make(map[library.Sha256]struct{}),
		last:    make(map[library.Account]library.Sha256),
		mutex:   &deadlock.Mutex{},
	}
}

// Claim marks eventID as handled for account. It returns false if the event
// was handled before, whatever its outcome was then.
func (g *Guard) Claim(account library.Account, eventID library.Sha256) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if _, ok := g.handled[eventID]; ok {
		return false
	}
	g.handled[eventID] = struct{}{}
	g.last[account] = eventID
	return true
}

// LastFor returns the id of the latest event handled for account.
func (g *Guard) LastFor(account library.Account) (library.Sha256, bool) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	id, ok := g.last[account]
	return id, ok
}

func (g *Guard) Len() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return len(g.handled)
}
