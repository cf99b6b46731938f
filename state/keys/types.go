package keys

import (
	"fmt"
	"strconv"
	"strings"

	"keyholder/engine/library"
)

// Purpose is a capability tag a key may hold.
type Purpose uint64

const (
	Management Purpose = 1
	Action     Purpose = 2
	Claim      Purpose = 3
	Encryption Purpose = 4
	// Payment permits restricted direct value transfer without approval.
	Payment Purpose = 101
)

var purposeNames = map[Purpose]string{
	Management: "MANAGEMENT",
	Action:     "ACTION",
	Claim:      "CLAIM",
	Encryption: "ENCRYPTION",
	Payment:    "PAYMENT",
}

// Purposes lists every known purpose in ascending order.
func Purposes() []Purpose {
	return []Purpose{Management, Action, Claim, Encryption, Payment}
}

func (p Purpose) Valid() bool {
	_, ok := purposeNames[p]
	return ok
}

func (p Purpose) String() string {
	if name, ok := purposeNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PURPOSE(%d)", uint64(p))
}

// ParsePurpose accepts a purpose name (any case) or its numeric value.
func ParsePurpose(s string) (Purpose, error) {
	s = strings.TrimSpace(s)
	for p, name := range purposeNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || !Purpose(n).Valid() {
		return 0, fmt.Errorf("unknown key purpose %q", s)
	}
	return Purpose(n), nil
}

// Type is the signature scheme of a key. It is fixed when the key is first
// registered.
type Type uint64

const (
	ECDSA Type = 1
	RSA   Type = 2
)

func (t Type) Valid() bool {
	return t == ECDSA || t == RSA
}

func (t Type) String() string {
	switch t {
	case ECDSA:
		return "ECDSA"
	case RSA:
		return "RSA"
	case 0:
		return "NONE"
	}
	return fmt.Sprintf("TYPE(%d)", uint64(t))
}

// ParseType accepts a type name (any case) or its numeric value. Only ECDSA
// and RSA are known.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "ECDSA":
		return ECDSA, nil
	case "RSA":
		return RSA, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || !Type(n).Valid() {
		return 0, fmt.Errorf("unknown key type %q", s)
	}
	return Type(n), nil
}

// Key is the record returned by Get. The zero Key is returned for a missing
// (id, purpose) pair.
type Key struct {
	Purpose Purpose
	Type    Type
	ID      library.KeyID
}

func (k Key) Exists() bool {
	return k.Purpose != 0
}

// Record is a key with all of its purposes, as exported by Mapped.
type Record struct {
	ID       library.KeyID
	Type     Type
	Purposes []Purpose
}

type Mapped map[library.KeyID]Record

// Authority answers the authorization question used by every other module:
// does id hold purpose p.
type Authority interface {
	HasPurpose(id library.KeyID, p Purpose) bool
}

// HasAnyPurpose reports whether id holds at least one of ps under a.
func HasAnyPurpose(a Authority, id library.KeyID, ps ...Purpose) bool {
	for _, p := range ps {
		if a.HasPurpose(id, p) {
			return true
		}
	}
	return false
}
