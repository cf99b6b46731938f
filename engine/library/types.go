package library

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type Wallet struct {
	PrivateKey string
	SeedWords  string
	Account    Account
}

// Account is a hex encoded nostr (x-only secp256k1) public key.
type Account = string

type Sha256 = string

// KeyID is the fixed width identifier of an authorization principal. For an
// individual or for another program it is the principal's address left padded
// to 32 bytes.
type KeyID = common.Hash

type Address = common.Address

// Hash is a 32 byte Keccak digest, used for claim ids.
type Hash = common.Hash

// CallExecutor performs outbound value/data transfers on behalf of an identity.
type CallExecutor interface {
	Balance(account Address) *big.Int
	Call(from, to Address, value *big.Int, data []byte) error
}
