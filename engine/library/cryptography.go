package library

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func Keccak256(data ...[]byte) common.Hash {
	return crypto.Keccak256Hash(data...)
}

// Uint256 encodes n as a 32 byte big endian word.
func Uint256(n uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(n).Bytes(), 32)
}

// KeyIDFromAddress left pads an address to a key id.
func KeyIDFromAddress(address Address) KeyID {
	return common.BytesToHash(address.Bytes())
}

// AddressFromKeyID returns the low 20 bytes of a key id.
func AddressFromKeyID(id KeyID) Address {
	return common.BytesToAddress(id.Bytes())
}

// AddressFromAccount derives the address of a nostr account. The x-only key is
// lifted to the point with even Y before hashing.
func AddressFromAccount(account Account) (Address, error) {
	b, err := hex.DecodeString(account)
	if err != nil {
		return Address{}, fmt.Errorf("invalid account %q: %w", account, err)
	}
	pub, err := schnorr.ParsePubKey(b)
	if err != nil {
		return Address{}, fmt.Errorf("invalid account %q: %w", account, err)
	}
	return crypto.PubkeyToAddress(*pub.ToECDSA()), nil
}

// AddressFromNodeKey derives the address of a compressed secp256k1 public key,
// such as the payee of a lightning invoice.
func AddressFromNodeKey(nodeKey string) (Address, error) {
	b, err := hex.DecodeString(nodeKey)
	if err != nil {
		return Address{}, fmt.Errorf("invalid node key %q: %w", nodeKey, err)
	}
	pub, err := btcec.ParsePubKey(b)
	if err != nil {
		return Address{}, fmt.Errorf("invalid node key %q: %w", nodeKey, err)
	}
	return crypto.PubkeyToAddress(*pub.ToECDSA()), nil
}

func KeyIDFromAccount(account Account) (KeyID, error) {
	addr, err := AddressFromAccount(account)
	if err != nil {
		return KeyID{}, err
	}
	return KeyIDFromAddress(addr), nil
}

// ParseKeyID accepts a 0x prefixed 32 byte key id, a 0x prefixed 20 byte
// address, or a bare 64 character nostr account.
func ParseKeyID(s string) (KeyID, error) {
	s = strings.TrimSpace(s)
	switch {
	case has0x(s) && len(s) == 66:
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return KeyID{}, fmt.Errorf("invalid key id %q: %w", s, err)
		}
		return common.BytesToHash(b), nil
	case has0x(s) && len(s) == 42:
		if !common.IsHexAddress(s) {
			return KeyID{}, fmt.Errorf("invalid address %q", s)
		}
		return KeyIDFromAddress(common.HexToAddress(s)), nil
	case len(s) == 64:
		return KeyIDFromAccount(s)
	}
	return KeyID{}, fmt.Errorf("cannot parse %q as a key id", s)
}

// ParseAddress accepts a 0x prefixed address or a bare 64 character nostr account.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if has0x(s) && common.IsHexAddress(s) {
		return common.HexToAddress(s), nil
	}
	if len(s) == 64 {
		return AddressFromAccount(s)
	}
	return Address{}, fmt.Errorf("cannot parse %q as an address", s)
}

func has0x(s string) bool {
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
}
