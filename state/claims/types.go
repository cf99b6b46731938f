package claims

import (
	"keyholder/engine/library"
)

// Scheme tags how a claim's signature is to be verified.
type Scheme uint64

const (
	SchemeECDSA    Scheme = 1
	SchemeRSA      Scheme = 2
	SchemeContract Scheme = 3
)

// Claim is an attestation about the identity, keyed by issuer and topic. The
// zero Claim is returned for ids that do not exist.
type Claim struct {
	Topic     uint64
	Scheme    Scheme
	Issuer    library.Address
	Signature []byte
	Data      []byte
	URI       string
}

// Exists is false for the zero sentinel. An issuer is required on add, so an
// empty issuer marks a missing claim.
func (c Claim) Exists() bool {
	return c.Issuer != (library.Address{})
}

// ID is the claim id derived from the claim's issuer and topic.
func (c Claim) ID() library.Hash {
	return ClaimID(c.Issuer, c.Topic)
}

type Mapped map[library.Hash]Claim
