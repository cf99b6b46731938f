package claims

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/exp/slices"
	"keyholder/engine/library"
	"keyholder/state/keys"
)

const signedMessagePrefix = "\x19Ethereum Signed Message:\n32"

// SignatureDigest is the hash an issuer signs for a claim about identity:
// the prefixed keccak256(identity || uint256(topic) || data).
func SignatureDigest(identity library.Address, topic uint64, data []byte) library.Hash {
	inner := library.Keccak256(identity.Bytes(), library.Uint256(topic), data)
	return library.Keccak256([]byte(signedMessagePrefix), inner.Bytes())
}

// RecoverSigner returns the address that produced an ECDSA claim signature.
// Both 0/1 and 27/28 recovery ids are accepted.
func RecoverSigner(identity library.Address, c Claim) (library.Address, error) {
	if len(c.Signature) != crypto.SignatureLength {
		return library.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(c.Signature))
	}
	sig := slices.Clone(c.Signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	digest := SignatureDigest(identity, c.Topic, c.Data)
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return library.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks the signature of the stored claim id against its issuer. A
// claim issued by the identity itself is valid when signed by one of the
// identity's CLAIM keys. Only ECDSA claims can be verified.
func (r *Registry) Verify(identity library.Address, id library.Hash) error {
	c, ok := r.claims[id]
	if !ok {
		return library.NewError(library.KindNotFound, "verifyClaim", "no claim %s", id.Hex())
	}
	if c.Scheme != SchemeECDSA {
		return library.NewError(library.KindInvalid, "verifyClaim", "cannot verify scheme %d", uint64(c.Scheme))
	}
	signer, err := RecoverSigner(identity, c)
	if err != nil {
		return library.WrapError(library.KindInvalid, "verifyClaim", err, "bad signature on %s", id.Hex())
	}
	if signer == c.Issuer {
		return nil
	}
	if c.Issuer == identity && r.authority.HasPurpose(library.KeyIDFromAddress(signer), keys.Claim) {
		return nil
	}
	return library.NewError(library.KindInvalid, "verifyClaim", "claim %s signed by %s, not by issuer %s", id.Hex(), signer.Hex(), c.Issuer.Hex())
}
