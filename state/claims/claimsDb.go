package claims

import (
	"golang.org/x/exp/slices"
	"keyholder/engine/library"
	"keyholder/state/keys"
)

// ClaimID derives the claim id keccak256(issuer || uint256(topic)). Re-adding a
// claim with the same issuer and topic therefore overwrites it.
func ClaimID(issuer library.Address, topic uint64) library.Hash {
	return library.Keccak256(issuer.Bytes(), library.Uint256(topic))
}

// Registry stores claims and an index from topic to claim ids in insertion
// order. A claim id is listed under topic T iff the stored claim has topic T.
// Registry does no locking, the owning identity serializes access.
type Registry struct {
	authority keys.Authority
	claims    map[library.Hash]Claim
	byTopic   map[uint64][]library.Hash
}

func NewRegistry(authority keys.Authority) *Registry {
	return &Registry{
		authority: authority,
		claims:    make(map[library.Hash]Claim),
		byTopic:   make(map[uint64][]library.Hash),
	}
}

// Add upserts c. The caller must hold CLAIM. It returns the claim id and
// whether an existing claim was overwritten.
func (r *Registry) Add(caller library.KeyID, c Claim) (id library.Hash, changed bool, err error) {
	if !r.authority.HasPurpose(caller, keys.Claim) {
		return id, false, library.NewError(library.KindUnauthorized, "addClaim", "%s does not hold CLAIM", caller.Hex())
	}
	if (c.Issuer == library.Address{}) {
		return id, false, library.NewError(library.KindInvalid, "addClaim", "issuer must be set")
	}
	id = ClaimID(c.Issuer, c.Topic)
	_, changed = r.claims[id]
	r.claims[id] = Claim{
		Topic:     c.Topic,
		Scheme:    c.Scheme,
		Issuer:    c.Issuer,
		Signature: slices.Clone(c.Signature),
		Data:      slices.Clone(c.Data),
		URI:       c.URI,
	}
	if !slices.Contains(r.byTopic[c.Topic], id) {
		r.byTopic[c.Topic] = append(r.byTopic[c.Topic], id)
	}
	return id, changed, nil
}

// Remove deletes the claim and drops it from its topic index. The caller must
// hold CLAIM or MANAGEMENT. The removed claim is returned.
func (r *Registry) Remove(caller library.KeyID, id library.Hash) (Claim, error) {
	if !keys.HasAnyPurpose(r.authority, caller, keys.Claim, keys.Management) {
		return Claim{}, library.NewError(library.KindUnauthorized, "removeClaim", "%s holds neither CLAIM nor MANAGEMENT", caller.Hex())
	}
	c, ok := r.claims[id]
	if !ok {
		return Claim{}, library.NewError(library.KindNotFound, "removeClaim", "no claim %s", id.Hex())
	}
	delete(r.claims, id)
	ids := r.byTopic[c.Topic]
	if i := slices.Index(ids, id); i >= 0 {
		ids = slices.Delete(ids, i, i+1)
	}
	if len(ids) == 0 {
		delete(r.byTopic, c.Topic)
	} else {
		r.byTopic[c.Topic] = ids
	}
	return c, nil
}

// Get returns the claim, or the zero Claim if id is unknown.
func (r *Registry) Get(id library.Hash) Claim {
	c, ok := r.claims[id]
	if !ok {
		return Claim{}
	}
	c.Signature = slices.Clone(c.Signature)
	c.Data = slices.Clone(c.Data)
	return c
}

func (r *Registry) IDsByTopic(topic uint64) []library.Hash {
	return slices.Clone(r.byTopic[topic])
}

func (r *Registry) Mapped() Mapped {
	m := make(Mapped, len(r.claims))
	for id := range r.claims {
		m[id] = r.Get(id)
	}
	return m
}
