package keys

import (
	"golang.org/x/exp/slices"
	"keyholder/engine/library"
)

// Registry stores keys, their purposes and their type, plus an inverted index
// from purpose to key ids. A key id is listed under purpose P iff P is in that
// key's purpose set. Registry does no locking, the owning identity serializes
// access.
type Registry struct {
	purposes  map[library.KeyID][]Purpose
	types     map[library.KeyID]Type
	byPurpose map[Purpose][]library.KeyID
}

// NewRegistry creates a registry whose only key is owner, holding MANAGEMENT
// with type ECDSA. The bootstrap key needs no caller check.
func NewRegistry(owner library.KeyID) *Registry {
	r := &Registry{
		purposes:  make(map[library.KeyID][]Purpose),
		types:     make(map[library.KeyID]Type),
		byPurpose: make(map[Purpose][]library.KeyID),
	}
	r.insert(owner, Management, ECDSA)
	return r
}

// Add grants purpose p to id. The caller must hold MANAGEMENT. The type is
// recorded the first time id is seen and is not overwritten afterwards.
// Adding a pair that already exists is a no-op and reports added == false.
func (r *Registry) Add(caller, id library.KeyID, p Purpose, t Type) (added bool, err error) {
	if !r.HasPurpose(caller, Management) {
		return false, library.NewError(library.KindUnauthorized, "addKey", "%s does not hold MANAGEMENT", caller.Hex())
	}
	if !p.Valid() {
		return false, library.NewError(library.KindInvalid, "addKey", "unknown purpose %d", uint64(p))
	}
	if !t.Valid() {
		return false, library.NewError(library.KindInvalid, "addKey", "unknown key type %d", uint64(t))
	}
	if (id == library.KeyID{}) {
		return false, library.NewError(library.KindInvalid, "addKey", "key id must be set")
	}
	if r.HasPurpose(id, p) {
		return false, nil
	}
	r.insert(id, p, t)
	return true, nil
}

// Remove revokes purpose p from id. The caller must hold MANAGEMENT. When the
// last purpose goes, the key and its type are forgotten. The removed key's
// record is returned.
func (r *Registry) Remove(caller, id library.KeyID, p Purpose) (Key, error) {
	if !r.HasPurpose(caller, Management) {
		return Key{}, library.NewError(library.KindUnauthorized, "removeKey", "%s does not hold MANAGEMENT", caller.Hex())
	}
	if !r.HasPurpose(id, p) {
		return Key{}, library.NewError(library.KindNotFound, "removeKey", "%s does not hold %s", id.Hex(), p)
	}
	removed := Key{Purpose: p, Type: r.types[id], ID: id}
	r.purposes[id] = deleteValue(r.purposes[id], p)
	r.byPurpose[p] = deleteValue(r.byPurpose[p], id)
	if len(r.purposes[id]) == 0 {
		delete(r.purposes, id)
		delete(r.types, id)
	}
	if len(r.byPurpose[p]) == 0 {
		delete(r.byPurpose, p)
	}
	return removed, nil
}

// Get returns the (purpose, type, id) record, or the zero Key when id does not
// hold p.
func (r *Registry) Get(id library.KeyID, p Purpose) Key {
	if !r.HasPurpose(id, p) {
		return Key{}
	}
	return Key{Purpose: p, Type: r.types[id], ID: id}
}

// PurposesOf returns the purposes held by id in the order they were granted.
func (r *Registry) PurposesOf(id library.KeyID) []Purpose {
	return slices.Clone(r.purposes[id])
}

// ByPurpose returns the ids holding p in insertion order.
func (r *Registry) ByPurpose(p Purpose) []library.KeyID {
	return slices.Clone(r.byPurpose[p])
}

func (r *Registry) HasPurpose(id library.KeyID, p Purpose) bool {
	return slices.Contains(r.purposes[id], p)
}

func (r *Registry) Mapped() Mapped {
	m := make(Mapped, len(r.purposes))
	for id, purposes := range r.purposes {
		m[id] = Record{ID: id, Type: r.types[id], Purposes: slices.Clone(purposes)}
	}
	return m
}

func (r *Registry) insert(id library.KeyID, p Purpose, t Type) {
	if _, exists := r.types[id]; !exists {
		r.types[id] = t
	}
	r.purposes[id] = append(r.purposes[id], p)
	r.byPurpose[p] = append(r.byPurpose[p], id)
}

func deleteValue[T comparable](s []T, v T) []T {
	if i := slices.Index(s, v); i >= 0 {
		return slices.Delete(s, i, i+1)
	}
	return s
}
