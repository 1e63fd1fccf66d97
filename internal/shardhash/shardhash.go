// Package shardhash implements the sharding hash contract (§4.7):
// FNV-1a 32-bit over the UTF-8 bytes of an element's canonical string
// form, folded to non-negative. This is the interoperability contract
// across every writer shard, reader shard, and language implementing
// this protocol — it must never be substituted for a different hash
// function, however tempting a faster one might be.
package shardhash

import "hash/fnv"

// Hash returns the FNV-1a 32-bit hash of s, folded to the non-negative
// half of int32's range by clearing the sign bit. Folding (rather than
// masking to a smaller width) preserves the full 31 bits of entropy
// needed for even hash-range distribution.
func Hash(s string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s)) // hash.Hash32.Write never returns an error
	return int32(h.Sum32() & 0x7fffffff)
}

// CanonicalUser returns the canonical string form hashed for a user element.
func CanonicalUser(user string) string { return "user:" + user }

// CanonicalGroup returns the canonical string form hashed for a group element.
func CanonicalGroup(group string) string { return "group:" + group }

// CanonicalGroupToGroup returns the canonical string form hashed for a
// group-to-group mapping, keyed on its owning ("from") group.
func CanonicalGroupToGroup(fromGroup string) string { return "group_to_group:" + fromGroup }

// CanonicalEntity returns the canonical string form hashed for an
// (entityType, entity) pair.
func CanonicalEntity(entityType, entity string) string { return "entity:" + entityType + "/" + entity }
