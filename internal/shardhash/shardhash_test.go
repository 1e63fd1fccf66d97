package shardhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_IsNonNegative(t *testing.T) {
	inputs := []string{"", "alice", "group:admins", "entity:patient/p1", "a very long element name indeed"}
	for _, in := range inputs {
		h := Hash(in)
		assert.GreaterOrEqual(t, h, int32(0), "hash of %q must be non-negative", in)
	}
}

func TestHash_IsDeterministic(t *testing.T) {
	assert.Equal(t, Hash("alice"), Hash("alice"))
	assert.Equal(t, Hash(CanonicalUser("alice")), Hash(CanonicalUser("alice")))
}

func TestHash_KnownFNV1aValue(t *testing.T) {
	// FNV-1a 32-bit of the empty string is the offset basis itself.
	assert.Equal(t, int32(2166136261&0x7fffffff), Hash(""))
}

func TestCanonicalForms_AreDistinctNamespaces(t *testing.T) {
	assert.NotEqual(t, CanonicalUser("x"), CanonicalGroup("x"))
	assert.NotEqual(t, Hash(CanonicalUser("x")), Hash(CanonicalGroup("x")))
	assert.NotEqual(t, CanonicalGroup("x"), CanonicalGroupToGroup("x"))
	assert.NotEqual(t, Hash(CanonicalGroup("x")), Hash(CanonicalGroupToGroup("x")))
}
