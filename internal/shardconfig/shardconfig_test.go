package shardconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/accessmesh/pkg/accesserr"
)

func validConfig() *Configuration {
	cfg := NewConfiguration()
	cfg.Ranges[KindUser] = []Range{
		{Lo: 0, Hi: 0x3fffffff, Endpoint: "shard-a"},
		{Lo: 0x40000000, Hi: HashHi, Endpoint: "shard-b"},
	}
	cfg.Ranges[KindGroup] = []Range{
		{Lo: 0, Hi: HashHi, Endpoint: "shard-a"},
	}
	cfg.Ranges[KindGroupToGroup] = []Range{
		{Lo: 0, Hi: HashHi, Endpoint: "shard-a"},
	}
	return cfg
}

func TestValidate_AcceptsDisjointCompleteCoverage(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_RejectsGap(t *testing.T) {
	cfg := validConfig()
	cfg.Ranges[KindUser] = []Range{
		{Lo: 0, Hi: 100, Endpoint: "shard-a"},
		{Lo: 200, Hi: HashHi, Endpoint: "shard-b"},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsOverlap(t *testing.T) {
	cfg := validConfig()
	cfg.Ranges[KindUser] = []Range{
		{Lo: 0, Hi: 100, Endpoint: "shard-a"},
		{Lo: 50, Hi: HashHi, Endpoint: "shard-b"},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsMissingKind(t *testing.T) {
	cfg := NewConfiguration()
	cfg.Ranges[KindUser] = []Range{{Lo: 0, Hi: HashHi, Endpoint: "shard-a"}}
	// KindGroup absent entirely.
	assert.Error(t, cfg.Validate())
}

func TestRouteOne_FindsContainingRange(t *testing.T) {
	cfg := validConfig()

	ep, err := cfg.RouteOne(KindUser, 0)
	require.NoError(t, err)
	assert.Equal(t, "shard-a", ep)

	ep, err = cfg.RouteOne(KindUser, HashHi)
	require.NoError(t, err)
	assert.Equal(t, "shard-b", ep)
}

func TestRouteOne_NoCoverageReturnsNotFound(t *testing.T) {
	cfg := NewConfiguration()
	cfg.Ranges[KindUser] = []Range{{Lo: 0, Hi: 100, Endpoint: "shard-a"}}

	_, err := cfg.RouteOne(KindUser, 200)
	assert.ErrorIs(t, err, accesserr.ErrNotFound)
}

func TestRouteAll_DeduplicatesEndpoints(t *testing.T) {
	cfg := NewConfiguration()
	cfg.Ranges[KindUser] = []Range{
		{Lo: 0, Hi: 100, Endpoint: "shard-a"},
		{Lo: 101, Hi: HashHi, Endpoint: "shard-a"},
	}
	assert.Equal(t, []string{"shard-a"}, cfg.RouteAll(KindUser))
}

func TestClone_IsIndependentOfOriginal(t *testing.T) {
	cfg := validConfig()
	clone := cfg.Clone()
	clone.Ranges[KindUser][0].Endpoint = "mutated"

	assert.Equal(t, "shard-a", cfg.Ranges[KindUser][0].Endpoint)
}
