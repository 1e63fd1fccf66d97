// Package shardconfig implements the ShardConfiguration (§3, §4.7):
// the hash-range-to-endpoint routing table every coordinator process
// must agree on, plus a Raft-replicated store so that agreement holds
// across a coordinator cluster.
package shardconfig

import (
	"fmt"
	"sort"

	"github.com/cuemby/accessmesh/pkg/accesserr"
)

// Kind identifies which routing dimension a range belongs to: users
// route on the user hash, groups route on the group hash, and
// group-to-group mappings route on the owning ("from") group hash as
// their own orthogonal dimension, independent of where that group's
// own record lives.
type Kind string

const (
	KindUser         Kind = "user"
	KindGroup        Kind = "group"
	KindGroupToGroup Kind = "group_to_group"
)

// AllKinds lists the routing dimensions a Configuration must cover.
var AllKinds = []Kind{KindUser, KindGroup, KindGroupToGroup}

// HashLo and HashHi bound the folded, non-negative FNV-1a range this
// package's shardhash.Hash produces: [0, 0x7fffffff].
const (
	HashLo int32 = 0
	HashHi int32 = 0x7fffffff
)

// Range is one contiguous hash sub-range assigned to a shard
// group, identified by its client-facing endpoint(s).
type Range struct {
	Lo       int32
	Hi       int32
	Endpoint string
}

// Contains reports whether h falls within [Lo, Hi].
func (r Range) Contains(h int32) bool { return h >= r.Lo && h <= r.Hi }

// Configuration is one generation of the routing table: a sorted
// list of ranges per kind, covering the entire hash space disjointly.
type Configuration struct {
	Generation int64
	Ranges     map[Kind][]Range
}

// NewConfiguration constructs an empty configuration at generation 0.
func NewConfiguration() *Configuration {
	return &Configuration{Ranges: make(map[Kind][]Range)}
}

// RouteOne returns the endpoint whose range contains h for the given
// kind, via binary search over the sorted range list.
func (c *Configuration) RouteOne(kind Kind, h int32) (string, error) {
	ranges := c.Ranges[kind]
	i := sort.Search(len(ranges), func(i int) bool { return ranges[i].Hi >= h })
	if i < len(ranges) && ranges[i].Contains(h) {
		return ranges[i].Endpoint, nil
	}
	return "", fmt.Errorf("no range covers hash %d for kind %q: %w", h, kind, accesserr.ErrNotFound)
}

// RouteAll returns every distinct endpoint registered for kind.
func (c *Configuration) RouteAll(kind Kind) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range c.Ranges[kind] {
		if _, ok := seen[r.Endpoint]; !ok {
			seen[r.Endpoint] = struct{}{}
			out = append(out, r.Endpoint)
		}
	}
	return out
}

// Validate checks that, for every kind in AllKinds, the ranges are
// sorted, pairwise disjoint, and together cover exactly [HashLo, HashHi]
// with no gaps.
func (c *Configuration) Validate() error {
	for _, kind := range AllKinds {
		stored := c.Ranges[kind]
		if !sort.SliceIsSorted(stored, func(i, j int) bool { return stored[i].Lo < stored[j].Lo }) {
			return fmt.Errorf("kind %q: ranges are not sorted by Lo", kind)
		}
		ranges := append([]Range(nil), c.Ranges[kind]...)
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].Lo < ranges[j].Lo })

		if len(ranges) == 0 {
			return fmt.Errorf("kind %q has no ranges: %w", kind, accesserr.ErrMalformedEvent)
		}
		if ranges[0].Lo != HashLo {
			return fmt.Errorf("kind %q: first range must start at %d, got %d", kind, HashLo, ranges[0].Lo)
		}
		for i, r := range ranges {
			if r.Lo > r.Hi {
				return fmt.Errorf("kind %q: range %d has Lo > Hi", kind, i)
			}
			if i > 0 && ranges[i-1].Hi+1 != r.Lo {
				return fmt.Errorf("kind %q: gap or overlap between range %d (hi=%d) and range %d (lo=%d)",
					kind, i-1, ranges[i-1].Hi, i, r.Lo)
			}
		}
		if ranges[len(ranges)-1].Hi != HashHi {
			return fmt.Errorf("kind %q: last range must end at %d, got %d", kind, HashHi, ranges[len(ranges)-1].Hi)
		}
	}
	return nil
}

// Clone returns a deep copy, used before mutating a configuration for
// a split so the original stays valid for in-flight readers.
func (c *Configuration) Clone() *Configuration {
	cp := &Configuration{Generation: c.Generation, Ranges: make(map[Kind][]Range, len(c.Ranges))}
	for k, ranges := range c.Ranges {
		cp.Ranges[k] = append([]Range(nil), ranges...)
	}
	return cp
}
