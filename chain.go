package chaindict

import (
	"fmt"
	"strings"
)

// Chain is a read-only view of the links of a chain, derived purely from the
// presence of link files in the store. A link exists once its first file was
// committed, there is no separate index.
//
// Chains only ever grow, so a Chain can be kept around and must be refreshed
// (via Resolver.Chain) to observe new links.
type Chain struct {
	namespace string
	links     []Link
	snapshots []uint32
}

// buildChain derives chain metadata from listed keys. Keys not matching the
// link key scheme are ignored.
func buildChain(namespace string, keys []string) (*Chain, error) {
	type parsed struct {
		index uint32
		kind  Kind
	}

	files := make([]parsed, 0, len(keys))
	size := 0
	for _, key := range keys {
		index, kind, ok := ParseLinkKey(namespace, key)
		if !ok {
			continue
		}
		files = append(files, parsed{index: index, kind: kind})
		if int64(index) >= int64(size) {
			size = int(index) + 1
		}
	}

	// every link needs at least one file
	if size > len(files) {
		return nil, fmt.Errorf("%w: %q has %d link files, not enough for %d links", ErrBrokenChain, namespace, len(files), size)
	}

	c := &Chain{namespace: namespace, links: make([]Link, size)}
	for i := range c.links {
		c.links[i].Index = uint32(i)
	}
	for _, f := range files {
		switch f.kind {
		case KindDelta:
			c.links[f.index].HasDelta = true
		case KindSnapshot:
			c.links[f.index].HasSnapshot = true
		}
	}

	var missing []string
	for _, l := range c.links {
		if !l.HasDelta && !l.HasSnapshot {
			if len(missing) < 8 {
				missing = append(missing, fmt.Sprint(l.Index))
			}
			continue
		}
		if l.HasSnapshot {
			c.snapshots = append(c.snapshots, l.Index)
		}
	}
	if len(missing) != 0 {
		return nil, fmt.Errorf("%w: %q has no files for links %s", ErrBrokenChain, namespace, strings.Join(missing, ", "))
	}
	return c, nil
}

// Namespace returns the namespace the chain was loaded from.
func (c *Chain) Namespace() string { return c.namespace }

// Len returns the number of links.
func (c *Chain) Len() int { return len(c.links) }

// Latest returns the index of the latest link. It returns false if the chain
// is empty.
func (c *Chain) Latest() (uint32, bool) {
	if len(c.links) == 0 {
		return 0, false
	}
	return uint32(len(c.links) - 1), true
}

// Link returns the link with the given index.
func (c *Chain) Link(index uint32) (Link, bool) {
	if uint64(index) >= uint64(len(c.links)) {
		return Link{}, false
	}
	return c.links[index], true
}

// Links returns all links in order.
func (c *Chain) Links() []Link {
	return append([]Link(nil), c.links...)
}

// SnapshotIndices returns the indices of all links with a snapshot, ascending.
func (c *Chain) SnapshotIndices() []uint32 {
	return append([]uint32(nil), c.snapshots...)
}

// snapshotsUpTo returns the snapshot indices <= target, descending.
func (c *Chain) snapshotsUpTo(target uint32) []uint32 {
	var res []uint32
	for i := len(c.snapshots) - 1; i >= 0; i-- {
		if s := c.snapshots[i]; s <= target {
			res = append(res, s)
		}
	}
	return res
}

// linksSinceSnapshot returns the number of links after the latest snapshot at
// or before link, counting link itself.
func (c *Chain) linksSinceSnapshot(link uint32) uint32 {
	if snaps := c.snapshotsUpTo(link); len(snaps) != 0 {
		return link - snaps[0]
	}
	return link + 1
}

// deltasCover returns true if every link in [from, to] has a delta file.
func (c *Chain) deltasCover(from, to uint32) bool {
	for i := uint64(from); i <= uint64(to); i++ {
		if i >= uint64(len(c.links)) || !c.links[i].HasDelta {
			return false
		}
	}
	return true
}
