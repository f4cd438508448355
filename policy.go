package chaindict

// SnapshotPolicy decides when the extender writes snapshot files in addition
// to deltas. Snapshots bound the number of deltas a reader has to replay, at
// the cost of storing the full dictionary again.
type SnapshotPolicy interface {
	// ShouldSnapshot is called for every newly committed link. since is the
	// number of links since the last snapshot, counting the new link itself,
	// or the total number of links when no snapshot exists.
	ShouldSnapshot(link, since uint32) bool
}

// SnapshotPolicyFunc adapts a plain function to a SnapshotPolicy.
type SnapshotPolicyFunc func(link, since uint32) bool

// ShouldSnapshot implements SnapshotPolicy.
func (f SnapshotPolicyFunc) ShouldSnapshot(link, since uint32) bool { return f(link, since) }

// SnapshotEvery writes a snapshot once n links have passed since the last one.
// SnapshotEvery(1) writes a snapshot for every link.
type SnapshotEvery uint32

// ShouldSnapshot implements SnapshotPolicy.
func (n SnapshotEvery) ShouldSnapshot(_, since uint32) bool {
	return n != 0 && since >= uint32(n)
}

// NeverSnapshot only writes snapshots on explicit request.
var NeverSnapshot SnapshotPolicy = SnapshotEvery(0)
