package chaindict

import (
	"fmt"
	"math"
)

var magic = []byte{99, 100, 49, 200, 7, 142, 91, 214}

// Version is the latest link file format version this package can read and
// the one it writes.
const Version uint16 = 1

// MaxEntries is the maximum number of entries a chain can hold.
const MaxEntries = math.MaxUint32

const (
	headerSize  = 24
	trailerSize = 4
	idSize      = 4
)

// Kind is the kind of a link file.
type Kind byte

// Supported link file kinds.
const (
	KindDelta Kind = iota + 1
	KindSnapshot
	unknownKind
)

func (k Kind) isValid() bool {
	return k >= KindDelta && k < unknownKind
}

// String returns the kind as used in storage keys.
func (k Kind) String() string {
	switch k {
	case KindDelta:
		return "delta"
	case KindSnapshot:
		return "snapshot"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// --------------------------------------------------------------------

// Entry is a single value with the id assigned to it.
type Entry struct {
	Value []byte
	ID    uint32
}

// Link describes a single step in a chain.
type Link struct {
	Index       uint32
	HasDelta    bool
	HasSnapshot bool
}

// Predecessor returns the index of the link this link extends. The first link
// of a chain has no predecessor.
func (l Link) Predecessor() (uint32, bool) {
	if l.Index == 0 {
		return 0, false
	}
	return l.Index - 1, true
}

// LinkInfo extends Link with the entry range introduced by the link.
type LinkInfo struct {
	Link

	// BaseID is the id of the first entry introduced by the link,
	// which is also the total number of entries of all previous links.
	BaseID uint32
	// EntryCount is the number of entries introduced by the link.
	EntryCount uint32
}

// Total returns the number of entries in the chain up to and including this link.
func (i LinkInfo) Total() uint32 { return i.BaseID + i.EntryCount }
