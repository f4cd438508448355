package chaindict

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// LinkWriter builds a single link file in memory. Link files are small enough
// to be committed with a single put and the header carries the entry count,
// so the whole file is buffered until Finish.
type LinkWriter struct {
	kind   Kind
	index  uint32
	baseID uint32

	next  uint32 // the id expected by the next Append
	count uint32 // number of appended entries
	buf   []byte
}

// NewLinkWriter starts a link file of the given kind for the link with the
// given index. baseID is the id of the first entry introduced by the link.
//
// Delta files expect entries with ids starting at baseID, snapshot files expect
// all entries of the chain with ids starting at 0.
func NewLinkWriter(kind Kind, index, baseID uint32) *LinkWriter {
	w := &LinkWriter{
		kind:   kind,
		index:  index,
		baseID: baseID,
		buf:    make([]byte, headerSize, 4096),
	}
	if kind == KindDelta {
		w.next = baseID
	}
	return w
}

// Len returns the number of entries appended so far.
func (w *LinkWriter) Len() int { return int(w.count) }

// Append appends an entry. Ids must be appended in strictly ascending,
// gap-free order.
func (w *LinkWriter) Append(value []byte, id uint32) error {
	if w.buf == nil {
		return errWriterFinished
	}
	if id != w.next {
		return fmt.Errorf("chaindict: attempted an out-of-sequence append, id %d must be %d", id, w.next)
	}
	if uint64(w.next) >= MaxEntries {
		return ErrTooManyEntries
	}

	w.buf = AppendEntry(w.buf, value, id)
	w.next++
	w.count++
	return nil
}

// Finish writes header and trailer and returns the encoded file. The writer
// cannot be used afterwards.
func (w *LinkWriter) Finish() ([]byte, error) {
	if w.buf == nil {
		return nil, errWriterFinished
	}
	if !w.kind.isValid() {
		return nil, fmt.Errorf("chaindict: invalid file kind %d", byte(w.kind))
	}
	if w.kind == KindSnapshot && w.baseID > w.count {
		return nil, fmt.Errorf("chaindict: snapshot base id %d exceeds entry count %d", w.baseID, w.count)
	}

	h := Header{
		Version:    Version,
		Kind:       w.kind,
		LinkIndex:  w.index,
		BaseID:     w.baseID,
		EntryCount: w.count,
	}
	h.put(w.buf[:headerSize])

	var tmp [trailerSize]byte
	binary.LittleEndian.PutUint32(tmp[:], crc32.Checksum(w.buf, castagnoli))
	data := append(w.buf, tmp[:]...)

	w.buf = nil
	return data, nil
}

// EncodeLinkFile encodes a complete link file from entries.
func EncodeLinkFile(kind Kind, index, baseID uint32, entries []Entry) ([]byte, error) {
	w := NewLinkWriter(kind, index, baseID)
	for _, ent := range entries {
		if err := w.Append(ent.Value, ent.ID); err != nil {
			return nil, err
		}
	}
	return w.Finish()
}
