package chaindict

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Header is the fixed-size header of a link file.
type Header struct {
	Version    uint16
	Kind       Kind
	LinkIndex  uint32
	BaseID     uint32
	EntryCount uint32
}

// NewEntries returns the number of entries introduced by the link the file
// belongs to.
func (h Header) NewEntries() uint32 {
	if h.Kind == KindSnapshot {
		return h.EntryCount - h.BaseID
	}
	return h.EntryCount
}

// Total returns the number of entries in the chain up to and including the
// link the file belongs to.
func (h Header) Total() uint32 {
	if h.Kind == KindSnapshot {
		return h.EntryCount
	}
	return h.BaseID + h.EntryCount
}

// firstID returns the id of the first entry stored in the file.
func (h Header) firstID() uint32 {
	if h.Kind == KindSnapshot {
		return 0
	}
	return h.BaseID
}

func (h Header) put(p []byte) {
	copy(p[0:8], magic)
	binary.LittleEndian.PutUint16(p[8:], h.Version)
	p[10] = byte(h.Kind)
	p[11] = 0
	binary.LittleEndian.PutUint32(p[12:], h.LinkIndex)
	binary.LittleEndian.PutUint32(p[16:], h.BaseID)
	binary.LittleEndian.PutUint32(p[20:], h.EntryCount)
}

// ReadHeader parses and validates the header of a link file, without
// verifying its checksum or body.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < headerSize+trailerSize {
		return Header{}, fmt.Errorf("%w: file too small, %d bytes", ErrMalformedHeader, len(data))
	}
	if !bytes.Equal(data[0:8], magic) {
		return Header{}, fmt.Errorf("%w: bad magic byte sequence", ErrMalformedHeader)
	}

	h := Header{
		Version:    binary.LittleEndian.Uint16(data[8:]),
		Kind:       Kind(data[10]),
		LinkIndex:  binary.LittleEndian.Uint32(data[12:]),
		BaseID:     binary.LittleEndian.Uint32(data[16:]),
		EntryCount: binary.LittleEndian.Uint32(data[20:]),
	}
	if h.Version == 0 {
		return h, fmt.Errorf("%w: version 0", ErrMalformedHeader)
	}
	if h.Version > Version {
		return h, fmt.Errorf("%w: file version %d, supported up to %d", ErrUnsupportedVersion, h.Version, Version)
	}
	return h, nil
}

func (h Header) validate(reserved byte) error {
	switch {
	case !h.Kind.isValid():
		return fmt.Errorf("%w: bad file kind %d", ErrMalformedHeader, byte(h.Kind))
	case reserved != 0:
		return fmt.Errorf("%w: reserved byte is %d", ErrMalformedHeader, reserved)
	case h.Kind == KindSnapshot && h.BaseID > h.EntryCount:
		return fmt.Errorf("%w: snapshot base id %d exceeds entry count %d", ErrMalformedHeader, h.BaseID, h.EntryCount)
	case h.Kind == KindDelta && uint64(h.BaseID)+uint64(h.EntryCount) > MaxEntries:
		return fmt.Errorf("%w: delta ids %d+%d exceed the id space", ErrMalformedHeader, h.BaseID, h.EntryCount)
	}
	return nil
}

// --------------------------------------------------------------------

// LinkFile is a decoded link file.
type LinkFile struct {
	Header
	// Entries in id order. Values share memory with the decoded data and
	// must not be modified.
	Entries []Entry

	size int
}

// Size returns the encoded size of the file in bytes.
func (f *LinkFile) Size() int { return f.size }

// DecodeLinkFile decodes and fully validates a link file.
func DecodeLinkFile(data []byte) (*LinkFile, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}

	end := len(data) - trailerSize
	want := binary.LittleEndian.Uint32(data[end:])
	if got := crc32.Checksum(data[:end], castagnoli); got != want {
		return nil, fmt.Errorf("%w: checksum mismatch, %08x != %08x", ErrCorruptFile, got, want)
	}

	if err := h.validate(data[11]); err != nil {
		return nil, err
	}

	// every entry takes at least 5 bytes, cap the allocation for bogus counts
	capacity := int(h.EntryCount)
	if limit := (end - headerSize) / (1 + idSize); capacity > limit {
		return nil, fmt.Errorf("%w: %d entries cannot fit in %d bytes", ErrMalformedHeader, h.EntryCount, end-headerSize)
	}

	body := data[:end]
	entries := make([]Entry, 0, capacity)
	pos, next := headerSize, h.firstID()
	for i := uint32(0); i < h.EntryCount; i++ {
		ent, n, err := DecodeEntry(body, pos)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrMalformedHeader, i, err)
		}
		if ent.ID != next {
			return nil, fmt.Errorf("%w: entry %d has id %d, expected %d", ErrMalformedHeader, i, ent.ID, next)
		}
		entries = append(entries, ent)
		pos += n
		next++
	}
	if pos != end {
		return nil, fmt.Errorf("%w: %d trailing bytes after %d entries", ErrMalformedHeader, end-pos, h.EntryCount)
	}

	return &LinkFile{Header: h, Entries: entries, size: len(data)}, nil
}
