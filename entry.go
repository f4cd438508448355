package chaindict

import (
	"encoding/binary"
	"fmt"
)

// AppendEntry appends the encoding of a single entry to dst.
func AppendEntry(dst []byte, value []byte, id uint32) []byte {
	var tmp [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(tmp[:], uint64(len(value)))
	dst = append(dst, tmp[:n]...)
	dst = append(dst, value...)

	binary.LittleEndian.PutUint32(tmp[:], id)
	return append(dst, tmp[:idSize]...)
}

// EncodeEntry is a shortcut for AppendEntry(nil, value, id).
func EncodeEntry(value []byte, id uint32) []byte {
	return AppendEntry(nil, value, id)
}

// EncodedEntrySize returns the number of bytes needed to encode an entry with
// the given value.
func EncodedEntrySize(value []byte) int {
	return uvarintLen(uint64(len(value))) + len(value) + idSize
}

// DecodeEntry decodes the entry starting at buf[off:] and returns it together
// with the number of bytes consumed. The returned value shares memory with buf.
func DecodeEntry(buf []byte, off int) (Entry, int, error) {
	if off < 0 || off > len(buf) {
		return Entry{}, 0, fmt.Errorf("%w: offset %d out of range", ErrTruncatedEntry, off)
	}
	src := buf[off:]

	vlen, n := binary.Uvarint(src)
	switch {
	case n == 0:
		return Entry{}, 0, fmt.Errorf("%w: missing value length at offset %d", ErrTruncatedEntry, off)
	case n < 0:
		return Entry{}, 0, fmt.Errorf("%w: value length overflows at offset %d", ErrMalformedEntry, off)
	case n > 1 && src[n-1] == 0:
		return Entry{}, 0, fmt.Errorf("%w: non-canonical value length at offset %d", ErrMalformedEntry, off)
	}

	if rest := uint64(len(src) - n); rest < idSize || vlen > rest-idSize {
		return Entry{}, 0, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedEntry, vlen+idSize, off+n, rest)
	}

	end := n + int(vlen)
	ent := Entry{
		Value: src[n:end:end],
		ID:    binary.LittleEndian.Uint32(src[end:]),
	}
	return ent, end + idSize, nil
}

func uvarintLen(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}
