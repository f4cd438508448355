// Package dictcdb exports materialized dictionaries to constant database
// (CDB) files, for lookups by processes which do not have access to the
// chain's store.
//
// Each file holds a meta record and two records per entry:
//
//	"m"          => link index (4 bytes) | linked (1 byte) | entry count (4 bytes)
//	"v" + value  => id (4 bytes)
//	"i" + id     => value
//
// All integers are little-endian.
package dictcdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/bsm/chaindict"
	"github.com/colinmarc/cdb"
)

var metaKey = []byte("m")

const (
	valuePrefix = 'v'
	idPrefix    = 'i'
	metaSize    = 9
)

// Write exports d to a CDB file at path. The file is written to a temporary
// name first and renamed when complete.
func Write(path string, d *chaindict.Dictionary) error {
	tmp := path + ".tmp"
	if err := write(tmp, d); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func write(path string, d *chaindict.Dictionary) error {
	w, err := cdb.Create(path)
	if err != nil {
		return err
	}

	link, linked := d.Link()
	meta := make([]byte, metaSize)
	binary.LittleEndian.PutUint32(meta[0:], link)
	if linked {
		meta[4] = 1
	}
	binary.LittleEndian.PutUint32(meta[5:], uint32(d.Len()))
	if err := w.Put(metaKey, meta); err != nil {
		_ = w.Close()
		return err
	}

	d.Range(0, func(ent chaindict.Entry) bool {
		id := idBytes(ent.ID)
		if err = w.Put(valueKey(ent.Value), id); err != nil {
			return false
		}
		err = w.Put(append([]byte{idPrefix}, id...), ent.Value)
		return err == nil
	})
	if err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Reader looks up entries in an exported file.
type Reader struct {
	db     *cdb.CDB
	link   uint32
	linked bool
	n      uint32
}

// Open opens an exported file.
func Open(path string) (*Reader, error) {
	db, err := cdb.Open(path)
	if err != nil {
		return nil, err
	}

	meta, err := db.Get(metaKey)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if len(meta) != metaSize {
		_ = db.Close()
		return nil, fmt.Errorf("dictcdb: %s: bad meta record", path)
	}

	return &Reader{
		db:     db,
		link:   binary.LittleEndian.Uint32(meta[0:]),
		linked: meta[4] == 1,
		n:      binary.LittleEndian.Uint32(meta[5:]),
	}, nil
}

// Link returns the index of the last link included in the export.
func (r *Reader) Link() (uint32, bool) { return r.link, r.linked }

// Len returns the number of entries.
func (r *Reader) Len() int { return int(r.n) }

// ID returns the id assigned to value.
func (r *Reader) ID(value []byte) (uint32, bool, error) {
	data, err := r.db.Get(valueKey(value))
	if err != nil || data == nil {
		return 0, false, err
	}
	if len(data) != 4 {
		return 0, false, errors.New("dictcdb: bad id record")
	}
	return binary.LittleEndian.Uint32(data), true, nil
}

// Value returns the value with the given id.
func (r *Reader) Value(id uint32) ([]byte, bool, error) {
	if id >= r.n {
		return nil, false, nil
	}

	data, err := r.db.Get(append([]byte{idPrefix}, idBytes(id)...))
	if err != nil {
		return nil, false, err
	}
	if data == nil {
		return nil, false, fmt.Errorf("dictcdb: missing value for id %d", id)
	}
	return data, true, nil
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.db.Close()
}

func valueKey(value []byte) []byte {
	key := make([]byte, 0, 1+len(value))
	return append(append(key, valuePrefix), value...)
}

func idBytes(id uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, id)
	return b
}
