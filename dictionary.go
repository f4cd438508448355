package chaindict

import "fmt"

// Dictionary is a materialized view of a chain: the bidirectional mapping of
// values to ids formed by all links up to a target link.
//
// A Dictionary is not safe for concurrent modification, but concurrent reads
// are fine.
type Dictionary struct {
	link   uint32
	linked bool

	values [][]byte
	ids    map[string]uint32
}

// NewDictionary returns an empty dictionary, as materialized from an empty chain.
func NewDictionary() *Dictionary {
	return newDictionary(0)
}

func newDictionary(capacity int) *Dictionary {
	return &Dictionary{
		values: make([][]byte, 0, capacity),
		ids:    make(map[string]uint32, capacity),
	}
}

// Link returns the index of the last link included in the dictionary. It
// returns false for a dictionary of an empty chain.
func (d *Dictionary) Link() (uint32, bool) { return d.link, d.linked }

// Len returns the number of entries, which is also the next id to be assigned.
func (d *Dictionary) Len() int { return len(d.values) }

// ID returns the id assigned to value.
func (d *Dictionary) ID(value []byte) (uint32, bool) {
	id, ok := d.ids[string(value)]
	return id, ok
}

// Value returns the value with the given id. The returned slice must not be
// modified.
func (d *Dictionary) Value(id uint32) ([]byte, bool) {
	if uint64(id) >= uint64(len(d.values)) {
		return nil, false
	}
	return d.values[id], true
}

// Range calls fn for each entry in id order, starting at id from, until fn
// returns false.
func (d *Dictionary) Range(from uint32, fn func(Entry) bool) {
	for i := int(from); i < len(d.values); i++ {
		if !fn(Entry{Value: d.values[i], ID: uint32(i)}) {
			return
		}
	}
}

// Entries returns all entries in id order.
func (d *Dictionary) Entries() []Entry {
	entries := make([]Entry, 0, len(d.values))
	d.Range(0, func(ent Entry) bool {
		entries = append(entries, ent)
		return true
	})
	return entries
}

// Clone returns an independent copy. Values are shared as they are never
// modified.
func (d *Dictionary) Clone() *Dictionary {
	c := newDictionary(len(d.values))
	c.link, c.linked = d.link, d.linked
	c.values = append(c.values, d.values...)
	for k, v := range d.ids {
		c.ids[k] = v
	}
	return c
}

// insert adds an entry under its declared id, which must be the next id.
func (d *Dictionary) insert(ent Entry) error {
	next := uint32(len(d.values))
	switch {
	case ent.ID < next:
		return fmt.Errorf("%w: %d already assigned to %q", ErrDuplicateID, ent.ID, d.values[ent.ID])
	case ent.ID > next:
		return fmt.Errorf("%w: id gap, got %d, expected %d", ErrBrokenChain, ent.ID, next)
	}
	if id, ok := d.ids[string(ent.Value)]; ok {
		return fmt.Errorf("%w: %q has ids %d and %d", ErrDuplicateValue, ent.Value, id, ent.ID)
	}

	value := append(make([]byte, 0, len(ent.Value)), ent.Value...)
	d.values = append(d.values, value)
	d.ids[string(value)] = ent.ID
	return nil
}

// apply inserts all entries of a link file and marks the dictionary as
// materialized through its link.
func (d *Dictionary) apply(f *LinkFile) error {
	for _, ent := range f.Entries {
		if err := d.insert(ent); err != nil {
			return fmt.Errorf("link %d %s: %w", f.LinkIndex, f.Kind, err)
		}
	}
	d.link, d.linked = f.LinkIndex, true
	return nil
}

// rollback restores the state captured by mark.
func (d *Dictionary) rollback(m dictMark) {
	for i := m.size; i < len(d.values); i++ {
		delete(d.ids, string(d.values[i]))
		d.values[i] = nil
	}
	d.values = d.values[:m.size]
	d.link, d.linked = m.link, m.linked
}

func (d *Dictionary) mark() dictMark {
	return dictMark{size: len(d.values), link: d.link, linked: d.linked}
}

type dictMark struct {
	size   int
	link   uint32
	linked bool
}
