// Package table implements an open-addressed hash table: power-of-two
// capacity, linear probing, 0.75 max load factor, tombstones on delete,
// keyed by value.Value via value.Hash/value.Equal. It backs the string
// intern table, every class's method table, and every instance's field
// table.
//
// A third-party map would hide exactly the mechanics the interpreter depends
// on: FindString probes by content before any String object exists, and the
// collector's weak sweep deletes entries while iterating the same structure.
package table

import "github.com/Gawesomer/lox/lang/value"

type entry struct {
	key          value.Value // nil means empty slot (never occupied)
	val          value.Value
	tombstone    bool
	occupiedEver bool
}

// Table is an open-addressed hash map keyed by value.Value.
type Table struct {
	// count includes tombstones: the load factor must account for them, or a
	// table churned by deletes could fill with tombstones and leave find with
	// no empty slot to terminate on.
	count      int
	tombstones int
	entries    []entry
}

const maxLoad = 0.75

// New returns an empty table.
func New() *Table { return &Table{} }

// Len reports the number of live (non-tombstone) entries.
func (t *Table) Len() int { return t.count - t.tombstones }

// Get looks up key, reporting whether it was found.
func (t *Table) Get(key value.Value) (value.Value, bool) {
	if len(t.entries) == 0 {
		return nil, false
	}
	e := t.find(t.entries, key)
	if e.key == nil || !e.occupiedEver {
		return nil, false
	}
	if e.tombstone {
		return nil, false
	}
	return e.val, true
}

// Set inserts or updates key->val, growing the table if the load factor
// would exceed 0.75. Returns true if this added a brand new key.
func (t *Table) Set(key, val value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow()
	}
	e := t.find(t.entries, key)
	isNew := e.key == nil || !e.occupiedEver
	if isNew {
		if e.tombstone {
			t.tombstones-- // reusing a tombstone slot; count already includes it
		} else {
			t.count++
		}
	}
	e.key = key
	e.val = val
	e.occupiedEver = true
	e.tombstone = false
	return isNew
}

// Delete removes key, leaving a tombstone so later probes still find keys
// that hashed to the same bucket. Returns true if the key was present.
func (t *Table) Delete(key value.Value) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.find(t.entries, key)
	if e.key == nil || !e.occupiedEver || e.tombstone {
		return false
	}
	e.tombstone = true
	e.key = nil
	t.tombstones++
	return true
}

// AddAll copies every live entry of src into t (used by OP_INHERIT to copy a
// superclass's methods into a subclass).
func (t *Table) AddAll(src *Table) {
	for _, e := range src.entries {
		if e.occupiedEver && !e.tombstone {
			t.Set(e.key, e.val)
		}
	}
}

// Iterate calls fn for every live entry; iteration stops early if fn returns
// false.
func (t *Table) Iterate(fn func(key, val value.Value) bool) {
	for _, e := range t.entries {
		if e.occupiedEver && !e.tombstone {
			if !fn(e.key, e.val) {
				return
			}
		}
	}
}

// FindString locates an interned string with the given content without
// allocating a String object to do so.
func (t *Table) FindString(s string, hash uint32) *value.String {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	idx := hash & mask
	for {
		e := &t.entries[idx]
		if e.key == nil {
			if !e.occupiedEver {
				return nil
			}
		} else if str, ok := e.key.(*value.String); ok {
			if str.Hash == hash && str.Chars == s {
				return str
			}
		}
		idx = (idx + 1) & mask
	}
}

// find returns a pointer to the entry that key occupies (or should occupy),
// honoring linear probing and preferring the first tombstone seen so deletes
// don't permanently lengthen probe sequences.
func (t *Table) find(entries []entry, key value.Value) *entry {
	mask := uint32(len(entries) - 1)
	idx := value.Hash(key) & mask
	var tombstone *entry
	for {
		e := &entries[idx]
		switch {
		case e.key == nil && !e.occupiedEver:
			if tombstone != nil {
				return tombstone
			}
			return e
		case e.key == nil && e.tombstone:
			if tombstone == nil {
				tombstone = e
			}
		case value.Equal(e.key, key):
			return e
		}
		idx = (idx + 1) & mask
	}
}

func (t *Table) grow() {
	newCap := 8
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	newEntries := make([]entry, newCap)
	t.count = 0
	t.tombstones = 0
	old := t.entries
	t.entries = newEntries
	for _, e := range old {
		if e.occupiedEver && !e.tombstone {
			dst := t.find(t.entries, e.key)
			dst.key = e.key
			dst.val = e.val
			dst.occupiedEver = true
			t.count++
		}
	}
}
