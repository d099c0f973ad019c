package state

import "sync"

// TxIndex is the position of a transaction within the chunk currently being
// executed; it doubles as the "version" in VersionedState (§3.2, §4.A).
type TxIndex int

// versionedCell holds the write history and initial-read cache for a single
// key. All of its writes are kept sorted ascending by TxIndex so that
// "highest write <= v" is a binary search.
type versionedCell[V any] struct {
	mu         sync.Mutex
	writes     []versionedWrite[V]
	hasInitial bool
	initial    V
}

type versionedWrite[V any] struct {
	txIndex TxIndex
	value   V
}

// highestAtOrBelow returns the value of the write with the greatest
// txIndex <= v, if any.
func (c *versionedCell[V]) highestAtOrBelow(v TxIndex) (V, bool) {
	// Writes are few per key in practice (one chunk's worth at most), so a
	// linear scan from the back is simpler and just as fast as a binary
	// search at these sizes.
	for i := len(c.writes) - 1; i >= 0; i-- {
		if c.writes[i].txIndex <= v {
			return c.writes[i].value, true
		}
	}
	var zero V
	return zero, false
}

// setWrite inserts or overwrites the write at txIndex v, maintaining sort
// order (§4.A: "Writes at a given tx_index overwrite prior writes at the
// same index for the same key").
func (c *versionedCell[V]) setWrite(v TxIndex, value V) {
	for i := range c.writes {
		if c.writes[i].txIndex == v {
			c.writes[i].value = value
			return
		}
		if c.writes[i].txIndex > v {
			c.writes = append(c.writes, versionedWrite[V]{})
			copy(c.writes[i+1:], c.writes[i:])
			c.writes[i] = versionedWrite[V]{txIndex: v, value: value}
			return
		}
	}
	c.writes = append(c.writes, versionedWrite[V]{txIndex: v, value: value})
}

// deleteWrite removes the write at txIndex v, if present.
func (c *versionedCell[V]) deleteWrite(v TxIndex) {
	for i := range c.writes {
		if c.writes[i].txIndex == v {
			c.writes = append(c.writes[:i], c.writes[i+1:]...)
			return
		}
	}
}

// versionedMap is a generic multi-version concurrent map: for every key it
// keeps an ordered sequence of (tx_index, value) writes plus an
// initial-reads cache (§3.2). Reads first consult writes at or below the
// requested version; on a miss they consult the initial-reads cache, and on
// a miss there they fall through to reader, caching the result atomically.
type versionedMap[K comparable, V any] struct {
	mu     sync.RWMutex
	cells  map[K]*versionedCell[V]
	reader func(K) (V, error)
}

func newVersionedMap[K comparable, V any](reader func(K) (V, error)) *versionedMap[K, V] {
	return &versionedMap[K, V]{
		cells:  make(map[K]*versionedCell[V]),
		reader: reader,
	}
}

func (m *versionedMap[K, V]) cellFor(k K) *versionedCell[V] {
	m.mu.RLock()
	c, ok := m.cells[k]
	m.mu.RUnlock()
	if ok {
		return c
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.cells[k]; ok {
		return c
	}
	c = &versionedCell[V]{}
	m.cells[k] = c
	return c
}

// Read returns the value visible to version v: the highest write at or
// below v, else the initial-reads cache, else the underlying reader (whose
// result is cached for subsequent reads of this key).
func (m *versionedMap[K, V]) Read(k K, v TxIndex) (V, error) {
	c := m.cellFor(k)
	c.mu.Lock()
	defer c.mu.Unlock()

	if val, ok := c.highestAtOrBelow(v); ok {
		return val, nil
	}
	if c.hasInitial {
		return c.initial, nil
	}
	val, err := m.reader(k)
	if err != nil {
		var zero V
		return zero, err
	}
	c.hasInitial = true
	c.initial = val
	return val, nil
}

// Write records value as the write performed by tx_index v.
func (m *versionedMap[K, V]) Write(k K, v TxIndex, value V) {
	c := m.cellFor(k)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setWrite(v, value)
}

// DeleteWrite removes the write performed by tx_index v, used when a
// validation-aborted transaction's writes must be rolled back (§4.D).
func (m *versionedMap[K, V]) DeleteWrite(k K, v TxIndex) {
	c := m.cellFor(k)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteWrite(v)
}

// ValidateRead reports whether re-reading k at version v still produces a
// value equal (per eq) to expected.
func (m *versionedMap[K, V]) ValidateRead(k K, v TxIndex, expected V, eq func(a, b V) bool) (bool, error) {
	got, err := m.Read(k, v)
	if err != nil {
		return false, err
	}
	return eq(got, expected), nil
}
