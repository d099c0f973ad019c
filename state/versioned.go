package state

import "github.com/starkware-libs/sequencer-sub006/ids"

func feltEq(a, b ids.Felt) bool         { return a.Equal(b) }
func nonceEq(a, b ids.Nonce) bool       { return ids.Felt(a).Equal(ids.Felt(b)) }
func classHashEq(a, b ids.ClassHash) bool {
	return ids.Felt(a).Equal(ids.Felt(b))
}
func compiledClassHashEq(a, b ids.CompiledClassHash) bool {
	return ids.Felt(a).Equal(ids.Felt(b))
}

// VersionedState is the single shared mutable store during a chunk's
// execution (§4.A, §5). All mutation and observation happens through pinned
// per-tx_index Views; workers on separate goroutines hold only a View and
// never a raw reference into the maps.
type VersionedState struct {
	reader Reader

	storage           *versionedMap[StorageEntry, ids.Felt]
	nonce             *versionedMap[ids.ContractAddress, ids.Nonce]
	classHash         *versionedMap[ids.ContractAddress, ids.ClassHash]
	compiledClassHash *versionedMap[ids.ClassHash, ids.CompiledClassHash]
}

// NewVersionedState wraps reader as the fallback for cache misses.
func NewVersionedState(reader Reader) *VersionedState {
	vs := &VersionedState{reader: reader}
	vs.storage = newVersionedMap(func(e StorageEntry) (ids.Felt, error) {
		return reader.GetStorageAt(e.Contract, e.Key)
	})
	vs.nonce = newVersionedMap(reader.GetNonceAt)
	vs.classHash = newVersionedMap(reader.GetClassHashAt)
	vs.compiledClassHash = newVersionedMap(reader.GetCompiledClassHash)
	return vs
}

// View is a lightweight, pin-by-tx_index accessor into a VersionedState
// (§4.A). Views are safe to use concurrently from multiple goroutines, one
// per tx_index, because all shared mutable state lives behind the
// VersionedState's own per-key locking.
type View struct {
	state *VersionedState
	index TxIndex
}

// PinVersion returns a View fixed at tx_index i.
func (vs *VersionedState) PinVersion(i TxIndex) *View {
	return &View{state: vs, index: i}
}

// ReadSet captures every key a transaction observed and the value it saw,
// for later revalidation (§3.2 invariant (ii), §4.D).
type ReadSet struct {
	Storage           map[StorageEntry]ids.Felt
	Nonce             map[ids.ContractAddress]ids.Nonce
	ClassHash         map[ids.ContractAddress]ids.ClassHash
	CompiledClassHash map[ids.ClassHash]ids.CompiledClassHash
}

func newReadSet() ReadSet {
	return ReadSet{
		Storage:           make(map[StorageEntry]ids.Felt),
		Nonce:             make(map[ids.ContractAddress]ids.Nonce),
		ClassHash:         make(map[ids.ContractAddress]ids.ClassHash),
		CompiledClassHash: make(map[ids.ClassHash]ids.CompiledClassHash),
	}
}

// GetStorageAt reads through the view, recording the read in rs.
func (v *View) GetStorageAt(rs *ReadSet, contract ids.ContractAddress, key ids.StorageKey) (ids.Felt, error) {
	e := StorageEntry{Contract: contract, Key: key}
	val, err := v.state.storage.Read(e, v.index)
	if err != nil {
		return ids.Felt{}, err
	}
	if rs != nil {
		rs.Storage[e] = val
	}
	return val, nil
}

func (v *View) GetNonceAt(rs *ReadSet, contract ids.ContractAddress) (ids.Nonce, error) {
	val, err := v.state.nonce.Read(contract, v.index)
	if err != nil {
		return ids.Nonce{}, err
	}
	if rs != nil {
		rs.Nonce[contract] = val
	}
	return val, nil
}

func (v *View) GetClassHashAt(rs *ReadSet, contract ids.ContractAddress) (ids.ClassHash, error) {
	val, err := v.state.classHash.Read(contract, v.index)
	if err != nil {
		return ids.ClassHash{}, err
	}
	if rs != nil {
		rs.ClassHash[contract] = val
	}
	return val, nil
}

func (v *View) GetCompiledClassHash(rs *ReadSet, class ids.ClassHash) (ids.CompiledClassHash, error) {
	val, err := v.state.compiledClassHash.Read(class, v.index)
	if err != nil {
		return ids.CompiledClassHash{}, err
	}
	if rs != nil {
		rs.CompiledClassHash[class] = val
	}
	return val, nil
}

// ApplyWrites folds diff's entries into the versioned maps at this view's
// tx_index. Classes are accepted as a parallel argument since the external
// executor reports declared classes out-of-band from the felt-keyed diff
// (§4.B).
func (v *View) ApplyWrites(diff StateMaps, classes map[ids.ClassHash]CompiledClass) {
	for e, val := range diff.Storage {
		v.state.storage.Write(e, v.index, val)
	}
	for c, n := range diff.Nonce {
		v.state.nonce.Write(c, v.index, n)
	}
	for c, ch := range diff.ClassHash {
		v.state.classHash.Write(c, v.index, ch)
	}
	for ch, cch := range diff.CompiledClassHash {
		v.state.compiledClassHash.Write(ch, v.index, cch)
	}
	_ = classes // compiled classes themselves are not versioned; only their hashes are (§3.2).
}

// DeleteWrites removes this view's writes, rolling back an aborted
// transaction (§4.D "try_validation_abort").
func (v *View) DeleteWrites(diff StateMaps, classes map[ids.ClassHash]CompiledClass) {
	for e := range diff.Storage {
		v.state.storage.DeleteWrite(e, v.index)
	}
	for c := range diff.Nonce {
		v.state.nonce.DeleteWrite(c, v.index)
	}
	for c := range diff.ClassHash {
		v.state.classHash.DeleteWrite(c, v.index)
	}
	for ch := range diff.CompiledClassHash {
		v.state.compiledClassHash.DeleteWrite(ch, v.index)
	}
	_ = classes
}

// ValidateReads re-reads every key in rs against the writes of lower
// tx_indices (falling back to the initial-reads cache) and reports whether
// every value is unchanged (§3.2 invariant (ii), §4.D ValidationTask). The
// view's own writes are not consulted, so a transaction that reads a key
// and then writes it does not invalidate its own read. The first mismatch
// or read error short-circuits.
func (v *View) ValidateReads(rs ReadSet) (bool, error) {
	below := v.index - 1
	for e, want := range rs.Storage {
		ok, err := v.state.storage.ValidateRead(e, below, want, feltEq)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	for c, want := range rs.Nonce {
		ok, err := v.state.nonce.ValidateRead(c, below, want, nonceEq)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	for c, want := range rs.ClassHash {
		ok, err := v.state.classHash.ValidateRead(c, below, want, classHashEq)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	for ch, want := range rs.CompiledClassHash {
		ok, err := v.state.compiledClassHash.ValidateRead(ch, below, want, compiledClassHashEq)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
