package state

import "github.com/starkware-libs/sequencer-sub006/ids"

// TransactionalState is a per-transaction overlay (§3.2): it records every
// key the transaction reads (its read set) and every value it wants to
// write, without mutating the shared VersionedState until Commit is called.
// This is the state handle the executor shell (§4.B) operates against.
type TransactionalState struct {
	view    *View
	reads   ReadSet
	writes  StateMaps
	classes map[ids.ClassHash]CompiledClass
}

// NewTransactionalState opens an overlay pinned at view.
func NewTransactionalState(view *View) *TransactionalState {
	return &TransactionalState{
		view:    view,
		reads:   newReadSet(),
		writes:  NewStateMaps(),
		classes: make(map[ids.ClassHash]CompiledClass),
	}
}

func (t *TransactionalState) GetStorageAt(contract ids.ContractAddress, key ids.StorageKey) (ids.Felt, error) {
	if val, ok := t.writes.Storage[StorageEntry{Contract: contract, Key: key}]; ok {
		return val, nil
	}
	return t.view.GetStorageAt(&t.reads, contract, key)
}

func (t *TransactionalState) GetNonceAt(contract ids.ContractAddress) (ids.Nonce, error) {
	if val, ok := t.writes.Nonce[contract]; ok {
		return val, nil
	}
	return t.view.GetNonceAt(&t.reads, contract)
}

func (t *TransactionalState) GetClassHashAt(contract ids.ContractAddress) (ids.ClassHash, error) {
	if val, ok := t.writes.ClassHash[contract]; ok {
		return val, nil
	}
	return t.view.GetClassHashAt(&t.reads, contract)
}

func (t *TransactionalState) GetCompiledClassHash(class ids.ClassHash) (ids.CompiledClassHash, error) {
	if val, ok := t.writes.CompiledClassHash[class]; ok {
		return val, nil
	}
	return t.view.GetCompiledClassHash(&t.reads, class)
}

func (t *TransactionalState) SetStorageAt(contract ids.ContractAddress, key ids.StorageKey, value ids.Felt) {
	t.writes.Storage[StorageEntry{Contract: contract, Key: key}] = value
}

func (t *TransactionalState) SetNonceAt(contract ids.ContractAddress, n ids.Nonce) {
	t.writes.Nonce[contract] = n
}

func (t *TransactionalState) SetClassHashAt(contract ids.ContractAddress, ch ids.ClassHash) {
	t.writes.ClassHash[contract] = ch
}

func (t *TransactionalState) SetCompiledClassHash(class ids.ClassHash, cch ids.CompiledClassHash) {
	t.writes.CompiledClassHash[class] = cch
}

func (t *TransactionalState) DeclareClass(class ids.ClassHash, compiled CompiledClass) {
	t.classes[class] = compiled
}

// ReadSet returns the keys and values this overlay has observed so far.
func (t *TransactionalState) ReadSet() ReadSet { return t.reads }

// StateDiff returns the writes pending in this overlay.
func (t *TransactionalState) StateDiff() StateMaps { return t.writes }

// Classes returns the compiled classes declared in this overlay.
func (t *TransactionalState) Classes() map[ids.ClassHash]CompiledClass { return t.classes }

// Commit folds this overlay's writes into the versioned state at the
// overlay's pinned tx_index (§3.2 invariant (i): a commit at tx_index v
// must never observe writes from a higher tx_index — guaranteed because the
// overlay's reads were all served by the same pinned View).
func (t *TransactionalState) Commit() {
	t.view.ApplyWrites(t.writes, t.classes)
}

// Discard drops the overlay's writes without touching the versioned state,
// used when the transaction's execution failed (§4.B).
func (t *TransactionalState) Discard() {
	t.writes = NewStateMaps()
	t.classes = make(map[ids.ClassHash]CompiledClass)
}
