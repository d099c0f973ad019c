package state

import "github.com/starkware-libs/sequencer-sub006/ids"

// StorageEntry identifies one (contract, key) storage slot (§3.2).
type StorageEntry struct {
	Contract ids.ContractAddress
	Key      ids.StorageKey
}

// StateMaps bundles the four maps that together describe a state diff
// (§3.2): storage writes, nonce bumps, class-hash assignments (contract
// deployments) and compiled-class-hash declarations.
type StateMaps struct {
	Storage           map[StorageEntry]ids.Felt
	Nonce             map[ids.ContractAddress]ids.Nonce
	ClassHash         map[ids.ContractAddress]ids.ClassHash
	CompiledClassHash map[ids.ClassHash]ids.CompiledClassHash
}

// NewStateMaps returns an empty, ready-to-use StateMaps.
func NewStateMaps() StateMaps {
	return StateMaps{
		Storage:           make(map[StorageEntry]ids.Felt),
		Nonce:             make(map[ids.ContractAddress]ids.Nonce),
		ClassHash:         make(map[ids.ContractAddress]ids.ClassHash),
		CompiledClassHash: make(map[ids.ClassHash]ids.CompiledClassHash),
	}
}

// IsEmpty reports whether the diff touches nothing.
func (m StateMaps) IsEmpty() bool {
	return len(m.Storage) == 0 && len(m.Nonce) == 0 && len(m.ClassHash) == 0 && len(m.CompiledClassHash) == 0
}

// Extend folds other's entries into m, overwriting on key collision. Used to
// accumulate a block's cumulative state diff as transactions commit.
func (m StateMaps) Extend(other StateMaps) {
	for k, v := range other.Storage {
		m.Storage[k] = v
	}
	for k, v := range other.Nonce {
		m.Nonce[k] = v
	}
	for k, v := range other.ClassHash {
		m.ClassHash[k] = v
	}
	for k, v := range other.CompiledClassHash {
		m.CompiledClassHash[k] = v
	}
}

// VisitedContracts returns the set of contract addresses touched (by
// storage, nonce or class-hash writes), used by the bouncer to cost
// Patricia updates on close (§3.3).
func (m StateMaps) VisitedContracts() map[ids.ContractAddress]struct{} {
	out := make(map[ids.ContractAddress]struct{}, len(m.Nonce)+len(m.ClassHash))
	for e := range m.Storage {
		out[e.Contract] = struct{}{}
	}
	for c := range m.Nonce {
		out[c] = struct{}{}
	}
	for c := range m.ClassHash {
		out[c] = struct{}{}
	}
	return out
}
