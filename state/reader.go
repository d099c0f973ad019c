package state

import "github.com/starkware-libs/sequencer-sub006/ids"

// CompiledClass is an opaque handle to a compiled (Sierra/CASM) contract
// class; its internal representation belongs to the external executor (§6)
// and is not specified here.
type CompiledClass any

// Reader is the underlying, synchronous state reader (§6 "Underlying state
// reader"): the collaborator VersionedState falls back to on a cache miss.
// Implementations typically read from a committed-block KV store or an RPC
// gateway; both are out of scope (§1) and reached only through this narrow
// interface.
type Reader interface {
	GetStorageAt(contract ids.ContractAddress, key ids.StorageKey) (ids.Felt, error)
	GetNonceAt(contract ids.ContractAddress) (ids.Nonce, error)
	GetClassHashAt(contract ids.ContractAddress) (ids.ClassHash, error)
	GetCompiledClassHash(class ids.ClassHash) (ids.CompiledClassHash, error)
	GetCompiledClass(class ids.ClassHash) (CompiledClass, error)
}

// ClassMissTracker is implemented by Readers that go through a class-manager
// collaborator (§6): it records which compiled class hashes could not be
// found, so the caller can retry the lookup lazily once the class manager
// catches up.
type ClassMissTracker interface {
	RecordClassMiss(class ids.ClassHash)
}
