package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/sequencer-sub006/bouncer"
	"github.com/starkware-libs/sequencer-sub006/execution"
	"github.com/starkware-libs/sequencer-sub006/felt"
	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/state"
)

type occFakeReader struct{}

func (occFakeReader) GetStorageAt(ids.ContractAddress, ids.StorageKey) (ids.Felt, error) {
	return felt.Zero(), nil
}
func (occFakeReader) GetNonceAt(ids.ContractAddress) (ids.Nonce, error) { return ids.Nonce{}, nil }
func (occFakeReader) GetClassHashAt(ids.ContractAddress) (ids.ClassHash, error) {
	return ids.ClassHash{}, nil
}
func (occFakeReader) GetCompiledClassHash(ids.ClassHash) (ids.CompiledClassHash, error) {
	return ids.CompiledClassHash{}, nil
}
func (occFakeReader) GetCompiledClass(ids.ClassHash) (state.CompiledClass, error) { return nil, nil }

func occAddr(n uint64) ids.ContractAddress { return ids.ContractAddress(felt.FromUint64(n)) }
func occKey(n uint64) ids.StorageKey       { return ids.StorageKey(felt.FromUint64(n)) }

// sharedKeyVM has each transaction read a shared storage key and then write
// its payload to that key. Tx index 1 reads the key tx index 0 writes, so if
// tx 1 ran before tx 0's write was visible, its read goes stale and it is
// revalidated and re-executed before it commits, mirroring §8.2 scenario 6.
type sharedKeyVM struct {
	contract ids.ContractAddress
	key      ids.StorageKey
	execCalls map[ids.TxHash]int
}

func (v *sharedKeyVM) Run(tx execution.Transaction, txState *state.TransactionalState, _ execution.BlockContext, _ execution.ConcurrencyMode) (execution.ExecutionInfo, error) {
	if v.execCalls == nil {
		v.execCalls = map[ids.TxHash]int{}
	}
	v.execCalls[tx.Hash]++

	write := tx.Payload.(uint64)
	// Reading the shared key before writing it means a later-committing
	// lower-index write invalidates this transaction's read set.
	if _, err := txState.GetStorageAt(v.contract, v.key); err != nil {
		return execution.ExecutionInfo{}, err
	}
	txState.SetStorageAt(v.contract, v.key, felt.FromUint64(write))
	return execution.ExecutionInfo{VisitedStorageEntries: map[state.StorageEntry]struct{}{
		{Contract: v.contract, Key: v.key}: {},
	}}, nil
}

func TestChunkCommitsConflictingTxsInIndexOrder(t *testing.T) {
	reader := occFakeReader{}
	vs := state.NewVersionedState(reader)

	contract := occAddr(1)
	key := occKey(1)
	vm := &sharedKeyVM{contract: contract, key: key}

	txs := []execution.Transaction{
		{Hash: ids.TxHash(felt.FromUint64(0)), Payload: uint64(100)},
		{Hash: ids.TxHash(felt.FromUint64(1)), Payload: uint64(200)},
	}

	b := bouncer.New(bouncer.Weights{L1Gas: 1_000_000, NEvents: 1_000_000, StateDiffSize: 1_000_000, SierraGas: 1_000_000, MessageSegmentLength: 1_000_000}, nil, nil)
	chunk := NewChunk(vs, txs, vm, execution.BlockContext{}, b, bouncer.GasTable{}, nil, nil, nil, nil)

	RunOnce(4, chunk)

	require.True(t, chunk.Scheduler.Done())
	committed := chunk.Committed()
	require.Equal(t, []TxIndex{0, 1}, committed, "commits must happen strictly in tx_index order")

	// Tx 1 reads the key tx 0 writes. Whether its first attempt read the
	// pre-tx-0 value depends on worker scheduling, so it ran at least once,
	// and ran again only if that first read went stale.
	require.GreaterOrEqual(t, vm.execCalls[txs[1].Hash], 1)

	final, err := vs.PinVersion(10).GetStorageAt(nil, contract, key)
	require.NoError(t, err)
	require.True(t, final.Equal(felt.FromUint64(200)), "tx 1's write must be the final committed value")
}

func TestChunkHaltsOnDeadline(t *testing.T) {
	reader := occFakeReader{}
	vs := state.NewVersionedState(reader)
	vm := &sharedKeyVM{contract: occAddr(1), key: occKey(1)}
	txs := []execution.Transaction{{Hash: ids.TxHash(felt.FromUint64(0)), Payload: uint64(1)}}
	b := bouncer.New(bouncer.Weights{L1Gas: 10, NEvents: 10, StateDiffSize: 10, SierraGas: 10, MessageSegmentLength: 10}, nil, nil)

	past := time.Now().Add(-time.Hour)
	chunk := NewChunk(vs, txs, vm, execution.BlockContext{}, b, bouncer.GasTable{}, &past, nil, nil, nil)
	RunOnce(2, chunk)

	require.True(t, chunk.Scheduler.Halted())
}
