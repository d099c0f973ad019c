package blockbuilder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/sequencer-sub006/bouncer"
	"github.com/starkware-libs/sequencer-sub006/concurrency"
	"github.com/starkware-libs/sequencer-sub006/execution"
	"github.com/starkware-libs/sequencer-sub006/felt"
	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/state"
)

type fixedProvider struct {
	batches [][]execution.Transaction
	i       int
}

func (p *fixedProvider) GetTxs(_ context.Context, n int) (Txs, bool, error) {
	if p.i >= len(p.batches) {
		return Txs{}, true, nil
	}
	batch := p.batches[p.i]
	p.i++
	return Txs{Transactions: batch}, false, nil
}

type noopReader struct{}

func (noopReader) GetStorageAt(ids.ContractAddress, ids.StorageKey) (ids.Felt, error) {
	return felt.Zero(), nil
}
func (noopReader) GetNonceAt(ids.ContractAddress) (ids.Nonce, error) { return ids.Nonce{}, nil }
func (noopReader) GetClassHashAt(ids.ContractAddress) (ids.ClassHash, error) {
	return ids.ClassHash{}, nil
}
func (noopReader) GetCompiledClassHash(ids.ClassHash) (ids.CompiledClassHash, error) {
	return ids.CompiledClassHash{}, nil
}
func (noopReader) GetCompiledClass(ids.ClassHash) (state.CompiledClass, error) { return nil, nil }

type incrementVM struct{}

func (incrementVM) Run(tx execution.Transaction, txState *state.TransactionalState, _ execution.BlockContext, _ execution.ConcurrencyMode) (execution.ExecutionInfo, error) {
	contract := ids.ContractAddress(felt.FromUint64(1))
	nonce, err := txState.GetNonceAt(contract)
	if err != nil {
		return execution.ExecutionInfo{}, err
	}
	next := felt.Felt(nonce).Add(felt.One())
	txState.SetNonceAt(contract, ids.Nonce(next))
	return execution.ExecutionInfo{}, nil
}

func TestBuildCommitsAllTransactionsAcrossChunks(t *testing.T) {
	vs := state.NewVersionedState(noopReader{})
	b := bouncer.New(bouncer.Weights{L1Gas: 1_000_000, NEvents: 1_000_000, StateDiffSize: 1_000_000, SierraGas: 1_000_000, MessageSegmentLength: 1_000_000}, nil, nil)
	pool := concurrency.NewPool(4)
	defer pool.Close()
	builder := New(pool, vs, b, incrementVM{}, nil, nil)

	provider := &fixedProvider{batches: [][]execution.Transaction{
		{{Hash: ids.TxHash(felt.FromUint64(0))}, {Hash: ids.TxHash(felt.FromUint64(1))}},
		{{Hash: ids.TxHash(felt.FromUint64(2))}},
	}}

	summary, err := builder.Build(context.Background(), provider, Config{TxChunkSize: 8})
	require.NoError(t, err)
	require.Len(t, summary.Committed, 3)
	require.Empty(t, summary.Rejected)
	require.NotEmpty(t, summary.CompressedStateDiff, "a non-empty state diff must be compressed into the summary")
}

func TestBuildLeavesCompressedStateDiffNilWhenDiffEmpty(t *testing.T) {
	vs := state.NewVersionedState(noopReader{})
	b := bouncer.New(bouncer.Weights{L1Gas: 1_000_000, NEvents: 1_000_000, StateDiffSize: 1_000_000, SierraGas: 1_000_000, MessageSegmentLength: 1_000_000}, nil, nil)
	pool := concurrency.NewPool(2)
	defer pool.Close()
	builder := New(pool, vs, b, noopVM{}, nil, nil)

	provider := &fixedProvider{batches: [][]execution.Transaction{
		{{Hash: ids.TxHash(felt.FromUint64(0))}},
	}}

	summary, err := builder.Build(context.Background(), provider, Config{TxChunkSize: 8})
	require.NoError(t, err)
	require.Nil(t, summary.CompressedStateDiff)
}

type noopVM struct{}

func (noopVM) Run(tx execution.Transaction, txState *state.TransactionalState, _ execution.BlockContext, _ execution.ConcurrencyMode) (execution.ExecutionInfo, error) {
	return execution.ExecutionInfo{}, nil
}

type gasVM struct{ l1Gas uint64 }

func (v gasVM) Run(tx execution.Transaction, txState *state.TransactionalState, _ execution.BlockContext, _ execution.ConcurrencyMode) (execution.ExecutionInfo, error) {
	return execution.ExecutionInfo{Resources: execution.ResourceUsage{L1Gas: v.l1Gas}}, nil
}

func TestBuildStopsWhenBouncerRefuses(t *testing.T) {
	vs := state.NewVersionedState(noopReader{})
	// Zero L1Gas capacity means any transaction reporting L1Gas > 0 is
	// rejected as standalone-too-large, so it is never committed.
	b := bouncer.New(bouncer.Weights{}, nil, nil)
	pool := concurrency.NewPool(2)
	defer pool.Close()
	builder := New(pool, vs, b, gasVM{l1Gas: 1}, nil, nil)

	provider := &fixedProvider{batches: [][]execution.Transaction{
		{{Hash: ids.TxHash(felt.FromUint64(0))}},
	}}

	summary, err := builder.Build(context.Background(), provider, Config{TxChunkSize: 8})
	require.NoError(t, err)
	require.Empty(t, summary.Committed)
}
