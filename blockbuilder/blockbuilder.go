// Package blockbuilder drives the block-building loop (§4.E): it pulls
// transactions from a TransactionProvider in chunks, runs each chunk
// through the OCC worker pool, streams accepted transactions out as they
// commit, and produces a BlockExecutionSummary on close.
package blockbuilder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/starkware-libs/sequencer-sub006/bouncer"
	"github.com/starkware-libs/sequencer-sub006/concurrency"
	"github.com/starkware-libs/sequencer-sub006/execution"
	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/log"
	"github.com/starkware-libs/sequencer-sub006/metrics"
	"github.com/starkware-libs/sequencer-sub006/state"
)

// Errors returned by Build (§4.E step 1, §7).
var (
	ErrDeadlineReached    = errors.New("blockbuilder: deadline reached")
	ErrAborted            = errors.New("blockbuilder: aborted")
	ErrTransactionFailed  = errors.New("blockbuilder: transaction failed")
)

// emptyPollInterval is how long the builder sleeps after the provider
// returns an empty batch (§5 "Block builder: sleep(1s)").
const emptyPollInterval = time.Second

// Txs is a non-terminal batch from a TransactionProvider; an empty Txs
// means "try again shortly" (§6 "Transaction provider").
type Txs struct {
	Transactions []execution.Transaction
}

// TransactionProvider is the block builder's source of transactions (§6).
// get_txs(n) returns up to n transactions, or End once no more will ever
// arrive.
type TransactionProvider interface {
	GetTxs(ctx context.Context, n int) (txs Txs, end bool, err error)
}

// Config controls one Build call (§4.E, §7 "Cancellation and timeouts").
type Config struct {
	Deadline        time.Time // zero means no deadline
	FailOnErr       bool
	TxChunkSize     int
	MaxCapacity     bouncer.Weights
	GasTable        bouncer.GasTable
	BlockContext    execution.BlockContext
	// OutputContentSender, if non-nil, receives each committed transaction's
	// hash as soon as it commits (§4.E step 5).
	OutputContentSender chan<- ids.TxHash
}

// BlockExecutionSummary is the result of a closed block (§4.E step 6).
type BlockExecutionSummary struct {
	StateDiff         state.StateMaps
	BouncerWeights    bouncer.Weights
	CompressedStateDiff []byte // zstd of StateDiff.Encode(); nil for an empty diff
	Rejected          []concurrency.RejectedTx
	Committed         []ids.TxHash
}

// compressStateDiff zstd-compresses m's deterministic encoding for
// storage/transport (§4.E step 6 "compressed_state_diff"); an empty diff
// compresses to nothing rather than a non-empty zstd frame around zero
// bytes.
func compressStateDiff(m state.StateMaps) []byte {
	if m.IsEmpty() {
		return nil
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil
	}
	defer enc.Close()
	return enc.EncodeAll(m.Encode(), nil)
}

// Builder runs the block-building loop against a VersionedState and a
// reusable worker Pool (§4.E "External pool").
type Builder struct {
	log     log.Logger
	pool    *concurrency.Pool
	state   *state.VersionedState
	bouncer *bouncer.Bouncer
	vm      execution.VM
	timing  *metrics.Timing
}

// New returns a Builder. pool may be shared across many Build calls so
// worker goroutines persist across blocks (§4.E "External pool"). timing
// tracks the moving average commit latency across every chunk the builder
// runs; pass nil to skip it.
func New(pool *concurrency.Pool, versioned *state.VersionedState, b *bouncer.Bouncer, vm execution.VM, logger log.Logger, timing *metrics.Timing) *Builder {
	if logger == nil {
		logger = log.NewNoOp()
	}
	return &Builder{log: logger, pool: pool, state: versioned, bouncer: b, vm: vm, timing: timing}
}

// Build runs the block-building loop until the provider yields End, the
// bouncer refuses a transaction, the deadline elapses, or ctx is cancelled
// (§4.E, §7).
func (b *Builder) Build(ctx context.Context, provider TransactionProvider, cfg Config) (BlockExecutionSummary, error) {
	cumulative := state.NewStateMaps()
	var committed []ids.TxHash
	var rejected []concurrency.RejectedTx
	var nextIndex state.TxIndex

	chunkSize := cfg.TxChunkSize
	if chunkSize <= 0 {
		chunkSize = 64
	}

	for {
		if !cfg.Deadline.IsZero() && time.Now().After(cfg.Deadline) {
			if cfg.FailOnErr {
				return BlockExecutionSummary{}, ErrDeadlineReached
			}
			break
		}
		select {
		case <-ctx.Done():
			return BlockExecutionSummary{}, fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
		default:
		}

		txs, end, err := provider.GetTxs(ctx, chunkSize)
		if err != nil {
			return BlockExecutionSummary{}, fmt.Errorf("blockbuilder: transaction provider: %w", err)
		}
		if end {
			break
		}
		if len(txs.Transactions) == 0 {
			select {
			case <-ctx.Done():
				return BlockExecutionSummary{}, fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
			case <-time.After(emptyPollInterval):
			}
			continue
		}

		var deadline *time.Time
		if !cfg.Deadline.IsZero() {
			d := cfg.Deadline
			deadline = &d
		}
		chunk := concurrency.NewChunk(b.state, txs.Transactions, b.vm, cfg.BlockContext, b.bouncer, cfg.GasTable, deadline, b.log, nil, b.timing)
		chunk.SetBaseIndex(nextIndex)
		nextIndex += state.TxIndex(len(txs.Transactions))
		b.pool.RunChunk(chunk)

		for _, r := range chunk.Rejected() {
			if cfg.FailOnErr {
				return BlockExecutionSummary{}, fmt.Errorf("%w: tx %s: %w", ErrTransactionFailed, r.Hash, r.Err)
			}
			rejected = append(rejected, r)
		}
		for _, idx := range chunk.Committed() {
			txHash := txs.Transactions[idx].Hash
			committed = append(committed, txHash)
			if cfg.OutputContentSender != nil {
				cfg.OutputContentSender <- txHash
			}
			if diff, ok := chunk.Diff(idx); ok {
				cumulative.Extend(diff)
			}
		}

		if chunk.BlockFull() {
			break
		}
		if chunk.Scheduler.Halted() && !chunk.BlockFull() {
			// Halted for a reason other than block-full (deadline or abort
			// propagated from inside the chunk); treat as a clean close.
			break
		}
	}

	return BlockExecutionSummary{
		StateDiff:           cumulative,
		BouncerWeights:      b.bouncer.Accumulated(),
		CompressedStateDiff: compressStateDiff(cumulative),
		Rejected:            rejected,
		Committed:           committed,
	}, nil
}
