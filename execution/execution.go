// Package execution implements the thin executor shell (§4.B): it wraps an
// external VM (out of scope, §1) with the transactional-state bookkeeping
// the OCC worker pool depends on.
package execution

import (
	"errors"
	"fmt"

	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/state"
)

// Errors returned by Execute (§7 "Executor").
var (
	ErrTransactionTooLarge = errors.New("execution: transaction too large for any block")
	ErrTransactionFailed   = errors.New("execution: transaction failed")
	ErrBlockFull           = errors.New("execution: block full")
	ErrDeadlineReached     = errors.New("execution: deadline reached")
	ErrAborted             = errors.New("execution: aborted")
)

// ConcurrencyMode distinguishes the sequential fallback path from the
// parallel OCC path; the two differ in how deeply nested/recursive contract
// calls provision their call stack (§4.D "Native execution path").
type ConcurrencyMode int

const (
	// Sequential executes with a scoped worker thread of a configured stack
	// size, since nothing upstream already guarantees one.
	Sequential ConcurrencyMode = iota
	// Concurrent executes as one OCC worker-pool task; the pool's own
	// worker goroutines are assumed to already provide adequate stack.
	Concurrent
)

// EventsSummary and MessagesSummary are coarse counts the bouncer needs
// (§3.3); full event/message payloads belong to ExecutionInfo's Receipt,
// whose structure is owned by the external VM and not specified here.
type EventsSummary struct {
	NEvents              int
	EventsFeltLength     int
}

type MessagesSummary struct {
	MessageSegmentLength int
}

// ResourceUsage is the subset of VM resource accounting the bouncer and fee
// logic need: gas axes and the builtin/step counts that feed the sierra-gas
// conversion (§3.3, §4.C).
type ResourceUsage struct {
	L1Gas       uint64
	SierraGas   uint64
	StateDiffSize int
	NSteps      uint64
	Builtins    map[string]uint64
}

// ExecutionInfo is returned on a successful Execute call (§4.B, §6).
type ExecutionInfo struct {
	Receipt              any // VM-owned receipt payload; opaque here.
	Resources            ResourceUsage
	Events               EventsSummary
	Messages             MessagesSummary
	VisitedStorageEntries map[state.StorageEntry]struct{}
}

// Transaction is the minimal surface the executor shell needs from a
// transaction: its hash and an opaque payload the VM interprets.
type Transaction struct {
	Hash    ids.TxHash
	Payload any
}

// BlockContext carries chain-wide parameters (gas prices, block number,
// builtin gas table, ...) that Execute needs but does not specify the shape
// of — it is threaded through to the external VM untouched.
type BlockContext struct {
	BlockNumber ids.BlockNumber
	Extra       any
}

// VM is the external executor contract (§6 "Executor contract"): given a
// transaction, a transactional state overlay and a block context, it must
// deterministically return either an ExecutionInfo or a typed error for a
// given (tx, state_at_tx_index).
type VM interface {
	Run(tx Transaction, txState *state.TransactionalState, blockCtx BlockContext, mode ConcurrencyMode) (ExecutionInfo, error)
}

// Execute runs tx against txState (§4.B): on success it commits nothing
// itself (the caller decides when to fold an overlay's writes into the
// versioned state — see concurrency.Chunk) and returns the resulting
// ExecutionInfo; on failure it discards the overlay's pending writes and
// propagates the VM's error.
func Execute(vm VM, tx Transaction, txState *state.TransactionalState, blockCtx BlockContext, mode ConcurrencyMode) (ExecutionInfo, error) {
	info, err := vm.Run(tx, txState, blockCtx, mode)
	if err != nil {
		txState.Discard()
		return ExecutionInfo{}, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	return info, nil
}
