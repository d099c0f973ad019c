package bouncer

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starkware-libs/sequencer-sub006/execution"
	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/log"
	"github.com/starkware-libs/sequencer-sub006/state"
)

// ErrBlockFull is returned by TryUpdate when admitting a transaction would
// exceed the block's max capacity (§4.C).
var ErrBlockFull = errors.New("bouncer: block full")

// ErrTransactionTooLarge is returned when a transaction's own standalone
// weight already exceeds the block maximum: fatal for the transaction,
// never retried, but non-fatal for the block (§4.C).
var ErrTransactionTooLarge = errors.New("bouncer: transaction too large")

// Summary bundles the weight contribution and newly-visited keys a single
// transaction's execution produced, computed relative to what the bouncer
// has already accounted for this block (§4.C "Marginal keys").
type Summary struct {
	Weights           Weights
	VisitedContracts  map[ids.ContractAddress]struct{}
	VisitedStorage    map[state.StorageEntry]struct{}
}

// Bouncer tracks accumulated per-block weights and the union of executed
// class hashes / visited storage entries, behind a single mutex held
// briefly per TryUpdate call (§5 "Shared resources").
type Bouncer struct {
	log log.Logger

	mu                sync.Mutex
	maxCapacity       Weights
	accumulated       Weights
	executedContracts map[ids.ContractAddress]struct{}
	visitedStorage    map[state.StorageEntry]struct{}

	admitted prometheus.Counter
	rejected prometheus.Counter
}

// New returns a Bouncer with no weight accumulated yet, bounded by
// maxCapacity.
func New(maxCapacity Weights, logger log.Logger, reg prometheus.Registerer) *Bouncer {
	if logger == nil {
		logger = log.NewNoOp()
	}
	b := &Bouncer{
		log:               logger,
		maxCapacity:       maxCapacity,
		executedContracts: make(map[ids.ContractAddress]struct{}),
		visitedStorage:    make(map[state.StorageEntry]struct{}),
		admitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bouncer_admitted_total",
			Help: "Number of transactions admitted into the current block.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bouncer_rejected_total",
			Help: "Number of transactions rejected for lack of block room.",
		}),
	}
	if reg != nil {
		reg.MustRegister(b.admitted, b.rejected)
	}
	return b
}

// StandaloneTooLarge reports whether w alone, with nothing else accumulated,
// would already exceed maxCapacity — the TransactionTooLarge case (§4.C).
func (b *Bouncer) StandaloneTooLarge(w Weights) bool {
	return !w.Dominates(b.maxCapacity)
}

// TryUpdate attempts to admit summary's weights on top of whatever this
// block has already accumulated (§4.C). On success, accumulated weights and
// visited-key sets are updated; on ErrBlockFull, the bouncer's state is left
// completely unchanged.
func (b *Bouncer) TryUpdate(summary Summary) error {
	if b.StandaloneTooLarge(summary.Weights) {
		return ErrTransactionTooLarge
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	candidate, err := b.accumulated.Add(summary.Weights)
	if err != nil {
		b.rejected.Inc()
		return err
	}
	if !candidate.Dominates(b.maxCapacity) {
		b.rejected.Inc()
		b.log.Debug("bouncer rejecting transaction, block full",
			"accumulated", b.accumulated, "candidate", candidate, "max", b.maxCapacity)
		return ErrBlockFull
	}

	b.accumulated = candidate
	for c := range summary.VisitedContracts {
		b.executedContracts[c] = struct{}{}
	}
	for e := range summary.VisitedStorage {
		b.visitedStorage[e] = struct{}{}
	}
	b.admitted.Inc()
	return nil
}

// Accumulated returns a copy of the weights accumulated so far.
func (b *Bouncer) Accumulated() Weights {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accumulated
}

// MarginalStorageEntries filters candidate down to the entries not yet
// accounted for this block (§4.C "Marginal keys").
func (b *Bouncer) MarginalStorageEntries(candidate map[state.StorageEntry]struct{}) map[state.StorageEntry]struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[state.StorageEntry]struct{})
	for e := range candidate {
		if _, seen := b.visitedStorage[e]; !seen {
			out[e] = struct{}{}
		}
	}
	return out
}

// SummaryFromExecution derives a Summary from an execution result (§4.C),
// converting VM resource usage into sierra_gas via table.
func SummaryFromExecution(info execution.ExecutionInfo, visitedContracts map[ids.ContractAddress]struct{}, table GasTable) Summary {
	sierraGas := info.Resources.SierraGas
	if sierraGas == 0 && (info.Resources.NSteps != 0 || len(info.Resources.Builtins) != 0) {
		sierraGas = table.SierraGasCost(info.Resources.NSteps, info.Resources.Builtins)
	}
	return Summary{
		Weights: Weights{
			L1Gas:                info.Resources.L1Gas,
			MessageSegmentLength: uint64(info.Messages.MessageSegmentLength),
			NEvents:              uint64(info.Events.NEvents),
			StateDiffSize:        uint64(info.Resources.StateDiffSize),
			SierraGas:            sierraGas,
		},
		VisitedContracts: visitedContracts,
		VisitedStorage:   info.VisitedStorageEntries,
	}
}
