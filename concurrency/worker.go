package concurrency

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starkware-libs/sequencer-sub006/bouncer"
	"github.com/starkware-libs/sequencer-sub006/execution"
	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/log"
	"github.com/starkware-libs/sequencer-sub006/metrics"
	"github.com/starkware-libs/sequencer-sub006/state"
)

// sleepOnNoTask is how long a worker backs off when the scheduler has
// genuinely nothing to offer it (§5 "Suspension points").
const sleepOnNoTask = time.Microsecond

// TaskOutput is everything an ExecutionTask produces for later validation
// and commit (§4.D).
type TaskOutput struct {
	Reads   state.ReadSet
	Diff    state.StateMaps
	Classes map[ids.ClassHash]state.CompiledClass
	Info    execution.ExecutionInfo
	Err     error
}

// ConcurrencyMetrics counts scheduler events, mirroring the teacher's
// worker_logic.rs ConcurrencyMetrics (original_source supplement, §9).
type ConcurrencyMetrics struct {
	Abort         prometheus.Counter
	AbortInCommit prometheus.Counter
	Execute       prometheus.Counter
	Validate      prometheus.Counter
}

func newConcurrencyMetrics(reg prometheus.Registerer) ConcurrencyMetrics {
	m := ConcurrencyMetrics{
		Abort:         prometheus.NewCounter(prometheus.CounterOpts{Name: "occ_abort_total"}),
		AbortInCommit: prometheus.NewCounter(prometheus.CounterOpts{Name: "occ_abort_in_commit_total"}),
		Execute:       prometheus.NewCounter(prometheus.CounterOpts{Name: "occ_execute_total"}),
		Validate:      prometheus.NewCounter(prometheus.CounterOpts{Name: "occ_validate_total"}),
	}
	if reg != nil {
		reg.MustRegister(m.Abort, m.AbortInCommit, m.Execute, m.Validate)
	}
	return m
}

// RejectedTx records a transaction whose execution failed; it does not fail
// the chunk (§4.D, §7 propagation policy).
type RejectedTx struct {
	Index TxIndex
	Hash  ids.TxHash
	Err   error
}

// Chunk drives one chunk of transactions through the OCC scheduler against
// a shared VersionedState (§4.D). It is the unit of work a Pool's
// goroutines pull from.
type Chunk struct {
	Scheduler *Scheduler

	state    *state.VersionedState
	txs      []execution.Transaction
	vm       execution.VM
	blockCtx execution.BlockContext
	bouncer  *bouncer.Bouncer
	gasTable bouncer.GasTable
	log      log.Logger
	metrics  ConcurrencyMetrics
	timing   *metrics.Timing
	start    time.Time

	deadline *time.Time
	// baseIndex offsets this chunk's local tx indices into a shared
	// VersionedState's global index space, so successive chunks against the
	// same state (e.g. consecutive batches within one block) don't reuse
	// version numbers.
	baseIndex state.TxIndex

	outputs []atomic.Pointer[TaskOutput]

	commitMu  chan struct{} // 1-capacity mutex: only one worker commits at a time
	rejected  chan RejectedTx
	committed chan TxIndex // successfully committed tx indices, in commit order
	blockFull atomic.Bool

	workersRemaining atomic.Int32
	done             chan struct{}
	doneOnce         sync.Once
}

// NewChunk builds a Chunk ready to be handed to a Pool.
func NewChunk(
	versioned *state.VersionedState,
	txs []execution.Transaction,
	vm execution.VM,
	blockCtx execution.BlockContext,
	b *bouncer.Bouncer,
	gasTable bouncer.GasTable,
	deadline *time.Time,
	logger log.Logger,
	reg prometheus.Registerer,
	timing *metrics.Timing,
) *Chunk {
	if logger == nil {
		logger = log.NewNoOp()
	}
	n := len(txs)
	c := &Chunk{
		Scheduler: NewScheduler(n),
		state:     versioned,
		txs:       txs,
		vm:        vm,
		blockCtx:  blockCtx,
		bouncer:   b,
		gasTable:  gasTable,
		log:       logger,
		metrics:   newConcurrencyMetrics(reg),
		timing:    timing,
		start:     time.Now(),
		deadline:  deadline,
		outputs:   make([]atomic.Pointer[TaskOutput], n),
		commitMu:  make(chan struct{}, 1),
		rejected:  make(chan RejectedTx, n),
		committed: make(chan TxIndex, n),
		done:      make(chan struct{}),
	}
	c.commitMu <- struct{}{}
	return c
}

// startWorkers records how many workers will run this chunk; Done closes
// once the last of them returns from runWorker.
func (c *Chunk) startWorkers(n int) {
	c.workersRemaining.Store(int32(n))
}

func (c *Chunk) finishWorker() {
	if c.workersRemaining.Add(-1) == 0 {
		c.doneOnce.Do(func() { close(c.done) })
	}
}

// Wait blocks until every worker assigned to this chunk has returned.
func (c *Chunk) Wait() { <-c.done }

// SetBaseIndex offsets this chunk's local tx indices by base in the shared
// VersionedState's version space. Must be called before the chunk is
// handed to a Pool.
func (c *Chunk) SetBaseIndex(base state.TxIndex) { c.baseIndex = base }

func (c *Chunk) pin(idx TxIndex) *state.View {
	return c.state.PinVersion(c.baseIndex + state.TxIndex(idx))
}

// BlockFull reports whether the bouncer halted this chunk for lack of room.
func (c *Chunk) BlockFull() bool { return c.blockFull.Load() }

// Rejected drains the set of transactions whose execution failed.
func (c *Chunk) Rejected() []RejectedTx {
	close(c.rejected)
	out := make([]RejectedTx, 0, len(c.rejected))
	for r := range c.rejected {
		out = append(out, r)
	}
	return out
}

// Committed drains the committed tx indices, in commit order.
func (c *Chunk) Committed() []TxIndex {
	close(c.committed)
	out := make([]TxIndex, 0, len(c.committed))
	for idx := range c.committed {
		out = append(out, idx)
	}
	return out
}

// Output returns the recorded ExecutionInfo for idx if its latest execution
// succeeded; it does not check whether idx committed.
func (c *Chunk) Output(idx TxIndex) (execution.ExecutionInfo, bool) {
	o := c.outputs[idx].Load()
	if o == nil || o.Err != nil {
		return execution.ExecutionInfo{}, false
	}
	return o.Info, true
}

// Diff returns the recorded state diff for idx if its latest execution
// succeeded; it does not check whether idx committed.
func (c *Chunk) Diff(idx TxIndex) (state.StateMaps, bool) {
	o := c.outputs[idx].Load()
	if o == nil || o.Err != nil {
		return state.StateMaps{}, false
	}
	return o.Diff, true
}

func (c *Chunk) deadlineExceeded() bool {
	return c.deadline != nil && time.Now().After(*c.deadline)
}

// runWorker is one worker's loop over this chunk (§4.D "Worker loop").
func (c *Chunk) runWorker() {
	defer c.finishWorker()
	for {
		if c.deadlineExceeded() {
			c.log.Debug("execution deadline exceeded, halting chunk")
			c.Scheduler.Halt()
			return
		}

		c.commitWhilePossible()

		task := c.Scheduler.NextTask()
		switch task.Kind {
		case KindExecutionTask:
			c.execute(task.Index)
		case KindValidationTask:
			c.validate(task.Index)
		case KindNoTaskAvailable:
			time.Sleep(sleepOnNoTask)
		case KindAskForTask:
			// Retry immediately: some other worker is mid-flight and is
			// expected to free up a task shortly.
		case KindDone:
			return
		}
	}
}

func (c *Chunk) execute(idx TxIndex) {
	c.metrics.Execute.Inc()
	view := c.pin(idx)
	txState := state.NewTransactionalState(view)

	info, err := execution.Execute(c.vm, c.txs[idx], txState, c.blockCtx, execution.Concurrent)
	output := &TaskOutput{
		Reads:   txState.ReadSet(),
		Diff:    txState.StateDiff(),
		Classes: txState.Classes(),
		Info:    info,
		Err:     err,
	}
	if err == nil {
		txState.Commit()
	}
	c.outputs[idx].Store(output)
	c.Scheduler.MarkExecuted(idx)
}

func (c *Chunk) validate(idx TxIndex) {
	c.metrics.Validate.Inc()
	output := c.outputs[idx].Load()
	if output == nil {
		return
	}
	if output.Err != nil {
		// A failed execution has no reads to revalidate; it stays Executed
		// until the commit step disposes of it.
		c.Scheduler.FinishValidationOK(idx)
		return
	}

	view := c.pin(idx)
	ok, err := view.ValidateReads(output.Reads)
	if err != nil {
		c.log.Debug("validation read failed", "index", idx, "err", err)
		c.Scheduler.FinishValidationOK(idx)
		return
	}
	if ok {
		c.Scheduler.FinishValidationOK(idx)
		return
	}

	if !c.Scheduler.TryAbort(idx) {
		// A concurrent commit already claimed this index; nothing to do.
		return
	}
	view.DeleteWrites(output.Diff, output.Classes)
	c.Scheduler.ReexecuteAfterAbort(idx)
	c.metrics.Abort.Inc()
}

// commitWhilePossible attempts the opportunistic commit-prefix step (§4.D
// step 1). Only one worker performs it at a time (guarded by commitMu), so
// that commit order is strictly by tx_index.
func (c *Chunk) commitWhilePossible() {
	select {
	case <-c.commitMu:
	default:
		return
	}
	defer func() { c.commitMu <- struct{}{} }()

	for {
		idx, ready := c.Scheduler.CommitCandidate()
		if !ready {
			return
		}
		output := c.outputs[idx].Load()
		if output == nil {
			return
		}
		if output.Err != nil {
			c.rejected <- RejectedTx{Index: idx, Hash: c.txs[idx].Hash, Err: output.Err}
			c.Scheduler.Commit(idx)
			continue
		}

		view := c.pin(idx)
		ok, err := view.ValidateReads(output.Reads)
		if err != nil {
			c.log.Debug("commit-time validation read failed", "index", idx, "err", err)
			c.Scheduler.RevalidateAtCommit(idx)
			return
		}
		if !ok {
			c.metrics.AbortInCommit.Inc()
			c.Scheduler.RevalidateAtCommit(idx)
			return
		}

		summary := bouncer.SummaryFromExecution(output.Info, output.Diff.VisitedContracts(), c.gasTable)
		if c.bouncer != nil {
			if err := c.bouncer.TryUpdate(summary); err != nil {
				if errors.Is(err, bouncer.ErrTransactionTooLarge) {
					// Too large for any block: reject this transaction only
					// and keep committing the rest of the chunk.
					view.DeleteWrites(output.Diff, output.Classes)
					c.rejected <- RejectedTx{Index: idx, Hash: c.txs[idx].Hash, Err: err}
					c.Scheduler.Commit(idx)
					continue
				}
				c.log.Debug("bouncer refused transaction, halting chunk", "index", idx, "err", err)
				c.blockFull.Store(true)
				c.Scheduler.Halt()
				return
			}
		}

		c.Scheduler.Commit(idx)
		c.committed <- idx
		c.timing.Observe(time.Since(c.start))
	}
}
