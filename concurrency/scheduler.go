// Package concurrency implements the OCC scheduler and worker pool that
// drive a chunk of transactions through parallel execution, validation and
// in-order commit (§4.D) — the most important concurrency contract in the
// node.
package concurrency

import "sync"

// TxIndex identifies a transaction's position within the chunk.
type TxIndex int

// Status is a transaction's place in the scheduler's status lattice (§4.D):
//
//	ReadyToExecute -> Executing -> Executed <-> ReadyToValidate -> Validating -> {Committed, Aborting}
//	Aborting -> ReadyToExecute
//
// ReadyToValidate is folded into Executed: any Executed transaction is
// eligible for (re-)validation, so the two states never need to be
// distinguished in this implementation.
type Status int

const (
	StatusReadyToExecute Status = iota
	StatusExecuting
	StatusExecuted
	StatusValidating
	StatusAborting
	StatusCommitted
)

func (s Status) String() string {
	switch s {
	case StatusReadyToExecute:
		return "ReadyToExecute"
	case StatusExecuting:
		return "Executing"
	case StatusExecuted:
		return "Executed"
	case StatusValidating:
		return "Validating"
	case StatusAborting:
		return "Aborting"
	case StatusCommitted:
		return "Committed"
	default:
		return "Unknown"
	}
}

// TaskKind distinguishes the variants of Task (§4.D "next_task").
type TaskKind int

const (
	KindExecutionTask TaskKind = iota
	KindValidationTask
	KindNoTaskAvailable
	KindAskForTask
	KindDone
)

// Task is the unit of work next_task hands to a worker.
type Task struct {
	Kind  TaskKind
	Index TxIndex
}

// Scheduler maintains the status lattice and the execution_index /
// validation_index cursors for one chunk (§4.D). All mutation goes through
// the scheduler's own mutex; it never exposes the status slice directly.
type Scheduler struct {
	mu sync.Mutex

	n              int
	status         []Status
	executionIdx   int
	validationIdx  int
	commitIdx      int
	committedCount int
	halted         bool
}

// NewScheduler returns a Scheduler for a chunk of n transactions, all
// initially ReadyToExecute.
func NewScheduler(n int) *Scheduler {
	status := make([]Status, n)
	return &Scheduler{n: n, status: status}
}

// Halt stops the scheduler: every subsequent NextTask call returns Done and
// outstanding tasks are abandoned (§4.D "Cancellation and deadlines").
func (s *Scheduler) Halt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halted = true
}

// Halted reports whether Halt has been called.
func (s *Scheduler) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Done reports whether every transaction in the chunk has been committed.
func (s *Scheduler) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committedCount == s.n
}

// busyElsewhere reports whether some index is mid-flight (Executing,
// Validating or about to be re-executed), meaning a task is likely to free
// up imminently — the AskForTask case, as opposed to genuinely idle
// (NoTaskAvailable).
func (s *Scheduler) busyElsewhere() bool {
	for _, st := range s.status {
		if st == StatusExecuting || st == StatusValidating || st == StatusAborting {
			return true
		}
	}
	return false
}

// NextTask returns the next task for a worker to perform (§4.D). Validation
// is preferred over execution at equal index, since revalidating sooner
// shortens the commit-blocking critical path.
func (s *Scheduler) NextTask() Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted || s.committedCount == s.n {
		return Task{Kind: KindDone}
	}

	for s.validationIdx < s.n && s.status[s.validationIdx] == StatusCommitted {
		s.validationIdx++
	}
	for s.executionIdx < s.n && s.status[s.executionIdx] == StatusCommitted {
		s.executionIdx++
	}
	canValidate := s.validationIdx < s.n && s.status[s.validationIdx] == StatusExecuted
	canExecute := s.executionIdx < s.n && s.status[s.executionIdx] == StatusReadyToExecute

	if canValidate && (!canExecute || s.validationIdx <= s.executionIdx) {
		idx := TxIndex(s.validationIdx)
		s.status[s.validationIdx] = StatusValidating
		s.validationIdx++
		return Task{Kind: KindValidationTask, Index: idx}
	}

	if canExecute {
		idx := TxIndex(s.executionIdx)
		s.status[s.executionIdx] = StatusExecuting
		s.executionIdx++
		return Task{Kind: KindExecutionTask, Index: idx}
	}

	if s.busyElsewhere() {
		return Task{Kind: KindAskForTask}
	}
	return Task{Kind: KindNoTaskAvailable}
}

// MarkExecuted transitions idx from Executing to Executed and rewinds the
// validation cursor to at most idx+1 so that every already-Executed
// transaction past idx is re-validated against this new write (§4.D
// ExecutionTask).
func (s *Scheduler) MarkExecuted(idx TxIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[idx] = StatusExecuted
	if int(idx)+1 < s.validationIdx {
		s.validationIdx = int(idx) + 1
	}
}

// FinishValidationOK transitions idx from Validating back to Executed: the
// transaction's reads still hold.
func (s *Scheduler) FinishValidationOK(idx TxIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status[idx] == StatusValidating {
		s.status[idx] = StatusExecuted
	}
}

// TryAbort attempts to transition idx from Validating to Aborting. It fails
// (returns false) if a concurrent commit has already claimed idx — the
// "a concurrent commit won" case (§4.D ValidationTask).
func (s *Scheduler) TryAbort(idx TxIndex) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status[idx] != StatusValidating {
		return false
	}
	s.status[idx] = StatusAborting
	return true
}

// ReexecuteAfterAbort transitions idx from Aborting back to ReadyToExecute
// and rewinds the execution cursor so a worker picks it up again.
func (s *Scheduler) ReexecuteAfterAbort(idx TxIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[idx] = StatusReadyToExecute
	if int(idx) < s.executionIdx {
		s.executionIdx = int(idx)
	}
}

// CommitCandidate returns the next uncommitted index in commit order and
// whether it is currently Executed (ready to attempt a commit).
func (s *Scheduler) CommitCandidate() (TxIndex, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitIdx >= s.n {
		return 0, false
	}
	idx := TxIndex(s.commitIdx)
	return idx, s.status[idx] == StatusExecuted
}

// Commit marks idx Committed and advances the commit cursor. Callers must
// have already re-validated idx's reads against the current versioned state
// (§4.D "Opportunistically attempts a commit prefix").
func (s *Scheduler) Commit(idx TxIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[idx] = StatusCommitted
	s.committedCount++
	if int(idx) == s.commitIdx {
		s.commitIdx++
	}
}

// RevalidateAtCommit reverts idx from Executed to Executed (no-op status
// change) but rewinds the validation cursor, used when a commit-time
// re-check of idx's reads fails without having gone through a
// ValidationTask: the transaction must be re-validated (and likely
// re-executed) rather than committed.
func (s *Scheduler) RevalidateAtCommit(idx TxIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(idx) < s.validationIdx {
		s.validationIdx = int(idx)
	}
}

// Status returns idx's current status.
func (s *Scheduler) Status(idx TxIndex) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[idx]
}

// CommittedCount returns how many transactions have committed so far.
func (s *Scheduler) CommittedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committedCount
}
