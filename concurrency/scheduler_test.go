package concurrency

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchedulerExecutesThenValidatesThenCommits(t *testing.T) {
	s := NewScheduler(2)

	task := s.NextTask()
	require.Equal(t, KindExecutionTask, task.Kind)
	require.Equal(t, TxIndex(0), task.Index)

	task = s.NextTask()
	require.Equal(t, KindExecutionTask, task.Kind)
	require.Equal(t, TxIndex(1), task.Index)

	s.MarkExecuted(0)
	s.MarkExecuted(1)

	idx, ready := s.CommitCandidate()
	require.True(t, ready)
	require.Equal(t, TxIndex(0), idx)
	s.Commit(0)

	idx, ready = s.CommitCandidate()
	require.True(t, ready)
	require.Equal(t, TxIndex(1), idx)
	s.Commit(1)

	require.True(t, s.Done())
	require.Equal(t, KindDone, s.NextTask().Kind)
}

func TestMarkExecutedRewindsValidationForLaterIndices(t *testing.T) {
	s := NewScheduler(3)
	for i := 0; i < 3; i++ {
		s.NextTask()
	}
	s.MarkExecuted(0)
	s.MarkExecuted(1)
	s.MarkExecuted(2)

	task := s.NextTask()
	require.Equal(t, KindValidationTask, task.Kind)
	require.Equal(t, TxIndex(0), task.Index)
	s.FinishValidationOK(0)

	// Re-executing index 0 (e.g. after a commit-time abort) must force
	// indices 1 and 2 to be re-validated, even though they already passed
	// validation once.
	s.ReexecuteAfterAbort(0)
	task = s.NextTask()
	require.Equal(t, KindExecutionTask, task.Kind)
	require.Equal(t, TxIndex(0), task.Index)
	s.MarkExecuted(0)

	task = s.NextTask()
	require.Equal(t, KindValidationTask, task.Kind)
	require.Equal(t, TxIndex(1), task.Index, "index 1 must be re-offered for validation")
}

func TestTryAbortFailsIfAlreadyCommitted(t *testing.T) {
	s := NewScheduler(1)
	s.NextTask()
	s.MarkExecuted(0)
	s.Commit(0)
	require.False(t, s.TryAbort(0), "cannot abort an index a concurrent commit already claimed")
}

func TestHaltMakesNextTaskReturnDone(t *testing.T) {
	s := NewScheduler(5)
	s.Halt()
	require.Equal(t, KindDone, s.NextTask().Kind)
}

func TestBusyElsewhereDistinguishesAskForTaskFromNoTask(t *testing.T) {
	s := NewScheduler(2)
	task := s.NextTask() // claims index 0 as Executing
	require.Equal(t, KindExecutionTask, task.Kind)

	// index 1 is also ReadyToExecute, so it should be handed out, not
	// reported busy.
	task = s.NextTask()
	require.Equal(t, KindExecutionTask, task.Kind)

	// both indices are now Executing: a third call should say AskForTask,
	// since a task may free up imminently.
	require.Equal(t, KindAskForTask, s.NextTask().Kind)

	s.MarkExecuted(0)
	s.MarkExecuted(1)
	s.Commit(0)
	s.Commit(1)
	require.Equal(t, KindDone, s.NextTask().Kind)
}
