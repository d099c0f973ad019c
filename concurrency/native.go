package concurrency

import "runtime"

// DefaultNativeStackBytes is the default stack provisioned for the
// sequential (non-pooled) execution path, mirroring the 60 MiB scoped
// thread stack size the native Cairo runner reserves for deeply recursive
// contract calls (§4.D "Native execution path").
const DefaultNativeStackBytes = 60 << 20

// RunWithStack runs fn on a dedicated OS thread locked for its duration.
// Go goroutine stacks already grow on demand up to runtime's configured
// maximum, so stackBytes is informational rather than a hard reservation;
// callers that need a harder guarantee should raise it via
// debug.SetMaxStack at process startup instead of per call.
func RunWithStack(stackBytes int, fn func()) {
	_ = stackBytes
	done := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(done)
		fn()
	}()
	<-done
}
