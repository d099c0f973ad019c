package propeller

import "runtime"

// reconstructionPool is a small independent worker pool dedicated to the
// CPU-bound erasure-decode step, so the network-facing receive loop is
// never blocked by it (§5 "reconstruction in §4.J uses a CPU-bound worker
// (independent pool) so the network loop is not blocked") — the same
// fixed-goroutines-plus-jobs-channel shape as concurrency.Pool, generalized
// here to arbitrary closures instead of *concurrency.Chunk.
type reconstructionPool struct {
	jobs chan func()
	done chan struct{}
}

func newReconstructionPool(n int) *reconstructionPool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	p := &reconstructionPool{jobs: make(chan func()), done: make(chan struct{})}
	for i := 0; i < n; i++ {
		go p.loop()
	}
	return p
}

func (p *reconstructionPool) loop() {
	for job := range p.jobs {
		job()
	}
}

func (p *reconstructionPool) submit(job func()) { p.jobs <- job }

func (p *reconstructionPool) close() { close(p.jobs) }

// defaultReconstructionPool is shared across state managers in a process;
// reconstruction jobs are short CPU bursts, not long-lived owners of the
// pool the way a block-building Chunk is of concurrency.Pool.
var defaultReconstructionPool = newReconstructionPool(0)
