package compute

import (
	"runtime"
	"sync"
)

type poolTask struct {
	fn     func(lo, hi int)
	lo, hi int
	done   chan struct{}
}

// Parallel runs ranges on a fixed set of worker goroutines.
type Parallel struct {
	size      int
	tasks     chan poolTask
	doneSlots chan chan struct{}
	closeOnce sync.Once
}

var (
	defaultPool     *Parallel
	defaultPoolOnce sync.Once
)

// Default returns the process-wide parallel context sized to GOMAXPROCS.  It
// is never closed.
func Default() *Parallel {
	defaultPoolOnce.Do(func() {
		defaultPool = NewParallel(runtime.GOMAXPROCS(0))
	})
	return defaultPool
}

// NewParallel starts a pool with the given number of workers (at least one).
// Close releases the workers.
func NewParallel(workers int) *Parallel {
	if workers < 1 {
		workers = 1
	}
	p := &Parallel{
		size:      workers,
		tasks:     make(chan poolTask, workers*2),
		doneSlots: make(chan chan struct{}, workers),
	}
	for range workers {
		p.doneSlots <- make(chan struct{}, workers)
	}
	for range workers {
		go func() {
			for task := range p.tasks {
				task.fn(task.lo, task.hi)
				task.done <- struct{}{}
			}
		}()
	}
	return p
}

func (p *Parallel) Name() string { return ParallelName }
func (p *Parallel) Workers() int { return p.size }

// ParallelFor splits [0, n) into at most Workers contiguous chunks.
func (p *Parallel) ParallelFor(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	workers := min(p.size, n)
	if workers <= 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	done := <-p.doneSlots

	active := 0
	for i := range workers {
		lo := i * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			break
		}
		active++
		p.tasks <- poolTask{fn: fn, lo: lo, hi: hi, done: done}
	}
	for range active {
		<-done
	}
	p.doneSlots <- done
}

// Close stops the workers.  The pool must not be used afterwards.
func (p *Parallel) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
}
