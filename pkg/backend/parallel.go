package backend

import (
	"runtime"
	"sync"
)

// runOverIndices calls fn(i) for every i in [0,n), either serially or across
// a worker pool sized to the host's CPU count, grounded on the job-channel
// worker pool in the teacher's LoadCellsParallel. Unlike that function, fn
// writes into per-index slots of a slice preallocated by the caller, so
// there is no result channel or index-ordered reassembly step: concurrent
// writes to disjoint slice elements need no synchronization.
func runOverIndices(parallel bool, n int, fn func(i int)) {
	if !parallel || n <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}

	jobs := make(chan int, n)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
