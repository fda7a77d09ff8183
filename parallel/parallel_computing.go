package parallel

import (
	"reflect"
	"runtime"
	"sync"
)

type ParallelGroup struct {
	fns     []any
	results [][]any
	wg      sync.WaitGroup
}

// GroupUp initializes a new ParallelGroup with the given functions.
func GroupUp(fns ...any) *ParallelGroup {
	return &ParallelGroup{
		fns:     fns,
		results: make([][]any, len(fns)),
	}
}

// Run starts the execution of all functions in parallel goroutines.
func (pg *ParallelGroup) Run() *ParallelGroup {
	for i, fn := range pg.fns {
		pg.wg.Add(1)
		go func(i int, fn any) {
			defer pg.wg.Done()
			fnValue := reflect.ValueOf(fn)
			resultValues := fnValue.Call(nil)
			if len(resultValues) > 0 {
				results := make([]any, len(resultValues))
				for j, v := range resultValues {
					results[j] = v.Interface()
				}
				pg.results[i] = results
			}
		}(i, fn)
	}
	return pg
}

// AwaitResult waits for all functions to complete and returns their results.
func (pg *ParallelGroup) AwaitResult() [][]any {
	pg.wg.Wait()
	return pg.results
}

// AwaitNoResult waits for all functions to complete without returning results.
// This is optimized for functions that do not return values, avoiding result collection overhead.
func (pg *ParallelGroup) AwaitNoResult() {
	pg.wg.Wait()
}

// Workers resolves a requested worker count: values below 1 fall back to
// runtime.NumCPU().
func Workers(requested int) int {
	if requested < 1 {
		return runtime.NumCPU()
	}
	return requested
}

// ForEach runs fn(i) for i in [0, n) over a bounded pool of workers and
// blocks until every task has finished. Tasks must synchronise any shared
// writes themselves (the forest paths use atomic counters). Work is handed
// out through a channel so long tasks do not starve short ones.
func ForEach(n, workers int, fn func(i int)) {
	if n <= 0 {
		return
	}
	workers = Workers(workers)
	if workers > n {
		workers = n
	}
	if workers == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	tasks := make(chan int, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range tasks {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		tasks <- i
	}
	close(tasks)
	wg.Wait()
}
