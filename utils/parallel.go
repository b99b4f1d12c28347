package utils

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const minChunk = 64

var maxWorkers atomic.Int64

// SetMaxWorkers bounds the number of goroutines used by Parallelize. A value
// of zero or less restores the default of one worker per CPU.
func SetMaxWorkers(n int) {
	maxWorkers.Store(int64(n))
}

func chunks(n int) [][2]int {
	if n <= 0 {
		return nil
	}
	nbTasks := runtime.NumCPU()
	if w := int(maxWorkers.Load()); w > 0 {
		nbTasks = w
	}
	if nbTasks > n {
		nbTasks = n
	}
	if n < minChunk {
		nbTasks = 1
	}
	size := (n + nbTasks - 1) / nbTasks
	res := make([][2]int, 0, nbTasks)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		res = append(res, [2]int{start, end})
	}
	return res
}

// Parallelize splits [0, n) into contiguous chunks and runs work on each
// chunk concurrently. work must only write to state owned by its chunk.
func Parallelize(n int, work func(start, end int)) {
	_ = ParallelizeErr(n, func(start, end int) error {
		work(start, end)
		return nil
	})
}

// ParallelizeErr is Parallelize for work that can fail; the first error is
// returned after every chunk has finished.
func ParallelizeErr(n int, work func(start, end int) error) error {
	cs := chunks(n)
	if len(cs) == 1 {
		return work(cs[0][0], cs[0][1])
	}
	var g errgroup.Group
	for _, c := range cs {
		c := c
		g.Go(func() error {
			return work(c[0], c[1])
		})
	}
	return g.Wait()
}

// MapReduce runs work on each chunk of [0, n) concurrently and folds the
// partial results into acc in chunk order.
func MapReduce[T any](n int, work func(start, end int) T, merge func(acc *T, part T)) T {
	var acc T
	cs := chunks(n)
	if len(cs) == 0 {
		return acc
	}
	parts := make([]T, len(cs))
	var g errgroup.Group
	for i, c := range cs {
		i, c := i, c
		g.Go(func() error {
			parts[i] = work(c[0], c[1])
			return nil
		})
	}
	_ = g.Wait()
	acc = parts[0]
	for _, p := range parts[1:] {
		merge(&acc, p)
	}
	return acc
}
