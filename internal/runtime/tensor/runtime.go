package tensor

import (
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
)

// workers caps the goroutines Linear spreads its rows over. It is set once
// from the runtime threads setting.
var workers atomic.Int32

func init() {
	workers.Store(1)
}

// SetWorkers sets the row parallelism of Linear. n < 1 means 1.
func SetWorkers(n int) {
	workers.Store(int32(max(1, min(n, 1<<16))))
}

// Workers reports the row parallelism of Linear.
func Workers() int {
	return int(max(1, workers.Load()))
}

// parallelRows calls fn over contiguous row ranges covering [0, rows),
// one range per worker.
func parallelRows(rows, n int, fn func(lo, hi int)) {
	if rows <= 0 {
		return
	}

	n = min(n, rows)
	if n <= 1 {
		fn(0, rows)
		return
	}

	chunk := (rows + n - 1) / n
	p := pool.New().WithMaxGoroutines(n)

	for lo := 0; lo < rows; lo += chunk {
		hi := min(lo+chunk, rows)
		p.Go(func() { fn(lo, hi) })
	}

	p.Wait()
}
