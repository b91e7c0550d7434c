package utils

import (
	"runtime"
	"sync"

	"go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// RowWorkFunc handles a single row of an image.
type RowWorkFunc func(y int)

// ParallelForEachRow splits rows [0, height) into contiguous groups, one per worker, and calls
// work once for every row. Rows must be independent of each other. It returns when every row is
// done.
func ParallelForEachRow(height int, work RowWorkFunc) {
	numGroups := ParallelFactor
	if numGroups > height {
		numGroups = height
	}
	if numGroups <= 1 {
		for y := 0; y < height; y++ {
			work(y)
		}
		return
	}
	groupSize := height / numGroups
	extra := height % numGroups

	var wait sync.WaitGroup
	wait.Add(numGroups)
	for groupNum := 0; groupNum < numGroups; groupNum++ {
		from := groupSize * groupNum
		to := from + groupSize
		if groupNum == numGroups-1 {
			to += extra
		}
		utils.PanicCapturingGo(func() {
			defer wait.Done()
			for y := from; y < to; y++ {
				work(y)
			}
		})
	}
	wait.Wait()
}
