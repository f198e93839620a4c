package piston

import "sync"

// task runs fn over data split into contiguous chunks, one goroutine per chunk.
// fn must only touch its own element: bodies are integrated independently.
func task[T any](workersCount int, data []T, fn func(data T)) {
	dataSize := len(data)
	workersCount = min(workersCount, dataSize)

	// Not worth a goroutine
	if workersCount <= 1 {
		for _, d := range data {
			fn(d)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := (dataSize + workersCount - 1) / workersCount

	for workerID := 0; workerID < workersCount; workerID++ {
		start := workerID * chunkSize
		end := min(start+chunkSize, dataSize)
		if start >= end {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(data[i])
			}
		}(start, end)
	}
	wg.Wait()
}
