// Package parallel splits index ranges across goroutines for the CPU
// kernels.
package parallel

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Config decides whether and how widely For fans out.
type Config struct {
	Enabled      bool
	NumWorkers   int
	MinChunkSize int // smallest range handed to one goroutine
}

// DefaultConfig uses one worker per physical core as reported by cpuid,
// or runtime.NumCPU when cpuid cannot tell.
func DefaultConfig() Config {
	cores := cpuid.CPU.PhysicalCores
	if cores <= 0 {
		cores = runtime.NumCPU()
	}
	return Config{Enabled: cores > 1, NumWorkers: cores, MinChunkSize: 4}
}

// Sequential never spawns goroutines.
func Sequential() Config {
	return Config{NumWorkers: 1, MinChunkSize: 1}
}

// chunk returns the per-goroutine range length for n items, or n when the
// work should stay on the calling goroutine.
func (c Config) chunk(n int) int {
	if !c.Enabled || c.NumWorkers < 2 || n < 2*c.MinChunkSize {
		return n
	}
	return max(c.MinChunkSize, (n+c.NumWorkers-1)/c.NumWorkers)
}

// For calls f(i) for every i in [0, n) and returns when all calls are done.
//
// Each goroutine gets a contiguous block of indices. As long as f(i) only
// writes state owned by i the outcome matches a plain loop.
func For(n int, f func(i int), cfg Config) {
	size := cfg.chunk(n)
	if size >= n {
		for i := range n {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		wg.Go(func() {
			for i := lo; i < hi; i++ {
				f(i)
			}
		})
	}
	wg.Wait()
}
