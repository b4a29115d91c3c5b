//go:build !linux

package qhash

import (
	"os"
	"runtime"
)

func processID() int { return os.Getpid() }

// threadID has no portable equivalent; callers already mix in the worker id.
func threadID() int { return 0 }

func readLoad() loadSample {
	return loadSample{cpu: uint64(runtime.NumGoroutine()), mem: uint64(runtime.NumCPU())}
}
