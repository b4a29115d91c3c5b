//go:build linux

package qhash

import "golang.org/x/sys/unix"

func processID() int { return unix.Getpid() }

// threadID is the OS thread currently running the calling goroutine.
func threadID() int { return unix.Gettid() }

func readLoad() loadSample {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return loadSample{}
	}
	s := loadSample{cpu: uint64(si.Loads[0])}
	total := uint64(si.Totalram)
	if total > 0 {
		free := uint64(si.Freeram) + uint64(si.Bufferram)
		if free > total {
			free = total
		}
		s.mem = (total - free) * 10000 / total
	}
	return s
}
