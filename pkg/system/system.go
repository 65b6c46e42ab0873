package system

import (
	"sync/atomic"
	"time"
)

var startNanos atomic.Int64

// InitStartTime records when the process started serving. Only the first
// call counts.
func InitStartTime() {
	startNanos.CompareAndSwap(0, time.Now().UnixNano())
}

// Uptime is the number of whole seconds since InitStartTime, zero before it.
func Uptime() int64 {
	start := startNanos.Load()
	if start == 0 {
		return 0
	}
	return int64(time.Since(time.Unix(0, start)).Seconds())
}
