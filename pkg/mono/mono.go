// Package mono provides low-level monotonic time, used by the logger to
// record when it last flushed without depending on wall-clock time.
package mono

import "time"

var start = time.Now()

// NanoTime returns a monotonic nanosecond counter anchored at process
// start. Unlike time.Now().UnixNano() it never runs backward across an
// NTP step.
func NanoTime() int64 { return int64(time.Since(start)) }
