package frame

import "sync/atomic"

// Stats counts framing activity for diagnostics, exposed verbatim by
// cmd/motion-host's /status handler. All fields are updated with atomic
// ops so a Stats value may be shared between the write-loop goroutine and
// the HTTP handler goroutine without its own mutex.
type Stats struct {
	framesBuilt   uint64
	buildErrors   uint64
	overflowCount uint64
}

// RecordBuild increments the built-frame counter, or the error counter
// when err is non-nil.
func (s *Stats) RecordBuild(err error) {
	if err != nil {
		atomic.AddUint64(&s.buildErrors, 1)
		return
	}
	atomic.AddUint64(&s.framesBuilt, 1)
}

// RecordOverflow increments the receive-buffer overflow counter.
func (s *Stats) RecordOverflow() {
	atomic.AddUint64(&s.overflowCount, 1)
}

// Snapshot is a point-in-time, non-atomic copy of a Stats value for
// rendering (e.g. as JSON in a status response).
type Snapshot struct {
	FramesBuilt   uint64 `json:"frames_built"`
	BuildErrors   uint64 `json:"build_errors"`
	OverflowCount uint64 `json:"overflow_count"`
}

// Snapshot reads the current counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		FramesBuilt:   atomic.LoadUint64(&s.framesBuilt),
		BuildErrors:   atomic.LoadUint64(&s.buildErrors),
		OverflowCount: atomic.LoadUint64(&s.overflowCount),
	}
}
