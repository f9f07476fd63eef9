package squall

import (
	"runtime"
	"sync/atomic"
)

// ControlState is the shared state among the acquisition producer, the two
// treatment consumers, and the controlling context. There is no lock
// anywhere: every field has exactly one writer, and everyone else only
// reads. Cancellation is cooperative: RequestStop flips a flag that the
// producer polls at the top of each loop iteration, never mid-transfer.
//
// Writers: the control context writes measuring; the producer writes
// safeAcquisition, measuredBuffers, completedBuffers, and message;
// consumer i writes safeTreatment[i].
type ControlState struct {
	measuring        atomic.Bool
	safeAcquisition  atomic.Bool
	safeTreatment    [channelCount]atomic.Bool
	measuredBuffers  atomic.Int64
	completedBuffers atomic.Int64
	message          atomic.Value // string
}

// NewControlState returns control state for one acquisition, in the
// measuring state.
func NewControlState() *ControlState {
	cs := new(ControlState)
	cs.measuring.Store(true)
	cs.message.Store("")
	return cs
}

// Measuring reports whether a stop has been requested yet.
func (cs *ControlState) Measuring() bool { return cs.measuring.Load() }

// RequestStop asks the producer to finish after its current buffer. It is
// the only write the control context performs.
func (cs *ControlState) RequestStop() { cs.measuring.Store(false) }

// SafeAcquisition reports whether the producer has torn down cleanly.
func (cs *ControlState) SafeAcquisition() bool { return cs.safeAcquisition.Load() }

func (cs *ControlState) setSafeAcquisition() { cs.safeAcquisition.Store(true) }

// TreatmentDone reports whether consumer channum has finished.
func (cs *ControlState) TreatmentDone(channum int) bool {
	return cs.safeTreatment[channum].Load()
}

// SetTreatmentDone marks consumer channum finished. Each consumer writes
// its own slot exactly once, on clean exit.
func (cs *ControlState) SetTreatmentDone(channum int) {
	cs.safeTreatment[channum].Store(true)
}

// MeasuredBuffers returns the final buffer count, written once by the
// producer at drain time.
func (cs *ControlState) MeasuredBuffers() int64 { return cs.measuredBuffers.Load() }

func (cs *ControlState) setMeasuredBuffers(n int64) { cs.measuredBuffers.Store(n) }

// CompletedBuffers returns the live completed-buffer count for progress
// polling.
func (cs *ControlState) CompletedBuffers() int64 { return cs.completedBuffers.Load() }

func (cs *ControlState) bumpCompleted() { cs.completedBuffers.Add(1) }

// Message returns the producer's transfer report, written once at drain.
func (cs *ControlState) Message() string { return cs.message.Load().(string) }

func (cs *ControlState) setMessage(msg string) { cs.message.Store(msg) }

// WaitClosed spins until the producer and both consumers have reported a
// clean exit. A spin is acceptable here: convergence is bounded by one
// in-flight buffer's wait timeout, so the busy phase is short. The yield
// keeps the spin from starving the very goroutines it waits on.
func (cs *ControlState) WaitClosed() {
	for !(cs.SafeAcquisition() && cs.TreatmentDone(0) && cs.TreatmentDone(1)) {
		runtime.Gosched()
	}
}
