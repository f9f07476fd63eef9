// Package ats gives squall its view of an ATS9360 digitizer: the constant
// code tables of the vendor SDK, the Board interface the acquisition core
// programs, and a no-hardware simulator for tests and bench runs.
//
// The interface is deliberately dependency-free. It is the seam everything
// above it mocks, so it must stay a plain capability surface: register
// programming and OS driver calls live behind it, never in front of it.
package ats

import (
	"errors"
	"time"
)

// ErrTimeout is returned by WaitAsyncBufferComplete when a posted buffer
// does not fill within the caller's bound.
var ErrTimeout = errors.New("ats: timeout waiting for buffer completion")

// Board is the capability interface to one digitizer board. Buffers cross
// this seam as raw byte slices; the slice identity (its backing array) is
// what the board tracks between PostAsyncBuffer and WaitAsyncBufferComplete.
//
// A buffer posted to the board is owned by the board until
// WaitAsyncBufferComplete returns it; after that it is owned by the caller
// until reposted. Nothing enforces this at compile time, so the contract is
// stated here once and honored everywhere.
type Board interface {
	// SetCaptureClock programs clock source, rate, edge and decimation in
	// one call. rateCodeOrHz is a SampleRateCode for the internal clock and
	// a rate in Hz for an external reference.
	SetCaptureClock(source ClockSource, rateCodeOrHz uint32, edge ClockEdge, decimation uint32) error

	// SetInputControl programs coupling, range and impedance of one channel.
	SetInputControl(ch Channel, coupling Coupling, rng InputRange, impedance Impedance) error

	// SetTriggerOperation programs both trigger engines and the operation
	// combining them. Must precede SetExternalTrigger.
	SetTriggerOperation(op TriggerEngine,
		engine1 TriggerEngine, source1 TriggerSource, slope1 TriggerSlopeCode, level1 int,
		engine2 TriggerEngine, source2 TriggerSource, slope2 TriggerSlopeCode, level2 int) error

	// SetExternalTrigger programs the external trigger input. Must follow
	// SetTriggerOperation.
	SetExternalTrigger(coupling Coupling, rng ExternalTriggerRange) error

	// SetTriggerDelay programs the post-trigger delay in sample counts.
	SetTriggerDelay(samples uint32) error

	// SetTriggerTimeout programs the synthetic-trigger timeout; 0 disables
	// it, so a missing hardware trigger blocks indefinitely.
	SetTriggerTimeout(ticks uint32) error

	// ConfigureAuxIO programs the AUX connector mode.
	ConfigureAuxIO(mode AuxIOMode, parameter uint32) error

	// GetChannelInfo reports on-board memory size (in samples) and the ADC
	// resolution in bits per sample.
	GetChannelInfo() (memorySamples int64, bitsPerSample int, err error)

	// SetRecordSize programs pre- and post-trigger sample counts per record.
	SetRecordSize(preTriggerSamples, postTriggerSamples int) error

	// BeforeAsyncRead arms the asynchronous DMA engine for a capture of
	// recordsPerAcquisition records delivered recordsPerBuffer at a time.
	BeforeAsyncRead(channelMask Channel, preTriggerSamples, samplesPerRecord,
		recordsPerBuffer, recordsPerAcquisition int, flags ADMAFlag) error

	// PostAsyncBuffer hands one host buffer to the board for filling.
	PostAsyncBuffer(buf []byte) error

	// StartCapture begins the armed acquisition. All pool buffers must be
	// posted first.
	StartCapture() error

	// WaitAsyncBufferComplete blocks until the given buffer (which must be
	// the oldest posted one) has been filled, or returns ErrTimeout.
	WaitAsyncBufferComplete(buf []byte, timeout time.Duration) error

	// AbortAsyncRead cancels the capture and releases all posted buffers.
	// It is safe to call more than once and after partial setup.
	AbortAsyncRead() error
}
