package ats

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// SimBoard is a drop-in replacement for a real ATS9360 that needs no
// hardware. It honors the posting/ownership contract of Board strictly:
// waits complete in posting order, a buffer must be the oldest posted one
// to complete, and capture cannot start before arming. Filled buffers carry
// a deterministic interleaved counter pattern so tests can check
// deinterleaving and ordering exactly.
type SimBoard struct {
	mu sync.Mutex

	bitsPerSample int
	memorySamples int64

	armed            bool
	started          bool
	trigOpSeen       bool
	samplesPerRecord int
	recordsPerBuffer int
	recordsTarget    int
	channelMask      Channel
	flags            ADMAFlag

	posted    [][]byte
	fillCount uint16
	nwaits    int
	naborts   int

	// Calls logs every programming call in order, for configuration tests.
	Calls []string

	// TimeoutOnWait makes wait number n (1-based) return ErrTimeout while
	// leaving the buffer posted, so a retry can succeed. Zero disables.
	TimeoutOnWait int

	// TimeoutAlways makes every wait return ErrTimeout once set.
	TimeoutAlways bool

	// OnWait, if non-nil, runs at the start of every wait with the number
	// of waits already completed. Tests use it to request stops at exact
	// loop positions.
	OnWait func(completed int)
}

// NewSimBoard returns a simulated 12-bit two-channel board.
func NewSimBoard() *SimBoard {
	return &SimBoard{bitsPerSample: 12, memorySamples: 1 << 32}
}

func (s *SimBoard) logCall(format string, args ...interface{}) {
	s.Calls = append(s.Calls, fmt.Sprintf(format, args...))
}

// SetCaptureClock records the clock programming call.
func (s *SimBoard) SetCaptureClock(source ClockSource, rateCodeOrHz uint32, edge ClockEdge, decimation uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logCall("SetCaptureClock(%d,%d,%d,%d)", source, rateCodeOrHz, edge, decimation)
	return nil
}

// SetInputControl records the input programming call.
func (s *SimBoard) SetInputControl(ch Channel, coupling Coupling, rng InputRange, impedance Impedance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logCall("SetInputControl(%d,%d,%d,%d)", ch, coupling, rng, impedance)
	return nil
}

// SetTriggerOperation records the trigger-engine programming call.
func (s *SimBoard) SetTriggerOperation(op TriggerEngine,
	engine1 TriggerEngine, source1 TriggerSource, slope1 TriggerSlopeCode, level1 int,
	engine2 TriggerEngine, source2 TriggerSource, slope2 TriggerSlopeCode, level2 int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logCall("SetTriggerOperation(%d,%d,%d,%d,%d,%d,%d,%d,%d)",
		op, engine1, source1, slope1, level1, engine2, source2, slope2, level2)
	s.trigOpSeen = true
	return nil
}

// SetExternalTrigger errors if SetTriggerOperation has not run first. The
// real board silently misbehaves under the reversed order; the simulator
// makes the mistake loud.
func (s *SimBoard) SetExternalTrigger(coupling Coupling, rng ExternalTriggerRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.trigOpSeen {
		return fmt.Errorf("SimBoard.SetExternalTrigger: called before SetTriggerOperation")
	}
	s.logCall("SetExternalTrigger(%d,%d)", coupling, rng)
	return nil
}

// SetTriggerDelay records the delay programming call.
func (s *SimBoard) SetTriggerDelay(samples uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logCall("SetTriggerDelay(%d)", samples)
	return nil
}

// SetTriggerTimeout records the timeout programming call.
func (s *SimBoard) SetTriggerTimeout(ticks uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logCall("SetTriggerTimeout(%d)", ticks)
	return nil
}

// ConfigureAuxIO records the AUX programming call.
func (s *SimBoard) ConfigureAuxIO(mode AuxIOMode, parameter uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logCall("ConfigureAuxIO(%d,%d)", mode, parameter)
	return nil
}

// GetChannelInfo reports the simulated geometry.
func (s *SimBoard) GetChannelInfo() (int64, int, error) {
	return s.memorySamples, s.bitsPerSample, nil
}

// SetRecordSize records the record geometry.
func (s *SimBoard) SetRecordSize(preTriggerSamples, postTriggerSamples int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if preTriggerSamples != 0 {
		return fmt.Errorf("SimBoard.SetRecordSize: NPT mode allows no pre-trigger samples, got %d", preTriggerSamples)
	}
	s.logCall("SetRecordSize(%d,%d)", preTriggerSamples, postTriggerSamples)
	s.samplesPerRecord = postTriggerSamples
	return nil
}

// BeforeAsyncRead arms the simulated DMA engine.
func (s *SimBoard) BeforeAsyncRead(channelMask Channel, preTriggerSamples, samplesPerRecord,
	recordsPerBuffer, recordsPerAcquisition int, flags ADMAFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("SimBoard.BeforeAsyncRead: capture already started")
	}
	s.logCall("BeforeAsyncRead(%d,%d,%d,%d,%d,%#x)",
		channelMask, preTriggerSamples, samplesPerRecord, recordsPerBuffer, recordsPerAcquisition, uint32(flags))
	s.armed = true
	s.channelMask = channelMask
	s.samplesPerRecord = samplesPerRecord
	s.recordsPerBuffer = recordsPerBuffer
	s.recordsTarget = recordsPerAcquisition
	s.flags = flags
	return nil
}

// PostAsyncBuffer appends one buffer to the fill queue.
func (s *SimBoard) PostAsyncBuffer(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return fmt.Errorf("SimBoard.PostAsyncBuffer: board is not armed")
	}
	if len(buf) == 0 || len(buf)%2 != 0 {
		return fmt.Errorf("SimBoard.PostAsyncBuffer: bad buffer length %d", len(buf))
	}
	s.posted = append(s.posted, buf)
	return nil
}

// StartCapture begins delivering data. At least one buffer must be posted.
func (s *SimBoard) StartCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return fmt.Errorf("SimBoard.StartCapture: board is not armed")
	}
	if len(s.posted) == 0 {
		return fmt.Errorf("SimBoard.StartCapture: no buffers posted")
	}
	s.started = true
	return nil
}

// WaitAsyncBufferComplete fills the oldest posted buffer, which must be the
// one the caller asked about, with the deterministic counter pattern.
func (s *SimBoard) WaitAsyncBufferComplete(buf []byte, timeout time.Duration) error {
	s.mu.Lock()
	hook := s.OnWait
	done := s.nwaits
	s.mu.Unlock()
	if hook != nil {
		hook(done)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return fmt.Errorf("SimBoard.WaitAsyncBufferComplete: capture not started")
	}
	if len(s.posted) == 0 {
		return fmt.Errorf("SimBoard.WaitAsyncBufferComplete: no buffers posted")
	}
	if s.TimeoutAlways || (s.TimeoutOnWait > 0 && s.nwaits+1 == s.TimeoutOnWait) {
		s.nwaits++
		return ErrTimeout
	}
	head := s.posted[0]
	if &head[0] != &buf[0] {
		return fmt.Errorf("SimBoard.WaitAsyncBufferComplete: buffer is not the oldest posted one")
	}
	for i := 0; i+1 < len(head); i += 2 {
		binary.LittleEndian.PutUint16(head[i:], s.fillCount&0xfff)
		s.fillCount++
	}
	s.posted = s.posted[1:]
	s.nwaits++
	return nil
}

// AbortAsyncRead drops all posted buffers and disarms. Idempotent.
func (s *SimBoard) AbortAsyncRead() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posted = nil
	s.armed = false
	s.started = false
	s.naborts++
	return nil
}

// Aborts reports how many times AbortAsyncRead has run.
func (s *SimBoard) Aborts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.naborts
}

// PostedCount reports how many buffers the board currently holds.
func (s *SimBoard) PostedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posted)
}
