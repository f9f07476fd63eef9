package ats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func armSim(t *testing.T, s *SimBoard) {
	t.Helper()
	require.NoError(t, s.SetRecordSize(0, 128))
	require.NoError(t, s.BeforeAsyncRead(ChannelA|ChannelB, 0, 128, 2, 8,
		ADMAExternalStartCapture|ADMANPT|ADMAFifoOnlyStreaming))
}

func TestSimBoardOrderingContracts(t *testing.T) {
	s := NewSimBoard()

	// External trigger programming must follow trigger-operation programming.
	err := s.SetExternalTrigger(DCCoupling, ETR5V)
	assert.Error(t, err)
	require.NoError(t, s.SetTriggerOperation(TrigEngineOpJ,
		TrigEngineJ, TrigExternal, TriggerSlopePositive, 128,
		TrigEngineK, TrigDisable, TriggerSlopePositive, 128))
	assert.NoError(t, s.SetExternalTrigger(DCCoupling, ETR5V))

	// Posting before arming is an error, as is capture with nothing posted.
	buf := make([]byte, 1024)
	assert.Error(t, s.PostAsyncBuffer(buf))
	armSim(t, s)
	assert.Error(t, s.StartCapture())
	require.NoError(t, s.PostAsyncBuffer(buf))
	require.NoError(t, s.StartCapture())

	// Waiting on a buffer that is not the oldest posted one must fail.
	other := make([]byte, 1024)
	require.NoError(t, s.PostAsyncBuffer(other))
	assert.Error(t, s.WaitAsyncBufferComplete(other, time.Second))
	assert.NoError(t, s.WaitAsyncBufferComplete(buf, time.Second))
}

func TestSimBoardFillPattern(t *testing.T) {
	s := NewSimBoard()
	armSim(t, s)
	buf := make([]byte, 16)
	require.NoError(t, s.PostAsyncBuffer(buf))
	require.NoError(t, s.StartCapture())
	require.NoError(t, s.WaitAsyncBufferComplete(buf, time.Second))

	// Little-endian counter, masked to 12 bits.
	for i := 0; i < 8; i++ {
		got := uint16(buf[2*i]) | uint16(buf[2*i+1])<<8
		assert.Equal(t, uint16(i), got)
	}

	// A second buffer continues the counter rather than restarting it.
	require.NoError(t, s.PostAsyncBuffer(buf))
	require.NoError(t, s.WaitAsyncBufferComplete(buf, time.Second))
	got := uint16(buf[0]) | uint16(buf[1])<<8
	assert.Equal(t, uint16(8), got)
}

func TestSimBoardTimeoutInjection(t *testing.T) {
	s := NewSimBoard()
	armSim(t, s)
	buf := make([]byte, 16)
	require.NoError(t, s.PostAsyncBuffer(buf))
	require.NoError(t, s.StartCapture())

	s.TimeoutOnWait = 1
	err := s.WaitAsyncBufferComplete(buf, time.Second)
	require.ErrorIs(t, err, ErrTimeout)
	// The buffer stays posted, so a retry succeeds.
	assert.NoError(t, s.WaitAsyncBufferComplete(buf, time.Second))
}

func TestSimBoardAbortIdempotent(t *testing.T) {
	s := NewSimBoard()
	armSim(t, s)
	require.NoError(t, s.PostAsyncBuffer(make([]byte, 16)))
	require.NoError(t, s.AbortAsyncRead())
	require.NoError(t, s.AbortAsyncRead())
	assert.Equal(t, 2, s.Aborts())
	assert.Equal(t, 0, s.PostedCount())
}
