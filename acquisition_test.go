package squall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qetlab/squall/internal/ats"
)

func TestDeinterleave(t *testing.T) {
	// Interleaved [a0,b0,a1,b1,...]: A takes even elements, B odd ones.
	buf := []byte{
		0x01, 0x00, // a0 = 1
		0x02, 0x00, // b0 = 2
		0x03, 0x00, // a1 = 3
		0x04, 0x00, // b1 = 4
		0xff, 0x0f, // a2 = 0x0fff
		0x00, 0x00, // b2 = 0
	}
	chA, chB := deinterleave(buf, 2)
	assert.Equal(t, []RawType{1, 3, 0x0fff}, chA)
	assert.Equal(t, []RawType{2, 4, 0}, chB)

	// Copies, not aliases: mutating the buffer must not change the output.
	buf[0] = 0x99
	assert.Equal(t, RawType(1), chA[0])

	// One-byte storage: the same even/odd rule on bytes.
	narrowA, narrowB := deinterleave([]byte{10, 20, 30, 40}, 1)
	assert.Equal(t, []RawType{10, 30}, narrowA)
	assert.Equal(t, []RawType{20, 40}, narrowB)
}

// runAcquisition builds and runs a producer synchronously. The unbounded
// queues mean the producer never needs a live consumer.
func runAcquisition(t *testing.T, board *ats.SimBoard, cfg AcquisitionConfig, control *ControlState) (*Acquisition, error) {
	t.Helper()
	acq, err := NewAcquisition(board, cfg, control)
	require.NoError(t, err)
	acq.settle = 0 // no board to warm up
	return acq, acq.Run()
}

func drainBlocks(t *testing.T, acq *Acquisition) (a, b [][]RawType) {
	t.Helper()
	for block := range acq.QueueA().Out() {
		a = append(a, block)
	}
	for block := range acq.QueueB().Out() {
		b = append(b, block)
	}
	return a, b
}

func TestAcquisitionCompletes(t *testing.T) {
	board := ats.NewSimBoard()
	cfg := smallConfig(t)
	control := NewControlState()

	acq, err := runAcquisition(t, board, cfg, control)
	require.NoError(t, err)

	assert.Equal(t, AcqClosed, acq.State())
	assert.True(t, control.SafeAcquisition())
	assert.EqualValues(t, 10, control.MeasuredBuffers())
	assert.InDelta(t, 100.0, acq.Progress(), 1e-12)
	assert.GreaterOrEqual(t, board.Aborts(), 1)

	blocksA, blocksB := drainBlocks(t, acq)
	require.Len(t, blocksA, 10)
	require.Len(t, blocksB, 10)

	// Each block holds one buffer's worth of one channel, in order. The
	// simulator fills elements with a running 12-bit counter, so block k
	// of channel A starts at 2*elementsPerBuffer*k... modulo the mask.
	elementsPerBuffer := 2 * cfg.SamplesPerRecord() * cfg.RecordsPerBuffer
	for k, block := range blocksA {
		require.Len(t, block, elementsPerBuffer/2)
		base := k * elementsPerBuffer
		for i := 0; i < 4; i++ {
			assert.Equal(t, RawType((base+2*i)&0xfff), block[i], "buffer %d element %d", k, i)
		}
	}
	for k, block := range blocksB {
		base := k * elementsPerBuffer
		for i := 0; i < 4; i++ {
			assert.Equal(t, RawType((base+2*i+1)&0xfff), block[i], "buffer %d element %d", k, i)
		}
	}

	msg := control.Message()
	assert.Contains(t, msg, "Attempt to capture 10 buffers")
	assert.Contains(t, msg, "Captured 10 buffers")
	assert.Contains(t, msg, "Captured 100 records")
	assert.Contains(t, msg, "Transferred 102400 bytes")
}

func TestStopMidRun(t *testing.T) {
	board := ats.NewSimBoard()
	cfg := smallConfig(t) // 10 buffers planned
	control := NewControlState()

	// Request the stop while buffer 4 is in flight: the loop may finish
	// that buffer but must take no new one, so 3 or 4 complete.
	board.OnWait = func(completed int) {
		if completed == 3 {
			control.RequestStop()
		}
	}

	acq, err := runAcquisition(t, board, cfg, control)
	require.NoError(t, err)

	n := control.MeasuredBuffers()
	assert.GreaterOrEqual(t, n, int64(3))
	assert.LessOrEqual(t, n, int64(4))
	assert.True(t, control.SafeAcquisition())

	// Both queues are closed with exactly the completed buffers inside.
	blocksA, blocksB := drainBlocks(t, acq)
	assert.Len(t, blocksA, int(n))
	assert.Len(t, blocksB, int(n))

	// The report covers the early termination honestly.
	assert.Contains(t, control.Message(), "Attempt to capture 10 buffers")
}

func TestTimeoutAbortsByDefault(t *testing.T) {
	board := ats.NewSimBoard()
	board.TimeoutOnWait = 3 // third buffer never fills
	cfg := smallConfig(t)   // TimeoutRetries = 0: reference behavior
	control := NewControlState()

	acq, err := runAcquisition(t, board, cfg, control)
	require.ErrorIs(t, err, ats.ErrTimeout)

	// The drain still ran: stats published, flag set, queues closed.
	assert.EqualValues(t, 2, control.MeasuredBuffers())
	assert.True(t, control.SafeAcquisition())
	assert.Equal(t, AcqClosed, acq.State())
	blocksA, _ := drainBlocks(t, acq)
	assert.Len(t, blocksA, 2)
	assert.Contains(t, control.Message(), "Captured 2 buffers")
}

func TestTimeoutRetryPolicy(t *testing.T) {
	board := ats.NewSimBoard()
	board.TimeoutOnWait = 3
	cfg := smallConfig(t)
	cfg.TimeoutRetries = 1
	require.NoError(t, cfg.Validate())
	control := NewControlState()

	_, err := runAcquisition(t, board, cfg, control)
	require.NoError(t, err)
	assert.EqualValues(t, 10, control.MeasuredBuffers())
}

func TestNewAcquisitionRejectsUnvalidatedConfig(t *testing.T) {
	cfg := DefaultConfig() // not validated
	_, err := NewAcquisition(ats.NewSimBoard(), cfg, NewControlState())
	assert.Error(t, err)
}

func TestAcquisitionStateString(t *testing.T) {
	assert.Equal(t, "Idle", AcqIdle.String())
	assert.Equal(t, "Closed", AcqClosed.String())
}
