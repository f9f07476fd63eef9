package squall

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qetlab/squall/internal/ats"
)

func TestConfigureClockExternal(t *testing.T) {
	board := ats.NewSimBoard()
	cfg := validConfig() // external, 1800 MS/s, rising
	require.NoError(t, cfg.Validate())
	require.NoError(t, configureClock(board, &cfg))

	// External clocking passes the raw rate in Hz and decimation 1.
	want := fmt.Sprintf("SetCaptureClock(%d,%d,%d,%d)",
		ats.ExternalClock10MHzRef, uint32(1800e6), ats.ClockEdgeRising, 1)
	require.Len(t, board.Calls, 1)
	assert.Equal(t, want, board.Calls[0])
}

func TestConfigureClockInternal(t *testing.T) {
	board := ats.NewSimBoard()
	cfg := validConfig()
	cfg.ClockSource = "internal"
	cfg.ClockEdge = "falling"
	cfg.SampleRate = 1000
	require.NoError(t, cfg.Validate())
	require.NoError(t, configureClock(board, &cfg))

	// Internal clocking passes the table code and decimation 0.
	want := fmt.Sprintf("SetCaptureClock(%d,%d,%d,%d)",
		ats.InternalClock, ats.SampleRate1000MSPS, ats.ClockEdgeFalling, 0)
	require.Len(t, board.Calls, 1)
	assert.Equal(t, want, board.Calls[0])
}

func TestConfigureClockRejectsUnvalidated(t *testing.T) {
	board := ats.NewSimBoard()
	cfg := validConfig() // never validated
	assert.Error(t, configureClock(board, &cfg))
	assert.Empty(t, board.Calls)
}

func TestConfigureInputsFixedFrontEnd(t *testing.T) {
	board := ats.NewSimBoard()
	require.NoError(t, configureInputs(board))
	require.Len(t, board.Calls, 2)
	for i, ch := range []ats.Channel{ats.ChannelA, ats.ChannelB} {
		want := fmt.Sprintf("SetInputControl(%d,%d,%d,%d)",
			ch, ats.DCCoupling, ats.InputRangePM400MV, ats.Impedance50Ohm)
		assert.Equal(t, want, board.Calls[i])
	}
}

func TestConfigureTriggerCallSequence(t *testing.T) {
	board := ats.NewSimBoard()
	cfg := validConfig()
	cfg.TriggerRange = 2.5
	cfg.TriggerLevel = 0.625 // code 128 + 127*0.25 = 159.75 -> 160
	cfg.TriggerDelay = 100   // ns at 1800 MS/s -> 180 samples
	require.NoError(t, cfg.Validate())
	require.NoError(t, configureTrigger(board, &cfg))

	require.Len(t, board.Calls, 5)

	// Engine J carries the configured trigger; K is disabled and inert.
	wantOp := fmt.Sprintf("SetTriggerOperation(%d,%d,%d,%d,%d,%d,%d,%d,%d)",
		ats.TrigEngineOpJ, ats.TrigEngineJ, ats.TrigExternal, ats.TriggerSlopePositive, 160,
		ats.TrigEngineK, ats.TrigDisable, ats.TriggerSlopePositive, 128)
	assert.Equal(t, wantOp, board.Calls[0])

	// The external trigger input follows, never precedes.
	wantExt := fmt.Sprintf("SetExternalTrigger(%d,%d)", ats.DCCoupling, ats.ETR2V5)
	assert.Equal(t, wantExt, board.Calls[1])

	assert.Equal(t, "SetTriggerDelay(180)", board.Calls[2])
	assert.Equal(t, "SetTriggerTimeout(0)", board.Calls[3])
	assert.True(t, strings.HasPrefix(board.Calls[4], "ConfigureAuxIO("))
}
