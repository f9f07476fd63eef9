package squall

import (
	"fmt"

	"github.com/qetlab/squall/internal/ats"
)

// This file programs the board from a validated AcquisitionConfig: clock,
// input control, and trigger. Each function is one logical device
// transaction; none of them may run before Validate has succeeded.

// configureClock programs clock source, rate, edge and decimation in one
// atomic device call. The rate argument is the table code under internal
// clocking and the raw rate in Hz under external clocking.
func configureClock(board ats.Board, cfg *AcquisitionConfig) error {
	if !cfg.Validated() {
		return fmt.Errorf("configureClock: config has not passed validation")
	}
	if err := board.SetCaptureClock(cfg.clockSource, cfg.clockRateArg, cfg.clockEdge, cfg.decimation); err != nil {
		return fmt.Errorf("SetCaptureClock: %v", err)
	}
	return nil
}

// configureInputs programs both input channels. The front end is fixed:
// DC coupling, ±400 mV, 50 Ω. None of it is user-tunable on this board.
func configureInputs(board ats.Board) error {
	for _, ch := range []ats.Channel{ats.ChannelA, ats.ChannelB} {
		if err := board.SetInputControl(ch, ats.DCCoupling, ats.InputRangePM400MV, ats.Impedance50Ohm); err != nil {
			return fmt.Errorf("SetInputControl(channel %d): %v", ch, err)
		}
	}
	return nil
}

// configureTrigger programs the trigger system. The board has two trigger
// engines; an external trigger needs only one, so engine J carries the
// configured slope and level while engine K is programmed disabled and
// inert. SetExternalTrigger must follow SetTriggerOperation; reversing the
// order is a hard contract violation on the hardware.
func configureTrigger(board ats.Board, cfg *AcquisitionConfig) error {
	if !cfg.Validated() {
		return fmt.Errorf("configureTrigger: config has not passed validation")
	}

	err := board.SetTriggerOperation(ats.TrigEngineOpJ,
		ats.TrigEngineJ, ats.TrigExternal, cfg.slopeCode, cfg.levelCode,
		ats.TrigEngineK, ats.TrigDisable, ats.TriggerSlopePositive, 128)
	if err != nil {
		return fmt.Errorf("SetTriggerOperation: %v", err)
	}

	// Trigger coupling is DC with no alternative offered.
	if err := board.SetExternalTrigger(ats.DCCoupling, cfg.rangeCode); err != nil {
		return fmt.Errorf("SetExternalTrigger: %v", err)
	}

	if err := board.SetTriggerDelay(cfg.delayCode); err != nil {
		return fmt.Errorf("SetTriggerDelay: %v", err)
	}

	// Timeout 0 disables the synthetic software trigger: without a
	// hardware trigger the capture blocks indefinitely, which is wanted.
	if err := board.SetTriggerTimeout(0); err != nil {
		return fmt.Errorf("SetTriggerTimeout: %v", err)
	}

	// The AUX connector always re-emits the trigger; not user-tunable.
	if err := board.ConfigureAuxIO(ats.AuxOutTrigger, 0); err != nil {
		return fmt.Errorf("ConfigureAuxIO: %v", err)
	}
	return nil
}
