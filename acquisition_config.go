package squall

import (
	"fmt"
	"math"

	"github.com/qetlab/squall/internal/ats"
)

// sampleGranularity is the sample-count granularity of the board: the
// per-record sample count is always rounded to a multiple of this.
const sampleGranularity = 128

// allowSampleRates maps internal-clock sample rates in MS/s to their device
// codes. Any rate not in this table is illegal under internal clocking.
var allowSampleRates = map[float64]ats.SampleRateCode{
	1e-3:   ats.SampleRate1KSPS,
	2e-3:   ats.SampleRate2KSPS,
	5e-3:   ats.SampleRate5KSPS,
	10e-3:  ats.SampleRate10KSPS,
	20e-3:  ats.SampleRate20KSPS,
	50e-3:  ats.SampleRate50KSPS,
	100e-3: ats.SampleRate100KSPS,
	200e-3: ats.SampleRate200KSPS,
	500e-3: ats.SampleRate500KSPS,
	1:      ats.SampleRate1MSPS,
	2:      ats.SampleRate2MSPS,
	5:      ats.SampleRate5MSPS,
	10:     ats.SampleRate10MSPS,
	20:     ats.SampleRate20MSPS,
	50:     ats.SampleRate50MSPS,
	100:    ats.SampleRate100MSPS,
	200:    ats.SampleRate200MSPS,
	500:    ats.SampleRate500MSPS,
	800:    ats.SampleRate800MSPS,
	1000:   ats.SampleRate1000MSPS,
	1200:   ats.SampleRate1200MSPS,
	1500:   ats.SampleRate1500MSPS,
	1800:   ats.SampleRate1800MSPS,
}

// allowTriggerRanges maps the legal external trigger ranges in volts to
// their device codes. TTL mode is deliberately not offered.
var allowTriggerRanges = map[float64]ats.ExternalTriggerRange{
	5:   ats.ETR5V,
	2.5: ats.ETR2V5,
	1:   ats.ETR1V,
}

// AcquisitionConfig holds the user-level acquisition parameters plus the
// device codes derived from them. Callers fill the exported fields and call
// Validate; after a nil-error Validate the record is immutable and the
// derived values are trustworthy. No device call is ever made from an
// unvalidated config.
type AcquisitionConfig struct {
	ClockSource string  // "internal" or "external"
	ClockEdge   string  // "rising" or "falling"
	SampleRate  float64 // MS/s; table rate if internal, 300..1800 if external

	TriggerSlope string  // "positive" or "negative"
	TriggerRange float64 // V; one of 5, 2.5, 1
	TriggerLevel float64 // V; strictly inside ±TriggerRange
	TriggerDelay float64 // ns; non-negative

	// AcquisitionTime is the requested record length in ns. Validate
	// rounds the implied sample count to the board granularity and then
	// recomputes this field from the rounded count, so the value after
	// Validate generally differs from the request. Lossy on purpose.
	AcquisitionTime float64

	Averaging        int // records per acquisition; must be a multiple of 100
	RecordsPerBuffer int
	BufferPoolSize   int // physical DMA buffers kept in rotation

	// TimeoutRetries selects the buffer-wait timeout policy: 0 aborts the
	// acquisition on the first timeout (the reference behavior); N>0
	// retries the wait on the same buffer up to N times before aborting.
	TimeoutRetries int

	// Derived by Validate.
	acquiredSamples int
	buffersPerAcq   int
	clockSource     ats.ClockSource
	clockRateArg    uint32 // rate code (internal) or Hz (external)
	clockEdge       ats.ClockEdge
	decimation      uint32
	slopeCode       ats.TriggerSlopeCode
	rangeCode       ats.ExternalTriggerRange
	levelCode       int
	delayCode       uint32
	validated       bool
}

// DefaultConfig returns the parameter set the instrument powers up with:
// 1800 MS/s on an external 10 MHz reference, a 0.5 V positive trigger in
// the 5 V range, 100-record buffers, a 4-buffer pool, and 200 buffers per
// acquisition.
func DefaultConfig() AcquisitionConfig {
	return AcquisitionConfig{
		ClockSource:      "external",
		ClockEdge:        "rising",
		SampleRate:       1800,
		TriggerSlope:     "positive",
		TriggerRange:     5,
		TriggerLevel:     0.5,
		TriggerDelay:     0,
		AcquisitionTime:  float64(128*80) / 1.8, // 10240 samples at 1800 MS/s
		Averaging:        20000,
		RecordsPerBuffer: 100,
		BufferPoolSize:   4,
	}
}

// SampleRateHz returns the sample rate in samples per second.
func (c *AcquisitionConfig) SampleRateHz() float64 { return c.SampleRate * 1e6 }

// SamplesPerRecord returns the rounded per-record sample count. NPT mode
// means no pre-trigger samples, so this equals the post-trigger count.
func (c *AcquisitionConfig) SamplesPerRecord() int { return c.acquiredSamples }

// BuffersPerAcquisition returns the total buffer target derived from
// Averaging and RecordsPerBuffer.
func (c *AcquisitionConfig) BuffersPerAcquisition() int { return c.buffersPerAcq }

// TriggerLevelCode returns the device integer encoding of TriggerLevel.
func (c *AcquisitionConfig) TriggerLevelCode() int { return c.levelCode }

// TriggerDelayCode returns the trigger delay as a device sample count.
func (c *AcquisitionConfig) TriggerDelayCode() uint32 { return c.delayCode }

// Validated reports whether Validate has succeeded on this record.
func (c *AcquisitionConfig) Validated() bool { return c.validated }

// Validate checks every user field against the board's constraints and
// fills in the derived device codes. It reports the first violation with
// the offending field and the allowed values, so a caller can correct and
// retry. All checks run before any device call anywhere in the system.
func (c *AcquisitionConfig) Validate() error {
	c.validated = false

	switch c.ClockSource {
	case "internal":
		code, ok := allowSampleRates[c.SampleRate]
		if !ok {
			return fmt.Errorf("SampleRate=%v MS/s is not in the internal-clock rate table", c.SampleRate)
		}
		c.clockSource = ats.InternalClock
		c.clockRateArg = uint32(code)
		c.decimation = 0
	case "external":
		if c.SampleRate < 300 || c.SampleRate > 1800 {
			return fmt.Errorf("SampleRate=%v MS/s: external clocking requires 300 <= rate <= 1800", c.SampleRate)
		}
		c.clockSource = ats.ExternalClock10MHzRef
		c.clockRateArg = uint32(c.SampleRate * 1e6)
		c.decimation = 1 // the only legal decimation under external clocking
	default:
		return fmt.Errorf("ClockSource=%q: must be \"internal\" or \"external\"", c.ClockSource)
	}

	switch c.ClockEdge {
	case "rising":
		c.clockEdge = ats.ClockEdgeRising
	case "falling":
		c.clockEdge = ats.ClockEdgeFalling
	default:
		return fmt.Errorf("ClockEdge=%q: must be \"rising\" or \"falling\"", c.ClockEdge)
	}

	switch c.TriggerSlope {
	case "positive":
		c.slopeCode = ats.TriggerSlopePositive
	case "negative":
		c.slopeCode = ats.TriggerSlopeNegative
	default:
		return fmt.Errorf("TriggerSlope=%q: must be \"positive\" or \"negative\"", c.TriggerSlope)
	}

	rangeCode, ok := allowTriggerRanges[c.TriggerRange]
	if !ok {
		return fmt.Errorf("TriggerRange=%v V: must be one of 5, 2.5, 1", c.TriggerRange)
	}
	c.rangeCode = rangeCode

	if c.TriggerLevel <= -c.TriggerRange || c.TriggerLevel >= c.TriggerRange {
		return fmt.Errorf("TriggerLevel=%v V must lie strictly inside ±%v V (the trigger range)",
			c.TriggerLevel, c.TriggerRange)
	}
	c.levelCode = int(math.Round(128 + 127*c.TriggerLevel/c.TriggerRange))

	if c.TriggerDelay < 0 {
		return fmt.Errorf("TriggerDelay=%v ns must be non-negative", c.TriggerDelay)
	}
	c.delayCode = uint32(c.TriggerDelay*1e-9*c.SampleRateHz() + 0.5)

	if c.RecordsPerBuffer <= 0 {
		return fmt.Errorf("RecordsPerBuffer=%d must be positive", c.RecordsPerBuffer)
	}
	if c.BufferPoolSize <= 0 {
		return fmt.Errorf("BufferPoolSize=%d must be positive", c.BufferPoolSize)
	}
	if c.TimeoutRetries < 0 {
		return fmt.Errorf("TimeoutRetries=%d must be non-negative", c.TimeoutRetries)
	}

	if c.Averaging <= 0 || c.Averaging%100 != 0 {
		return fmt.Errorf("Averaging=%d must be a positive multiple of 100", c.Averaging)
	}
	if c.Averaging%c.RecordsPerBuffer != 0 {
		return fmt.Errorf("Averaging=%d must be divisible by RecordsPerBuffer=%d",
			c.Averaging, c.RecordsPerBuffer)
	}
	c.buffersPerAcq = c.Averaging / c.RecordsPerBuffer

	samples := math.Round(c.SampleRate * c.AcquisitionTime * 1e-3)
	if samples < 2*sampleGranularity {
		return fmt.Errorf("AcquisitionTime=%v ns must be longer than %.2f ns at %v MS/s",
			c.AcquisitionTime, 2*sampleGranularity/c.SampleRate*1e3, c.SampleRate)
	}
	samples = math.Round(samples/sampleGranularity) * sampleGranularity
	c.acquiredSamples = int(samples)
	c.AcquisitionTime = float64(c.acquiredSamples) / c.SampleRate * 1e3

	c.validated = true
	return nil
}
