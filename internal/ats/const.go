package ats

// Device-native constant codes for the ATS9360 digitizer, as defined by the
// AlazarTech SDK. The board speaks only these encodings; translation from
// user-level values happens in the squall package, never here.

// ClockSource selects the origin of the sample clock.
type ClockSource uint32

// Clock sources understood by the board.
const (
	InternalClock         ClockSource = 0x1
	ExternalClock10MHzRef ClockSource = 0x7
)

// ClockEdge selects which edge of the sample clock latches data.
type ClockEdge uint32

// Clock edges.
const (
	ClockEdgeRising  ClockEdge = 0x0
	ClockEdgeFalling ClockEdge = 0x1
)

// SampleRateCode is the device encoding of an internal-clock sample rate.
type SampleRateCode uint32

// Internal-clock sample rate codes.
const (
	SampleRate1KSPS    SampleRateCode = 0x01
	SampleRate2KSPS    SampleRateCode = 0x02
	SampleRate5KSPS    SampleRateCode = 0x04
	SampleRate10KSPS   SampleRateCode = 0x08
	SampleRate20KSPS   SampleRateCode = 0x0A
	SampleRate50KSPS   SampleRateCode = 0x0C
	SampleRate100KSPS  SampleRateCode = 0x0E
	SampleRate200KSPS  SampleRateCode = 0x10
	SampleRate500KSPS  SampleRateCode = 0x12
	SampleRate1MSPS    SampleRateCode = 0x14
	SampleRate2MSPS    SampleRateCode = 0x18
	SampleRate5MSPS    SampleRateCode = 0x1A
	SampleRate10MSPS   SampleRateCode = 0x1C
	SampleRate20MSPS   SampleRateCode = 0x1E
	SampleRate50MSPS   SampleRateCode = 0x22
	SampleRate100MSPS  SampleRateCode = 0x24
	SampleRate200MSPS  SampleRateCode = 0x28
	SampleRate500MSPS  SampleRateCode = 0x30
	SampleRate800MSPS  SampleRateCode = 0x32
	SampleRate1000MSPS SampleRateCode = 0x35
	SampleRate1200MSPS SampleRateCode = 0x37
	SampleRate1500MSPS SampleRateCode = 0x3A
	SampleRate1800MSPS SampleRateCode = 0x3D
)

// Channel identifies one input channel, or a mask of several.
type Channel uint32

// Input channels. A|B is the only mask this system arms.
const (
	ChannelA Channel = 0x1
	ChannelB Channel = 0x2
)

// Coupling is an input- or trigger-coupling code.
type Coupling uint32

// Couplings.
const (
	ACCoupling Coupling = 0x1
	DCCoupling Coupling = 0x2
)

// InputRange is a device input-range code.
type InputRange uint32

// InputRangePM400MV is the only input range the ATS9360 front end offers.
const InputRangePM400MV InputRange = 0x7

// Impedance is an input-impedance code.
type Impedance uint32

// Impedance50Ohm is fixed on this board.
const Impedance50Ohm Impedance = 0x2

// TriggerEngine identifies one of the two on-board trigger engines.
type TriggerEngine uint32

// The two trigger engines and the combining operation used here. Only
// engine J is wired; the operation never consults K.
const (
	TrigEngineOpJ TriggerEngine = 0x0
	TrigEngineJ   TriggerEngine = 0x0
	TrigEngineK   TriggerEngine = 0x1
)

// TriggerSource selects what feeds a trigger engine.
type TriggerSource uint32

// Trigger sources.
const (
	TrigExternal TriggerSource = 0x2
	TrigDisable  TriggerSource = 0x3
)

// TriggerSlopeCode is the device encoding of a trigger slope.
type TriggerSlopeCode uint32

// Trigger slopes.
const (
	TriggerSlopePositive TriggerSlopeCode = 0x1
	TriggerSlopeNegative TriggerSlopeCode = 0x2
)

// ExternalTriggerRange is the device encoding of the external trigger
// input range.
type ExternalTriggerRange uint32

// External trigger ranges.
const (
	ETR5V  ExternalTriggerRange = 0x0
	ETR1V  ExternalTriggerRange = 0x1
	ETRTTL ExternalTriggerRange = 0x2
	ETR2V5 ExternalTriggerRange = 0x3
)

// ADMAFlag is a bitmask controlling the asynchronous DMA engine.
type ADMAFlag uint32

// ADMA mode flags. This system always arms with
// ExternalStartCapture|NPT|FifoOnlyStreaming.
const (
	ADMAExternalStartCapture ADMAFlag = 0x1
	ADMANPT                  ADMAFlag = 0x200
	ADMAFifoOnlyStreaming    ADMAFlag = 0x800
)

// AuxIOMode is the mode code for the AUX I/O connector.
type AuxIOMode uint32

// AuxOutTrigger emits the trigger event on the AUX connector. It is the
// only mode this system programs.
const AuxOutTrigger AuxIOMode = 0x0
