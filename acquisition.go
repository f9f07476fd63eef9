package squall

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/qetlab/squall/internal/ats"
	"github.com/qetlab/squall/internal/blockqueue"
)

// RawType holds raw signal data.
type RawType uint16

// AcquisitionState tracks the producer's progress through one run.
type AcquisitionState int32

// The producer states, in order. Transitions only ever move forward.
const (
	AcqIdle     AcquisitionState = iota // created, board untouched
	AcqArmed                            // buffers allocated and posted
	AcqRunning                          // capture started, loop draining buffers
	AcqDraining                         // loop exited, tearing down
	AcqClosed                           // queues closed, stats published
)

func (s AcquisitionState) String() string {
	switch s {
	case AcqIdle:
		return "Idle"
	case AcqArmed:
		return "Armed"
	case AcqRunning:
		return "Running"
	case AcqDraining:
		return "Draining"
	case AcqClosed:
		return "Closed"
	}
	return fmt.Sprintf("AcquisitionState(%d)", int32(s))
}

// bufferWaitTimeout bounds each wait on a posted buffer. It is the only
// blocking operation in the producer.
const bufferWaitTimeout = 5 * time.Second

// boardSettleDelay gives the board time to initialize between arming and
// capture start.
const boardSettleDelay = 500 * time.Millisecond

// Acquisition is the producer for one NPT streaming run: it programs the
// board, arms the buffer ring, then drains one buffer at a time into the
// two channel queues until the target is reached or a stop is requested.
// Run is the whole producer; everything else is observation.
type Acquisition struct {
	RunID ulid.ULID

	board   ats.Board
	config  AcquisitionConfig
	control *ControlState
	pool    *bufferPool
	queueA  *blockqueue.FIFO[[]RawType]
	queueB  *blockqueue.FIFO[[]RawType]

	state            atomic.Int32
	bytesTransferred int64
	settle           time.Duration
}

// NewAcquisition creates the producer for one run. The config must have
// passed Validate; the board is injected, never global.
func NewAcquisition(board ats.Board, cfg AcquisitionConfig, control *ControlState) (*Acquisition, error) {
	if !cfg.Validated() {
		return nil, fmt.Errorf("NewAcquisition: config has not passed validation")
	}
	return &Acquisition{
		RunID:   ulid.Make(),
		board:   board,
		config:  cfg,
		control: control,
		queueA:  blockqueue.New[[]RawType](),
		queueB:  blockqueue.New[[]RawType](),
		settle:  boardSettleDelay,
	}, nil
}

// Config returns a read-only copy of the run configuration, for consumers.
func (acq *Acquisition) Config() AcquisitionConfig { return acq.config }

// QueueA returns channel A's output queue.
func (acq *Acquisition) QueueA() *blockqueue.FIFO[[]RawType] { return acq.queueA }

// QueueB returns channel B's output queue.
func (acq *Acquisition) QueueB() *blockqueue.FIFO[[]RawType] { return acq.queueB }

// State returns the producer's current state.
func (acq *Acquisition) State() AcquisitionState {
	return AcquisitionState(acq.state.Load())
}

func (acq *Acquisition) setState(s AcquisitionState) { acq.state.Store(int32(s)) }

// Progress returns the percentage of the buffer target completed so far.
func (acq *Acquisition) Progress() float64 {
	return 100 * float64(acq.control.CompletedBuffers()) / float64(acq.config.BuffersPerAcquisition())
}

// Run executes the full producer lifecycle and blocks until the run is
// closed; callers launch it as a goroutine. On every exit path (clean
// completion, requested stop, device timeout, setup failure) the deferred
// drain still aborts outstanding transfers, publishes the transfer report,
// marks the acquisition safe, and closes both queues, so the three-way
// join can always converge and no buffer leaks.
func (acq *Acquisition) Run() (err error) {
	var start = time.Now()
	completed := 0

	defer func() {
		acq.setState(AcqDraining)
		if acq.pool != nil {
			if rerr := acq.pool.release(); rerr != nil && err == nil {
				err = rerr
			}
		} else {
			// Setup failed before the pool existed; make sure nothing
			// stays armed on the device.
			acq.board.AbortAsyncRead()
		}
		acq.control.setMessage(acq.transferReport(start, completed))
		acq.control.setMeasuredBuffers(int64(completed))
		acq.control.setSafeAcquisition()
		acq.queueA.Close()
		acq.queueB.Close()
		acq.setState(AcqClosed)
		if err != nil {
			ProblemLogger.Printf("acquisition %s failed after %d buffers: %v", acq.RunID, completed, err)
		}
	}()

	if err = configureClock(acq.board, &acq.config); err != nil {
		return err
	}
	if err = configureInputs(acq.board); err != nil {
		return err
	}
	if err = configureTrigger(acq.board, &acq.config); err != nil {
		return err
	}

	if acq.pool, err = newBufferPool(acq.board, &acq.config); err != nil {
		return err
	}
	if err = acq.pool.arm(&acq.config); err != nil {
		return err
	}
	acq.setState(AcqArmed)

	time.Sleep(acq.settle)
	if err = acq.board.StartCapture(); err != nil {
		return fmt.Errorf("StartCapture: %v", err)
	}
	acq.setState(AcqRunning)
	start = time.Now()

	target := acq.config.BuffersPerAcquisition()
	for completed < target && acq.control.Measuring() {
		buf := acq.pool.buffer(completed)
		if err = acq.waitFilled(buf); err != nil {
			return err
		}

		chA, chB := deinterleave(buf, acq.pool.bytesPerSample)
		acq.queueA.Push(chA)
		acq.queueB.Push(chB)

		if err = acq.pool.repost(buf); err != nil {
			return err
		}
		completed++
		acq.bytesTransferred += int64(acq.pool.bytesPerBuffer)
		acq.control.bumpCompleted()
	}
	return nil
}

// waitFilled blocks until buf completes, retrying timeouts up to the
// configured bound. With TimeoutRetries == 0 the first timeout aborts the
// acquisition, which is the reference behavior.
func (acq *Acquisition) waitFilled(buf []byte) error {
	retries := acq.config.TimeoutRetries
	for attempt := 0; ; attempt++ {
		err := acq.board.WaitAsyncBufferComplete(buf, bufferWaitTimeout)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ats.ErrTimeout) || attempt >= retries {
			return fmt.Errorf("waiting for buffer completion: %w", err)
		}
		ProblemLogger.Printf("acquisition %s: buffer wait timed out (attempt %d of %d), retrying",
			acq.RunID, attempt+1, retries+1)
	}
}

// transferReport formats the capture statistics. Rates guard against a
// zero elapsed time; a run that never started capture reports zeros.
func (acq *Acquisition) transferReport(start time.Time, completed int) string {
	elapsed := time.Since(start).Seconds()
	target := acq.config.BuffersPerAcquisition()
	samplesPerRecord := acq.config.SamplesPerRecord()
	recordsPerBuffer := acq.config.RecordsPerBuffer

	var buffersPerSec, bytesPerSec, recordsPerSec, samplesPerSec float64
	samplesTransferred := samplesPerRecord * recordsPerBuffer * completed * channelCount
	if elapsed > 0 {
		buffersPerSec = float64(completed) / elapsed
		bytesPerSec = float64(acq.bytesTransferred) / elapsed
		recordsPerSec = float64(recordsPerBuffer*completed) / elapsed
		samplesPerSec = float64(samplesTransferred) / elapsed
	}

	msg := fmt.Sprintf("Attempt to capture %d buffers\n", target)
	msg += fmt.Sprintf("Capture completed in %f sec\n", elapsed)
	msg += fmt.Sprintf("Captured %d buffers (%f buffers per sec)\n", completed, buffersPerSec)
	msg += fmt.Sprintf("Captured %d records (%f records per sec)\n", recordsPerBuffer*completed, recordsPerSec)
	msg += fmt.Sprintf("Transferred %d bytes (%f Mbytes per sec)\n", acq.bytesTransferred, bytesPerSec/(1024*1024))
	msg += fmt.Sprintf("Transferred %d samples (%f MS per sec)\n", samplesTransferred, samplesPerSec/1e6)
	return msg
}
