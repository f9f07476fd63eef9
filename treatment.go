package squall

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/floats"

	"github.com/qetlab/squall/internal/blockqueue"
)

// AveragedTreatment is the per-channel downstream consumer the squall
// server attaches to each channel queue: it folds every record of every
// buffer into a running sum and exposes the mean record of the whole run.
// Averaging is what the acquisition exists for: the trigger fires
// Averaging times and the treated result is one record.
//
// The consumer contract: read blocks until the queue closes, never after,
// then mark the safe_treatment slot exactly once.
type AveragedTreatment struct {
	channum int
	config  AcquisitionConfig
	control *ControlState

	// OutputPath, if set, receives the final mean record as an NPY file.
	OutputPath string

	sum      []float64
	scratch  []float64
	nrecords int
}

// NewAveragedTreatment creates the consumer for one channel. The config is
// a read-only view shared with the producer.
func NewAveragedTreatment(channum int, cfg AcquisitionConfig, control *ControlState) *AveragedTreatment {
	n := cfg.SamplesPerRecord()
	return &AveragedTreatment{
		channum: channum,
		config:  cfg,
		control: control,
		sum:     make([]float64, n),
		scratch: make([]float64, n),
	}
}

// Run consumes the queue to exhaustion. It always marks its safe_treatment
// slot on the way out, even when the NPY dump fails, so the lifecycle join
// cannot hang on a disk problem.
func (t *AveragedTreatment) Run(queue *blockqueue.FIFO[[]RawType]) error {
	for block := range queue.Out() {
		t.accumulate(block)
	}
	// Queue observed closed: no further reads permitted.

	var err error
	if t.OutputPath != "" {
		if err = t.writeNPY(); err != nil {
			ProblemLogger.Printf("treatment channel %d: writing %s: %v", t.channum, t.OutputPath, err)
		}
	}
	t.control.SetTreatmentDone(t.channum)
	return err
}

// accumulate folds each record of one deinterleaved buffer into the sum.
func (t *AveragedTreatment) accumulate(block []RawType) {
	spr := t.config.SamplesPerRecord()
	for r := 0; r+spr <= len(block); r += spr {
		for i := 0; i < spr; i++ {
			t.scratch[i] = float64(block[r+i])
		}
		floats.Add(t.sum, t.scratch)
		t.nrecords++
	}
}

// Records reports how many records have been folded in so far.
func (t *AveragedTreatment) Records() int { return t.nrecords }

// Mean returns the averaged record. Nil until at least one record arrived.
func (t *AveragedTreatment) Mean() []float64 {
	if t.nrecords == 0 {
		return nil
	}
	mean := make([]float64, len(t.sum))
	copy(mean, t.sum)
	floats.Scale(1/float64(t.nrecords), mean)
	return mean
}

func (t *AveragedTreatment) writeNPY() error {
	mean := t.Mean()
	if mean == nil {
		return fmt.Errorf("no records were averaged")
	}
	f, err := os.Create(t.OutputPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return npyio.Write(f, mean)
}
