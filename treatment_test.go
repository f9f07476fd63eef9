package squall

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qetlab/squall/internal/blockqueue"
)

func TestTreatmentAveragesRecords(t *testing.T) {
	cfg := smallConfig(t) // 256 samples/record, 10 records/buffer
	control := NewControlState()
	treat := NewAveragedTreatment(0, cfg, control)

	spr := cfg.SamplesPerRecord()
	queue := blockqueue.New[[]RawType]()
	go func() {
		// Two buffers of 10 records each. Record r in buffer k holds the
		// constant value 10k+r, so the mean of sample i is the mean of
		// 0..19 = 9.5 everywhere.
		for k := 0; k < 2; k++ {
			block := make([]RawType, spr*cfg.RecordsPerBuffer)
			for r := 0; r < cfg.RecordsPerBuffer; r++ {
				for i := 0; i < spr; i++ {
					block[r*spr+i] = RawType(10*k + r)
				}
			}
			queue.Push(block)
		}
		queue.Close()
	}()

	require.NoError(t, treat.Run(queue))
	assert.Equal(t, 20, treat.Records())
	assert.True(t, control.TreatmentDone(0))

	mean := treat.Mean()
	require.Len(t, mean, spr)
	for i := 0; i < spr; i++ {
		assert.InDelta(t, 9.5, mean[i], 1e-12)
	}
}

func TestTreatmentWritesNPY(t *testing.T) {
	cfg := smallConfig(t)
	control := NewControlState()
	treat := NewAveragedTreatment(1, cfg, control)
	treat.OutputPath = filepath.Join(t.TempDir(), "chb.npy")

	spr := cfg.SamplesPerRecord()
	queue := blockqueue.New[[]RawType]()
	go func() {
		block := make([]RawType, spr*cfg.RecordsPerBuffer)
		for i := range block {
			block[i] = RawType(i % spr)
		}
		queue.Push(block)
		queue.Close()
	}()

	require.NoError(t, treat.Run(queue))
	assert.True(t, control.TreatmentDone(1))

	// The file must round-trip as the averaged record.
	f, err := os.Open(treat.OutputPath)
	require.NoError(t, err)
	defer f.Close()
	var got []float64
	require.NoError(t, npyio.Read(f, &got))
	require.Len(t, got, spr)
	for i := 0; i < spr; i++ {
		assert.InDelta(t, float64(i), got[i], 1e-12)
	}
}

func TestTreatmentMarksDoneEvenWhenWriteFails(t *testing.T) {
	cfg := smallConfig(t)
	control := NewControlState()
	treat := NewAveragedTreatment(0, cfg, control)
	treat.OutputPath = filepath.Join(t.TempDir(), "no", "such", "dir", "out.npy")

	queue := blockqueue.New[[]RawType]()
	go func() {
		queue.Push(make([]RawType, cfg.SamplesPerRecord()))
		queue.Close()
	}()

	err := treat.Run(queue)
	assert.Error(t, err)
	// The lifecycle join must still converge.
	assert.True(t, control.TreatmentDone(0))
}

func TestTreatmentMeanEmptyRun(t *testing.T) {
	cfg := smallConfig(t)
	treat := NewAveragedTreatment(0, cfg, NewControlState())
	queue := blockqueue.New[[]RawType]()
	queue.Close()
	require.NoError(t, treat.Run(queue))
	assert.Nil(t, treat.Mean())
	assert.Equal(t, 0, treat.Records())
}
