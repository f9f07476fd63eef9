package squall

import (
	"fmt"

	"github.com/qetlab/squall/internal/ats"
)

// channelCount is fixed: this system always captures both inputs.
const channelCount = 2

// bufferPool owns the fixed ring of DMA transfer buffers for one
// acquisition. Every buffer is either posted to the board or being drained
// by the acquisition loop, never both; the ring index is always
// completedCount mod pool size, so reuse order matches completion order.
type bufferPool struct {
	board ats.Board

	buffers          [][]byte
	bytesPerSample   int
	bytesPerBuffer   int
	samplesPerRecord int
	recordsPerBuffer int

	released bool
}

// newBufferPool queries the board geometry and allocates the ring. No
// buffer is posted yet; that happens in arm.
func newBufferPool(board ats.Board, cfg *AcquisitionConfig) (*bufferPool, error) {
	if !cfg.Validated() {
		return nil, fmt.Errorf("newBufferPool: config has not passed validation")
	}
	_, bitsPerSample, err := board.GetChannelInfo()
	if err != nil {
		return nil, fmt.Errorf("GetChannelInfo: %v", err)
	}

	p := &bufferPool{
		board:            board,
		bytesPerSample:   (bitsPerSample + 7) / 8,
		samplesPerRecord: cfg.SamplesPerRecord(),
		recordsPerBuffer: cfg.RecordsPerBuffer,
	}
	// Samples are stored one byte wide only for true 8-bit converters;
	// anything wider (the 12-bit case here) packs into two bytes.
	if p.bytesPerSample > 1 {
		p.bytesPerSample = 2
	}
	bytesPerRecord := p.bytesPerSample * p.samplesPerRecord
	p.bytesPerBuffer = bytesPerRecord * p.recordsPerBuffer * channelCount

	p.buffers = make([][]byte, cfg.BufferPoolSize)
	for i := range p.buffers {
		p.buffers[i] = make([]byte, p.bytesPerBuffer)
	}
	return p, nil
}

// arm programs the record size, arms continuous NPT streaming with the full
// record target, and posts every pool buffer. The board demands all buffers
// be posted before StartCapture; arm guarantees that.
func (p *bufferPool) arm(cfg *AcquisitionConfig) error {
	// NPT mode: zero pre-trigger samples by construction.
	if err := p.board.SetRecordSize(0, p.samplesPerRecord); err != nil {
		return fmt.Errorf("SetRecordSize: %v", err)
	}

	recordsPerAcquisition := p.recordsPerBuffer * cfg.BuffersPerAcquisition()
	flags := ats.ADMAExternalStartCapture | ats.ADMANPT | ats.ADMAFifoOnlyStreaming
	err := p.board.BeforeAsyncRead(ats.ChannelA|ats.ChannelB, 0,
		p.samplesPerRecord, p.recordsPerBuffer, recordsPerAcquisition, flags)
	if err != nil {
		return fmt.Errorf("BeforeAsyncRead: %v", err)
	}

	for i, buf := range p.buffers {
		if err := p.board.PostAsyncBuffer(buf); err != nil {
			return fmt.Errorf("PostAsyncBuffer(%d of %d): %v", i+1, len(p.buffers), err)
		}
	}
	return nil
}

// buffer returns the ring slot for the given completed-buffer count.
func (p *bufferPool) buffer(completedCount int) []byte {
	return p.buffers[completedCount%len(p.buffers)]
}

// repost returns a drained buffer to the board. A buffer is never read
// twice without an intervening repost.
func (p *bufferPool) repost(buf []byte) error {
	if err := p.board.PostAsyncBuffer(buf); err != nil {
		return fmt.Errorf("PostAsyncBuffer (repost): %v", err)
	}
	return nil
}

// release aborts any outstanding transfers and drops the ring. Idempotent,
// and safe after partial initialization: a pool that never armed still
// releases cleanly.
func (p *bufferPool) release() error {
	if p.released {
		return nil
	}
	p.released = true
	if err := p.board.AbortAsyncRead(); err != nil {
		return fmt.Errorf("AbortAsyncRead: %v", err)
	}
	return nil
}
