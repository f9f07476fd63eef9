package blockqueue

import (
	"testing"
)

func TestFIFOOrdering(t *testing.T) {
	q := New[int]()

	// Send all integers [0, 19], then close.
	max := 20
	go func() {
		for i := range max {
			q.Push(i)
		}
		q.Close()
	}()

	// Everything sent before Close must arrive, in order, then Out closes.
	count := 0
	for v := range q.Out() {
		if v != count {
			t.Errorf("received %d, want %d", v, count)
		}
		count++
	}
	if count != max {
		t.Errorf("received %d values before close, want %d", count, max)
	}
}

func TestFIFOUnboundedBacklog(t *testing.T) {
	q := New[[]uint16]()

	// The producer must never block, no matter how far ahead it runs.
	n := 1000
	for i := 0; i < n; i++ {
		q.Push([]uint16{uint16(i)})
	}
	q.Close()

	count := 0
	for block := range q.Out() {
		if int(block[0]) != count {
			t.Fatalf("block %d holds %d", count, block[0])
		}
		count++
	}
	if count != n {
		t.Errorf("drained %d blocks, want %d", count, n)
	}
}
