// Package blockqueue implements the unbounded single-producer
// single-consumer FIFO that carries deinterleaved sample blocks from the
// acquisition loop to one treatment worker. Pushes never block the
// producer; closing drains everything already queued before the consumer
// sees the channel close.
package blockqueue

// FIFO is an unbounded queue with channel ends. Exactly one goroutine may
// push and exactly one may receive. Beware! You almost certainly want T to
// be a slice or pointer; values are buffered internally.
type FIFO[T any] struct {
	in    chan T
	out   chan T
	queue []T
}

// New creates a FIFO and starts its pump goroutine.
func New[T any]() *FIFO[T] {
	q := &FIFO[T]{
		in:    make(chan T),
		out:   make(chan T),
		queue: make([]T, 0),
	}
	go q.run()
	return q
}

func (q *FIFO[T]) run() {
	for {
		if len(q.queue) == 0 {
			// Nothing buffered: only new input can make progress.
			val, ok := <-q.in
			if !ok {
				close(q.out)
				return
			}
			q.queue = append(q.queue, val)
		} else {
			select {
			case q.out <- q.queue[0]:
				q.queue = q.queue[1:]
			case val, ok := <-q.in:
				if !ok {
					// Producer is done: flush the backlog, then close.
					for _, item := range q.queue {
						q.out <- item
					}
					close(q.out)
					return
				}
				q.queue = append(q.queue, val)
			}
		}
	}
}

// Push enqueues one value. Must not be called after Close.
func (q *FIFO[T]) Push(val T) {
	q.in <- val
}

// Close ends the producer side. Values already queued still reach the
// consumer; afterwards Out is closed. Must be called exactly once.
func (q *FIFO[T]) Close() {
	close(q.in)
}

// Out returns the consumer end. It is closed once the producer has closed
// the queue and the backlog has drained.
func (q *FIFO[T]) Out() <-chan T {
	return q.out
}
