package squall

// Contains the status publisher, which broadcasts tagged JSON messages
// giving the latest squall state on the status port.

import (
	"encoding/json"
	"fmt"

	zmq "github.com/pebbe/zmq4"
)

// StatusUpdate carries one message to be published on the status port.
type StatusUpdate struct {
	Tag     string
	Message []byte
}

// statusUpdate marshals v and builds a StatusUpdate, falling back to an
// error payload if v cannot be marshaled.
func statusUpdate(tag string, v interface{}) StatusUpdate {
	msg, err := json.Marshal(v)
	if err != nil {
		msg = []byte(fmt.Sprintf("{\"error\": %q}", err.Error()))
	}
	return StatusUpdate{Tag: tag, Message: msg}
}

// RunStatusPublisher forwards any message from its input channel to the
// ZMQ publisher socket, so clients can follow configuration changes, run
// starts, and run closes. It terminates when abort closes.
func RunStatusPublisher(messages <-chan StatusUpdate, portstatus int, abort <-chan struct{}) {
	pubSocket, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		ProblemLogger.Printf("status publisher: %v", err)
		return
	}
	defer pubSocket.Close()
	if err = pubSocket.Bind(fmt.Sprintf("tcp://*:%d", portstatus)); err != nil {
		ProblemLogger.Printf("status publisher bind: %v", err)
		return
	}

	for {
		select {
		case <-abort:
			return
		case update := <-messages:
			if _, err := pubSocket.Send(update.Tag, zmq.SNDMORE); err != nil {
				continue
			}
			pubSocket.SendBytes(update.Message, 0)
		}
	}
}
