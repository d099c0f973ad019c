package streaming

import (
	"sync"

	"github.com/starkware-libs/sequencer-sub006/ids"
)

// outboundStream tracks one registered sender's next message id.
type outboundStream[T any] struct {
	recv   <-chan T
	nextID ids.MessageId
}

// Outbound interleaves delivery across concurrently registered content
// senders, assigning each stream monotonically increasing per-stream
// message ids and emitting Fin when its sender closes (§4.G "Outbound").
type Outbound[T any] struct {
	mu      sync.Mutex
	streams map[ids.StreamId]*outboundStream[T]
	out     chan StreamMessage[T]
}

// NewOutbound builds an outbound multiplexer whose combined delivery
// channel is out.
func NewOutbound[T any](bufferSize int) *Outbound[T] {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Outbound[T]{
		streams: make(map[ids.StreamId]*outboundStream[T]),
		out:     make(chan StreamMessage[T], bufferSize),
	}
}

// Messages returns the interleaved delivery channel every registered
// stream's content and Fin markers are multiplexed onto.
func (o *Outbound[T]) Messages() <-chan StreamMessage[T] { return o.out }

// Register starts pumping recv's content onto a fresh stream id,
// interleaved (fairly, via a dedicated goroutine per stream feeding the
// shared out channel) with every other registered stream. A Fin is
// emitted once recv closes.
func (o *Outbound[T]) Register(streamID ids.StreamId, recv <-chan T) {
	o.mu.Lock()
	o.streams[streamID] = &outboundStream[T]{recv: recv}
	o.mu.Unlock()

	go o.pump(streamID)
}

func (o *Outbound[T]) pump(streamID ids.StreamId) {
	o.mu.Lock()
	s := o.streams[streamID]
	o.mu.Unlock()

	for content := range s.recv {
		o.mu.Lock()
		id := s.nextID
		s.nextID++
		o.mu.Unlock()
		o.out <- StreamMessage[T]{StreamID: streamID, MessageID: id, Body: MessageBody[T]{Content: content}}
	}

	o.mu.Lock()
	finID := s.nextID
	delete(o.streams, streamID)
	o.mu.Unlock()
	o.out <- StreamMessage[T]{StreamID: streamID, MessageID: finID, Body: MessageBody[T]{IsFin: true}}
}
