package streaming

import (
	"sync"

	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/log"
	"github.com/starkware-libs/sequencer-sub006/utils/linked"
)

// inboundStream is the per-stream_id reassembly state (§4.G "Inbound").
type inboundStream[T any] struct {
	nextExpected ids.MessageId
	buffer       map[ids.MessageId]T
	finAt        *ids.MessageId
	out          chan T
	closed       bool
}

func newInboundStream[T any](bufferSize int) *inboundStream[T] {
	return &inboundStream[T]{
		buffer: make(map[ids.MessageId]T),
		out:    make(chan T, bufferSize),
	}
}

func (s *inboundStream[T]) close() {
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

// Inbound reassembles content streams from out-of-order StreamMessages
// and bounds the number of concurrently tracked streams with LRU
// admission (§4.G "Stream admission policy").
type Inbound[T any] struct {
	mu         sync.Mutex
	streams    *linked.Hashmap[ids.StreamId, *inboundStream[T]]
	maxStreams int
	bufferSize int
	log        log.Logger
}

// NewInbound builds an inbound stream handler. bufferSize sizes each
// stream's downstream delivery channel.
func NewInbound[T any](cfg Config, bufferSize int, logger log.Logger) *Inbound[T] {
	if logger == nil {
		logger = log.NewNoOp()
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Inbound[T]{
		streams:    linked.NewHashmap[ids.StreamId, *inboundStream[T]](),
		maxStreams: cfg.MaxStreams,
		bufferSize: bufferSize,
		log:        logger,
	}
}

// Receive delivers one downstream consumer channel for streamID,
// creating the stream (and evicting the LRU victim if the table is full)
// on first sight. The same channel is returned across calls for the same
// still-open stream.
func (h *Inbound[T]) Receive(streamID ids.StreamId) <-chan T {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.openLocked(streamID).out
}

// Deliver applies one inbound StreamMessage (§4.G "Inbound"): dropping
// duplicates/late arrivals, forwarding in-order content, buffering
// out-of-order content, and draining the buffer once it becomes
// contiguous. Fin is handled per the same ordering rule.
//
// Forwarding to the downstream channel happens while holding the
// handler's lock; a consumer that stops reading stalls delivery to every
// stream, not just its own. Callers that cannot guarantee a live reader
// should size bufferSize generously or drain Receive's channel on a
// dedicated goroutine.
func (h *Inbound[T]) Deliver(msg StreamMessage[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.openLocked(msg.StreamID)
	h.streams.Touch(msg.StreamID)

	if msg.Body.IsFin {
		fin := msg.MessageID
		s.finAt = &fin
		h.maybeCloseLocked(s)
		return
	}

	switch {
	case msg.MessageID < s.nextExpected:
		h.log.Debug("dropping late stream message", "stream_id", msg.StreamID, "message_id", msg.MessageID)
	case msg.MessageID == s.nextExpected:
		s.out <- msg.Body.Content
		s.nextExpected++
		for {
			c, ok := s.buffer[s.nextExpected]
			if !ok {
				break
			}
			delete(s.buffer, s.nextExpected)
			s.out <- c
			s.nextExpected++
		}
		h.maybeCloseLocked(s)
	default:
		s.buffer[msg.MessageID] = msg.Body.Content
	}
}

func (h *Inbound[T]) maybeCloseLocked(s *inboundStream[T]) {
	if s.finAt != nil && s.nextExpected == *s.finAt {
		s.close()
	}
}

// openLocked returns streamID's state, creating a fresh one (reusing the
// id if it was previously closed, evicting the LRU victim if the table
// is at capacity) and called with h.mu held.
func (h *Inbound[T]) openLocked(streamID ids.StreamId) *inboundStream[T] {
	if existing, ok := h.streams.Get(streamID); ok {
		return existing
	}
	if h.streams.Len() >= h.maxStreams {
		victimID, victim, ok := h.streams.Oldest()
		if ok {
			h.log.Debug("evicting stream under LRU admission", "stream_id", victimID)
			victim.close()
			h.streams.Delete(victimID)
		}
	}
	s := newInboundStream[T](h.bufferSize)
	h.streams.Put(streamID, s)
	return s
}
