// Package streaming reassembles logical content streams out of an
// unordered, possibly-lossy transport (§4.G): a proposal's content
// arrives as a sequence of StreamMessages that may be reordered, dropped
// by eviction, or never terminated.
package streaming

import (
	"fmt"

	"github.com/starkware-libs/sequencer-sub006/ids"
)

// MessageBody is a StreamMessage's payload: either content or the
// terminal Fin marker (§3.1).
type MessageBody[T any] struct {
	Content T
	IsFin   bool
}

// StreamMessage is one unit the transport delivers, addressed to a
// logical stream by StreamId and ordered within it by MessageId.
type StreamMessage[T any] struct {
	StreamID  ids.StreamId
	MessageID ids.MessageId
	Body      MessageBody[T]
}

// Config bounds the inbound handler's resource usage.
type Config struct {
	MaxStreams int
}

// DefaultConfig returns the conservative default observed in practice
// (§9 Open Questions: "10 concurrent streams is the observed default").
func DefaultConfig() Config {
	return Config{MaxStreams: 10}
}

func (c Config) Validate() error {
	if c.MaxStreams <= 0 {
		return fmt.Errorf("streaming: max_streams must be positive, got %d", c.MaxStreams)
	}
	return nil
}
