// Package propeller implements the erasure-coded broadcast overlay (§4.J):
// a publisher shreds a message into Reed-Solomon shards and forwards them
// through a deterministic tree overlay; receivers reconstruct once enough
// shards arrive and rebroadcast their own shard to extend propagation
// beyond the publisher's immediate fanout.
package propeller

import (
	"errors"

	"github.com/starkware-libs/sequencer-sub006/ids"
)

// Signature is an opaque authenticator over a PropellerUnit's payload. Its
// cryptographic construction is an external concern (§1): this package
// only consumes it through the Signer/Verifier interfaces below.
type Signature []byte

// PropellerUnit is a single shard in transit, carrying its Merkle
// membership proof against the message's root (§3.6).
type PropellerUnit struct {
	Channel     ids.ChannelId
	Publisher   ids.ValidatorId
	MessageRoot ids.HashOutput
	Signature   Signature
	Index       int
	Shard       []byte
	Proof       MerkleProof
}

// Config bounds the shard shape and propagation policy for one channel
// (§4.J "Publish side", "TreeManager").
type Config struct {
	DataCount       int
	CodingCount     int
	Pad             bool
	Fanout          int
	AccessThreshold int
}

// DefaultConfig returns the propeller's default shard and fanout shape.
func DefaultConfig() Config {
	return Config{
		DataCount:       4,
		CodingCount:     2,
		Pad:             true,
		Fanout:          2,
		AccessThreshold: 5,
	}
}

func (c Config) Validate() error {
	if c.DataCount <= 0 {
		return errors.New("propeller: data_count must be positive")
	}
	if c.CodingCount < 0 {
		return errors.New("propeller: coding_count must not be negative")
	}
	if c.Fanout <= 0 {
		return errors.New("propeller: fanout must be positive")
	}
	n := c.DataCount + c.CodingCount
	if c.AccessThreshold < c.DataCount || c.AccessThreshold > n {
		return errors.New("propeller: access_threshold must be within [data_count, n]")
	}
	return nil
}

func (c Config) shardCount() int { return c.DataCount + c.CodingCount }

// Errors from §4.J "Errors", all fatal for the message in progress.
var (
	ErrUnequalShardLengths       = errors.New("propeller: unequal shard lengths")
	ErrMismatchedMessageRoot     = errors.New("propeller: recomputed root does not match message_root")
	ErrMessagePaddingError       = errors.New("propeller: invalid length prefix")
	ErrErasureReconstructionFailed = errors.New("propeller: erasure reconstruction failed")
	ErrMessageTimeout            = errors.New("propeller: watchdog timeout before reconstruction")
	ErrInvalidSignature          = errors.New("propeller: invalid unit signature")
	ErrInvalidProof              = errors.New("propeller: invalid merkle proof")
	ErrUnknownPublisher          = errors.New("propeller: publisher is not a known participant")
)
