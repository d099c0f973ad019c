// Package orchestrator drives a consensus.Manager's GetProposal requests
// against the block builder and a Cende-style blob recorder (§6 "Cende
// recorder", grounded in
// original_source/crates/apollo_consensus_orchestrator/src/cende/mod.rs's
// CendeContext trait): before a proposal is handed back to consensus, the
// block it describes is archived with an external recorder, and the
// handoff blocks on that recorder's acknowledgement within a bounded
// timeout.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/starkware-libs/sequencer-sub006/blockbuilder"
	"github.com/starkware-libs/sequencer-sub006/ids"
	"github.com/starkware-libs/sequencer-sub006/log"
)

// defaultRecordTimeout bounds the wait for a recorder acknowledgement when
// Driver is built without an explicit timeout.
const defaultRecordTimeout = 2 * time.Second

// ErrRecorderTimeout is returned when BlobRecorder does not acknowledge
// within the Driver's timeout.
var ErrRecorderTimeout = errors.New("orchestrator: blob recorder did not acknowledge in time")

// BlobRecorder is the narrow boundary to an external object store (an
// Aerospike-backed service in the original) that archives the "central
// objects" blob describing a built block. A real implementation (HTTP
// client, retry middleware, Aerospike writes) is out of scope; only the
// calling contract — write, then wait for an acknowledgement — is modeled
// here.
type BlobRecorder interface {
	// WriteBlob archives summary under height, returning once the
	// recorder acknowledges the write or ctx is done.
	WriteBlob(ctx context.Context, height ids.BlockNumber, summary blockbuilder.BlockExecutionSummary) error
}

// ProposalBuilder produces the content of a new block for height and
// reduces it to the ids.Commitment consensus agrees on.
type ProposalBuilder interface {
	BuildProposal(ctx context.Context, height ids.BlockNumber) (blockbuilder.BlockExecutionSummary, ids.Commitment, error)
}

// Driver answers a consensus Manager's GetProposal requests: it runs the
// block builder, then archives the result with a BlobRecorder before
// handing the commitment back, so a proposal is never sent for a block
// the recorder never acknowledged (§6 "writes a blob ... before the
// proposal is sent, and blocks precommit on an acknowledgement with a
// bounded timeout" — withholding the proposal itself withholds every vote
// that would follow it, precommit included).
type Driver struct {
	builder  ProposalBuilder
	recorder BlobRecorder
	timeout  time.Duration
	log      log.Logger
}

// NewDriver builds a Driver. recorder may be nil, in which case blocks are
// handed back without being archived. timeout bounds the wait for
// recorder's acknowledgement; zero or negative defaults to
// defaultRecordTimeout.
func NewDriver(builder ProposalBuilder, recorder BlobRecorder, timeout time.Duration, logger log.Logger) *Driver {
	if logger == nil {
		logger = log.NewNoOp()
	}
	if timeout <= 0 {
		timeout = defaultRecordTimeout
	}
	return &Driver{builder: builder, recorder: recorder, timeout: timeout, log: logger}
}

// BuildAndRecord runs the builder for height, then — if a BlobRecorder is
// configured — blocks on its acknowledgement before returning the value a
// proposal would carry. A recorder timeout or error withholds the
// proposal: the caller should let the round's propose timeout fire rather
// than force a value through with ids.Commitment{}.
func (d *Driver) BuildAndRecord(ctx context.Context, height ids.BlockNumber) (ids.Commitment, error) {
	summary, value, err := d.builder.BuildProposal(ctx, height)
	if err != nil {
		return ids.Commitment{}, err
	}
	if d.recorder == nil {
		return value, nil
	}

	recordCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.recorder.WriteBlob(recordCtx, height, summary); err != nil {
		d.log.Warn("blob recorder did not acknowledge block", "height", height, "error", err)
		if errors.Is(recordCtx.Err(), context.DeadlineExceeded) {
			return ids.Commitment{}, ErrRecorderTimeout
		}
		return ids.Commitment{}, err
	}
	return value, nil
}
