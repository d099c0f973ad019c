package propeller

import (
	"encoding/binary"
	"fmt"

	"github.com/starkware-libs/sequencer-sub006/ids"
)

// Transmit sends one unit to peer; the network transport is an external
// collaborator (§6), reached only through this function type.
type Transmit func(peer ids.ValidatorId, unit PropellerUnit) error

// Publish shreds message into data_count + coding_count shards, builds
// their Merkle tree, and transmits one unit per peer in the publisher's
// tree-manager fanout (§4.J "Publish side").
func Publish(
	channel ids.ChannelId,
	publisher ids.ValidatorId,
	message []byte,
	cfg Config,
	coder ShardCoder,
	hasher MerkleHasher,
	signer Signer,
	tm TreeManager,
	transmit Transmit,
) (ids.HashOutput, error) {
	if err := cfg.Validate(); err != nil {
		return ids.HashOutput{}, err
	}

	payload := message
	if cfg.Pad {
		payload = padMessage(message, cfg.DataCount)
	} else if len(payload)%cfg.DataCount != 0 {
		return ids.HashOutput{}, ErrMessagePaddingError
	}

	shards, err := coder.Encode(payload, cfg)
	if err != nil {
		return ids.HashOutput{}, err
	}

	root, proofs := BuildMerkleTree(shards, hasher)
	participants := tm.Participants(channel, publisher)
	fanout := tm.Fanout(channel, publisher, publisher)

	for _, peer := range fanout {
		idx := indexOf(participants, peer)
		if idx < 0 {
			return root, fmt.Errorf("propeller: publish: fanout peer %q is not a participant", peer)
		}
		unit := PropellerUnit{
			Channel:     channel,
			Publisher:   publisher,
			MessageRoot: root,
			Index:       idx,
			Shard:       shards[idx],
			Proof:       proofs[idx],
		}
		unit.Signature = signer.Sign(unitSignaturePayload(unit))
		if err := transmit(peer, unit); err != nil {
			return root, fmt.Errorf("propeller: publish: transmitting to %q: %w", peer, err)
		}
	}
	return root, nil
}

// unitSignaturePayload is the byte string a unit's signature authenticates:
// everything except the signature itself.
func unitSignaturePayload(u PropellerUnit) []byte {
	buf := []byte(u.Channel)
	buf = append(buf, 0)
	buf = append(buf, []byte(u.Publisher)...)
	buf = append(buf, []byte(u.MessageRoot.String())...)
	var idxBuf [4]byte
	binary.LittleEndian.PutUint32(idxBuf[:], uint32(u.Index))
	buf = append(buf, idxBuf[:]...)
	buf = append(buf, u.Shard...)
	return buf
}
