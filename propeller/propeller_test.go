package propeller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/sequencer-sub006/ids"
)

func TestPublishAndReceiveRoundTrip(t *testing.T) {
	validators := []ids.ValidatorId{"pub", "r0", "r1", "r2", "r3", "r4"}
	cfg := Config{DataCount: 3, CodingCount: 2, Pad: true, Fanout: 5, AccessThreshold: 3}
	require.NoError(t, cfg.Validate())

	tm := NewTreeManager(validators, cfg)
	hasher := NewBlake2sPlaceholder()
	coder := NewVandermondeCoder()
	verifier := NewPlaceholderVerifier()

	channel := ids.ChannelId("blocks")
	publisher := ids.ValidatorId("pub")

	sent := map[ids.ValidatorId][]PropellerUnit{}
	transmit := func(peer ids.ValidatorId, unit PropellerUnit) error {
		sent[peer] = append(sent[peer], unit)
		return nil
	}
	signer := NewPlaceholderSigner(publisher)

	message := []byte("hello starknet propeller test message")
	root, err := Publish(channel, publisher, message, cfg, coder, hasher, signer, tm, transmit)
	require.NoError(t, err)

	participants := tm.Participants(channel, publisher)
	require.Len(t, participants, 5)
	for _, p := range participants {
		require.Len(t, sent[p], 1)
		require.True(t, sent[p][0].MessageRoot.Equal(root))
	}

	target := participants[0]
	units := make(chan PropellerUnit, 10)
	for _, p := range participants[:cfg.DataCount] {
		units <- sent[p][0]
	}
	close(units)

	noop := func(ids.ValidatorId, PropellerUnit) error { return nil }
	sm := NewStateManager(channel, target, cfg, coder, hasher, verifier, tm, noop, nil)
	res := sm.Run(context.Background(), units, time.Second)

	require.False(t, res.Timeout)
	require.Nil(t, res.Failed)
	require.NotNil(t, res.Received)
	require.Equal(t, message, res.Received.Message)
	require.True(t, res.Received.Root.Equal(root))
}

func TestStateManagerTimesOutWithoutEnoughShards(t *testing.T) {
	validators := []ids.ValidatorId{"pub", "r0", "r1", "r2", "r3", "r4"}
	cfg := Config{DataCount: 3, CodingCount: 2, Pad: true, Fanout: 5, AccessThreshold: 3}
	tm := NewTreeManager(validators, cfg)
	hasher := NewBlake2sPlaceholder()
	coder := NewVandermondeCoder()
	verifier := NewPlaceholderVerifier()

	channel := ids.ChannelId("blocks")
	publisher := ids.ValidatorId("pub")

	sent := map[ids.ValidatorId][]PropellerUnit{}
	transmit := func(peer ids.ValidatorId, unit PropellerUnit) error {
		sent[peer] = append(sent[peer], unit)
		return nil
	}
	signer := NewPlaceholderSigner(publisher)
	_, err := Publish(channel, publisher, []byte("not enough shards will arrive"), cfg, coder, hasher, signer, tm, transmit)
	require.NoError(t, err)

	participants := tm.Participants(channel, publisher)
	target := participants[0]
	units := make(chan PropellerUnit, 1)
	units <- sent[participants[0]][0]

	noop := func(ids.ValidatorId, PropellerUnit) error { return nil }
	sm := NewStateManager(channel, target, cfg, coder, hasher, verifier, tm, noop, nil)
	res := sm.Run(context.Background(), units, 20*time.Millisecond)

	require.True(t, res.Timeout)
	require.Nil(t, res.Received)
}
