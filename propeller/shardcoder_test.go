package propeller

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{DataCount: 4, CodingCount: 3, Pad: true, Fanout: 2, AccessThreshold: 5}
}

func TestEncodeProducesShardCountShards(t *testing.T) {
	cfg := testConfig()
	coder := NewVandermondeCoder()
	payload := padMessage([]byte("a reed-solomon erasure coding test payload"), cfg.DataCount)

	shards, err := coder.Encode(payload, cfg)
	require.NoError(t, err)
	require.Len(t, shards, cfg.shardCount())

	size := len(shards[0])
	for _, s := range shards {
		require.Len(t, s, size)
	}
}

func TestReconstructFromExactlyDataCountShards(t *testing.T) {
	cfg := testConfig()
	coder := NewVandermondeCoder()
	payload := padMessage([]byte("reconstruct from any data_count of n shards"), cfg.DataCount)

	shards, err := coder.Encode(payload, cfg)
	require.NoError(t, err)

	// Keep an arbitrary data_count-sized subset: two data shards and two
	// coding shards, dropping the rest.
	kept := map[int]bool{1: true, 3: true, cfg.DataCount: true, cfg.DataCount + 1: true}
	partial := make([][]byte, cfg.shardCount())
	for i := range shards {
		if kept[i] {
			partial[i] = append([]byte(nil), shards[i]...)
		}
	}

	require.NoError(t, coder.Reconstruct(partial, cfg))
	for i := range shards {
		require.True(t, bytes.Equal(shards[i], partial[i]), "shard %d mismatch after reconstruction", i)
	}

	recovered, err := unpadMessage(bytes.Join(partial[:cfg.DataCount], nil))
	require.NoError(t, err)
	require.Equal(t, "reconstruct from any data_count of n shards", string(recovered))
}

func TestReconstructFailsWithTooFewShards(t *testing.T) {
	cfg := testConfig()
	coder := NewVandermondeCoder()
	payload := padMessage([]byte("short"), cfg.DataCount)
	shards, err := coder.Encode(payload, cfg)
	require.NoError(t, err)

	partial := make([][]byte, cfg.shardCount())
	partial[0] = shards[0]
	partial[1] = shards[1]

	err = coder.Reconstruct(partial, cfg)
	require.Error(t, err)
}

func TestReconstructDetectsUnequalShardLengths(t *testing.T) {
	cfg := testConfig()
	coder := NewVandermondeCoder()
	payload := padMessage([]byte("unequal shard length detection"), cfg.DataCount)
	shards, err := coder.Encode(payload, cfg)
	require.NoError(t, err)

	partial := make([][]byte, cfg.shardCount())
	copy(partial, shards)
	partial[2] = partial[2][:len(partial[2])-1]

	err = coder.Reconstruct(partial, cfg)
	require.ErrorIs(t, err, ErrUnequalShardLengths)
}
