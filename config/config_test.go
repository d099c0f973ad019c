package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultNodeConfigValidates(t *testing.T) {
	require.NoError(t, DefaultNodeConfig().Validate())
}

func TestConsensusTimeoutsRejectsNonPositive(t *testing.T) {
	c := DefaultConsensusTimeouts()
	c.Prevote = 0
	require.ErrorIs(t, c.Validate(), ErrNonPositiveTimeout)
}

func TestExecuteConfigDisabledSkipsChunkingChecks(t *testing.T) {
	c := ExecuteConfig{Enabled: false}
	require.NoError(t, c.Validate())
}

func TestExecuteConfigRejectsNonPositiveChunkSize(t *testing.T) {
	c := DefaultExecuteConfig()
	c.ChunkSize = 0
	require.ErrorIs(t, c.Validate(), ErrNonPositiveChunkSize)
}

func TestPropellerConfigConvertsAndValidates(t *testing.T) {
	c := DefaultPropellerConfig()
	pc := c.ToPropellerConfig()
	require.Equal(t, c.DataCount, pc.DataCount)
	require.Equal(t, c.AccessThreshold, pc.AccessThreshold)
	require.NoError(t, c.Validate())

	c.AccessThreshold = 0
	require.Error(t, c.Validate())
}

func TestStreamHandlerConfigRejectsZeroMaxStreams(t *testing.T) {
	c := DefaultStreamHandlerConfig()
	c.MaxStreams = 0
	require.ErrorIs(t, c.Validate(), ErrNonPositiveMaxStreams)
}

func TestBlockBuilderConfigDeadlineIsDuration(t *testing.T) {
	c := DefaultBlockBuilderConfig()
	c.Deadline = 2 * time.Second
	require.NoError(t, c.Validate())
}
