// Package config holds the node's ambient configuration surface (§6
// "Configuration (exposed)"): plain structs with Default* constructors and
// Validate methods, the shape the teacher's own config/config.go uses for
// consensus Parameters.
package config

import (
	"errors"
	"time"

	"github.com/starkware-libs/sequencer-sub006/bouncer"
	"github.com/starkware-libs/sequencer-sub006/propeller"
)

// Validation errors shared across the config surface, mirroring the
// teacher's config/config.go sentinel-error style.
var (
	ErrNonPositiveTimeout    = errors.New("config: timeout must be positive")
	ErrNonPositiveChunkSize  = errors.New("config: chunk size must be positive")
	ErrNonPositiveNWorkers   = errors.New("config: n_workers must be positive")
	ErrNonPositiveStackSize  = errors.New("config: stack size must be positive")
	ErrNonPositiveMaxStreams = errors.New("config: max_streams must be positive")
	ErrNonPositiveBufferCap  = errors.New("config: channel buffer capacity must be positive")
)

// ConsensusTimeouts holds the three per-round timer durations plus the
// startup delay before the first height begins (§6 "Consensus:
// proposal_timeout, prevote_timeout, precommit_timeout ... startup_delay").
// The consensus package itself is deliberately duration-agnostic — Machine
// only emits ArmTimeout{Kind}; a driver reads these durations to arm the
// actual timer, mirroring papyrus_consensus's TimeoutsConfig living outside
// MultiHeightManager.
type ConsensusTimeouts struct {
	Proposal     time.Duration
	Prevote      time.Duration
	Precommit    time.Duration
	StartupDelay time.Duration
}

// DefaultConsensusTimeouts returns conservative single-digit-second
// defaults, the same order of magnitude as papyrus_consensus's defaults.
func DefaultConsensusTimeouts() ConsensusTimeouts {
	return ConsensusTimeouts{
		Proposal:     3 * time.Second,
		Prevote:      1 * time.Second,
		Precommit:    1 * time.Second,
		StartupDelay: 5 * time.Second,
	}
}

func (t ConsensusTimeouts) Validate() error {
	if t.Proposal <= 0 || t.Prevote <= 0 || t.Precommit <= 0 {
		return ErrNonPositiveTimeout
	}
	return nil
}

// ExecuteConfig configures the OCC worker pool (§6
// "execute_config.{chunk_size, n_workers, enabled, stack_size}"). Enabled
// toggles concurrent execution; when false, a driver should fall back to
// running one chunk of size 1 per worker, i.e. strictly sequential
// execution, rather than consulting chunk_size/n_workers at all.
type ExecuteConfig struct {
	ChunkSize int
	NWorkers  int
	Enabled   bool
	StackSize int
}

// DefaultExecuteConfig returns a moderate concurrency shape: chunks of 64
// transactions across GOMAXPROCS-sized pools (NWorkers <= 0 means
// runtime.GOMAXPROCS(0) to concurrency.NewPool, so 0 here just forwards
// that default rather than hardcoding a core count).
func DefaultExecuteConfig() ExecuteConfig {
	return ExecuteConfig{
		ChunkSize: 64,
		NWorkers:  0,
		Enabled:   true,
		StackSize: 60 << 20, // 60 MiB, same as concurrency.DefaultNativeStackBytes
	}
}

func (c ExecuteConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ChunkSize <= 0 {
		return ErrNonPositiveChunkSize
	}
	if c.NWorkers < 0 {
		return ErrNonPositiveNWorkers
	}
	if c.StackSize <= 0 {
		return ErrNonPositiveStackSize
	}
	return nil
}

// BouncerConfig configures the block-capacity bouncer (§6
// "bouncer_config.block_max_capacity").
type BouncerConfig struct {
	BlockMaxCapacity bouncer.Weights
}

// DefaultBouncerConfig returns a finite default block capacity. A zero
// bouncer.Weights{} capacity is not unbounded: it admits no transaction that
// uses any resource.
func DefaultBouncerConfig() BouncerConfig {
	return BouncerConfig{BlockMaxCapacity: bouncer.Weights{
		L1Gas:                10_000_000,
		MessageSegmentLength: 3_700,
		NEvents:              5_000,
		StateDiffSize:        4_000,
		SierraGas:            4_000_000_000,
	}}
}

// BlockBuilderConfig is the block builder's full exposed config surface
// (§6 "Block builder: tx_chunk_size, deadline, fail_on_err,
// execute_config..., bouncer_config...").
type BlockBuilderConfig struct {
	TxChunkSize int
	Deadline    time.Duration // zero means no deadline
	FailOnErr   bool
	Execute     ExecuteConfig
	Bouncer     BouncerConfig
}

func DefaultBlockBuilderConfig() BlockBuilderConfig {
	return BlockBuilderConfig{
		TxChunkSize: 32,
		FailOnErr:   false,
		Execute:     DefaultExecuteConfig(),
		Bouncer:     DefaultBouncerConfig(),
	}
}

func (c BlockBuilderConfig) Validate() error {
	if c.TxChunkSize <= 0 {
		return ErrNonPositiveChunkSize
	}
	return c.Execute.Validate()
}

// StreamHandlerConfig configures the inbound proposal-stream multiplexer
// (§6 "Stream handler: channel_buffer_capacity, max_streams").
type StreamHandlerConfig struct {
	ChannelBufferCapacity int
	MaxStreams            int
}

// DefaultStreamHandlerConfig matches streaming.DefaultConfig's MaxStreams
// (§9 Open Questions: "10 concurrent streams is the observed default").
func DefaultStreamHandlerConfig() StreamHandlerConfig {
	return StreamHandlerConfig{ChannelBufferCapacity: 64, MaxStreams: 10}
}

func (c StreamHandlerConfig) Validate() error {
	if c.MaxStreams <= 0 {
		return ErrNonPositiveMaxStreams
	}
	if c.ChannelBufferCapacity <= 0 {
		return ErrNonPositiveBufferCap
	}
	return nil
}

// PropellerConfig configures erasure-coded broadcast (§6 "Propeller:
// data_count, coding_count, pad, access_threshold"). Fanout is not in the
// spec's exposed list but is required to construct a propeller.Config, so
// it is carried here too with the same default propeller.DefaultConfig
// uses.
type PropellerConfig struct {
	DataCount       int
	CodingCount     int
	Pad             bool
	Fanout          int
	AccessThreshold int
}

func DefaultPropellerConfig() PropellerConfig {
	return PropellerConfig{DataCount: 4, CodingCount: 2, Pad: true, Fanout: 2, AccessThreshold: 5}
}

// ToPropellerConfig converts to the propeller package's own Config, whose
// Validate is the single source of truth for these fields' constraints.
func (c PropellerConfig) ToPropellerConfig() propeller.Config {
	return propeller.Config{
		DataCount:       c.DataCount,
		CodingCount:     c.CodingCount,
		Pad:             c.Pad,
		Fanout:          c.Fanout,
		AccessThreshold: c.AccessThreshold,
	}
}

func (c PropellerConfig) Validate() error {
	return c.ToPropellerConfig().Validate()
}

// NodeConfig aggregates every subsystem's exposed configuration (§6),
// the single value a sequencer binary loads at startup.
type NodeConfig struct {
	Consensus     ConsensusTimeouts
	BlockBuilder  BlockBuilderConfig
	StreamHandler StreamHandlerConfig
	Propeller     PropellerConfig
}

// DefaultNodeConfig composes every subsystem's defaults.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		Consensus:     DefaultConsensusTimeouts(),
		BlockBuilder:  DefaultBlockBuilderConfig(),
		StreamHandler: DefaultStreamHandlerConfig(),
		Propeller:     DefaultPropellerConfig(),
	}
}

// Validate checks every subsystem's config in turn, returning the first
// error encountered.
func (c NodeConfig) Validate() error {
	if err := c.Consensus.Validate(); err != nil {
		return err
	}
	if err := c.BlockBuilder.Validate(); err != nil {
		return err
	}
	if err := c.StreamHandler.Validate(); err != nil {
		return err
	}
	return c.Propeller.Validate()
}
