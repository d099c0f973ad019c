package propeller

import "fmt"

// ShardCoder is the Reed-Solomon collaborator (§1, §3.6): split a message
// into data_count data shards and generate coding_count coding shards;
// later, given any data_count of the n shards, recover the rest.
type ShardCoder interface {
	// Encode splits padded into DataCount equal shards and returns them
	// followed by CodingCount coding shards, all of the same length.
	Encode(padded []byte, cfg Config) ([][]byte, error)
	// Reconstruct fills in every nil entry of shards (len(shards) ==
	// cfg.shardCount()) given that every non-nil entry is a valid shard at
	// that index. It requires at least cfg.DataCount non-nil shards.
	Reconstruct(shards [][]byte, cfg Config) error
}

// vandermondeCoder is the default ShardCoder: a systematic Reed-Solomon
// code built from a Vandermonde generator matrix normalized so its top
// DataCount rows are the identity (the standard construction also used by
// klauspost/reedsolomon and Backblaze's reference implementation) — any
// DataCount of the resulting n rows are linearly independent, so any
// DataCount-of-n shards suffice to reconstruct (§3.6 invariant).
type vandermondeCoder struct{}

// NewVandermondeCoder returns the default ShardCoder.
func NewVandermondeCoder() ShardCoder { return vandermondeCoder{} }

func (vandermondeCoder) generatorMatrix(cfg Config) (matrix, error) {
	k, n := cfg.DataCount, cfg.shardCount()
	v := vandermonde(n, k)
	top := v.subMatrixRows(rangeInts(k))
	topInv, err := top.invert()
	if err != nil {
		return nil, fmt.Errorf("propeller: building generator matrix: %w", err)
	}
	return v.multiply(topInv), nil
}

func rangeInts(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func (c vandermondeCoder) Encode(padded []byte, cfg Config) ([][]byte, error) {
	k, n := cfg.DataCount, cfg.shardCount()
	if len(padded)%k != 0 {
		return nil, fmt.Errorf("propeller: encode: payload length %d not a multiple of data_count %d", len(padded), k)
	}
	shardSize := len(padded) / k
	shards := make([][]byte, n)
	for i := 0; i < k; i++ {
		shards[i] = append([]byte(nil), padded[i*shardSize:(i+1)*shardSize]...)
	}
	if cfg.CodingCount == 0 {
		return shards, nil
	}

	gen, err := c.generatorMatrix(cfg)
	if err != nil {
		return nil, err
	}
	for row := k; row < n; row++ {
		coding := make([]byte, shardSize)
		for col := 0; col < k; col++ {
			factor := gen[row][col]
			if factor == 0 {
				continue
			}
			for b := 0; b < shardSize; b++ {
				coding[b] = gfAdd(coding[b], gfMul(factor, shards[col][b]))
			}
		}
		shards[row] = coding
	}
	return shards, nil
}

func (c vandermondeCoder) Reconstruct(shards [][]byte, cfg Config) error {
	k, n := cfg.DataCount, cfg.shardCount()
	if len(shards) != n {
		return fmt.Errorf("propeller: reconstruct: expected %d shards, got %d", n, len(shards))
	}

	present := make([]int, 0, n)
	var shardSize int
	for i, s := range shards {
		if s == nil {
			continue
		}
		if shardSize == 0 {
			shardSize = len(s)
		} else if len(s) != shardSize {
			return ErrUnequalShardLengths
		}
		present = append(present, i)
	}
	if len(present) < k {
		return fmt.Errorf("propeller: reconstruct: have %d shards, need at least %d", len(present), k)
	}

	missingData := false
	for i := 0; i < k; i++ {
		if shards[i] == nil {
			missingData = true
			break
		}
	}
	if !missingData {
		// Every data shard is present; coding shards (if any are missing)
		// are cheaper to regenerate directly than to invert a matrix for.
		return c.fillCoding(shards, cfg, shardSize)
	}

	gen, err := c.generatorMatrix(cfg)
	if err != nil {
		return err
	}
	use := present[:k]
	sub := gen.subMatrixRows(use)
	subInv, err := sub.invert()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrErasureReconstructionFailed, err)
	}

	recovered := make(matrix, k)
	for i := range recovered {
		recovered[i] = make([]byte, shardSize)
	}
	for row := 0; row < k; row++ {
		for b := 0; b < shardSize; b++ {
			var sum byte
			for col, srcRow := range use {
				sum = gfAdd(sum, gfMul(subInv[row][col], shards[srcRow][b]))
			}
			recovered[row][b] = sum
		}
	}
	for i := 0; i < k; i++ {
		if shards[i] == nil {
			shards[i] = recovered[i]
		}
	}
	return c.fillCoding(shards, cfg, shardSize)
}

func (c vandermondeCoder) fillCoding(shards [][]byte, cfg Config, shardSize int) error {
	k, n := cfg.DataCount, cfg.shardCount()
	needsFill := false
	for i := k; i < n; i++ {
		if shards[i] == nil {
			needsFill = true
			break
		}
	}
	if !needsFill {
		return nil
	}
	gen, err := c.generatorMatrix(cfg)
	if err != nil {
		return err
	}
	for row := k; row < n; row++ {
		if shards[row] != nil {
			continue
		}
		coding := make([]byte, shardSize)
		for col := 0; col < k; col++ {
			factor := gen[row][col]
			if factor == 0 {
				continue
			}
			for b := 0; b < shardSize; b++ {
				coding[b] = gfAdd(coding[b], gfMul(factor, shards[col][b]))
			}
		}
		shards[row] = coding
	}
	return nil
}
