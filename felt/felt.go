// Package felt implements Felt, the 252-bit Stark field element that every
// identifier, hash output and tree index in the node is built from.
package felt

import (
	"fmt"

	"github.com/holiman/uint256"
)

// primeHex is the Stark field modulus: 2^251 + 17*2^192 + 1.
const primeHex = "0x800000000000011000000000000000000000000000000000000000000000001"

var prime = uint256.MustFromHex(primeHex)

// Felt is an element of the Stark field, reduced modulo prime on every
// arithmetic operation. The zero value is the field element 0.
type Felt struct {
	v uint256.Int
}

// Zero is the additive identity.
func Zero() Felt { return Felt{} }

// One is the multiplicative identity.
func One() Felt { return FromUint64(1) }

// RootOfEmptyTree is the sentinel HashOutput denoting an empty Patricia
// subtree (§3.1).
var RootOfEmptyTree = Zero()

// FromUint64 builds a Felt from a small unsigned integer.
func FromUint64(v uint64) Felt {
	var f Felt
	f.v.SetUint64(v)
	return f
}

// FromBytesBE builds a Felt by interpreting b as a big-endian integer,
// reduced modulo the field prime.
func FromBytesBE(b []byte) Felt {
	var f Felt
	f.v.SetBytes(b)
	f.v.Mod(&f.v, prime)
	return f
}

// FromBigEndianHex parses a "0x..."-prefixed hex string.
func FromBigEndianHex(s string) (Felt, error) {
	v, err := uint256.FromHex(s)
	if err != nil {
		return Felt{}, fmt.Errorf("felt: invalid hex %q: %w", s, err)
	}
	v.Mod(v, prime)
	return Felt{v: *v}, nil
}

// Bytes returns the big-endian 32-byte representation.
func (f Felt) Bytes() [32]byte {
	return f.v.Bytes32()
}

// Add returns (f + other) mod prime.
func (f Felt) Add(other Felt) Felt {
	var r Felt
	r.v.AddMod(&f.v, &other.v, prime)
	return r
}

// Sub returns (f - other) mod prime.
func (f Felt) Sub(other Felt) Felt {
	var r Felt
	if f.v.Lt(&other.v) {
		var neg uint256.Int
		neg.Sub(prime, &other.v)
		r.v.AddMod(&f.v, &neg, prime)
		return r
	}
	r.v.Sub(&f.v, &other.v)
	r.v.Mod(&r.v, prime)
	return r
}

// Mul returns (f * other) mod prime.
func (f Felt) Mul(other Felt) Felt {
	var r Felt
	r.v.MulMod(&f.v, &other.v, prime)
	return r
}

// IsZero reports whether f is the additive identity.
func (f Felt) IsZero() bool { return f.v.IsZero() }

// Equal reports whether f and other represent the same field element.
func (f Felt) Equal(other Felt) bool { return f.v.Eq(&other.v) }

// Cmp returns -1, 0 or +1 comparing f and other as unsigned integers. Felts
// are totally ordered this way (§3.1), which is used for deterministic
// iteration (e.g. sorted leaf indices) but carries no field-theoretic
// meaning.
func (f Felt) Cmp(other Felt) int { return f.v.Cmp(&other.v) }

// Bit returns bit i (0 = least significant) of the canonical representation,
// used to walk a NodeIndex's bit-path in the Patricia tree.
func (f Felt) Bit(i uint) bool { return f.v.Bit(i) }

func (f Felt) String() string { return f.v.Hex() }
