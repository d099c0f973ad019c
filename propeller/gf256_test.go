package propeller

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGFMulDivRoundTrip(t *testing.T) {
	for a := 1; a < 256; a++ {
		for b := 1; b < 256; b += 37 {
			product := gfMul(byte(a), byte(b))
			require.Equal(t, byte(a), gfDiv(product, byte(b)))
		}
	}
}

func TestGFMulZero(t *testing.T) {
	require.Equal(t, byte(0), gfMul(0, 42))
	require.Equal(t, byte(0), gfMul(42, 0))
}

func TestMatrixInvertRoundTrip(t *testing.T) {
	m := vandermonde(4, 4)
	inv, err := m.invert()
	require.NoError(t, err)
	product := m.multiply(inv)
	require.True(t, product.equalTo(identityMatrix(4)))
}

func (m matrix) equalTo(other matrix) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if len(m[i]) != len(other[i]) {
			return false
		}
		for j := range m[i] {
			if m[i][j] != other[i][j] {
				return false
			}
		}
	}
	return true
}
