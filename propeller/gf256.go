package propeller

import "errors"

// gf256 implements arithmetic in GF(2^8) with the reduction polynomial
// 0x11d, the same field every practical Reed-Solomon erasure coder (e.g.
// Backblaze's, or klauspost/reedsolomon) uses. No such library is present
// in the example pack's dependency surface, and §1 treats Reed-Solomon
// coding as an external primitive consumed through a narrow interface;
// this is a from-scratch placeholder implementation in that spirit,
// mirroring patricia/hash.go's Pedersen/Poseidon placeholders.

const gfPolynomial = 0x11d

var errFieldMatrixSingular = errors.New("propeller: singular coding matrix")

var gfExpTable [512]byte
var gfLogTable [256]byte

func init() {
	x := 1
	for i := 0; i < 255; i++ {
		gfExpTable[i] = byte(x)
		gfLogTable[x] = byte(i)
		x <<= 1
		if x&0x100 != 0 {
			x ^= gfPolynomial
		}
	}
	for i := 255; i < 512; i++ {
		gfExpTable[i] = gfExpTable[i-255]
	}
}

func gfAdd(a, b byte) byte { return a ^ b }

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfExpTable[int(gfLogTable[a])+int(gfLogTable[b])]
}

func gfDiv(a, b byte) byte {
	if a == 0 {
		return 0
	}
	// b == 0 is a caller bug (division by zero in GF(256)); every divisor
	// here comes from a matrix entry already known to be nonzero.
	diff := int(gfLogTable[a]) - int(gfLogTable[b])
	if diff < 0 {
		diff += 255
	}
	return gfExpTable[diff]
}

func gfPow(a byte, power int) byte {
	if power == 0 {
		return 1
	}
	if a == 0 {
		return 0
	}
	e := (int(gfLogTable[a]) * power) % 255
	if e < 0 {
		e += 255
	}
	return gfExpTable[e]
}

// matrix is a dense row-major GF(256) matrix.
type matrix [][]byte

func newMatrix(rows, cols int) matrix {
	m := make(matrix, rows)
	for i := range m {
		m[i] = make([]byte, cols)
	}
	return m
}

func identityMatrix(n int) matrix {
	m := newMatrix(n, n)
	for i := 0; i < n; i++ {
		m[i][i] = 1
	}
	return m
}

// vandermonde builds an rows x cols matrix with entry (i, j) = i^j, using
// row index 1-based (row 0 would be all-zero past column 0, which cannot
// appear in an invertible square submatrix).
func vandermonde(rows, cols int) matrix {
	m := newMatrix(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m[i][j] = gfPow(byte(i+1), j)
		}
	}
	return m
}

func (m matrix) rows() int { return len(m) }
func (m matrix) cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// multiply returns m * other.
func (m matrix) multiply(other matrix) matrix {
	out := newMatrix(m.rows(), other.cols())
	for i := 0; i < m.rows(); i++ {
		for j := 0; j < other.cols(); j++ {
			var sum byte
			for k := 0; k < m.cols(); k++ {
				sum = gfAdd(sum, gfMul(m[i][k], other[k][j]))
			}
			out[i][j] = sum
		}
	}
	return out
}

// invert returns the inverse of a square matrix via Gauss-Jordan
// elimination over GF(256), augmenting with the identity.
func (m matrix) invert() (matrix, error) {
	n := m.rows()
	aug := newMatrix(n, 2*n)
	for i := 0; i < n; i++ {
		copy(aug[i], m[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := -1
		for row := col; row < n; row++ {
			if aug[row][col] != 0 {
				pivot = row
				break
			}
		}
		if pivot == -1 {
			return nil, errFieldMatrixSingular
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		inv := gfDiv(1, aug[col][col])
		for k := 0; k < 2*n; k++ {
			aug[col][k] = gfMul(aug[col][k], inv)
		}

		for row := 0; row < n; row++ {
			if row == col || aug[row][col] == 0 {
				continue
			}
			factor := aug[row][col]
			for k := 0; k < 2*n; k++ {
				aug[row][k] = gfAdd(aug[row][k], gfMul(factor, aug[col][k]))
			}
		}
	}

	out := newMatrix(n, n)
	for i := 0; i < n; i++ {
		copy(out[i], aug[i][n:])
	}
	return out, nil
}

// subMatrixRows returns a new matrix containing only the given row
// indices, in order.
func (m matrix) subMatrixRows(rowIdx []int) matrix {
	out := make(matrix, len(rowIdx))
	for i, r := range rowIdx {
		out[i] = m[r]
	}
	return out
}
