package vector

import (
	"math"

	"github.com/hyperjump/holokernel/pkg/utils"
)

// InnerProduct returns the inner product of two vectors.
func InnerProduct(a, b *Vector) float64 {
	return utils.Dot(a.Data[:], b.Data[:])
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x *Vector) float64 {
	return math.Sqrt(utils.Dot(x.Data[:], x.Data[:]))
}

// Cosine returns the cosine similarity of a and b in [-1, 1], or 0 if either is all zero.
// Retrieval never uses it; the store matches on exact fingerprint only.
func Cosine(a, b *Vector) float64 {
	x := make([]float32, Dimensions)
	y := make([]float32, Dimensions)
	copy(x, a.Data[:])
	copy(y, b.Data[:])
	utils.NormalizeL2(x)
	utils.NormalizeL2(y)
	return utils.Clamp(utils.Dot(x, y), -1, 1)
}
