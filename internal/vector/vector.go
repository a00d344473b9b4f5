// Package vector provides the fixed-dimension holographic vector and its sparse encoder.
package vector

import (
	"github.com/hyperjump/holokernel/internal/signature"
)

// Dimensions is the fixed length of every vector.
const Dimensions = 512

const (
	lcgMultiplier uint32 = 1103515245
	lcgIncrement  uint32 = 12345
	lcgMask       uint32 = 0x7FFFFFFF // mod 2^31

	// A dimension is active when the generator state is divisible by activationModulus.
	activationModulus = 10
)

// Vector is a sparse holographic encoding of a byte span. It is a value type:
// assigning a Vector copies its components.
//
// An active dimension may still hold 0.0 (generator state 1000 mod 2000), so activity
// is tracked in a mask rather than inferred from Data.
type Vector struct {
	Data      [Dimensions]float32
	Signature signature.Fingerprint
	Active    uint16
	Valid     bool

	mask [Dimensions / 64]uint64
}

// Encode expands the fingerprint of data into a sparse vector. The generator is an LCG
// seeded with the fingerprint and advanced once per dimension; roughly one in ten
// dimensions is active, with a value in [-1, 1) at 0.01 granularity.
func Encode(data []byte) Vector {
	return FromFingerprint(signature.Sum(data))
}

// EncodeString is Encode over the bytes of s.
func EncodeString(s string) Vector {
	return FromFingerprint(signature.SumString(s))
}

// FromFingerprint builds the vector for an already computed fingerprint.
func FromFingerprint(fp signature.Fingerprint) Vector {
	var v Vector
	seed := uint32(fp)
	for i := 0; i < Dimensions; i++ {
		seed = (seed*lcgMultiplier + lcgIncrement) & lcgMask
		if seed%activationModulus != 0 {
			continue
		}
		v.Data[i] = float32(int32(seed%2000)-1000) / 1000
		v.mask[i/64] |= 1 << (i % 64)
		v.Active++
	}
	v.Signature = fp
	v.Valid = true
	return v
}

// IsActive reports whether dimension i was activated by the encoder.
func (v *Vector) IsActive(i int) bool {
	if i < 0 || i >= Dimensions {
		return false
	}
	return v.mask[i/64]&(1<<(i%64)) != 0
}

// ActiveIndices lists the active dimensions in order.
func (v *Vector) ActiveIndices() []int {
	out := make([]int, 0, v.Active)
	for i := 0; i < Dimensions; i++ {
		if v.IsActive(i) {
			out = append(out, i)
		}
	}
	return out
}

// Component is one active dimension of a vector.
type Component struct {
	Index int     `json:"index"`
	Value float32 `json:"value"`
}

// Components returns the active dimensions with their values.
func (v *Vector) Components() []Component {
	out := make([]Component, 0, v.Active)
	for _, i := range v.ActiveIndices() {
		out = append(out, Component{Index: i, Value: v.Data[i]})
	}
	return out
}

// Density is the fraction of active dimensions.
func (v *Vector) Density() float64 {
	return float64(v.Active) / Dimensions
}
