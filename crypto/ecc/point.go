package ecc

import (
	"math/big"
)

// Point defines the common operations that can be performed on elliptic curve
// group elements. It represents the affine coordinates of a point on an
// elliptic curve and provides methods for arithmetic operations,
// serialization, and comparison.
type Point interface {
	// New returns a new elliptic curve point on the same curve.
	New() Point

	// Type returns the name of the curve.
	Type() string

	// Order returns the order of the elliptic curve group.
	Order() *big.Int

	// Add adds two elliptic curve group elements and stores the result in
	// the receiver.
	Add(a, b Point)

	// ScalarMult multiplies the group element a by the scalar value and
	// stores the result in the receiver.
	ScalarMult(a Point, scalar *big.Int)

	// ScalarBaseMult sets the receiver to scalar times the generator.
	ScalarBaseMult(scalar *big.Int)

	// Marshal serializes the elliptic curve element into a byte slice.
	Marshal() []byte

	// Unmarshal deserializes a byte slice into an elliptic curve element.
	// The input buf must represent a valid serialized point.
	Unmarshal(buf []byte) error

	// Equal checks if two elliptic curve elements are equal.
	Equal(a Point) bool

	// Neg sets the receiver to the inverse of a.
	Neg(a Point)

	// SetZero sets the elliptic curve element to the identity (point at
	// infinity).
	SetZero()

	// IsZero reports whether the element is the identity.
	IsZero() bool

	// Set sets the value of the receiver to be equal to another element.
	Set(a Point)

	// SetGenerator sets the elliptic curve element to the generator point.
	SetGenerator()

	// String returns the hexadecimal representation of the element.
	String() string

	// Point returns the X and Y coordinates of the elliptic curve element.
	Point() (*big.Int, *big.Int)

	// SetPoint sets the X and Y coordinates of the elliptic curve element.
	SetPoint(x, y *big.Int) Point
}
