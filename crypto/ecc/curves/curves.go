// Package curves maps curve names to their ecc.Point implementation.
package curves

import (
	"fmt"

	"github.com/vocdoni/confidential-fundraiser/crypto/ecc"
	"github.com/vocdoni/confidential-fundraiser/crypto/ecc/bn254"
)

// CurveTypeBN254 is the G1 group of BN254, the only curve the network
// key lives on.
const CurveTypeBN254 = bn254.CurveType

// Supported reports whether curveType names an implemented curve.
func Supported(curveType string) bool {
	return curveType == CurveTypeBN254
}

// New creates a new instance of a Curve implementation based on the provided type string.
// If the type is not supported, it will panic.
func New(curveType string) ecc.Point {
	switch curveType {
	case CurveTypeBN254:
		return bn254.New()
	default:
		panic(fmt.Sprintf("unsupported curve type: %s", curveType))
	}
}

// Parse decodes a point of the given curve.
func Parse(curveType string, data []byte) (ecc.Point, error) {
	if !Supported(curveType) {
		return nil, fmt.Errorf("unsupported curve type: %q", curveType)
	}
	p := New(curveType)
	if err := p.Unmarshal(data); err != nil {
		return nil, err
	}
	return p, nil
}
