// Package bn254 implements the ecc.Point interface over the G1 group of the
// BN254 curve, backed by gnark-crypto.
package bn254

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"
	curve "github.com/vocdoni/confidential-fundraiser/crypto/ecc"
	"github.com/vocdoni/confidential-fundraiser/types"
)

const CurveType = "bn254"

// PointSize is the size in bytes of a marshaled (uncompressed) G1 point.
const PointSize = bn254.SizeOfG1AffineUncompressed

var generator bn254.G1Affine

func init() {
	_, _, generator, _ = bn254.Generators()
}

// G1 is the affine representation of a G1 group element.
type G1 struct {
	inner *bn254.G1Affine
}

// New returns the point at infinity.
func New() *G1 {
	return &G1{inner: new(bn254.G1Affine)}
}

func (g *G1) New() curve.Point {
	return New()
}

func (g *G1) Order() *big.Int {
	return fr.Modulus()
}

func (g *G1) Add(a, b curve.Point) {
	temp := new(bn254.G1Affine)
	temp.Add(a.(*G1).inner, b.(*G1).inner)
	*g.inner = *temp
}

func (g *G1) ScalarMult(a curve.Point, scalar *big.Int) {
	temp := new(bn254.G1Affine)
	temp.ScalarMultiplication(a.(*G1).inner, scalar)
	*g.inner = *temp
}

func (g *G1) ScalarBaseMult(scalar *big.Int) {
	g.inner.ScalarMultiplication(&generator, scalar)
}

func (g *G1) Marshal() []byte {
	return g.inner.Marshal()
}

func (g *G1) Unmarshal(buf []byte) error {
	if g.inner == nil {
		g.inner = new(bn254.G1Affine)
	}
	if _, err := g.inner.SetBytes(buf); err != nil {
		return fmt.Errorf("invalid bn254 point: %w", err)
	}
	return nil
}

func (g *G1) MarshalJSON() ([]byte, error) {
	x, y := g.Point()
	return json.Marshal([]types.BigInt{types.BigInt(*x), types.BigInt(*y)})
}

func (g *G1) UnmarshalJSON(buf []byte) error {
	var coords []types.BigInt
	if err := json.Unmarshal(buf, &coords); err != nil {
		return err
	}
	if len(coords) != 2 {
		return fmt.Errorf("expected 2 coordinates, got %d", len(coords))
	}
	g.setCoords(coords[0].MathBigInt(), coords[1].MathBigInt())
	return nil
}

func (g *G1) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(g.Marshal())
}

func (g *G1) UnmarshalCBOR(buf []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(buf, &raw); err != nil {
		return err
	}
	return g.Unmarshal(raw)
}

func (g *G1) Equal(a curve.Point) bool {
	return g.inner.Equal(a.(*G1).inner)
}

func (g *G1) Neg(a curve.Point) {
	g.inner.Neg(a.(*G1).inner)
}

func (g *G1) SetZero() {
	g.inner.X.SetZero()
	g.inner.Y.SetZero()
}

func (g *G1) IsZero() bool {
	return g.inner.IsInfinity()
}

func (g *G1) Set(a curve.Point) {
	g.inner.Set(a.(*G1).inner)
}

func (g *G1) SetGenerator() {
	g.inner.Set(&generator)
}

func (g *G1) String() string {
	return fmt.Sprintf("%x", g.Marshal())
}

func (g *G1) Point() (*big.Int, *big.Int) {
	return g.inner.X.BigInt(new(big.Int)), g.inner.Y.BigInt(new(big.Int))
}

func (g *G1) SetPoint(x, y *big.Int) curve.Point {
	g.setCoords(x, y)
	return g
}

func (g *G1) setCoords(x, y *big.Int) {
	if g.inner == nil {
		g.inner = new(bn254.G1Affine)
	}
	g.inner.X.SetBigInt(x)
	g.inner.Y.SetBigInt(y)
}

func (g *G1) Type() string {
	return CurveType
}
