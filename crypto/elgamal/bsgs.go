package elgamal

import (
	"errors"
	"math"
	"math/big"
	"sync"

	"github.com/vocdoni/confidential-fundraiser/crypto/ecc"
)

// ErrOutOfRange is returned by the decoder when the message point does not
// correspond to any value in [0, max].
var ErrOutOfRange = errors.New("plaintext out of decodable range")

// Decoder solves M = x*G for x in [0, max] using the baby-step giant-step
// algorithm. The baby step table is built on first use and shared by all
// subsequent calls, so a single Decoder should be kept per process.
type Decoder struct {
	curve ecc.Point
	max   uint64
	steps uint64

	once      sync.Once
	babySteps map[string]uint64
	giant     ecc.Point
}

// NewDecoder returns a decoder for plaintexts in [0, max] on the curve of
// the given point.
func NewDecoder(curve ecc.Point, max uint64) *Decoder {
	return &Decoder{
		curve: curve.New(),
		max:   max,
		steps: uint64(math.Sqrt(float64(max))) + 1,
	}
}

// Max returns the largest plaintext the decoder can recover.
func (d *Decoder) Max() uint64 {
	return d.max
}

func (d *Decoder) init() {
	d.babySteps = make(map[string]uint64, d.steps)
	g := d.curve.New()
	g.SetGenerator()
	step := d.curve.New()
	step.SetZero()
	for j := uint64(0); j < d.steps; j++ {
		d.babySteps[string(step.Marshal())] = j
		step.Add(step, g)
	}
	// giant = -(steps*G)
	d.giant = d.curve.New()
	d.giant.ScalarBaseMult(new(big.Int).SetUint64(d.steps))
	d.giant.Neg(d.giant)
}

// Decode returns x such that m = x*G and 0 <= x <= max.
func (d *Decoder) Decode(m ecc.Point) (uint64, error) {
	d.once.Do(d.init)
	current := m.New()
	current.Set(m)
	for i := uint64(0); i <= d.steps; i++ {
		if j, ok := d.babySteps[string(current.Marshal())]; ok {
			x := i*d.steps + j
			if x > d.max {
				return 0, ErrOutOfRange
			}
			return x, nil
		}
		current.Add(current, d.giant)
	}
	return 0, ErrOutOfRange
}
