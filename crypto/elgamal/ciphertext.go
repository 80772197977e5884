package elgamal

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/confidential-fundraiser/crypto/ecc"
	"github.com/vocdoni/confidential-fundraiser/crypto/ecc/bn254"
	"github.com/vocdoni/confidential-fundraiser/types"
)

// SizeCiphertext is the number of bytes of a serialized ciphertext: two
// uncompressed points.
const SizeCiphertext = 2 * bn254.PointSize

// Ciphertext represents an ElGamal encrypted message with homomorphic
// properties. It encapsulates the two points of a ciphertext.
type Ciphertext struct {
	C1 ecc.Point
	C2 ecc.Point
}

// NewCiphertext creates a new Ciphertext on the same curve as the given
// point, set to the identity in both components (the trivial encryption of
// zero).
func NewCiphertext(curve ecc.Point) *Ciphertext {
	z := &Ciphertext{C1: curve.New(), C2: curve.New()}
	z.C1.SetZero()
	z.C2.SetZero()
	return z
}

// Encrypt encrypts a message using the public key provided as elliptic curve
// point. The randomness k can be provided or nil to generate a new one.
func (z *Ciphertext) Encrypt(message *big.Int, publicKey ecc.Point, k *big.Int) (*Ciphertext, error) {
	var err error
	if k == nil {
		if k, err = RandK(publicKey); err != nil {
			return nil, fmt.Errorf("elgamal encryption failed: %w", err)
		}
	}
	z.C1, z.C2 = EncryptWithK(publicKey, message, k)
	return z, nil
}

// Add adds two Ciphertext and stores the result in z, which is also
// returned.
func (z *Ciphertext) Add(x, y *Ciphertext) *Ciphertext {
	z.C1.Add(x.C1, y.C1)
	z.C2.Add(x.C2, y.C2)
	return z
}

// Rerandomize adds a fresh encryption of zero to z, so the result decrypts
// to the same message but is unlinkable to the input.
func (z *Ciphertext) Rerandomize(publicKey ecc.Point) error {
	zero, err := NewCiphertext(publicKey).Encrypt(big.NewInt(0), publicKey, nil)
	if err != nil {
		return err
	}
	z.Add(z, zero)
	return nil
}

// Set copies x into z.
func (z *Ciphertext) Set(x *Ciphertext) *Ciphertext {
	z.C1.Set(x.C1)
	z.C2.Set(x.C2)
	return z
}

// Equal reports whether both ciphertexts have the same points.
func (z *Ciphertext) Equal(x *Ciphertext) bool {
	return z.C1.Equal(x.C1) && z.C2.Equal(x.C2)
}

// Serialize returns a slice of SizeCiphertext bytes with C1 and C2 in
// uncompressed form.
func (z *Ciphertext) Serialize() []byte {
	buf := make([]byte, 0, SizeCiphertext)
	buf = append(buf, z.C1.Marshal()...)
	return append(buf, z.C2.Marshal()...)
}

// Deserialize reconstructs a Ciphertext from a slice of bytes produced by
// Serialize. Both points are checked to be on the curve.
func (z *Ciphertext) Deserialize(data []byte) error {
	if len(data) != SizeCiphertext {
		return fmt.Errorf("invalid input length: got %d bytes, expected %d bytes", len(data), SizeCiphertext)
	}
	if err := z.C1.Unmarshal(data[:bn254.PointSize]); err != nil {
		return fmt.Errorf("invalid c1: %w", err)
	}
	if err := z.C2.Unmarshal(data[bn254.PointSize:]); err != nil {
		return fmt.Errorf("invalid c2: %w", err)
	}
	return nil
}

// MarshalText encodes the ciphertext as hex, so it travels as a plain string
// in JSON payloads.
func (z *Ciphertext) MarshalText() ([]byte, error) {
	return []byte(types.HexBytes(z.Serialize()).String()), nil
}

func (z *Ciphertext) UnmarshalText(data []byte) error {
	raw, err := types.HexStringToHexBytes(string(data))
	if err != nil {
		return err
	}
	if z.C1 == nil || z.C2 == nil {
		z.C1, z.C2 = bn254.New(), bn254.New()
	}
	return z.Deserialize(raw)
}

// String returns a string representation of the Ciphertext.
func (z *Ciphertext) String() string {
	if z == nil || z.C1 == nil || z.C2 == nil {
		return "{C1: nil, C2: nil}"
	}
	return fmt.Sprintf("{C1: %s, C2: %s}", z.C1.String(), z.C2.String())
}
