package elgamal

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/arbo"
	"github.com/vocdoni/confidential-fundraiser/crypto/ecc"
	"github.com/vocdoni/confidential-fundraiser/crypto/ecc/bn254"
)

const sizeScalar = 32

// SizeProof is the number of bytes of a serialized InputProof.
const SizeProof = 2*bn254.PointSize + 2*sizeScalar

// ErrInvalidProof is returned when an input proof does not verify against
// the ciphertext and binding context.
var ErrInvalidProof = errors.New("invalid input proof")

// InputProof is a non-interactive proof of knowledge of the randomness k and
// the message m of a ciphertext (C1 = k*G, C2 = m*G + k*PK). The challenge is
// derived from a caller supplied context, so a proof produced for one
// (contract, sender) pair does not verify for another.
type InputProof struct {
	A1 ecc.Point
	A2 ecc.Point
	Z1 *big.Int
	Z2 *big.Int
}

// Prove builds an InputProof for the ciphertext ct, which must encrypt msg
// with randomness k under publicKey.
func Prove(publicKey ecc.Point, ct *Ciphertext, msg, k *big.Int, context []byte) (*InputProof, error) {
	order := publicKey.Order()
	a, err := RandK(publicKey)
	if err != nil {
		return nil, err
	}
	b, err := RandK(publicKey)
	if err != nil {
		return nil, err
	}
	// A1 = a*G, A2 = b*G + a*PK
	a1, a2 := EncryptWithK(publicKey, b, a)
	e := challenge(order, context, publicKey, ct, a1, a2)

	z1 := new(big.Int).Mul(e, k)
	z1.Add(z1, a).Mod(z1, order)
	z2 := new(big.Int).Mul(e, new(big.Int).Mod(msg, order))
	z2.Add(z2, b).Mod(z2, order)
	return &InputProof{A1: a1, A2: a2, Z1: z1, Z2: z2}, nil
}

// Verify checks the proof against the ciphertext, public key and context.
func (p *InputProof) Verify(publicKey ecc.Point, ct *Ciphertext, context []byte) error {
	order := publicKey.Order()
	if p.Z1.Cmp(order) >= 0 || p.Z2.Cmp(order) >= 0 {
		return ErrInvalidProof
	}
	e := challenge(order, context, publicKey, ct, p.A1, p.A2)

	// (z1*G, z2*G + z1*PK) must equal (A1 + e*C1, A2 + e*C2)
	lhs1, lhs2 := EncryptWithK(publicKey, p.Z2, p.Z1)
	rhs1 := publicKey.New()
	rhs1.ScalarMult(ct.C1, e)
	rhs1.Add(rhs1, p.A1)
	rhs2 := publicKey.New()
	rhs2.ScalarMult(ct.C2, e)
	rhs2.Add(rhs2, p.A2)
	if !lhs1.Equal(rhs1) || !lhs2.Equal(rhs2) {
		return ErrInvalidProof
	}
	return nil
}

// Serialize encodes the proof as A1 || A2 || Z1 || Z2, scalars as 32 byte
// little-endian.
func (p *InputProof) Serialize() []byte {
	buf := make([]byte, 0, SizeProof)
	buf = append(buf, p.A1.Marshal()...)
	buf = append(buf, p.A2.Marshal()...)
	buf = append(buf, arbo.BigIntToBytes(sizeScalar, p.Z1)...)
	return append(buf, arbo.BigIntToBytes(sizeScalar, p.Z2)...)
}

// DeserializeProof decodes a proof produced by Serialize.
func DeserializeProof(data []byte) (*InputProof, error) {
	if len(data) != SizeProof {
		return nil, fmt.Errorf("invalid proof length: got %d bytes, expected %d bytes", len(data), SizeProof)
	}
	p := &InputProof{A1: bn254.New(), A2: bn254.New()}
	if err := p.A1.Unmarshal(data[:bn254.PointSize]); err != nil {
		return nil, fmt.Errorf("invalid proof commitment: %w", err)
	}
	if err := p.A2.Unmarshal(data[bn254.PointSize : 2*bn254.PointSize]); err != nil {
		return nil, fmt.Errorf("invalid proof commitment: %w", err)
	}
	offset := 2 * bn254.PointSize
	p.Z1 = arbo.BytesToBigInt(data[offset : offset+sizeScalar])
	p.Z2 = arbo.BytesToBigInt(data[offset+sizeScalar:])
	return p, nil
}

// challenge computes the Fiat-Shamir challenge
// keccak256(context || PK || C1 || C2 || A1 || A2) reduced to the scalar
// field.
func challenge(order *big.Int, context []byte, publicKey ecc.Point, ct *Ciphertext, a1, a2 ecc.Point) *big.Int {
	h := crypto.Keccak256(
		context,
		publicKey.Marshal(),
		ct.C1.Marshal(),
		ct.C2.Marshal(),
		a1.Marshal(),
		a2.Marshal(),
	)
	return ecc.BigToFF(order, new(big.Int).SetBytes(h))
}
