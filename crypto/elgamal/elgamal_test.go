package elgamal

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-fundraiser/crypto/ecc/bn254"
)

const testMaxMessage = 1 << 16

func TestGenerateKey(t *testing.T) {
	c := qt.New(t)
	curve := bn254.New()

	publicKey, privateKey, err := GenerateKey(curve)
	c.Assert(err, qt.IsNil)
	c.Assert(privateKey.Sign(), qt.Equals, 1)

	// publicKey = privateKey * G
	testPoint := curve.New()
	testPoint.SetGenerator()
	testPoint.ScalarMult(testPoint, privateKey)
	c.Assert(testPoint.Equal(publicKey), qt.IsTrue)
}

func TestEncryptDecrypt(t *testing.T) {
	c := qt.New(t)
	publicKey, privateKey, err := GenerateKey(bn254.New())
	c.Assert(err, qt.IsNil)
	decoder := NewDecoder(publicKey, testMaxMessage)

	for _, m := range []uint64{0, 1, 42, 999, testMaxMessage} {
		msg := new(big.Int).SetUint64(m)
		c1, c2, k, err := Encrypt(publicKey, msg)
		c.Assert(err, qt.IsNil)
		c.Assert(CheckK(c1, k), qt.IsTrue)

		got, err := Decrypt(privateKey, c1, c2, decoder)
		c.Assert(err, qt.IsNil)
		c.Assert(got.Uint64(), qt.Equals, m)
	}
}

func TestDecodeOutOfRange(t *testing.T) {
	c := qt.New(t)
	publicKey, privateKey, err := GenerateKey(bn254.New())
	c.Assert(err, qt.IsNil)
	decoder := NewDecoder(publicKey, 100)

	c1, c2, _, err := Encrypt(publicKey, big.NewInt(101))
	c.Assert(err, qt.IsNil)
	_, err = Decrypt(privateKey, c1, c2, decoder)
	c.Assert(err, qt.ErrorIs, ErrOutOfRange)

	// negative values wrap around the group order
	c1, c2, _, err = Encrypt(publicKey, big.NewInt(-1))
	c.Assert(err, qt.IsNil)
	_, err = Decrypt(privateKey, c1, c2, decoder)
	c.Assert(err, qt.ErrorIs, ErrOutOfRange)
}

func TestTrivialEncryption(t *testing.T) {
	c := qt.New(t)
	publicKey, privateKey, err := GenerateKey(bn254.New())
	c.Assert(err, qt.IsNil)

	c1, c2 := EncryptWithK(publicKey, big.NewInt(0), big.NewInt(0))
	c.Assert(c1.IsZero(), qt.IsTrue)
	c.Assert(c2.IsZero(), qt.IsTrue)

	got, err := Decrypt(privateKey, c1, c2, NewDecoder(publicKey, 10))
	c.Assert(err, qt.IsNil)
	c.Assert(got.Sign(), qt.Equals, 0)
}
