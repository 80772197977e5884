// Package elgamal implements additively homomorphic (exponential) ElGamal
// encryption over an elliptic curve group, the discrete log decoder needed
// to recover small plaintexts and a proof of knowledge of the encrypted
// message used to validate externally produced ciphertexts.
package elgamal

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/vocdoni/confidential-fundraiser/crypto/ecc"
)

// RandK generates a random scalar in [1, order) to be used as encryption
// randomness or proof nonce.
func RandK(curve ecc.Point) (*big.Int, error) {
	for {
		k, err := rand.Int(rand.Reader, curve.Order())
		if err != nil {
			return nil, fmt.Errorf("failed to generate random k: %w", err)
		}
		if k.Sign() != 0 {
			return k, nil
		}
	}
}

// Encrypt encrypts a message using the public key provided as elliptic curve
// point. It generates a random k and returns the two points that represent
// the encrypted message and the random k used to encrypt it.
func Encrypt(publicKey ecc.Point, msg *big.Int) (ecc.Point, ecc.Point, *big.Int, error) {
	k, err := RandK(publicKey)
	if err != nil {
		return nil, nil, nil, err
	}
	c1, c2 := EncryptWithK(publicKey, msg, k)
	return c1, c2, k, nil
}

// EncryptWithK encrypts a message using the public key and the randomness k
// provided: C1 = k*G, C2 = msg*G + k*publicKey. A zero k produces the
// deterministic (trivial) encryption of msg.
func EncryptWithK(publicKey ecc.Point, msg, k *big.Int) (ecc.Point, ecc.Point) {
	order := publicKey.Order()
	m := new(big.Int).Mod(msg, order)
	c1 := publicKey.New()
	c1.ScalarBaseMult(k)
	s := publicKey.New()
	s.ScalarMult(publicKey, k)
	c2 := publicKey.New()
	c2.ScalarBaseMult(m)
	c2.Add(c2, s)
	return c1, c2
}

// GenerateKey generates a new public/private ElGamal encryption key pair.
func GenerateKey(curve ecc.Point) (publicKey ecc.Point, privateKey *big.Int, err error) {
	d, err := RandK(curve)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key scalar: %w", err)
	}
	return PublicKey(curve, d), d, nil
}

// PublicKey derives the public key point d*G of the private scalar d.
func PublicKey(curve ecc.Point, d *big.Int) ecc.Point {
	pub := curve.New()
	pub.ScalarBaseMult(d)
	return pub
}

// DecryptPoint returns the message point M = c2 - d*c1.
func DecryptPoint(privateKey *big.Int, c1, c2 ecc.Point) ecc.Point {
	dC1 := c1.New()
	dC1.ScalarMult(c1, privateKey)
	dC1.Neg(dC1)
	m := c2.New()
	m.Add(c2, dC1)
	return m
}

// Decrypt decrypts the ciphertext (c1, c2) with the private key and solves
// the discrete log of the message point using the decoder provided.
func Decrypt(privateKey *big.Int, c1, c2 ecc.Point, decoder *Decoder) (*big.Int, error) {
	msg, err := decoder.Decode(DecryptPoint(privateKey, c1, c2))
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(msg), nil
}

// CheckK checks if a given k was used to produce the ciphertext c1, that is
// c1 == k*G.
func CheckK(c1 ecc.Point, k *big.Int) bool {
	check := c1.New()
	check.ScalarBaseMult(k)
	return check.Equal(c1)
}
