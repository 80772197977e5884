package ethereum

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	qt "github.com/frankban/quicktest"
)

func TestSignKeysGeneration(t *testing.T) {
	c := qt.New(t)
	t.Parallel()

	s := NewSignKeys()
	c.Assert(s.Generate(), qt.IsNil)

	pub, priv := s.HexString()
	c.Assert(pub, qt.Not(qt.Equals), "")
	c.Assert(priv, qt.Not(qt.Equals), "")

	// Test key import
	imported := NewSignKeys()
	c.Assert(imported.AddHexKey(priv), qt.IsNil)

	importedPub, importedPriv := imported.HexString()
	c.Assert(importedPub, qt.Equals, pub)
	c.Assert(importedPriv, qt.Equals, priv)
}

func TestEthereumSigning(t *testing.T) {
	c := qt.New(t)
	t.Parallel()

	// Test vector with known private key and expected signature
	testVector := struct {
		privKey           string
		message           []byte
		expectedSignature string
	}{
		privKey:           "fad9c8855b740a0b7ed4c221dbad0f33a83a49cad6b3fe8d5817ac83d38b6a19",
		message:           []byte("hello"),
		expectedSignature: "a0d0ebc374d2a4d6357eaca3da2f5f3ff547c3560008206bc234f9032a866ace6279ffb4093fb39c8bbc39021f6a5c36ef0e813c8c94f325a53f4f395a5c82de01",
	}

	// Create signing keys from known private key
	s := NewSignKeys()
	c.Assert(s.AddHexKey(testVector.privKey), qt.IsNil)

	// Verify private key was imported correctly
	_, priv := s.HexString()
	c.Assert(priv, qt.Equals, testVector.privKey)

	// Sign message and verify signature matches expected
	signature, err := s.SignEthereum(testVector.message)
	c.Assert(err, qt.IsNil)

	expectedSig, err := hex.DecodeString(testVector.expectedSignature)
	c.Assert(err, qt.IsNil)
	c.Assert(signature, qt.DeepEquals, expectedSig)
}

func TestAddressRecovery(t *testing.T) {
	c := qt.New(t)
	t.Parallel()

	testCases := []struct {
		name    string
		message []byte
	}{
		{
			name:    "simple message",
			message: []byte("hello vocdoni"),
		},
		{
			name:    "different message",
			message: []byte("bye-bye vocdoni"),
		},
	}

	// Generate keys
	s := NewSignKeys()
	c.Assert(s.Generate(), qt.IsNil)

	// Get address from public key
	expectedAddr, err := AddrFromPublicKey(s.PublicKey())
	c.Assert(err, qt.IsNil)
	c.Assert(expectedAddr.String(), qt.Equals, s.AddressString())

	// Test address recovery from signatures of different messages
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := qt.New(t)

			signature, err := s.SignEthereum(tc.message)
			c.Assert(err, qt.IsNil)

			recoveredAddr, err := AddrFromSignature(tc.message, signature)
			c.Assert(err, qt.IsNil)
			c.Assert(recoveredAddr, qt.Equals, expectedAddr)
		})
	}
}

func TestTypedDataSignature(t *testing.T) {
	c := qt.New(t)
	t.Parallel()

	s := NewSignKeys()
	c.Assert(s.Generate(), qt.IsNil)

	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Greeting": {
				{Name: "text", Type: "string"},
				{Name: "amount", Type: "uint256"},
			},
		},
		PrimaryType: "Greeting",
		Domain: apitypes.TypedDataDomain{
			Name:    "Test",
			Version: "1",
			ChainId: math.NewHexOrDecimal256(1),
		},
		Message: apitypes.TypedDataMessage{
			"text":   "hello",
			"amount": "1250000",
		},
	}
	signature, err := s.SignTypedData(td)
	c.Assert(err, qt.IsNil)

	addr, err := AddrFromTypedDataSignature(td, signature)
	c.Assert(err, qt.IsNil)
	c.Assert(addr, qt.Equals, s.Address())

	// wallet style V values are accepted
	walletSig := append([]byte{}, signature...)
	walletSig[64] += 27
	addr, err = AddrFromTypedDataSignature(td, walletSig)
	c.Assert(err, qt.IsNil)
	c.Assert(addr, qt.Equals, s.Address())

	// a different message recovers a different address
	td.Message["amount"] = "1"
	addr, err = AddrFromTypedDataSignature(td, signature)
	c.Assert(err, qt.IsNil)
	c.Assert(addr, qt.Not(qt.Equals), s.Address())

	_, err = AddrFromTypedDataSignature(td, signature[:10])
	c.Assert(err, qt.ErrorMatches, "invalid signature length.*")

	_, err = NewSignKeys().SignEthereum([]byte("x"))
	c.Assert(err, qt.ErrorIs, ErrNoPrivateKey)
}
