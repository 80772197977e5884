// Package ethereum provides the wallet primitives used across the node and
// its clients: secp256k1 key management, EIP-191 personal signatures,
// EIP-712 typed data signatures and address recovery.
package ethereum

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// SignatureLength is the size of an ECDSA signature in [R || S || V] form.
const SignatureLength = ethcrypto.SignatureLength

// ErrNoPrivateKey is returned when signing with keys that have not been
// generated or imported.
var ErrNoPrivateKey = errors.New("no private key available")

// SignKeys holds a secp256k1 key pair.
type SignKeys struct {
	Public  ecdsa.PublicKey
	Private *ecdsa.PrivateKey
}

// NewSignKeys returns an empty SignKeys, to be filled by Generate or
// AddHexKey.
func NewSignKeys() *SignKeys {
	return &SignKeys{}
}

// Generate creates a new random key pair.
func (k *SignKeys) Generate() error {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return err
	}
	k.Private = key
	k.Public = key.PublicKey
	return nil
}

// AddHexKey imports a hex encoded private key, with or without 0x prefix.
func (k *SignKeys) AddHexKey(privHex string) error {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	k.Private = key
	k.Public = key.PublicKey
	return nil
}

// HexString returns the hex encoded compressed public key and the private
// key.
func (k *SignKeys) HexString() (string, string) {
	if k.Private == nil {
		return "", ""
	}
	pub := hex.EncodeToString(ethcrypto.CompressPubkey(&k.Public))
	priv := hex.EncodeToString(ethcrypto.FromECDSA(k.Private))
	return pub, priv
}

// PublicKey returns the uncompressed public key bytes.
func (k *SignKeys) PublicKey() []byte {
	return ethcrypto.FromECDSAPub(&k.Public)
}

// Address returns the Ethereum address of the key pair.
func (k *SignKeys) Address() common.Address {
	return ethcrypto.PubkeyToAddress(k.Public)
}

// AddressString returns the checksummed hex address.
func (k *SignKeys) AddressString() string {
	return k.Address().Hex()
}

// SignEthereum signs the message following EIP-191 (personal_sign). The
// returned signature has V in {0, 1}.
func (k *SignKeys) SignEthereum(message []byte) ([]byte, error) {
	if k.Private == nil {
		return nil, ErrNoPrivateKey
	}
	return ethcrypto.Sign(accounts.TextHash(message), k.Private)
}

// SignTypedData signs the EIP-712 digest of the typed data.
func (k *SignKeys) SignTypedData(td apitypes.TypedData) ([]byte, error) {
	if k.Private == nil {
		return nil, ErrNoPrivateKey
	}
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("cannot hash typed data: %w", err)
	}
	return ethcrypto.Sign(digest, k.Private)
}

// AddrFromPublicKey returns the address of an uncompressed or compressed
// public key.
func AddrFromPublicKey(pubKey []byte) (common.Address, error) {
	if len(pubKey) == 33 {
		pub, err := ethcrypto.DecompressPubkey(pubKey)
		if err != nil {
			return common.Address{}, err
		}
		return ethcrypto.PubkeyToAddress(*pub), nil
	}
	pub, err := ethcrypto.UnmarshalPubkey(pubKey)
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// AddrFromSignature recovers the address that produced an EIP-191 signature
// over message.
func AddrFromSignature(message, signature []byte) (common.Address, error) {
	return recoverAddress(accounts.TextHash(message), signature)
}

// AddrFromTypedDataSignature recovers the address that signed the EIP-712
// digest of td.
func AddrFromTypedDataSignature(td apitypes.TypedData, signature []byte) (common.Address, error) {
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Address{}, fmt.Errorf("cannot hash typed data: %w", err)
	}
	return recoverAddress(digest, signature)
}

func recoverAddress(hash, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	// wallets produce V in {27, 28}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("cannot recover signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
