// Package fhe is a local implementation of the homomorphic encryption
// coprocessor consumed by the token and the ledger. Encrypted values are
// exponential ElGamal ciphertexts under a network key, referenced by opaque
// handles and guarded by an access control list. Linear operations are
// evaluated homomorphically; comparisons and selections are evaluated by the
// coprocessor with the network key and always return fresh ciphertexts.
package fhe

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/confidential-fundraiser/crypto/ecc"
	"github.com/vocdoni/confidential-fundraiser/crypto/ecc/bn254"
	"github.com/vocdoni/confidential-fundraiser/crypto/elgamal"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/storage"
	"github.com/vocdoni/confidential-fundraiser/types"
	"github.com/vocdoni/confidential-fundraiser/util"
)

// DefaultMaxPlaintext is the largest plaintext accepted as encrypted input
// and recoverable by decryption.
const DefaultMaxPlaintext = 1 << 36

// MaxPlaintextLimit bounds the configurable maximum plaintext. The
// decryption table holds sqrt(max) points, 2^20 at this limit.
const MaxPlaintextLimit = 1 << 40

const handleSaltSize = 16

var (
	// ErrNotAllowed is returned when an address operates on a handle it has
	// no permission for.
	ErrNotAllowed = errors.New("handle access not allowed")
	// ErrInvalidProof is returned when an encrypted input proof does not
	// verify for the target contract and caller.
	ErrInvalidProof = errors.New("invalid encrypted input proof")
	// ErrUnknownHandle is returned when a handle has no registered
	// ciphertext.
	ErrUnknownHandle = errors.New("unknown handle")
	// ErrOutOfRange is returned when an encrypted input exceeds the maximum
	// plaintext.
	ErrOutOfRange = errors.New("encrypted value out of range")
)

// Coprocessor holds the network key and evaluates operations over the
// ciphertexts registered in storage.
type Coprocessor struct {
	publicKey  ecc.Point
	privateKey *big.Int
	decoder    *elgamal.Decoder
}

// New returns a coprocessor for the network private key. Values above
// maxPlaintext are rejected as inputs and cannot be decrypted. A zero
// maxPlaintext selects DefaultMaxPlaintext and larger values than
// MaxPlaintextLimit are lowered to it.
func New(privateKey *big.Int, maxPlaintext uint64) *Coprocessor {
	switch {
	case maxPlaintext == 0:
		maxPlaintext = DefaultMaxPlaintext
	case maxPlaintext > MaxPlaintextLimit:
		log.Warnw("max plaintext lowered to the limit", "requested", maxPlaintext, "limit", uint64(MaxPlaintextLimit))
		maxPlaintext = MaxPlaintextLimit
	}
	pub := elgamal.PublicKey(bn254.New(), privateKey)
	return &Coprocessor{
		publicKey:  pub,
		privateKey: privateKey,
		decoder:    elgamal.NewDecoder(pub, maxPlaintext),
	}
}

// PublicKey returns the network public key clients encrypt to.
func (c *Coprocessor) PublicKey() ecc.Point {
	return c.publicKey
}

// MaxPlaintext returns the largest value the coprocessor handles.
func (c *Coprocessor) MaxPlaintext() uint64 {
	return c.decoder.Max()
}

// InputContext returns the binding context of an encrypted input: the
// target contract followed by the caller address.
func InputContext(contract, caller common.Address) []byte {
	return append(contract.Bytes(), caller.Bytes()...)
}

// FromExternal verifies an externally encrypted input bound to (contract,
// caller), registers it and returns its handle, transiently allowed to
// contract.
func (c *Coprocessor) FromExternal(tx *storage.Tx, input *types.EncryptedInput, contract, caller common.Address) (types.Handle, error) {
	if input == nil {
		return types.Handle{}, fmt.Errorf("%w: empty input", ErrInvalidProof)
	}
	ct := elgamal.NewCiphertext(c.publicKey)
	if err := ct.Deserialize(input.Ciphertext); err != nil {
		return types.Handle{}, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	proof, err := elgamal.DeserializeProof(input.Proof)
	if err != nil {
		return types.Handle{}, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if err := proof.Verify(c.publicKey, ct, InputContext(contract, caller)); err != nil {
		return types.Handle{}, ErrInvalidProof
	}
	if _, err := c.decrypt(ct); err != nil {
		return types.Handle{}, ErrOutOfRange
	}
	h, err := c.register(tx, ct)
	if err != nil {
		return types.Handle{}, err
	}
	c.AllowTransient(tx, h, contract)
	log.Debugw("encrypted input accepted", "handle", h.String(), "contract", contract.Hex(), "caller", caller.Hex())
	return h, nil
}

// TrivialEncrypt registers the deterministic encryption of v, transiently
// allowed to caller.
func (c *Coprocessor) TrivialEncrypt(tx *storage.Tx, v uint64, caller common.Address) (types.Handle, error) {
	c1, c2 := elgamal.EncryptWithK(c.publicKey, new(big.Int).SetUint64(v), big.NewInt(0))
	h, err := c.register(tx, &elgamal.Ciphertext{C1: c1, C2: c2})
	if err != nil {
		return types.Handle{}, err
	}
	c.AllowTransient(tx, h, caller)
	return h, nil
}

// Add returns a handle to a + b. The zero handle counts as an encrypted
// zero. The result is transiently allowed to caller.
func (c *Coprocessor) Add(tx *storage.Tx, a, b types.Handle, caller common.Address) (types.Handle, error) {
	x, err := c.operand(tx, a, caller)
	if err != nil {
		return types.Handle{}, err
	}
	y, err := c.operand(tx, b, caller)
	if err != nil {
		return types.Handle{}, err
	}
	return c.result(tx, elgamal.NewCiphertext(c.publicKey).Add(x, y), caller)
}

// Sub returns a handle to a - b. The caller must ensure b <= a, otherwise
// the result wraps around the group order and cannot be decrypted.
func (c *Coprocessor) Sub(tx *storage.Tx, a, b types.Handle, caller common.Address) (types.Handle, error) {
	x, err := c.operand(tx, a, caller)
	if err != nil {
		return types.Handle{}, err
	}
	y, err := c.operand(tx, b, caller)
	if err != nil {
		return types.Handle{}, err
	}
	neg := elgamal.NewCiphertext(c.publicKey)
	neg.C1.Neg(y.C1)
	neg.C2.Neg(y.C2)
	return c.result(tx, neg.Add(x, neg), caller)
}

// Le returns an encrypted boolean (1 or 0) of a <= b.
func (c *Coprocessor) Le(tx *storage.Tx, a, b types.Handle, caller common.Address) (types.Handle, error) {
	x, err := c.plaintext(tx, a, caller)
	if err != nil {
		return types.Handle{}, err
	}
	y, err := c.plaintext(tx, b, caller)
	if err != nil {
		return types.Handle{}, err
	}
	var v uint64
	if x <= y {
		v = 1
	}
	return c.encrypt(tx, v, caller)
}

// Select returns a fresh handle to a if the encrypted boolean cond is 1,
// to b otherwise.
func (c *Coprocessor) Select(tx *storage.Tx, cond, a, b types.Handle, caller common.Address) (types.Handle, error) {
	flag, err := c.plaintext(tx, cond, caller)
	if err != nil {
		return types.Handle{}, err
	}
	chosen := b
	if flag != 0 {
		chosen = a
	}
	ct, err := c.operand(tx, chosen, caller)
	if err != nil {
		return types.Handle{}, err
	}
	// the other branch must be readable by caller too
	other := a
	if flag != 0 {
		other = b
	}
	if _, err := c.operand(tx, other, caller); err != nil {
		return types.Handle{}, err
	}
	out := elgamal.NewCiphertext(c.publicKey).Set(ct)
	if err := out.Rerandomize(c.publicKey); err != nil {
		return types.Handle{}, err
	}
	return c.result(tx, out, caller)
}

// TryDecrease subtracts amount from balance if balance covers it. It
// returns the new balance and the amount actually moved, which is either
// amount or an encrypted zero.
func (c *Coprocessor) TryDecrease(tx *storage.Tx, balance, amount types.Handle, caller common.Address) (newBalance, moved types.Handle, err error) {
	ok, err := c.Le(tx, amount, balance, caller)
	if err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	zero, err := c.TrivialEncrypt(tx, 0, caller)
	if err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	if moved, err = c.Select(tx, ok, amount, zero, caller); err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	if newBalance, err = c.Sub(tx, balance, moved, caller); err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	return newBalance, moved, nil
}

// Drain moves the whole of balance without decrypting it. moved is a
// rerandomized copy of balance and newBalance an encrypted zero, so the
// operation succeeds whatever the plaintext is.
func (c *Coprocessor) Drain(tx *storage.Tx, balance types.Handle, caller common.Address) (newBalance, moved types.Handle, err error) {
	ct, err := c.operand(tx, balance, caller)
	if err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	out := elgamal.NewCiphertext(c.publicKey).Set(ct)
	if err := out.Rerandomize(c.publicKey); err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	if moved, err = c.result(tx, out, caller); err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	if newBalance, err = c.TrivialEncrypt(tx, 0, caller); err != nil {
		return types.Handle{}, types.Handle{}, err
	}
	return newBalance, moved, nil
}

// Allow grants addr a persistent permission on h.
func (c *Coprocessor) Allow(tx *storage.Tx, h types.Handle, addr common.Address) error {
	return tx.Allow(h, addr)
}

// AllowTransient grants addr a permission on h for the current transaction
// only.
func (c *Coprocessor) AllowTransient(tx *storage.Tx, h types.Handle, addr common.Address) {
	tx.SetTransient(aclKey(h, addr))
}

// IsAllowed reports whether addr holds a persistent or transient permission
// on h.
func (c *Coprocessor) IsAllowed(tx *storage.Tx, h types.Handle, addr common.Address) (bool, error) {
	if tx.IsTransient(aclKey(h, addr)) {
		return true, nil
	}
	return tx.Allowed(h, addr)
}

// Decrypt returns the plaintext of h. It performs no access control and is
// reserved to the decryption gateway.
func (c *Coprocessor) Decrypt(tx *storage.Tx, h types.Handle) (uint64, error) {
	if h.IsZero() {
		return 0, nil
	}
	ct, err := c.load(tx, h)
	if err != nil {
		return 0, err
	}
	return c.decrypt(ct)
}

func (c *Coprocessor) decrypt(ct *elgamal.Ciphertext) (uint64, error) {
	return c.decoder.Decode(elgamal.DecryptPoint(c.privateKey, ct.C1, ct.C2))
}

// plaintext checks access and decrypts h.
func (c *Coprocessor) plaintext(tx *storage.Tx, h types.Handle, caller common.Address) (uint64, error) {
	ct, err := c.operand(tx, h, caller)
	if err != nil {
		return 0, err
	}
	return c.decrypt(ct)
}

// encrypt registers a fresh randomized encryption of v.
func (c *Coprocessor) encrypt(tx *storage.Tx, v uint64, caller common.Address) (types.Handle, error) {
	ct, err := elgamal.NewCiphertext(c.publicKey).Encrypt(new(big.Int).SetUint64(v), c.publicKey, nil)
	if err != nil {
		return types.Handle{}, err
	}
	return c.result(tx, ct, caller)
}

// operand loads the ciphertext of h after checking caller may use it.
func (c *Coprocessor) operand(tx *storage.Tx, h types.Handle, caller common.Address) (*elgamal.Ciphertext, error) {
	if h.IsZero() {
		return elgamal.NewCiphertext(c.publicKey), nil
	}
	allowed, err := c.IsAllowed(tx, h, caller)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s on %s", ErrNotAllowed, caller.Hex(), h)
	}
	return c.load(tx, h)
}

func (c *Coprocessor) result(tx *storage.Tx, ct *elgamal.Ciphertext, caller common.Address) (types.Handle, error) {
	h, err := c.register(tx, ct)
	if err != nil {
		return types.Handle{}, err
	}
	c.AllowTransient(tx, h, caller)
	return h, nil
}

func (c *Coprocessor) register(tx *storage.Tx, ct *elgamal.Ciphertext) (types.Handle, error) {
	data := ct.Serialize()
	h, err := types.HandleFromBytes(ethcrypto.Keccak256(data, util.RandomBytes(handleSaltSize)))
	if err != nil {
		return types.Handle{}, err
	}
	if err := tx.SetCiphertext(h, data); err != nil {
		return types.Handle{}, fmt.Errorf("cannot store ciphertext: %w", err)
	}
	return h, nil
}

func (c *Coprocessor) load(tx *storage.Tx, h types.Handle) (*elgamal.Ciphertext, error) {
	data, err := tx.Ciphertext(h)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	if err != nil {
		return nil, err
	}
	ct := elgamal.NewCiphertext(c.publicKey)
	if err := ct.Deserialize(data); err != nil {
		return nil, fmt.Errorf("corrupted ciphertext %s: %w", h, err)
	}
	return ct, nil
}

func aclKey(h types.Handle, addr common.Address) []byte {
	return append(h.Bytes(), addr.Bytes()...)
}
