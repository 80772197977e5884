package fhe

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/confidential-fundraiser/crypto/ecc/bn254"
	"github.com/vocdoni/confidential-fundraiser/crypto/elgamal"
	"github.com/vocdoni/confidential-fundraiser/crypto/ethereum"
	"github.com/vocdoni/confidential-fundraiser/storage"
	"github.com/vocdoni/confidential-fundraiser/types"
	"github.com/vocdoni/confidential-fundraiser/util"
)

const testMaxPlaintext = 1 << 24

var (
	ledgerAddr = common.HexToAddress("0x00000000000000000000000000000000000001ed")
	tokenAddr  = common.HexToAddress("0x000000000000000000000000000000000000707e")
	verifier   = common.HexToAddress("0x000000000000000000000000000000000000dec0")
	userAddr   = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
)

func newTestCoprocessor(c *qt.C) (*storage.Storage, *Coprocessor) {
	stg, err := storage.NewMemory()
	c.Assert(err, qt.IsNil)
	key, err := NetworkKey(stg, "")
	c.Assert(err, qt.IsNil)
	return stg, New(key, testMaxPlaintext)
}

func encryptInput(c *qt.C, cop *Coprocessor, value uint64, contract, caller common.Address) *types.EncryptedInput {
	pub := cop.PublicKey()
	msg := new(big.Int).SetUint64(value)
	k, err := elgamal.RandK(pub)
	c.Assert(err, qt.IsNil)
	ct, err := elgamal.NewCiphertext(pub).Encrypt(msg, pub, k)
	c.Assert(err, qt.IsNil)
	proof, err := elgamal.Prove(pub, ct, msg, k, InputContext(contract, caller))
	c.Assert(err, qt.IsNil)
	return &types.EncryptedInput{Ciphertext: ct.Serialize(), Proof: proof.Serialize()}
}

func TestFromExternal(t *testing.T) {
	c := qt.New(t)
	stg, cop := newTestCoprocessor(c)

	input := encryptInput(c, cop, 1_250_000, ledgerAddr, userAddr)
	_, err := stg.Update(func(tx *storage.Tx) error {
		h, err := cop.FromExternal(tx, input, ledgerAddr, userAddr)
		c.Assert(err, qt.IsNil)
		ok, err := cop.IsAllowed(tx, h, ledgerAddr)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsTrue)
		v, err := cop.Decrypt(tx, h)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.Equals, uint64(1_250_000))

		// proofs are bound to the contract and the caller
		_, err = cop.FromExternal(tx, input, tokenAddr, userAddr)
		c.Assert(err, qt.ErrorIs, ErrInvalidProof)
		_, err = cop.FromExternal(tx, input, ledgerAddr, tokenAddr)
		c.Assert(err, qt.ErrorIs, ErrInvalidProof)

		_, err = cop.FromExternal(tx, &types.EncryptedInput{Ciphertext: []byte{1}}, ledgerAddr, userAddr)
		c.Assert(err, qt.ErrorIs, ErrInvalidProof)

		tooBig := encryptInput(c, cop, testMaxPlaintext+1, ledgerAddr, userAddr)
		_, err = cop.FromExternal(tx, tooBig, ledgerAddr, userAddr)
		c.Assert(err, qt.ErrorIs, ErrOutOfRange)
		return nil
	})
	c.Assert(err, qt.IsNil)
}

func TestHomomorphicOps(t *testing.T) {
	c := qt.New(t)
	stg, cop := newTestCoprocessor(c)

	_, err := stg.Update(func(tx *storage.Tx) error {
		a, err := cop.TrivialEncrypt(tx, 40, tokenAddr)
		c.Assert(err, qt.IsNil)
		b, err := cop.TrivialEncrypt(tx, 2, tokenAddr)
		c.Assert(err, qt.IsNil)

		sum, err := cop.Add(tx, a, b, tokenAddr)
		c.Assert(err, qt.IsNil)
		v, err := cop.Decrypt(tx, sum)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.Equals, uint64(42))

		// the zero handle is an encrypted zero
		same, err := cop.Add(tx, types.Handle{}, a, tokenAddr)
		c.Assert(err, qt.IsNil)
		v, err = cop.Decrypt(tx, same)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.Equals, uint64(40))

		diff, err := cop.Sub(tx, a, b, tokenAddr)
		c.Assert(err, qt.IsNil)
		v, err = cop.Decrypt(tx, diff)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.Equals, uint64(38))

		// covered decrease
		newBal, moved, err := cop.TryDecrease(tx, a, b, tokenAddr)
		c.Assert(err, qt.IsNil)
		v, err = cop.Decrypt(tx, newBal)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.Equals, uint64(38))
		v, err = cop.Decrypt(tx, moved)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.Equals, uint64(2))

		// uncovered decrease moves nothing
		newBal, moved, err = cop.TryDecrease(tx, b, a, tokenAddr)
		c.Assert(err, qt.IsNil)
		v, err = cop.Decrypt(tx, newBal)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.Equals, uint64(2))
		v, err = cop.Decrypt(tx, moved)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.Equals, uint64(0))

		// operands need a permission
		_, err = cop.Add(tx, a, b, userAddr)
		c.Assert(err, qt.ErrorIs, ErrNotAllowed)
		_, err = cop.Add(tx, types.Handle{9}, b, tokenAddr)
		c.Assert(err, qt.ErrorIs, ErrNotAllowed)
		c.Assert(cop.Allow(tx, types.Handle{9}, tokenAddr), qt.IsNil)
		_, err = cop.Add(tx, types.Handle{9}, b, tokenAddr)
		c.Assert(err, qt.ErrorIs, ErrUnknownHandle)
		return nil
	})
	c.Assert(err, qt.IsNil)
}

func TestTransientPermissions(t *testing.T) {
	c := qt.New(t)
	stg, cop := newTestCoprocessor(c)

	var h types.Handle
	_, err := stg.Update(func(tx *storage.Tx) (err error) {
		h, err = cop.TrivialEncrypt(tx, 5, tokenAddr)
		if err != nil {
			return err
		}
		return cop.Allow(tx, h, userAddr)
	})
	c.Assert(err, qt.IsNil)

	c.Assert(stg.View(func(tx *storage.Tx) error {
		ok, err := cop.IsAllowed(tx, h, tokenAddr)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsFalse)
		ok, err = cop.IsAllowed(tx, h, userAddr)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.IsTrue)
		return nil
	}), qt.IsNil)
}

func TestNetworkKey(t *testing.T) {
	c := qt.New(t)
	stg, err := storage.NewMemory()
	c.Assert(err, qt.IsNil)

	k1, err := NetworkKey(stg, "")
	c.Assert(err, qt.IsNil)
	k2, err := NetworkKey(stg, "")
	c.Assert(err, qt.IsNil)
	c.Assert(k1.Cmp(k2), qt.Equals, 0)

	k3, err := NetworkKey(stg, "0x0a")
	c.Assert(err, qt.IsNil)
	c.Assert(k3.Int64(), qt.Equals, int64(10))

	_, err = NetworkKey(stg, "0x00")
	c.Assert(err, qt.ErrorMatches, "invalid network key.*")
	_, err = NetworkKey(stg, "zz")
	c.Assert(err, qt.ErrorMatches, "invalid network key.*")
}

type decryptFixture struct {
	stg     *storage.Storage
	cop     *Coprocessor
	gw      *Gateway
	clock   *util.ManualClock
	user    *ethereum.SignKeys
	eph     *ecies.PrivateKey
	handle  types.Handle
	request *UserDecryptRequest
}

func newDecryptFixture(c *qt.C, value uint64) *decryptFixture {
	f := &decryptFixture{clock: util.NewManualClock(time.Unix(1_700_000_000, 0))}
	f.stg, f.cop = newTestCoprocessor(c)
	f.gw = NewGateway(f.stg, f.cop, 31337, verifier, f.clock)

	f.user = ethereum.NewSignKeys()
	c.Assert(f.user.Generate(), qt.IsNil)
	ephKey, err := ethcrypto.GenerateKey()
	c.Assert(err, qt.IsNil)
	f.eph = ecies.ImportECDSA(ephKey)

	_, err = f.stg.Update(func(tx *storage.Tx) (err error) {
		f.handle, err = f.cop.TrivialEncrypt(tx, value, ledgerAddr)
		if err != nil {
			return err
		}
		if err := f.cop.Allow(tx, f.handle, ledgerAddr); err != nil {
			return err
		}
		return f.cop.Allow(tx, f.handle, f.user.Address())
	})
	c.Assert(err, qt.IsNil)

	start, days := AuthorizationWindow(f.clock.Now(), 10*24*time.Hour)
	f.request = &UserDecryptRequest{
		Handles:           []HandleContractPair{{Handle: f.handle, Contract: ledgerAddr}},
		User:              f.user.Address(),
		PublicKey:         ethcrypto.FromECDSAPub(&ephKey.PublicKey),
		ContractAddresses: []common.Address{ledgerAddr},
		StartTimestamp:    start,
		DurationDays:      days,
	}
	f.sign(c)
	return f
}

func (f *decryptFixture) sign(c *qt.C) {
	sig, err := f.user.SignTypedData(f.request.Authorization().TypedData(31337, verifier))
	c.Assert(err, qt.IsNil)
	f.request.Signature = sig
}

func TestUserDecrypt(t *testing.T) {
	c := qt.New(t)
	f := newDecryptFixture(c, 1_250_000)

	resp, err := f.gw.UserDecrypt(f.request)
	c.Assert(err, qt.IsNil)
	c.Assert(resp.RequestID, qt.Not(qt.Equals), "")
	c.Assert(resp.Results, qt.HasLen, 1)
	c.Assert(resp.Results[0].Handle, qt.Equals, f.handle)
	v, err := DecodeResult(f.eph, resp.Results[0].Payload)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, uint64(1_250_000))

	info := f.gw.Info()
	c.Assert(info.ChainID, qt.Equals, uint64(31337))
	c.Assert(info.MaxPlaintext, qt.Equals, uint64(testMaxPlaintext))
	pub := bn254.New()
	c.Assert(pub.Unmarshal(info.PublicKey), qt.IsNil)
	c.Assert(pub.Equal(f.cop.PublicKey()), qt.IsTrue)
}

func TestUserDecryptRejections(t *testing.T) {
	c := qt.New(t)

	c.Run("expired", func(c *qt.C) {
		f := newDecryptFixture(c, 1)
		f.clock.Advance(10 * 24 * time.Hour)
		_, err := f.gw.UserDecrypt(f.request)
		c.Assert(err, qt.ErrorIs, ErrAuthExpired)
	})
	c.Run("not yet valid", func(c *qt.C) {
		f := newDecryptFixture(c, 1)
		f.request.StartTimestamp += 60
		f.sign(c)
		_, err := f.gw.UserDecrypt(f.request)
		c.Assert(err, qt.ErrorIs, ErrAuthExpired)
	})
	c.Run("too long", func(c *qt.C) {
		f := newDecryptFixture(c, 1)
		f.request.DurationDays = types.MaxDecryptionDays + 1
		f.sign(c)
		_, err := f.gw.UserDecrypt(f.request)
		c.Assert(err, qt.ErrorIs, ErrInvalidAuthorization)
	})
	c.Run("signed by someone else", func(c *qt.C) {
		f := newDecryptFixture(c, 1)
		f.request.User = userAddr
		_, err := f.gw.UserDecrypt(f.request)
		c.Assert(err, qt.ErrorIs, ErrInvalidAuthSignature)
	})
	c.Run("tampered", func(c *qt.C) {
		f := newDecryptFixture(c, 1)
		f.request.DurationDays = 1
		_, err := f.gw.UserDecrypt(f.request)
		c.Assert(err, qt.ErrorIs, ErrInvalidAuthSignature)
	})
	c.Run("contract not listed", func(c *qt.C) {
		f := newDecryptFixture(c, 1)
		f.request.Handles[0].Contract = tokenAddr
		_, err := f.gw.UserDecrypt(f.request)
		c.Assert(err, qt.ErrorIs, ErrInvalidAuthorization)
	})
	c.Run("user not allowed", func(c *qt.C) {
		f := newDecryptFixture(c, 1)
		other := ethereum.NewSignKeys()
		c.Assert(other.Generate(), qt.IsNil)
		f.user = other
		f.request.User = other.Address()
		f.sign(c)
		_, err := f.gw.UserDecrypt(f.request)
		c.Assert(err, qt.ErrorIs, ErrNotAllowed)
	})
	c.Run("contract not allowed", func(c *qt.C) {
		f := newDecryptFixture(c, 1)
		_, err := f.stg.Update(func(tx *storage.Tx) (err error) {
			f.handle, err = f.cop.TrivialEncrypt(tx, 3, tokenAddr)
			if err != nil {
				return err
			}
			return f.cop.Allow(tx, f.handle, f.user.Address())
		})
		c.Assert(err, qt.IsNil)
		f.request.Handles[0].Handle = f.handle
		_, err = f.gw.UserDecrypt(f.request)
		c.Assert(err, qt.ErrorIs, ErrNotAllowed)
	})
}

func TestMaxPlaintextLimit(t *testing.T) {
	c := qt.New(t)
	key := big.NewInt(12345)
	c.Assert(New(key, 0).MaxPlaintext(), qt.Equals, uint64(DefaultMaxPlaintext))
	c.Assert(New(key, MaxPlaintextLimit).MaxPlaintext(), qt.Equals, uint64(MaxPlaintextLimit))
	c.Assert(New(key, 1<<60).MaxPlaintext(), qt.Equals, uint64(MaxPlaintextLimit))
}

func TestDrain(t *testing.T) {
	c := qt.New(t)
	stg, cop := newTestCoprocessor(c)

	_, err := stg.Update(func(tx *storage.Tx) error {
		a, err := cop.TrivialEncrypt(tx, testMaxPlaintext, tokenAddr)
		c.Assert(err, qt.IsNil)
		b, err := cop.Add(tx, a, a, tokenAddr)
		c.Assert(err, qt.IsNil)
		_, err = cop.Decrypt(tx, b)
		c.Assert(err, qt.ErrorIs, elgamal.ErrOutOfRange)

		// draining never decrypts, so it works past the decodable range
		empty, moved, err := cop.Drain(tx, b, tokenAddr)
		c.Assert(err, qt.IsNil)
		c.Assert(moved, qt.Not(qt.Equals), b)
		v, err := cop.Decrypt(tx, empty)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.Equals, uint64(0))
		sum, err := cop.Add(tx, moved, empty, tokenAddr)
		c.Assert(err, qt.IsNil)
		_, err = cop.Decrypt(tx, sum)
		c.Assert(err, qt.ErrorIs, elgamal.ErrOutOfRange)

		_, moved, err = cop.Drain(tx, a, tokenAddr)
		c.Assert(err, qt.IsNil)
		v, err = cop.Decrypt(tx, moved)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.Equals, uint64(testMaxPlaintext))

		_, _, err = cop.Drain(tx, a, userAddr)
		c.Assert(err, qt.ErrorIs, ErrNotAllowed)
		return nil
	})
	c.Assert(err, qt.IsNil)
}
