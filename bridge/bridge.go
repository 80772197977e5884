// Package bridge is the client side of the confidential fundraiser: it
// turns plaintext amounts into encrypted inputs bound to a contract and a
// caller, and turns ciphertext handles back into plaintexts through an
// authorized round trip to the decryption gateway.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vocdoni/confidential-fundraiser/crypto/ecc"
	"github.com/vocdoni/confidential-fundraiser/crypto/ecc/curves"
	"github.com/vocdoni/confidential-fundraiser/crypto/elgamal"
	"github.com/vocdoni/confidential-fundraiser/fhe"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/types"
	"github.com/vocdoni/confidential-fundraiser/util"
)

// DefaultValidity is the validity window of the decryption authorizations
// signed by Decrypt.
const DefaultValidity = 10 * 24 * time.Hour

var (
	// ErrNotInitialized is returned when encrypting or decrypting before
	// Init fetched the network parameters.
	ErrNotInitialized = errors.New("encryption client not initialized")
	// ErrMissingSigner is returned when no wallet signature can be
	// obtained.
	ErrMissingSigner = errors.New("wallet signature unavailable")
	// ErrInvalidAmount is returned for malformed or out of range amounts.
	ErrInvalidAmount = types.ErrInvalidAmount
	// ErrGateway wraps failures of the decryption service round trip.
	ErrGateway = errors.New("decryption service failure")
)

// Gateway is the remote side of the bridge: network parameters and user
// decryption.
type Gateway interface {
	NetworkInfo(ctx context.Context) (*fhe.NetworkInfo, error)
	UserDecrypt(ctx context.Context, req *fhe.UserDecryptRequest) (*fhe.UserDecryptResponse, error)
}

// Signer is the wallet capability the bridge needs.
type Signer interface {
	Address() common.Address
	SignTypedData(td apitypes.TypedData) ([]byte, error)
}

// Client encrypts inputs and decrypts handles against a gateway. It is safe
// for concurrent use once initialized.
type Client struct {
	gw       Gateway
	clock    util.Clock
	validity time.Duration

	mu        sync.RWMutex
	info      *fhe.NetworkInfo
	publicKey ecc.Point
}

// New returns a bridge client talking to gw. A nil clock reads the system
// time.
func New(gw Gateway, clock util.Clock) *Client {
	if clock == nil {
		clock = util.SystemClock{}
	}
	return &Client{gw: gw, clock: clock, validity: DefaultValidity}
}

// SetValidity changes the validity window of new decryption
// authorizations.
func (c *Client) SetValidity(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validity = d
}

// Init fetches the network public key and authorization domain.
func (c *Client) Init(ctx context.Context) error {
	info, err := c.gw.NetworkInfo(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	pub, err := curves.Parse(info.Curve, info.PublicKey)
	if err != nil {
		return fmt.Errorf("invalid network public key: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = info
	c.publicKey = pub
	log.Debugw("bridge initialized", "chainId", info.ChainID, "verifyingContract", info.VerifyingContract.Hex())
	return nil
}

func (c *Client) network() (*fhe.NetworkInfo, ecc.Point, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.info == nil {
		return nil, nil, ErrNotInitialized
	}
	return c.info, c.publicKey, nil
}

// Encrypt encrypts amount (integer units) and proves it for the target
// contract and caller.
func (c *Client) Encrypt(amount uint64, contract, caller common.Address) (*types.EncryptedInput, error) {
	info, pub, err := c.network()
	if err != nil {
		return nil, err
	}
	if info.MaxPlaintext > 0 && amount > info.MaxPlaintext {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrInvalidAmount, amount, info.MaxPlaintext)
	}
	msg := new(big.Int).SetUint64(amount)
	k, err := elgamal.RandK(pub)
	if err != nil {
		return nil, err
	}
	ct, err := elgamal.NewCiphertext(pub).Encrypt(msg, pub, k)
	if err != nil {
		return nil, err
	}
	proof, err := elgamal.Prove(pub, ct, msg, k, fhe.InputContext(contract, caller))
	if err != nil {
		return nil, err
	}
	return &types.EncryptedInput{Ciphertext: ct.Serialize(), Proof: proof.Serialize()}, nil
}

// EncryptAmount parses a decimal amount with up to six fractional digits
// and encrypts it.
func (c *Client) EncryptAmount(amount string, contract, caller common.Address) (*types.EncryptedInput, error) {
	units, err := types.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	return c.Encrypt(units, contract, caller)
}

// Decrypt reveals the plaintext of the handle to the signer, which must
// hold a permission on it granted through contract. The zero handle
// decrypts to zero without a round trip. Failures are not retried.
func (c *Client) Decrypt(ctx context.Context, h types.Handle, contract common.Address, signer Signer) (uint64, error) {
	if signer == nil {
		return 0, ErrMissingSigner
	}
	info, _, err := c.network()
	if err != nil {
		return 0, err
	}
	if h.IsZero() {
		return 0, nil
	}
	ephKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return 0, fmt.Errorf("cannot generate ephemeral key: %w", err)
	}
	c.mu.RLock()
	validity := c.validity
	c.mu.RUnlock()
	start, days := fhe.AuthorizationWindow(c.clock.Now(), validity)
	auth := &fhe.UserDecryptAuthorization{
		PublicKey:         ethcrypto.FromECDSAPub(&ephKey.PublicKey),
		ContractAddresses: []common.Address{contract},
		StartTimestamp:    start,
		DurationDays:      days,
	}
	signature, err := signer.SignTypedData(auth.TypedData(info.ChainID, info.VerifyingContract))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMissingSigner, err)
	}
	resp, err := c.gw.UserDecrypt(ctx, &fhe.UserDecryptRequest{
		Handles:           []fhe.HandleContractPair{{Handle: h, Contract: contract}},
		User:              signer.Address(),
		PublicKey:         auth.PublicKey,
		ContractAddresses: auth.ContractAddresses,
		StartTimestamp:    auth.StartTimestamp,
		DurationDays:      auth.DurationDays,
		Signature:         signature,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	for _, r := range resp.Results {
		if r.Handle == h {
			return fhe.DecodeResult(ecies.ImportECDSA(ephKey), r.Payload)
		}
	}
	return 0, fmt.Errorf("%w: no result for handle %s", ErrGateway, h)
}

// DecryptAmount is Decrypt rendering the value as a decimal amount.
func (c *Client) DecryptAmount(ctx context.Context, h types.Handle, contract common.Address, signer Signer) (string, error) {
	units, err := c.Decrypt(ctx, h, contract, signer)
	if err != nil {
		return "", err
	}
	return types.FormatAmount(units), nil
}

// local adapts an in-process fhe.Gateway to the Gateway interface.
type local struct {
	gw *fhe.Gateway
}

// Local returns a Gateway served by the in-process decryption gateway.
func Local(gw *fhe.Gateway) Gateway {
	return &local{gw: gw}
}

func (l *local) NetworkInfo(ctx context.Context) (*fhe.NetworkInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.gw.Info(), nil
}

func (l *local) UserDecrypt(ctx context.Context, req *fhe.UserDecryptRequest) (*fhe.UserDecryptResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.gw.UserDecrypt(req)
}
