package fhe

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"github.com/google/uuid"
	"github.com/vocdoni/confidential-fundraiser/crypto/ethereum"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/storage"
	"github.com/vocdoni/confidential-fundraiser/types"
	"github.com/vocdoni/confidential-fundraiser/util"
)

const secondsPerDay = 24 * 60 * 60

var (
	// ErrAuthExpired is returned when the decryption authorization is used
	// outside of its validity window.
	ErrAuthExpired = errors.New("decryption authorization expired or not yet valid")
	// ErrInvalidAuthSignature is returned when the authorization signature
	// does not recover the requesting user.
	ErrInvalidAuthSignature = errors.New("invalid decryption authorization signature")
	// ErrInvalidAuthorization is returned for malformed authorizations.
	ErrInvalidAuthorization = errors.New("invalid decryption authorization")
)

// NetworkInfo describes the coprocessor a client talks to: the key to
// encrypt inputs to and the EIP-712 domain of decryption authorizations.
type NetworkInfo struct {
	Curve             string         `json:"curve"`
	PublicKey         types.HexBytes `json:"publicKey"`
	ChainID           uint64         `json:"chainId"`
	VerifyingContract common.Address `json:"verifyingContract"`
	MaxPlaintext      uint64         `json:"maxPlaintext"`
}

// HandleContractPair names a handle and the contract whose permission
// covers it.
type HandleContractPair struct {
	Handle   types.Handle   `json:"handle"`
	Contract common.Address `json:"contractAddress"`
}

// UserDecryptRequest asks the gateway to reencrypt the plaintexts of the
// handles to the ephemeral public key of the user.
type UserDecryptRequest struct {
	Handles           []HandleContractPair `json:"handleContractPairs"`
	User              common.Address       `json:"userAddress"`
	PublicKey         types.HexBytes       `json:"publicKey"`
	ContractAddresses []common.Address     `json:"contractAddresses"`
	StartTimestamp    uint64               `json:"startTimestamp"`
	DurationDays      uint64               `json:"durationDays"`
	ExtraData         types.HexBytes       `json:"extraData,omitempty"`
	Signature         types.HexBytes       `json:"signature"`
}

// Authorization returns the signed part of the request.
func (r *UserDecryptRequest) Authorization() *UserDecryptAuthorization {
	return &UserDecryptAuthorization{
		PublicKey:         r.PublicKey,
		ContractAddresses: r.ContractAddresses,
		StartTimestamp:    r.StartTimestamp,
		DurationDays:      r.DurationDays,
		ExtraData:         r.ExtraData,
	}
}

// UserDecryptResult carries one plaintext, 8 bytes big-endian, encrypted
// to the ephemeral key of the request.
type UserDecryptResult struct {
	Handle  types.Handle   `json:"handle"`
	Payload types.HexBytes `json:"payload"`
}

// UserDecryptResponse is the gateway answer to a UserDecryptRequest.
type UserDecryptResponse struct {
	RequestID string              `json:"requestId"`
	Results   []UserDecryptResult `json:"results"`
}

// Gateway performs authorized user decryptions.
type Gateway struct {
	stg               *storage.Storage
	cop               *Coprocessor
	chainID           uint64
	verifyingContract common.Address
	clock             util.Clock
}

// NewGateway returns a gateway for the coprocessor. Authorizations must be
// signed for chainID and verifyingContract.
func NewGateway(stg *storage.Storage, cop *Coprocessor, chainID uint64, verifyingContract common.Address, clock util.Clock) *Gateway {
	if clock == nil {
		clock = util.SystemClock{}
	}
	return &Gateway{
		stg:               stg,
		cop:               cop,
		chainID:           chainID,
		verifyingContract: verifyingContract,
		clock:             clock,
	}
}

// Info returns the network public key and the authorization domain.
func (g *Gateway) Info() *NetworkInfo {
	return &NetworkInfo{
		Curve:             g.cop.PublicKey().Type(),
		PublicKey:         g.cop.PublicKey().Marshal(),
		ChainID:           g.chainID,
		VerifyingContract: g.verifyingContract,
		MaxPlaintext:      g.cop.MaxPlaintext(),
	}
}

// UserDecrypt checks the authorization and the permissions of the user and
// the contract on every handle, and returns the plaintexts encrypted to the
// ephemeral key. Either every handle is decrypted or none is.
func (g *Gateway) UserDecrypt(req *UserDecryptRequest) (*UserDecryptResponse, error) {
	if err := g.checkAuthorization(req); err != nil {
		return nil, err
	}
	pub, err := ethcrypto.UnmarshalPubkey(req.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: bad public key: %v", ErrInvalidAuthorization, err)
	}
	eciesPub := ecies.ImportECDSAPublic(pub)

	resp := &UserDecryptResponse{RequestID: uuid.New().String()}
	err = g.stg.View(func(tx *storage.Tx) error {
		for _, pair := range req.Handles {
			if !slices.Contains(req.ContractAddresses, pair.Contract) {
				return fmt.Errorf("%w: contract %s not authorized", ErrInvalidAuthorization, pair.Contract.Hex())
			}
			if pair.Contract == req.User {
				return fmt.Errorf("%w: user and contract must differ", ErrInvalidAuthorization)
			}
			for _, addr := range []common.Address{req.User, pair.Contract} {
				ok, err := g.cop.IsAllowed(tx, pair.Handle, addr)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s on %s", ErrNotAllowed, addr.Hex(), pair.Handle)
				}
			}
			value, err := g.cop.Decrypt(tx, pair.Handle)
			if err != nil {
				return err
			}
			payload, err := ecies.Encrypt(rand.Reader, eciesPub, binary.BigEndian.AppendUint64(nil, value), nil, nil)
			if err != nil {
				return fmt.Errorf("cannot reencrypt: %w", err)
			}
			resp.Results = append(resp.Results, UserDecryptResult{Handle: pair.Handle, Payload: payload})
		}
		return nil
	})
	if err != nil {
		log.Debugw("user decryption rejected", "user", req.User.Hex(), "error", err.Error())
		return nil, err
	}
	log.Debugw("user decryption served", "requestId", resp.RequestID, "user", req.User.Hex(), "handles", len(resp.Results))
	return resp, nil
}

func (g *Gateway) checkAuthorization(req *UserDecryptRequest) error {
	if len(req.Handles) == 0 || len(req.ContractAddresses) == 0 {
		return fmt.Errorf("%w: nothing to decrypt", ErrInvalidAuthorization)
	}
	if req.DurationDays == 0 || req.DurationDays > types.MaxDecryptionDays {
		return fmt.Errorf("%w: duration must be between 1 and %d days", ErrInvalidAuthorization, types.MaxDecryptionDays)
	}
	now := uint64(g.clock.Now().Unix())
	if now < req.StartTimestamp || now >= req.StartTimestamp+req.DurationDays*secondsPerDay {
		return ErrAuthExpired
	}
	td := req.Authorization().TypedData(g.chainID, g.verifyingContract)
	signer, err := ethereum.AddrFromTypedDataSignature(td, req.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAuthSignature, err)
	}
	if signer != req.User {
		return ErrInvalidAuthSignature
	}
	return nil
}

// DecodeResult decrypts a result payload with the ephemeral private key.
func DecodeResult(ephemeral *ecies.PrivateKey, payload []byte) (uint64, error) {
	plain, err := ephemeral.Decrypt(payload, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("cannot decrypt result: %w", err)
	}
	if len(plain) != 8 {
		return 0, fmt.Errorf("invalid result length %d", len(plain))
	}
	return binary.BigEndian.Uint64(plain), nil
}

// AuthorizationWindow returns the start timestamp and duration in days of
// an authorization valid from now on for d.
func AuthorizationWindow(now time.Time, d time.Duration) (start, days uint64) {
	days = uint64((d + secondsPerDay*time.Second - 1) / (secondsPerDay * time.Second))
	return uint64(now.Unix()), days
}
