package api

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/confidential-fundraiser/crypto/ethereum"
	"github.com/vocdoni/confidential-fundraiser/storage"
)

// SignatureMessage returns the message signed in a SignedRequest:
// keccak256(method || compact payload JSON || nonce as 8 bytes big endian).
func SignatureMessage(method string, payload []byte, nonce uint64) ([]byte, error) {
	compact := &bytes.Buffer{}
	if err := json.Compact(compact, payload); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	n := make([]byte, 8)
	binary.BigEndian.PutUint64(n, nonce)
	return ethcrypto.Keccak256([]byte(method), compact.Bytes(), n), nil
}

// NewSignedRequest encodes payload and signs it for method with the nonce.
func NewSignedRequest(signer *ethereum.SignKeys, method string, nonce uint64, payload any) (*SignedRequest, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("cannot encode payload: %w", err)
	}
	msg, err := SignatureMessage(method, data, nonce)
	if err != nil {
		return nil, err
	}
	signature, err := signer.SignEthereum(msg)
	if err != nil {
		return nil, err
	}
	return &SignedRequest{
		From:      signer.Address(),
		Nonce:     nonce,
		Payload:   data,
		Signature: signature,
	}, nil
}

// Verify checks the signature of the request for method and decodes the
// payload into out.
func (r *SignedRequest) Verify(method string, out any) error {
	if len(r.Payload) == 0 {
		return ErrMalformedBody.With("missing payload")
	}
	msg, err := SignatureMessage(method, r.Payload, r.Nonce)
	if err != nil {
		return ErrMalformedBody.WithErr(err)
	}
	signer, err := ethereum.AddrFromSignature(msg, r.Signature)
	if err != nil {
		return ErrInvalidSignature.WithErr(err)
	}
	if signer != r.From {
		return ErrInvalidSignature.Withf("signed by %s, not by %s", signer.Hex(), r.From.Hex())
	}
	if out != nil {
		if err := json.Unmarshal(r.Payload, out); err != nil {
			return ErrMalformedBody.WithErr(err)
		}
	}
	return nil
}

// useNonce checks the nonce of the request against the account and
// increments it. It must run in the transaction of the mutation.
func useNonce(tx *storage.Tx, from common.Address, nonce uint64) error {
	expected, err := tx.Nonce(from)
	if err != nil {
		return err
	}
	if nonce != expected {
		return ErrInvalidNonce.Withf("expected %d, got %d", expected, nonce)
	}
	return tx.SetNonce(from, expected+1)
}
