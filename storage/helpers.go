package storage

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/confidential-fundraiser/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Artifact encoding/decoding
func encodeArtifact(a any) ([]byte, error) {
	encOpts := cbor.CoreDetEncOptions()
	em, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return em.Marshal(a)
}

func decodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}

// stateKey derives the fixed length state tree key of an arbitrary key.
func stateKey(data ...[]byte) []byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)[:types.StateKeyMaxLen]
}

func uint64Key(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func joinKey(parts ...[]byte) []byte {
	var key []byte
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

// getArtifact reads and decodes the artifact stored under prefix+key.
// Returns ErrNotFound if it does not exist.
func (tx *Tx) getArtifact(prefix, key []byte, out any) error {
	data, err := tx.get(prefix, key)
	if err != nil {
		return err
	}
	return decodeArtifact(data, out)
}

// setArtifact encodes and stores the artifact under prefix+key.
func (tx *Tx) setArtifact(prefix, key []byte, artifact any) error {
	data, err := encodeArtifact(artifact)
	if err != nil {
		return err
	}
	return tx.set(prefix, key, data)
}

func (tx *Tx) get(prefix, key []byte) ([]byte, error) {
	data, err := prefixeddb.NewPrefixedReader(tx.wTx, prefix).Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (tx *Tx) set(prefix, key, value []byte) error {
	return prefixeddb.NewPrefixedWriteTx(tx.wTx, prefix).Set(key, value)
}

func (tx *Tx) getUint64(prefix, key []byte) (uint64, error) {
	data, err := tx.get(prefix, key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid counter value length %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func (tx *Tx) setUint64(prefix, key []byte, v uint64) error {
	return tx.set(prefix, key, uint64Key(v))
}

func (tx *Tx) getHandle(prefix, key []byte) (types.Handle, error) {
	data, err := tx.get(prefix, key)
	if errors.Is(err, ErrNotFound) {
		return types.Handle{}, nil
	}
	if err != nil {
		return types.Handle{}, err
	}
	return types.HandleFromBytes(data)
}
