package storage

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/arbo"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

func (tx *Tx) stateTx() db.WriteTx {
	return prefixeddb.NewPrefixedWriteTx(tx.wTx, statePrefix)
}

// setState adds or updates the leaf of key in the contributions state tree.
func (tx *Tx) setState(value []byte, key ...[]byte) error {
	k := stateKey(key...)
	wTx := tx.stateTx()
	err := tx.s.stateTree.AddWithTx(wTx, k, value)
	if errors.Is(err, arbo.ErrKeyAlreadyExists) {
		return tx.s.stateTree.UpdateWithTx(wTx, k, value)
	}
	return err
}

// ContributionLeaf returns the handle committed for the contributor of the
// campaign in the contributions state tree, or ErrNotFound.
func (s *Storage) ContributionLeaf(campaignID uint64, contributor common.Address) ([]byte, error) {
	_, v, err := s.stateTree.Get(stateKey(uint64Key(campaignID), contributor.Bytes()))
	if errors.Is(err, arbo.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

// StateRoot returns the committed root of the contributions state tree.
func (s *Storage) StateRoot() ([]byte, error) {
	return s.stateTree.Root()
}
