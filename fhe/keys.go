package fhe

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/vocdoni/arbo"
	"github.com/vocdoni/confidential-fundraiser/crypto/ecc/bn254"
	"github.com/vocdoni/confidential-fundraiser/crypto/elgamal"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/storage"
	"github.com/vocdoni/confidential-fundraiser/types"
)

const networkKeySize = 32

// NetworkKey returns the network private key. A non-empty hexKey takes
// precedence; otherwise the key persisted in storage is used, and if there
// is none a new one is generated and persisted.
func NetworkKey(stg *storage.Storage, hexKey string) (*big.Int, error) {
	if hexKey != "" {
		raw, err := types.HexStringToHexBytes(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid network key: %w", err)
		}
		key := new(big.Int).SetBytes(raw)
		if key.Sign() == 0 || key.Cmp(bn254.New().Order()) >= 0 {
			return nil, fmt.Errorf("invalid network key: out of range")
		}
		return key, nil
	}
	var key *big.Int
	_, err := stg.Update(func(tx *storage.Tx) error {
		raw, err := tx.NetworkKey()
		if err == nil {
			key = arbo.BytesToBigInt(raw)
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		_, priv, err := elgamal.GenerateKey(bn254.New())
		if err != nil {
			return err
		}
		key = priv
		log.Infow("generated new network key")
		return tx.SetNetworkKey(arbo.BigIntToBytes(networkKeySize, priv))
	})
	if err != nil {
		return nil, fmt.Errorf("cannot load network key: %w", err)
	}
	return key, nil
}
