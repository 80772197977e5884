// Package storage is the persistence layer of the node. It wraps a prefixed
// key-value store and exposes the ledger, token and coprocessor artifacts
// through atomic transactions. The following prefixes are used:
//   - 'k/' for counters (latest campaign id, event sequence, token supply)
//   - 'c/' for campaigns, keyed by id
//   - 't/' for contribution totals, keyed by (campaign id, contributor)
//   - 'x/' for ciphertexts, keyed by handle
//   - 'a/' for the persistent access control list, keyed by (handle, address)
//   - 'b/' for token balances, keyed by (token, holder)
//   - 'o/' for token operators, keyed by (token, holder, operator)
//   - 'n/' for account nonces
//   - 'e/' for the event log, keyed by sequence number
//   - 's/' for the contributions state tree
//
// Every mutation runs inside Update, which serializes writers with a global
// lock and commits a single write transaction only if the callback succeeds.
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vocdoni/arbo"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	// Prefixes for the keys in the database.
	counterPrefix      = []byte("k/")
	campaignPrefix     = []byte("c/")
	contributionPrefix = []byte("t/")
	ciphertextPrefix   = []byte("x/")
	aclPrefix          = []byte("a/")
	balancePrefix      = []byte("b/")
	operatorPrefix     = []byte("o/")
	noncePrefix        = []byte("n/")
	eventPrefix        = []byte("e/")
	statePrefix        = []byte("s/")

	campaignCounterKey = []byte("campaign")
	eventCounterKey    = []byte("event")
	networkKeyKey      = []byte("networkKey")
	supplyKey          = []byte("supply")
)

// ErrNotFound is returned when the requested artifact does not exist.
var ErrNotFound = errors.New("not found")

// TypeMemory selects the volatile in-memory backend in Open.
const TypeMemory = "memory"

// Storage is the entry point to the persisted node state.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
	stateTree  *arbo.Tree
}

// New creates a new Storage instance on top of the given database.
func New(database db.Database) (*Storage, error) {
	tree, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(database, statePrefix),
		MaxLevels:    types.StateTreeMaxLevels,
		HashFunction: arbo.HashFunctionSha256,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create state tree: %w", err)
	}
	return &Storage{db: database, stateTree: tree}, nil
}

// Open opens (or creates) a database of the given type in dir and returns
// the Storage on top of it. The type is either db.TypePebble or TypeMemory.
func Open(dbType, dir string) (*Storage, error) {
	var database db.Database
	switch dbType {
	case TypeMemory:
		database = memdb.New()
	default:
		var err error
		if database, err = metadb.New(dbType, dir); err != nil {
			return nil, fmt.Errorf("cannot open database: %w", err)
		}
	}
	log.Debugw("storage opened", "type", dbType, "dir", dir)
	return New(database)
}

// NewMemory returns a Storage backed by an in-memory database.
func NewMemory() (*Storage, error) {
	return New(memdb.New())
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("error closing storage", "error", err.Error())
	}
}

// Update runs fn inside a write transaction. The transaction is committed
// only if fn returns nil; otherwise every write performed by fn is
// discarded. Events emitted by fn are appended to the event log within the
// same transaction and returned, with their sequence numbers assigned, once
// the commit succeeds.
func (s *Storage) Update(fn func(tx *Tx) error) ([]*types.Event, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	tx := newTx(s, s.db.WriteTx())
	defer tx.wTx.Discard()
	if err := fn(tx); err != nil {
		return nil, err
	}
	if err := tx.appendEvents(); err != nil {
		return nil, fmt.Errorf("cannot store events: %w", err)
	}
	if err := tx.wTx.Commit(); err != nil {
		return nil, fmt.Errorf("cannot commit transaction: %w", err)
	}
	return tx.events, nil
}

// View runs fn inside a transaction that is always discarded. Writes are
// visible to fn but never persisted.
func (s *Storage) View(fn func(tx *Tx) error) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	tx := newTx(s, s.db.WriteTx())
	defer tx.wTx.Discard()
	return fn(tx)
}
