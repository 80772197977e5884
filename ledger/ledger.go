// Package ledger implements the campaign ledger: one current fundraising
// campaign at a time, encrypted per-contributor running totals and an
// encrypted grand total, paid out to the owner when the campaign closes.
//
// Every mutation runs as a single storage transaction: it either commits
// completely or leaves no trace. Events are handed to the observer only
// after the commit succeeds.
package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-fundraiser/fhe"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/storage"
	"github.com/vocdoni/confidential-fundraiser/token"
	"github.com/vocdoni/confidential-fundraiser/types"
	"github.com/vocdoni/confidential-fundraiser/util"
)

var (
	// ErrNotConfigured is returned when no campaign was ever configured.
	ErrNotConfigured = errors.New("no campaign configured")
	// ErrAlreadyFinalized is returned when operating on a closed campaign.
	ErrAlreadyFinalized = errors.New("campaign already finalized")
	// ErrDeadlinePassed is returned when contributing at or after the end
	// time.
	ErrDeadlinePassed = errors.New("campaign deadline passed")
	// ErrInvalidEndTime is returned when configuring an end time that is
	// not strictly in the future.
	ErrInvalidEndTime = errors.New("end time must be in the future")
	// ErrNotOwner is returned when a non-owner calls an owner-only
	// operation.
	ErrNotOwner = errors.New("caller is not the owner")
)

// Observer receives the events of committed mutations.
type Observer interface {
	Publish(ev *types.Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev *types.Event)

func (f ObserverFunc) Publish(ev *types.Event) {
	f(ev)
}

// IDGenerator allocates campaign ids. Next must return a value greater
// than prev.
type IDGenerator interface {
	Next(prev uint64) uint64
}

// SequentialIDs allocates prev+1.
type SequentialIDs struct{}

func (SequentialIDs) Next(prev uint64) uint64 {
	return prev + 1
}

// Config holds the identities and collaborators of a Ledger. Clock, IDs
// and Observer are optional.
type Config struct {
	Owner    common.Address
	Address  common.Address
	Clock    util.Clock
	IDs      IDGenerator
	Observer Observer
}

// Ledger is the campaign ledger living at Config.Address.
type Ledger struct {
	stg      *storage.Storage
	cop      *fhe.Coprocessor
	token    *token.Token
	owner    common.Address
	address  common.Address
	clock    util.Clock
	ids      IDGenerator
	observer Observer
}

// New returns a ledger on top of the storage, the coprocessor and the
// payment token.
func New(stg *storage.Storage, cop *fhe.Coprocessor, tok *token.Token, conf Config) (*Ledger, error) {
	if conf.Owner == (common.Address{}) {
		return nil, fmt.Errorf("owner address not set")
	}
	if conf.Address == (common.Address{}) {
		return nil, fmt.Errorf("ledger address not set")
	}
	l := &Ledger{
		stg:      stg,
		cop:      cop,
		token:    tok,
		owner:    conf.Owner,
		address:  conf.Address,
		clock:    conf.Clock,
		ids:      conf.IDs,
		observer: conf.Observer,
	}
	if l.clock == nil {
		l.clock = util.SystemClock{}
	}
	if l.ids == nil {
		l.ids = SequentialIDs{}
	}
	if l.observer == nil {
		l.observer = ObserverFunc(func(*types.Event) {})
	}
	return l, nil
}

// Owner returns the address allowed to configure and close campaigns.
func (l *Ledger) Owner() common.Address {
	return l.owner
}

// Address returns the ledger identity.
func (l *Ledger) Address() common.Address {
	return l.address
}

// Token returns the payment token.
func (l *Ledger) Token() *token.Token {
	return l.token
}

// Publish hands committed events to the observer.
func (l *Ledger) Publish(events []*types.Event) {
	for _, ev := range events {
		log.Debugw("ledger event", "seq", ev.Seq, "kind", string(ev.Kind), "campaign", ev.CampaignID)
		l.observer.Publish(ev)
	}
}

// update runs fn in a storage transaction and publishes its events once
// committed.
func (l *Ledger) update(fn func(tx *storage.Tx) error) error {
	events, err := l.stg.Update(fn)
	if err != nil {
		return err
	}
	l.Publish(events)
	return nil
}

func (l *Ledger) now() uint64 {
	return uint64(l.clock.Now().Unix())
}

// current returns the latest campaign, ErrNotConfigured if none.
func (l *Ledger) current(tx *storage.Tx) (*types.Campaign, error) {
	id, err := tx.CampaignCounter()
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, ErrNotConfigured
	}
	c, err := tx.Campaign(id)
	if err != nil {
		return nil, fmt.Errorf("cannot load campaign %d: %w", id, err)
	}
	return c, nil
}

func (l *Ledger) onlyOwner(caller common.Address) error {
	if caller != l.owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, caller.Hex())
	}
	return nil
}

func (l *Ledger) allow(tx *storage.Tx, h types.Handle, addrs ...common.Address) error {
	for _, addr := range addrs {
		if err := l.cop.Allow(tx, h, addr); err != nil {
			return err
		}
	}
	return nil
}
