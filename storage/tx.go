package storage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-fundraiser/types"
	"go.vocdoni.io/dvote/db"
)

// Tx is an open storage transaction. It is only valid inside the callback
// passed to Storage.Update or Storage.View.
type Tx struct {
	s         *Storage
	wTx       db.WriteTx
	events    []*types.Event
	transient map[string]struct{}
}

func newTx(s *Storage, wTx db.WriteTx) *Tx {
	return &Tx{s: s, wTx: wTx, transient: make(map[string]struct{})}
}

// Emit queues an event to be appended to the event log when the transaction
// commits.
func (tx *Tx) Emit(ev *types.Event) {
	tx.events = append(tx.events, ev)
}

// SetTransient records a key that lives for the duration of the transaction
// only.
func (tx *Tx) SetTransient(key []byte) {
	tx.transient[string(key)] = struct{}{}
}

// IsTransient reports whether the key was set with SetTransient in this
// transaction.
func (tx *Tx) IsTransient(key []byte) bool {
	_, ok := tx.transient[string(key)]
	return ok
}

// CampaignCounter returns the id of the latest campaign, 0 if none was ever
// configured.
func (tx *Tx) CampaignCounter() (uint64, error) {
	return tx.getUint64(counterPrefix, campaignCounterKey)
}

// SetCampaignCounter stores the id of the latest campaign.
func (tx *Tx) SetCampaignCounter(id uint64) error {
	return tx.setUint64(counterPrefix, campaignCounterKey, id)
}

// Campaign returns the campaign with the given id or ErrNotFound.
func (tx *Tx) Campaign(id uint64) (*types.Campaign, error) {
	c := &types.Campaign{}
	if err := tx.getArtifact(campaignPrefix, uint64Key(id), c); err != nil {
		return nil, err
	}
	return c, nil
}

// SetCampaign stores the campaign under its id.
func (tx *Tx) SetCampaign(c *types.Campaign) error {
	if c == nil || c.ID == 0 {
		return fmt.Errorf("invalid campaign")
	}
	return tx.setArtifact(campaignPrefix, uint64Key(c.ID), c)
}

// Contribution returns the running total handle of contributor in the
// campaign, the zero handle if it never contributed.
func (tx *Tx) Contribution(campaignID uint64, contributor common.Address) (types.Handle, error) {
	return tx.getHandle(contributionPrefix, joinKey(uint64Key(campaignID), contributor.Bytes()))
}

// SetContribution stores the running total handle of contributor in the
// campaign and commits it to the contributions state tree.
func (tx *Tx) SetContribution(campaignID uint64, contributor common.Address, h types.Handle) error {
	id := uint64Key(campaignID)
	if err := tx.set(contributionPrefix, joinKey(id, contributor.Bytes()), h.Bytes()); err != nil {
		return err
	}
	return tx.setState(h.Bytes(), id, contributor.Bytes())
}

// Ciphertext returns the serialized ciphertext registered under the handle.
func (tx *Tx) Ciphertext(h types.Handle) ([]byte, error) {
	return tx.get(ciphertextPrefix, h.Bytes())
}

// SetCiphertext registers a serialized ciphertext under the handle.
func (tx *Tx) SetCiphertext(h types.Handle, ct []byte) error {
	return tx.set(ciphertextPrefix, h.Bytes(), ct)
}

// Allowed reports whether addr holds a persistent permission on the handle.
func (tx *Tx) Allowed(h types.Handle, addr common.Address) (bool, error) {
	_, err := tx.get(aclPrefix, joinKey(h.Bytes(), addr.Bytes()))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Allow grants addr a persistent permission on the handle.
func (tx *Tx) Allow(h types.Handle, addr common.Address) error {
	return tx.set(aclPrefix, joinKey(h.Bytes(), addr.Bytes()), []byte{1})
}

// Balance returns the encrypted balance handle of holder in token, the zero
// handle if uninitialized.
func (tx *Tx) Balance(token, holder common.Address) (types.Handle, error) {
	return tx.getHandle(balancePrefix, joinKey(token.Bytes(), holder.Bytes()))
}

// SetBalance stores the encrypted balance handle of holder in token.
func (tx *Tx) SetBalance(token, holder common.Address, h types.Handle) error {
	return tx.set(balancePrefix, joinKey(token.Bytes(), holder.Bytes()), h.Bytes())
}

// TotalSupply returns the plaintext amount minted by token so far.
func (tx *Tx) TotalSupply(token common.Address) (uint64, error) {
	return tx.getUint64(counterPrefix, joinKey(supplyKey, token.Bytes()))
}

// SetTotalSupply stores the amount minted by token so far.
func (tx *Tx) SetTotalSupply(token common.Address, supply uint64) error {
	return tx.setUint64(counterPrefix, joinKey(supplyKey, token.Bytes()), supply)
}

// Operator returns the timestamp until which operator may move the funds of
// holder in token, 0 if never approved.
func (tx *Tx) Operator(token, holder, operator common.Address) (uint64, error) {
	return tx.getUint64(operatorPrefix, joinKey(token.Bytes(), holder.Bytes(), operator.Bytes()))
}

// SetOperator stores the operator approval expiry.
func (tx *Tx) SetOperator(token, holder, operator common.Address, until uint64) error {
	return tx.setUint64(operatorPrefix, joinKey(token.Bytes(), holder.Bytes(), operator.Bytes()), until)
}

// Nonce returns the next expected nonce of the account.
func (tx *Tx) Nonce(addr common.Address) (uint64, error) {
	return tx.getUint64(noncePrefix, addr.Bytes())
}

// SetNonce stores the next expected nonce of the account.
func (tx *Tx) SetNonce(addr common.Address, nonce uint64) error {
	return tx.setUint64(noncePrefix, addr.Bytes(), nonce)
}

// NetworkKey returns the stored network private key, or ErrNotFound.
func (tx *Tx) NetworkKey() ([]byte, error) {
	return tx.get(counterPrefix, networkKeyKey)
}

// SetNetworkKey stores the network private key.
func (tx *Tx) SetNetworkKey(key []byte) error {
	return tx.set(counterPrefix, networkKeyKey, key)
}

// StateRoot returns the current root of the contributions state tree,
// including the writes of this transaction.
func (tx *Tx) StateRoot() ([]byte, error) {
	return tx.s.stateTree.RootWithTx(tx.stateTx())
}
