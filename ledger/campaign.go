package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/storage"
	"github.com/vocdoni/confidential-fundraiser/types"
)

// Configure creates a new campaign, or updates the name, target and end
// time of the current one if it is not finalized. Only the owner may call
// it and endTime must be strictly in the future.
func (l *Ledger) Configure(caller common.Address, name string, target, endTime uint64) (*types.Campaign, error) {
	var c *types.Campaign
	err := l.update(func(tx *storage.Tx) (err error) {
		c, err = l.ConfigureWithTx(tx, caller, name, target, endTime)
		return err
	})
	return c, err
}

// ConfigureWithTx is Configure within an open transaction.
func (l *Ledger) ConfigureWithTx(tx *storage.Tx, caller common.Address, name string, target, endTime uint64) (*types.Campaign, error) {
	if err := l.onlyOwner(caller); err != nil {
		return nil, err
	}
	now := l.now()
	if endTime <= now {
		return nil, fmt.Errorf("%w: %d <= %d", ErrInvalidEndTime, endTime, now)
	}
	c, err := l.current(tx)
	switch {
	case errors.Is(err, ErrNotConfigured) || (err == nil && c.Finalized):
		if c, err = l.newCampaign(tx); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}
	c.Name = name
	c.Target = target
	c.EndTime = endTime
	if err := tx.SetCampaign(c); err != nil {
		return nil, err
	}
	tx.Emit(&types.Event{
		Kind:       types.EventCampaignConfigured,
		Timestamp:  now,
		CampaignID: c.ID,
		Name:       name,
		Target:     target,
		EndTime:    endTime,
	})
	log.Infow("campaign configured", "id", c.ID, "name", name, "target", target, "endTime", endTime)
	return c, nil
}

// newCampaign allocates the next id with an encrypted zero total.
func (l *Ledger) newCampaign(tx *storage.Tx) (*types.Campaign, error) {
	prev, err := tx.CampaignCounter()
	if err != nil {
		return nil, err
	}
	id := l.ids.Next(prev)
	if id <= prev {
		return nil, fmt.Errorf("id generator returned %d after %d", id, prev)
	}
	total, err := l.cop.TrivialEncrypt(tx, 0, l.address)
	if err != nil {
		return nil, err
	}
	if err := l.allow(tx, total, l.address, l.owner); err != nil {
		return nil, err
	}
	if err := tx.SetCampaignCounter(id); err != nil {
		return nil, err
	}
	return &types.Campaign{ID: id, Total: total}, nil
}

// Contribute takes an encrypted amount bound to the ledger and the caller,
// transfers it from the caller through the payment token and adds what was
// actually transferred to the caller running total and to the campaign
// total. The caller must have approved the ledger as token operator. It
// returns the new running total handle of the caller, which only the caller
// (and the ledger) may decrypt.
func (l *Ledger) Contribute(caller common.Address, input *types.EncryptedInput) (types.Handle, error) {
	var h types.Handle
	err := l.update(func(tx *storage.Tx) (err error) {
		h, err = l.ContributeWithTx(tx, caller, input)
		return err
	})
	return h, err
}

// ContributeWithTx is Contribute within an open transaction.
func (l *Ledger) ContributeWithTx(tx *storage.Tx, caller common.Address, input *types.EncryptedInput) (types.Handle, error) {
	c, err := l.current(tx)
	if err != nil {
		return types.Handle{}, err
	}
	if c.Finalized {
		return types.Handle{}, fmt.Errorf("%w: campaign %d", ErrAlreadyFinalized, c.ID)
	}
	if now := l.now(); now >= c.EndTime {
		return types.Handle{}, fmt.Errorf("%w: campaign %d ended at %d", ErrDeadlinePassed, c.ID, c.EndTime)
	}

	amount, err := l.cop.FromExternal(tx, input, l.address, caller)
	if err != nil {
		return types.Handle{}, err
	}
	if err := l.allow(tx, amount, l.address); err != nil {
		return types.Handle{}, err
	}
	l.cop.AllowTransient(tx, amount, l.token.Address())
	transferred, err := l.token.ConfidentialTransferFrom(tx, l.address, caller, l.address, amount)
	if err != nil {
		return types.Handle{}, err
	}

	prev, err := tx.Contribution(c.ID, caller)
	if err != nil {
		return types.Handle{}, err
	}
	contribution, err := l.cop.Add(tx, prev, transferred, l.address)
	if err != nil {
		return types.Handle{}, err
	}
	total, err := l.cop.Add(tx, c.Total, transferred, l.address)
	if err != nil {
		return types.Handle{}, err
	}
	if err := l.allow(tx, contribution, l.address, caller); err != nil {
		return types.Handle{}, err
	}
	if err := l.allow(tx, total, l.address, l.owner); err != nil {
		return types.Handle{}, err
	}
	if err := tx.SetContribution(c.ID, caller, contribution); err != nil {
		return types.Handle{}, err
	}
	c.Total = total
	if err := tx.SetCampaign(c); err != nil {
		return types.Handle{}, err
	}
	tx.Emit(&types.Event{
		Kind:       types.EventContributionReceived,
		Timestamp:  l.now(),
		CampaignID: c.ID,
		From:       &caller,
		Handle:     &contribution,
	})
	log.Debugw("contribution received", "campaign", c.ID, "contributor", caller.Hex())
	return contribution, nil
}

// CloseCampaign finalizes the current campaign and transfers the whole
// encrypted token balance of the ledger to the owner. It returns the
// closed campaign and the handle of the payout.
func (l *Ledger) CloseCampaign(caller common.Address) (*types.Campaign, types.Handle, error) {
	var (
		c      *types.Campaign
		payout types.Handle
	)
	err := l.update(func(tx *storage.Tx) (err error) {
		c, payout, err = l.CloseCampaignWithTx(tx, caller)
		return err
	})
	return c, payout, err
}

// CloseCampaignWithTx is CloseCampaign within an open transaction.
func (l *Ledger) CloseCampaignWithTx(tx *storage.Tx, caller common.Address) (*types.Campaign, types.Handle, error) {
	if err := l.onlyOwner(caller); err != nil {
		return nil, types.Handle{}, err
	}
	c, err := l.current(tx)
	if err != nil {
		return nil, types.Handle{}, err
	}
	if c.Finalized {
		return nil, types.Handle{}, fmt.Errorf("%w: campaign %d", ErrAlreadyFinalized, c.ID)
	}
	c.Finalized = true
	if err := tx.SetCampaign(c); err != nil {
		return nil, types.Handle{}, err
	}

	payout, err := l.token.ConfidentialTransferAll(tx, l.address, l.owner)
	if err != nil {
		return nil, types.Handle{}, err
	}
	owner := l.owner
	tx.Emit(&types.Event{
		Kind:       types.EventCampaignClosed,
		Timestamp:  l.now(),
		CampaignID: c.ID,
		To:         &owner,
		Handle:     &payout,
	})
	log.Infow("campaign closed", "id", c.ID, "payout", payout.String())
	return c, payout, nil
}
