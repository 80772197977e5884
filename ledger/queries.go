package ledger

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/storage"
	"github.com/vocdoni/confidential-fundraiser/types"
)

// Campaign returns the current campaign with its aggregate handle, whether
// it accepts contributions and the contributions state root. It fails with
// ErrNotConfigured if no campaign exists.
func (l *Ledger) Campaign() (*types.CampaignSnapshot, error) {
	var snap *types.CampaignSnapshot
	err := l.stg.View(func(tx *storage.Tx) error {
		c, err := l.current(tx)
		if err != nil {
			return err
		}
		root, err := tx.StateRoot()
		if err != nil {
			return err
		}
		snap = &types.CampaignSnapshot{
			Campaign:  c,
			Active:    c.AcceptsContributions(l.clock.Now()),
			StateRoot: root,
		}
		return nil
	})
	return snap, err
}

// Contribution returns the running total handle of contributor in the
// campaign, the zero handle if it never contributed.
func (l *Ledger) Contribution(campaignID uint64, contributor common.Address) (types.Handle, error) {
	var h types.Handle
	err := l.stg.View(func(tx *storage.Tx) (err error) {
		h, err = tx.Contribution(campaignID, contributor)
		return err
	})
	return h, err
}

// ActiveCampaignID returns the id of the current campaign. It fails with
// ErrNotConfigured if no campaign exists.
func (l *Ledger) ActiveCampaignID() (uint64, error) {
	var id uint64
	err := l.stg.View(func(tx *storage.Tx) (err error) {
		id, err = tx.CampaignCounter()
		return err
	})
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, ErrNotConfigured
	}
	return id, nil
}

// IsActive reports whether the current campaign accepts contributions. It
// never fails: a missing campaign or a storage error read as false.
func (l *Ledger) IsActive() bool {
	var active bool
	err := l.stg.View(func(tx *storage.Tx) error {
		c, err := l.current(tx)
		if err != nil {
			return err
		}
		active = c.AcceptsContributions(l.clock.Now())
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		log.Warnw("cannot read campaign state", "error", err.Error())
	}
	return active
}
