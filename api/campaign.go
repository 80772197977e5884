package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-fundraiser/storage"
	"github.com/vocdoni/confidential-fundraiser/types"
)

// configure handles MethodConfigure.
func (a *API) configure(w http.ResponseWriter, r *http.Request) {
	p := &ConfigureRequest{}
	a.mutate(w, r, MethodConfigure, p, func(tx *storage.Tx, from common.Address) (any, error) {
		return a.ledger.ConfigureWithTx(tx, from, p.Name, p.Target, p.EndTime)
	})
}

// contribute handles MethodContribute.
func (a *API) contribute(w http.ResponseWriter, r *http.Request) {
	p := &ContributeRequest{}
	a.mutate(w, r, MethodContribute, p, func(tx *storage.Tx, from common.Address) (any, error) {
		if p.Input == nil || len(p.Input.Ciphertext) == 0 {
			return nil, ErrMalformedBody.With("missing encrypted input")
		}
		h, err := a.ledger.ContributeWithTx(tx, from, p.Input)
		if err != nil {
			return nil, err
		}
		id, err := tx.CampaignCounter()
		if err != nil {
			return nil, err
		}
		return &ContributeResponse{CampaignID: id, Handle: h}, nil
	})
}

// closeCampaign handles MethodClose. The payload is an empty object.
func (a *API) closeCampaign(w http.ResponseWriter, r *http.Request) {
	a.mutate(w, r, MethodClose, &struct{}{}, func(tx *storage.Tx, from common.Address) (any, error) {
		c, payout, err := a.ledger.CloseCampaignWithTx(tx, from)
		if err != nil {
			return nil, err
		}
		return &CloseResponse{Campaign: c, Payout: payout}, nil
	})
}

// campaign returns the snapshot of the current campaign.
func (a *API) campaign(w http.ResponseWriter, r *http.Request) {
	snap, err := a.ledger.Campaign()
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, snap)
}

// activeCampaign returns the id of the current campaign.
func (a *API) activeCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := a.ledger.ActiveCampaignID()
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, &ActiveCampaignResponse{CampaignID: id})
}

// campaignStatus reports whether the current campaign accepts
// contributions. With no campaign configured the answer is false.
func (a *API) campaignStatus(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, &CampaignStatusResponse{Active: a.ledger.IsActive()})
}

// contribution returns the running total handle of an address in a
// campaign, the zero handle if it never contributed.
func (a *API) contribution(w http.ResponseWriter, r *http.Request) {
	id, err := uint64Param(r, CampaignURLParam, 0)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	if id == 0 {
		ErrMalformedParam.With("campaign id must be positive").Write(w)
		return
	}
	addr, err := addressParam(r)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	h, err := a.ledger.Contribution(id, addr)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, &types.Contribution{CampaignID: id, Contributor: addr, Total: h})
}
