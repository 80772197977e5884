package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-fundraiser/storage"
	"github.com/vocdoni/confidential-fundraiser/types"
)

// mint handles MethodMint, crediting the sender.
func (a *API) mint(w http.ResponseWriter, r *http.Request) {
	p := &MintRequest{}
	a.mutate(w, r, MethodMint, p, func(tx *storage.Tx, from common.Address) (any, error) {
		if p.Amount == 0 || p.Amount > a.gateway.Info().MaxPlaintext {
			return nil, ErrInvalidAmount.Withf("%d", p.Amount)
		}
		h, err := a.token.Mint(tx, from, p.Amount)
		if err != nil {
			return nil, err
		}
		return &HandleResponse{Handle: h}, nil
	})
}

// setOperator handles MethodOperator, approving an operator over the
// sender funds.
func (a *API) setOperator(w http.ResponseWriter, r *http.Request) {
	p := &OperatorRequest{}
	a.mutate(w, r, MethodOperator, p, func(tx *storage.Tx, from common.Address) (any, error) {
		return nil, a.token.SetOperator(tx, from, p.Operator, p.Until)
	})
}

// balance returns the balance handle of an address.
func (a *API) balance(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	var h types.Handle
	if err := a.storage.View(func(tx *storage.Tx) (err error) {
		h, err = a.token.ConfidentialBalanceOf(tx, addr)
		return err
	}); err != nil {
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, &HandleResponse{Handle: h})
}
