package api

import (
	"encoding/json"
	"net/http"

	"github.com/vocdoni/confidential-fundraiser/fhe"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/metrics"
	"github.com/vocdoni/confidential-fundraiser/storage"
)

// info returns the addresses served by the node.
func (a *API) info(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, &InfoResponse{
		Ledger:  a.ledger.Address(),
		Token:   a.token.Address(),
		Owner:   a.ledger.Owner(),
		ChainID: a.gateway.Info().ChainID,
	})
}

// networkKey returns the coprocessor public key and the decryption
// authorization domain.
func (a *API) networkKey(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, a.gateway.Info())
}

// userDecrypt forwards a user decryption request to the gateway.
func (a *API) userDecrypt(w http.ResponseWriter, r *http.Request) {
	req := &fhe.UserDecryptRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	resp, err := a.gateway.UserDecrypt(req)
	metrics.ObserveDecryption(err)
	if err != nil {
		log.Debugw("user decryption denied", "user", req.User.Hex(), "error", err.Error())
		errorFor(err).Write(w)
		return
	}
	log.Infow("user decryption", "user", req.User.Hex(), "handles", len(req.Handles), "requestId", resp.RequestID)
	httpWriteJSON(w, resp)
}

// nonce returns the nonce the next signed request of an account must use.
func (a *API) nonce(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	var n uint64
	if err := a.storage.View(func(tx *storage.Tx) (err error) {
		n, err = tx.Nonce(addr)
		return err
	}); err != nil {
		ErrStorageFailure.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &NonceResponse{Nonce: n})
}
