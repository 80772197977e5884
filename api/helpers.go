package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/storage"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(append(jdata, '\n'))
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// addressParam parses the address URL parameter.
func addressParam(r *http.Request) (common.Address, error) {
	s := chi.URLParam(r, AddressURLParam)
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrMalformedAddress.With(s)
	}
	return common.HexToAddress(s), nil
}

// uint64Param parses an unsigned integer from the URL parameter or, if
// not present in the route, from the query string. Missing values
// default to def.
func uint64Param(r *http.Request, name string, def uint64) (uint64, error) {
	s := chi.URLParam(r, name)
	if s == "" {
		s = r.URL.Query().Get(name)
	}
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ErrMalformedParam.Withf("%s: %v", name, err)
	}
	return v, nil
}

// mutate runs a signed request: it verifies the envelope, decodes the
// payload and runs fn in a single storage transaction together with the
// nonce check, so either both the nonce and the state change or neither
// does. Committed events are published and the result of fn is returned
// to the client.
func (a *API) mutate(w http.ResponseWriter, r *http.Request, method string, payload any,
	fn func(tx *storage.Tx, from common.Address) (any, error),
) {
	req := &SignedRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if err := req.Verify(method, payload); err != nil {
		errorFor(err).Write(w)
		return
	}
	var resp any
	events, err := a.storage.Update(func(tx *storage.Tx) error {
		if err := useNonce(tx, req.From, req.Nonce); err != nil {
			return err
		}
		var err error
		resp, err = fn(tx, req.From)
		return err
	})
	if err != nil {
		log.Debugw("request rejected", "method", method, "from", req.From.Hex(), "error", err.Error())
		errorFor(err).Write(w)
		return
	}
	a.ledger.Publish(events)
	log.Infow("request executed", "method", method, "from", req.From.Hex(), "nonce", req.Nonce)
	if resp == nil {
		httpWriteOK(w)
		return
	}
	httpWriteJSON(w, resp)
}
