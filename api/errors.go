package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vocdoni/confidential-fundraiser/fhe"
	"github.com/vocdoni/confidential-fundraiser/ledger"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/storage"
	"github.com/vocdoni/confidential-fundraiser/token"
	"github.com/vocdoni/confidential-fundraiser/types"
)

// Error is used by handler functions to wrap errors, assigning a unique error code
// and also specifying which HTTP Status should be used.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

type jsonError struct {
	Err  string `json:"error"`
	Code int    `json:"code"`
}

// MarshalJSON returns a JSON containing Err.Error() and Code. Field HTTPstatus is ignored.
//
// Example output: {"error":"caller is not the owner","code":40013}
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonError{Err: e.Err.Error(), Code: e.Code})
}

// UnmarshalJSON decodes an error written by MarshalJSON.
func (e *Error) UnmarshalJSON(data []byte) error {
	var je jsonError
	if err := json.Unmarshal(data, &je); err != nil {
		return err
	}
	e.Err = errors.New(je.Err)
	e.Code = je.Code
	return nil
}

// Error returns the Message contained inside the APIerror
func (e Error) Error() string {
	return e.Err.Error()
}

// Is reports whether target is an API error with the same code, so errors
// decoded by a client match the catalogue entries.
func (e Error) Is(target error) bool {
	var t Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Unwrap returns the wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// Write serializes a JSON msg using APIerror.Message and APIerror.Code
// and passes that to ctx.Send()
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn(err)
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	if log.Level() == log.LogLevelDebug {
		log.Debugw("API error response", "error", e.Error(), "code", e.Code, "httpStatus", e.HTTPstatus)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.HTTPstatus)
	if _, err := w.Write(append(msg, '\n')); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// Withf returns a copy of APIerror with the Sprintf formatted string appended at the end of e.Err
func (e Error) Withf(format string, args ...any) Error {
	return e.With(fmt.Sprintf(format, args...))
}

// With returns a copy of APIerror with the string appended at the end of e.Err
func (e Error) With(s string) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, s),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// WithErr returns a copy of APIerror with err.Error() appended at the end of e.Err
func (e Error) WithErr(err error) Error {
	return e.With(err.Error())
}

// domainErrors maps the sentinel errors of the ledger, the token and the
// coprocessor to their catalogue entries.
var domainErrors = []struct {
	err error
	api Error
}{
	{ledger.ErrNotConfigured, ErrCampaignNotConfigured},
	{ledger.ErrAlreadyFinalized, ErrCampaignFinalized},
	{ledger.ErrDeadlinePassed, ErrCampaignDeadlinePassed},
	{ledger.ErrInvalidEndTime, ErrInvalidEndTime},
	{ledger.ErrNotOwner, ErrNotOwner},
	{token.ErrNotOperator, ErrNotOperator},
	{token.ErrZeroAddress, ErrMalformedAddress},
	{token.ErrSupplyExceeded, ErrSupplyExceeded},
	{fhe.ErrInvalidProof, ErrInvalidInputProof},
	{fhe.ErrOutOfRange, ErrInvalidInputProof},
	{fhe.ErrNotAllowed, ErrHandleNotAllowed},
	{fhe.ErrUnknownHandle, ErrUnknownHandle},
	{fhe.ErrAuthExpired, ErrInvalidAuthorization},
	{fhe.ErrInvalidAuthSignature, ErrInvalidAuthorization},
	{fhe.ErrInvalidAuthorization, ErrInvalidAuthorization},
	{types.ErrInvalidAmount, ErrInvalidAmount},
	{storage.ErrNotFound, ErrResourceNotFound},
}

// errorFor returns the API error describing err.
func errorFor(err error) Error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			if err.Error() == d.err.Error() {
				return d.api
			}
			return d.api.WithErr(err)
		}
	}
	log.Warnw("unexpected API error", "error", err.Error())
	return ErrGenericInternalServerError.WithErr(err)
}
