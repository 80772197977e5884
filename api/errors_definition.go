//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 403, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXXX or 5XXXX.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound       = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody          = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrInvalidSignature       = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}
	ErrMalformedAddress       = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrMalformedParam         = Error{Code: 40007, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrInvalidNonce           = Error{Code: 40008, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("invalid nonce")}
	ErrCampaignNotConfigured  = Error{Code: 40009, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("no campaign configured")}
	ErrCampaignFinalized      = Error{Code: 40010, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("campaign already finalized")}
	ErrCampaignDeadlinePassed = Error{Code: 40011, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("campaign deadline passed")}
	ErrInvalidEndTime         = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("end time must be in the future")}
	ErrNotOwner               = Error{Code: 40013, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("caller is not the owner")}
	ErrInvalidInputProof      = Error{Code: 40014, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid encrypted input")}
	ErrHandleNotAllowed       = Error{Code: 40015, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("handle access not allowed")}
	ErrUnknownHandle          = Error{Code: 40016, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("unknown handle")}
	ErrNotOperator            = Error{Code: 40017, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("ledger is not an operator of the contributor")}
	ErrInvalidAuthorization   = Error{Code: 40018, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("invalid decryption authorization")}
	ErrInvalidAmount          = Error{Code: 40019, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid amount")}
	ErrSupplyExceeded         = Error{Code: 40020, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("token supply cap exceeded")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrStorageFailure             = Error{Code: 50003, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("storage failure")}
)
