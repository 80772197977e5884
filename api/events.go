package api

import (
	"net/http"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 500
)

// events returns a page of the event log starting at the from sequence
// number.
func (a *API) events(w http.ResponseWriter, r *http.Request) {
	from, err := uint64Param(r, "from", 1)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	limit, err := uint64Param(r, "limit", defaultEventsLimit)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	if limit == 0 || limit > maxEventsLimit {
		limit = maxEventsLimit
	}
	events, err := a.storage.Events(from, int(limit))
	if err != nil {
		ErrStorageFailure.WithErr(err).Write(w)
		return
	}
	last, err := a.storage.LastEventSeq()
	if err != nil {
		ErrStorageFailure.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &EventsResponse{Events: events, Last: last})
}
