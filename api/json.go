package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/teamalloc/app/jobs"
	"github.com/kilianp07/teamalloc/core/allocation"
	"github.com/kilianp07/teamalloc/core/history"
	"github.com/kilianp07/teamalloc/pkg/stationio"
)

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Status: status})
}

// writeErr maps domain errors to HTTP status codes.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, jobs.ErrNotFound),
		errors.Is(err, history.ErrNotFound),
		errors.Is(err, allocation.ErrTeamNotFound) && !errors.Is(err, allocation.ErrInvalidMove):
		return http.StatusNotFound
	case errors.Is(err, allocation.ErrLockedTeam),
		errors.Is(err, jobs.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, allocation.ErrInvalidMove),
		errors.Is(err, jobs.ErrInvalidRequest),
		errors.Is(err, stationio.ErrNoStations):
		return http.StatusUnprocessableEntity
	case errors.Is(err, jobs.ErrRunnerClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
