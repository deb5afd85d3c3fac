package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/teamalloc/core/history"
)

func (h *handler) historyEnabled(w http.ResponseWriter) bool {
	if h.store == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return false
	}
	return true
}

func parseHistoryQuery(r *http.Request) (history.Query, error) {
	var q history.Query
	v := r.URL.Query()
	for _, f := range []struct {
		name string
		dst  *time.Time
	}{{"start", &q.Start}, {"end", &q.End}} {
		s := v.Get(f.name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("invalid %s %q", f.name, s)
		}
		*f.dst = t
	}
	q.Source = v.Get("source")
	switch k := history.Kind(v.Get("kind")); k {
	case "", history.KindRun, history.KindMove:
		q.Kind = k
	default:
		return q, fmt.Errorf("invalid kind %q", k)
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid limit %q", s)
		}
		q.Limit = n
	}
	return q, nil
}

func (h *handler) queryHistory(w http.ResponseWriter, r *http.Request) {
	if !h.historyEnabled(w) {
		return
	}
	q, err := parseHistoryQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.store.Query(r.Context(), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	if !h.historyEnabled(w) {
		return
	}
	rec, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) deleteHistory(w http.ResponseWriter, r *http.Request) {
	if !h.historyEnabled(w) {
		return
	}
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
