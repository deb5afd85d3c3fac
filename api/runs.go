package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/teamalloc/app/jobs"
	"github.com/kilianp07/teamalloc/core/model"
	"github.com/kilianp07/teamalloc/pkg/export"
	"github.com/kilianp07/teamalloc/pkg/stationio"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type paramsBody struct {
	NumberOfTeams    int      `json:"number_of_teams"`
	TolerancePercent *float64 `json:"tolerance_percent"`
}

type runBody struct {
	Source   string          `json:"source"`
	Stations []model.Station `json:"stations"`
	Params   paramsBody      `json:"params"`
}

type accepted struct {
	jobs.Job
	Import *stationio.Report `json:"import,omitempty"`
}

type lockBody struct {
	Locked bool `json:"locked"`
}

// submitRun accepts a JSON body, or a CSV or XLSX upload with the team count
// and tolerance given as query parameters.
func (h *handler) submitRun(w http.ResponseWriter, r *http.Request) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		req jobs.Request
		rep *stationio.Report
	)
	switch ct {
	case "", "application/json":
		var body runBody
		if err := decodeJSON(w, r, h.opts.MaxBodyBytes, &body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("decode body: %v", err))
			return
		}
		req = jobs.Request{
			Source:   body.Source,
			Stations: body.Stations,
			Params:   h.opts.Defaults(body.Params.NumberOfTeams, body.Params.TolerancePercent),
		}
	case "text/csv", xlsxContentType:
		format := stationio.FormatCSV
		if ct == xlsxContentType {
			format = stationio.FormatXLSX
		}
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
			return
		}
		stations, report, err := stationio.Parse(data, format, stationio.Options{Sheet: h.opts.Sheet})
		if err != nil {
			writeErr(w, err)
			return
		}
		params, err := queryParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req = jobs.Request{
			Source:   r.URL.Query().Get("source"),
			Stations: stations,
			Params:   h.opts.Defaults(params.NumberOfTeams, params.TolerancePercent),
		}
		rep = &report
	default:
		writeError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported content type %q", ct))
		return
	}

	job, err := h.runs.Submit(req)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Location", "/api/runs/"+job.ID)
	writeJSON(w, http.StatusAccepted, accepted{Job: job, Import: rep})
}

func queryParams(r *http.Request) (paramsBody, error) {
	var p paramsBody
	q := r.URL.Query()
	if v := q.Get("teams"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("invalid teams %q", v)
		}
		p.NumberOfTeams = n
	}
	if v := q.Get("tolerance"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, fmt.Errorf("invalid tolerance %q", v)
		}
		p.TolerancePercent = &f
	}
	return p, nil
}

func (h *handler) listRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.runs.List())
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	job, err := h.runs.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handler) exportRun(w http.ResponseWriter, r *http.Request) {
	job, err := h.runs.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if job.Status != jobs.StatusSucceeded {
		writeError(w, http.StatusConflict, fmt.Sprintf("run %s is %s", job.ID, job.Status))
		return
	}
	format := stationio.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = stationio.FormatXLSX
	}
	switch format {
	case stationio.FormatXLSX:
		w.Header().Set("Content-Type", xlsxContentType)
	case stationio.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
	case stationio.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "teams-"+job.ID+"."+string(format)))
	if err := export.Write(w, format, job.Teams); err != nil {
		h.log.Errorf("export run %s: %v", job.ID, err)
	}
}

func (h *handler) moveStation(w http.ResponseWriter, r *http.Request) {
	var body jobs.MoveRequest
	if err := decodeJSON(w, r, h.opts.MaxBodyBytes, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode body: %v", err))
		return
	}
	job, err := h.runs.Move(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handler) lockTeam(w http.ResponseWriter, r *http.Request) {
	var body lockBody
	if err := decodeJSON(w, r, h.opts.MaxBodyBytes, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode body: %v", err))
		return
	}
	job, err := h.runs.SetLocked(chi.URLParam(r, "id"), chi.URLParam(r, "team"), body.Locked)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
