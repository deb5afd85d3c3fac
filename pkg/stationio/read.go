// Package stationio reads station lists from spreadsheets.
//
// Headers are matched case-insensitively and accept the field sheet names
// (MA_TRAM, LATITUDE, LONGITUDE, SL_VITRI, TEN_TRAM) as well as plain ones
// (code, lat, lng, weight, name). Rows that cannot be placed are dropped and
// reported instead of failing the whole file.
package stationio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/kilianp07/teamalloc/core/model"
)

// ErrNoStations is returned when no row survives validation.
var ErrNoStations = errors.New("no valid stations found, check column headers: MA_TRAM, LATITUDE, LONGITUDE, SL_VITRI")

// Format identifies a station file encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// FormatOf derives the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", eris.Errorf("stationio: unsupported file type %q", filepath.Ext(path))
}

// Options configures spreadsheet parsing.
type Options struct {
	// Sheet names the worksheet to read; the first sheet is used when empty.
	Sheet string
}

// RowIssue describes a dropped row. Row is 1-based and counts the header.
type RowIssue struct {
	Row    int    `json:"row"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason"`
}

// Report summarizes a read.
type Report struct {
	Rows    int        `json:"rows"`
	Kept    int        `json:"kept"`
	Dropped []RowIssue `json:"dropped,omitempty"`
}

var headerAliases = map[string]string{
	"ma_tram":   "code",
	"code":      "code",
	"station":   "code",
	"latitude":  "lat",
	"lat":       "lat",
	"longitude": "lng",
	"lng":       "lng",
	"lon":       "lng",
	"sl_vitri":  "weight",
	"weight":    "weight",
	"ten_tram":  "name",
	"name":      "name",
}

// ReadFile reads stations from an .xlsx or .csv file.
func ReadFile(path string, opts Options) ([]model.Station, Report, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, Report{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Report{}, eris.Wrapf(err, "stationio: read %s", path)
	}
	stations, rep, err := Parse(data, format, opts)
	if err != nil {
		return nil, rep, eris.Wrapf(err, "stationio: %s", path)
	}
	return stations, rep, nil
}

// Parse decodes stations from raw file content.
func Parse(data []byte, format Format, opts Options) ([]model.Station, Report, error) {
	var rows [][]string
	var err error
	switch format {
	case FormatXLSX:
		rows, err = xlsxRows(data, opts)
	case FormatCSV:
		rows, err = csvRows(bytes.NewReader(data))
	default:
		return nil, Report{}, eris.Errorf("stationio: cannot read stations from %q", format)
	}
	if err != nil {
		return nil, Report{}, err
	}
	return fromRows(rows)
}

func xlsxRows(data []byte, opts Options) ([][]string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	var sheet *xlsx.Sheet
	if opts.Sheet != "" {
		s, ok := f.Sheet[opts.Sheet]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.Sheet)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.New("xlsx: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func csvRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv: parse")
	}
	return rows, nil
}

func fromRows(rows [][]string) ([]model.Station, Report, error) {
	if len(rows) == 0 {
		return nil, Report{}, ErrNoStations
	}
	cols := map[string]int{}
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := headerAliases[key]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	for _, field := range []string{"code", "lat", "lng"} {
		if _, ok := cols[field]; !ok {
			return nil, Report{}, eris.Wrapf(ErrNoStations, "missing %s column", field)
		}
	}

	rep := Report{Rows: len(rows) - 1}
	seen := make(map[string]bool)
	stations := make([]model.Station, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		if blank(row) {
			rep.Rows--
			continue
		}
		st, err := parseRow(row, cols)
		if err == nil {
			err = st.Validate()
		}
		if err == nil && seen[st.Code] {
			err = fmt.Errorf("duplicate station code")
		}
		if err != nil {
			rep.Dropped = append(rep.Dropped, RowIssue{Row: line, Code: st.Code, Reason: err.Error()})
			continue
		}
		seen[st.Code] = true
		stations = append(stations, st)
	}
	rep.Kept = len(stations)
	if len(stations) == 0 {
		return nil, rep, ErrNoStations
	}
	return stations, rep, nil
}

func parseRow(row []string, cols map[string]int) (model.Station, error) {
	cell := func(field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	st := model.Station{Code: cell("code"), DisplayName: cell("name")}
	var err error
	if st.Latitude, err = parseCoord(cell("lat")); err != nil {
		return st, fmt.Errorf("latitude: %w", err)
	}
	if st.Longitude, err = parseCoord(cell("lng")); err != nil {
		return st, fmt.Errorf("longitude: %w", err)
	}
	if st.Weight, err = parseWeight(cell("weight")); err != nil {
		return st, fmt.Errorf("weight: %w", err)
	}
	return st, nil
}

// parseCoord maps an empty cell to 0 so validation drops the row.
func parseCoord(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

// parseWeight accepts whole numbers, including "12.0"; an empty cell is 0.
func parseWeight(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("%q is not a non-negative whole number", v)
	}
	return int(f), nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
