// Package export writes allocated teams as spreadsheets or JSON, one row per
// assigned station.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/kilianp07/teamalloc/core/model"
	"github.com/kilianp07/teamalloc/pkg/stationio"
)

// SheetName is the worksheet written to xlsx exports.
const SheetName = "Allocated Teams"

// Header lists the exported columns in order.
var Header = []string{"team_id", "team_name", "team_total_weight", "team_distance_km", "code", "weight", "lat", "lng"}

// Row is one exported station with its team context.
type Row struct {
	TeamID          string  `json:"team_id"`
	TeamName        string  `json:"team_name"`
	TeamTotalWeight int     `json:"team_total_weight"`
	TeamDistanceKm  float64 `json:"team_distance_km"`
	Code            string  `json:"code"`
	Weight          int     `json:"weight"`
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
}

// Rows flattens teams into export rows, keeping team and member order.
func Rows(teams []model.Team) []Row {
	var rows []Row
	for _, t := range teams {
		for _, s := range t.Members {
			rows = append(rows, Row{
				TeamID:          t.ID,
				TeamName:        t.DisplayName,
				TeamTotalWeight: t.AggregateWeight,
				TeamDistanceKm:  t.TravelDistanceKm,
				Code:            s.Code,
				Weight:          s.Weight,
				Lat:             s.Latitude,
				Lng:             s.Longitude,
			})
		}
	}
	return rows
}

func (r Row) strings() []string {
	return []string{
		r.TeamID,
		r.TeamName,
		strconv.Itoa(r.TeamTotalWeight),
		strconv.FormatFloat(r.TeamDistanceKm, 'f', -1, 64),
		r.Code,
		strconv.Itoa(r.Weight),
		strconv.FormatFloat(r.Lat, 'f', -1, 64),
		strconv.FormatFloat(r.Lng, 'f', -1, 64),
	}
}

// WriteFile writes teams to path, choosing the format from its extension.
func WriteFile(path string, teams []model.Team) error {
	format, err := stationio.FormatOf(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := Write(f, format, teams); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Write encodes teams to w in the given format.
func Write(w io.Writer, format stationio.Format, teams []model.Team) error {
	switch format {
	case stationio.FormatJSON:
		return WriteJSON(w, teams)
	case stationio.FormatCSV:
		return WriteCSV(w, teams)
	case stationio.FormatXLSX:
		return WriteXLSX(w, teams)
	}
	return eris.Errorf("export: unsupported format %q", format)
}

// WriteJSON writes the rows as a JSON array.
func WriteJSON(w io.Writer, teams []model.Team) error {
	rows := Rows(teams)
	if rows == nil {
		rows = []Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(rows), "export: json")
}

// WriteCSV writes a header line followed by one line per station.
func WriteCSV(w io.Writer, teams []model.Team) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "export: csv header")
	}
	for _, r := range Rows(teams) {
		if err := cw.Write(r.strings()); err != nil {
			return eris.Wrap(err, "export: csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: csv flush")
}

// WriteXLSX writes a workbook with a single "Allocated Teams" sheet.
func WriteXLSX(w io.Writer, teams []model.Team) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	head := sheet.AddRow()
	for _, h := range Header {
		head.AddCell().SetString(h)
	}
	for _, r := range Rows(teams) {
		row := sheet.AddRow()
		row.AddCell().SetString(r.TeamID)
		row.AddCell().SetString(r.TeamName)
		row.AddCell().SetInt(r.TeamTotalWeight)
		row.AddCell().SetFloat(r.TeamDistanceKm)
		row.AddCell().SetString(r.Code)
		row.AddCell().SetInt(r.Weight)
		row.AddCell().SetFloat(r.Lat)
		row.AddCell().SetFloat(r.Lng)
	}
	return eris.Wrap(f.Write(w), "export: xlsx")
}
