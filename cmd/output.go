package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kilianp07/teamalloc/core/history"
	"github.com/kilianp07/teamalloc/core/model"
)

// printTeams writes one line per team.
func printTeams(out io.Writer, teams []model.Team) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TEAM\tNAME\tSTATIONS\tLOAD\tDISTANCE_KM\tLOCKED")
	for _, t := range teams {
		locked := ""
		if t.Locked {
			locked = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2f\t%s\n",
			t.ID, t.DisplayName, len(t.Members), t.AggregateWeight, t.TravelDistanceKm, locked)
	}
	_ = w.Flush()
}

// printMembers lists the station codes of each team.
func printMembers(out io.Writer, teams []model.Team) {
	for _, t := range teams {
		codes := make([]string, len(t.Members))
		for i, m := range t.Members {
			codes[i] = m.Code
		}
		_, _ = fmt.Fprintf(out, "%s: %s\n", t.ID, strings.Join(codes, ", "))
	}
}

func printRecords(out io.Writer, recs []history.Record) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tSOURCE\tTEAMS\tWEIGHT\tPARENT\tTIME")
	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.Kind, r.Source, len(r.Teams), r.TotalWeight, truncateID(r.ParentID),
			r.Timestamp.Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
