package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/teamalloc/config"
	"github.com/kilianp07/teamalloc/core/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect saved allocation runs",
}

var (
	histQuery history.Query
	histKind  string
	histSince time.Duration
	histJSON  bool
)

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := histQuery
		q.Kind = history.Kind(histKind)
		if histSince > 0 {
			q.Start = time.Now().Add(-histSince)
		}
		return withStore(cmd.Context(), func(ctx context.Context, store history.Store) error {
			return listHistory(ctx, cmd.OutOrStdout(), store, q)
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show the teams of a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, store history.Store) error {
			return showHistory(ctx, cmd.OutOrStdout(), store, args[0], histJSON)
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, store history.Store) error {
			if err := store.Delete(ctx, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		})
	},
}

func init() {
	lf := historyListCmd.Flags()
	lf.StringVar(&histQuery.Source, "source", "", "only runs from this source file")
	lf.StringVar(&histKind, "kind", "", "only records of this kind (run or move)")
	lf.IntVar(&histQuery.Limit, "limit", 20, "maximum number of records")
	lf.DurationVar(&histSince, "since", 0, "only records newer than this duration")
	historyShowCmd.Flags().BoolVar(&histJSON, "json", false, "print the record as JSON")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}

// withStore opens the configured history store for the duration of fn.
func withStore(ctx context.Context, fn func(context.Context, history.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return withConfiguredStore(ctx, cfg, fn)
}

func withConfiguredStore(ctx context.Context, cfg *config.Config, fn func(context.Context, history.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := history.NewStore(cfg.History.Module())
	if err != nil {
		return fmt.Errorf("history store: %w", err)
	}
	defer func() { _ = store.Close() }()
	return fn(ctx, store)
}

func listHistory(ctx context.Context, out io.Writer, store history.Store, q history.Query) error {
	recs, err := store.Query(ctx, q)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		_, _ = fmt.Fprintln(out, "no saved runs")
		return nil
	}
	printRecords(out, recs)
	return nil
}

func showHistory(ctx context.Context, out io.Writer, store history.Store, id string, asJSON bool) error {
	rec, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	_, _ = fmt.Fprintf(out, "%s (%s) from %s at %s, %d teams requested, tolerance %.1f%%\n",
		rec.ID, rec.Kind, rec.Source, rec.Timestamp.Format(time.RFC3339), rec.Params.NumberOfTeams, rec.Params.TolerancePercent)
	if rec.ParentID != "" {
		_, _ = fmt.Fprintf(out, "derived from %s\n", rec.ParentID)
	}
	printTeams(out, rec.Teams)
	printMembers(out, rec.Teams)
	return nil
}
