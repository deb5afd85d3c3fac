package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kilianp07/teamalloc/core/allocation"
	"github.com/kilianp07/teamalloc/core/history"
)

type moveOptions struct {
	From   string
	To     string
	Strict bool
}

var moveOpts moveOptions

var moveCmd = &cobra.Command{
	Use:   "move RUN_ID STATION",
	Short: "Move a station between teams of a saved run",
	Long: `Applies the move to the teams of a saved run and stores the result as a
new history record linked to it. Locked teams are only honored with --strict
or allocation.enforce_locks.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts := moveOpts
		opts.Strict = opts.Strict || cfg.Allocation.EnforceLocks
		return withConfiguredStore(cmd.Context(), cfg, func(ctx context.Context, store history.Store) error {
			return moveStation(ctx, cmd.OutOrStdout(), store, args[0], args[1], opts)
		})
	},
}

func init() {
	moveCmd.Flags().StringVar(&moveOpts.From, "from", "", "team the station leaves")
	moveCmd.Flags().StringVar(&moveOpts.To, "to", "", "team the station joins")
	moveCmd.Flags().BoolVar(&moveOpts.Strict, "strict", false, "refuse to move from or into a locked team")
	_ = moveCmd.MarkFlagRequired("from")
	_ = moveCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(moveCmd)
}

func moveStation(ctx context.Context, out io.Writer, store history.Store, runID, code string, opts moveOptions) error {
	rec, err := store.Get(ctx, runID)
	if err != nil {
		return err
	}
	move := allocation.MoveStation
	if opts.Strict {
		move = allocation.MoveStationStrict
	}
	teams, err := move(rec.Teams, code, opts.From, opts.To)
	allocation.ObserveMove(err)
	if err != nil {
		return err
	}
	next := history.NewRecord(history.KindMove, rec.Source, rec.Params, teams)
	next.ParentID = rec.ID
	if err := store.Append(ctx, next); err != nil {
		return fmt.Errorf("save move: %w", err)
	}
	_, _ = fmt.Fprintf(out, "moved %s from %s to %s, saved as %s\n", code, opts.From, opts.To, next.ID)
	printTeams(out, teams)
	return nil
}
