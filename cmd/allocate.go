package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/teamalloc/config"
	"github.com/kilianp07/teamalloc/core/allocation"
	"github.com/kilianp07/teamalloc/core/events"
	"github.com/kilianp07/teamalloc/core/history"
	coremetrics "github.com/kilianp07/teamalloc/core/metrics"
	"github.com/kilianp07/teamalloc/core/model"
	"github.com/kilianp07/teamalloc/infra/logger"
	"github.com/kilianp07/teamalloc/infra/metrics"
	"github.com/kilianp07/teamalloc/infra/mqtt"
	"github.com/kilianp07/teamalloc/pkg/export"
	"github.com/kilianp07/teamalloc/pkg/stationio"
)

type allocateOptions struct {
	Teams     int
	Tolerance *float64
	Out       string
	Format    string
	Save      bool
	Publish   bool
	Members   bool
}

var (
	allocOpts      allocateOptions
	allocTolerance float64
)

var allocateCmd = &cobra.Command{
	Use:   "allocate FILE...",
	Short: "Allocate the stations of one or more spreadsheets into teams",
	Long: `Reads stations from .xlsx or .csv files, allocates each file independently
and prints one summary per file. With several files, --out names a directory
and each result is written as <name>_teams.<format>.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts := allocOpts
		if cmd.Flags().Changed("tolerance") {
			t := allocTolerance
			opts.Tolerance = &t
		}
		return runAllocate(ctx, cmd.OutOrStdout(), cfg, args, opts)
	},
}

func init() {
	f := allocateCmd.Flags()
	f.IntVarP(&allocOpts.Teams, "teams", "n", 0, "number of teams (default from config)")
	f.Float64VarP(&allocTolerance, "tolerance", "t", 0, "load tolerance in percent (default from config)")
	f.StringVarP(&allocOpts.Out, "out", "o", "", "write teams to this file (.xlsx, .csv or .json)")
	f.StringVar(&allocOpts.Format, "format", "xlsx", "output format when --out is a directory")
	f.BoolVar(&allocOpts.Save, "save", false, "append the result to the history store")
	f.BoolVar(&allocOpts.Publish, "publish", false, "publish team assignments over MQTT")
	f.BoolVar(&allocOpts.Members, "members", false, "list the station codes of each team")
	rootCmd.AddCommand(allocateCmd)
}

type fileResult struct {
	runID    string
	path     string
	report   stationio.Report
	stations []model.Station
	result   allocation.Result
}

func runAllocate(ctx context.Context, out io.Writer, cfg *config.Config, files []string, opts allocateOptions) error {
	log := logger.New("allocate")
	params := cfg.Allocation.Params(opts.Teams, opts.Tolerance)
	engine := allocation.NewEngine(cfg.Allocation.Options(), logger.New("allocation"))

	outputs, err := outputPaths(files, opts)
	if err != nil {
		return err
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Allocation.MaxConcurrentRuns)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			stations, rep, err := stationio.ReadFile(path, stationio.Options{Sheet: cfg.Input.Sheet})
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			for _, issue := range rep.Dropped {
				log.Warnf("%s row %d dropped: %s", path, issue.Row, issue.Reason)
			}
			res := engine.Run(stations, params)
			if outputs[i] != "" {
				if err := export.WriteFile(outputs[i], res.Teams); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			results[i] = fileResult{runID: uuid.NewString(), path: path, report: rep, stations: stations, result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := record(ctx, cfg, results, params, opts); err != nil {
		return err
	}
	for i, r := range results {
		printSummary(out, r, params)
		if opts.Members {
			printMembers(out, r.result.Teams)
		}
		if outputs[i] != "" {
			_, _ = fmt.Fprintf(out, "written to %s\n", outputs[i])
		}
		_, _ = fmt.Fprintln(out)
	}
	return nil
}

// outputPaths returns the export path of each input, or "" when none.
func outputPaths(files []string, opts allocateOptions) ([]string, error) {
	paths := make([]string, len(files))
	if opts.Out == "" {
		return paths, nil
	}
	if len(files) == 1 {
		if _, err := stationio.FormatOf(opts.Out); err != nil {
			return nil, err
		}
		paths[0] = opts.Out
		return paths, nil
	}
	format := strings.TrimPrefix(strings.ToLower(opts.Format), ".")
	if _, err := stationio.FormatOf("x." + format); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.Out, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	for i, f := range files {
		base := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		paths[i] = filepath.Join(opts.Out, base+"_teams."+format)
	}
	return paths, nil
}

// record feeds the configured metrics sinks and, when asked, the history
// store and the assignment publisher.
func record(ctx context.Context, cfg *config.Config, results []fileResult, params model.Params, opts allocateOptions) error {
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics sink: %w", err)
	}
	log := logger.New("allocate")
	for _, r := range results {
		ev := events.RunEvent{
			Type:      events.RunCompleted,
			RunID:     r.runID,
			Source:    r.path,
			Params:    params,
			Teams:     r.result.Teams,
			Stations:  len(r.stations),
			Bounds:    r.result.Bounds,
			Fallbacks: len(r.result.Fallbacks),
			Rebalance: r.result.Rebalance,
			Duration:  r.result.Duration,
			Time:      time.Now().UTC(),
		}
		if err := sink.RecordRun(metrics.Summarize(ev)); err != nil {
			log.Warnf("record metrics for %s: %v", r.path, err)
		}
	}

	if opts.Save {
		store, err := history.NewStore(cfg.History.Module())
		if err != nil {
			return fmt.Errorf("history store: %w", err)
		}
		defer func() { _ = store.Close() }()
		for _, r := range results {
			rec := history.NewRecord(history.KindRun, r.path, params, r.result.Teams)
			rec.Fallbacks = len(r.result.Fallbacks)
			if err := store.Append(ctx, rec); err != nil {
				return fmt.Errorf("save %s: %w", r.path, err)
			}
			log.Infof("%s saved as %s", r.path, rec.ID)
		}
	}

	if opts.Publish {
		pub, err := mqtt.NewPublisher(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("mqtt publisher: %w", err)
		}
		defer pub.Close()
		for _, r := range results {
			if len(r.result.Teams) == 0 {
				continue
			}
			if err := pub.PublishAssignments(ctx, r.runID, r.result.Teams); err != nil {
				return fmt.Errorf("publish %s: %w", r.path, err)
			}
		}
	}
	return nil
}

func printSummary(out io.Writer, r fileResult, params model.Params) {
	_, _ = fmt.Fprintf(out, "%s: %d stations kept of %d rows, %d teams requested\n",
		r.path, r.report.Kept, r.report.Rows, params.NumberOfTeams)
	if len(r.result.Teams) == 0 {
		_, _ = fmt.Fprintln(out, "no teams: nothing to allocate")
		return
	}
	b := r.result.Bounds
	_, _ = fmt.Fprintf(out, "target %.2f, band [%.2f, %.2f], %d fallbacks, %d swaps in %s\n",
		b.Target, b.Min, b.Max, len(r.result.Fallbacks), r.result.Rebalance.Swaps, r.result.Duration.Round(time.Millisecond))
	printTeams(out, r.result.Teams)
}
