package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mgijax/srcload/internal/input"
	"github.com/mgijax/srcload/internal/metrics"
	"github.com/mgijax/srcload/internal/qc"
	"github.com/mgijax/srcload/internal/resilience"
	"github.com/mgijax/srcload/internal/source"
	"github.com/mgijax/srcload/internal/store"
)

var (
	loadFile      string
	loadBatchSize int
	loadPolicy    string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Resolve and load the sources of a record file",
	Long:  "Reads tab-delimited sequence records, resolves or collapses each record's molecular source, reconciles existing associations, and writes the changes to MGD in batches.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loadBatchSize > 0 {
			cfg.Load.BatchSize = loadBatchSize
		}
		if err := cfg.Validate("load"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f, err := os.Open(loadFile)
		if err != nil {
			return eris.Wrapf(err, "load: open %s", loadFile)
		}
		defer f.Close() //nolint:errcheck

		env, err := initSourceEnv(ctx, envOptions{Policy: loadPolicy})
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := qc.NewSQLite(cfg.QC.DatabasePath)
		if err != nil {
			return err
		}
		defer report.Close() //nolint:errcheck
		if err := report.Migrate(ctx); err != nil {
			return err
		}
		reporter := qc.Multi{report, qc.NewLogReporter(nil)}

		recorder := metrics.NewRecorder()
		if cfg.Metrics.Addr != "" {
			go func() {
				if err := recorder.Serve(ctx, cfg.Metrics.Addr); err != nil {
					zap.L().Warn("metrics server stopped", zap.Error(err))
				}
			}()
		}

		batch := store.NewBatch(env.Gateway.Pool(), cfg.Source.ModifiedBy)
		var clones source.CloneSourceFinder
		if cfg.Source.CloneSearch {
			clones = env.Gateway
		}
		proc := source.NewProcessor(source.ProcessorDeps{
			Discovery: source.NewDiscovery(env.Gateway, clones, env.Resolver, reporter, source.DiscoveryConfig{
				CloneSearch: cfg.Source.CloneSearch,
				MaxClones:   cfg.Source.MaxClones,
			}),
			Resolver:   env.Resolver,
			Reconciler: source.NewReconciler(batch, reporter),
			Gateway:    env.Gateway,
			History:    env.Gateway,
			Inserter:   batch,
			Observer:   recorder,
		})

		retry := resilience.FromConfig(cfg.Load.FlushAttempts, cfg.Load.FlushBackoff)
		retry.OnRetry = resilience.RetryLogger("flush")
		l := &loader{
			proc:      proc,
			writer:    batch,
			batchSize: cfg.Load.BatchSize,
			retry:     retry,
			observer:  recorder,
		}

		readCtx, cancelRead := context.WithCancel(ctx)
		defer cancelRead()
		items, readErr := input.Stream(readCtx, f, input.Options{})

		summary, runErr := l.run(ctx, items)
		cancelRead()
		for range items {
		}
		if err := <-readErr; err != nil && runErr == nil && ctx.Err() == nil {
			runErr = err
		}

		recorder.SetCacheSize(env.Cache.Len())
		proc.LogStats()

		qcSummary, err := report.Summary(ctx)
		if err != nil {
			zap.L().Warn("qc summary unavailable", zap.Error(err))
		}
		if err := printLoadSummary(cmd.OutOrStdout(), report.RunID(), summary, proc.Stats(), qcSummary); err != nil {
			return err
		}
		return runErr
	},
}

func printLoadSummary(out io.Writer, runID string, s loadSummary, stats source.Stats, q qc.Summary) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", runID)
	fmt.Fprintf(w, "records read\t%d\n", s.Read)
	fmt.Fprintf(w, "records processed\t%d\n", s.Processed)
	fmt.Fprintf(w, "records skipped\t%d\n", s.Skipped)
	fmt.Fprintf(w, "new associations\t%d\n", stats.New)
	fmt.Fprintf(w, "sources created\t%d\n", stats.Created)
	fmt.Fprintf(w, "sources collapsed\t%d\n", stats.Collapsed)
	fmt.Fprintf(w, "associations updated\t%d\n", stats.Updated)
	fmt.Fprintf(w, "by library / clones / attributes\t%d / %d / %d\n",
		stats.ByMethod[source.MethodLibraryName],
		stats.ByMethod[source.MethodAssociatedClones],
		stats.ByMethod[source.MethodAttributes],
	)
	fmt.Fprintf(w, "rows written (sources / associations / updates)\t%d / %d / %d\n",
		s.Flushed.Sources, s.Flushed.Associations, s.Flushed.Updates)
	fmt.Fprintf(w, "qc events (discrepancies / conflicts / library changes)\t%d / %d / %d\n",
		q.AttributeDiscrepancies, q.NameConflicts, q.ChangedLibraries)
	return w.Flush()
}

func init() {
	loadCmd.Flags().StringVar(&loadFile, "file", "", "tab-delimited record file (required)")
	loadCmd.Flags().IntVar(&loadBatchSize, "batch-size", 0, "queued writes per flush (default from config)")
	loadCmd.Flags().StringVar(&loadPolicy, "policy", "", "resolution policy (default from config)")
	_ = loadCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(loadCmd)
}
