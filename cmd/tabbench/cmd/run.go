package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/BotBlake/tabbench/internal/catalog"
	"github.com/BotBlake/tabbench/internal/engine"
	"github.com/BotBlake/tabbench/internal/httpclient"
	"github.com/BotBlake/tabbench/internal/hwinventory"
	"github.com/BotBlake/tabbench/internal/observability"
	"github.com/BotBlake/tabbench/internal/report"
	"github.com/BotBlake/tabbench/internal/staging"
)

var runCmd = &cobra.Command{
	Use:   "run --platform <id>",
	Short: "Fetch a plan from the catalog and run the benchmark",
	Long: `Fetch the benchmark plan for a platform from the catalog, run the
adaptive concurrency-probe engine against it, and write the resulting
report to disk. Submission of the report back to the catalog is
controlled by catalog.submit_report.`,
	RunE: runBenchmark,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("platform", "", "platform ID to request from the catalog (required)")
	runCmd.Flags().String("staging-dir", "", "directory to stage the transcoder and media into (default: config staging.cache_dir)")
	_ = runCmd.MarkFlagRequired("platform")
}

func runBenchmark(c *cobra.Command, _ []string) error {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.LoggerFromContext(ctx)

	platformID, _ := c.Flags().GetString("platform")
	stagingDir, _ := c.Flags().GetString("staging-dir")
	if stagingDir == "" {
		stagingDir = cfg.Staging.CacheDir
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.Catalog.Timeout
	httpCfg.RetryAttempts = cfg.Catalog.RetryAttempts
	httpCfg.RetryDelay = cfg.Catalog.RetryDelay
	httpCfg.CircuitThreshold = cfg.Catalog.CircuitBreakerThreshold
	httpCfg.CircuitTimeout = cfg.Catalog.CircuitBreakerTimeout
	httpCfg.CircuitHalfOpenMax = cfg.Catalog.CircuitBreakerHalfOpen

	catalogClient := catalog.New(cfg.Catalog.BaseURL, cfg.Catalog.Token, httpCfg, logger)

	logger.Info("fetching benchmark plan", slog.String("platform", platformID))
	envelope, err := catalogClient.FetchPlan(ctx, platformID)
	if err != nil {
		return fmt.Errorf("fetching plan: %w", err)
	}

	logger.Info("collecting hardware inventory")
	hostInfo, err := hwinventory.Collect(ctx, logger)
	if err != nil {
		return fmt.Errorf("collecting hardware inventory: %w", err)
	}

	if len(envelope.Assets) > 0 {
		logger.Info("staging assets", slog.Int("count", len(envelope.Assets)))
		stager, err := staging.New(stagingDir, cfg.Staging.MaxAssetSize.Bytes(), cfg.Staging.Concurrency, nil, logger)
		if err != nil {
			return fmt.Errorf("preparing staging directory: %w", err)
		}
		if err := stager.Stage(ctx, envelope.Assets); err != nil {
			return fmt.Errorf("staging assets: %w", err)
		}
	}

	transcoderPath := filepath.Join(stagingDir, "ffmpeg")
	if cfg.Transcoder.BinaryPath != "" {
		transcoderPath = cfg.Transcoder.BinaryPath
	}

	accelerators := hostInfo.EnabledAccelerators
	if len(cfg.Hardware.ForceAccelerators) > 0 {
		accelerators = make([]engine.AcceleratorType, 0, len(cfg.Hardware.ForceAccelerators))
		for _, a := range cfg.Hardware.ForceAccelerators {
			accelerators = append(accelerators, engine.AcceleratorType(a))
		}
	}

	execCtx := engine.NewExecutionContext(
		transcoderPath,
		cfg.Transcoder.GPUIndex,
		accelerators...,
	)

	engine.SetRunDeadline(cfg.Transcoder.RunTimeout)

	overallBudget := cfg.Transcoder.RunTimeout * time.Duration(maxProbeCallsPerTemplate*countCommandTemplates(envelope.Plan))
	runCtx, cancel := context.WithTimeout(ctx, overallBudget)
	defer cancel()

	logger.Info("running benchmark plan", slog.Int("files", len(envelope.Plan.Files)))
	results := engine.RunBenchmark(runCtx, envelope.Plan, execCtx)

	rep := report.New(envelope.Token, hostInfo, results)

	outputPath := cfg.Report.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(".", "tabbench-report.json")
	}
	if err := report.WriteFile(outputPath, rep, cfg.Report.Pretty); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	logger.Info("wrote report", slog.String("path", outputPath))

	if cfg.Catalog.SubmitReport {
		if err := catalogClient.SubmitReport(ctx, rep); err != nil {
			logger.Warn("report submission failed", slog.String("error", err.Error()))
		} else {
			logger.Info("submitted report to catalog")
		}
	}

	fmt.Fprintf(os.Stdout, "wrote %d probe results to %s\n", len(results), outputPath)
	return nil
}

// maxProbeCallsPerTemplate bounds how many RunDeadline-length pool
// invocations a single CommandTemplate's adaptive probe is budgeted
// for. linearProbe can call the pool repeatedly while it grows (one
// call per level) and again while it scales back, so budgeting a
// single RunDeadline per template runs out mid-search on any template
// that doesn't resolve on its first try. There is no hard upper bound
// on how many steps a pathological growth/scaleback sequence could
// take; this is a generous heuristic, not a proof.
const maxProbeCallsPerTemplate = 12

// countCommandTemplates counts the CommandTemplates across the plan
// (at least 1); runBenchmark multiplies it by maxProbeCallsPerTemplate
// and the run timeout to size the overall deadline.
func countCommandTemplates(plan engine.BenchmarkPlan) int {
	count := 0
	for _, file := range plan.Files {
		for _, conversion := range file.Conversions {
			count += len(conversion.CommandTemplates)
		}
	}
	if count == 0 {
		return 1
	}
	return count
}
