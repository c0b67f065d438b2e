// Command scan runs the daily Form 4 scan: fetch recent filings from
// EDGAR, detect insider buy clusters and significant sells, and send
// alerts. One-shot by default; --schedule keeps it resident on a cron
// expression.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/bighogz/form4-scanner/internal/config"
	"github.com/bighogz/form4-scanner/internal/models"
	"github.com/bighogz/form4-scanner/internal/report"
	"github.com/bighogz/form4-scanner/internal/scan"
	"github.com/bighogz/form4-scanner/internal/store"
	"github.com/bighogz/form4-scanner/pkg/logger"
)

func main() {
	var (
		configPath  = flag.String("config", "scanner.toml", "path to TOML config")
		dryRun      = flag.Bool("dry-run", false, "compute and print alerts without sending or recording")
		fetchOnly   = flag.Bool("fetch-only", false, "fetch and store filings, skip analysis")
		analyzeOnly = flag.Bool("analyze-only", false, "analyze stored data, skip fetching")
		statusOnly  = flag.Bool("status-only", false, "print the status report only")
		retryErrors = flag.Bool("retry-errors", false, "re-queue filings previously marked as errors")
		asOfFlag    = flag.String("as-of", "", "analyze as of this date (YYYY-MM-DD, default today)")
		schedule    = flag.String("schedule", "", "cron expression; run as a daemon instead of one-shot")
		force       = flag.Bool("force", false, "run even on weekends")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	var asOf time.Time
	if *asOfFlag != "" {
		asOf, err = time.Parse(models.DateLayout, *asOfFlag)
		if err != nil {
			log.Fatal().Str("as_of", *asOfFlag).Msg("invalid --as-of date")
		}
	}

	opts := scan.Options{
		DryRun:      *dryRun,
		FetchOnly:   *fetchOnly,
		AnalyzeOnly: *analyzeOnly,
		StatusOnly:  *statusOnly,
		RetryErrors: *retryErrors,
		AsOf:        asOf,
	}

	if *schedule != "" {
		runDaemon(cfg, opts, *schedule, *force, log)
		return
	}

	os.Exit(runOnce(cfg, opts, *force, log))
}

func runOnce(cfg config.Config, opts scan.Options, force bool, log zerolog.Logger) int {
	day := opts.AsOf
	if day.IsZero() {
		day = time.Now()
	}
	if isWeekend(day) && !force {
		log.Info().Str("day", day.Weekday().String()).Msg("weekend, skipping scan")
		return 0
	}

	st, err := store.Open(cfg.DBPath, log)
	if err != nil {
		log.Error().Err(err).Msg("open store")
		return 1
	}
	defer st.Close()

	runner := scan.NewRunner(cfg, st, buildSender(cfg, opts.DryRun, log), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx, opts); err != nil {
		log.Error().Err(err).Msg("scan failed")
		return 1
	}
	return 0
}

func runDaemon(cfg config.Config, opts scan.Options, schedule string, force bool, log zerolog.Logger) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		// Each tick is its own as-of-today run.
		tick := opts
		tick.AsOf = time.Time{}
		runOnce(cfg, tick, force, log)
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", schedule).Msg("invalid cron expression")
	}

	log.Info().Str("schedule", schedule).Msg("scanner daemon started")
	c.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down")
	<-c.Stop().Done()
}

// buildSender picks delivery: log output for dry runs or when SMTP is
// incomplete, email otherwise.
func buildSender(cfg config.Config, dryRun bool, log zerolog.Logger) report.Sender {
	if dryRun {
		return report.NewLogSender(log)
	}
	email := report.NewEmailSender(cfg.SMTP, log)
	if !email.Configured() {
		log.Warn().Msg("smtp not configured, alerts go to the log")
		return report.NewLogSender(log)
	}
	return email
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
