// Command crosssignal runs the cross-signal scan: recent large C-suite
// buys cross-checked against short interest, options flow, and the
// macro regime.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bighogz/form4-scanner/internal/config"
	"github.com/bighogz/form4-scanner/internal/models"
	"github.com/bighogz/form4-scanner/internal/report"
	"github.com/bighogz/form4-scanner/internal/scan"
	"github.com/bighogz/form4-scanner/internal/store"
	"github.com/bighogz/form4-scanner/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", "scanner.toml", "path to TOML config")
		dryRun     = flag.Bool("dry-run", false, "print the report without sending or logging signals")
		asOfFlag   = flag.String("as-of", "", "scan as of this date (YYYY-MM-DD, default today)")
		force      = flag.Bool("force", false, "run even on weekends")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	asOf := time.Now()
	if *asOfFlag != "" {
		asOf, err = time.Parse(models.DateLayout, *asOfFlag)
		if err != nil {
			log.Fatal().Str("as_of", *asOfFlag).Msg("invalid --as-of date")
		}
	}

	if wd := asOf.Weekday(); (wd == time.Saturday || wd == time.Sunday) && !*force {
		log.Info().Str("day", wd.String()).Msg("weekend, skipping cross-signal scan")
		return
	}

	st, err := store.Open(cfg.DBPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	var sender report.Sender
	if *dryRun {
		sender = report.NewLogSender(log)
	} else {
		email := report.NewEmailSender(cfg.SMTP, log)
		if email.Configured() {
			sender = email
		} else {
			log.Warn().Msg("smtp not configured, report goes to the log")
			sender = report.NewLogSender(log)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := scan.NewCrossRunner(cfg, st, sender, log)
	if err := runner.Run(ctx, asOf, *dryRun); err != nil {
		log.Error().Err(err).Msg("cross-signal scan failed")
		os.Exit(1)
	}
}
