package scan

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bighogz/form4-scanner/internal/config"
	"github.com/bighogz/form4-scanner/internal/enrich"
	"github.com/bighogz/form4-scanner/internal/models"
	"github.com/bighogz/form4-scanner/internal/report"
	"github.com/bighogz/form4-scanner/internal/store"
)

// CrossRunner executes the cross-signal scan: large C-suite buys
// cross-checked against short interest, options flow, and the macro
// backdrop.
type CrossRunner struct {
	cfg        config.Config
	store      *store.Store
	si         *enrich.SIClient
	options    *enrich.OptionsChecker
	macro      *enrich.MacroReader
	classifier *enrich.CrossClassifier
	sender     report.Sender
	log        zerolog.Logger
}

// NewCrossRunner wires a cross-signal runner.
func NewCrossRunner(cfg config.Config, st *store.Store, sender report.Sender, log zerolog.Logger) *CrossRunner {
	return &CrossRunner{
		cfg:        cfg,
		store:      st,
		si:         enrich.NewSIClient(log),
		options:    enrich.NewOptionsChecker(cfg.OptionsDBPath, cfg.Cross.OptionsWindowDays, cfg.Cross.SpikeRatio, log),
		macro:      enrich.NewMacroReader(cfg.FredDBPath, log),
		classifier: enrich.NewCrossClassifier(cfg.Cross, log),
		sender:     sender,
		log:        log.With().Str("component", "cross-scan").Logger(),
	}
}

// Run performs one cross-signal scan as of the given date.
func (r *CrossRunner) Run(ctx context.Context, asOf time.Time, dryRun bool) error {
	runID := uuid.NewString()
	log := r.log.With().Str("run_id", runID).Logger()

	tracer, shutdown := initTracer()
	defer shutdown(context.Background())

	if asOf.IsZero() {
		asOf = time.Now()
	}
	asOfStr := asOf.Format(models.DateLayout)

	ctx, span := tracer.Start(ctx, "cross-signal")
	defer span.End()

	cutoff := asOf.AddDate(0, 0, -r.cfg.Cross.LookbackDays).Format(models.DateLayout)
	purchases, err := r.store.PurchasesSince(cutoff, r.cfg.Cross.MinPurchaseValue)
	if err != nil {
		return fmt.Errorf("load purchases: %w", err)
	}

	regime := r.macro.Regime(asOfStr)
	if regime.Err != "" {
		log.Warn().Str("err", regime.Err).Msg("macro regime unavailable")
	}

	var signals []models.CrossSignal
	for _, p := range purchases {
		if !r.classifier.Qualifies(p) {
			continue
		}
		si := r.si.Fetch(ctx, p.IssuerTicker)
		if si.Err != "" {
			log.Warn().Str("ticker", p.IssuerTicker).Str("err", si.Err).Msg("short interest unavailable")
		}
		contamination := r.options.Check(p.IssuerTicker, p.TransactionDate)
		signals = append(signals, r.classifier.Classify(p, si, regime, contamination))
	}
	enrich.SortSignals(signals)

	log.Info().
		Int("purchases", len(purchases)).
		Int("signals", len(signals)).
		Str("macro", string(regime.Label)).
		Msg("cross-signal scan done")

	if len(signals) == 0 {
		return nil
	}

	if !dryRun {
		if err := r.appendLog(asOfStr, signals); err != nil {
			log.Error().Err(err).Msg("cross-signal log append failed")
		}
	}

	rep, err := report.CrossReport(signals, regime, asOfStr)
	if err != nil {
		return err
	}
	if err := r.sender.Send(ctx, rep); err != nil {
		return fmt.Errorf("send cross report: %w", err)
	}
	return nil
}

// appendLog records every signal in the running CSV used for backtest
// follow-up. The header is written when the file is new.
func (r *CrossRunner) appendLog(asOf string, signals []models.CrossSignal) error {
	path := r.cfg.Cross.LogPath
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write([]string{
			"scan_date", "ticker", "insider", "title", "value",
			"tier", "days_to_cover", "si_change_pct", "contaminated", "macro",
		}); err != nil {
			return err
		}
	}
	for _, s := range signals {
		if err := w.Write([]string{
			asOf,
			s.IssuerTicker,
			s.InsiderName,
			s.InsiderTitle,
			fmt.Sprintf("%.2f", s.TotalValue),
			s.Tier.String(),
			fmt.Sprintf("%.2f", s.DaysToCover),
			fmt.Sprintf("%.2f", s.SIChangePct),
			fmt.Sprintf("%t", s.Contamination.Contaminated),
			string(s.MacroLabel),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
