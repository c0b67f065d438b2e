// Package scan wires the pipeline: EDGAR ingestion, detection, alert
// gating, and reporting. Per-item failures are logged and counted,
// never fatal to the run.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bighogz/form4-scanner/internal/config"
	"github.com/bighogz/form4-scanner/internal/detect"
	"github.com/bighogz/form4-scanner/internal/edgar"
	"github.com/bighogz/form4-scanner/internal/enrich"
	"github.com/bighogz/form4-scanner/internal/form4"
	"github.com/bighogz/form4-scanner/internal/models"
	"github.com/bighogz/form4-scanner/internal/report"
	"github.com/bighogz/form4-scanner/internal/store"
)

// Alert types recorded in the dedup ledger.
const (
	alertCluster = "cluster"
	alertSellS1  = "sell_s1"
	alertSellS2  = "sell_s2"
)

// Options selects which stages a run executes.
type Options struct {
	DryRun      bool
	FetchOnly   bool
	AnalyzeOnly bool
	StatusOnly  bool
	RetryErrors bool
	AsOf        time.Time
}

// Runner executes the daily Form 4 scan.
type Runner struct {
	cfg     config.Config
	store   *store.Store
	edgar   *edgar.Client
	parser  *form4.Parser
	cluster *detect.ClusterDetector
	options *enrich.OptionsChecker
	sender  report.Sender
	log     zerolog.Logger
}

// NewRunner wires a runner from its collaborators.
func NewRunner(cfg config.Config, st *store.Store, sender report.Sender, log zerolog.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		store:   st,
		edgar:   edgar.New(cfg.Edgar, log),
		parser:  form4.New(log),
		cluster: detect.NewClusterDetector(cfg.Cluster, log),
		options: enrich.NewOptionsChecker(cfg.OptionsDBPath, cfg.Cross.OptionsWindowDays, cfg.Cross.SpikeRatio, log),
		sender:  sender,
		log:     log.With().Str("component", "scan").Logger(),
	}
}

// Run executes the selected stages and always finishes with a status
// report. Returns an error only for failures that invalidate the whole
// run (store unreachable, feed unreachable).
func (r *Runner) Run(ctx context.Context, opts Options) error {
	runID := uuid.NewString()
	log := r.log.With().Str("run_id", runID).Logger()

	tracer, shutdown := initTracer()
	defer shutdown(context.Background())

	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	status := report.StatusData{
		AsOf:  asOf.Format(models.DateLayout),
		RunID: runID,
	}

	if opts.RetryErrors {
		n, err := r.store.ClearErrorFilings()
		if err != nil {
			return fmt.Errorf("clear error filings: %w", err)
		}
		log.Info().Int64("cleared", n).Msg("error filings re-queued")
	}

	if !opts.AnalyzeOnly && !opts.StatusOnly {
		ctx, span := tracer.Start(ctx, "fetch")
		err := r.fetch(ctx, log, &status)
		span.End()
		if err != nil {
			return err
		}
	}

	if !opts.FetchOnly && !opts.StatusOnly {
		ctx, span := tracer.Start(ctx, "analyze-buys")
		r.analyzeBuys(ctx, log, asOf, opts.DryRun, &status)
		span.End()

		ctx, span = tracer.Start(ctx, "analyze-sells")
		r.analyzeSells(ctx, log, asOf, opts.DryRun, &status)
		span.End()
	}

	_, span := tracer.Start(ctx, "status")
	defer span.End()

	stats, err := r.store.GetStats()
	if err != nil {
		return fmt.Errorf("load store stats: %w", err)
	}
	status.Stats = stats

	rep, err := report.StatusReport(status)
	if err != nil {
		return err
	}
	if err := r.sender.Send(ctx, rep); err != nil {
		log.Error().Err(err).Msg("status report delivery failed")
	}

	log.Info().
		Int("filings_new", status.FilingsNew).
		Int("clusters", status.ClustersFound).
		Int("sell_signals", status.SellsFound).
		Int("alerts_skipped", status.Skipped).
		Msg("scan complete")
	return nil
}

// fetch pulls the current feed and ingests unseen filings. A filing
// that fails to download or parse is marked "error" with the message
// and the run moves on.
func (r *Runner) fetch(ctx context.Context, log zerolog.Logger, status *report.StatusData) error {
	filings, err := r.edgar.RecentFilings(ctx)
	if err != nil {
		return fmt.Errorf("fetch filings: %w", err)
	}
	status.FilingsSeen = len(filings)

	for _, f := range filings {
		done, err := r.store.IsFilingProcessed(f.AccessionNumber)
		if err != nil {
			return err
		}
		if done {
			continue
		}

		if err := r.ingest(ctx, f, status); err != nil {
			status.FilingsFailed++
			log.Warn().Str("accession", f.AccessionNumber).Err(err).Msg("filing failed")
			if mErr := r.store.MarkFilingProcessed(f.AccessionNumber, "error", err.Error()); mErr != nil {
				return mErr
			}
			continue
		}

		status.FilingsNew++
		if err := r.store.MarkFilingProcessed(f.AccessionNumber, "success", ""); err != nil {
			return err
		}
	}

	log.Info().
		Int("seen", status.FilingsSeen).
		Int("new", status.FilingsNew).
		Int("failed", status.FilingsFailed).
		Int("transactions", status.TxnsStored).
		Msg("fetch stage done")
	return nil
}

func (r *Runner) ingest(ctx context.Context, f edgar.Filing, status *report.StatusData) error {
	doc, err := r.edgar.FetchForm4(ctx, f)
	if err != nil {
		return err
	}

	filingDate := f.Updated
	if len(filingDate) >= len(models.DateLayout) {
		filingDate = filingDate[:len(models.DateLayout)]
	}

	txns, err := r.parser.Parse(doc, f.AccessionNumber, filingDate)
	if err != nil {
		return err
	}
	for _, t := range txns {
		inserted, err := r.store.InsertTransaction(t)
		if err != nil {
			return err
		}
		if inserted {
			status.TxnsStored++
		}
	}
	return nil
}

// analyzeBuys detects clusters over the recent purchase window, gates
// them through the sent-alert ledger, and notifies.
func (r *Runner) analyzeBuys(ctx context.Context, log zerolog.Logger, asOf time.Time, dryRun bool, status *report.StatusData) {
	cutoff := asOf.AddDate(0, 0, -r.cfg.Cluster.WindowDays).Format(models.DateLayout)
	purchases, err := r.store.PurchasesSince(cutoff, r.cfg.Cluster.MinPurchaseValue)
	if err != nil {
		log.Error().Err(err).Msg("load purchases")
		return
	}

	signals := r.cluster.Detect(purchases, asOf)
	status.ClustersFound = len(signals)

	// Alerts are day-stamped: the same cluster alerted twice on one day
	// is suppressed, a new scan day may re-raise it.
	alertDate := asOf.Format(models.DateLayout)

	for _, sig := range signals {
		sent, err := r.store.WasAlertSent(alertCluster, sig.Ticker, alertDate)
		if err != nil {
			log.Error().Err(err).Str("ticker", sig.Ticker).Msg("dedup check failed")
			continue
		}
		if sent {
			status.Skipped++
			continue
		}

		check := r.options.Check(sig.Ticker, sig.SignalDate)
		sig.Contamination = &check

		rep, err := report.ClusterAlert(sig)
		if err != nil {
			log.Error().Err(err).Str("ticker", sig.Ticker).Msg("render cluster alert")
			continue
		}
		if err := r.deliver(ctx, log, rep, dryRun, alertCluster, sig.Ticker, alertDate,
			fmt.Sprintf("%d insiders, $%.0f", sig.UniqueInsiders, sig.TotalPurchased)); err != nil {
			continue
		}
		status.ClustersSent++
	}

	log.Info().Int("clusters", status.ClustersFound).Int("alerted", status.ClustersSent).Msg("buy analysis done")
}

// analyzeSells classifies recent sells and alerts S1/S2 rollups. Watch
// tier is counted for the status report but never gated or notified.
func (r *Runner) analyzeSells(ctx context.Context, log zerolog.Logger, asOf time.Time, dryRun bool, status *report.StatusData) {
	cutoff := asOf.AddDate(0, 0, -r.cfg.Sell.LookbackDays).Format(models.DateLayout)
	sells, err := r.store.SignificantSells(cutoff, r.cfg.Sell.MinValue)
	if err != nil {
		log.Error().Err(err).Msg("load sells")
		return
	}

	classified := make([]models.ClassifiedSell, 0, len(sells))
	for _, s := range sells {
		classified = append(classified, detect.ClassifySell(s, r.cfg.Sell))
	}

	alertDate := asOf.Format(models.DateLayout)

	for _, sig := range detect.RollupSells(classified) {
		if sig.Tier == models.SellTierWatch {
			status.WatchCount++
			continue
		}
		status.SellsFound++

		alertType := alertSellS1
		if sig.Tier == models.SellTierS2 {
			alertType = alertSellS2
		}

		sent, err := r.store.WasAlertSent(alertType, sig.Ticker, alertDate)
		if err != nil {
			log.Error().Err(err).Str("ticker", sig.Ticker).Msg("dedup check failed")
			continue
		}
		if sent {
			status.Skipped++
			continue
		}

		rep, err := report.SellAlert(sig)
		if err != nil {
			log.Error().Err(err).Str("ticker", sig.Ticker).Msg("render sell alert")
			continue
		}
		if err := r.deliver(ctx, log, rep, dryRun, alertType, sig.Ticker, alertDate,
			fmt.Sprintf("%d sellers, $%.0f", sig.NumSellers, sig.TotalValue)); err != nil {
			continue
		}
		status.SellAlertsSent++
	}

	log.Info().
		Int("signals", status.SellsFound).
		Int("alerted", status.SellAlertsSent).
		Int("watch", status.WatchCount).
		Msg("sell analysis done")
}

// deliver sends one alert and records it in the ledger. Dry runs still
// render through the sender (a LogSender in that mode) but never touch
// the ledger, so the next real run re-sends.
func (r *Runner) deliver(ctx context.Context, log zerolog.Logger, rep report.Report, dryRun bool, alertType, ticker, alertDate, details string) error {
	if err := r.sender.Send(ctx, rep); err != nil {
		log.Error().Err(err).Str("ticker", ticker).Msg("alert delivery failed")
		return err
	}
	if dryRun {
		return nil
	}
	if err := r.store.RecordAlertSent(alertType, ticker, alertDate, details); err != nil {
		log.Error().Err(err).Str("ticker", ticker).Msg("record alert failed")
		return err
	}
	return nil
}
