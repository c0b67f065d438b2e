// Package detect holds the signal detectors: buy-cluster detection and
// sell classification. Both are pure in-memory computations over
// transaction slices; persistence and alert gating live elsewhere.
package detect

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bighogz/form4-scanner/internal/config"
	"github.com/bighogz/form4-scanner/internal/models"
)

// ClusterDetector finds episodes of several distinct insiders buying the
// same ticker inside a rolling window.
type ClusterDetector struct {
	cfg config.ClusterConfig
	log zerolog.Logger
}

// NewClusterDetector returns a detector with the given thresholds.
func NewClusterDetector(cfg config.ClusterConfig, log zerolog.Logger) *ClusterDetector {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 14
	}
	if cfg.MinClusterSize <= 0 {
		cfg.MinClusterSize = 2
	}
	if cfg.RetriggerDays <= 0 {
		cfg.RetriggerDays = 7
	}
	if len(cfg.CSuiteKeywords) == 0 {
		cfg.CSuiteKeywords = config.Defaults().Cluster.CSuiteKeywords
	}
	return &ClusterDetector{
		cfg: cfg,
		log: log.With().Str("component", "cluster-detector").Logger(),
	}
}

// Detect returns one signal per buying episode, at most one per ticker
// per episode. The result is deterministic regardless of input order:
// qualifying purchases are grouped per ticker, every transaction date is
// tried as a window start (closed interval [start, start+window]), and
// overlapping candidates collapse under the retrigger rule.
func (d *ClusterDetector) Detect(txns []models.Transaction, asOf time.Time) []models.ClusterSignal {
	byTicker := map[string][]models.Transaction{}
	for _, t := range txns {
		if t.TransactionCode != "P" || t.AcquiredDisposed != "A" {
			continue
		}
		if t.IssuerTicker == "" {
			continue
		}
		if t.TotalValue < d.cfg.MinPurchaseValue {
			continue
		}
		if _, ok := t.Date(); !ok {
			continue
		}
		byTicker[t.IssuerTicker] = append(byTicker[t.IssuerTicker], t)
	}

	var candidates []models.ClusterSignal
	for ticker, purchases := range byTicker {
		if len(purchases) < d.cfg.MinClusterSize {
			continue
		}
		candidates = append(candidates, d.scanTicker(ticker, purchases)...)
	}

	signals := dedupEpisodes(candidates, d.cfg.RetriggerDays)
	for i := range signals {
		signals[i].Score = Score(signals[i], asOf)
	}
	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Score != signals[j].Score {
			return signals[i].Score > signals[j].Score
		}
		return signals[i].Ticker < signals[j].Ticker
	})

	d.log.Debug().Int("candidates", len(candidates)).Int("signals", len(signals)).Msg("cluster scan done")
	return signals
}

// scanTicker slides the window across one ticker's purchases. Every
// purchase date is a candidate window start; a candidate qualifies when
// the closed interval holds at least MinClusterSize distinct insiders.
func (d *ClusterDetector) scanTicker(ticker string, purchases []models.Transaction) []models.ClusterSignal {
	sort.Slice(purchases, func(i, j int) bool {
		if purchases[i].TransactionDate != purchases[j].TransactionDate {
			return purchases[i].TransactionDate < purchases[j].TransactionDate
		}
		return purchases[i].InsiderID() < purchases[j].InsiderID()
	})

	window := time.Duration(d.cfg.WindowDays) * 24 * time.Hour

	var out []models.ClusterSignal
	for i := range purchases {
		start, _ := purchases[i].Date()
		end := start.Add(window)

		var members []models.Transaction
		for j := i; j < len(purchases); j++ {
			dt, _ := purchases[j].Date()
			if dt.After(end) {
				break
			}
			members = append(members, purchases[j])
		}

		insiders := map[string]bool{}
		for _, m := range members {
			insiders[m.InsiderID()] = true
		}
		if len(insiders) < d.cfg.MinClusterSize {
			continue
		}
		out = append(out, d.buildSignal(ticker, members, insiders, start, end))
	}
	return out
}

func (d *ClusterDetector) buildSignal(ticker string, members []models.Transaction, insiders map[string]bool, start, end time.Time) models.ClusterSignal {
	sig := models.ClusterSignal{
		Ticker:         ticker,
		Transactions:   members,
		UniqueInsiders: len(insiders),
		WindowStart:    start.Format(models.DateLayout),
		WindowEnd:      end.Format(models.DateLayout),
	}
	for _, m := range members {
		sig.TotalShares += m.SharesAmount
		sig.TotalPurchased += m.TotalValue
		if m.TransactionDate > sig.SignalDate {
			sig.SignalDate = m.TransactionDate
		}
		if sig.CompanyName == "" {
			sig.CompanyName = m.IssuerName
		}
		title := strings.ToUpper(m.InsiderTitle)
		for _, kw := range d.cfg.CSuiteKeywords {
			if strings.Contains(title, strings.ToUpper(kw)) {
				sig.HasCSuite = true
				break
			}
		}
		if strings.Contains(title, "CEO") || strings.Contains(title, "CHIEF EXECUTIVE") {
			sig.HasCEO = true
		}
		if strings.Contains(title, "CFO") || strings.Contains(title, "CHIEF FINANCIAL") {
			sig.HasCFO = true
		}
	}
	return sig
}

// dedupEpisodes collapses overlapping window candidates: sorted by
// (ticker, signal date, insider count desc), a candidate within
// retriggerDays of the previously kept signal for the same ticker is
// the same buying episode and is dropped.
func dedupEpisodes(candidates []models.ClusterSignal, retriggerDays int) []models.ClusterSignal {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Ticker != b.Ticker {
			return a.Ticker < b.Ticker
		}
		if a.SignalDate != b.SignalDate {
			return a.SignalDate < b.SignalDate
		}
		return a.UniqueInsiders > b.UniqueInsiders
	})

	var out []models.ClusterSignal
	lastKept := map[string]time.Time{}
	for _, c := range candidates {
		sigDate, err := time.Parse(models.DateLayout, c.SignalDate)
		if err != nil {
			continue
		}
		if prev, ok := lastKept[c.Ticker]; ok {
			if sigDate.Sub(prev) <= time.Duration(retriggerDays)*24*time.Hour {
				continue
			}
		}
		lastKept[c.Ticker] = sigDate
		out = append(out, c)
	}
	return out
}

// Score ranks a cluster signal:
//
//	25 per distinct insider
//	+ min(50, 10*log10(total dollars)), 0 when total is not positive
//	+ recency: 20 if the latest buy is within 3 days of now, 10 within 7
//
// Unparseable signal dates contribute no recency bonus.
func Score(sig models.ClusterSignal, now time.Time) float64 {
	score := 25 * float64(sig.UniqueInsiders)

	if sig.TotalPurchased > 0 {
		score += math.Min(50, 10*math.Log10(sig.TotalPurchased))
	}

	if sigDate, err := time.Parse(models.DateLayout, sig.SignalDate); err == nil {
		age := now.Sub(sigDate)
		switch {
		case age <= 3*24*time.Hour:
			score += 20
		case age <= 7*24*time.Hour:
			score += 10
		}
	}
	return score
}
