package enrich

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bighogz/form4-scanner/internal/config"
	"github.com/bighogz/form4-scanner/internal/models"
)

// CrossClassifier filters insider buys to the tier-2-quality subset
// (C-suite buyer, large ticket) and assigns each a conviction tier from
// short-interest confirmation.
type CrossClassifier struct {
	cfg config.CrossConfig
	log zerolog.Logger
}

// NewCrossClassifier returns a classifier with the given thresholds.
func NewCrossClassifier(cfg config.CrossConfig, log zerolog.Logger) *CrossClassifier {
	if len(cfg.CSuiteKeywords) == 0 {
		cfg.CSuiteKeywords = config.Defaults().Cross.CSuiteKeywords
	}
	if cfg.DTCThreshold <= 0 {
		cfg.DTCThreshold = 5.0
	}
	return &CrossClassifier{
		cfg: cfg,
		log: log.With().Str("component", "cross-classifier").Logger(),
	}
}

// Qualifies reports whether a purchase is worth the enrichment round
// trips: a C-suite title and a ticket at or above the value floor.
func (c *CrossClassifier) Qualifies(t models.Transaction) bool {
	if t.TotalValue < c.cfg.MinPurchaseValue {
		return false
	}
	title := strings.ToUpper(t.InsiderTitle)
	for _, kw := range c.cfg.CSuiteKeywords {
		if strings.Contains(title, strings.ToUpper(kw)) {
			return true
		}
	}
	return false
}

// Classify builds the cross signal for one qualifying purchase. Tier
// from short interest: squeeze setup (high days-to-cover) plus surging
// shorts is Tier 1; rising shorts Tier 2; elevated cover alone Tier 3;
// anything else — including failed SI lookups — stays unverified.
// Options contamination is recorded but never changes the tier.
func (c *CrossClassifier) Classify(t models.Transaction, si SIMetrics, regime MacroRegime, contamination models.OptionsCheck) models.CrossSignal {
	sig := models.CrossSignal{
		Transaction:      t,
		DaysToCover:      si.DaysToCover,
		SIChangePct:      si.ChangePct,
		ShortPctFloat:    si.PctFloat,
		SharesShort:      si.SharesShort,
		SharesShortPrior: si.SharesShortPrior,
		SIError:          si.Err,
		MacroLabel:       regime.Label,
		MacroFlags:       regime.Flags,
		Contamination:    contamination,
	}

	switch {
	case si.Err != "":
		sig.Tier = models.TierUnverified
	case si.DaysToCover > c.cfg.DTCThreshold && si.ChangePct > c.cfg.SurgeThresholdPct:
		sig.Tier = models.Tier1
	case si.DaysToCover > c.cfg.DTCThreshold && si.ChangePct > c.cfg.IncreaseThresholdPct:
		sig.Tier = models.Tier2
	case si.DaysToCover > c.cfg.DTCThreshold:
		sig.Tier = models.Tier3
	default:
		sig.Tier = models.TierUnverified
	}
	return sig
}

// SortSignals orders cross signals for presentation: strongest tier
// first, then largest purchase.
func SortSignals(signals []models.CrossSignal) {
	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Tier != signals[j].Tier {
			return signals[i].Tier < signals[j].Tier
		}
		return signals[i].TotalValue > signals[j].TotalValue
	})
}
