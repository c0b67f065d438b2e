package enrich

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/bighogz/form4-scanner/internal/models"
)

// FRED series the regime check reads.
const (
	seriesVIX    = "VIXCLS"       // CBOE volatility index
	seriesCurve  = "T10Y2Y"       // 10y minus 2y treasury spread
	seriesCredit = "BAMLH0A0HYM2" // high-yield OAS
)

// MacroRegime is the market-backdrop assessment attached to cross-signal
// reports. Context only; it never changes a signal's tier.
type MacroRegime struct {
	Label      models.MacroLabel
	Flags      []string
	VIX        float64
	YieldCurve float64
	CreditSprd float64
	Err        string
}

// MacroReader reads cached FRED observations from the local macro
// database maintained by a separate downloader.
type MacroReader struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewMacroReader opens the FRED cache read-only. Missing database means
// every Regime call reports Unknown with Err set.
func NewMacroReader(dbPath string, log zerolog.Logger) *MacroReader {
	r := &MacroReader{log: log.With().Str("component", "macro").Logger()}
	if dbPath == "" {
		return r
	}
	if _, err := os.Stat(dbPath); err != nil {
		r.log.Warn().Str("path", dbPath).Msg("macro database not found, regime checks disabled")
		return r
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=query_only(1)")
	if err != nil {
		r.log.Warn().Err(err).Msg("macro database unavailable")
		return r
	}
	r.db = db
	return r
}

// Close releases the database handle.
func (r *MacroReader) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Regime evaluates the macro backdrop as of a date. Risk flags: VIX
// above 30, yield curve flat-but-positive (inversion already passed),
// high-yield spread at 4 points or wider. Zero flags is FAVORABLE, one
// is CAUTION, two or more UNFAVORABLE.
func (r *MacroReader) Regime(asOf string) MacroRegime {
	if r.db == nil {
		return MacroRegime{Label: models.MacroUnknown, Err: "macro database unavailable"}
	}

	vix, err := r.latest(seriesVIX, asOf)
	if err != nil {
		return MacroRegime{Label: models.MacroUnknown, Err: err.Error()}
	}
	curve, err := r.latest(seriesCurve, asOf)
	if err != nil {
		return MacroRegime{Label: models.MacroUnknown, Err: err.Error()}
	}
	credit, err := r.latest(seriesCredit, asOf)
	if err != nil {
		return MacroRegime{Label: models.MacroUnknown, Err: err.Error()}
	}

	regime := MacroRegime{VIX: vix, YieldCurve: curve, CreditSprd: credit}
	if vix > 30 {
		regime.Flags = append(regime.Flags, fmt.Sprintf("VIX elevated (%.1f)", vix))
	}
	if curve >= 0 && curve < 0.5 {
		regime.Flags = append(regime.Flags, fmt.Sprintf("yield curve flattening (%.2f)", curve))
	}
	if credit >= 4 {
		regime.Flags = append(regime.Flags, fmt.Sprintf("credit spreads wide (%.2f)", credit))
	}

	switch len(regime.Flags) {
	case 0:
		regime.Label = models.MacroFavorable
	case 1:
		regime.Label = models.MacroCaution
	default:
		regime.Label = models.MacroUnfavorable
	}
	return regime
}

// latest returns the most recent observation for a series on or before
// the as-of date.
func (r *MacroReader) latest(series, asOf string) (float64, error) {
	var v float64
	err := r.db.QueryRow(`
        SELECT value FROM observations
        WHERE series_id = ? AND obs_date <= ? AND value IS NOT NULL
        ORDER BY obs_date DESC LIMIT 1`, series, asOf).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("no %s observations on or before %s", series, asOf)
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", series, err)
	}
	return v, nil
}
