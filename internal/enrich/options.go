package enrich

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
	_ "modernc.org/sqlite"

	"github.com/bighogz/form4-scanner/internal/models"
)

// OptionsChecker reads the options-scanner database and flags insider
// trades that coincide with unusual options activity — a hint the
// "insider" signal is already crowded or front-run.
type OptionsChecker struct {
	db         *sql.DB
	windowDays int
	spikeRatio float64
	log        zerolog.Logger
}

// NewOptionsChecker opens the options database read-only. A missing or
// unopenable database is not an error here; every Check then reports
// Err instead.
func NewOptionsChecker(dbPath string, windowDays int, spikeRatio float64, log zerolog.Logger) *OptionsChecker {
	c := &OptionsChecker{
		windowDays: windowDays,
		spikeRatio: spikeRatio,
		log:        log.With().Str("component", "options-check").Logger(),
	}
	if c.windowDays <= 0 {
		c.windowDays = 28
	}
	if c.spikeRatio <= 0 {
		c.spikeRatio = 3.0
	}
	if dbPath == "" {
		return c
	}
	if _, err := os.Stat(dbPath); err != nil {
		c.log.Warn().Str("path", dbPath).Msg("options database not found, contamination checks disabled")
		return c
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=query_only(1)")
	if err != nil {
		c.log.Warn().Err(err).Msg("options database unavailable")
		return c
	}
	c.db = db
	return c
}

// Close releases the database handle.
func (c *OptionsChecker) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Check looks for unusual options activity around eventDate for the
// ticker. Primary source is the scanner's anomalies table; when it has
// nothing, raw daily volume is compared against the ticker's baseline
// mean. A set Err means "unknown", not "clean".
func (c *OptionsChecker) Check(ticker, eventDate string) models.OptionsCheck {
	if c.db == nil {
		return models.OptionsCheck{Err: "options database unavailable"}
	}
	event, err := time.Parse(models.DateLayout, eventDate)
	if err != nil {
		return models.OptionsCheck{Err: fmt.Sprintf("bad event date %q", eventDate)}
	}

	window := time.Duration(c.windowDays) * 24 * time.Hour
	from := event.Add(-window).Format(models.DateLayout)
	to := event.Add(window).Format(models.DateLayout)

	result, err := c.checkAnomalies(ticker, from, to)
	if err != nil {
		return models.OptionsCheck{Err: err.Error()}
	}
	if result.Contaminated {
		return result
	}

	// No recorded anomalies; fall back to raw volume vs baseline.
	fallback, err := c.checkRawVolume(ticker, from, to)
	if err != nil {
		// Raw volume table is optional in older scanner databases. The
		// anomalies table alone is not a clean verdict, so the result
		// carries an error marker rather than passing as verified clean.
		c.log.Debug().Str("ticker", ticker).Err(err).Msg("raw volume fallback unavailable")
		result.Err = fmt.Sprintf("volume fallback unavailable: %v", err)
		return result
	}
	return fallback
}

func (c *OptionsChecker) checkAnomalies(ticker, from, to string) (models.OptionsCheck, error) {
	rows, err := c.db.Query(`
        SELECT detected_date, COALESCE(volume_today, 0), COALESCE(deviation_multiple, 0),
               COALESCE(signal_type, ''), COALESCE(notes, '')
        FROM anomalies
        WHERE ticker = ? AND detected_date BETWEEN ? AND ?
        ORDER BY deviation_multiple DESC`, ticker, from, to)
	if err != nil {
		return models.OptionsCheck{}, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()

	var out models.OptionsCheck
	seenTypes := map[string]bool{}
	for rows.Next() {
		a := models.Anomaly{Ticker: ticker}
		if err := rows.Scan(&a.DetectedDate, &a.VolumeToday, &a.DeviationMultiple, &a.SignalType, &a.Notes); err != nil {
			return models.OptionsCheck{}, fmt.Errorf("scan anomaly: %w", err)
		}
		out.Anomalies = append(out.Anomalies, a)
		if a.DeviationMultiple > out.MaxDeviation {
			out.MaxDeviation = a.DeviationMultiple
		}
		if a.SignalType != "" && !seenTypes[a.SignalType] {
			seenTypes[a.SignalType] = true
			out.SignalTypes = append(out.SignalTypes, a.SignalType)
		}
	}
	if err := rows.Err(); err != nil {
		return models.OptionsCheck{}, err
	}
	out.Contaminated = len(out.Anomalies) > 0
	return out, nil
}

// checkRawVolume flags window days whose volume runs well above the
// ticker's long-run mean.
func (c *OptionsChecker) checkRawVolume(ticker, from, to string) (models.OptionsCheck, error) {
	baseRows, err := c.db.Query(`
        SELECT COALESCE(total_volume, 0) FROM daily_options_volume WHERE ticker = ?`, ticker)
	if err != nil {
		return models.OptionsCheck{}, fmt.Errorf("query volume baseline: %w", err)
	}
	defer baseRows.Close()

	var volumes []float64
	for baseRows.Next() {
		var v float64
		if err := baseRows.Scan(&v); err != nil {
			return models.OptionsCheck{}, err
		}
		volumes = append(volumes, v)
	}
	if err := baseRows.Err(); err != nil {
		return models.OptionsCheck{}, err
	}
	if len(volumes) < 5 {
		return models.OptionsCheck{Err: "insufficient volume history for " + ticker}, nil
	}
	baseline := stat.Mean(volumes, nil)
	if baseline <= 0 {
		return models.OptionsCheck{Err: "zero volume baseline for " + ticker}, nil
	}

	rows, err := c.db.Query(`
        SELECT trade_date, COALESCE(total_volume, 0)
        FROM daily_options_volume
        WHERE ticker = ? AND trade_date BETWEEN ? AND ?
        ORDER BY total_volume DESC LIMIT 5`, ticker, from, to)
	if err != nil {
		return models.OptionsCheck{}, fmt.Errorf("query window volume: %w", err)
	}
	defer rows.Close()

	var out models.OptionsCheck
	for rows.Next() {
		var date string
		var vol float64
		if err := rows.Scan(&date, &vol); err != nil {
			return models.OptionsCheck{}, err
		}
		ratio := vol / baseline
		if ratio < c.spikeRatio {
			continue
		}
		out.Anomalies = append(out.Anomalies, models.Anomaly{
			Ticker:            ticker,
			DetectedDate:      date,
			VolumeToday:       vol,
			DeviationMultiple: ratio,
			SignalType:        "volume_spike",
		})
		if ratio > out.MaxDeviation {
			out.MaxDeviation = ratio
		}
	}
	if err := rows.Err(); err != nil {
		return models.OptionsCheck{}, err
	}
	out.Contaminated = len(out.Anomalies) > 0
	if out.Contaminated {
		out.SignalTypes = []string{"volume_spike"}
	}
	return out, nil
}
