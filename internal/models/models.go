package models

import "time"

// DateLayout is the calendar-date format used throughout the scanner.
// Form 4 transaction dates are dates, not timestamps.
const DateLayout = "2006-01-02"

// Transaction is one reported insider trade from a Form 4 filing.
// Records are immutable once stored.
type Transaction struct {
	AccessionNumber   string   `json:"accession_number"`
	FilingDate        string   `json:"filing_date,omitempty"`
	AcceptedDatetime  string   `json:"accepted_datetime,omitempty"`
	IssuerCIK         string   `json:"issuer_cik,omitempty"`
	IssuerName        string   `json:"issuer_name,omitempty"`
	IssuerTicker      string   `json:"issuer_ticker"`
	InsiderCIK        string   `json:"insider_cik,omitempty"`
	InsiderName       string   `json:"insider_name"`
	InsiderTitle      string   `json:"insider_title,omitempty"`
	IsDirector        bool     `json:"is_director"`
	IsOfficer         bool     `json:"is_officer"`
	IsTenPercentOwner bool     `json:"is_ten_percent_owner"`
	TransactionDate   string   `json:"transaction_date"`
	TransactionCode   string   `json:"transaction_code"`
	SharesAmount      float64  `json:"shares_amount"`
	PricePerShare     float64  `json:"price_per_share"`
	TotalValue        float64  `json:"total_value"`
	AcquiredDisposed  string   `json:"acquired_disposed"`
	SharesOwnedAfter  *float64 `json:"shares_owned_after,omitempty"`
}

// InsiderID returns the stable identity used for distinct-insider counting.
// CIK when present, reported name otherwise.
func (t Transaction) InsiderID() string {
	if t.InsiderCIK != "" {
		return t.InsiderCIK
	}
	return t.InsiderName
}

// Date parses the transaction date. ok is false for missing or
// malformed dates; callers treat those as "no date", never as an error.
func (t Transaction) Date() (time.Time, bool) {
	if t.TransactionDate == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(DateLayout, t.TransactionDate)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// ClusterSignal is one insider buying episode: several distinct insiders
// purchasing the same ticker inside a rolling window. Recomputed fresh
// every scan, never persisted.
type ClusterSignal struct {
	Ticker         string        `json:"ticker"`
	CompanyName    string        `json:"company_name"`
	Transactions   []Transaction `json:"transactions"`
	UniqueInsiders int           `json:"unique_insiders"`
	TotalShares    float64       `json:"total_shares"`
	TotalPurchased float64       `json:"total_purchased"`
	WindowStart    string        `json:"window_start"`
	WindowEnd      string        `json:"window_end"`
	SignalDate     string        `json:"signal_date"`
	HasCSuite      bool          `json:"has_csuite"`
	HasCEO         bool          `json:"has_ceo"`
	HasCFO         bool          `json:"has_cfo"`
	Score          float64       `json:"score"`

	// Contamination is attached after detection by the options check.
	Contamination *OptionsCheck `json:"options_contamination,omitempty"`
}

// SellTier is the severity bucket of an insider sell, strongest first.
// The ordering is total: a smaller value is a stronger signal.
type SellTier int

const (
	SellTierS1    SellTier = iota // Officer+Director in the $250K-$5M sweet spot
	SellTierS2                    // Officer or Director in the sweet spot
	SellTierWatch                 // Everything else above the minimum value
)

func (t SellTier) String() string {
	switch t {
	case SellTierS1:
		return "S1"
	case SellTierS2:
		return "S2"
	default:
		return "SELL_WATCH"
	}
}

// StrongerThan reports whether t outranks other.
func (t SellTier) StrongerThan(other SellTier) bool {
	return t < other
}

// TierInfo carries display metadata for a sell tier. The alpha figures
// come from the 2020-2025 backtest and are fixed constants.
type TierInfo struct {
	Name        string
	Description string
	Alpha       string
	Color       string
}

// Info returns the display metadata for the tier.
func (t SellTier) Info() TierInfo {
	switch t {
	case SellTierS1:
		return TierInfo{
			Name:        "SELL TIER 1 — INSIDER DUMP",
			Description: "Officer+Director selling $250K-$5M",
			Alpha:       "-2.54% 5d",
			Color:       "#c53030",
		}
	case SellTierS2:
		return TierInfo{
			Name:        "SELL TIER 2 — NOTABLE SELL",
			Description: "Officer or Director selling $250K-$5M",
			Alpha:       "-0.50% to -0.86% 5d",
			Color:       "#dd6b20",
		}
	default:
		return TierInfo{
			Name:        "SELL WATCH",
			Description: "Significant sell outside sweet spot",
			Alpha:       "varies",
			Color:       "#718096",
		}
	}
}

// ClassifiedSell is a sell transaction annotated with its tier and notes.
type ClassifiedSell struct {
	Transaction
	Tier  SellTier `json:"tier"`
	Notes string   `json:"notes"`
}

// SellSignal is the per-ticker rollup of classified sells. Tier is the
// strongest tier among the constituents.
type SellSignal struct {
	Ticker      string           `json:"ticker"`
	CompanyName string           `json:"company_name"`
	Tier        SellTier         `json:"tier"`
	Sells       []ClassifiedSell `json:"sells"`
	TotalValue  float64          `json:"total_value"`
	NumSellers  int              `json:"num_sellers"`
}

// ConvictionTier is the cross-signal confidence bucket for a buy signal
// after short-interest confirmation. Tier1 is highest conviction;
// TierUnverified covers missing data and failed confirmation alike.
type ConvictionTier int

const (
	Tier1 ConvictionTier = iota + 1
	Tier2
	Tier3
	TierUnverified
)

func (t ConvictionTier) String() string {
	switch t {
	case Tier1:
		return "TIER 1 — HIGHEST CONVICTION"
	case Tier2:
		return "TIER 2 — HIGH CONVICTION"
	case Tier3:
		return "TIER 3 — ELEVATED SHORT INTEREST"
	default:
		return "TIER 4 — INSIDER BUY (no SI confirmation)"
	}
}

// Confirmed reports whether the tier had short-interest confirmation.
func (t ConvictionTier) Confirmed() bool {
	return t <= Tier3
}

// MacroLabel classifies the macro regime backdrop. Context only; it
// never changes a signal's tier.
type MacroLabel string

const (
	MacroFavorable   MacroLabel = "FAVORABLE"
	MacroCaution     MacroLabel = "CAUTION"
	MacroUnfavorable MacroLabel = "UNFAVORABLE"
	MacroUnknown     MacroLabel = "UNKNOWN"
)

// OptionsCheck is the result of the options-volume contamination lookup.
// Err is set when the lookup could not run; a set Err means "unknown",
// not "clean".
type OptionsCheck struct {
	Contaminated bool      `json:"contaminated"`
	Anomalies    []Anomaly `json:"anomalies,omitempty"`
	MaxDeviation float64   `json:"max_deviation"`
	SignalTypes  []string  `json:"signal_types,omitempty"`
	Err          string    `json:"error,omitempty"`
}

// Anomaly is one unusual options-volume event near an insider trade.
type Anomaly struct {
	Ticker            string  `json:"ticker"`
	DetectedDate      string  `json:"detected_date"`
	VolumeToday       float64 `json:"volume_today"`
	DeviationMultiple float64 `json:"deviation_multiple"`
	SignalType        string  `json:"signal_type"`
	Notes             string  `json:"notes,omitempty"`
}

// CrossSignal is a tier-2-quality insider buy enriched with short
// interest, options contamination, and macro context.
type CrossSignal struct {
	Transaction
	DaysToCover      float64        `json:"days_to_cover"`
	SIChangePct      float64        `json:"si_change_pct"`
	ShortPctFloat    float64        `json:"short_pct_float"`
	SharesShort      int64          `json:"shares_short"`
	SharesShortPrior int64          `json:"shares_short_prior"`
	SIError          string         `json:"si_error,omitempty"`
	Tier             ConvictionTier `json:"tier"`
	MacroLabel       MacroLabel     `json:"macro_label"`
	MacroFlags       []string       `json:"macro_flags,omitempty"`
	Contamination    OptionsCheck   `json:"options_contamination"`
}
