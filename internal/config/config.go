// Package config defines the scanner configuration: detection thresholds,
// external endpoints, and credentials. Thresholds default to the values
// calibrated by the 2020-2025 backtests and can be overridden from a TOML
// file; credentials come from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the root configuration. Populated from defaults, then an
// optional TOML file, then SCANNER_* environment overrides.
type Config struct {
	DBPath        string `toml:"db_path"`
	OptionsDBPath string `toml:"options_db_path"`
	FredDBPath    string `toml:"fred_db_path"`
	LogLevel      string `toml:"log_level"`
	LogPretty     bool   `toml:"log_pretty"`

	Edgar   EdgarConfig   `toml:"edgar"`
	Cluster ClusterConfig `toml:"cluster"`
	Sell    SellConfig    `toml:"sell"`
	Cross   CrossConfig   `toml:"cross"`
	SMTP    SMTPConfig    `toml:"smtp"`
}

// EdgarConfig holds SEC EDGAR access parameters. SEC fair-access rules
// require a descriptive User-Agent and a polite request rate.
type EdgarConfig struct {
	UserAgent      string  `toml:"user_agent"`
	FeedCount      int     `toml:"feed_count"`
	RequestsPerSec float64 `toml:"requests_per_sec"`
}

// ClusterConfig holds buy-cluster detection thresholds.
type ClusterConfig struct {
	WindowDays       int      `toml:"window_days"`
	MinClusterSize   int      `toml:"min_cluster_size"`
	MinPurchaseValue float64  `toml:"min_purchase_value"`
	RetriggerDays    int      `toml:"retrigger_days"`
	CSuiteKeywords   []string `toml:"csuite_keywords"`
}

// SellConfig holds sell-signal thresholds. The sweet spot bounds come
// from the historical-returns study and are not recomputed at runtime.
type SellConfig struct {
	LookbackDays int     `toml:"lookback_days"`
	MinValue     float64 `toml:"min_value"`
	SweetSpotMin float64 `toml:"sweet_spot_min"`
	SweetSpotMax float64 `toml:"sweet_spot_max"`
}

// CrossConfig holds cross-signal scanner thresholds.
type CrossConfig struct {
	LookbackDays         int      `toml:"lookback_days"`
	MinPurchaseValue     float64  `toml:"min_purchase_value"`
	CSuiteKeywords       []string `toml:"csuite_keywords"`
	DTCThreshold         float64  `toml:"dtc_threshold"`
	IncreaseThresholdPct float64  `toml:"increase_threshold_pct"`
	SurgeThresholdPct    float64  `toml:"surge_threshold_pct"`
	OptionsWindowDays    int      `toml:"options_window_days"`
	SpikeRatio           float64  `toml:"spike_ratio"`
	LogPath              string   `toml:"log_path"`
}

// SMTPConfig holds email delivery settings. Alerts are skipped (with a
// warning) when Host or Recipient is empty.
type SMTPConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Sender    string `toml:"sender"`
	Password  string `toml:"password"`
	Recipient string `toml:"recipient"`
}

var csuiteDefaults = []string{"CEO", "CFO", "COO", "CTO", "CIO", "CMO", "President", "Chief"}

// Defaults returns the backtest-calibrated configuration.
func Defaults() Config {
	return Config{
		DBPath:    "data/form4_insider_trades.db",
		LogLevel:  "info",
		LogPretty: true,
		Edgar: EdgarConfig{
			UserAgent:      "",
			FeedCount:      100,
			RequestsPerSec: 6,
		},
		Cluster: ClusterConfig{
			WindowDays:       14,
			MinClusterSize:   2,
			MinPurchaseValue: 10_000,
			RetriggerDays:    7,
			CSuiteKeywords:   csuiteDefaults,
		},
		Sell: SellConfig{
			LookbackDays: 3,
			MinValue:     50_000,
			SweetSpotMin: 250_000,
			SweetSpotMax: 5_000_000,
		},
		Cross: CrossConfig{
			LookbackDays:         3,
			MinPurchaseValue:     500_000,
			CSuiteKeywords:       csuiteDefaults,
			DTCThreshold:         5.0,
			IncreaseThresholdPct: 10,
			SurgeThresholdPct:    25,
			OptionsWindowDays:    28, // ±20 trading days in calendar terms
			SpikeRatio:           3.0,
			LogPath:              "data/cross_signal_log.csv",
		},
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
	}
}

// Load builds the configuration: defaults, then the TOML file at path
// (skipped when path is empty or missing), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// .env is optional; ignore if missing.
	_ = godotenv.Load()
	applyEnvOverrides(&cfg)

	if cfg.Edgar.UserAgent == "" {
		return cfg, fmt.Errorf("EDGAR user agent not configured (set SCANNER_EDGAR_USER_AGENT or edgar.user_agent)")
	}
	if cfg.DBPath == "" {
		return cfg, fmt.Errorf("database path not configured")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.DBPath, "SCANNER_DB_PATH")
	setStr(&cfg.OptionsDBPath, "SCANNER_OPTIONS_DB_PATH")
	setStr(&cfg.FredDBPath, "SCANNER_FRED_DB_PATH")
	setStr(&cfg.LogLevel, "SCANNER_LOG_LEVEL")

	setStr(&cfg.Edgar.UserAgent, "SCANNER_EDGAR_USER_AGENT")
	setInt(&cfg.Edgar.FeedCount, "SCANNER_EDGAR_FEED_COUNT")

	setStr(&cfg.SMTP.Host, "SCANNER_SMTP_HOST")
	setInt(&cfg.SMTP.Port, "SCANNER_SMTP_PORT")
	setStr(&cfg.SMTP.Sender, "SCANNER_SMTP_SENDER")
	setStr(&cfg.SMTP.Password, "SCANNER_SMTP_PASSWORD")
	setStr(&cfg.SMTP.Recipient, "SCANNER_SMTP_RECIPIENT")
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
