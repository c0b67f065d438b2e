package scan

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bighogz/form4-scanner/internal/config"
	"github.com/bighogz/form4-scanner/internal/models"
	"github.com/bighogz/form4-scanner/internal/report"
	"github.com/bighogz/form4-scanner/internal/store"
)

// captureSender collects reports instead of delivering them.
type captureSender struct {
	reports []report.Report
}

func (c *captureSender) Send(_ context.Context, r report.Report) error {
	c.reports = append(c.reports, r)
	return nil
}

func (c *captureSender) subjects() []string {
	var out []string
	for _, r := range c.reports {
		out = append(out, r.Subject)
	}
	return out
}

func testRunner(t *testing.T) (*Runner, *store.Store, *captureSender) {
	t.Helper()
	cfg := config.Defaults()
	cfg.DBPath = filepath.Join(t.TempDir(), "scan.db")
	cfg.Edgar.UserAgent = "test test@example.com"

	st, err := store.Open(cfg.DBPath, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sender := &captureSender{}
	return NewRunner(cfg, st, sender, zerolog.Nop()), st, sender
}

func insertBuy(t *testing.T, st *store.Store, acc, ticker, insider, date string, value float64) {
	t.Helper()
	_, err := st.InsertTransaction(models.Transaction{
		AccessionNumber:  acc,
		IssuerTicker:     ticker,
		IssuerName:       ticker + " Corp",
		InsiderCIK:       insider,
		InsiderName:      "Insider " + insider,
		TransactionDate:  date,
		TransactionCode:  "P",
		AcquiredDisposed: "A",
		SharesAmount:     value / 100,
		PricePerShare:    100,
		TotalValue:       value,
	})
	require.NoError(t, err)
}

func asOfDate(s string) time.Time {
	d, _ := time.Parse(models.DateLayout, s)
	return d
}

func TestRunAnalyzeOnlyAlertsAndGates(t *testing.T) {
	r, st, sender := testRunner(t)

	insertBuy(t, st, "acc-1", "ACME", "A", "2024-06-10", 60_000)
	insertBuy(t, st, "acc-2", "ACME", "B", "2024-06-12", 80_000)

	opts := Options{AnalyzeOnly: true, AsOf: asOfDate("2024-06-13")}
	require.NoError(t, r.Run(context.Background(), opts))

	// One cluster alert plus the status report.
	subjects := sender.subjects()
	require.Len(t, subjects, 2)
	assert.Contains(t, subjects[0], "Insider Buy Cluster: ACME")
	assert.Contains(t, subjects[1], "Scan Status")

	sent, err := st.WasAlertSent("cluster", "ACME", "2024-06-13")
	require.NoError(t, err)
	assert.True(t, sent)

	// A different alert type or date for the same ticker is not gated.
	sent, err = st.WasAlertSent("sell_s1", "ACME", "2024-06-13")
	require.NoError(t, err)
	assert.False(t, sent)
	sent, err = st.WasAlertSent("cluster", "ACME", "2024-06-14")
	require.NoError(t, err)
	assert.False(t, sent)

	// Second run same day: the dedup gate suppresses the cluster alert.
	sender.reports = nil
	require.NoError(t, r.Run(context.Background(), opts))
	subjects = sender.subjects()
	require.Len(t, subjects, 1)
	assert.Contains(t, subjects[0], "Scan Status")
}

func TestRunDryRunRecordsNothing(t *testing.T) {
	r, st, sender := testRunner(t)

	insertBuy(t, st, "acc-1", "ACME", "A", "2024-06-10", 60_000)
	insertBuy(t, st, "acc-2", "ACME", "B", "2024-06-12", 80_000)

	opts := Options{AnalyzeOnly: true, DryRun: true, AsOf: asOfDate("2024-06-13")}
	require.NoError(t, r.Run(context.Background(), opts))

	// The alert still renders through the sender.
	assert.Len(t, sender.reports, 2)

	// But the ledger is untouched: a real run afterwards alerts again.
	sent, err := st.WasAlertSent("cluster", "ACME", "2024-06-13")
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestRunSellAlerts(t *testing.T) {
	r, st, sender := testRunner(t)

	// S1: officer+director in the sweet spot.
	_, err := st.InsertTransaction(models.Transaction{
		AccessionNumber:  "acc-s1",
		IssuerTicker:     "DUMPCO",
		IssuerName:       "Dumpco Inc",
		InsiderCIK:       "111",
		InsiderName:      "SELLER SAM",
		IsOfficer:        true,
		IsDirector:       true,
		TransactionDate:  "2024-06-12",
		TransactionCode:  "S",
		AcquiredDisposed: "D",
		TotalValue:       1_000_000,
	})
	require.NoError(t, err)

	// Watch only: no roles.
	_, err = st.InsertTransaction(models.Transaction{
		AccessionNumber:  "acc-watch",
		IssuerTicker:     "WATCHCO",
		InsiderCIK:       "222",
		InsiderName:      "HOLDER HANK",
		TransactionDate:  "2024-06-12",
		TransactionCode:  "S",
		AcquiredDisposed: "D",
		TotalValue:       9_000_000,
	})
	require.NoError(t, err)

	opts := Options{AnalyzeOnly: true, AsOf: asOfDate("2024-06-13")}
	require.NoError(t, r.Run(context.Background(), opts))

	var sellSubjects []string
	for _, s := range sender.subjects() {
		if strings.Contains(s, "SELL") {
			sellSubjects = append(sellSubjects, s)
		}
	}
	require.Len(t, sellSubjects, 1, "watch tier must never be alerted")
	assert.Contains(t, sellSubjects[0], "DUMPCO")

	sent, err := st.WasAlertSent("sell_s1", "DUMPCO", "2024-06-13")
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = st.WasAlertSent("sell_s1", "WATCHCO", "2024-06-13")
	require.NoError(t, err)
	assert.False(t, sent)
}
