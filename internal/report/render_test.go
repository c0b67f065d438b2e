package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bighogz/form4-scanner/internal/enrich"
	"github.com/bighogz/form4-scanner/internal/models"
)

func TestClusterAlertRendering(t *testing.T) {
	sig := models.ClusterSignal{
		Ticker:         "ACME",
		CompanyName:    "Acme Corp",
		UniqueInsiders: 3,
		TotalPurchased: 1_250_000,
		WindowStart:    "2024-06-01",
		SignalDate:     "2024-06-12",
		HasCSuite:      true,
		HasCEO:         true,
		Score:          155,
		Transactions: []models.Transaction{{
			TransactionDate: "2024-06-01",
			InsiderName:     "BOSS BETTY",
			InsiderTitle:    "Chief Executive Officer",
			SharesAmount:    10000,
			PricePerShare:   50,
			TotalValue:      500_000,
		}},
		Contamination: &models.OptionsCheck{Contaminated: true, MaxDeviation: 4.2},
	}

	r, err := ClusterAlert(sig)
	require.NoError(t, err)

	assert.Contains(t, r.Subject, "ACME")
	assert.Contains(t, r.Subject, "3 insiders")
	assert.True(t, r.HighPriority, "C-suite clusters are high priority")
	assert.Contains(t, r.HTML, "BOSS BETTY")
	assert.Contains(t, r.HTML, "$1.25M")
	assert.Contains(t, r.HTML, "crowded")
	assert.Contains(t, r.Text, "unusual options activity")
}

func TestSellAlertRendering(t *testing.T) {
	sell := models.ClassifiedSell{
		Tier:  models.SellTierS1,
		Notes: "$1.00M sale; CEO",
	}
	sell.IssuerTicker = "ACME"
	sell.InsiderName = "SELLER SAM"
	sell.TransactionDate = "2024-06-01"
	sell.TotalValue = 1_000_000

	r, err := SellAlert(models.SellSignal{
		Ticker:      "ACME",
		CompanyName: "Acme Corp",
		Tier:        models.SellTierS1,
		Sells:       []models.ClassifiedSell{sell},
		TotalValue:  1_000_000,
		NumSellers:  1,
	})
	require.NoError(t, err)

	assert.Contains(t, r.Subject, "SELL TIER 1")
	assert.True(t, r.HighPriority)
	assert.Contains(t, r.HTML, "#c53030")
	assert.Contains(t, r.Text, "SELLER SAM")
}

func TestCrossReportRendering(t *testing.T) {
	sig := models.CrossSignal{
		Tier:          models.Tier1,
		DaysToCover:   6.2,
		SIChangePct:   31.5,
		Contamination: models.OptionsCheck{},
	}
	sig.IssuerTicker = "ACME"
	sig.InsiderName = "BOSS BETTY"
	sig.InsiderTitle = "CEO"
	sig.TotalValue = 800_000

	unverified := models.CrossSignal{
		Tier:          models.TierUnverified,
		SIError:       "yahoo status 429",
		Contamination: models.OptionsCheck{Err: "options database unavailable"},
	}
	unverified.IssuerTicker = "ZETA"

	r, err := CrossReport(
		[]models.CrossSignal{sig, unverified},
		enrich.MacroRegime{Label: models.MacroCaution, Flags: []string{"VIX elevated (35.0)"}},
		"2024-06-13",
	)
	require.NoError(t, err)

	assert.Contains(t, r.Subject, "2 signal(s)")
	assert.True(t, r.HighPriority, "a confirmed tier makes the report high priority")
	assert.Contains(t, r.HTML, "CAUTION")
	assert.Contains(t, r.Text, "DTC 6.2")
	assert.Contains(t, r.Text, "SI n/a")
	assert.Contains(t, r.Text, "options unknown")
}

func TestStatusReportRendering(t *testing.T) {
	r, err := StatusReport(StatusData{
		AsOf:          "2024-06-13",
		RunID:         "run-1",
		FilingsSeen:   100,
		FilingsNew:    12,
		ClustersFound: 2,
		SellsFound:    3,
		WatchCount:    5,
	})
	require.NoError(t, err)
	assert.Contains(t, r.Subject, "2 clusters")
	assert.False(t, r.HighPriority)
	assert.Contains(t, r.Text, "12 new")
}
