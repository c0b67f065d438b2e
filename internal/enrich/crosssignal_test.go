package enrich

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/bighogz/form4-scanner/internal/config"
	"github.com/bighogz/form4-scanner/internal/models"
)

func newClassifier() *CrossClassifier {
	return NewCrossClassifier(config.Defaults().Cross, zerolog.Nop())
}

func ceoBuy(value float64) models.Transaction {
	return models.Transaction{
		IssuerTicker:     "ACME",
		InsiderName:      "BOSS BETTY",
		InsiderTitle:     "Chief Executive Officer",
		IsOfficer:        true,
		TransactionDate:  "2024-06-01",
		TransactionCode:  "P",
		AcquiredDisposed: "A",
		TotalValue:       value,
	}
}

func TestQualifies(t *testing.T) {
	c := newClassifier()

	assert.True(t, c.Qualifies(ceoBuy(600_000)))
	assert.False(t, c.Qualifies(ceoBuy(100_000)), "below value floor")

	vp := ceoBuy(600_000)
	vp.InsiderTitle = "VP of Engineering"
	assert.False(t, c.Qualifies(vp), "not C-suite")

	pres := ceoBuy(600_000)
	pres.InsiderTitle = "President"
	assert.True(t, c.Qualifies(pres))
}

func TestClassifyTiers(t *testing.T) {
	c := newClassifier()
	regime := MacroRegime{Label: models.MacroFavorable}
	clean := models.OptionsCheck{}

	tests := []struct {
		name string
		si   SIMetrics
		want models.ConvictionTier
	}{
		{"squeeze setup with surging shorts", SIMetrics{DaysToCover: 6.0, ChangePct: 30}, models.Tier1},
		{"squeeze setup with rising shorts", SIMetrics{DaysToCover: 6.0, ChangePct: 15}, models.Tier2},
		{"elevated cover only", SIMetrics{DaysToCover: 6.0, ChangePct: 2}, models.Tier3},
		{"low days to cover despite surge", SIMetrics{DaysToCover: 4.0, ChangePct: 40}, models.TierUnverified},
		{"si lookup failed", SIMetrics{Err: "yahoo status 429"}, models.TierUnverified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := c.Classify(ceoBuy(600_000), tt.si, regime, clean)
			assert.Equal(t, tt.want, sig.Tier)
		})
	}
}

func TestContaminationOrthogonalToTier(t *testing.T) {
	c := newClassifier()
	si := SIMetrics{DaysToCover: 6.0, ChangePct: 30}
	dirty := models.OptionsCheck{Contaminated: true, MaxDeviation: 4.2}

	sig := c.Classify(ceoBuy(600_000), si, MacroRegime{Label: models.MacroCaution}, dirty)
	assert.Equal(t, models.Tier1, sig.Tier, "contamination must not demote the tier")
	assert.True(t, sig.Contamination.Contaminated)
}

func TestSortSignals(t *testing.T) {
	a := models.CrossSignal{Tier: models.Tier2}
	a.TotalValue = 900_000
	b := models.CrossSignal{Tier: models.Tier1}
	b.TotalValue = 600_000
	c := models.CrossSignal{Tier: models.Tier1}
	c.TotalValue = 800_000

	signals := []models.CrossSignal{a, b, c}
	SortSignals(signals)

	assert.Equal(t, models.Tier1, signals[0].Tier)
	assert.InDelta(t, 800_000, signals[0].TotalValue, 0.01)
	assert.Equal(t, models.Tier2, signals[2].Tier)
}

func TestParseQuoteSummary(t *testing.T) {
	body := `{"quoteSummary":{"result":[{"defaultKeyStatistics":{
        "shortRatio":{"raw":6.1,"fmt":"6.10"},
        "sharesShort":{"raw":13000000},
        "sharesShortPriorMonth":{"raw":10000000},
        "shortPercentOfFloat":{"raw":0.082}}}],"error":null}}`

	m := parseQuoteSummary([]byte(body), "ACME")
	assert.Empty(t, m.Err)
	assert.InDelta(t, 6.1, m.DaysToCover, 0.001)
	assert.Equal(t, int64(13000000), m.SharesShort)
	assert.InDelta(t, 30.0, m.ChangePct, 0.001)
	assert.InDelta(t, 8.2, m.PctFloat, 0.001)
}

func TestParseQuoteSummaryErrors(t *testing.T) {
	m := parseQuoteSummary([]byte(`{"quoteSummary":{"result":[],"error":null}}`), "ACME")
	assert.NotEmpty(t, m.Err)

	m = parseQuoteSummary([]byte(`{"quoteSummary":{"result":null,"error":{"description":"Quote not found"}}}`), "NOPE")
	assert.Equal(t, "Quote not found", m.Err)

	m = parseQuoteSummary([]byte(`<html>rate limited</html>`), "ACME")
	assert.NotEmpty(t, m.Err)
}
