package detect

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bighogz/form4-scanner/internal/config"
	"github.com/bighogz/form4-scanner/internal/models"
)

func newDetector(t *testing.T) *ClusterDetector {
	t.Helper()
	cfg := config.Defaults().Cluster
	return NewClusterDetector(cfg, zerolog.Nop())
}

func buy(ticker, insider, date string, value float64) models.Transaction {
	return models.Transaction{
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
	}
}

func asOf(date string) time.Time {
	d, _ := time.Parse(models.DateLayout, date)
	return d
}

func TestDetectThreeInsidersThenLateBuyer(t *testing.T) {
	cfg := config.Defaults().Cluster
	cfg.MinClusterSize = 3
	d := NewClusterDetector(cfg, zerolog.Nop())

	// A, B, C buy on days 1, 5, 12 of June; A buys again on day 20. The
	// first three share a 14-day window; the day-20 repeat falls outside
	// the episode but can't spawn a new cluster on its own (A alone is
	// not 3 distinct insiders).
	txns := []models.Transaction{
		buy("ACME", "A", "2024-06-01", 50_000),
		buy("ACME", "B", "2024-06-05", 60_000),
		buy("ACME", "C", "2024-06-12", 70_000),
		buy("ACME", "A", "2024-06-20", 80_000),
	}

	signals := d.Detect(txns, asOf("2024-06-21"))
	require.Len(t, signals, 1)
	sig := signals[0]

	assert.Equal(t, "ACME", sig.Ticker)
	assert.Equal(t, 3, sig.UniqueInsiders)
	assert.Equal(t, "2024-06-12", sig.SignalDate)
	assert.Equal(t, "2024-06-01", sig.WindowStart)
	assert.InDelta(t, 180_000, sig.TotalPurchased, 0.01)
}

func TestDetectBelowMinSizeEmitsNothing(t *testing.T) {
	d := newDetector(t)

	signals := d.Detect([]models.Transaction{
		buy("ACME", "A", "2024-06-01", 50_000),
	}, asOf("2024-06-02"))
	assert.Empty(t, signals)
}

func TestDetectClosedIntervalBoundary(t *testing.T) {
	d := newDetector(t)

	// Day 0 and day 14 are both inside the closed 14-day window.
	signals := d.Detect([]models.Transaction{
		buy("ACME", "A", "2024-06-01", 50_000),
		buy("ACME", "B", "2024-06-15", 50_000),
	}, asOf("2024-06-16"))
	require.Len(t, signals, 1)
	assert.Equal(t, 2, signals[0].UniqueInsiders)

	// Day 15 is outside.
	signals = d.Detect([]models.Transaction{
		buy("ACME", "A", "2024-06-01", 50_000),
		buy("ACME", "B", "2024-06-16", 50_000),
	}, asOf("2024-06-17"))
	assert.Empty(t, signals)
}

func TestDetectSameInsiderTwiceIsNotACluster(t *testing.T) {
	d := newDetector(t)

	signals := d.Detect([]models.Transaction{
		buy("ACME", "A", "2024-06-01", 50_000),
		buy("ACME", "A", "2024-06-05", 60_000),
	}, asOf("2024-06-06"))
	assert.Empty(t, signals)
}

func TestDetectFiltersSmallAndNonPurchase(t *testing.T) {
	d := newDetector(t)

	sell := buy("ACME", "B", "2024-06-02", 50_000)
	sell.TransactionCode = "S"
	sell.AcquiredDisposed = "D"

	tiny := buy("ACME", "C", "2024-06-03", 5_000) // below MinPurchaseValue

	signals := d.Detect([]models.Transaction{
		buy("ACME", "A", "2024-06-01", 50_000),
		sell,
		tiny,
	}, asOf("2024-06-04"))
	assert.Empty(t, signals)
}

func TestDetectOrderIndependent(t *testing.T) {
	d := newDetector(t)

	txns := []models.Transaction{
		buy("ACME", "A", "2024-06-01", 50_000),
		buy("ACME", "B", "2024-06-05", 60_000),
		buy("ZETA", "X", "2024-06-02", 90_000),
		buy("ZETA", "Y", "2024-06-03", 90_000),
		buy("ZETA", "Z", "2024-06-04", 90_000),
	}
	want := d.Detect(txns, asOf("2024-06-10"))

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5; i++ {
		shuffled := append([]models.Transaction(nil), txns...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := d.Detect(shuffled, asOf("2024-06-10"))
		require.Equal(t, len(want), len(got))
		for j := range want {
			assert.Equal(t, want[j].Ticker, got[j].Ticker)
			assert.Equal(t, want[j].UniqueInsiders, got[j].UniqueInsiders)
			assert.Equal(t, want[j].SignalDate, got[j].SignalDate)
		}
	}
}

func TestDetectRetriggerSuppression(t *testing.T) {
	d := newDetector(t)

	// Two distinct episodes 30 days apart produce two signals; a second
	// candidate 3 days after the first collapses into it.
	signals := d.Detect([]models.Transaction{
		buy("ACME", "A", "2024-05-01", 50_000),
		buy("ACME", "B", "2024-05-03", 50_000),
		buy("ACME", "C", "2024-06-01", 50_000),
		buy("ACME", "D", "2024-06-03", 50_000),
	}, asOf("2024-06-04"))
	assert.Len(t, signals, 2)
}

func TestDetectRoleSummary(t *testing.T) {
	d := newDetector(t)

	a := buy("ACME", "A", "2024-06-01", 50_000)
	a.InsiderTitle = "Chief Executive Officer"
	b := buy("ACME", "B", "2024-06-02", 50_000)
	b.InsiderTitle = "CFO"

	signals := d.Detect([]models.Transaction{a, b}, asOf("2024-06-03"))
	require.Len(t, signals, 1)
	assert.True(t, signals[0].HasCSuite)
	assert.True(t, signals[0].HasCEO)
	assert.True(t, signals[0].HasCFO)
}

func TestDetectStricterThresholdsOnlyRemoveClusters(t *testing.T) {
	// ACME: two insiders 4 days apart. ZETA: three insiders on
	// consecutive days.
	txns := []models.Transaction{
		buy("ACME", "A", "2024-06-01", 50_000),
		buy("ACME", "B", "2024-06-05", 50_000),
		buy("ZETA", "X", "2024-06-01", 50_000),
		buy("ZETA", "Y", "2024-06-02", 50_000),
		buy("ZETA", "Z", "2024-06-03", 50_000),
	}
	when := asOf("2024-06-10")

	tickers := func(cfg config.ClusterConfig) map[string]bool {
		out := map[string]bool{}
		for _, sig := range NewClusterDetector(cfg, zerolog.Nop()).Detect(txns, when) {
			out[sig.Ticker] = true
		}
		return out
	}

	loose := config.Defaults().Cluster
	base := tickers(loose)
	require.Equal(t, map[string]bool{"ACME": true, "ZETA": true}, base)

	// Raising the cluster size or shrinking the window must only ever
	// remove clusters, never add them.
	biggerMin := loose
	biggerMin.MinClusterSize = 3
	smallerWindow := loose
	smallerWindow.WindowDays = 3

	for _, strict := range []config.ClusterConfig{biggerMin, smallerWindow} {
		got := tickers(strict)
		assert.LessOrEqual(t, len(got), len(base))
		for ticker := range got {
			assert.True(t, base[ticker], "ticker %s appeared only under stricter thresholds", ticker)
		}
	}

	assert.Equal(t, map[string]bool{"ZETA": true}, tickers(biggerMin))
	assert.Equal(t, map[string]bool{"ZETA": true}, tickers(smallerWindow))
}

func TestScore(t *testing.T) {
	now := asOf("2024-06-15")

	// 10*log10(1e6) = 60 saturates the 50-point dollar cap.
	fresh := models.ClusterSignal{UniqueInsiders: 3, TotalPurchased: 1_000_000, SignalDate: "2024-06-14"}
	// 75 insiders + 50 capped dollars + 20 recency
	assert.InDelta(t, 145, Score(fresh, now), 0.001)

	week := fresh
	week.SignalDate = "2024-06-09"
	assert.InDelta(t, 135, Score(week, now), 0.001)

	stale := fresh
	stale.SignalDate = "2024-05-01"
	assert.InDelta(t, 125, Score(stale, now), 0.001)

	// Dollar term caps at 50.
	huge := models.ClusterSignal{UniqueInsiders: 2, TotalPurchased: 1e9, SignalDate: "2024-01-01"}
	assert.InDelta(t, 100, Score(huge, now), 0.001)

	// Non-positive dollars add nothing; bad date adds no recency.
	zero := models.ClusterSignal{UniqueInsiders: 2, TotalPurchased: 0, SignalDate: "not-a-date"}
	assert.InDelta(t, 50, Score(zero, now), 0.001)

	// More insiders outranks fewer at equal dollars.
	three := models.ClusterSignal{UniqueInsiders: 3, TotalPurchased: 500_000, SignalDate: "2024-05-01"}
	two := models.ClusterSignal{UniqueInsiders: 2, TotalPurchased: 500_000, SignalDate: "2024-05-01"}
	assert.Greater(t, Score(three, now), Score(two, now))
}

func TestScoreMonotonicInDollars(t *testing.T) {
	now := asOf("2024-06-15")

	// Strictly increasing below the $100K cap saturation point.
	small := models.ClusterSignal{UniqueInsiders: 2, TotalPurchased: 1_000, SignalDate: "2024-05-01"}
	large := models.ClusterSignal{UniqueInsiders: 2, TotalPurchased: 50_000, SignalDate: "2024-05-01"}
	assert.True(t, Score(large, now) > Score(small, now))
	assert.False(t, math.IsNaN(Score(small, now)))

	// At or past saturation the dollar term pins at 50: still monotonic,
	// no longer strict.
	atCap := models.ClusterSignal{UniqueInsiders: 2, TotalPurchased: 100_000, SignalDate: "2024-05-01"}
	pastCap := models.ClusterSignal{UniqueInsiders: 2, TotalPurchased: 400_000, SignalDate: "2024-05-01"}
	assert.GreaterOrEqual(t, Score(pastCap, now), Score(atCap, now))
	assert.InDelta(t, Score(atCap, now), Score(pastCap, now), 0.001)
}
