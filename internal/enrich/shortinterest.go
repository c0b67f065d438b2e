// Package enrich adds context to detected signals: short interest,
// options-flow contamination, and the macro regime. Every lookup
// degrades gracefully — failures are carried as explicit error markers
// inside result values, never up the pipeline.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/bighogz/form4-scanner/internal/httpclient"
)

const quoteSummaryURL = "https://query1.finance.yahoo.com/v10/finance/quoteSummary/%s?modules=defaultKeyStatistics"

// Yahoo rejects requests without a browser-looking UA.
const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// SIMetrics holds a ticker's short-interest snapshot. Err is set when
// the lookup failed; the zero values then mean "unknown", not "zero".
type SIMetrics struct {
	DaysToCover      float64
	SharesShort      int64
	SharesShortPrior int64
	ChangePct        float64
	PctFloat         float64
	Err              string
}

// SIClient fetches short-interest statistics from Yahoo Finance.
type SIClient struct {
	http *http.Client
	log  zerolog.Logger
}

// NewSIClient returns a short-interest client over the shared HTTP client.
func NewSIClient(log zerolog.Logger) *SIClient {
	return &SIClient{
		http: httpclient.Default,
		log:  log.With().Str("component", "short-interest").Logger(),
	}
}

type quoteSummaryResp struct {
	QuoteSummary struct {
		Result []struct {
			DefaultKeyStatistics struct {
				ShortRatio            rawNumber `json:"shortRatio"`
				SharesShort           rawNumber `json:"sharesShort"`
				SharesShortPriorMonth rawNumber `json:"sharesShortPriorMonth"`
				ShortPercentOfFloat   rawNumber `json:"shortPercentOfFloat"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// rawNumber covers Yahoo's {"raw": 5.1, "fmt": "5.10"} wrapper.
type rawNumber struct {
	Raw float64 `json:"raw"`
}

// Fetch returns short-interest metrics for a ticker. Never returns an
// error: failures come back with Err set so the caller can classify the
// signal as unverified instead of dropping it.
func (c *SIClient) Fetch(ctx context.Context, ticker string) SIMetrics {
	u := fmt.Sprintf(quoteSummaryURL, url.PathEscape(ticker))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return SIMetrics{Err: err.Error()}
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Str("ticker", ticker).Err(err).Msg("short interest fetch failed")
		return SIMetrics{Err: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SIMetrics{Err: fmt.Sprintf("yahoo status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SIMetrics{Err: err.Error()}
	}
	return parseQuoteSummary(body, ticker)
}

func parseQuoteSummary(body []byte, ticker string) SIMetrics {
	var qs quoteSummaryResp
	if err := json.Unmarshal(body, &qs); err != nil {
		return SIMetrics{Err: fmt.Sprintf("parse quoteSummary: %v", err)}
	}
	if qs.QuoteSummary.Error != nil {
		return SIMetrics{Err: qs.QuoteSummary.Error.Description}
	}
	if len(qs.QuoteSummary.Result) == 0 {
		return SIMetrics{Err: "no quoteSummary result for " + ticker}
	}

	stats := qs.QuoteSummary.Result[0].DefaultKeyStatistics
	m := SIMetrics{
		DaysToCover:      stats.ShortRatio.Raw,
		SharesShort:      int64(stats.SharesShort.Raw),
		SharesShortPrior: int64(stats.SharesShortPriorMonth.Raw),
		PctFloat:         stats.ShortPercentOfFloat.Raw * 100,
	}
	if m.SharesShortPrior > 0 {
		m.ChangePct = (float64(m.SharesShort)/float64(m.SharesShortPrior) - 1) * 100
	}
	if m.DaysToCover == 0 && m.SharesShort == 0 {
		m.Err = "no short interest data for " + ticker
	}
	return m
}
