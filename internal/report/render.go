package report

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/bighogz/form4-scanner/internal/enrich"
	"github.com/bighogz/form4-scanner/internal/models"
	"github.com/bighogz/form4-scanner/internal/store"
)

func money(v float64) string {
	if v >= 1_000_000 {
		return fmt.Sprintf("$%.2fM", v/1_000_000)
	}
	return "$" + humanize.Commaf(v)
}

var tmplFuncs = template.FuncMap{
	"money":  money,
	"commaf": humanize.Commaf,
}

var clusterTmpl = template.Must(template.New("cluster").Funcs(tmplFuncs).Parse(`
<html><body style="font-family:Arial,sans-serif">
<h2 style="color:#276749">🟢 INSIDER BUY CLUSTER: {{.Ticker}}</h2>
<p>{{.CompanyName}} — {{.UniqueInsiders}} insiders bought {{money .TotalPurchased}}
between {{.WindowStart}} and {{.SignalDate}} (score {{printf "%.0f" .Score}}).</p>
{{if .HasCSuite}}<p><b>C-suite participation</b>{{if .HasCEO}} · CEO{{end}}{{if .HasCFO}} · CFO{{end}}</p>{{end}}
{{if .Contamination}}{{if .Contamination.Contaminated}}
<p style="background:#fffaf0;border:1px solid #dd6b20;padding:8px">
⚠️ Unusual options activity near this cluster (max {{printf "%.1fx" .Contamination.MaxDeviation}}
baseline). The move may already be crowded.</p>
{{end}}{{end}}
<table border="1" cellpadding="6" cellspacing="0">
<tr><th>Date</th><th>Insider</th><th>Title</th><th>Shares</th><th>Price</th><th>Value</th></tr>
{{range .Transactions}}<tr>
<td>{{.TransactionDate}}</td><td>{{.InsiderName}}</td><td>{{.InsiderTitle}}</td>
<td>{{commaf .SharesAmount}}</td><td>${{printf "%.2f" .PricePerShare}}</td><td>{{money .TotalValue}}</td>
</tr>{{end}}
</table>
</body></html>`))

// ClusterAlert renders a buy-cluster alert.
func ClusterAlert(sig models.ClusterSignal) (Report, error) {
	var html strings.Builder
	if err := clusterTmpl.Execute(&html, sig); err != nil {
		return Report{}, fmt.Errorf("render cluster alert: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "INSIDER BUY CLUSTER: %s (%s)\n", sig.Ticker, sig.CompanyName)
	fmt.Fprintf(&text, "%d insiders bought %s between %s and %s (score %.0f)\n",
		sig.UniqueInsiders, money(sig.TotalPurchased), sig.WindowStart, sig.SignalDate, sig.Score)
	if sig.HasCSuite {
		text.WriteString("C-suite participation\n")
	}
	if sig.Contamination != nil && sig.Contamination.Contaminated {
		fmt.Fprintf(&text, "WARNING: unusual options activity nearby (max %.1fx baseline)\n",
			sig.Contamination.MaxDeviation)
	}
	for _, t := range sig.Transactions {
		fmt.Fprintf(&text, "  %s  %-28s %-24s %10s sh @ $%.2f = %s\n",
			t.TransactionDate, t.InsiderName, t.InsiderTitle,
			humanize.Commaf(t.SharesAmount), t.PricePerShare, money(t.TotalValue))
	}

	return Report{
		Subject:      fmt.Sprintf("🟢 Insider Buy Cluster: %s — %d insiders, %s", sig.Ticker, sig.UniqueInsiders, money(sig.TotalPurchased)),
		HTML:         html.String(),
		Text:         text.String(),
		HighPriority: sig.HasCSuite,
	}, nil
}

var sellTmpl = template.Must(template.New("sell").Funcs(tmplFuncs).Parse(`
<html><body style="font-family:Arial,sans-serif">
<h2 style="color:{{.Info.Color}}">🔴 {{.Info.Name}}: {{.Sig.Ticker}}</h2>
<p>{{.Sig.CompanyName}} — {{.Sig.NumSellers}} seller(s), {{money .Sig.TotalValue}} total.
{{.Info.Description}} (backtest alpha {{.Info.Alpha}}).</p>
<table border="1" cellpadding="6" cellspacing="0">
<tr><th>Tier</th><th>Date</th><th>Insider</th><th>Value</th><th>Notes</th></tr>
{{range .Sig.Sells}}<tr>
<td>{{.Tier}}</td><td>{{.TransactionDate}}</td><td>{{.InsiderName}}</td>
<td>{{money .TotalValue}}</td><td>{{.Notes}}</td>
</tr>{{end}}
</table>
</body></html>`))

// SellAlert renders a sell-signal alert for one ticker.
func SellAlert(sig models.SellSignal) (Report, error) {
	info := sig.Tier.Info()

	var html strings.Builder
	if err := sellTmpl.Execute(&html, struct {
		Sig  models.SellSignal
		Info models.TierInfo
	}{sig, info}); err != nil {
		return Report{}, fmt.Errorf("render sell alert: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s: %s (%s)\n", info.Name, sig.Ticker, sig.CompanyName)
	fmt.Fprintf(&text, "%d seller(s), %s total — %s\n", sig.NumSellers, money(sig.TotalValue), info.Description)
	for _, s := range sig.Sells {
		fmt.Fprintf(&text, "  [%s] %s  %-28s %s — %s\n",
			s.Tier, s.TransactionDate, s.InsiderName, money(s.TotalValue), s.Notes)
	}

	return Report{
		Subject:      fmt.Sprintf("🔴 %s: %s — %s", info.Name, sig.Ticker, money(sig.TotalValue)),
		HTML:         html.String(),
		Text:         text.String(),
		HighPriority: sig.Tier == models.SellTierS1,
	}, nil
}

var crossTmpl = template.Must(template.New("cross").Funcs(tmplFuncs).Parse(`
<html><body style="font-family:Arial,sans-serif">
<h2>Cross-Signal Report — {{.AsOf}}</h2>
<p style="background:{{.MacroColor}};padding:8px">Macro regime: <b>{{.Regime.Label}}</b>
{{range .Regime.Flags}}<br>• {{.}}{{end}}
{{if .Regime.Err}}<br><i>{{.Regime.Err}}</i>{{end}}</p>
<table border="1" cellpadding="6" cellspacing="0">
<tr><th>Tier</th><th>Ticker</th><th>Insider</th><th>Value</th><th>DTC</th><th>SI Δ</th><th>Options</th></tr>
{{range .Signals}}<tr>
<td>{{.Tier}}</td><td>{{.IssuerTicker}}</td><td>{{.InsiderName}} ({{.InsiderTitle}})</td>
<td>{{money .TotalValue}}</td>
<td>{{if .SIError}}n/a{{else}}{{printf "%.1f" .DaysToCover}}{{end}}</td>
<td>{{if .SIError}}n/a{{else}}{{printf "%+.1f%%" .SIChangePct}}{{end}}</td>
<td>{{if .Contamination.Err}}unknown{{else if .Contamination.Contaminated}}⚠️ contaminated{{else}}clean{{end}}</td>
</tr>{{end}}
</table>
<p style="color:#718096;font-size:12px">Tiers from the 2020-2025 backtest: confirmed
short-squeeze setups (Tier 1-3) outperformed unverified insider buys.</p>
</body></html>`))

// CrossReport renders the cross-signal summary.
func CrossReport(signals []models.CrossSignal, regime enrich.MacroRegime, asOf string) (Report, error) {
	macroColor := "#f0fff4"
	switch regime.Label {
	case models.MacroCaution:
		macroColor = "#fffaf0"
	case models.MacroUnfavorable:
		macroColor = "#fff5f5"
	case models.MacroUnknown:
		macroColor = "#f7fafc"
	}

	var html strings.Builder
	if err := crossTmpl.Execute(&html, struct {
		AsOf       string
		Regime     enrich.MacroRegime
		MacroColor string
		Signals    []models.CrossSignal
	}{asOf, regime, macroColor, signals}); err != nil {
		return Report{}, fmt.Errorf("render cross report: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "CROSS-SIGNAL REPORT — %s\n", asOf)
	fmt.Fprintf(&text, "Macro regime: %s\n", regime.Label)
	for _, f := range regime.Flags {
		fmt.Fprintf(&text, "  - %s\n", f)
	}
	for _, s := range signals {
		si := "SI n/a"
		if s.SIError == "" {
			si = fmt.Sprintf("DTC %.1f, SI %+.1f%%", s.DaysToCover, s.SIChangePct)
		}
		opt := "options clean"
		if s.Contamination.Err != "" {
			opt = "options unknown"
		} else if s.Contamination.Contaminated {
			opt = "OPTIONS CONTAMINATED"
		}
		fmt.Fprintf(&text, "[%s] %s %s (%s) %s — %s, %s\n",
			s.Tier, s.IssuerTicker, s.InsiderName, s.InsiderTitle, money(s.TotalValue), si, opt)
	}

	confirmed := false
	for _, s := range signals {
		if s.Tier.Confirmed() {
			confirmed = true
			break
		}
	}

	return Report{
		Subject:      fmt.Sprintf("Cross-Signal Report %s — %d signal(s)", asOf, len(signals)),
		HTML:         html.String(),
		Text:         text.String(),
		HighPriority: confirmed,
	}, nil
}

// StatusData carries the per-stage counters for the daily status report.
type StatusData struct {
	AsOf           string
	RunID          string
	FilingsSeen    int
	FilingsNew     int
	FilingsFailed  int
	TxnsStored     int
	ClustersFound  int
	ClustersSent   int
	SellsFound     int
	SellAlertsSent int
	WatchCount     int
	Skipped        int
	Stats          store.Stats
}

var statusTmpl = template.Must(template.New("status").Funcs(tmplFuncs).Parse(`
<html><body style="font-family:Arial,sans-serif">
<h2>Daily Scan Status — {{.AsOf}}</h2>
<table border="1" cellpadding="6" cellspacing="0">
<tr><td>Filings seen / new / failed</td><td>{{.FilingsSeen}} / {{.FilingsNew}} / {{.FilingsFailed}}</td></tr>
<tr><td>Transactions stored</td><td>{{.TxnsStored}}</td></tr>
<tr><td>Buy clusters found / alerted</td><td>{{.ClustersFound}} / {{.ClustersSent}}</td></tr>
<tr><td>Sell signals found / alerted</td><td>{{.SellsFound}} / {{.SellAlertsSent}}</td></tr>
<tr><td>Sell watch (not alerted)</td><td>{{.WatchCount}}</td></tr>
<tr><td>Alerts skipped (already sent)</td><td>{{.Skipped}}</td></tr>
</table>
<h3>Database</h3>
<p>{{.Stats.TotalTransactions}} transactions ({{.Stats.TotalPurchases}} buys, {{.Stats.TotalSells}} sells)
across {{.Stats.UniqueCompanies}} companies and {{.Stats.UniqueInsiders}} insiders,
{{.Stats.EarliestTransaction}} → {{.Stats.LatestTransaction}};
{{.Stats.ProcessedFilings}} filings processed.</p>
<p style="color:#718096;font-size:12px">run {{.RunID}}</p>
</body></html>`))

// StatusReport renders the end-of-run summary.
func StatusReport(d StatusData) (Report, error) {
	var html strings.Builder
	if err := statusTmpl.Execute(&html, d); err != nil {
		return Report{}, fmt.Errorf("render status report: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "DAILY SCAN STATUS — %s (run %s)\n", d.AsOf, d.RunID)
	fmt.Fprintf(&text, "filings: %d seen, %d new, %d failed\n", d.FilingsSeen, d.FilingsNew, d.FilingsFailed)
	fmt.Fprintf(&text, "transactions stored: %d\n", d.TxnsStored)
	fmt.Fprintf(&text, "buy clusters: %d found, %d alerted\n", d.ClustersFound, d.ClustersSent)
	fmt.Fprintf(&text, "sell signals: %d found, %d alerted, %d watch-only\n", d.SellsFound, d.SellAlertsSent, d.WatchCount)
	fmt.Fprintf(&text, "alerts skipped (dedup): %d\n", d.Skipped)
	fmt.Fprintf(&text, "db: %d txns, %d companies, %d insiders (%s to %s)\n",
		d.Stats.TotalTransactions, d.Stats.UniqueCompanies, d.Stats.UniqueInsiders,
		d.Stats.EarliestTransaction, d.Stats.LatestTransaction)

	return Report{
		Subject: fmt.Sprintf("Form 4 Scan Status %s — %d clusters, %d sell signals", d.AsOf, d.ClustersFound, d.SellsFound),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
