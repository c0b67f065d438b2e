package detect

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/bighogz/form4-scanner/internal/config"
	"github.com/bighogz/form4-scanner/internal/models"
)

// ClassifySell assigns a sell transaction its severity tier. The
// $250K-$5M sweet spot carries the signal: above it, sales skew toward
// scheduled 10b5-1 plans and the edge decays.
func ClassifySell(t models.Transaction, cfg config.SellConfig) models.ClassifiedSell {
	inSweetSpot := t.TotalValue >= cfg.SweetSpotMin && t.TotalValue <= cfg.SweetSpotMax

	tier := models.SellTierWatch
	switch {
	case t.IsOfficer && t.IsDirector && inSweetSpot:
		tier = models.SellTierS1
	case (t.IsOfficer || t.IsDirector) && inSweetSpot:
		tier = models.SellTierS2
	}

	return models.ClassifiedSell{
		Transaction: t,
		Tier:        tier,
		Notes:       sellNotes(t, cfg),
	}
}

func sellNotes(t models.Transaction, cfg config.SellConfig) string {
	var notes []string

	if t.TotalValue >= 1_000_000 {
		notes = append(notes, fmt.Sprintf("$%.2fM sale", t.TotalValue/1_000_000))
	} else {
		notes = append(notes, fmt.Sprintf("$%s sale", humanize.Commaf(t.TotalValue)))
	}
	if t.InsiderTitle != "" {
		notes = append(notes, t.InsiderTitle)
	}
	if t.TotalValue > cfg.SweetSpotMax {
		notes = append(notes, "$5M+ (possible 10b5-1 plan)")
		if t.IsOfficer || t.IsDirector {
			notes = append(notes, "weaker signal at $5M+")
		}
	}
	if !t.IsOfficer && !t.IsDirector {
		notes = append(notes, "non-officer/director")
	}

	out := notes[0]
	for _, n := range notes[1:] {
		out += "; " + n
	}
	return out
}

// RollupSells groups classified sells by ticker. Each ticker's tier is
// the strongest among its sells; within a ticker sells order by (tier,
// value desc); tickers order by (tier, total value desc).
func RollupSells(sells []models.ClassifiedSell) []models.SellSignal {
	byTicker := map[string]*models.SellSignal{}
	for _, s := range sells {
		sig, ok := byTicker[s.IssuerTicker]
		if !ok {
			sig = &models.SellSignal{
				Ticker:      s.IssuerTicker,
				CompanyName: s.IssuerName,
				Tier:        s.Tier,
			}
			byTicker[s.IssuerTicker] = sig
		}
		if s.Tier.StrongerThan(sig.Tier) {
			sig.Tier = s.Tier
		}
		sig.Sells = append(sig.Sells, s)
		sig.TotalValue += s.TotalValue
	}

	var out []models.SellSignal
	for _, sig := range byTicker {
		sort.Slice(sig.Sells, func(i, j int) bool {
			if sig.Sells[i].Tier != sig.Sells[j].Tier {
				return sig.Sells[i].Tier.StrongerThan(sig.Sells[j].Tier)
			}
			return sig.Sells[i].TotalValue > sig.Sells[j].TotalValue
		})
		sellers := map[string]bool{}
		for _, s := range sig.Sells {
			sellers[s.InsiderID()] = true
		}
		sig.NumSellers = len(sellers)
		out = append(out, *sig)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier.StrongerThan(out[j].Tier)
		}
		return out[i].TotalValue > out[j].TotalValue
	})
	return out
}
