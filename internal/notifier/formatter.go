package notifier

import (
	"fmt"
	"html"
	"math"
	"sort"
	"strings"
	"time"

	"SahamScope/internal/collector"
	"SahamScope/internal/model"
	"SahamScope/internal/universe"
)

// Compact formats large numbers with K/M/B/T suffixes, e.g. 1.25M.
func Compact(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e12:
		return trimZero(fmt.Sprintf("%.2f", v/1e12)) + "T"
	case abs >= 1e9:
		return trimZero(fmt.Sprintf("%.2f", v/1e9)) + "B"
	case abs >= 1e6:
		return trimZero(fmt.Sprintf("%.2f", v/1e6)) + "M"
	case abs >= 1e3:
		return trimZero(fmt.Sprintf("%.2f", v/1e3)) + "K"
	default:
		return trimZero(fmt.Sprintf("%.2f", v))
	}
}

func trimZero(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// FormatPrice prints IDX prices as whole rupiah and US prices with cents.
func FormatPrice(market string, p float64) string {
	if market == universe.MarketIDX {
		return fmt.Sprintf("%.0f", p)
	}
	return fmt.Sprintf("%.2f", p)
}

func arrow(pct float64) string {
	switch {
	case pct > 0:
		return "🟢"
	case pct < 0:
		return "🔴"
	default:
		return "⚪"
	}
}

// FormatScanReport formats a scan into a Telegram message listing rows in
// the given order.
func FormatScanReport(res *collector.ScanResult, rows []*model.MetricRow) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s | %s\n\n",
		html.EscapeString(res.Universe), res.Window.String(), res.StartedAt.Format("2006-01-02 15:04")))

	if len(rows) == 0 {
		b.WriteString("No rows matched.\n")
	}
	for i, r := range rows {
		b.WriteString(fmt.Sprintf("%d. %s <b>%s</b> %s (%+.2f%%)\n",
			i+1, arrow(r.ChangePct), code(r.Ticker), FormatPrice(r.Market, r.Price), r.ChangePct))
		b.WriteString(fmt.Sprintf("   1M %+.1f%% | RSI %.0f | Val %s | %s %+.2f\n",
			r.Change1MPct, r.RSI14, Compact(r.Value), r.Score.Tier.Label, r.Score.Total))
		if r.NearAra {
			b.WriteString("   ⚡ near ARA\n")
		}
	}

	b.WriteString(fmt.Sprintf("\n%d scanned, %d failed, %s\n",
		len(res.Rows), len(res.Failures), res.Duration.Round(time.Millisecond)))
	return b.String()
}

// FormatTopMovers formats the day's gainers and losers.
func FormatTopMovers(name string, gainers, losers []*model.MetricRow) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🚀 <b>Top movers</b> | %s\n\n", html.EscapeString(name)))

	section := func(title string, rows []*model.MetricRow) {
		b.WriteString(fmt.Sprintf("<b>%s</b>\n", title))
		if len(rows) == 0 {
			b.WriteString("  none\n")
		}
		for _, r := range rows {
			b.WriteString(fmt.Sprintf("  %s %s %s (%+.2f%%) vol x%.1f\n",
				arrow(r.ChangePct), code(r.Ticker), FormatPrice(r.Market, r.Price), r.ChangePct, r.VolumeRatio))
		}
	}
	section("Gainers", gainers)
	b.WriteString("\n")
	section("Losers", losers)
	return b.String()
}

// FormatWatchlist formats one watchlist, or every watchlist when name is
// empty.
func FormatWatchlist(name string, lists map[string][]string) string {
	var b strings.Builder
	if name != "" {
		b.WriteString(fmt.Sprintf("👀 <b>%s</b>\n", html.EscapeString(name)))
		tickers := lists[name]
		if len(tickers) == 0 {
			b.WriteString("(empty)\n")
			return b.String()
		}
		codes := make([]string, len(tickers))
		for i, t := range tickers {
			codes[i] = code(t)
		}
		b.WriteString(strings.Join(codes, ", ") + "\n")
		return b.String()
	}

	b.WriteString("👀 <b>Watchlists</b>\n")
	if len(lists) == 0 {
		b.WriteString("(none)\n")
		return b.String()
	}
	names := make([]string, 0, len(lists))
	for n := range lists {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		b.WriteString(fmt.Sprintf("• %s (%d)\n", html.EscapeString(n), len(lists[n])))
	}
	return b.String()
}

// FormatFailures lists tickers that could not be fetched, grouped by kind.
func FormatFailures(failures []collector.Failure) string {
	if len(failures) == 0 {
		return ""
	}
	byKind := map[string][]string{}
	for _, f := range failures {
		byKind[f.Kind] = append(byKind[f.Kind], code(f.Ticker))
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("⚠️ <b>%d tickers failed</b>\n", len(failures)))
	for _, k := range kinds {
		b.WriteString(fmt.Sprintf("  %s: %s\n", k, strings.Join(byKind[k], ", ")))
	}
	return b.String()
}

// code is the display code of a ticker, escaped for Telegram HTML.
func code(ticker string) string {
	return html.EscapeString(universe.Code(ticker))
}
