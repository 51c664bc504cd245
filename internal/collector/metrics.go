package collector

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"SahamScope/internal/calculator"
	"SahamScope/internal/model"
	"SahamScope/internal/universe"
)

// nearAraPct is how close to the upper auto-rejection price a close must be
// to flag the row.
const nearAraPct = 0.02

// scaledLookback converts a lookback in trading days into bars of the
// window's interval. Zero means the interval is too coarse for it.
func scaledLookback(days int, w model.Window) int {
	return int(math.Round(float64(days) * w.PeriodsPerYear() / calculator.TradingDaysPerYear))
}

// BuildMetricRow derives every metric of one series. Metrics that cannot be
// computed fall back to a neutral value and add a warning to the row.
func BuildMetricRow(s *model.Series, market string, w model.Window, log *zap.Logger) *model.MetricRow {
	if log == nil {
		log = zap.NewNop()
	}
	last, ok := s.Last()
	if !ok {
		return nil
	}
	closes := s.Closes()
	row := &model.MetricRow{
		Ticker: s.Ticker,
		Market: market,
		AsOf:   last.Time,
		Bars:   len(s.Bars),
		Price:  last.Close,
		Volume: last.Volume,
		Value:  last.Close * last.Volume,
	}
	warn := func(metric string, err error, fallback string) {
		log.Warn("metric calculation failed",
			zap.String("ticker", s.Ticker),
			zap.String("metric", metric),
			zap.String("fallback", fallback),
			zap.Error(err))
		row.Warnings = append(row.Warnings, fmt.Sprintf("%s: %v", metric, err))
	}

	// Day change
	if len(closes) >= 2 {
		row.Previous = closes[len(closes)-2]
		row.Change = row.Price - row.Previous
		if pct, err := calculator.PercentChange(closes, 1); err != nil {
			warn("change", err, "0")
		} else {
			row.ChangePct = pct
		}
	} else {
		row.Previous = last.Open
		warn("change", calculator.ErrInsufficientData, "0")
	}

	// Period changes
	periods := []struct {
		name string
		days int
		dst  *float64
	}{
		{"change_1w", calculator.Lookback1W, &row.Change1WPct},
		{"change_1m", calculator.Lookback1M, &row.Change1MPct},
		{"change_3m", calculator.Lookback3M, &row.Change3MPct},
		{"change_6m", calculator.Lookback6M, &row.Change6MPct},
		{"change_1y", calculator.Lookback1Y, &row.Change1YPct},
	}
	for _, p := range periods {
		n := scaledLookback(p.days, w)
		if n <= 0 {
			continue
		}
		if pct, err := calculator.PercentChange(closes, n); err != nil {
			warn(p.name, err, "0")
		} else {
			*p.dst = pct
		}
	}
	if ytd, err := calculator.YTDChange(s.Bars); err != nil {
		warn("change_ytd", err, "0")
	} else {
		row.ChangeYTD = ytd
	}

	// Moving averages
	mas := []struct {
		name   string
		period int
		dst    *float64
	}{
		{"ma5", 5, &row.MA5},
		{"ma20", 20, &row.MA20},
		{"ma50", 50, &row.MA50},
		{"ma200", 200, &row.MA200},
	}
	for _, m := range mas {
		if ma, err := calculator.CalculateMA(s.Bars, m.period); err != nil {
			warn(m.name, err, "current price")
			*m.dst = row.Price
		} else {
			*m.dst = ma
		}
	}
	if ema, err := calculator.CalculateEMA(closes, 20); err != nil {
		warn("ema20", err, "current price")
		row.EMA20 = row.Price
	} else {
		row.EMA20 = ema
	}

	// RSI
	if rsi, err := calculator.CalculateRSI(s.Bars, 14); err != nil {
		warn("rsi14", err, "50")
		row.RSI14 = 50
	} else {
		row.RSI14 = rsi
	}

	// 52-week range
	yearBars := int(w.PeriodsPerYear())
	if h, l, err := calculator.CalculateRange(s.Bars, yearBars); err != nil {
		warn("range_52w", err, "current price")
		row.High52w, row.Low52w = row.Price, row.Price
	} else {
		row.High52w, row.Low52w = h, l
	}
	if pos, err := calculator.Calculate52WeekPosition(row.Price, row.High52w, row.Low52w); err != nil {
		warn("position_52w", err, "0.5")
		row.Position52w = 0.5
	} else {
		row.Position52w = pos
	}

	// Volume and value
	if ratio, avg, err := calculator.VolumeRatio(s.Volumes(), 20); err != nil {
		warn("volume_ratio", err, "1")
		row.VolumeRatio = 1
		row.AvgVolume20 = row.Volume
	} else {
		row.VolumeRatio = ratio
		row.AvgVolume20 = avg
	}
	if v, err := calculator.AverageValue(s.Bars, 20); err != nil {
		warn("avg_value_20", err, "current value")
		row.AvgValue20 = row.Value
	} else {
		row.AvgValue20 = v
	}

	// Streaks and win rate
	st := calculator.Streaks(closes)
	row.Streak = st.Current
	row.MaxWinStreak = st.MaxWin
	row.MaxLossStreak = st.MaxLoss
	if rate, up, down, err := calculator.WinRate(closes, 0); err != nil {
		warn("win_rate", err, "0.5")
		row.WinRate = 0.5
	} else {
		row.WinRate, row.UpDays, row.DownDays = rate, up, down
	}

	// Risk
	if vol, err := calculator.Volatility(closes, w.PeriodsPerYear()); err != nil {
		warn("volatility", err, "0")
	} else {
		row.VolatilityPct = vol
	}
	if atr, err := calculator.ATRPercent(s.Bars, 14); err != nil {
		warn("atr", err, "0")
	} else {
		row.ATRPct = atr
	}

	// IDX price fractions and auto-rejection limits for the next session
	if market == universe.MarketIDX && row.Price > 0 {
		row.TickSize = calculator.TickSize(row.Price)
		row.AraPrice, row.ArbPrice = calculator.AutoRejection(row.Price)
		if row.Previous > 0 {
			todayAra, _ := calculator.AutoRejection(row.Previous)
			row.NearAra = row.Price >= todayAra*(1-nearAraPct)
		}
	}

	return row
}
