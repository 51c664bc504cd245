package screener

import (
	"fmt"
	"math"

	"SahamScope/internal/model"
)

// Factor weights. They sum to 1 so the total stays in [-2, 2].
const (
	weightMomentum   = 0.30
	weightTrend      = 0.25
	weightRSI        = 0.15
	weightVolume     = 0.15
	weightWinRate    = 0.10
	weightVolatility = 0.05
)

func factor(name string, score, weight float64, commentary string) model.FactorScore {
	return model.FactorScore{
		Name:       name,
		RawScore:   score,
		Weight:     weight,
		Weighted:   score * weight,
		Commentary: commentary,
	}
}

// scoreMomentum scores the one-month price change.
// Weight: 0.30
func scoreMomentum(row *model.MetricRow) model.FactorScore {
	chg := row.Change1MPct
	var score float64
	switch {
	case chg >= 15:
		score = 2.0
	case chg >= 8:
		score = 1.5
	case chg >= 4:
		score = 1.0
	case chg >= 1:
		score = 0.5
	case chg >= -1:
		score = 0
	case chg >= -4:
		score = -0.5
	case chg >= -8:
		score = -1.0
	case chg >= -15:
		score = -1.5
	default:
		score = -2.0
	}
	return factor("momentum_1m", score, weightMomentum, fmt.Sprintf("1M %+.1f%%", chg))
}

// scoreTrend scores MA alignment and proximity to the 52-week extremes.
// Weight: 0.25
// Bull alignment: price > MA20 > MA50
// Bear alignment: price < MA20 < MA50
func scoreTrend(row *model.MetricRow) model.FactorScore {
	bullish := row.Price > row.MA20 && row.MA20 > row.MA50
	bearish := row.Price < row.MA20 && row.MA20 < row.MA50

	nearHigh := row.High52w > 0 && math.Abs(row.Price-row.High52w)/row.High52w < 0.02
	nearLow := row.Low52w > 0 && math.Abs(row.Price-row.Low52w)/row.Low52w < 0.02

	var score float64
	var commentary string
	switch {
	case bullish && nearHigh:
		score = 2.0
		commentary = "bullish alignment at 52w high"
	case bullish:
		score = 1.0
		commentary = "bullish alignment"
	case bearish && nearLow:
		score = -1.5
		commentary = "bearish alignment at 52w low"
	case bearish:
		score = -1.0
		commentary = "bearish alignment"
	default:
		score = 0
		commentary = "sideways"
	}
	return factor("trend", score, weightTrend, commentary)
}

// scoreRSI rewards oversold and penalizes overbought readings of RSI(14).
// Weight: 0.15
func scoreRSI(row *model.MetricRow) model.FactorScore {
	rsi := row.RSI14
	var score float64
	switch {
	case rsi <= 25:
		score = 2.0
	case rsi <= 30:
		score = 1.5
	case rsi <= 40:
		score = 1.0
	case rsi <= 45:
		score = 0.5
	case rsi <= 55:
		score = 0
	case rsi <= 60:
		score = -0.5
	case rsi <= 70:
		score = -1.0
	case rsi <= 80:
		score = -1.5
	default:
		score = -2.0
	}
	return factor("rsi", score, weightRSI, fmt.Sprintf("RSI=%.0f", rsi))
}

// scoreVolume scores unusual volume in the direction of the day's move.
// Weight: 0.15
func scoreVolume(row *model.MetricRow) model.FactorScore {
	ratio := row.VolumeRatio
	var mag float64
	switch {
	case ratio >= 2:
		mag = 2.0
	case ratio >= 1.5:
		mag = 1.5
	case ratio >= 1.2:
		mag = 1.0
	case ratio >= 1:
		mag = 0.5
	}
	var score float64
	switch {
	case row.ChangePct > 0:
		score = mag
	case row.ChangePct < 0:
		score = -mag
	}
	return factor("volume", score, weightVolume, fmt.Sprintf("vol x%.2f, day %+.1f%%", ratio, row.ChangePct))
}

// scoreWinRate scores the share of up closes in the window.
// Weight: 0.10
func scoreWinRate(row *model.MetricRow) model.FactorScore {
	rate := row.WinRate
	var score float64
	switch {
	case rate >= 0.65:
		score = 2.0
	case rate >= 0.58:
		score = 1.0
	case rate >= 0.52:
		score = 0.5
	case rate >= 0.48:
		score = 0
	case rate >= 0.42:
		score = -0.5
	case rate >= 0.35:
		score = -1.0
	default:
		score = -2.0
	}
	return factor("win_rate", score, weightWinRate, fmt.Sprintf("%d up / %d down", row.UpDays, row.DownDays))
}

// scoreVolatility penalizes high annualized volatility. It never adds to the
// total.
// Weight: 0.05
func scoreVolatility(row *model.MetricRow) model.FactorScore {
	vol := row.VolatilityPct
	var score float64
	switch {
	case vol <= 25:
		score = 0
	case vol <= 40:
		score = -0.5
	case vol <= 60:
		score = -1.0
	case vol <= 80:
		score = -1.5
	default:
		score = -2.0
	}
	return factor("volatility", score, weightVolatility, fmt.Sprintf("σ=%.0f%%", vol))
}
