// Package screener scores metric rows and filters, sorts and ranks them.
package screener

import "SahamScope/internal/model"

// Tiers maps composite scores to labels, strongest first.
var Tiers = []struct {
	MinScore float64
	Tier     model.Tier
}{
	{1.2, model.Tier{Label: "Strong Buy", Rank: 0}},
	{0.6, model.Tier{Label: "Buy", Rank: 1}},
	{0.2, model.Tier{Label: "Accumulate", Rank: 2}},
	{-0.2, model.Tier{Label: "Hold", Rank: 3}},
	{-0.6, model.Tier{Label: "Reduce", Rank: 4}},
	{-1.2, model.Tier{Label: "Sell", Rank: 5}},
}

// DefaultTier is the lowest tier for scores < -1.2.
var DefaultTier = model.Tier{Label: "Strong Sell", Rank: 6}

// mapTier maps a total score to a Tier.
func mapTier(totalScore float64) model.Tier {
	for _, t := range Tiers {
		if totalScore >= t.MinScore {
			return t.Tier
		}
	}
	return DefaultTier
}

// Evaluate computes the composite score of a metric row.
func Evaluate(row *model.MetricRow) model.Score {
	factors := []model.FactorScore{
		scoreMomentum(row),
		scoreTrend(row),
		scoreRSI(row),
		scoreVolume(row),
		scoreWinRate(row),
		scoreVolatility(row),
	}
	total := 0.0
	for _, f := range factors {
		total += f.Weighted
	}
	return model.Score{
		Total:   total,
		Tier:    mapTier(total),
		Factors: factors,
	}
}
