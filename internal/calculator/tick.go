package calculator

import (
	"github.com/shopspring/decimal"
)

// MinIDXPrice is the lowest price a regular-board IDX stock can trade at.
const MinIDXPrice = 50

// TickSize returns the IDX price fraction for a price.
func TickSize(price float64) float64 {
	switch {
	case price < 200:
		return 1
	case price < 500:
		return 2
	case price < 2000:
		return 5
	case price < 5000:
		return 10
	default:
		return 25
	}
}

// RoundToTick snaps a price onto the IDX tick grid, rounding up or down.
func RoundToTick(price float64, up bool) float64 {
	p := decimal.NewFromFloat(price)
	tick := decimal.NewFromFloat(TickSize(price))
	steps := p.Div(tick)
	if up {
		steps = steps.Ceil()
	} else {
		steps = steps.Floor()
	}
	f, _ := steps.Mul(tick).Float64()
	return f
}

// autoRejectionPct returns the symmetric auto-rejection band for a reference price.
func autoRejectionPct(prevClose float64) decimal.Decimal {
	switch {
	case prevClose <= 200:
		return decimal.NewFromFloat(0.35)
	case prevClose <= 5000:
		return decimal.NewFromFloat(0.25)
	default:
		return decimal.NewFromFloat(0.20)
	}
}

// AutoRejection returns the upper (ARA) and lower (ARB) price limits for a
// session given the previous close. The upper limit rounds down and the
// lower limit rounds up onto the tick grid; the lower limit never goes below
// MinIDXPrice.
func AutoRejection(prevClose float64) (upper, lower float64) {
	if prevClose <= 0 {
		return 0, 0
	}
	ref := decimal.NewFromFloat(prevClose)
	pct := autoRejectionPct(prevClose)
	one := decimal.NewFromInt(1)

	u, _ := ref.Mul(one.Add(pct)).Float64()
	l, _ := ref.Mul(one.Sub(pct)).Float64()

	upper = RoundToTick(u, false)
	lower = RoundToTick(l, true)
	if lower < MinIDXPrice {
		lower = MinIDXPrice
	}
	return upper, lower
}
