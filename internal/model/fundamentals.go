package model

// Fundamentals holds the company profile and valuation figures of a ticker.
// Fields the provider does not report stay zero.
type Fundamentals struct {
	Ticker            string  `json:"ticker"`
	Name              string  `json:"name"`
	Sector            string  `json:"sector,omitempty"`
	Industry          string  `json:"industry,omitempty"`
	Currency          string  `json:"currency,omitempty"`
	MarketCap         float64 `json:"market_cap"`
	TrailingPE        float64 `json:"trailing_pe"`
	PriceToBook       float64 `json:"price_to_book"`
	DividendYield     float64 `json:"dividend_yield"`
	ReturnOnEquity    float64 `json:"return_on_equity"`
	EPS               float64 `json:"eps"`
	SharesOutstanding float64 `json:"shares_outstanding"`
}
