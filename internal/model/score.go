package model

// FactorScore represents a single factor's scoring result.
type FactorScore struct {
	Name       string  `json:"name"`
	RawScore   float64 `json:"raw"`
	Weight     float64 `json:"weight"`
	Weighted   float64 `json:"weighted"`
	Commentary string  `json:"commentary"`
}

// Tier maps a composite score range to a label.
type Tier struct {
	Label string `json:"label"`
	Rank  int    `json:"rank"` // 0 is the strongest tier
}

// Score is the output of the screener for one metric row.
type Score struct {
	Total   float64       `json:"total"`
	Tier    Tier          `json:"tier"`
	Factors []FactorScore `json:"factors"`
}
