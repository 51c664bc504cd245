package model

import "time"

// MetricRow holds every derived metric of one ticker for one scan.
// It is a pure function of the ticker's Series and never persisted as source
// of truth.
type MetricRow struct {
	Ticker   string    `json:"ticker"`
	Market   string    `json:"market"`
	AsOf     time.Time `json:"as_of"`
	Bars     int       `json:"bars"`
	Price    float64   `json:"price"`
	Previous float64   `json:"prev_close"`
	Change   float64   `json:"change"`

	ChangePct   float64 `json:"change_pct"`
	Change1WPct float64 `json:"change_1w_pct"`
	Change1MPct float64 `json:"change_1m_pct"`
	Change3MPct float64 `json:"change_3m_pct"`
	Change6MPct float64 `json:"change_6m_pct"`
	Change1YPct float64 `json:"change_1y_pct"`
	ChangeYTD   float64 `json:"change_ytd_pct"`

	MA5   float64 `json:"ma5"`
	MA20  float64 `json:"ma20"`
	MA50  float64 `json:"ma50"`
	MA200 float64 `json:"ma200"`
	EMA20 float64 `json:"ema20"`
	RSI14 float64 `json:"rsi14"`

	High52w     float64 `json:"high_52w"`
	Low52w      float64 `json:"low_52w"`
	Position52w float64 `json:"position_52w"`

	Volume      float64 `json:"volume"`
	AvgVolume20 float64 `json:"avg_volume_20"`
	VolumeRatio float64 `json:"volume_ratio"`
	Value       float64 `json:"value"`
	AvgValue20  float64 `json:"avg_value_20"`

	Streak        int     `json:"streak"`
	MaxWinStreak  int     `json:"max_win_streak"`
	MaxLossStreak int     `json:"max_loss_streak"`
	WinRate       float64 `json:"win_rate"`
	UpDays        int     `json:"up_days"`
	DownDays      int     `json:"down_days"`

	VolatilityPct float64 `json:"volatility_pct"`
	ATRPct        float64 `json:"atr_pct"`

	TickSize float64 `json:"tick_size,omitempty"`
	AraPrice float64 `json:"ara_price,omitempty"`
	ArbPrice float64 `json:"arb_price,omitempty"`
	NearAra  bool    `json:"near_ara,omitempty"`

	Fundamentals *Fundamentals `json:"fundamentals,omitempty"`
	Score        Score         `json:"score"`
	Warnings     []string      `json:"warnings,omitempty"`
}
