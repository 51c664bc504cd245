// Package export writes scan results as Parquet files.
package export

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"SahamScope/internal/model"
)

// RowRecord is the Parquet schema for one metric row.
type RowRecord struct {
	Ticker        string  `parquet:"ticker"`
	Market        string  `parquet:"market"`
	AsOf          int64   `parquet:"as_of,timestamp(millisecond)"` // Unix ms
	Price         float64 `parquet:"price"`
	PrevClose     float64 `parquet:"prev_close"`
	ChangePct     float64 `parquet:"change_pct"`
	Change1WPct   float64 `parquet:"change_1w_pct"`
	Change1MPct   float64 `parquet:"change_1m_pct"`
	Change3MPct   float64 `parquet:"change_3m_pct"`
	Change6MPct   float64 `parquet:"change_6m_pct"`
	Change1YPct   float64 `parquet:"change_1y_pct"`
	ChangeYTDPct  float64 `parquet:"change_ytd_pct"`
	MA5           float64 `parquet:"ma5"`
	MA20          float64 `parquet:"ma20"`
	MA50          float64 `parquet:"ma50"`
	MA200         float64 `parquet:"ma200"`
	EMA20         float64 `parquet:"ema20"`
	RSI14         float64 `parquet:"rsi14"`
	High52w       float64 `parquet:"high_52w"`
	Low52w        float64 `parquet:"low_52w"`
	Position52w   float64 `parquet:"position_52w"`
	Volume        float64 `parquet:"volume"`
	AvgVolume20   float64 `parquet:"avg_volume_20"`
	VolumeRatio   float64 `parquet:"volume_ratio"`
	Value         float64 `parquet:"value"`
	AvgValue20    float64 `parquet:"avg_value_20"`
	Streak        int64   `parquet:"streak"`
	MaxWinStreak  int64   `parquet:"max_win_streak"`
	MaxLossStreak int64   `parquet:"max_loss_streak"`
	WinRate       float64 `parquet:"win_rate"`
	VolatilityPct float64 `parquet:"volatility_pct"`
	ATRPct        float64 `parquet:"atr_pct"`
	AraPrice      float64 `parquet:"ara_price"`
	ArbPrice      float64 `parquet:"arb_price"`
	Score         float64 `parquet:"score"`
	Tier          string  `parquet:"tier"`
	Sector        string  `parquet:"sector"`
	MarketCap     float64 `parquet:"market_cap"`
	Warnings      string  `parquet:"warnings"`
}

// ToRecords flattens metric rows into the Parquet schema.
func ToRecords(rows []*model.MetricRow) []RowRecord {
	out := make([]RowRecord, 0, len(rows))
	for _, r := range rows {
		rec := RowRecord{
			Ticker:        r.Ticker,
			Market:        r.Market,
			AsOf:          r.AsOf.UnixMilli(),
			Price:         r.Price,
			PrevClose:     r.Previous,
			ChangePct:     r.ChangePct,
			Change1WPct:   r.Change1WPct,
			Change1MPct:   r.Change1MPct,
			Change3MPct:   r.Change3MPct,
			Change6MPct:   r.Change6MPct,
			Change1YPct:   r.Change1YPct,
			ChangeYTDPct:  r.ChangeYTD,
			MA5:           r.MA5,
			MA20:          r.MA20,
			MA50:          r.MA50,
			MA200:         r.MA200,
			EMA20:         r.EMA20,
			RSI14:         r.RSI14,
			High52w:       r.High52w,
			Low52w:        r.Low52w,
			Position52w:   r.Position52w,
			Volume:        r.Volume,
			AvgVolume20:   r.AvgVolume20,
			VolumeRatio:   r.VolumeRatio,
			Value:         r.Value,
			AvgValue20:    r.AvgValue20,
			Streak:        int64(r.Streak),
			MaxWinStreak:  int64(r.MaxWinStreak),
			MaxLossStreak: int64(r.MaxLossStreak),
			WinRate:       r.WinRate,
			VolatilityPct: r.VolatilityPct,
			ATRPct:        r.ATRPct,
			AraPrice:      r.AraPrice,
			ArbPrice:      r.ArbPrice,
			Score:         r.Score.Total,
			Tier:          r.Score.Tier.Label,
			Warnings:      strings.Join(r.Warnings, "; "),
		}
		if r.Fundamentals != nil {
			rec.Sector = r.Fundamentals.Sector
			rec.MarketCap = r.Fundamentals.MarketCap
		}
		out = append(out, rec)
	}
	return out
}

// WriteParquet writes rows to w as a single Parquet file.
func WriteParquet(w io.Writer, rows []*model.MetricRow) error {
	return parquet.Write(w, ToRecords(rows))
}

// WriteParquetFile writes rows to path, creating parent directories.
func WriteParquetFile(path string, rows []*model.MetricRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, ToRecords(rows))
}

// ReadParquetFile reads back a file written by WriteParquetFile.
func ReadParquetFile(path string) ([]RowRecord, error) {
	return parquet.ReadFile[RowRecord](path)
}

// ReadParquet reads records from an in-memory Parquet file.
func ReadParquet(r io.ReaderAt, size int64) ([]RowRecord, error) {
	return parquet.Read[RowRecord](r, size)
}
