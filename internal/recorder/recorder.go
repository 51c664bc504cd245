// Package recorder persists scan history for later inspection.
package recorder

import (
	"errors"
	"time"

	"SahamScope/internal/model"
)

// ErrRunNotFound is returned by RunRows for an unknown run ID.
var ErrRunNotFound = errors.New("scan run not found")

// ScanSnapshot holds all data for one recorded scan.
type ScanSnapshot struct {
	Universe  string
	Market    string
	Window    model.Window
	StartedAt time.Time
	Duration  time.Duration
	Rows      []*model.MetricRow
	Failed    []string // tickers that returned no data
	Trigger   string   // "http", "cli", "cron" or "telegram"
}

// Run is the summary of a recorded scan.
type Run struct {
	ID         string    `json:"id"`
	Universe   string    `json:"universe"`
	Market     string    `json:"market"`
	Range      string    `json:"range"`
	Interval   string    `json:"interval"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Rows       int       `json:"rows"`
	Failures   int       `json:"failures"`
}

// StoredRow is the persisted subset of a metric row.
type StoredRow struct {
	Position    int     `json:"position"`
	Ticker      string  `json:"ticker"`
	Price       float64 `json:"price"`
	ChangePct   float64 `json:"change_pct"`
	Change1MPct float64 `json:"change_1m_pct"`
	Volume      float64 `json:"volume"`
	Value       float64 `json:"value"`
	RSI14       float64 `json:"rsi14"`
	Streak      int     `json:"streak"`
	Score       float64 `json:"score"`
	Tier        string  `json:"tier"`
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordScan(snap *ScanSnapshot) (string, error)
	RecentRuns(limit int) ([]Run, error)
	RunRows(runID string) ([]StoredRow, error)
	Close() error
}
