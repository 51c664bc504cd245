package calculator

// StreakStats summarizes runs of consecutive up and down closes.
type StreakStats struct {
	Current  int // >0 consecutive up closes at the end, <0 consecutive down closes
	MaxWin   int
	MaxLoss  int
	UpDays   int
	DownDays int
	FlatDays int
}

// Streaks walks the close-to-close changes. A flat close ends both runs.
func Streaks(closes []float64) StreakStats {
	var s StreakStats
	run := 0
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			s.UpDays++
			if run > 0 {
				run++
			} else {
				run = 1
			}
			if run > s.MaxWin {
				s.MaxWin = run
			}
		case closes[i] < closes[i-1]:
			s.DownDays++
			if run < 0 {
				run--
			} else {
				run = -1
			}
			if -run > s.MaxLoss {
				s.MaxLoss = -run
			}
		default:
			s.FlatDays++
			run = 0
		}
	}
	s.Current = run
	return s
}

// WinRate returns the fraction of up closes among the last lookback changes,
// together with the up and down counts. lookback <= 0 uses the whole series.
func WinRate(closes []float64, lookback int) (rate float64, up, down int, err error) {
	if len(closes) < 2 {
		return 0, 0, 0, ErrInsufficientData
	}
	start := 0
	if lookback > 0 && len(closes)-1 > lookback {
		start = len(closes) - 1 - lookback
	}
	st := Streaks(closes[start:])
	total := st.UpDays + st.DownDays + st.FlatDays
	if total == 0 {
		return 0, 0, 0, ErrInsufficientData
	}
	return float64(st.UpDays) / float64(total), st.UpDays, st.DownDays, nil
}
