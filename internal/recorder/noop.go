package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordScan(_ *ScanSnapshot) (string, error) { return "", nil }
func (n *NoopRecorder) RecentRuns(_ int) ([]Run, error)            { return nil, nil }
func (n *NoopRecorder) RunRows(_ string) ([]StoredRow, error)      { return nil, ErrRunNotFound }
func (n *NoopRecorder) Close() error                               { return nil }
