package world

// Metrics is a read-only view of key runtime signals.
// It is updated from the loop goroutine and read from HTTP handlers/tests.
type Metrics struct {
	Tick   uint64 `json:"tick"`
	Agents int    `json:"agents"`

	BarrierMS  float64 `json:"barrier_ms"`
	TrailCells int     `json:"trail_cells"`

	ClampedTotal     uint64 `json:"clamped_total"`
	UnsupportedTotal uint64 `json:"unsupported_total"`
}

func (w *World) Metrics() Metrics {
	if w == nil {
		return Metrics{}
	}
	m, ok := w.metrics.Load().(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}
