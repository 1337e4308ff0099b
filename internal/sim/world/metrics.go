package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick      uint64  `json:"tick"`
	Bodies    int     `json:"bodies"`
	TotalMass float64 `json:"total_mass"`
	Merges    uint64  `json:"merges_total"`
	Observers int     `json:"observers"`
	Paused    bool    `json:"paused"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Insert  int `json:"insert"`
	Remove  int `json:"remove"`
	Project int `json:"project"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
