package metrics

import "time"

// Outcome labels for section, image and run counters.
const (
	OutcomeSuccess  = "success"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// Recorder defines observability hooks for runs and their stages.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome string)
	IncSectionResult(degraded bool)
	IncImageResult(success bool)
	IncOutlineSource(strategy string)
	IncRetry(policy string)
	AddSessionsSwept(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncRunOutcome(string)                       {}
func (NoopRecorder) IncSectionResult(bool)                      {}
func (NoopRecorder) IncImageResult(bool)                        {}
func (NoopRecorder) IncOutlineSource(string)                    {}
func (NoopRecorder) IncRetry(string)                            {}
func (NoopRecorder) AddSessionsSwept(int)                       {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
