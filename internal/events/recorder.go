package events

import (
	"context"
	"sync"
	"time"
)

// DefaultLogCapacity is how many log lines a Recorder keeps.
const DefaultLogCapacity = 100

// LogEntry is one timestamped log line kept by a Recorder.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Snapshot is the observable state of a run at one point in time.
type Snapshot struct {
	Stage            string     `json:"stage"`
	Progress         float64    `json:"progress"`
	SectionsDone     int        `json:"sections_done"`
	DegradedSections int        `json:"degraded_sections"`
	ImagesDone       int        `json:"images_done"`
	ImagesMissing    int        `json:"images_missing"`
	Logs             []LogEntry `json:"logs"`
}

// Recorder is an EventHandler that folds events into a Snapshot. Progress
// never moves backwards and only the most recent log lines are retained.
type Recorder struct {
	mu       sync.RWMutex
	capacity int
	state    Snapshot
}

// NewRecorder creates a Recorder keeping up to capacity log lines.
// A capacity <= 0 uses DefaultLogCapacity.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Recorder{capacity: capacity}
}

// HandleEvent implements EventHandler.
func (r *Recorder) HandleEvent(_ context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Type {
	case TypeProgress:
		if event.Stage != "" {
			r.state.Stage = event.Stage
		}
		if event.Progress > r.state.Progress {
			r.state.Progress = event.Progress
		}
	case TypeStage:
		r.state.Stage = event.Stage
		if event.Message != "" {
			r.appendLog(event.CreatedAt, LevelInfo, event.Message)
		}
	case TypeLog:
		r.appendLog(event.CreatedAt, event.Level, event.Message)
	case TypeSectionCompleted:
		r.state.SectionsDone++
		if event.Degraded {
			r.state.DegradedSections++
		}
	case TypeImageCompleted:
		if event.Path != "" {
			r.state.ImagesDone++
		} else {
			r.state.ImagesMissing++
		}
	}
	return nil
}

func (r *Recorder) appendLog(at time.Time, level, message string) {
	r.state.Logs = append(r.state.Logs, LogEntry{Time: at, Level: level, Message: message})
	if over := len(r.state.Logs) - r.capacity; over > 0 {
		r.state.Logs = append(r.state.Logs[:0:0], r.state.Logs[over:]...)
	}
}

// Snapshot returns a copy of the current state.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.state
	s.Logs = append([]LogEntry(nil), r.state.Logs...)
	return s
}
