package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventHandler implements the EventHandler interface for testing
type MockEventHandler struct {
	// The events received by this handler
	Events []*Event
	// Error to return from HandleEvent
	HandlerError error
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *Event) error {
	h.Events = append(h.Events, event)
	return h.HandlerError
}

func TestEventConstructors(t *testing.T) {
	p := NewProgressEvent(StageArticle, 0.25)
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, TypeProgress, p.Type)
	assert.Equal(t, StageArticle, p.Stage)
	assert.InDelta(t, 0.25, p.Progress, 1e-9)
	assert.WithinDuration(t, time.Now(), p.CreatedAt, 2*time.Second)

	l := NewLogEvent(LevelWarning, "section 3 degraded")
	assert.Equal(t, TypeLog, l.Type)
	assert.Equal(t, LevelWarning, l.Level)

	s := NewSectionCompletedEvent(2, "Heading", "body", true)
	assert.Equal(t, TypeSectionCompleted, s.Type)
	assert.Equal(t, 2, s.Index)
	assert.True(t, s.Degraded)

	i := NewImageCompletedEvent(4, "")
	assert.Equal(t, TypeImageCompleted, i.Type)
	assert.Equal(t, StageImage, i.Stage)
	assert.Empty(t, i.Path)
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(0)

	require.NoError(t, r.HandleEvent(ctx, NewStageEvent(StageArticle, "generating sections")))
	require.NoError(t, r.HandleEvent(ctx, NewProgressEvent(StageArticle, 0.4)))
	require.NoError(t, r.HandleEvent(ctx, NewProgressEvent(StageArticle, 0.3)))
	require.NoError(t, r.HandleEvent(ctx, NewSectionCompletedEvent(0, "A", "a", false)))
	require.NoError(t, r.HandleEvent(ctx, NewSectionCompletedEvent(1, "B", "b", true)))
	require.NoError(t, r.HandleEvent(ctx, NewImageCompletedEvent(0, "images/section_01.png")))
	require.NoError(t, r.HandleEvent(ctx, NewImageCompletedEvent(1, "")))

	snap := r.Snapshot()
	assert.Equal(t, StageArticle, snap.Stage)
	assert.InDelta(t, 0.4, snap.Progress, 1e-9, "progress never moves backwards")
	assert.Equal(t, 2, snap.SectionsDone)
	assert.Equal(t, 1, snap.DegradedSections)
	assert.Equal(t, 1, snap.ImagesDone)
	assert.Equal(t, 1, snap.ImagesMissing)
	require.Len(t, snap.Logs, 1)
	assert.Equal(t, "generating sections", snap.Logs[0].Message)
}

func TestRecorderKeepsMostRecentLogs(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, r.HandleEvent(ctx, NewLogEvent(LevelInfo, fmt.Sprintf("line %d", i))))
	}

	logs := r.Snapshot().Logs
	require.Len(t, logs, 3)
	assert.Equal(t, "line 2", logs[0].Message)
	assert.Equal(t, "line 4", logs[2].Message)

	// Snapshots are copies
	logs[0].Message = "changed"
	assert.Equal(t, "line 2", r.Snapshot().Logs[0].Message)
}
