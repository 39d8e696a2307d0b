package illustration

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/task"
)

// illustrateTask is the image phase of one section.
type illustrateTask struct {
	id       uuid.UUID
	index    int
	heading  string
	visual   string
	style    domain.Style
	dir      string
	pipeline *Pipeline
	results  chan<- domain.ImageResult
	status   atomic.Value
}

var _ task.Task = (*illustrateTask)(nil)

func newIllustrateTask(
	p *Pipeline,
	index int,
	heading, visual string,
	style domain.Style,
	dir string,
	results chan<- domain.ImageResult,
) *illustrateTask {
	t := &illustrateTask{
		id:       uuid.New(),
		index:    index,
		heading:  heading,
		visual:   visual,
		style:    style,
		dir:      dir,
		pipeline: p,
		results:  results,
	}
	t.status.Store(task.TaskStatusPending)
	return t
}

func (t *illustrateTask) ID() uuid.UUID {
	return t.id
}

func (t *illustrateTask) Type() string {
	return task.TaskTypeIllustration
}

func (t *illustrateTask) Status() task.TaskStatus {
	return t.status.Load().(task.TaskStatus)
}

// Execute never fails: a section without an image is a valid outcome.
func (t *illustrateTask) Execute(ctx context.Context) error {
	t.status.Store(task.TaskStatusProcessing)
	res := t.pipeline.illustrate(ctx, t.index, t.heading, t.visual, t.style, t.dir)
	t.results <- res
	if res.HasImage() {
		t.status.Store(task.TaskStatusCompleted)
	} else {
		t.status.Store(task.TaskStatusFailed)
	}
	return nil
}
