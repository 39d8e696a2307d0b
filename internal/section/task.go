package section

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/phrazzld/longform/internal/domain"
	"github.com/phrazzld/longform/internal/task"
)

// sectionTask generates one section on a worker of the pipeline's pool.
type sectionTask struct {
	id       uuid.UUID
	index    int
	section  domain.Section
	brief    domain.Brief
	pipeline *Pipeline
	results  chan<- domain.SectionResult
	status   atomic.Value
}

var _ task.Task = (*sectionTask)(nil)

func newSectionTask(
	p *Pipeline,
	index int,
	s domain.Section,
	brief domain.Brief,
	results chan<- domain.SectionResult,
) *sectionTask {
	t := &sectionTask{
		id:       uuid.New(),
		index:    index,
		section:  s,
		brief:    brief,
		pipeline: p,
		results:  results,
	}
	t.status.Store(task.TaskStatusPending)
	return t
}

func (t *sectionTask) ID() uuid.UUID {
	return t.id
}

func (t *sectionTask) Type() string {
	return task.TaskTypeSection
}

func (t *sectionTask) Status() task.TaskStatus {
	return t.status.Load().(task.TaskStatus)
}

// Execute never fails: generation errors become a degraded result.
func (t *sectionTask) Execute(ctx context.Context) error {
	t.status.Store(task.TaskStatusProcessing)
	res := t.pipeline.generate(ctx, t.index, t.section, t.brief)
	t.results <- res
	if res.Degraded {
		t.status.Store(task.TaskStatusFailed)
	} else {
		t.status.Store(task.TaskStatusCompleted)
	}
	return nil
}
