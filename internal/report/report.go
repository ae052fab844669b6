// Package report lists the bug tasks of a milestone as one line per bug.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/andywolf/ci-buglist/internal/launchpad"
)

// UnknownAssignee is printed for unassigned tasks.
const UnknownAssignee = "<unknown>"

// ErrNoDate is returned for a task that carries none of the candidate dates.
var ErrNoDate = errors.New("task has no date")

// Tracker is the subset of a tracker session the report needs.
type Tracker interface {
	Project(ctx context.Context, name string) (*launchpad.Project, error)
	Series(ctx context.Context, project *launchpad.Project, name string) (*launchpad.Series, error)
	Milestones(ctx context.Context, series *launchpad.Series) ([]launchpad.Milestone, error)
	SearchTasks(ctx context.Context, milestone *launchpad.Milestone, status string) ([]launchpad.BugTask, error)
	AssigneeName(ctx context.Context, task launchpad.BugTask) (string, bool, error)
}

// Entry is one report line.
type Entry struct {
	BugID    int
	Assignee string
	Date     time.Time
}

// String renders "<bug-id> <assignee> <YYYY-MM-DD>".
func (e Entry) String() string {
	return fmt.Sprintf("%d %s %s", e.BugID, e.Assignee, e.Date.Format(DateLayout))
}

// Options selects the project, series and task status to report on.
type Options struct {
	Project string
	Series  string
	Status  string
	Logger  *zap.Logger
}

// Generator produces the fixed-bug report for a milestone.
type Generator struct {
	tracker Tracker
	project string
	series  string
	status  string
	logger  *zap.Logger
}

// NewGenerator creates a Generator reading from tracker.
func NewGenerator(tracker Tracker, opts Options) *Generator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		tracker: tracker,
		project: opts.Project,
		series:  opts.Series,
		status:  opts.Status,
		logger:  logger,
	}
}

// Run writes one line per task with the configured status on every
// milestone named milestone, in the order the tracker returns them. It
// returns the number of lines written. No matching milestone is not an
// error.
func (g *Generator) Run(ctx context.Context, milestone string, w io.Writer) (int, error) {
	project, err := g.tracker.Project(ctx, g.project)
	if err != nil {
		return 0, err
	}

	series, err := g.tracker.Series(ctx, project, g.series)
	if err != nil {
		return 0, err
	}

	milestones, err := g.tracker.Milestones(ctx, series)
	if err != nil {
		return 0, err
	}

	written := 0
	for i := range milestones {
		m := &milestones[i]
		if m.Name != milestone {
			continue
		}

		g.logger.Debug("searching milestone",
			zap.String("milestone", m.Name),
			zap.String("status", g.status),
		)

		tasks, err := g.tracker.SearchTasks(ctx, m, g.status)
		if err != nil {
			return written, err
		}

		for _, task := range tasks {
			entry, err := g.entry(ctx, task)
			if errors.Is(err, ErrNoDate) {
				g.logger.Warn("skipping task without a date",
					zap.Int("bug", entry.BugID),
					zap.String("task", task.SelfLink),
				)
				continue
			}
			if err != nil {
				return written, err
			}

			if _, err := fmt.Fprintln(w, entry.String()); err != nil {
				return written, fmt.Errorf("failed to write report line: %w", err)
			}
			written++
		}
	}

	g.logger.Debug("report complete",
		zap.String("milestone", milestone),
		zap.Int("lines", written),
	)

	return written, nil
}

// entry builds the report line for task. On ErrNoDate the returned entry
// still carries the bug id.
func (g *Generator) entry(ctx context.Context, task launchpad.BugTask) (Entry, error) {
	id, err := task.BugID()
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{BugID: id, Assignee: UnknownAssignee}

	name, ok, err := g.tracker.AssigneeName(ctx, task)
	if err != nil {
		return entry, fmt.Errorf("bug %d: %w", id, err)
	}
	if ok {
		entry.Assignee = name
	}

	date, ok := TaskDate(task)
	if !ok {
		return entry, fmt.Errorf("bug %d: %w", id, ErrNoDate)
	}
	entry.Date = date

	return entry, nil
}
