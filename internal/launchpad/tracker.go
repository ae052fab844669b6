package launchpad

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"
)

// Project resolves a project by name.
func (s *Session) Project(ctx context.Context, name string) (*Project, error) {
	if name == "" {
		return nil, fmt.Errorf("project name cannot be empty")
	}

	var project Project
	if err := s.get(ctx, s.apiRoot+url.PathEscape(name), nil, &project); err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", name, err)
	}
	return &project, nil
}

// Series resolves a series of project by name. The service answers an
// unknown name with null rather than 404; both map to ErrNotFound.
func (s *Session) Series(ctx context.Context, project *Project, name string) (*Series, error) {
	if project == nil || project.SelfLink == "" {
		return nil, fmt.Errorf("project has no self link")
	}

	params := url.Values{
		"ws.op": {"getSeries"},
		"name":  {name},
	}

	var series *Series
	if err := s.get(ctx, project.SelfLink, params, &series); err != nil {
		return nil, fmt.Errorf("failed to get series %s of %s: %w", name, project.Name, err)
	}
	if series == nil {
		return nil, fmt.Errorf("series %s of %s: %w", name, project.Name, ErrNotFound)
	}
	return series, nil
}

// Milestones returns every milestone of the series, active or not.
func (s *Session) Milestones(ctx context.Context, series *Series) ([]Milestone, error) {
	if series == nil || series.AllMilestonesCollectionLink == "" {
		return nil, fmt.Errorf("series has no milestones collection link")
	}

	milestones, err := fetchCollection[Milestone](ctx, s, series.AllMilestonesCollectionLink, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones of %s: %w", series.Name, err)
	}
	return milestones, nil
}

// SearchTasks returns the bug tasks targeted to milestone, filtered by
// status when status is non-empty, in the order the service returns them.
func (s *Session) SearchTasks(ctx context.Context, milestone *Milestone, status string) ([]BugTask, error) {
	if milestone == nil || milestone.SelfLink == "" {
		return nil, fmt.Errorf("milestone has no self link")
	}

	params := url.Values{"ws.op": {"searchTasks"}}
	if status != "" {
		params.Set("status", status)
	}

	tasks, err := fetchCollection[BugTask](ctx, s, milestone.SelfLink, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search tasks of milestone %s: %w", milestone.Name, err)
	}
	return tasks, nil
}

// AssigneeName returns the Launchpad name of the task's assignee. The
// boolean is false when the task is unassigned.
func (s *Session) AssigneeName(ctx context.Context, task BugTask) (string, bool, error) {
	if task.AssigneeLink == "" {
		return "", false, nil
	}

	if name, ok := personNameFromLink(task.AssigneeLink); ok {
		return name, true, nil
	}

	var person Person
	if err := s.get(ctx, task.AssigneeLink, nil, &person); err != nil {
		return "", false, fmt.Errorf("failed to get assignee: %w", err)
	}
	if person.Name == "" {
		return "", false, fmt.Errorf("assignee %s has no name", task.AssigneeLink)
	}
	return person.Name, true, nil
}

// fetchCollection follows next_collection_link until the collection is
// exhausted. params only apply to the first page; later links carry their
// own query.
func fetchCollection[T any](ctx context.Context, s *Session, link string, params url.Values) ([]T, error) {
	var all []T
	seen := make(map[string]bool)

	next := link
	for next != "" {
		if seen[next] {
			return nil, fmt.Errorf("collection paging loops at %s", next)
		}
		seen[next] = true

		var page collectionPage[T]
		if err := s.get(ctx, next, params, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Entries...)

		s.logger.Debug("fetched collection page",
			zap.Int("start", page.Start),
			zap.Int("entries", len(page.Entries)),
			zap.Int("total_size", page.TotalSize),
		)

		next = page.NextCollectionLink
		params = nil
	}

	return all, nil
}
