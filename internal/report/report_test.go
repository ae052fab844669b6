package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/andywolf/ci-buglist/internal/launchpad"
)

// mockTracker implements Tracker over in-memory milestones and tasks.
type mockTracker struct {
	milestones []launchpad.Milestone
	tasks      map[string][]launchpad.BugTask
	assignees  map[string]string

	projectErr error
	searchErr  error
	searched   []string
	gotStatus  string
	gotProject string
	gotSeries  string
}

func (m *mockTracker) Project(ctx context.Context, name string) (*launchpad.Project, error) {
	m.gotProject = name
	if m.projectErr != nil {
		return nil, m.projectErr
	}
	return &launchpad.Project{Name: name, SelfLink: "lp/" + name}, nil
}

func (m *mockTracker) Series(ctx context.Context, project *launchpad.Project, name string) (*launchpad.Series, error) {
	m.gotSeries = name
	return &launchpad.Series{Name: name, AllMilestonesCollectionLink: project.SelfLink + "/" + name + "/all_milestones"}, nil
}

func (m *mockTracker) Milestones(ctx context.Context, series *launchpad.Series) ([]launchpad.Milestone, error) {
	return m.milestones, nil
}

func (m *mockTracker) SearchTasks(ctx context.Context, milestone *launchpad.Milestone, status string) ([]launchpad.BugTask, error) {
	m.searched = append(m.searched, milestone.SelfLink)
	m.gotStatus = status
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.tasks[milestone.SelfLink], nil
}

func (m *mockTracker) AssigneeName(ctx context.Context, task launchpad.BugTask) (string, bool, error) {
	if task.AssigneeLink == "" {
		return "", false, nil
	}
	name, ok := m.assignees[task.AssigneeLink]
	if !ok {
		return "", false, errors.New("unknown person")
	}
	return name, true, nil
}

func bugLink(id string) string {
	return "https://api.launchpad.net/devel/bugs/" + id
}

func newGrizzlyTracker() *mockTracker {
	return &mockTracker{
		milestones: []launchpad.Milestone{
			{Name: "folsom", SelfLink: "m/folsom"},
			{Name: "grizzly", SelfLink: "m/grizzly"},
			{Name: "Grizzly", SelfLink: "m/Grizzly"},
		},
		tasks: map[string][]launchpad.BugTask{
			"m/folsom": {
				{BugLink: bugLink("50"), DateCreated: day("2012-06-01")},
			},
			"m/grizzly": {
				{
					BugLink:          bugLink("100"),
					AssigneeLink:     "p/bob",
					DateCreated:      day("2012-12-01"),
					DateFixCommitted: day("2013-01-05"),
				},
				{
					BugLink:         bugLink("101"),
					DateCreated:     day("2012-12-02"),
					DateFixReleased: day("2013-02-10"),
				},
			},
			"m/Grizzly": {
				{BugLink: bugLink("999"), DateCreated: day("2013-01-01")},
			},
		},
		assignees: map[string]string{"p/bob": "bob"},
	}
}

func TestGenerator_Run(t *testing.T) {
	tracker := newGrizzlyTracker()
	gen := NewGenerator(tracker, Options{Project: "openstack-ci", Series: "trunk", Status: "Fix Released"})

	var out bytes.Buffer
	n, err := gen.Run(context.Background(), "grizzly", &out)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	want := "100 bob 2013-01-05\n101 <unknown> 2013-02-10\n"
	if out.String() != want {
		t.Errorf("Run() output =\n%s\nwant\n%s", out.String(), want)
	}
	if n != 2 {
		t.Errorf("Run() = %d lines, want 2", n)
	}
	if tracker.gotProject != "openstack-ci" || tracker.gotSeries != "trunk" {
		t.Errorf("looked up %s/%s, want openstack-ci/trunk", tracker.gotProject, tracker.gotSeries)
	}
	if tracker.gotStatus != "Fix Released" {
		t.Errorf("searched status %q, want %q", tracker.gotStatus, "Fix Released")
	}
	if len(tracker.searched) != 1 || tracker.searched[0] != "m/grizzly" {
		t.Errorf("searched milestones %v, want only m/grizzly (case-sensitive match)", tracker.searched)
	}
}

func TestGenerator_Run_NoMatch(t *testing.T) {
	tracker := newGrizzlyTracker()
	gen := NewGenerator(tracker, Options{Status: "Fix Released"})

	var out bytes.Buffer
	n, err := gen.Run(context.Background(), "havana", &out)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if n != 0 || out.Len() != 0 {
		t.Errorf("Run() = %d lines, output %q; want nothing", n, out.String())
	}
	if len(tracker.searched) != 0 {
		t.Errorf("expected no task searches, got %v", tracker.searched)
	}
}

func TestGenerator_Run_NoQualifyingTasks(t *testing.T) {
	tracker := &mockTracker{
		milestones: []launchpad.Milestone{{Name: "grizzly", SelfLink: "m/grizzly"}},
	}
	gen := NewGenerator(tracker, Options{})

	var out bytes.Buffer
	n, err := gen.Run(context.Background(), "grizzly", &out)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if n != 0 || out.Len() != 0 {
		t.Errorf("Run() = %d lines, output %q; want nothing", n, out.String())
	}
}

func TestGenerator_Run_DuplicateMilestoneNames(t *testing.T) {
	tracker := &mockTracker{
		milestones: []launchpad.Milestone{
			{Name: "grizzly", SelfLink: "m/1"},
			{Name: "grizzly", SelfLink: "m/2"},
		},
		tasks: map[string][]launchpad.BugTask{
			"m/1": {{BugLink: bugLink("1"), DateCreated: day("2013-01-01")}},
			"m/2": {{BugLink: bugLink("2"), DateCreated: day("2013-01-02")}},
		},
	}
	gen := NewGenerator(tracker, Options{})

	var out bytes.Buffer
	if _, err := gen.Run(context.Background(), "grizzly", &out); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	want := "1 <unknown> 2013-01-01\n2 <unknown> 2013-01-02\n"
	if out.String() != want {
		t.Errorf("Run() output = %q, want %q", out.String(), want)
	}
}

func TestGenerator_Run_PreservesTrackerOrder(t *testing.T) {
	tracker := &mockTracker{
		milestones: []launchpad.Milestone{{Name: "grizzly", SelfLink: "m/grizzly"}},
		tasks: map[string][]launchpad.BugTask{
			"m/grizzly": {
				{BugLink: bugLink("300"), DateCreated: day("2013-03-01")},
				{BugLink: bugLink("100"), DateCreated: day("2013-01-01")},
				{BugLink: bugLink("200"), DateCreated: day("2013-02-01")},
			},
		},
	}
	gen := NewGenerator(tracker, Options{})

	var out bytes.Buffer
	if _, err := gen.Run(context.Background(), "grizzly", &out); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		ids = append(ids, strings.Fields(line)[0])
	}
	if got := strings.Join(ids, ","); got != "300,100,200" {
		t.Errorf("bug order = %s, want 300,100,200", got)
	}
}

func TestGenerator_Run_SkipsTaskWithoutDate(t *testing.T) {
	tracker := &mockTracker{
		milestones: []launchpad.Milestone{{Name: "grizzly", SelfLink: "m/grizzly"}},
		tasks: map[string][]launchpad.BugTask{
			"m/grizzly": {
				{BugLink: bugLink("1"), SelfLink: "t/1"},
				{BugLink: bugLink("2"), DateCreated: day("2013-01-02")},
			},
		},
	}
	core, logs := observer.New(zap.WarnLevel)
	gen := NewGenerator(tracker, Options{Logger: zap.New(core)})

	var out bytes.Buffer
	n, err := gen.Run(context.Background(), "grizzly", &out)
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if n != 1 || out.String() != "2 <unknown> 2013-01-02\n" {
		t.Errorf("Run() = %d, %q; want only bug 2", n, out.String())
	}

	warnings := logs.FilterMessage("skipping task without a date").All()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if bug := warnings[0].ContextMap()["bug"]; bug != int64(1) {
		t.Errorf("warning bug = %v, want 1", bug)
	}
}

func TestGenerator_Run_Errors(t *testing.T) {
	t.Run("project lookup", func(t *testing.T) {
		tracker := newGrizzlyTracker()
		tracker.projectErr = launchpad.ErrUnauthorized
		gen := NewGenerator(tracker, Options{})

		var out bytes.Buffer
		_, err := gen.Run(context.Background(), "grizzly", &out)
		if !errors.Is(err, launchpad.ErrUnauthorized) {
			t.Errorf("Run() error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("task search", func(t *testing.T) {
		tracker := newGrizzlyTracker()
		tracker.searchErr = errors.New("connection reset")
		gen := NewGenerator(tracker, Options{})

		var out bytes.Buffer
		_, err := gen.Run(context.Background(), "grizzly", &out)
		if err == nil || !strings.Contains(err.Error(), "connection reset") {
			t.Errorf("Run() error = %v, want search error", err)
		}
	})

	t.Run("malformed bug link", func(t *testing.T) {
		tracker := &mockTracker{
			milestones: []launchpad.Milestone{{Name: "grizzly", SelfLink: "m/grizzly"}},
			tasks: map[string][]launchpad.BugTask{
				"m/grizzly": {{BugLink: "not-a-bug", DateCreated: day("2013-01-01")}},
			},
		}
		gen := NewGenerator(tracker, Options{})

		var out bytes.Buffer
		_, err := gen.Run(context.Background(), "grizzly", &out)
		if err == nil || !strings.Contains(err.Error(), "malformed bug link") {
			t.Errorf("Run() error = %v, want malformed bug link", err)
		}
	})

	t.Run("assignee lookup", func(t *testing.T) {
		tracker := &mockTracker{
			milestones: []launchpad.Milestone{{Name: "grizzly", SelfLink: "m/grizzly"}},
			tasks: map[string][]launchpad.BugTask{
				"m/grizzly": {{BugLink: bugLink("5"), AssigneeLink: "p/ghost", DateCreated: day("2013-01-01")}},
			},
		}
		gen := NewGenerator(tracker, Options{})

		var out bytes.Buffer
		_, err := gen.Run(context.Background(), "grizzly", &out)
		if err == nil || !strings.Contains(err.Error(), "bug 5") {
			t.Errorf("Run() error = %v, want assignee error for bug 5", err)
		}
	})
}

func TestEntry_String(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	e := Entry{BugID: 100, Assignee: "alice", Date: time.Date(2013, 1, 5, 23, 30, 0, 0, loc)}
	if got := e.String(); got != "100 alice 2013-01-05" {
		t.Errorf("String() = %q, want %q", got, "100 alice 2013-01-05")
	}
}
