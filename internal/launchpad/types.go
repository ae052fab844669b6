package launchpad

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// ServiceRoot is the document served at the versioned API root.
type ServiceRoot struct {
	SelfLink               string `json:"self_link"`
	ProjectsCollectionLink string `json:"projects_collection_link"`
	BugsCollectionLink     string `json:"bugs_collection_link"`
	MeLink                 string `json:"me_link"`
}

// Project is a Launchpad project (a "product" in Launchpad's own terms).
type Project struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	SelfLink    string `json:"self_link"`
	WebLink     string `json:"web_link"`
}

// Series is a line of development within a project.
type Series struct {
	Name                        string `json:"name"`
	Active                      bool   `json:"active"`
	SelfLink                    string `json:"self_link"`
	AllMilestonesCollectionLink string `json:"all_milestones_collection_link"`
}

// Milestone is a named release marker within a series.
type Milestone struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	IsActive bool   `json:"is_active"`
	SelfLink string `json:"self_link"`
}

// BugTask is the per-target status record of a bug. Dates the service
// reports as null decode to nil.
type BugTask struct {
	SelfLink     string `json:"self_link"`
	BugLink      string `json:"bug_link"`
	AssigneeLink string `json:"assignee_link"`
	Status       string `json:"status"`
	Importance   string `json:"importance"`
	Title        string `json:"title"`

	DateCreated      *time.Time `json:"date_created"`
	DateFixCommitted *time.Time `json:"date_fix_committed"`
	DateFixReleased  *time.Time `json:"date_fix_released"`
	DateClosed       *time.Time `json:"date_closed"`
}

// BugID returns the numeric bug id from the task's bug link
// (".../bugs/1234").
func (t BugTask) BugID() (int, error) {
	u, err := url.Parse(t.BugLink)
	if err != nil || u.Path == "" {
		return 0, fmt.Errorf("malformed bug link %q", t.BugLink)
	}
	id, err := strconv.Atoi(path.Base(strings.TrimSuffix(u.Path, "/")))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("malformed bug link %q", t.BugLink)
	}
	return id, nil
}

// Person is a Launchpad user or team.
type Person struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	SelfLink    string `json:"self_link"`
}

// personNameFromLink extracts "bob" from ".../~bob".
func personNameFromLink(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	base := path.Base(strings.TrimSuffix(u.Path, "/"))
	if !strings.HasPrefix(base, "~") || len(base) == 1 {
		return "", false
	}
	return strings.TrimPrefix(base, "~"), true
}

// collectionPage is one page of a paginated collection.
type collectionPage[T any] struct {
	TotalSize          int    `json:"total_size"`
	Start              int    `json:"start"`
	Entries            []T    `json:"entries"`
	NextCollectionLink string `json:"next_collection_link"`
}
