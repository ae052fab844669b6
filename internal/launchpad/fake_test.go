package launchpad

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// fakeLaunchpad serves a tiny openstack-ci project with a paginated
// milestone collection.
type fakeLaunchpad struct {
	server *httptest.Server

	mu    sync.Mutex
	auths []string
	hits  map[string]int

	// tasks by milestone name, returned for any status filter
	tasks map[string][]map[string]interface{}
}

func newFakeLaunchpad(t *testing.T) *fakeLaunchpad {
	t.Helper()

	f := &fakeLaunchpad{
		hits:  make(map[string]int),
		tasks: make(map[string][]map[string]interface{}),
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			f.auths = append(f.auths, req.Header.Get("Authorization"))
			f.hits[req.URL.Path]++
			f.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/devel/", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]interface{}{
			"self_link":                f.url("/devel/"),
			"projects_collection_link": f.url("/devel/projects"),
			"bugs_collection_link":     f.url("/devel/bugs"),
		})
	})

	r.Get("/devel/{project}", func(w http.ResponseWriter, req *http.Request) {
		project := chi.URLParam(req, "project")
		if project != "openstack-ci" {
			http.Error(w, "Object: <Launchpad> name: "+project, http.StatusNotFound)
			return
		}

		if req.URL.Query().Get("ws.op") == "getSeries" {
			if req.URL.Query().Get("name") != "trunk" {
				writeJSON(w, nil)
				return
			}
			writeJSON(w, map[string]interface{}{
				"name":                           "trunk",
				"active":                         true,
				"self_link":                      f.url("/devel/openstack-ci/trunk"),
				"all_milestones_collection_link": f.url("/devel/openstack-ci/trunk/all_milestones"),
			})
			return
		}

		writeJSON(w, map[string]interface{}{
			"name":         "openstack-ci",
			"display_name": "OpenStack Core Infrastructure",
			"self_link":    f.url("/devel/openstack-ci"),
		})
	})

	r.Get("/devel/openstack-ci/trunk/all_milestones", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("ws.start") == "2" {
			writeJSON(w, map[string]interface{}{
				"total_size": 3,
				"start":      2,
				"entries": []map[string]interface{}{
					f.milestone("grizzly"),
				},
			})
			return
		}
		writeJSON(w, map[string]interface{}{
			"total_size": 3,
			"start":      0,
			"entries": []map[string]interface{}{
				f.milestone("essex"),
				f.milestone("folsom"),
			},
			"next_collection_link": f.url("/devel/openstack-ci/trunk/all_milestones?ws.size=2&ws.start=2"),
		})
	})

	r.Get("/devel/openstack-ci/+milestone/{name}", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("ws.op") != "searchTasks" {
			writeJSON(w, f.milestone(chi.URLParam(req, "name")))
			return
		}
		f.mu.Lock()
		entries := f.tasks[chi.URLParam(req, "name")]
		f.mu.Unlock()
		if entries == nil {
			entries = []map[string]interface{}{}
		}
		writeJSON(w, map[string]interface{}{
			"total_size": len(entries),
			"start":      0,
			"entries":    entries,
		})
	})

	r.Get("/devel/people/{id}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]interface{}{
			"name":         "carol",
			"display_name": "Carol",
			"self_link":    f.url("/devel/people/" + chi.URLParam(req, "id")),
		})
	})

	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeLaunchpad) url(path string) string {
	return f.server.URL + path
}

func (f *fakeLaunchpad) milestone(name string) map[string]interface{} {
	return map[string]interface{}{
		"name":      name,
		"title":     name,
		"is_active": false,
		"self_link": f.url("/devel/openstack-ci/+milestone/" + name),
	}
}

func (f *fakeLaunchpad) client(opts ...Option) *Client {
	opts = append([]Option{WithServiceRoot(f.server.URL), WithConsumer("openstack-dm")}, opts...)
	return NewClient(opts...)
}

func (f *fakeLaunchpad) lastAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.auths) == 0 {
		return ""
	}
	return f.auths[len(f.auths)-1]
}

func (f *fakeLaunchpad) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
