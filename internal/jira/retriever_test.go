package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveCollection answers both the count probe (maxResults=0) and page
// requests for one paginated endpoint.
func serveCollection(w http.ResponseWriter, r *http.Request, key string, records []map[string]any) {
	q := r.URL.Query()
	if q.Get("maxResults") == "0" {
		json.NewEncoder(w).Encode(map[string]any{"total": len(records)})
		return
	}
	start, _ := strconv.Atoi(q.Get("startAt"))
	size, _ := strconv.Atoi(q.Get("maxResults"))
	end := start + size
	if start > len(records) {
		start = len(records)
	}
	if end > len(records) {
		end = len(records)
	}
	json.NewEncoder(w).Encode(map[string]any{
		"total": len(records),
		key:     records[start:end],
	})
}

type fakeJira struct {
	boards   []map[string]any
	projects []map[string]any
	sprints  map[string][]map[string]any // board id -> sprints
	issues   map[string][]map[string]any // sprint id -> issues
	searched []map[string]any            // JQL search results
}

func (f *fakeJira) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/agile/1.0/board", func(w http.ResponseWriter, r *http.Request) {
		serveCollection(w, r, "values", f.boards)
	})
	mux.HandleFunc("/rest/api/3/project/search", func(w http.ResponseWriter, r *http.Request) {
		serveCollection(w, r, "values", f.projects)
	})
	mux.HandleFunc("/rest/agile/1.0/board/{id}/sprint", func(w http.ResponseWriter, r *http.Request) {
		serveCollection(w, r, "values", f.sprints[r.PathValue("id")])
	})
	mux.HandleFunc("/rest/agile/1.0/sprint/{id}/issue", func(w http.ResponseWriter, r *http.Request) {
		serveCollection(w, r, "issues", f.issues[r.PathValue("id")])
	})
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "project=DT", r.URL.Query().Get("jql"))
		if r.URL.Query().Get("maxResults") != "0" {
			assert.Equal(t, "changelog", r.URL.Query().Get("expand"))
		}
		serveCollection(w, r, "issues", f.searched)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testIssue(id int, key string) map[string]any {
	return map[string]any{
		"id":  strconv.Itoa(id),
		"key": key,
		"fields": map[string]any{
			"issuetype": map[string]any{"name": "Task"},
			"status":    map[string]any{"name": "Done"},
			"summary":   key,
			"created":   "2025-03-01T08:00:00.000+0000",
			"updated":   "2025-03-02T08:00:00.000+0000",
		},
	}
}

func defaultFake() *fakeJira {
	return &fakeJira{
		boards: []map[string]any{
			{"id": 3, "name": "DT board", "location": map[string]any{"projectKey": "DT"}},
			{"id": 4, "name": "OPS board", "location": map[string]any{"projectKey": "OPS"}},
			{"id": 5, "name": "Orphan board"},
		},
		projects: []map[string]any{
			{"id": "10001", "key": "DT", "name": "Data Team"},
			{"id": "10002", "key": "OPS", "name": "Operations"},
		},
		sprints: map[string][]map[string]any{
			"3": {
				{"id": 7, "originBoardId": 3, "name": "Sprint 7", "state": "closed"},
				{"id": 8, "originBoardId": 3, "name": "Sprint 8", "state": "active"},
			},
		},
		issues: map[string][]map[string]any{
			"7": {testIssue(101, "DT-1"), testIssue(102, "DT-2")},
			"8": {testIssue(103, "DT-3")},
		},
		searched: []map[string]any{testIssue(101, "DT-1"), testIssue(102, "DT-2"), testIssue(103, "DT-3")},
	}
}

func newTestRetriever(t *testing.T, srv *httptest.Server) *Retriever {
	t.Helper()
	client := testClient(srv.URL)
	r, err := NewRetriever(context.Background(), client, RetrieverOptions{
		BaseURL:    srv.URL,
		ProjectKey: "DT",
		PageSize:   2,
	}, nil)
	require.NoError(t, err)
	return r
}

func TestNewRetrieverSnapshotsBoardsAndProjects(t *testing.T) {
	r := newTestRetriever(t, defaultFake().server(t))

	require.Len(t, r.Boards(), 3)
	assert.Equal(t, "DT board", r.Boards()[0].Name)
	assert.Equal(t, "DT", r.Boards()[0].ProjectKey)
	assert.Empty(t, r.Boards()[2].ProjectKey)

	require.Len(t, r.Projects(), 2)
	assert.Equal(t, "Data Team", r.Projects()[0].Name)
	assert.Equal(t, "DT", r.ProjectKey())
}

func TestNewRetrieverRequiresOptions(t *testing.T) {
	srv := defaultFake().server(t)
	client := testClient(srv.URL)

	_, err := NewRetriever(context.Background(), client, RetrieverOptions{ProjectKey: "DT"}, nil)
	require.Error(t, err)

	_, err = NewRetriever(context.Background(), client, RetrieverOptions{BaseURL: srv.URL}, nil)
	require.Error(t, err)
}

func TestBoardLookups(t *testing.T) {
	r := newTestRetriever(t, defaultFake().server(t))

	board, ok := r.BoardForProjectKey("OPS")
	require.True(t, ok)
	assert.Equal(t, 4, board.ID)

	// Empty key resolves to the retriever's own project.
	board, ok = r.BoardForProjectKey("")
	require.True(t, ok)
	assert.Equal(t, 3, board.ID)

	_, ok = r.BoardForProjectKey("ZZZ")
	assert.False(t, ok)

	project, ok := r.ProjectForProjectKey("")
	require.True(t, ok)
	assert.Equal(t, "Data Team", project.Name)

	_, ok = r.ProjectForProjectKey("ZZZ")
	assert.False(t, ok)
}

func TestSprintsForBoard(t *testing.T) {
	r := newTestRetriever(t, defaultFake().server(t))

	board, ok := r.BoardForProjectKey("DT")
	require.True(t, ok)
	sprints, err := r.SprintsForBoard(context.Background(), board)
	require.NoError(t, err)
	require.Len(t, sprints, 2)
	assert.Equal(t, "Sprint 7", sprints[0].Name)
	assert.Equal(t, "active", sprints[1].State)
}

func TestIssuesForProject(t *testing.T) {
	r := newTestRetriever(t, defaultFake().server(t))

	project, ok := r.ProjectForProjectKey("DT")
	require.True(t, ok)
	issues, err := r.IssuesForProject(context.Background(), project)
	require.NoError(t, err)
	require.Len(t, issues, 3)
	for _, issue := range issues {
		assert.Equal(t, "DT", issue.Project)
	}
}

func TestIssuesForSprintInjectsSprintRef(t *testing.T) {
	r := newTestRetriever(t, defaultFake().server(t))

	board, _ := r.BoardForProjectKey("DT")
	sprints, err := r.SprintsForBoard(context.Background(), board)
	require.NoError(t, err)

	issues, err := r.IssuesForSprint(context.Background(), sprints[0])
	require.NoError(t, err)
	require.Len(t, issues, 2)
	for _, issue := range issues {
		assert.Contains(t, issue.Sprints, "7")
	}
}

func TestIssuesForSprintDoesNotDuplicateRef(t *testing.T) {
	fake := defaultFake()
	withSprint := testIssue(101, "DT-1")
	withSprint["fields"].(map[string]any)["sprint"] = map[string]any{"id": 7, "name": "Sprint 7"}
	fake.issues["7"] = []map[string]any{withSprint}

	r := newTestRetriever(t, fake.server(t))
	board, _ := r.BoardForProjectKey("DT")
	sprints, err := r.SprintsForBoard(context.Background(), board)
	require.NoError(t, err)

	issues, err := r.IssuesForSprint(context.Background(), sprints[0])
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, []string{"7"}, issues[0].Sprints)
}

func TestIssuesForAllSprints(t *testing.T) {
	r := newTestRetriever(t, defaultFake().server(t))

	issues, err := r.IssuesForAllSprints(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 3)
	// Sprint order is preserved: sprint 7 issues first, then sprint 8.
	assert.Equal(t, "DT-1", issues[0].Key)
	assert.Equal(t, "DT-2", issues[1].Key)
	assert.Equal(t, "DT-3", issues[2].Key)
}

func TestIssuesForAllSprintsNoBoard(t *testing.T) {
	srv := defaultFake().server(t)
	client := testClient(srv.URL)
	r, err := NewRetriever(context.Background(), client, RetrieverOptions{
		BaseURL:    srv.URL,
		ProjectKey: "ZZZ",
	}, nil)
	require.NoError(t, err)

	_, err = r.IssuesForAllSprints(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no board")
}

func TestNewRetrieverFailsOnInvalidRecord(t *testing.T) {
	fake := defaultFake()
	fake.boards = append(fake.boards, map[string]any{"id": -1, "name": "broken"})
	srv := fake.server(t)

	_, err := NewRetriever(context.Background(), testClient(srv.URL), RetrieverOptions{
		BaseURL:    srv.URL,
		ProjectKey: "DT",
	}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "board", verr.Entity)
}

func TestRetrieverFetchesAcrossPages(t *testing.T) {
	fake := defaultFake()
	var many []map[string]any
	for i := 1; i <= 5; i++ {
		many = append(many, testIssue(200+i, "DT-"+strconv.Itoa(10+i)))
	}
	fake.searched = many
	r := newTestRetriever(t, fake.server(t)) // page size 2

	project, _ := r.ProjectForProjectKey("DT")
	issues, err := r.IssuesForProject(context.Background(), project)
	require.NoError(t, err)
	require.Len(t, issues, 5)
	assert.Equal(t, "DT-11", issues[0].Key)
	assert.Equal(t, "DT-15", issues[4].Key)
	assert.WithinDuration(t, issues[0].Created, issues[4].Created, time.Second)
}
