package jira

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/providentiaww/jira-connector/internal/models"
	"go.uber.org/zap"
)

// RetrieverOptions configures a Retriever. BaseURL and ProjectKey are
// required; everything else has a sensible default.
type RetrieverOptions struct {
	BaseURL       string
	ProjectKey    string
	PageSize      int
	Flavor        Flavor
	EstimateField string
}

// Retriever binds the pager and mappers to concrete Jira endpoints and
// exposes entity-specific fetch and lookup operations. Boards and
// projects are snapshotted once at construction; all lookup helpers read
// that snapshot, while sprint and issue fetches always hit the API.
// Mixing the two policies per collection is deliberate: boards and
// projects are small and near-static, issues are neither.
type Retriever struct {
	pager      *Pager
	mapper     *Mapper
	baseURL    string
	projectKey string
	expand     string
	boards     []models.Board
	projects   []models.Project
	log        *zap.Logger
}

// NewRetriever builds a retriever and takes its construction-time
// snapshot of boards and projects. A failed snapshot fails construction:
// a retriever without its lookup tables is useless.
func NewRetriever(ctx context.Context, client Getter, opts RetrieverOptions, log *zap.Logger) (*Retriever, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("jira: base URL is required")
	}
	if opts.ProjectKey == "" {
		return nil, fmt.Errorf("jira: project key is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	expand := "changelog"
	if opts.Flavor == FlavorVersioned {
		expand = "changelog,versionedRepresentations"
	}

	r := &Retriever{
		pager:      NewPager(client, opts.PageSize, log),
		mapper:     NewMapper(opts.Flavor, opts.EstimateField),
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		projectKey: opts.ProjectKey,
		expand:     expand,
		log:        log,
	}

	boards, err := r.fetchBoards(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := r.fetchProjects(ctx)
	if err != nil {
		return nil, err
	}
	r.boards = boards
	r.projects = projects

	log.Info("retriever initialized",
		zap.String("project", opts.ProjectKey),
		zap.Int("boards", len(boards)),
		zap.Int("projects", len(projects)))

	return r, nil
}

func (r *Retriever) fetchBoards(ctx context.Context) ([]models.Board, error) {
	records, err := r.pager.FetchAll(ctx, r.baseURL+"/rest/agile/1.0/board", "values", nil)
	if err != nil {
		return nil, err
	}
	boards := make([]models.Board, 0, len(records))
	for _, record := range records {
		board, err := r.mapper.Board(record)
		if err != nil {
			return nil, err
		}
		boards = append(boards, board)
	}
	return boards, nil
}

func (r *Retriever) fetchProjects(ctx context.Context) ([]models.Project, error) {
	records, err := r.pager.FetchAll(ctx, r.baseURL+"/rest/api/3/project/search", "values", nil)
	if err != nil {
		return nil, err
	}
	projects := make([]models.Project, 0, len(records))
	for _, record := range records {
		project, err := r.mapper.Project(record)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, nil
}

// Boards returns the construction-time board snapshot.
func (r *Retriever) Boards() []models.Board { return r.boards }

// Projects returns the construction-time project snapshot.
func (r *Retriever) Projects() []models.Project { return r.projects }

// ProjectKey returns the project key this retriever was scoped to.
func (r *Retriever) ProjectKey() string { return r.projectKey }

// BoardForProjectKey returns the first board whose project key matches.
// An empty key means the retriever's own project. Not finding a board is
// a value, not an error: callers must check ok before use.
func (r *Retriever) BoardForProjectKey(key string) (models.Board, bool) {
	if key == "" {
		key = r.projectKey
	}
	for _, b := range r.boards {
		if b.ProjectKey == key {
			return b, true
		}
	}
	return models.Board{}, false
}

// ProjectForProjectKey is the symmetric lookup over the project snapshot.
func (r *Retriever) ProjectForProjectKey(key string) (models.Project, bool) {
	if key == "" {
		key = r.projectKey
	}
	for _, p := range r.projects {
		if p.Key == key {
			return p, true
		}
	}
	return models.Project{}, false
}

// SprintsForBoard fetches the sprints scoped to one board.
func (r *Retriever) SprintsForBoard(ctx context.Context, board models.Board) ([]models.Sprint, error) {
	endpoint := fmt.Sprintf("%s/rest/agile/1.0/board/%d/sprint", r.baseURL, board.ID)
	records, err := r.pager.FetchAll(ctx, endpoint, "values", nil)
	if err != nil {
		return nil, err
	}
	sprints := make([]models.Sprint, 0, len(records))
	for _, record := range records {
		sprint, err := r.mapper.Sprint(record)
		if err != nil {
			return nil, err
		}
		sprints = append(sprints, sprint)
	}
	return sprints, nil
}

// IssuesForProject fetches every issue in a project via a JQL search,
// with changelogs expanded. The project back-reference on each issue is
// set to the queried project.
func (r *Retriever) IssuesForProject(ctx context.Context, project models.Project) ([]models.Issue, error) {
	endpoint := fmt.Sprintf("%s/rest/api/2/search?jql=%s", r.baseURL, url.QueryEscape("project="+project.Key))
	issues, err := r.fetchIssues(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	for i := range issues {
		issues[i].Project = project.Key
	}
	return issues, nil
}

// IssuesForSprint fetches every issue in one sprint, with changelogs
// expanded. Each issue's sprint membership is guaranteed to include the
// queried sprint.
func (r *Retriever) IssuesForSprint(ctx context.Context, sprint models.Sprint) ([]models.Issue, error) {
	endpoint := fmt.Sprintf("%s/rest/agile/1.0/sprint/%d/issue", r.baseURL, sprint.ID)
	issues, err := r.fetchIssues(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	ref := strconv.Itoa(sprint.ID)
	for i := range issues {
		if !containsRef(issues[i].Sprints, ref, sprint.Name) {
			issues[i].Sprints = append(issues[i].Sprints, ref)
		}
	}
	return issues, nil
}

// IssuesForAllSprints resolves the project's board, enumerates its
// sprints and concatenates the issues of each, in sprint order.
func (r *Retriever) IssuesForAllSprints(ctx context.Context) ([]models.Issue, error) {
	board, ok := r.BoardForProjectKey(r.projectKey)
	if !ok {
		return nil, fmt.Errorf("jira: no board found for project %s", r.projectKey)
	}
	sprints, err := r.SprintsForBoard(ctx, board)
	if err != nil {
		return nil, err
	}
	var issues []models.Issue
	for _, sprint := range sprints {
		sprintIssues, err := r.IssuesForSprint(ctx, sprint)
		if err != nil {
			return nil, err
		}
		issues = append(issues, sprintIssues...)
	}
	return issues, nil
}

func (r *Retriever) fetchIssues(ctx context.Context, endpoint string) ([]models.Issue, error) {
	extra := url.Values{}
	extra.Set("expand", r.expand)

	records, err := r.pager.FetchAll(ctx, endpoint, "issues", extra)
	if err != nil {
		return nil, err
	}
	issues := make([]models.Issue, 0, len(records))
	for _, record := range records {
		issue, err := r.mapper.Issue(record)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

func containsRef(refs []string, candidates ...string) bool {
	for _, ref := range refs {
		for _, c := range candidates {
			if c != "" && ref == c {
				return true
			}
		}
	}
	return false
}
