package jira

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/providentiaww/jira-connector/internal/models"
)

// Flavor selects the JSON field layout a Jira deployment uses for the
// same logical data. Classic deployments put the assignee under
// fields.assignee; deployments queried with versionedRepresentations put
// it under versionedRepresentations.assignee.<version>. The flavor is
// chosen by configuration, never sniffed from the payload: both shapes
// can coincidentally validate, and probing would silently pick stale data.
type Flavor string

const (
	FlavorClassic   Flavor = "classic"
	FlavorVersioned Flavor = "versioned"
)

// DefaultEstimateField is the custom field Jira Cloud instances in this
// deployment use for story-point estimates.
const DefaultEstimateField = "customfield_11715"

// jiraTime is the timestamp layout Jira uses in REST responses.
const jiraTime = "2006-01-02T15:04:05.000-0700"

// Mapper converts raw JSON records into validated domain entities. It is
// stateless and pure: all knowledge of the source API's field names and
// shapes lives here, so the pager and retriever never touch raw JSON
// structure. Required fields that are missing fail the record with a
// *ValidationError; optional fields default to empty.
type Mapper struct {
	flavor        Flavor
	estimateField string
}

// NewMapper creates a mapper for the given response flavor. An empty
// estimateField falls back to DefaultEstimateField.
func NewMapper(flavor Flavor, estimateField string) *Mapper {
	if flavor == "" {
		flavor = FlavorClassic
	}
	if estimateField == "" {
		estimateField = DefaultEstimateField
	}
	return &Mapper{flavor: flavor, estimateField: estimateField}
}

// Project maps one raw project record.
func (m *Mapper) Project(raw map[string]any) (models.Project, error) {
	id, ok := positiveInt(raw["id"])
	if !ok {
		return models.Project{}, &ValidationError{Entity: "project", Field: "id", Reason: "must be a positive integer"}
	}
	key, ok := nonEmptyString(raw["key"])
	if !ok {
		return models.Project{}, &ValidationError{Entity: "project", Field: "key", RawID: strconv.Itoa(id), Reason: "is required"}
	}
	name, ok := nonEmptyString(raw["name"])
	if !ok {
		return models.Project{}, &ValidationError{Entity: "project", Field: "name", RawID: key, Reason: "is required"}
	}
	return models.Project{ID: id, Key: key, Name: name}, nil
}

// Board maps one raw board record. The project key lives under the
// board's location and is simply empty when Jira omits it.
func (m *Mapper) Board(raw map[string]any) (models.Board, error) {
	id, ok := positiveInt(raw["id"])
	if !ok {
		return models.Board{}, &ValidationError{Entity: "board", Field: "id", Reason: "must be a positive integer"}
	}
	name, ok := nonEmptyString(raw["name"])
	if !ok {
		return models.Board{}, &ValidationError{Entity: "board", Field: "name", RawID: strconv.Itoa(id), Reason: "is required"}
	}

	projectKey := ""
	if location, ok := raw["location"].(map[string]any); ok {
		projectKey, _ = location["projectKey"].(string)
	}

	return models.Board{ID: id, Name: name, ProjectKey: projectKey}, nil
}

// Sprint maps one raw sprint record.
func (m *Mapper) Sprint(raw map[string]any) (models.Sprint, error) {
	id, ok := positiveInt(raw["id"])
	if !ok {
		return models.Sprint{}, &ValidationError{Entity: "sprint", Field: "id", Reason: "must be a positive integer"}
	}
	rawID := strconv.Itoa(id)

	boardID, ok := positiveInt(raw["originBoardId"])
	if !ok {
		return models.Sprint{}, &ValidationError{Entity: "sprint", Field: "originBoardId", RawID: rawID, Reason: "must be a positive integer"}
	}
	name, ok := nonEmptyString(raw["name"])
	if !ok {
		return models.Sprint{}, &ValidationError{Entity: "sprint", Field: "name", RawID: rawID, Reason: "is required"}
	}
	state, ok := nonEmptyString(raw["state"])
	if !ok {
		return models.Sprint{}, &ValidationError{Entity: "sprint", Field: "state", RawID: rawID, Reason: "is required"}
	}

	start, err := optionalTime(raw["startDate"], "sprint", "startDate", rawID)
	if err != nil {
		return models.Sprint{}, err
	}
	end, err := optionalTime(raw["endDate"], "sprint", "endDate", rawID)
	if err != nil {
		return models.Sprint{}, err
	}
	complete, err := optionalTime(raw["completeDate"], "sprint", "completeDate", rawID)
	if err != nil {
		return models.Sprint{}, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return models.Sprint{}, &ValidationError{Entity: "sprint", Field: "endDate", RawID: rawID, Reason: "precedes startDate"}
	}

	goal, _ := raw["goal"].(string)

	return models.Sprint{
		BoardID:      boardID,
		ID:           id,
		Name:         name,
		State:        state,
		StartDate:    start,
		EndDate:      end,
		CompleteDate: complete,
		Goal:         goal,
	}, nil
}

// Issue maps one raw issue record, including its changelog when present.
func (m *Mapper) Issue(raw map[string]any) (models.Issue, error) {
	id, ok := positiveInt(raw["id"])
	if !ok {
		return models.Issue{}, &ValidationError{Entity: "issue", Field: "id", Reason: "must be a positive integer"}
	}
	key, ok := nonEmptyString(raw["key"])
	if !ok {
		return models.Issue{}, &ValidationError{Entity: "issue", Field: "key", RawID: strconv.Itoa(id), Reason: "is required"}
	}
	if !models.ValidIssueKey(key) {
		return models.Issue{}, &ValidationError{Entity: "issue", Field: "key", RawID: key, Reason: "does not match the PROJECT-123 format"}
	}

	fields, ok := raw["fields"].(map[string]any)
	if !ok {
		return models.Issue{}, &ValidationError{Entity: "issue", Field: "fields", RawID: key, Reason: "is required"}
	}

	issueType, ok := nestedName(fields["issuetype"])
	if !ok {
		return models.Issue{}, &ValidationError{Entity: "issue", Field: "issuetype", RawID: key, Reason: "is required"}
	}
	status, ok := nestedName(fields["status"])
	if !ok {
		return models.Issue{}, &ValidationError{Entity: "issue", Field: "status", RawID: key, Reason: "is required"}
	}

	created, err := requiredTime(fields["created"], "issue", "created", key)
	if err != nil {
		return models.Issue{}, err
	}
	updated, err := requiredTime(fields["updated"], "issue", "updated", key)
	if err != nil {
		return models.Issue{}, err
	}
	if updated.Before(created) {
		return models.Issue{}, &ValidationError{Entity: "issue", Field: "updated", RawID: key, Reason: "precedes created"}
	}

	summary, _ := fields["summary"].(string)
	description, _ := fields["description"].(string)

	projectKey := ""
	if project, ok := fields["project"].(map[string]any); ok {
		projectKey, _ = project["key"].(string)
	}

	histories, err := m.histories(raw, key)
	if err != nil {
		return models.Issue{}, err
	}

	return models.Issue{
		ID:          id,
		Key:         key,
		Assignee:    m.assignee(raw, fields),
		IssueType:   issueType,
		Description: description,
		Summary:     summary,
		Estimate:    stringify(fields[m.estimateField]),
		Created:     created,
		Updated:     updated,
		Status:      status,
		Project:     projectKey,
		Sprints:     sprintRefs(fields),
		Histories:   histories,
	}, nil
}

// assignee extracts the assignee display name for the configured flavor.
// An unassigned issue yields an empty string in either flavor.
func (m *Mapper) assignee(raw, fields map[string]any) string {
	switch m.flavor {
	case FlavorVersioned:
		versioned, ok := raw["versionedRepresentations"].(map[string]any)
		if !ok {
			return ""
		}
		versions, ok := versioned["assignee"].(map[string]any)
		if !ok {
			return ""
		}
		// Versions are keyed by number; the highest one is current.
		keys := make([]int, 0, len(versions))
		for k := range versions {
			if n, err := strconv.Atoi(k); err == nil {
				keys = append(keys, n)
			}
		}
		if len(keys) == 0 {
			return ""
		}
		sort.Ints(keys)
		current, ok := versions[strconv.Itoa(keys[len(keys)-1])].(map[string]any)
		if !ok {
			return ""
		}
		name, _ := current["displayName"].(string)
		return name
	default:
		assignee, ok := fields["assignee"].(map[string]any)
		if !ok {
			return ""
		}
		name, _ := assignee["displayName"].(string)
		return name
	}
}

// histories flattens the issue changelog: one History per changed field
// per changelog entry, preserving source order. An absent changelog is an
// empty sequence, not an error.
func (m *Mapper) histories(raw map[string]any, issueKey string) ([]models.History, error) {
	changelog, ok := raw["changelog"].(map[string]any)
	if !ok {
		return nil, nil
	}
	entries, ok := changelog["histories"].([]any)
	if !ok {
		return nil, nil
	}

	var result []models.History
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			return nil, &ValidationError{Entity: "history", Field: "histories", RawID: issueKey, Reason: "contains a non-object entry"}
		}

		author := ""
		if a, ok := entry["author"].(map[string]any); ok {
			author, _ = a["displayName"].(string)
		}
		if author == "" {
			return nil, &ValidationError{Entity: "history", Field: "author", RawID: issueKey, Reason: "is required"}
		}

		created, err := requiredTime(entry["created"], "history", "created", issueKey)
		if err != nil {
			return nil, err
		}

		items, _ := entry["items"].([]any)
		for _, i := range items {
			item, ok := i.(map[string]any)
			if !ok {
				continue
			}
			field, ok := nonEmptyString(item["field"])
			if !ok {
				return nil, &ValidationError{Entity: "history", Field: "field", RawID: issueKey, Reason: "is required"}
			}
			from, _ := item["fromString"].(string)
			to, _ := item["toString"].(string)
			result = append(result, models.History{
				Author:  author,
				Created: created,
				Field:   field,
				Old:     from,
				New:     to,
			})
		}
	}
	return result, nil
}

// sprintRefs normalizes the issue's sprint membership to an ordered list
// of identifiers. The field may be entirely absent (never sprinted), a
// single object, or a collection; all three collapse to the same shape.
func sprintRefs(fields map[string]any) []string {
	if single, ok := fields["sprint"]; ok {
		if ref := sprintRef(single); ref != "" {
			return []string{ref}
		}
	}
	many, ok := fields["sprints"].([]any)
	if !ok {
		return nil
	}
	var refs []string
	for _, s := range many {
		if ref := sprintRef(s); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

// sprintRef extracts one sprint identifier: the id of a sprint object,
// or the value itself when the API hands back a bare name or number.
func sprintRef(v any) string {
	switch s := v.(type) {
	case map[string]any:
		if id, ok := positiveInt(s["id"]); ok {
			return strconv.Itoa(id)
		}
		name, _ := s["name"].(string)
		return name
	case string:
		return s
	case float64:
		return strconv.Itoa(int(s))
	default:
		return ""
	}
}

// positiveInt coerces a JSON value to a positive integer. Jira serializes
// ids inconsistently: numbers on agile endpoints, strings on search.
func positiveInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n > 0 && n == float64(int(n)) {
			return int(n), true
		}
	case string:
		if parsed, err := strconv.Atoi(n); err == nil && parsed > 0 {
			return parsed, true
		}
	case int:
		if n > 0 {
			return n, true
		}
	}
	return 0, false
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// nestedName pulls the "name" out of wrapper objects like status and
// issuetype.
func nestedName(v any) (string, bool) {
	wrapper, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	return nonEmptyString(wrapper["name"])
}

// stringify renders an optional free-form field (the estimate custom
// field holds numbers on some instances, strings on others).
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(jiraTime, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func requiredTime(v any, entity, field, rawID string) (time.Time, error) {
	s, ok := nonEmptyString(v)
	if !ok {
		return time.Time{}, &ValidationError{Entity: entity, Field: field, RawID: rawID, Reason: "is required"}
	}
	t, err := parseTime(s)
	if err != nil {
		return time.Time{}, &ValidationError{Entity: entity, Field: field, RawID: rawID, Reason: "is not a valid timestamp"}
	}
	return t, nil
}

func optionalTime(v any, entity, field, rawID string) (*time.Time, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, &ValidationError{Entity: entity, Field: field, RawID: rawID, Reason: "is not a valid timestamp"}
	}
	return &t, nil
}
