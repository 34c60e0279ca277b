package jira

import "fmt"

// TransportError reports a failed HTTP exchange: a network error, a
// non-2xx status, or a response body that was not valid JSON.
type TransportError struct {
	URL    string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jira: request %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("jira: request %s returned status %d: %s", e.URL, e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError reports a 2xx response whose envelope is missing
// an expected key. Partial page accumulation is discarded when this occurs.
type MalformedResponseError struct {
	URL string
	Key string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("jira: response from %s is missing expected key %q", e.URL, e.Key)
}

// ValidationError reports a raw record that failed required-field or
// format checks during mapping. The whole fetch aborts rather than
// skipping the record: a partially populated collection would corrupt
// downstream joins without any indication.
type ValidationError struct {
	Entity string
	Field  string
	RawID  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.RawID != "" {
		return fmt.Sprintf("jira: invalid %s %s: field %q %s", e.Entity, e.RawID, e.Field, e.Reason)
	}
	return fmt.Sprintf("jira: invalid %s: field %q %s", e.Entity, e.Field, e.Reason)
}
