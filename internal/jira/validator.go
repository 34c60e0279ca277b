package jira

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Validate checks the client's credentials by calling the /myself
// endpoint before any paginated fetch starts. Failing fast here beats
// discovering a 401 halfway through a multi-page sync. Tries the v3 API
// first and falls back to v2 for older Server deployments.
func (c *Client) Validate(ctx context.Context) error {
	err := c.validateAgainst(ctx, "3")
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) && te.Status == http.StatusNotFound {
		return c.validateAgainst(ctx, "2")
	}
	return err
}

func (c *Client) validateAgainst(ctx context.Context, version string) error {
	endpoint := strings.TrimSuffix(c.creds.Site, "/") + "/rest/api/" + version + "/myself"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &TransportError{URL: endpoint, Err: err}
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &TransportError{URL: endpoint, Status: resp.StatusCode, Body: string(body)}
	}

	var myself map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&myself); err != nil {
		return &TransportError{URL: endpoint, Err: err}
	}

	// Some instances hide the email behind privacy settings; only a
	// present-but-different address is suspicious.
	if email, ok := myself["emailAddress"].(string); ok && email != "" {
		if !strings.EqualFold(email, c.creds.Email) {
			return &TransportError{URL: endpoint, Status: resp.StatusCode,
				Body: "authenticated as " + email + ", expected " + c.creds.Email}
		}
	}

	return nil
}
