package jira

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

// DefaultPageSize is the page size used when none is configured. Jira
// caps agile endpoints at 100 results per page.
const DefaultPageSize = 100

// Getter is the transport capability the pager consumes: one
// authenticated GET returning a decoded JSON envelope.
type Getter interface {
	Get(ctx context.Context, endpoint string, params url.Values) (map[string]any, error)
}

// Pager turns one logical paginated query into one concatenated sequence
// of raw records, hiding page-boundary mechanics from callers. It first
// probes the endpoint with maxResults=0 to learn the total, then walks
// pages of fixed size until the total is covered. Transport failures and
// missing envelope keys abort the whole fetch; nothing partial is returned.
type Pager struct {
	client   Getter
	pageSize int
	log      *zap.Logger
}

// NewPager creates a pager over the given transport. A non-positive
// pageSize falls back to DefaultPageSize.
func NewPager(client Getter, pageSize int, log *zap.Logger) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pager{client: client, pageSize: pageSize, log: log}
}

// total probes the endpoint for the total result count. An envelope
// without a total field is treated as a single-page endpoint.
func (p *Pager) total(ctx context.Context, endpoint string) (int, error) {
	params := url.Values{}
	params.Set("maxResults", "0")

	envelope, err := p.client.Get(ctx, endpoint, params)
	if err != nil {
		return 0, err
	}

	total, ok := envelope["total"].(float64)
	if !ok {
		return 1, nil
	}
	return int(total), nil
}

// FetchAll returns the concatenated array found under resultsKey across
// every page of the endpoint, preserving page order and within-page
// order. extra is merged into every page request (e.g. expand=changelog).
// The endpoint must not itself carry startAt or maxResults.
func (p *Pager) FetchAll(ctx context.Context, endpoint, resultsKey string, extra url.Values) ([]map[string]any, error) {
	total, err := p.total(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	for start := 0; start < total; start += p.pageSize {
		params := url.Values{}
		for key, vals := range extra {
			params[key] = vals
		}
		params.Set("maxResults", strconv.Itoa(p.pageSize))
		params.Set("startAt", strconv.Itoa(start))

		envelope, err := p.client.Get(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}

		raw, ok := envelope[resultsKey]
		if !ok {
			return nil, &MalformedResponseError{URL: endpoint, Key: resultsKey}
		}
		page, ok := raw.([]any)
		if !ok {
			return nil, &MalformedResponseError{URL: endpoint, Key: resultsKey}
		}

		for _, item := range page {
			record, ok := item.(map[string]any)
			if !ok {
				return nil, &MalformedResponseError{URL: endpoint, Key: resultsKey}
			}
			records = append(records, record)
		}

		p.log.Debug("fetched page",
			zap.String("endpoint", endpoint),
			zap.Int("startAt", start),
			zap.Int("accumulated", len(records)))
	}

	return records, nil
}
