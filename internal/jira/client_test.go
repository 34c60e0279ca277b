package jira

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(site string) *Client {
	return NewClient(Credentials{Site: site, Email: "svc@example.com", Token: "secret"}, 0, nil)
}

func TestGetSendsBasicAuthAndAccept(t *testing.T) {
	var gotAuth, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total": 0}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.Get(context.Background(), server.URL+"/rest/agile/1.0/board", nil)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(gotAuth, "Basic "))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(gotAuth, "Basic "))
	require.NoError(t, err)
	assert.Equal(t, "svc@example.com:secret", string(decoded))
	assert.Equal(t, "application/json", gotAccept)
}

func TestGetMergesParamsIntoExistingQuery(t *testing.T) {
	var got url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	params := url.Values{}
	params.Set("maxResults", "50")
	params.Set("expand", "changelog")

	client := testClient(server.URL)
	_, err := client.Get(context.Background(), server.URL+"/rest/api/2/search?jql=project%3DDT", params)
	require.NoError(t, err)

	assert.Equal(t, "project=DT", got.Get("jql"))
	assert.Equal(t, "50", got.Get("maxResults"))
	assert.Equal(t, "changelog", got.Get("expand"))
}

func TestGetNon2xxIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.Get(context.Background(), server.URL+"/rest/agile/1.0/board", nil)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusTooManyRequests, te.Status)
	assert.Contains(t, te.Body, "rate limited")
}

func TestGetMalformedJSONIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.Get(context.Background(), server.URL+"/rest/agile/1.0/board", nil)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Error(t, te.Err)
}

func TestValidateChecksMyself(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/myself", r.URL.Path)
		_, _ = w.Write([]byte(`{"emailAddress": "svc@example.com"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	require.NoError(t, client.Validate(context.Background()))
}

func TestValidateRejectsWrongAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"emailAddress": "someone-else@example.com"}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	require.Error(t, client.Validate(context.Background()))
}

func TestValidateFallsBackToV2(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.Contains(r.URL.Path, "/api/3/") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	require.NoError(t, client.Validate(context.Background()))
	assert.Equal(t, []string{"/rest/api/3/myself", "/rest/api/2/myself"}, paths)
}
