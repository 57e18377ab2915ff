package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-code/config"
)

func testConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.SuggestConfig.Url = url
	return cfg
}

func TestSuggestNoUpstreamConfigured(t *testing.T) {
	c := NewClient(testConfig(""))
	suggestions := c.Suggest(context.Background(), Request{Code: "x"})
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Suggestions unavailable", suggestions[0].Title)
}

func TestSuggestSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 42, req.Cursor)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"suggestions": []Suggestion{
				{Title: "Extract function", Description: "...", Snippet: "func ...", Category: "refactor", Confidence: 0.9},
				{Title: "Rename", Category: "style", Confidence: 0.4},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	suggestions := c.Suggest(context.Background(), Request{Code: "x", Cursor: 42})
	require.Len(t, suggestions, 2)
	assert.Equal(t, "Extract function", suggestions[0].Title)
}

func TestSuggestClampsConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"suggestions": []Suggestion{
				{Title: "a", Confidence: 1.7},
				{Title: "b", Confidence: -0.3},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	suggestions := c.Suggest(context.Background(), Request{})
	require.Len(t, suggestions, 2)
	assert.Equal(t, 1.0, suggestions[0].Confidence)
	assert.Equal(t, 0.0, suggestions[1].Confidence)
}

func TestSuggestFailSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	suggestions := c.Suggest(context.Background(), Request{})
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Suggestions unavailable", suggestions[0].Title)
}

func TestSuggestMalformedUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	suggestions := c.Suggest(context.Background(), Request{})
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Suggestions unavailable", suggestions[0].Title)
}

func TestSuggestEmptyUpstreamList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"suggestions": []Suggestion{}})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	suggestions := c.Suggest(context.Background(), Request{})
	require.Len(t, suggestions, 1)
}
