package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/globals"
)

// Request is one suggestion request as received from a participant.
type Request struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Cursor   int    `json:"cursorPosition"`
	Context  string `json:"context"`
}

// Suggestion is one AI-generated proposal. Confidence is clamped to [0,1].
type Suggestion struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Snippet     string  `json:"snippet"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
}

// Client calls the outbound AI suggestion service. Failures never propagate to the room: on
// any upstream error or malformed response the caller receives a single placeholder
// suggestion instead, so the UI always has something renderable.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.SuggestTimeout()},
	}
}

func placeholder() []Suggestion {
	return []Suggestion{{
		Title:       "Suggestions unavailable",
		Description: "The suggestion service could not be reached, please try again.",
		Snippet:     "",
		Category:    "info",
		Confidence:  0,
	}}
}

// Suggest returns an ordered list of suggestions for the given cursor position, falling
// back to the placeholder on any failure (fail-soft).
func (c *Client) Suggest(ctx context.Context, req Request) []Suggestion {
	if c.cfg.SuggestConfig.Url == "" {
		return placeholder()
	}
	suggestions, err := c.call(ctx, req)
	if err != nil {
		globals.AppLogger.Warn("suggestion call failed, substituting placeholder", "error", err)
		return placeholder()
	}
	if len(suggestions) == 0 {
		return placeholder()
	}
	for i := range suggestions {
		if suggestions[i].Confidence < 0 {
			suggestions[i].Confidence = 0
		}
		if suggestions[i].Confidence > 1 {
			suggestions[i].Confidence = 1
		}
	}
	return suggestions
}

func (c *Client) call(ctx context.Context, req Request) ([]Suggestion, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SuggestConfig.Url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	var upstream struct {
		Suggestions []Suggestion `json:"suggestions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&upstream); err != nil {
		return nil, err
	}
	return upstream.Suggestions, nil
}
