package execute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/globals"
)

const (
	MethodJDoodle = "jdoodle"
	MethodJudge0  = "judge0"
)

// version indexes of the languages supported by the JDoodle backend
var jdoodleLanguages = map[string]string{
	"python3": "3",
	"java":    "3",
	"cpp14":   "4", // C++14
	"cpp17":   "5", // C++17
	"c":       "4",
}

// language ids of the Judge0 backend
var judge0Languages = map[string]int{
	"python3": 71,
	"java":    62,
	"cpp":     54, // C++17
	"cpp14":   52,
	"cpp17":   54,
	"c":       50,
}

// Request is one code execution request as received from a participant.
type Request struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Method   string `json:"method"`
}

// Result is the normalized execution outcome.
type Result struct {
	Output string `json:"output"`
	Status string `json:"status,omitempty"`
}

// BadRequestError marks requests that cannot be forwarded upstream (unknown language or
// method) as distinct from upstream failures.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string {
	return e.Reason
}

// Client calls the outbound code execution service. One blocking call per request with a
// configured timeout, no retries. The client is safe for concurrent use and is always
// invoked outside the room-state critical section.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.CompileTimeout()},
	}
}

// Run executes the request on the selected backend.
func (c *Client) Run(ctx context.Context, req Request) (*Result, error) {
	switch req.Method {
	case MethodJDoodle:
		return c.runJDoodle(ctx, req)
	case MethodJudge0:
		return c.runJudge0(ctx, req)
	default:
		return nil, &BadRequestError{Reason: "invalid compilation method"}
	}
}

func (c *Client) postJSON(ctx context.Context, url string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) runJDoodle(ctx context.Context, req Request) (*Result, error) {
	versionIndex, ok := jdoodleLanguages[req.Language]
	if !ok {
		return nil, &BadRequestError{Reason: "invalid language for JDoodle"}
	}
	body := map[string]interface{}{
		"script":       req.Code,
		"language":     req.Language,
		"versionIndex": versionIndex,
		"clientId":     c.cfg.CompileConfig.JDoodleClientId,
		"clientSecret": c.cfg.CompileConfig.JDoodleClientSecret,
	}
	var upstream struct {
		Output     string `json:"output"`
		StatusCode int    `json:"statusCode"`
		Error      string `json:"error"`
	}
	if err := c.postJSON(ctx, c.cfg.JDoodleUrl(), body, &upstream); err != nil {
		globals.AppLogger.Error("jdoodle call failed", "error", err)
		return nil, err
	}
	if upstream.Error != "" {
		return nil, fmt.Errorf("jdoodle: %s", upstream.Error)
	}
	return &Result{Output: upstream.Output}, nil
}

func (c *Client) runJudge0(ctx context.Context, req Request) (*Result, error) {
	languageId, ok := judge0Languages[req.Language]
	if !ok {
		return nil, &BadRequestError{Reason: "invalid language for Judge0"}
	}
	body := map[string]interface{}{
		"source_code": req.Code,
		"language_id": languageId,
		"stdin":       "",
	}
	var upstream struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
		Status struct {
			Description string `json:"description"`
		} `json:"status"`
	}
	if err := c.postJSON(ctx, c.cfg.Judge0Url(), body, &upstream); err != nil {
		globals.AppLogger.Error("judge0 call failed", "error", err)
		return nil, err
	}
	output := upstream.Stdout
	if output == "" {
		output = upstream.Stderr
	}
	return &Result{Output: output, Status: upstream.Status.Description}, nil
}
