// Package search wraps the Exa neural web-search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultExaBaseURL = "https://api.exa.ai"

// ErrMissingAPIKey marks searches attempted without credentials configured.
var ErrMissingAPIKey = errors.New("exa api key not configured")

// Result is one web search hit. Text is populated when contents are requested.
type Result struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text,omitempty"`
}

// Client calls the Exa search API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultExaBaseURL
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Search runs an auto-type query returning up to numResults hits without page
// contents.
func (c *Client) Search(ctx context.Context, query string, numResults int) ([]Result, error) {
	return c.search(ctx, query, numResults, false)
}

// SearchAndContents runs an auto-type query and includes extracted page text
// in each result.
func (c *Client) SearchAndContents(ctx context.Context, query string, numResults int) ([]Result, error) {
	return c.search(ctx, query, numResults, true)
}

type searchRequest struct {
	Query      string           `json:"query"`
	NumResults int              `json:"numResults"`
	Type       string           `json:"type"`
	Contents   *contentsRequest `json:"contents,omitempty"`
}

type contentsRequest struct {
	Text bool `json:"text"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

type exaErrorResponse struct {
	Error string `json:"error"`
}

func (c *Client) search(ctx context.Context, query string, numResults int, contents bool) ([]Result, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if numResults <= 0 {
		numResults = 5
	}
	wire := searchRequest{Query: query, NumResults: numResults, Type: "auto"}
	if contents {
		wire.Contents = &contentsRequest{Text: true}
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exa request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp exaErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("exa api error: %s", msg)
	}
	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("exa decode: %w", err)
	}
	return searchResp.Results, nil
}
