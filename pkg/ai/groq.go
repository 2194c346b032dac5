// Package ai wraps the Groq chat-completions API (OpenAI-compatible wire
// format) with single-shot, JSON-mode, function-calling, and streaming calls.
package ai

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

const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

// DefaultModel is the versatile model used for every call site.
const DefaultModel = "llama-3.3-70b-versatile"

// ErrMissingAPIKey marks calls attempted without provider credentials.
// Handlers map it to a configuration error, never a provider failure.
var ErrMissingAPIKey = errors.New("groq api key not configured")

// Message is the sanitized {role, content} pair sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FunctionDef describes one callable function for structured output.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is a chat-completion request.
type Request struct {
	Model        string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
	JSONMode     bool        // response_format json_object
	Functions    []FunctionDef
	FunctionCall string // force this function by name
}

// FunctionCall is the structured-output result of a forced function call.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Completion is a single-shot result.
type Completion struct {
	Content      string
	FunctionCall *FunctionCall
}

// Client calls the Groq API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client. An empty API key is allowed at construction
// time; calls will fail with ErrMissingAPIKey so the server can answer with a
// configuration error instead of refusing to start.
func NewClient(apiKey, baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Complete performs a non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, req Request) (Completion, error) {
	if c.apiKey == "" {
		return Completion{}, ErrMissingAPIKey
	}
	resp, err := c.do(ctx, req, false)
	if err != nil {
		return Completion{}, err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Completion{}, fmt.Errorf("groq decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return Completion{}, fmt.Errorf("empty response from groq api")
	}
	choice := chatResp.Choices[0].Message
	return Completion{
		Content:      choice.Content,
		FunctionCall: choice.FunctionCall,
	}, nil
}

func (c *Client) do(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	wire := chatRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
		Functions:   req.Functions,
	}
	if req.JSONMode {
		wire.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	if req.FunctionCall != "" {
		wire.FunctionCall = &functionSelector{Name: req.FunctionCall}
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("groq request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error.Message
		if msg == "" {
			msg = resp.Status
		}
		if resp.StatusCode == http.StatusTooManyRequests && !strings.Contains(strings.ToLower(msg), "rate limit") {
			msg = "rate limit exceeded: " + msg
		}
		return nil, fmt.Errorf("groq api error: %s", msg)
	}
	return resp, nil
}

// Wire types.

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []Message         `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Stream         bool              `json:"stream,omitempty"`
	ResponseFormat *responseFormat   `json:"response_format,omitempty"`
	Functions      []FunctionDef     `json:"functions,omitempty"`
	FunctionCall   *functionSelector `json:"function_call,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type functionSelector struct {
	Name string `json:"name"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content      string        `json:"content"`
			FunctionCall *FunctionCall `json:"function_call"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
