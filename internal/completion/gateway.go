// Package completion is the chat gateway: it picks a coaching agent persona,
// decides whether the question deserves a reasoning-grade response, and
// proxies the conversation to the model with streaming support.
package completion

import (
	"context"
	"io"
	"strings"

	"mindcoach/pkg/ai"
	"mindcoach/pkg/domain"
	"mindcoach/pkg/retry"
)

// Agent identifies which coaching persona answers the conversation.
type Agent string

const (
	AgentGeneral      Agent = "general"
	AgentConsultation Agent = "consultation"
	AgentProject      Agent = "project"
	AgentDiscovery    Agent = "discovery"
)

// ChatContext carries the project hints that select the project agent.
type ChatContext struct {
	ProjectID   string   `json:"projectId,omitempty"`
	ChatID      string   `json:"chatId,omitempty"`
	MilestoneID string   `json:"milestoneId,omitempty"`
	WeakAreas   []string `json:"weakAreas,omitempty"`
}

// ChatRequest is one conversation turn. Stream defaults to true when unset.
type ChatRequest struct {
	Messages     []domain.Message `json:"messages"`
	ChatID       string           `json:"chatId,omitempty"`
	UseReasoning bool             `json:"useReasoning,omitempty"`
	Stream       *bool            `json:"stream,omitempty"`
	Context      *ChatContext     `json:"context,omitempty"`

	// ContextPrompt is the retrieval-augmented system prompt rendered by the
	// context builder. It precedes the agent persona prompt when present.
	ContextPrompt string `json:"-"`
}

// WantsStream reports the effective streaming flag.
func (r ChatRequest) WantsStream() bool {
	return r.Stream == nil || *r.Stream
}

// Result is a non-streaming chat response.
type Result struct {
	Response  string `json:"response"`
	Model     string `json:"model"`
	Reasoning bool   `json:"reasoning"`
	Agent     Agent  `json:"agent"`
}

type client interface {
	Complete(ctx context.Context, req ai.Request) (ai.Completion, error)
	Stream(ctx context.Context, req ai.Request) (ai.StreamReader, error)
}

// Gateway routes conversations to the model with persona selection and a
// bounded retry on provider failures.
type Gateway struct {
	client client
	policy retry.Policy
}

func NewGateway(c client) *Gateway {
	return &Gateway{client: c, policy: retry.DefaultPolicy}
}

var reasoningKeywords = []string{
	"why", "how does", "explain", "prove", "what is the reason",
	"step by step", "walk me through", "understand", "deep dive",
	"technical explanation", "compare", "difference between",
}

// NeedsReasoning reports whether the message reads like a deep question that
// deserves a thorough, step-by-step answer.
func NeedsReasoning(userMessage string) bool {
	lower := strings.ToLower(userMessage)
	for _, kw := range reasoningKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var consultationKeywords = []string{
	"create project", "new project", "learn", "roadmap", "plan",
	"want to learn", "help me learn", "study plan", "learning path",
}

var discoveryKeywords = []string{
	"trend", "latest", "news", "what's new", "industry",
	"popular", "best practices", "tools", "discover",
}

// DetectAgent selects the persona: project context wins outright, then the
// last three messages are scanned for consultation and discovery cues.
func DetectAgent(chatCtx *ChatContext, messages []domain.Message) Agent {
	if chatCtx != nil && chatCtx.ProjectID != "" {
		return AgentProject
	}
	start := len(messages) - 3
	if start < 0 {
		start = 0
	}
	var recent strings.Builder
	for i, m := range messages[start:] {
		if i > 0 {
			recent.WriteString(" ")
		}
		recent.WriteString(strings.ToLower(m.Content))
	}
	recentText := recent.String()
	for _, kw := range consultationKeywords {
		if strings.Contains(recentText, kw) {
			return AgentConsultation
		}
	}
	for _, kw := range discoveryKeywords {
		if strings.Contains(recentText, kw) {
			return AgentDiscovery
		}
	}
	return AgentGeneral
}

// Complete answers a conversation turn without streaming.
func (g *Gateway) Complete(ctx context.Context, req ChatRequest) (Result, error) {
	modelReq, reasoning, agent := g.buildModelRequest(req, false)
	completion, err := retry.Do(ctx, g.policy, func(ctx context.Context) (ai.Completion, error) {
		return g.client.Complete(ctx, modelReq)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Response:  completion.Content,
		Model:     modelReq.Model,
		Reasoning: reasoning,
		Agent:     agent,
	}, nil
}

// Stream answers a conversation turn as incremental chunks. onChunk is called
// once per content delta; after it returns an error the stream is abandoned.
// The retry budget covers establishing the stream, not mid-stream failures.
func (g *Gateway) Stream(ctx context.Context, req ChatRequest, onChunk func(string) error) (Agent, error) {
	modelReq, _, agent := g.buildModelRequest(req, true)
	stream, err := retry.Do(ctx, g.policy, func(ctx context.Context) (ai.StreamReader, error) {
		return g.client.Stream(ctx, modelReq)
	})
	if err != nil {
		return agent, err
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return agent, nil
		}
		if err != nil {
			return agent, err
		}
		if err := onChunk(chunk); err != nil {
			return agent, err
		}
	}
}

func (g *Gateway) buildModelRequest(req ChatRequest, stream bool) (ai.Request, bool, Agent) {
	agent := DetectAgent(req.Context, req.Messages)

	reasoning := req.UseReasoning
	if !reasoning {
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == domain.RoleUser {
				reasoning = NeedsReasoning(req.Messages[i].Content)
				break
			}
		}
	}

	messages := make([]ai.Message, 0, len(req.Messages)+2)
	if req.ContextPrompt != "" {
		messages = append(messages, ai.Message{Role: "system", Content: req.ContextPrompt})
	}
	messages = append(messages, ai.Message{Role: "system", Content: agentPrompt(agent, reasoning)})
	// Strip frontend-only fields, the provider sees only role and content.
	for _, m := range req.Messages {
		messages = append(messages, ai.Message{Role: string(m.Role), Content: m.Content})
	}

	// Reasoning turns trade temperature for a larger token budget.
	temperature, maxTokens := 0.7, 2048
	if reasoning {
		temperature, maxTokens = 0.5, 4096
	}
	return ai.Request{
		Model:       ai.DefaultModel,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, reasoning, agent
}
