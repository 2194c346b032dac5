// Package orchestrate classifies user messages into learning intents and
// maps each intent to the workflow that should handle it.
package orchestrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mindcoach/pkg/ai"
	"mindcoach/pkg/domain"
	"mindcoach/pkg/retry"
)

type completer interface {
	Complete(ctx context.Context, req ai.Request) (ai.Completion, error)
}

// RequestContext carries lightweight hints about the current session.
type RequestContext struct {
	HasActiveProject   bool     `json:"hasActiveProject,omitempty"`
	RecentTopics       []string `json:"recentTopics,omitempty"`
	ConversationLength int      `json:"conversationLength,omitempty"`
}

// Request is one message to classify.
type Request struct {
	Message string          `json:"message"`
	Context *RequestContext `json:"context,omitempty"`
}

// Orchestrator detects intent through a forced function call against the
// model and degrades to casual chat whenever detection cannot complete.
type Orchestrator struct {
	client completer
	policy retry.Policy
}

func New(client completer) *Orchestrator {
	return &Orchestrator{client: client, policy: retry.DefaultPolicy}
}

// Classify determines the intent behind a message. Transport and parse
// failures never surface as errors; they degrade to a casual-chat fallback so
// the conversation keeps flowing. Only a missing API key is returned, since
// that is an operator problem rather than a model hiccup.
func (o *Orchestrator) Classify(ctx context.Context, req Request) (domain.OrchestrationResult, error) {
	completion, err := retry.Do(ctx, o.policy, func(ctx context.Context) (ai.Completion, error) {
		return o.client.Complete(ctx, ai.Request{
			Model: ai.DefaultModel,
			Messages: []ai.Message{
				{Role: "system", Content: buildDetectionPrompt(req.Context)},
				{Role: "user", Content: req.Message},
			},
			Functions:    []ai.FunctionDef{detectIntentFunction},
			FunctionCall: "detect_intent",
			Temperature:  0.3,
		})
	})
	if err != nil {
		if errors.Is(err, ai.ErrMissingAPIKey) {
			return domain.OrchestrationResult{}, err
		}
		slog.Error("intent detection failed", "error", err)
		return domain.OrchestrationResult{
			Intent:          domain.IntentCasualChat,
			Confidence:      0.3,
			SuggestedAction: domain.SuggestedAction{Type: domain.ActionRespond},
			Reasoning:       "Intent detection temporarily unavailable, defaulting to chat mode",
			Fallback:        true,
		}, nil
	}

	if completion.FunctionCall == nil || completion.FunctionCall.Arguments == "" {
		return parseFallback(), nil
	}
	var detected struct {
		Intent                string  `json:"intent"`
		Confidence            float64 `json:"confidence"`
		Reasoning             string  `json:"reasoning"`
		ExtractedTopic        string  `json:"extractedTopic"`
		SuggestedProjectTitle string  `json:"suggestedProjectTitle"`
	}
	if err := json.Unmarshal([]byte(completion.FunctionCall.Arguments), &detected); err != nil {
		slog.Warn("intent arguments unparseable", "error", err)
		return parseFallback(), nil
	}

	intent := domain.Intent(detected.Intent)
	if detected.Confidence < 0.4 {
		slog.Info("low intent confidence, defaulting to casual chat", "confidence", detected.Confidence)
		intent = domain.IntentCasualChat
	}

	return domain.OrchestrationResult{
		Intent:          intent,
		Confidence:      detected.Confidence,
		SuggestedAction: actionFor(intent, req.Message, detected.ExtractedTopic, detected.SuggestedProjectTitle),
		Reasoning:       detected.Reasoning,
	}, nil
}

func parseFallback() domain.OrchestrationResult {
	return domain.OrchestrationResult{
		Intent:          domain.IntentCasualChat,
		Confidence:      0.5,
		SuggestedAction: domain.SuggestedAction{Type: domain.ActionRespond},
		Reasoning:       "Could not determine intent, defaulting to casual chat",
	}
}

// actionFor maps an intent to its downstream workflow. Roadmap requests
// create a project directly, same as project creation.
func actionFor(intent domain.Intent, message, topic, projectTitle string) domain.SuggestedAction {
	switch intent {
	case domain.IntentProjectCreation:
		title := projectTitle
		if title == "" {
			title = topic
		}
		return domain.SuggestedAction{Type: domain.ActionCreateProject, Parameters: map[string]any{
			"title":          title,
			"topic":          topic,
			"extractedTopic": topic,
		}}
	case domain.IntentRoadmapRequest:
		return domain.SuggestedAction{Type: domain.ActionCreateProject, Parameters: map[string]any{
			"topic":          topic,
			"extractedTopic": topic,
		}}
	case domain.IntentResourceSearch:
		return domain.SuggestedAction{Type: domain.ActionGatherResources, Parameters: map[string]any{
			"topic":       topic,
			"searchQuery": message,
		}}
	case domain.IntentDeepLearning:
		return domain.SuggestedAction{Type: domain.ActionDeepDive, Parameters: map[string]any{
			"topic":        topic,
			"useReasoning": true,
		}}
	case domain.IntentExplanation:
		return domain.SuggestedAction{Type: domain.ActionRespond, Parameters: map[string]any{
			"useVisuals": false,
			"simplify":   true,
		}}
	case domain.IntentVisualExplanation:
		return visualAction(topic, message, "diagram")
	case domain.IntentComparison:
		return visualAction(topic, message, "comparison")
	case domain.IntentImageGeneration:
		return visualAction(topic, message, "ai-image")
	default:
		return domain.SuggestedAction{Type: domain.ActionRespond}
	}
}

func visualAction(topic, message, visualType string) domain.SuggestedAction {
	return domain.SuggestedAction{Type: domain.ActionGenerateVisual, Parameters: map[string]any{
		"topic":      topic,
		"visualType": visualType,
		"query":      message,
	}}
}

var detectIntentFunction = ai.FunctionDef{
	Name:        "detect_intent",
	Description: "Detect the user's learning intent and suggest appropriate action",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"intent": map[string]any{
				"type": "string",
				"enum": []string{
					"casual_chat", "project_creation", "roadmap_request", "resource_search",
					"deep_learning", "explanation", "visual_explanation", "comparison", "image_generation",
				},
				"description": "The detected intent category",
			},
			"confidence": map[string]any{
				"type":        "number",
				"description": "Confidence score between 0 and 1",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "Brief explanation of why this intent was chosen",
			},
			"extractedTopic": map[string]any{
				"type":        "string",
				"description": "The main topic/skill the user wants to learn (if applicable)",
			},
			"suggestedProjectTitle": map[string]any{
				"type":        "string",
				"description": "Suggested project title if intent is project_creation",
			},
		},
		"required": []string{"intent", "confidence", "reasoning"},
	},
}

func buildDetectionPrompt(rc *RequestContext) string {
	hasProject := false
	conversationLength := 0
	recentTopics := "none"
	if rc != nil {
		hasProject = rc.HasActiveProject
		conversationLength = rc.ConversationLength
		if len(rc.RecentTopics) > 0 {
			recentTopics = strings.Join(rc.RecentTopics, ", ")
		}
	}
	return fmt.Sprintf(`You are MindCoach's intent detection system. Analyze user messages and determine their learning intent.

Context awareness:
- hasActiveProject: %t
- conversationLength: %d
- recentTopics: %s

Intent Categories:
1. **casual_chat**: General questions, quick facts, simple explanations
2. **project_creation**: User wants structured learning path (keywords: "learn", "master", "become", "career", "project", "roadmap", "guide me", "teach me", "start learning")
3. **roadmap_request**: User explicitly asks for roadmap/learning plan (same as project_creation)
4. **resource_search**: User needs courses, tutorials, articles (keywords: "recommend", "resources", "courses", "tutorials")
5. **deep_learning**: User wants comprehensive understanding (keywords: "explain deeply", "understand", "how does", "why")
6. **explanation**: User wants concept explained simply (keywords: "what is", "explain", "ELI5")
7. **visual_explanation**: User wants diagrams, flowcharts, mind maps (keywords: "show diagram", "flowchart", "visualize", "visual structure", "architecture diagram", "how it works visually", "show me a diagram", "draw a diagram", "create a flowchart", "show me how", "diagram of")
8. **comparison**: User wants to compare concepts with charts (keywords: "difference between", "compare", "vs", "versus", "A or B", "which is better", "what's the difference", "how do they differ", "X versus Y", "X or Y")
9. **image_generation**: User wants AI-generated images/illustrations (keywords: "generate image", "create picture", "draw", "illustrate concept", "show me a visual", "make an image", "design an illustration")

**IMPORTANT**:
- Treat project_creation and roadmap_request as the SAME intent - both should create a learning project immediately.
- Be SMART about visual detection - if user asks "how does X work", consider visual_explanation
- For "difference between X and Y", always choose comparison over casual_chat

Examples of project_creation intent:
- "I want to learn Python"
- "Help me become a web developer"
- "Create a roadmap for machine learning"
- "I want to master React"
- "Guide me through learning data science"
- "Teach me how to code"

Return your analysis as a structured decision.`, hasProject, conversationLength, recentTopics)
}
