// Package roadmap turns a learning topic into a structured milestone plan,
// enriches each milestone with searched resources, and curates standalone
// resource collections.
package roadmap

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"mindcoach/pkg/ai"
	"mindcoach/pkg/domain"
	"mindcoach/pkg/retry"
	"mindcoach/pkg/search"
)

type completer interface {
	Complete(ctx context.Context, req ai.Request) (ai.Completion, error)
}

type searcher interface {
	SearchAndContents(ctx context.Context, query string, numResults int) ([]search.Result, error)
}

// Request describes the roadmap to generate.
type Request struct {
	Topic     string   `json:"topic"`
	UserLevel string   `json:"userLevel,omitempty"`
	Timeframe string   `json:"timeframe,omitempty"`
	Goals     []string `json:"goals,omitempty"`
}

// Generator produces milestone roadmaps through a JSON-mode model call
// validated against a schema before acceptance.
type Generator struct {
	client   completer
	searcher searcher
	policy   retry.Policy
	now      func() time.Time
}

func NewGenerator(client completer, s searcher) *Generator {
	return &Generator{client: client, searcher: s, policy: retry.DefaultPolicy, now: time.Now}
}

// roadmapSchema rejects model output missing the fields the UI renders.
const roadmapSchema = `{
  "type": "object",
  "required": ["title", "description", "level", "totalDuration", "milestones"],
  "properties": {
    "title": {"type": "string"},
    "description": {"type": "string"},
    "level": {"type": "string"},
    "totalDuration": {"type": "string"},
    "milestones": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "title", "objective"],
        "properties": {
          "id": {"type": ["integer", "string"]},
          "title": {"type": "string"},
          "objective": {"type": "string"},
          "concepts": {"type": "array", "items": {"type": "string"}},
          "project": {"type": "string"},
          "successCriteria": {"type": "array", "items": {"type": "string"}},
          "estimatedHours": {"type": "number"},
          "prerequisites": {"type": "array"}
        }
      }
    }
  }
}`

var compiledRoadmapSchema = gojsonschema.NewStringLoader(roadmapSchema)

type generatedMilestone struct {
	ID              json.Number `json:"id"`
	Title           string      `json:"title"`
	Objective       string      `json:"objective"`
	Concepts        []string    `json:"concepts"`
	Project         string      `json:"project"`
	SuccessCriteria []string    `json:"successCriteria"`
	EstimatedHours  float64     `json:"estimatedHours"`
}

type generatedRoadmap struct {
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	Level         string               `json:"level"`
	TotalDuration string               `json:"totalDuration"`
	Milestones    []generatedMilestone `json:"milestones"`
}

// Generate builds a roadmap for the topic. Unlike intent detection there is
// no silent fallback: if the model cannot produce a valid roadmap within the
// retry budget the error is returned.
func (g *Generator) Generate(ctx context.Context, req Request) (domain.Roadmap, error) {
	level := req.UserLevel
	if level == "" {
		level = "beginner"
	}
	timeframe := req.Timeframe
	if timeframe == "" {
		timeframe = "month"
	}

	parsed, err := retry.Do(ctx, g.policy, func(ctx context.Context) (generatedRoadmap, error) {
		completion, err := g.client.Complete(ctx, ai.Request{
			Model: ai.DefaultModel,
			Messages: []ai.Message{
				{Role: "system", Content: roadmapSystemPrompt(level, timeframe, req.Goals)},
				{Role: "user", Content: roadmapUserPrompt(req.Topic, level, timeframe, req.Goals)},
			},
			Temperature: 0.7,
			MaxTokens:   4096,
			JSONMode:    true,
		})
		if err != nil {
			return generatedRoadmap{}, err
		}
		return parseRoadmap(completion.Content)
	})
	if err != nil {
		return domain.Roadmap{}, fmt.Errorf("generate roadmap: %w", err)
	}

	roadmap := domain.Roadmap{
		Title:         parsed.Title,
		Description:   parsed.Description,
		Level:         parsed.Level,
		TotalDuration: parsed.TotalDuration,
		LastUpdated:   g.now(),
	}
	for i, m := range parsed.Milestones {
		id := m.ID.String()
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		roadmap.Milestones = append(roadmap.Milestones, domain.Milestone{
			ID:              id,
			Title:           m.Title,
			Objective:       m.Objective,
			Concepts:        m.Concepts,
			Project:         m.Project,
			SuccessCriteria: m.SuccessCriteria,
			EstimatedHours:  int(m.EstimatedHours),
			Status:          domain.MilestoneNotStarted,
		})
	}

	g.enrichMilestones(ctx, req.Topic, roadmap.Milestones)
	return roadmap, nil
}

func parseRoadmap(content string) (generatedRoadmap, error) {
	result, err := gojsonschema.Validate(compiledRoadmapSchema, gojsonschema.NewStringLoader(content))
	if err != nil {
		return generatedRoadmap{}, fmt.Errorf("roadmap not valid JSON: %w", err)
	}
	if !result.Valid() {
		var reasons []string
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.String())
		}
		return generatedRoadmap{}, fmt.Errorf("roadmap schema violation: %s", strings.Join(reasons, "; "))
	}
	var parsed generatedRoadmap
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return generatedRoadmap{}, fmt.Errorf("decode roadmap: %w", err)
	}
	return parsed, nil
}

func roadmapSystemPrompt(level, timeframe string, goals []string) string {
	goalText := "general mastery"
	if len(goals) > 0 {
		goalText = strings.Join(goals, ", ")
	}
	return fmt.Sprintf(`You are an expert learning path designer. Create comprehensive, structured roadmaps that:

1. **Break down complex topics** into digestible milestones
2. **Build progressively** - each step prepares for the next
3. **Include practical projects** - learning by doing
4. **Mix theory and practice** - 30%% theory, 70%% hands-on
5. **Set realistic timelines** - based on %s timeframe
6. **Align with goals** - %s

For each milestone, provide:
- Clear objective (what you'll learn)
- Key concepts to master
- Hands-on project or exercise
- Success criteria (how you know you've learned it)
- Estimated time
- Prerequisites

Output as structured JSON following this schema:
{
  "title": "Learning Path Title",
  "description": "Overview of what you'll achieve",
  "level": "%s",
  "totalDuration": "estimated total time",
  "milestones": [
    {
      "id": 1,
      "title": "Milestone name",
      "objective": "What you'll learn",
      "concepts": ["concept1", "concept2"],
      "project": "Hands-on project description",
      "successCriteria": ["criterion1", "criterion2"],
      "estimatedHours": 10,
      "prerequisites": []
    }
  ]
}

Produce at least 8 milestones covering the topic end to end.`, timeframe, goalText, level)
}

func roadmapUserPrompt(topic, level, timeframe string, goals []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a %s learning roadmap for: %s\n\n", level, topic)
	if len(goals) > 0 {
		fmt.Fprintf(&b, "Goals: %s\n", strings.Join(goals, ", "))
	}
	fmt.Fprintf(&b, "Timeframe: %s\n\nGenerate a comprehensive, actionable roadmap.", timeframe)
	return b.String()
}
