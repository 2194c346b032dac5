package roadmap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mindcoach/pkg/ai"
	"mindcoach/pkg/retry"
	"mindcoach/pkg/search"
)

// GatherRequest asks for curated learning resources on a topic.
type GatherRequest struct {
	Topic string `json:"topic"`
	Type  string `json:"type,omitempty"`  // course, tutorial, article, video, documentation, all
	Level string `json:"level,omitempty"` // beginner, intermediate, advanced
	Limit int    `json:"limit,omitempty"`
}

// CuratedResource is one analyzed search hit.
type CuratedResource struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Type        string   `json:"type"`
	Level       string   `json:"level"`
	Quality     int      `json:"quality"`
	Topics      []string `json:"topics"`
	Description string   `json:"description"`
	IsPaid      bool     `json:"isPaid"`
	Platform    string   `json:"platform,omitempty"`
}

// GatherResult is the curated, categorized resource collection.
type GatherResult struct {
	Topic       string                       `json:"topic"`
	Level       string                       `json:"level"`
	Total       int                          `json:"total"`
	Resources   []CuratedResource            `json:"resources"`
	Categorized map[string][]CuratedResource `json:"categorized"`
	Message     string                       `json:"message,omitempty"`
	GeneratedAt time.Time                    `json:"generatedAt"`
}

// GatherResources finds resources with parallel neural searches and has the
// model curate the combined hits. Individual search failures are tolerated;
// an empty result set short-circuits before the curation call.
func (g *Generator) GatherResources(ctx context.Context, req GatherRequest) (GatherResult, error) {
	topic := req.Topic
	level := req.Level
	if level == "" {
		level = "beginner"
	}
	resourceType := req.Type
	if resourceType == "" {
		resourceType = "all"
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	queries := buildSearchQueries(topic, resourceType, level)
	perQuery := (limit + len(queries) - 1) / len(queries)

	hits := make([][]search.Result, len(queries))
	grp, searchCtx := errgroup.WithContext(ctx)
	for i, query := range queries {
		if g.searcher == nil {
			break
		}
		grp.Go(func() error {
			results, err := g.searcher.SearchAndContents(searchCtx, query, perQuery)
			if err != nil {
				slog.Warn("resource search failed", "query", query, "error", err)
				return nil
			}
			hits[i] = results
			return nil
		})
	}
	_ = grp.Wait()

	var allResults []search.Result
	for _, batch := range hits {
		allResults = append(allResults, batch...)
	}
	if len(allResults) == 0 {
		return GatherResult{
			Topic:       topic,
			Level:       level,
			Resources:   []CuratedResource{},
			Categorized: map[string][]CuratedResource{},
			Message:     "No resources found for this topic",
			GeneratedAt: g.now(),
		}, nil
	}
	if len(allResults) > limit {
		allResults = allResults[:limit]
	}

	curated, err := retry.Do(ctx, g.policy, func(ctx context.Context) ([]CuratedResource, error) {
		completion, err := g.client.Complete(ctx, ai.Request{
			Model: ai.DefaultModel,
			Messages: []ai.Message{
				{Role: "system", Content: curationSystemPrompt},
				{Role: "user", Content: curationUserPrompt(topic, level, allResults)},
			},
			Temperature: 0.5,
			MaxTokens:   4096,
			JSONMode:    true,
		})
		if err != nil {
			return nil, err
		}
		var parsed struct {
			Resources []CuratedResource `json:"resources"`
		}
		if err := json.Unmarshal([]byte(completion.Content), &parsed); err != nil {
			return nil, fmt.Errorf("decode curated resources: %w", err)
		}
		return parsed.Resources, nil
	})
	if err != nil {
		return GatherResult{}, fmt.Errorf("curate resources: %w", err)
	}

	categorized := map[string][]CuratedResource{
		"courses":       {},
		"tutorials":     {},
		"articles":      {},
		"videos":        {},
		"documentation": {},
		"books":         {},
	}
	for _, r := range curated {
		switch r.Type {
		case "course":
			categorized["courses"] = append(categorized["courses"], r)
		case "tutorial":
			categorized["tutorials"] = append(categorized["tutorials"], r)
		case "article":
			categorized["articles"] = append(categorized["articles"], r)
		case "video":
			categorized["videos"] = append(categorized["videos"], r)
		case "documentation":
			categorized["documentation"] = append(categorized["documentation"], r)
		case "book":
			categorized["books"] = append(categorized["books"], r)
		}
	}

	return GatherResult{
		Topic:       topic,
		Level:       level,
		Total:       len(curated),
		Resources:   curated,
		Categorized: categorized,
		GeneratedAt: g.now(),
	}, nil
}

func buildSearchQueries(topic, resourceType, level string) []string {
	var queries []string
	all := resourceType == "all"
	if all || resourceType == "course" {
		queries = append(queries, fmt.Sprintf("best online courses for learning %s %s", topic, level))
	}
	if all || resourceType == "tutorial" {
		queries = append(queries, fmt.Sprintf("%s %s tutorials step by step", level, topic))
	}
	if all || resourceType == "article" {
		queries = append(queries, fmt.Sprintf("comprehensive guide to %s for %ss", topic, level))
	}
	if all || resourceType == "video" {
		queries = append(queries, fmt.Sprintf("%s video course %s friendly", topic, level))
	}
	if all || resourceType == "documentation" {
		queries = append(queries, fmt.Sprintf("%s official documentation and getting started", topic))
	}
	if len(queries) == 0 {
		queries = append(queries, fmt.Sprintf("%s %s learning resources", topic, level))
	}
	return queries
}

const curationSystemPrompt = `You are a learning resource curator. Analyze and categorize educational resources.

For each resource:
1. Determine type (course, tutorial, article, video, documentation, book)
2. Assess quality (1-5 stars based on content depth, clarity, authority)
3. Identify difficulty level (beginner, intermediate, advanced)
4. Extract key topics covered
5. Write a concise, helpful description (1-2 sentences)
6. Note if it's free or paid

Return as structured JSON array.`

func curationUserPrompt(topic, level string, results []search.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze these resources about %q for %s learners:\n", topic, level)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s\nURL: %s\n", i+1, r.Title, r.URL)
		if r.Text != "" {
			text := r.Text
			if runes := []rune(text); len(runes) > 300 {
				text = string(runes[:300])
			}
			fmt.Fprintf(&b, "Content: %s...\n", text)
		}
	}
	b.WriteString(`
Categorize and curate these resources. Return JSON array with structure:
{
  "resources": [
    {
      "title": "string",
      "url": "string",
      "type": "course|tutorial|article|video|documentation|book",
      "level": "beginner|intermediate|advanced",
      "quality": 1-5,
      "topics": ["topic1", "topic2"],
      "description": "1-2 sentence description",
      "isPaid": boolean,
      "platform": "platform name if identifiable"
    }
  ]
}`)
	return b.String()
}
