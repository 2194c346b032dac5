// Package visual turns natural-language queries into educational visuals: AI
// image prompts, comparison charts, and interactive flow diagrams.
package visual

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"

	"mindcoach/pkg/ai"
	"mindcoach/pkg/retry"
	"mindcoach/pkg/storage"
)

// Request asks for a visual. VisualType can force the ai-image branch;
// otherwise the query text is matched against branch patterns.
type Request struct {
	Query      string `json:"query"`
	VisualType string `json:"visualType,omitempty"` // diagram, comparison, flowchart, mindmap, ai-image
}

// FlowNode is one node of a flow diagram.
type FlowNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type,omitempty"` // input, output, default
	Data     NodeData       `json:"data"`
	Position NodePosition   `json:"position"`
	Style    map[string]any `json:"style,omitempty"`
}

type NodeData struct {
	Label string `json:"label"`
}

type NodePosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FlowEdge connects two flow diagram nodes.
type FlowEdge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Label    string `json:"label,omitempty"`
	Type     string `json:"type,omitempty"`
	Animated bool   `json:"animated,omitempty"`
}

// FlowData is the rendered diagram payload.
type FlowData struct {
	Nodes []FlowNode `json:"nodes"`
	Edges []FlowEdge `json:"edges"`
}

// ComparisonItem scores both compared subjects on one attribute.
type ComparisonItem struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Value2      float64 `json:"value2"`
	Explanation string  `json:"explanation,omitempty"`
}

// SideNotes holds per-subject notes for comparison visuals.
type SideNotes struct {
	Item1Name string `json:"item1Name,omitempty"`
	Item2Name string `json:"item2Name,omitempty"`
}

// Response is the discriminated visual payload. Type selects which optional
// fields are populated.
type Response struct {
	Type      string           `json:"type"` // ai-image, comparison-chart, flow-diagram
	FlowData  *FlowData        `json:"flowData,omitempty"`
	Data      []ComparisonItem `json:"data,omitempty"`
	ChartType string           `json:"chartType,omitempty"` // bar, radar
	ImageURL  string           `json:"imageUrl,omitempty"`

	Title           string `json:"title"`
	Description     string `json:"description"`
	TextExplanation string `json:"textExplanation"`

	// ArchiveID identifies the archived copy of this payload, when an
	// object store is configured.
	ArchiveID string `json:"archiveId,omitempty"`

	LearningObjective string     `json:"learningObjective,omitempty"`
	Prerequisites     string     `json:"prerequisites,omitempty"`
	KeyTakeaways      []string   `json:"keyTakeaways,omitempty"`
	CommonMistakes    []string   `json:"commonMistakes,omitempty"`
	RealWorldExample  string     `json:"realWorldExample,omitempty"`
	RealWorldExamples *SideNotes `json:"realWorldExamples,omitempty"`
	WhenToUse         *SideNotes `json:"whenToUse,omitempty"`
	PracticePrompt    string     `json:"practicePrompt,omitempty"`
}

type completer interface {
	Complete(ctx context.Context, req ai.Request) (ai.Completion, error)
}

// Generator produces visuals and optionally archives each payload so it can
// be replayed without another model call.
type Generator struct {
	client  completer
	archive storage.VisualArchive
	policy  retry.Policy
	now     func() time.Time
}

func NewGenerator(client completer, archive storage.VisualArchive) *Generator {
	return &Generator{client: client, archive: archive, policy: retry.DefaultPolicy, now: time.Now}
}

var (
	aiImagePattern    = regexp.MustCompile(`(?i)\b(generate image|create picture|draw|illustrate|show me visually)\b`)
	comparisonPattern = regexp.MustCompile(`(?i)\b(vs|versus|difference|compare|over)\b`)
	processPattern    = regexp.MustCompile(`(?i)\b(how|process|flow|steps|work|lifecycle)\b`)
	structurePattern  = regexp.MustCompile(`(?i)\b(architecture|structure|system|design|components)\b`)
)

// Generate routes the query to a visual branch and returns the payload.
// Branch precedence: ai-image, then comparison, then process/structure flow
// diagrams, then a simple concept diagram.
func (g *Generator) Generate(ctx context.Context, req Request) (Response, error) {
	var resp Response
	var err error
	switch {
	case req.VisualType == "ai-image" || aiImagePattern.MatchString(req.Query):
		resp, err = g.generateImage(ctx, req.Query)
	case comparisonPattern.MatchString(req.Query):
		resp, err = g.generateComparison(ctx, req.Query)
	case processPattern.MatchString(req.Query) || structurePattern.MatchString(req.Query):
		resp, err = g.generateFlow(ctx, req.Query, flowSystemPrompt(req.Query), "Create comprehensive educational flowchart for: "+req.Query, 0.5)
	default:
		resp, err = g.generateFlow(ctx, req.Query, conceptSystemPrompt(req.Query), req.Query, 0.7)
	}
	if err != nil {
		return Response{}, err
	}
	g.archiveVisual(ctx, &resp)
	return resp, nil
}

// ErrArchiveDisabled is returned by archive lookups when no object store is
// configured.
var ErrArchiveDisabled = errors.New("visual archive not configured")

// archiveVisual is best effort; archive failures never fail the request, the
// response just carries no archive id.
func (g *Generator) archiveVisual(ctx context.Context, resp *Response) {
	if g.archive == nil {
		return
	}
	resp.ArchiveID = uuid.NewString()
	if err := g.archive.PutJSON(ctx, archiveKey(resp.ArchiveID), *resp); err != nil {
		slog.Warn("visual archive failed", "id", resp.ArchiveID, "error", err)
		resp.ArchiveID = ""
	}
}

// Archived replays a previously archived visual without a model call.
func (g *Generator) Archived(ctx context.Context, id string) (Response, error) {
	if g.archive == nil {
		return Response{}, ErrArchiveDisabled
	}
	var resp Response
	if err := g.archive.GetJSON(ctx, archiveKey(id), &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// ArchivedURL returns a pre-signed link to the raw archived document.
func (g *Generator) ArchivedURL(ctx context.Context, id string) (string, error) {
	if g.archive == nil {
		return "", ErrArchiveDisabled
	}
	return g.archive.PresignGet(ctx, archiveKey(id), 15*time.Minute)
}

// DeleteArchived removes an archived visual.
func (g *Generator) DeleteArchived(ctx context.Context, id string) error {
	if g.archive == nil {
		return ErrArchiveDisabled
	}
	return g.archive.Delete(ctx, archiveKey(id))
}

func archiveKey(id string) string {
	return "visuals/" + id + ".json"
}

func (g *Generator) completeJSON(ctx context.Context, system, user string, temperature float64, out any) error {
	_, err := retry.Do(ctx, g.policy, func(ctx context.Context) (struct{}, error) {
		completion, err := g.client.Complete(ctx, ai.Request{
			Model: ai.DefaultModel,
			Messages: []ai.Message{
				{Role: "system", Content: system},
				{Role: "user", Content: user},
			},
			Temperature: temperature,
			JSONMode:    true,
		})
		if err != nil {
			return struct{}{}, err
		}
		if err := json.Unmarshal([]byte(completion.Content), out); err != nil {
			return struct{}{}, fmt.Errorf("decode visual payload: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

func (g *Generator) generateImage(ctx context.Context, query string) (Response, error) {
	var result struct {
		Title           string `json:"title"`
		Prompt          string `json:"prompt"`
		Description     string `json:"description"`
		TextExplanation string `json:"textExplanation"`
	}
	if err := g.completeJSON(ctx, imagePromptSystem, query, 0.8, &result); err != nil {
		return Response{}, fmt.Errorf("generate image prompt: %w", err)
	}
	imagePrompt := result.Prompt
	if imagePrompt == "" {
		imagePrompt = query
	}
	title := result.Title
	if title == "" {
		title = "AI Generated Illustration"
	}
	imageURL := fmt.Sprintf(
		"https://image.pollinations.ai/prompt/%s?width=1200&height=800&nologo=true&model=flux&seed=%d",
		url.QueryEscape(imagePrompt), g.now().UnixMilli())

	return Response{
		Type:            "ai-image",
		ImageURL:        imageURL,
		Title:           title,
		Description:     result.Description,
		TextExplanation: result.TextExplanation,
	}, nil
}

func (g *Generator) generateComparison(ctx context.Context, query string) (Response, error) {
	var result struct {
		Title             string           `json:"title"`
		Description       string           `json:"description"`
		LearningObjective string           `json:"learningObjective"`
		Items             []ComparisonItem `json:"items"`
		RealWorldExamples *SideNotes       `json:"realWorldExamples"`
		WhenToUse         *SideNotes       `json:"whenToUse"`
		TextExplanation   string           `json:"textExplanation"`
		PracticePrompt    string           `json:"practicePrompt"`
	}
	if err := g.completeJSON(ctx, comparisonSystemPrompt(query), query, 0.7, &result); err != nil {
		return Response{}, fmt.Errorf("generate comparison: %w", err)
	}
	title := result.Title
	if title == "" {
		title = "Comparison"
	}
	// Radar charts read better once there are more than four attributes.
	chartType := "bar"
	if len(result.Items) > 4 {
		chartType = "radar"
	}
	return Response{
		Type:              "comparison-chart",
		Data:              result.Items,
		ChartType:         chartType,
		Title:             title,
		Description:       result.Description,
		TextExplanation:   result.TextExplanation,
		LearningObjective: result.LearningObjective,
		RealWorldExamples: result.RealWorldExamples,
		WhenToUse:         result.WhenToUse,
		PracticePrompt:    result.PracticePrompt,
	}, nil
}

func (g *Generator) generateFlow(ctx context.Context, query, system, user string, temperature float64) (Response, error) {
	var result struct {
		Title             string     `json:"title"`
		Description       string     `json:"description"`
		LearningObjective string     `json:"learningObjective"`
		Prerequisites     string     `json:"prerequisites"`
		Nodes             []FlowNode `json:"nodes"`
		Edges             []FlowEdge `json:"edges"`
		KeyTakeaways      []string   `json:"keyTakeaways"`
		CommonMistakes    []string   `json:"commonMistakes"`
		RealWorldExample  string     `json:"realWorldExample"`
		PracticePrompt    string     `json:"practicePrompt"`
		TextExplanation   string     `json:"textExplanation"`
	}
	if err := g.completeJSON(ctx, system, user, temperature, &result); err != nil {
		return Response{}, fmt.Errorf("generate flow diagram: %w", err)
	}
	title := result.Title
	if title == "" {
		title = "Diagram"
	}
	return Response{
		Type:              "flow-diagram",
		FlowData:          &FlowData{Nodes: result.Nodes, Edges: result.Edges},
		Title:             title,
		Description:       result.Description,
		TextExplanation:   result.TextExplanation,
		LearningObjective: result.LearningObjective,
		Prerequisites:     result.Prerequisites,
		KeyTakeaways:      result.KeyTakeaways,
		CommonMistakes:    result.CommonMistakes,
		RealWorldExample:  result.RealWorldExample,
		PracticePrompt:    result.PracticePrompt,
	}, nil
}
