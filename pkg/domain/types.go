package domain

import "time"

// MessageRole identifies who produced a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is a single chat turn. IsStreaming is a transient UI flag and is
// stripped before the message reaches any provider or durable storage.
type Message struct {
	Role        MessageRole `json:"role"`
	Content     string      `json:"content"`
	Timestamp   time.Time   `json:"timestamp"`
	IsStreaming bool        `json:"isStreaming,omitempty"`
}

// Chat is a conversation thread, either free-standing or owned by a project.
type Chat struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Messages      []Message `json:"messages"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	ProjectID     string    `json:"projectId,omitempty"`
	MilestoneID   string    `json:"milestoneId,omitempty"`
	WeakAreas     []string  `json:"weakAreas,omitempty"`
	LastMilestone string    `json:"lastMilestone,omitempty"`
}

// MilestoneStatus tracks how a learner is doing on a milestone.
type MilestoneStatus string

const (
	MilestoneNotStarted MilestoneStatus = "not-started"
	MilestoneInProgress MilestoneStatus = "in-progress"
	MilestoneCompleted  MilestoneStatus = "completed"
	MilestoneStruggling MilestoneStatus = "struggling"
)

// MilestoneResource is a lightweight link attached to a milestone during
// roadmap synthesis.
type MilestoneResource struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// Milestone is one step of a roadmap.
// Invariant: Completed implies Progress == 100 and Status == completed.
type Milestone struct {
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	Objective       string              `json:"objective"`
	Concepts        []string            `json:"concepts,omitempty"`
	Project         string              `json:"project,omitempty"`
	SuccessCriteria []string            `json:"successCriteria,omitempty"`
	EstimatedHours  int                 `json:"estimatedHours,omitempty"`
	Duration        string              `json:"duration,omitempty"`
	Completed       bool                `json:"completed"`
	Progress        int                 `json:"progress"`
	Status          MilestoneStatus     `json:"status"`
	Dependencies    []string            `json:"dependencies,omitempty"`
	WeakAreas       []string            `json:"weakAreas,omitempty"`
	Resources       []MilestoneResource `json:"resources,omitempty"`
}

// Roadmap is owned by exactly one project and replaced wholesale on edit.
type Roadmap struct {
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Level         string      `json:"level"`
	TotalDuration string      `json:"totalDuration"`
	Milestones    []Milestone `json:"milestones"`
	LastUpdated   time.Time   `json:"lastUpdated"`
}

// ResourceType categorizes a learning resource.
type ResourceType string

const (
	ResourceVideo   ResourceType = "video"
	ResourceArticle ResourceType = "article"
	ResourceDoc     ResourceType = "doc"
	ResourceCourse  ResourceType = "course"
	ResourceLink    ResourceType = "link"
	ResourcePDF     ResourceType = "pdf"
)

// Resource is a curated learning link. Quality is a 1-5 rating.
type Resource struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	URL          string       `json:"url"`
	Type         ResourceType `json:"type"`
	Level        string       `json:"level"`
	Quality      int          `json:"quality"`
	Description  string       `json:"description"`
	Topics       []string     `json:"topics,omitempty"`
	Platform     string       `json:"platform,omitempty"`
	IsPaid       bool         `json:"isPaid"`
	AddedBy      string       `json:"addedBy"`
	MilestoneIDs []string     `json:"milestoneIds,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// ProjectLevel is the learner's self-assessed starting point.
type ProjectLevel string

const (
	LevelBeginner     ProjectLevel = "beginner"
	LevelIntermediate ProjectLevel = "intermediate"
	LevelAdvanced     ProjectLevel = "advanced"
)

// Project is a structured learning journey. Progress is derived from the
// roadmap's completed-milestone count and recomputed on every roadmap save.
type Project struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Level            ProjectLevel `json:"level"`
	Roadmap          *Roadmap     `json:"roadmap,omitempty"`
	Resources        []Resource   `json:"resources"`
	Chats            []Chat       `json:"chats"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
	Progress         int          `json:"progress"`
	CurrentMilestone string       `json:"currentMilestone,omitempty"`
	WeakAreas        []string     `json:"weakAreas,omitempty"`
	LearningStyle    string       `json:"learningStyle,omitempty"`
}

// UserContext is the single per-user activity record.
type UserContext struct {
	CurrentProject            string    `json:"currentProject,omitempty"`
	CurrentChat               string    `json:"currentChat,omitempty"`
	LastActivity              time.Time `json:"lastActivity"`
	TotalChats                int       `json:"totalChats"`
	TotalProjects             int       `json:"totalProjects"`
	PreferredExplanationStyle string    `json:"preferredExplanationStyle,omitempty"`
}

// ResumePointer is the "continue where you left off" hint.
type ResumePointer struct {
	Type         string `json:"type"` // "project" or "chat"
	ProjectTitle string `json:"projectTitle,omitempty"`
	ChatTitle    string `json:"chatTitle"`
	LastMessage  string `json:"lastMessage"`
}

// ConversationContext is assembled per request from store state and only
// lives long enough to render a system prompt. Never persisted.
type ConversationContext struct {
	ProjectID          string
	ProjectTitle       string
	ProjectDescription string
	ProjectLevel       string
	Progress           int

	CurrentMilestone    *Milestone
	NextMilestone       *Milestone
	CompletedMilestones []string

	ChatID         string
	ChatHistory    []Message
	RecentMessages []Message

	WeakAreas         []string
	RelevantResources []Resource

	IsResuming bool
	LastTopic  string
}

// Intent is one of the nine categories the orchestrator classifies a user
// message into.
type Intent string

const (
	IntentCasualChat        Intent = "casual_chat"
	IntentProjectCreation   Intent = "project_creation"
	IntentRoadmapRequest    Intent = "roadmap_request"
	IntentResourceSearch    Intent = "resource_search"
	IntentDeepLearning      Intent = "deep_learning"
	IntentExplanation       Intent = "explanation"
	IntentVisualExplanation Intent = "visual_explanation"
	IntentComparison        Intent = "comparison"
	IntentImageGeneration   Intent = "image_generation"
)

// ActionType is the downstream capability an intent maps to.
type ActionType string

const (
	ActionRespond         ActionType = "respond"
	ActionCreateProject   ActionType = "create_project"
	ActionGatherResources ActionType = "gather_resources"
	ActionDeepDive        ActionType = "deep_dive"
	ActionGenerateVisual  ActionType = "generate_visual"
)

// SuggestedAction pairs an action type with intent-specific parameters.
type SuggestedAction struct {
	Type       ActionType     `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// OrchestrationResult is the orchestrator's classification of one message.
type OrchestrationResult struct {
	Intent          Intent          `json:"intent"`
	Confidence      float64         `json:"confidence"`
	SuggestedAction SuggestedAction `json:"suggestedAction"`
	Reasoning       string          `json:"reasoning"`
	Fallback        bool            `json:"fallback,omitempty"`
}
