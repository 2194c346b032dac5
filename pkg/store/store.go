package store

import (
	"errors"
	"time"

	"mindcoach/pkg/domain"
)

// Storage keys for the three top-level collections. Every backend serializes
// whole collections as JSON under these fixed names.
const (
	chatsKey    = "mindcoach:chats"
	projectsKey = "mindcoach:projects"
	contextKey  = "mindcoach:context"
)

var (
	// ErrProjectNotFound indicates a mutation referenced an unknown project.
	ErrProjectNotFound = errors.New("project not found")
	// ErrMilestoneNotFound indicates a milestone id did not resolve inside a roadmap.
	ErrMilestoneNotFound = errors.New("milestone not found")
)

// MilestoneUpdate merges non-nil fields into one milestone.
type MilestoneUpdate struct {
	Title     *string                 `json:"title,omitempty"`
	Objective *string                 `json:"objective,omitempty"`
	Status    *domain.MilestoneStatus `json:"status,omitempty"`
	Completed *bool                   `json:"completed,omitempty"`
	Progress  *int                    `json:"progress,omitempty"`
	WeakAreas []string                `json:"weakAreas,omitempty"`
}

// Store defines persistence operations for chats, projects, and the user
// context record. Reads of corrupted data fail closed with empty collections.
type Store interface {
	// general chats
	ListChats() ([]domain.Chat, error)
	GetChat(id string) (domain.Chat, bool, error)
	SaveChat(chat domain.Chat) error
	DeleteChat(id string) error
	PruneEmptyChats(olderThan time.Duration) (int, error)

	// projects
	ListProjects() ([]domain.Project, error)
	GetProject(id string) (domain.Project, bool, error)
	CreateProject(project domain.Project) (domain.Project, error)
	SaveProject(project domain.Project) error
	DeleteProject(id string) error

	// chats scoped inside a project
	ListProjectChats(projectID string) ([]domain.Chat, error)
	GetProjectChat(projectID, chatID string) (domain.Chat, bool, error)
	SaveProjectChat(projectID string, chat domain.Chat) error
	DeleteProjectChat(projectID, chatID string) error

	// roadmap and resources
	UpdateRoadmap(projectID string, roadmap domain.Roadmap) error
	UpdateMilestone(projectID, milestoneID string, update MilestoneUpdate) error
	AddResource(projectID string, resource domain.Resource) error
	DeleteResource(projectID, resourceID string) error

	// derived views
	DetectWeakAreas(projectID string) ([]string, error)
	GetResumePointer() (*domain.ResumePointer, error)

	// user context
	GetUserContext() (domain.UserContext, error)
	SaveUserContext(ctx domain.UserContext) error
}
