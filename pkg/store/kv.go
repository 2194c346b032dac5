package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mindcoach/pkg/domain"
)

// KV is the minimal backend contract: whole-value load and store under a
// fixed key. Implementations exist for memory, Redis, and Postgres.
type KV interface {
	Load(key string) ([]byte, bool, error)
	Store(key string, value []byte) error
}

// kvStore implements Store as read-modify-write cycles over a KV backend.
// Writers in separate processes can race and clobber each other; the design
// assumes a single client context (last write wins).
type kvStore struct {
	mu sync.Mutex
	kv KV
}

func newKVStore(kv KV) *kvStore {
	return &kvStore{kv: kv}
}

// ===== general chats =====

func (s *kvStore) ListChats() ([]domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadChats()
}

func (s *kvStore) GetChat(id string) (domain.Chat, bool, error) {
	chats, err := s.ListChats()
	if err != nil {
		return domain.Chat{}, false, err
	}
	for _, c := range chats {
		if c.ID == id {
			return c, true, nil
		}
	}
	return domain.Chat{}, false, nil
}

// SaveChat replaces an existing chat in place or prepends a new one, keeping
// most-recently-updated-first ordering for new entries.
func (s *kvStore) SaveChat(chat domain.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chats, err := s.loadChats()
	if err != nil {
		return err
	}
	chat.UpdatedAt = time.Now().UTC()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = chat.UpdatedAt
	}
	replaced := false
	for i := range chats {
		if chats[i].ID == chat.ID {
			chats[i] = chat
			replaced = true
			break
		}
	}
	if !replaced {
		chats = append([]domain.Chat{chat}, chats...)
	}
	if err := s.saveChats(chats); err != nil {
		return err
	}
	return s.touchActivity()
}

func (s *kvStore) DeleteChat(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chats, err := s.loadChats()
	if err != nil {
		return err
	}
	kept := chats[:0]
	for _, c := range chats {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	return s.saveChats(kept)
}

// PruneEmptyChats drops general chats with no messages that have not been
// touched within olderThan. Housekeeping only, never an invariant.
func (s *kvStore) PruneEmptyChats(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chats, err := s.loadChats()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	kept := make([]domain.Chat, 0, len(chats))
	removed := 0
	for _, c := range chats {
		if len(c.Messages) == 0 && c.UpdatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.saveChats(kept)
}

// ===== projects =====

func (s *kvStore) ListProjects() ([]domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadProjects()
}

func (s *kvStore) GetProject(id string) (domain.Project, bool, error) {
	projects, err := s.ListProjects()
	if err != nil {
		return domain.Project{}, false, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, true, nil
		}
	}
	return domain.Project{}, false, nil
}

// CreateProject assigns a fresh id and zero progress, then persists.
func (s *kvStore) CreateProject(project domain.Project) (domain.Project, error) {
	now := time.Now().UTC()
	project.ID = "project-" + uuid.NewString()
	project.CreatedAt = now
	project.UpdatedAt = now
	project.Progress = 0
	if project.Chats == nil {
		project.Chats = []domain.Chat{}
	}
	if project.Resources == nil {
		project.Resources = []domain.Resource{}
	}
	if err := s.SaveProject(project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

func (s *kvStore) SaveProject(project domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveProjectLocked(project)
}

func (s *kvStore) saveProjectLocked(project domain.Project) error {
	projects, err := s.loadProjects()
	if err != nil {
		return err
	}
	project.UpdatedAt = time.Now().UTC()
	replaced := false
	for i := range projects {
		if projects[i].ID == project.ID {
			projects[i] = project
			replaced = true
			break
		}
	}
	if !replaced {
		projects = append([]domain.Project{project}, projects...)
	}
	if err := s.saveProjects(projects); err != nil {
		return err
	}
	return s.touchActivity()
}

func (s *kvStore) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	projects, err := s.loadProjects()
	if err != nil {
		return err
	}
	kept := projects[:0]
	for _, p := range projects {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	return s.saveProjects(kept)
}

// ===== project chats =====

func (s *kvStore) ListProjectChats(projectID string) ([]domain.Chat, error) {
	project, ok, err := s.GetProject(projectID)
	if err != nil || !ok {
		return nil, err
	}
	return project.Chats, nil
}

func (s *kvStore) GetProjectChat(projectID, chatID string) (domain.Chat, bool, error) {
	chats, err := s.ListProjectChats(projectID)
	if err != nil {
		return domain.Chat{}, false, err
	}
	for _, c := range chats {
		if c.ID == chatID {
			return c, true, nil
		}
	}
	return domain.Chat{}, false, nil
}

func (s *kvStore) SaveProjectChat(projectID string, chat domain.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok, err := s.getProjectLocked(projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProjectNotFound
	}
	chat.ProjectID = projectID
	chat.UpdatedAt = time.Now().UTC()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = chat.UpdatedAt
	}
	replaced := false
	for i := range project.Chats {
		if project.Chats[i].ID == chat.ID {
			project.Chats[i] = chat
			replaced = true
			break
		}
	}
	if !replaced {
		project.Chats = append([]domain.Chat{chat}, project.Chats...)
	}
	return s.saveProjectLocked(project)
}

func (s *kvStore) DeleteProjectChat(projectID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok, err := s.getProjectLocked(projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProjectNotFound
	}
	kept := project.Chats[:0]
	for _, c := range project.Chats {
		if c.ID != chatID {
			kept = append(kept, c)
		}
	}
	project.Chats = kept
	return s.saveProjectLocked(project)
}

// ===== roadmap and resources =====

// UpdateRoadmap replaces the project's roadmap wholesale and recomputes the
// derived progress percentage (0 when the roadmap has no milestones).
func (s *kvStore) UpdateRoadmap(projectID string, roadmap domain.Roadmap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRoadmapLocked(projectID, roadmap)
}

func (s *kvStore) updateRoadmapLocked(projectID string, roadmap domain.Roadmap) error {
	project, ok, err := s.getProjectLocked(projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProjectNotFound
	}
	roadmap.LastUpdated = time.Now().UTC()
	project.Roadmap = &roadmap
	project.Progress = roadmapProgress(roadmap)
	return s.saveProjectLocked(project)
}

func (s *kvStore) UpdateMilestone(projectID, milestoneID string, update MilestoneUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok, err := s.getProjectLocked(projectID)
	if err != nil {
		return err
	}
	if !ok || project.Roadmap == nil {
		return ErrProjectNotFound
	}
	roadmap := *project.Roadmap
	found := false
	for i := range roadmap.Milestones {
		if roadmap.Milestones[i].ID != milestoneID {
			continue
		}
		applyMilestoneUpdate(&roadmap.Milestones[i], update)
		found = true
		break
	}
	if !found {
		return ErrMilestoneNotFound
	}
	return s.updateRoadmapLocked(projectID, roadmap)
}

func applyMilestoneUpdate(m *domain.Milestone, update MilestoneUpdate) {
	if update.Title != nil {
		m.Title = *update.Title
	}
	if update.Objective != nil {
		m.Objective = *update.Objective
	}
	if update.Status != nil {
		m.Status = *update.Status
	}
	if update.Completed != nil {
		m.Completed = *update.Completed
	}
	if update.Progress != nil {
		m.Progress = *update.Progress
	}
	if update.WeakAreas != nil {
		m.WeakAreas = update.WeakAreas
	}
	// completed implies full progress and completed status
	if m.Completed {
		m.Progress = 100
		m.Status = domain.MilestoneCompleted
	}
}

func (s *kvStore) AddResource(projectID string, resource domain.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok, err := s.getProjectLocked(projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProjectNotFound
	}
	if resource.ID == "" {
		resource.ID = "resource-" + uuid.NewString()
	}
	resource.CreatedAt = time.Now().UTC()
	project.Resources = append(project.Resources, resource)
	return s.saveProjectLocked(project)
}

func (s *kvStore) DeleteResource(projectID, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok, err := s.getProjectLocked(projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrProjectNotFound
	}
	kept := project.Resources[:0]
	for _, r := range project.Resources {
		if r.ID != resourceID {
			kept = append(kept, r)
		}
	}
	project.Resources = kept
	return s.saveProjectLocked(project)
}

// ===== derived views =====

// DetectWeakAreas unions chat-level weak areas with those of struggling
// milestones. The result is a sorted de-duplicated set.
func (s *kvStore) DetectWeakAreas(projectID string) ([]string, error) {
	project, ok, err := s.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	set := make(map[string]struct{})
	for _, chat := range project.Chats {
		for _, area := range chat.WeakAreas {
			set[area] = struct{}{}
		}
	}
	if project.Roadmap != nil {
		for _, m := range project.Roadmap.Milestones {
			if m.Status != domain.MilestoneStruggling {
				continue
			}
			for _, area := range m.WeakAreas {
				set[area] = struct{}{}
			}
		}
	}
	areas := make([]string, 0, len(set))
	for area := range set {
		areas = append(areas, area)
	}
	sort.Strings(areas)
	return areas, nil
}

// GetResumePointer prefers the active project chat with at least one message,
// then the most recently updated general chat, else nil.
func (s *kvStore) GetResumePointer() (*domain.ResumePointer, error) {
	userCtx, err := s.GetUserContext()
	if err != nil {
		return nil, err
	}
	if userCtx.CurrentProject != "" && userCtx.CurrentChat != "" {
		project, ok, err := s.GetProject(userCtx.CurrentProject)
		if err != nil {
			return nil, err
		}
		if ok {
			chat, found, err := s.GetProjectChat(userCtx.CurrentProject, userCtx.CurrentChat)
			if err != nil {
				return nil, err
			}
			if found && len(chat.Messages) > 0 {
				return &domain.ResumePointer{
					Type:         "project",
					ProjectTitle: project.Title,
					ChatTitle:    chat.Title,
					LastMessage:  snippet(chat.Messages[len(chat.Messages)-1].Content, 100),
				}, nil
			}
		}
	}
	chats, err := s.ListChats()
	if err != nil {
		return nil, err
	}
	if len(chats) > 0 && len(chats[0].Messages) > 0 {
		return &domain.ResumePointer{
			Type:        "chat",
			ChatTitle:   chats[0].Title,
			LastMessage: snippet(chats[0].Messages[len(chats[0].Messages)-1].Content, 100),
		}, nil
	}
	return nil, nil
}

// ===== user context =====

func (s *kvStore) GetUserContext() (domain.UserContext, error) {
	data, ok, err := s.kv.Load(contextKey)
	if err != nil {
		return domain.UserContext{}, err
	}
	fallback := domain.UserContext{LastActivity: time.Now().UTC()}
	if !ok {
		return fallback, nil
	}
	var userCtx domain.UserContext
	if err := json.Unmarshal(data, &userCtx); err != nil {
		slog.Warn("user context corrupted, using defaults", "err", err)
		return fallback, nil
	}
	return userCtx, nil
}

func (s *kvStore) SaveUserContext(userCtx domain.UserContext) error {
	data, err := json.Marshal(userCtx)
	if err != nil {
		return fmt.Errorf("marshal user context: %w", err)
	}
	return s.kv.Store(contextKey, data)
}

func (s *kvStore) touchActivity() error {
	userCtx, err := s.GetUserContext()
	if err != nil {
		return err
	}
	userCtx.LastActivity = time.Now().UTC()
	return s.SaveUserContext(userCtx)
}

// ===== collection plumbing =====

func (s *kvStore) loadChats() ([]domain.Chat, error) {
	data, ok, err := s.kv.Load(chatsKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.Chat{}, nil
	}
	var chats []domain.Chat
	if err := json.Unmarshal(data, &chats); err != nil {
		// fail closed so the UI stays usable
		slog.Warn("chat collection corrupted, returning empty", "err", err)
		return []domain.Chat{}, nil
	}
	return chats, nil
}

func (s *kvStore) saveChats(chats []domain.Chat) error {
	data, err := json.Marshal(chats)
	if err != nil {
		return fmt.Errorf("marshal chats: %w", err)
	}
	return s.kv.Store(chatsKey, data)
}

// loadProjects reads the project collection, backfilling fields missing from
// legacy records (chats, resources, updatedAt). When any record needed the
// backfill, the corrected collection is persisted; a second read is a no-op.
func (s *kvStore) loadProjects() ([]domain.Project, error) {
	data, ok, err := s.kv.Load(projectsKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.Project{}, nil
	}
	var projects []domain.Project
	if err := json.Unmarshal(data, &projects); err != nil {
		slog.Warn("project collection corrupted, returning empty", "err", err)
		return []domain.Project{}, nil
	}
	migrated := false
	for i := range projects {
		if projects[i].Chats == nil {
			projects[i].Chats = []domain.Chat{}
			migrated = true
		}
		if projects[i].Resources == nil {
			projects[i].Resources = []domain.Resource{}
			migrated = true
		}
		if projects[i].UpdatedAt.IsZero() {
			projects[i].UpdatedAt = projects[i].CreatedAt
			if projects[i].UpdatedAt.IsZero() {
				projects[i].UpdatedAt = time.Now().UTC()
			}
			migrated = true
		}
	}
	if migrated {
		if err := s.saveProjects(projects); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

func (s *kvStore) saveProjects(projects []domain.Project) error {
	data, err := json.Marshal(projects)
	if err != nil {
		return fmt.Errorf("marshal projects: %w", err)
	}
	return s.kv.Store(projectsKey, data)
}

func (s *kvStore) getProjectLocked(id string) (domain.Project, bool, error) {
	projects, err := s.loadProjects()
	if err != nil {
		return domain.Project{}, false, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, true, nil
		}
	}
	return domain.Project{}, false, nil
}

func roadmapProgress(roadmap domain.Roadmap) int {
	total := len(roadmap.Milestones)
	if total == 0 {
		return 0
	}
	completed := 0
	for _, m := range roadmap.Milestones {
		if m.Completed {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

func snippet(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
