package server

import (
	"net/http"
	"time"

	"mindcoach/internal/app"
	"mindcoach/internal/util"
	"mindcoach/pkg/domain"
	"mindcoach/pkg/store"
)

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		chats, err := s.store.ListChats()
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, chats)
	case http.MethodPost:
		var chat domain.Chat
		if err := decodeJSON(r, &chat); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if chat.ID == "" {
			chat.ID = util.NewID()
		}
		if chat.Title == "" {
			chat.Title = app.DeriveChatTitle(firstUserMessage(chat.Messages))
		}
		if err := s.store.SaveChat(chat); err != nil {
			writeStoreError(w, r, err)
			return
		}
		saved, _, err := s.store.GetChat(chat.ID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleChatByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		chat, ok, err := s.store.GetChat(id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		writeJSON(w, http.StatusOK, chat)
	case http.MethodDelete:
		if err := s.store.DeleteChat(id); err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handlePruneChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	req := struct {
		OlderThanHours int `json:"olderThanHours"`
	}{OlderThanHours: 24}
	// body is optional
	_ = decodeJSON(r, &req)
	if req.OlderThanHours <= 0 {
		req.OlderThanHours = 24
	}
	removed, err := s.store.PruneEmptyChats(time.Duration(req.OlderThanHours) * time.Hour)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		projects, err := s.store.ListProjects()
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, projects)
	case http.MethodPost:
		var project domain.Project
		if err := decodeJSON(r, &project); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if project.Title == "" {
			writeError(w, http.StatusBadRequest, "Title is required")
			return
		}
		if project.Level == "" {
			project.Level = domain.LevelBeginner
		}
		created, err := s.store.CreateProject(project)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleProjectByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		project, ok, err := s.store.GetProject(id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeJSON(w, http.StatusOK, project)
	case http.MethodPut:
		var project domain.Project
		if err := decodeJSON(r, &project); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		project.ID = id
		if err := s.store.SaveProject(project); err != nil {
			writeStoreError(w, r, err)
			return
		}
		saved, _, err := s.store.GetProject(id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	case http.MethodDelete:
		if err := s.store.DeleteProject(id); err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleProjectRoadmap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var rm domain.Roadmap
	if err := decodeJSON(r, &rm); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id := r.PathValue("id")
	if err := s.store.UpdateRoadmap(id, rm); err != nil {
		writeStoreError(w, r, err)
		return
	}
	project, _, err := s.store.GetProject(id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleProjectMilestone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var update store.MilestoneUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id := r.PathValue("id")
	if err := s.store.UpdateMilestone(id, r.PathValue("milestoneID"), update); err != nil {
		writeStoreError(w, r, err)
		return
	}
	project, _, err := s.store.GetProject(id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// handleMilestoneProgress infers milestone status from a finished conversation
// and persists the result.
func (s *Server) handleMilestoneProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id := r.PathValue("id")
	if err := s.contexts.UpdateMilestoneFromChat(id, r.PathValue("milestoneID"), req.Messages); err != nil {
		writeStoreError(w, r, err)
		return
	}
	project, _, err := s.store.GetProject(id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project":   project,
		"weakAreas": app.DetectWeakAreasFromChat(req.Messages),
	})
}

func (s *Server) handleProjectResources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var resource domain.Resource
	if err := decodeJSON(r, &resource); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if resource.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}
	if resource.Title == "" {
		resource.Title = resource.URL
	}
	if resource.AddedBy == "" {
		resource.AddedBy = "user"
	}
	id := r.PathValue("id")
	if err := s.store.AddResource(id, resource); err != nil {
		writeStoreError(w, r, err)
		return
	}
	project, _, err := s.store.GetProject(id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleProjectResourceByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.store.DeleteResource(r.PathValue("id"), r.PathValue("resourceID")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleProjectChats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		chats, err := s.store.ListProjectChats(id)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, chats)
	case http.MethodPost:
		var chat domain.Chat
		if err := decodeJSON(r, &chat); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if chat.ID == "" {
			chat.ID = util.NewID()
		}
		chat.ProjectID = id
		if chat.Title == "" {
			chat.Title = app.DeriveChatTitle(firstUserMessage(chat.Messages))
		}
		if err := s.store.SaveProjectChat(id, chat); err != nil {
			writeStoreError(w, r, err)
			return
		}
		saved, _, err := s.store.GetProjectChat(id, chat.ID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleProjectChatByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	chatID := r.PathValue("chatID")
	switch r.Method {
	case http.MethodGet:
		chat, ok, err := s.store.GetProjectChat(id, chatID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		writeJSON(w, http.StatusOK, chat)
	case http.MethodDelete:
		if err := s.store.DeleteProjectChat(id, chatID); err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleProjectAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	analytics, ok, err := s.contexts.Analytics(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (s *Server) handleProjectWeakAreas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	weakAreas, err := s.store.DetectWeakAreas(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"weakAreas": weakAreas})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	pointer, err := s.store.GetResumePointer()
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*domain.ResumePointer{"resume": pointer})
}

func (s *Server) handleUserContext(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userCtx, err := s.store.GetUserContext()
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, userCtx)
	case http.MethodPut:
		var userCtx domain.UserContext
		if err := decodeJSON(r, &userCtx); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.store.SaveUserContext(userCtx); err != nil {
			writeStoreError(w, r, err)
			return
		}
		saved, err := s.store.GetUserContext()
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		methodNotAllowed(w)
	}
}

func firstUserMessage(messages []domain.Message) string {
	for _, m := range messages {
		if m.Role == domain.RoleUser {
			return m.Content
		}
	}
	return ""
}
