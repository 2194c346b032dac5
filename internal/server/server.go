package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mindcoach/internal/app"
	"mindcoach/internal/completion"
	"mindcoach/internal/discover"
	"mindcoach/internal/orchestrate"
	"mindcoach/internal/ratelimit"
	"mindcoach/internal/roadmap"
	"mindcoach/internal/util"
	"mindcoach/internal/visual"
	"mindcoach/pkg/ai"
	"mindcoach/pkg/domain"
	"mindcoach/pkg/search"
	"mindcoach/pkg/store"
)

type orchestrator interface {
	Classify(ctx context.Context, req orchestrate.Request) (domain.OrchestrationResult, error)
}

type chatGateway interface {
	Complete(ctx context.Context, req completion.ChatRequest) (completion.Result, error)
	Stream(ctx context.Context, req completion.ChatRequest, onChunk func(string) error) (completion.Agent, error)
}

type roadmapService interface {
	Generate(ctx context.Context, req roadmap.Request) (domain.Roadmap, error)
	GatherResources(ctx context.Context, req roadmap.GatherRequest) (roadmap.GatherResult, error)
}

type visualService interface {
	Generate(ctx context.Context, req visual.Request) (visual.Response, error)
	Archived(ctx context.Context, id string) (visual.Response, error)
	ArchivedURL(ctx context.Context, id string) (string, error)
	DeleteArchived(ctx context.Context, id string) error
}

type feedAggregator interface {
	Fetch(ctx context.Context, category string, limit int) (discover.Result, error)
}

type webSearcher interface {
	SearchAndContents(ctx context.Context, query string, numResults int) ([]search.Result, error)
}

// Config wires required dependencies for the HTTP server. Limiter may be nil,
// in which case the model endpoints are not rate limited.
type Config struct {
	Store    store.Store
	Intents  orchestrator
	Chat     chatGateway
	Roadmaps roadmapService
	Visuals  visualService
	Feeds    feedAggregator
	Search   webSearcher
	Limiter  *ratelimit.FixedWindowLimiter
}

// Server exposes the HTTP API: the model-backed endpoints plus CRUD over the
// persisted chats, projects, and user context.
type Server struct {
	store    store.Store
	contexts *app.ContextBuilder
	intents  orchestrator
	chat     chatGateway
	roadmaps roadmapService
	visuals  visualService
	feeds    feedAggregator
	search   webSearcher
	limiter  *ratelimit.FixedWindowLimiter
	mux      *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		store:    cfg.Store,
		contexts: app.NewContextBuilder(cfg.Store),
		intents:  cfg.Intents,
		chat:     cfg.Chat,
		roadmaps: cfg.Roadmaps,
		visuals:  cfg.Visuals,
		feeds:    cfg.Feeds,
		search:   cfg.Search,
		limiter:  cfg.Limiter,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.Handle("/chat", s.withRateLimit(s.handleChat))
	s.mux.Handle("/orchestrate", s.withRateLimit(s.handleOrchestrate))
	s.mux.Handle("/generate-roadmap", s.withRateLimit(s.handleGenerateRoadmap))
	s.mux.Handle("/gather-resources", s.withRateLimit(s.handleGatherResources))
	s.mux.Handle("/generate-visual", s.withRateLimit(s.handleGenerateVisual))
	s.mux.HandleFunc("/visuals/{id}", s.handleVisualByID)
	s.mux.HandleFunc("/visuals/{id}/url", s.handleVisualURL)
	s.mux.HandleFunc("/search", s.handleSearch)
	s.mux.HandleFunc("/discover", s.handleDiscover)

	s.mux.HandleFunc("/chats", s.handleChats)
	s.mux.HandleFunc("/chats/prune", s.handlePruneChats)
	s.mux.HandleFunc("/chats/{id}", s.handleChatByID)
	s.mux.HandleFunc("/projects", s.handleProjects)
	s.mux.HandleFunc("/projects/{id}", s.handleProjectByID)
	s.mux.HandleFunc("/projects/{id}/roadmap", s.handleProjectRoadmap)
	s.mux.HandleFunc("/projects/{id}/milestones/{milestoneID}", s.handleProjectMilestone)
	s.mux.HandleFunc("/projects/{id}/milestones/{milestoneID}/progress", s.handleMilestoneProgress)
	s.mux.HandleFunc("/projects/{id}/resources", s.handleProjectResources)
	s.mux.HandleFunc("/projects/{id}/resources/{resourceID}", s.handleProjectResourceByID)
	s.mux.HandleFunc("/projects/{id}/chats", s.handleProjectChats)
	s.mux.HandleFunc("/projects/{id}/chats/{chatID}", s.handleProjectChatByID)
	s.mux.HandleFunc("/projects/{id}/analytics", s.handleProjectAnalytics)
	s.mux.HandleFunc("/projects/{id}/weak-areas", s.handleProjectWeakAreas)
	s.mux.HandleFunc("/resume", s.handleResume)
	s.mux.HandleFunc("/context", s.handleUserContext)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withRateLimit guards the model endpoints with the fixed-window limiter keyed
// by client IP. A nil limiter passes everything through.
func (s *Server) withRateLimit(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(util.ClientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please wait a moment and try again.")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req completion.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "Messages array is required")
		return
	}
	req.ContextPrompt = s.contextPrompt(req)
	if req.WantsStream() {
		s.streamChat(w, r, req)
		return
	}
	res, err := s.chat.Complete(r.Context(), req)
	if err != nil {
		writeProviderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// contextPrompt renders the stored-state system prompt for this turn. Project
// hints select the full project prompt; a bare chat id gets the general coach
// prompt. Failures degrade to no context prompt rather than failing the turn.
func (s *Server) contextPrompt(req completion.ChatRequest) string {
	if req.Context != nil && req.Context.ProjectID != "" {
		chatID := req.Context.ChatID
		if chatID == "" {
			chatID = req.ChatID
		}
		cc, err := s.contexts.BuildProjectChatContext(req.Context.ProjectID, chatID, req.Context.MilestoneID)
		if err != nil || cc.ProjectID == "" {
			return ""
		}
		return app.GenerateSystemPrompt(cc, app.PromptProject)
	}
	if req.ChatID != "" {
		cc, err := s.contexts.BuildGeneralChatContext(req.ChatID)
		if err != nil {
			return ""
		}
		return app.GenerateSystemPrompt(cc, app.PromptGeneral)
	}
	return ""
}

func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, req completion.ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	started := false
	_, err := s.chat.Stream(r.Context(), req, func(chunk string) error {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			started = true
		}
		payload, err := json.Marshal(map[string]string{"content": chunk})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil && !started {
		writeProviderError(w, r, err)
		return
	}
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("chat stream aborted", "error", err)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req orchestrate.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}
	result, err := s.intents.Classify(r.Context(), req)
	if err != nil {
		writeProviderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGenerateRoadmap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req roadmap.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "Topic is required")
		return
	}
	rm, err := s.roadmaps.Generate(r.Context(), req)
	if err != nil {
		writeProviderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"roadmap":     rm,
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGatherResources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req roadmap.GatherRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "Topic is required")
		return
	}
	result, err := s.roadmaps.GatherResources(r.Context(), req)
	if err != nil {
		writeProviderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGenerateVisual(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req visual.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}
	resp, err := s.visuals.Generate(r.Context(), req)
	if err != nil {
		writeProviderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVisualByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		resp, err := s.visuals.Archived(r.Context(), id)
		if err != nil {
			writeArchiveError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		if err := s.visuals.DeleteArchived(r.Context(), id); err != nil {
			writeArchiveError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleVisualURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	url, err := s.visuals.ArchivedURL(r.Context(), r.PathValue("id"))
	if err != nil {
		writeArchiveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func writeArchiveError(w http.ResponseWriter, err error) {
	if errors.Is(err, visual.ErrArchiveDisabled) {
		writeError(w, http.StatusNotFound, "visual archive not configured")
		return
	}
	writeError(w, http.StatusNotFound, "visual not found")
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Query      string `json:"query"`
		NumResults int    `json:"numResults"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "search client not configured")
		return
	}
	results, err := s.search.SearchAndContents(r.Context(), req.Query, req.NumResults)
	if err != nil {
		writeProviderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   len(results),
		"query":   req.Query,
	})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	result, err := s.feeds.Fetch(r.Context(), r.URL.Query().Get("category"), limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, "feed fetch failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// decodeJSON parses the request body with a 1 MiB cap.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeProviderError maps model and search provider failures onto stable
// client-facing statuses. Unrecognized errors surface as 500 with details.
func writeProviderError(w http.ResponseWriter, r *http.Request, err error) {
	logger := util.LoggerFromContext(r.Context())
	switch {
	case errors.Is(err, ai.ErrMissingAPIKey) || errors.Is(err, search.ErrMissingAPIKey):
		logger.Error("provider not configured", "error", err)
		writeError(w, http.StatusInternalServerError, "API configuration error")
	case strings.Contains(err.Error(), "rate limit"):
		writeError(w, http.StatusTooManyRequests, "Too many requests. Please wait a moment and try again.")
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout"):
		writeError(w, http.StatusGatewayTimeout, "Request timed out. Please try a shorter message.")
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":     "Failed to process request",
			"details":   err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, "project not found")
	case errors.Is(err, store.ErrMilestoneNotFound):
		writeError(w, http.StatusNotFound, "milestone not found")
	default:
		util.LoggerFromContext(r.Context()).Error("store operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
	}
}
