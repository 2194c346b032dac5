package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"mindcoach/internal/completion"
	"mindcoach/internal/discover"
	"mindcoach/internal/orchestrate"
	"mindcoach/internal/ratelimit"
	"mindcoach/internal/roadmap"
	"mindcoach/internal/visual"
	"mindcoach/pkg/ai"
	"mindcoach/pkg/domain"
	"mindcoach/pkg/search"
	"mindcoach/pkg/store"
)

type fakeOrchestrator struct {
	result domain.OrchestrationResult
	err    error
	last   orchestrate.Request
}

func (f *fakeOrchestrator) Classify(_ context.Context, req orchestrate.Request) (domain.OrchestrationResult, error) {
	f.last = req
	return f.result, f.err
}

type fakeGateway struct {
	result    completion.Result
	err       error
	chunks    []string
	streamErr error
	last      completion.ChatRequest
}

func (f *fakeGateway) Complete(_ context.Context, req completion.ChatRequest) (completion.Result, error) {
	f.last = req
	return f.result, f.err
}

func (f *fakeGateway) Stream(_ context.Context, req completion.ChatRequest, onChunk func(string) error) (completion.Agent, error) {
	f.last = req
	if f.streamErr != nil {
		return "", f.streamErr
	}
	for _, chunk := range f.chunks {
		if err := onChunk(chunk); err != nil {
			return "", err
		}
	}
	return completion.AgentGeneral, nil
}

type fakeRoadmaps struct {
	rm     domain.Roadmap
	gather roadmap.GatherResult
	err    error
}

func (f *fakeRoadmaps) Generate(_ context.Context, _ roadmap.Request) (domain.Roadmap, error) {
	return f.rm, f.err
}

func (f *fakeRoadmaps) GatherResources(_ context.Context, _ roadmap.GatherRequest) (roadmap.GatherResult, error) {
	return f.gather, f.err
}

type fakeVisuals struct {
	resp       visual.Response
	err        error
	archived   map[string]visual.Response
	archiveErr error
}

func (f *fakeVisuals) Generate(_ context.Context, _ visual.Request) (visual.Response, error) {
	return f.resp, f.err
}

func (f *fakeVisuals) Archived(_ context.Context, id string) (visual.Response, error) {
	if f.archiveErr != nil {
		return visual.Response{}, f.archiveErr
	}
	resp, ok := f.archived[id]
	if !ok {
		return visual.Response{}, errors.New("get visual: no such key")
	}
	return resp, nil
}

func (f *fakeVisuals) ArchivedURL(_ context.Context, id string) (string, error) {
	if f.archiveErr != nil {
		return "", f.archiveErr
	}
	return "https://minio.example/" + id, nil
}

func (f *fakeVisuals) DeleteArchived(_ context.Context, id string) error {
	if f.archiveErr != nil {
		return f.archiveErr
	}
	delete(f.archived, id)
	return nil
}

type fakeFeeds struct {
	result   discover.Result
	err      error
	category string
	limit    int
}

func (f *fakeFeeds) Fetch(_ context.Context, category string, limit int) (discover.Result, error) {
	f.category = category
	f.limit = limit
	return f.result, f.err
}

type fakeSearch struct {
	results []search.Result
	err     error
}

func (f *fakeSearch) SearchAndContents(_ context.Context, _ string, _ int) ([]search.Result, error) {
	return f.results, f.err
}

type testDeps struct {
	store    store.Store
	intents  *fakeOrchestrator
	chat     *fakeGateway
	roadmaps *fakeRoadmaps
	visuals  *fakeVisuals
	feeds    *fakeFeeds
	search   *fakeSearch
}

func newTestServer(t *testing.T) (*Server, *testDeps) {
	t.Helper()
	deps := &testDeps{
		store:    store.NewMemoryStore(),
		intents:  &fakeOrchestrator{},
		chat:     &fakeGateway{},
		roadmaps: &fakeRoadmaps{},
		visuals:  &fakeVisuals{},
		feeds:    &fakeFeeds{},
		search:   &fakeSearch{},
	}
	srv := New(Config{
		Store:    deps.store,
		Intents:  deps.intents,
		Chat:     deps.chat,
		Roadmaps: deps.roadmaps,
		Visuals:  deps.visuals,
		Feeds:    deps.feeds,
		Search:   deps.search,
	})
	return srv, deps
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestChatNonStreaming(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.chat.result = completion.Result{Response: "hi there", Model: ai.DefaultModel, Agent: completion.AgentGeneral}
	rec := doRequest(t, srv.Router(), http.MethodPost, "/chat",
		`{"messages":[{"role":"user","content":"hello"}],"stream":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res completion.Result
	decodeBody(t, rec, &res)
	if res.Response != "hi there" {
		t.Fatalf("unexpected response %q", res.Response)
	}
	if deps.chat.last.ContextPrompt != "" {
		t.Fatalf("expected no context prompt without chat id, got %q", deps.chat.last.ContextPrompt)
	}
}

func TestChatStreaming(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.chat.chunks = []string{"Hel", "lo"}
	rec := doRequest(t, srv.Router(), http.MethodPost, "/chat",
		`{"messages":[{"role":"user","content":"hello"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `data: {"content":"Hel"}`) || !strings.Contains(body, `data: {"content":"lo"}`) {
		t.Fatalf("missing chunks in %q", body)
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]") {
		t.Fatalf("stream not terminated: %q", body)
	}
}

func TestChatStreamFailureBeforeStart(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.chat.streamErr = ai.ErrMissingAPIKey
	rec := doRequest(t, srv.Router(), http.MethodPost, "/chat",
		`{"messages":[{"role":"user","content":"hello"}]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var res map[string]string
	decodeBody(t, rec, &res)
	if res["error"] != "API configuration error" {
		t.Fatalf("unexpected error %q", res["error"])
	}
}

func TestChatRequiresMessages(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodPost, "/chat", `{"messages":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatProviderRateLimit(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.chat.err = errors.New("rate limit exceeded: please slow down")
	rec := doRequest(t, srv.Router(), http.MethodPost, "/chat",
		`{"messages":[{"role":"user","content":"hello"}],"stream":false}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestChatProviderTimeout(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.chat.err = context.DeadlineExceeded
	rec := doRequest(t, srv.Router(), http.MethodPost, "/chat",
		`{"messages":[{"role":"user","content":"hello"}],"stream":false}`)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
}

func TestChatProjectContextPrompt(t *testing.T) {
	srv, deps := newTestServer(t)
	project, err := deps.store.CreateProject(domain.Project{
		Title:       "Learn Go",
		Description: "systems programming",
		Level:       domain.LevelBeginner,
		Roadmap: &domain.Roadmap{
			Title: "Go Roadmap",
			Milestones: []domain.Milestone{
				{ID: "m1", Title: "Basics", Objective: "Syntax and tooling", Status: domain.MilestoneInProgress},
			},
		},
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	deps.chat.result = completion.Result{Response: "ok"}
	body := `{"messages":[{"role":"user","content":"hello"}],"stream":false,` +
		`"context":{"projectId":"` + project.ID + `"}}`
	rec := doRequest(t, srv.Router(), http.MethodPost, "/chat", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(deps.chat.last.ContextPrompt, "PROJECT DETAILS") {
		t.Fatalf("expected project context prompt, got %q", deps.chat.last.ContextPrompt)
	}
	if !strings.Contains(deps.chat.last.ContextPrompt, "Learn Go") {
		t.Fatalf("project title missing from prompt")
	}
}

func TestOrchestrateRequiresMessage(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodPost, "/orchestrate", `{"message":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var res map[string]string
	decodeBody(t, rec, &res)
	if res["error"] != "Message is required" {
		t.Fatalf("unexpected error %q", res["error"])
	}
}

func TestOrchestratePassesResult(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.intents.result = domain.OrchestrationResult{
		Intent:     domain.IntentProjectCreation,
		Confidence: 0.9,
		SuggestedAction: domain.SuggestedAction{
			Type: domain.ActionCreateProject,
		},
	}
	rec := doRequest(t, srv.Router(), http.MethodPost, "/orchestrate", `{"message":"I want to learn Rust"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res domain.OrchestrationResult
	decodeBody(t, rec, &res)
	if res.Intent != domain.IntentProjectCreation {
		t.Fatalf("unexpected intent %q", res.Intent)
	}
	if deps.intents.last.Message != "I want to learn Rust" {
		t.Fatalf("message not forwarded: %q", deps.intents.last.Message)
	}
}

func TestGenerateRoadmapEnvelope(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.roadmaps.rm = domain.Roadmap{Title: "Rust Roadmap", Milestones: []domain.Milestone{{ID: "1", Title: "Ownership"}}}
	rec := doRequest(t, srv.Router(), http.MethodPost, "/generate-roadmap", `{"topic":"rust"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res struct {
		Roadmap     domain.Roadmap `json:"roadmap"`
		GeneratedAt string         `json:"generatedAt"`
	}
	decodeBody(t, rec, &res)
	if res.Roadmap.Title != "Rust Roadmap" {
		t.Fatalf("unexpected roadmap %q", res.Roadmap.Title)
	}
	if _, err := time.Parse(time.RFC3339, res.GeneratedAt); err != nil {
		t.Fatalf("bad generatedAt %q: %v", res.GeneratedAt, err)
	}
}

func TestGenerateRoadmapRequiresTopic(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodPost, "/generate-roadmap", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGenerateVisualRequiresQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodPost, "/generate-visual", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var res map[string]string
	decodeBody(t, rec, &res)
	if res["error"] != "Query is required" {
		t.Fatalf("unexpected error %q", res["error"])
	}
}

func TestVisualArchiveReplay(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.visuals.archived = map[string]visual.Response{
		"abc": {Type: "comparison-chart", Title: "REST vs GraphQL", ChartType: "radar"},
	}

	rec := doRequest(t, srv.Router(), http.MethodGet, "/visuals/abc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp visual.Response
	decodeBody(t, rec, &resp)
	if resp.Title != "REST vs GraphQL" {
		t.Fatalf("unexpected visual %+v", resp)
	}

	rec = doRequest(t, srv.Router(), http.MethodGet, "/visuals/abc/url", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("url: expected 200, got %d", rec.Code)
	}
	var link map[string]string
	decodeBody(t, rec, &link)
	if link["url"] != "https://minio.example/abc" {
		t.Fatalf("unexpected url %q", link["url"])
	}

	rec = doRequest(t, srv.Router(), http.MethodDelete, "/visuals/abc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	rec = doRequest(t, srv.Router(), http.MethodGet, "/visuals/abc", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestVisualArchiveDisabled(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.visuals.archiveErr = visual.ErrArchiveDisabled
	rec := doRequest(t, srv.Router(), http.MethodGet, "/visuals/abc", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var res map[string]string
	decodeBody(t, rec, &res)
	if res["error"] != "visual archive not configured" {
		t.Fatalf("unexpected error %q", res["error"])
	}
}

func TestSearchEnvelope(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.search.results = []search.Result{
		{Title: "Go by Example", URL: "https://gobyexample.com"},
		{Title: "Tour of Go", URL: "https://go.dev/tour"},
	}
	rec := doRequest(t, srv.Router(), http.MethodPost, "/search", `{"query":"go tutorial"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res struct {
		Results []search.Result `json:"results"`
		Total   int             `json:"total"`
		Query   string          `json:"query"`
	}
	decodeBody(t, rec, &res)
	if res.Total != 2 || res.Query != "go tutorial" || len(res.Results) != 2 {
		t.Fatalf("unexpected envelope %+v", res)
	}
}

func TestDiscoverForwardsFilters(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.feeds.result = discover.Result{Items: []discover.Item{}, Category: "ai"}
	rec := doRequest(t, srv.Router(), http.MethodGet, "/discover?category=ai&limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if deps.feeds.category != "ai" || deps.feeds.limit != 5 {
		t.Fatalf("filters not forwarded: category=%q limit=%d", deps.feeds.category, deps.feeds.limit)
	}
}

func TestDiscoverRejectsBadLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodGet, "/discover?limit=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMethodNotAllowedIsJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodGet, "/chat", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	var res map[string]string
	decodeBody(t, rec, &res)
	if res["error"] != "method not allowed" {
		t.Fatalf("unexpected error %q", res["error"])
	}
}

func TestPreflightAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodOptions, "/chat", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
}

func TestRateLimitBlocksOverQuota(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := ratelimit.NewFixedWindowLimiterWithClient(client, 1, time.Minute)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}

	deps := &testDeps{store: store.NewMemoryStore(), intents: &fakeOrchestrator{}, chat: &fakeGateway{result: completion.Result{Response: "ok"}}}
	srv := New(Config{Store: deps.store, Intents: deps.intents, Chat: deps.chat, Limiter: limiter})

	body := `{"messages":[{"role":"user","content":"hello"}],"stream":false}`
	first := doRequest(t, srv.Router(), http.MethodPost, "/chat", body)
	if first.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", first.Code)
	}
	second := doRequest(t, srv.Router(), http.MethodPost, "/chat", body)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", second.Code)
	}
}
