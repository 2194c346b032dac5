package server

import (
	"net/http"
	"testing"

	"mindcoach/pkg/domain"
)

func createTestProject(t *testing.T, srv *Server, body string) domain.Project {
	t.Helper()
	rec := doRequest(t, srv.Router(), http.MethodPost, "/projects", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var project domain.Project
	decodeBody(t, rec, &project)
	return project
}

func TestChatLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv.Router(), http.MethodPost, "/chats",
		`{"messages":[{"role":"user","content":"how do goroutines work under the hood"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save chat: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var chat domain.Chat
	decodeBody(t, rec, &chat)
	if chat.ID == "" {
		t.Fatal("expected generated chat id")
	}
	if chat.Title != "how do goroutines work under..." {
		t.Fatalf("unexpected derived title %q", chat.Title)
	}

	rec = doRequest(t, srv.Router(), http.MethodGet, "/chats/"+chat.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get chat: expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, srv.Router(), http.MethodGet, "/chats", "")
	var chats []domain.Chat
	decodeBody(t, rec, &chats)
	if len(chats) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(chats))
	}

	rec = doRequest(t, srv.Router(), http.MethodDelete, "/chats/"+chat.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete chat: expected 200, got %d", rec.Code)
	}
	rec = doRequest(t, srv.Router(), http.MethodGet, "/chats/"+chat.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestPruneChats(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodPost, "/chats/prune", `{"olderThanHours":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("prune: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res map[string]int
	decodeBody(t, rec, &res)
	if res["removed"] != 0 {
		t.Fatalf("expected nothing pruned, got %d", res["removed"])
	}
}

func TestProjectLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	project := createTestProject(t, srv, `{"title":"Learn Rust","description":"memory safety"}`)
	if project.ID == "" {
		t.Fatal("expected generated project id")
	}
	if project.Level != domain.LevelBeginner {
		t.Fatalf("expected default beginner level, got %q", project.Level)
	}

	rec := doRequest(t, srv.Router(), http.MethodGet, "/projects/"+project.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get project: expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, srv.Router(), http.MethodPut, "/projects/"+project.ID,
		`{"title":"Learn Rust Deeply","description":"memory safety","level":"intermediate"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update project: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated domain.Project
	decodeBody(t, rec, &updated)
	if updated.Title != "Learn Rust Deeply" || updated.ID != project.ID {
		t.Fatalf("unexpected update result %+v", updated)
	}

	rec = doRequest(t, srv.Router(), http.MethodDelete, "/projects/"+project.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete project: expected 200, got %d", rec.Code)
	}
	rec = doRequest(t, srv.Router(), http.MethodGet, "/projects/"+project.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestProjectCreateRequiresTitle(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodPost, "/projects", `{"description":"no title"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestProjectRoadmapAndMilestones(t *testing.T) {
	srv, _ := newTestServer(t)
	project := createTestProject(t, srv, `{"title":"Learn Go"}`)

	rec := doRequest(t, srv.Router(), http.MethodPut, "/projects/"+project.ID+"/roadmap",
		`{"title":"Go Roadmap","milestones":[
			{"id":"m1","title":"Basics","objective":"Syntax","status":"not-started"},
			{"id":"m2","title":"Concurrency","objective":"Goroutines","status":"not-started"}
		]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set roadmap: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv.Router(), http.MethodPatch, "/projects/"+project.ID+"/milestones/m1",
		`{"completed":true,"progress":100,"status":"completed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch milestone: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated domain.Project
	decodeBody(t, rec, &updated)
	if updated.Roadmap == nil || !updated.Roadmap.Milestones[0].Completed {
		t.Fatalf("milestone not updated: %+v", updated.Roadmap)
	}
	if updated.Progress != 50 {
		t.Fatalf("expected derived progress 50, got %d", updated.Progress)
	}

	rec = doRequest(t, srv.Router(), http.MethodPatch, "/projects/"+project.ID+"/milestones/nope", `{"progress":10}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown milestone, got %d", rec.Code)
	}
}

func TestMilestoneProgressFromChat(t *testing.T) {
	srv, _ := newTestServer(t)
	project := createTestProject(t, srv, `{"title":"Learn Go"}`)
	rec := doRequest(t, srv.Router(), http.MethodPut, "/projects/"+project.ID+"/roadmap",
		`{"title":"Go Roadmap","milestones":[{"id":"m1","title":"Basics","objective":"Syntax","status":"in-progress"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set roadmap: %d", rec.Code)
	}

	rec = doRequest(t, srv.Router(), http.MethodPost, "/projects/"+project.ID+"/milestones/m1/progress",
		`{"messages":[
			{"role":"user","content":"can you explain slices"},
			{"role":"assistant","content":"slices are views over arrays"},
			{"role":"user","content":"and maps"},
			{"role":"assistant","content":"maps are hash tables"},
			{"role":"user","content":"that makes sense now"},
			{"role":"assistant","content":"Great job, you got it. You are ready to move on."}
		]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("progress: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Project   domain.Project `json:"project"`
		WeakAreas []string       `json:"weakAreas"`
	}
	decodeBody(t, rec, &res)
	if res.Project.Roadmap.Milestones[0].Status != domain.MilestoneCompleted {
		t.Fatalf("expected milestone completed, got %q", res.Project.Roadmap.Milestones[0].Status)
	}
}

func TestProjectResources(t *testing.T) {
	srv, _ := newTestServer(t)
	project := createTestProject(t, srv, `{"title":"Learn Go"}`)

	rec := doRequest(t, srv.Router(), http.MethodPost, "/projects/"+project.ID+"/resources",
		`{"title":"Tour of Go","url":"https://go.dev/tour","type":"doc"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add resource: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated domain.Project
	decodeBody(t, rec, &updated)
	if len(updated.Resources) != 1 || updated.Resources[0].ID == "" {
		t.Fatalf("resource not persisted: %+v", updated.Resources)
	}
	if updated.Resources[0].AddedBy != "user" {
		t.Fatalf("expected default addedBy user, got %q", updated.Resources[0].AddedBy)
	}

	rec = doRequest(t, srv.Router(), http.MethodPost, "/projects/"+project.ID+"/resources", `{"title":"no url"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without url, got %d", rec.Code)
	}

	rec = doRequest(t, srv.Router(), http.MethodDelete,
		"/projects/"+project.ID+"/resources/"+updated.Resources[0].ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete resource: expected 200, got %d", rec.Code)
	}
}

func TestProjectChats(t *testing.T) {
	srv, _ := newTestServer(t)
	project := createTestProject(t, srv, `{"title":"Learn Go"}`)

	rec := doRequest(t, srv.Router(), http.MethodPost, "/projects/"+project.ID+"/chats",
		`{"messages":[{"role":"user","content":"walk me through interfaces"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save project chat: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var chat domain.Chat
	decodeBody(t, rec, &chat)
	if chat.ProjectID != project.ID {
		t.Fatalf("chat not bound to project: %q", chat.ProjectID)
	}

	rec = doRequest(t, srv.Router(), http.MethodGet, "/projects/"+project.ID+"/chats", "")
	var chats []domain.Chat
	decodeBody(t, rec, &chats)
	if len(chats) != 1 {
		t.Fatalf("expected 1 project chat, got %d", len(chats))
	}

	rec = doRequest(t, srv.Router(), http.MethodGet, "/projects/"+project.ID+"/chats/"+chat.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get project chat: expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, srv.Router(), http.MethodDelete, "/projects/"+project.ID+"/chats/"+chat.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete project chat: expected 200, got %d", rec.Code)
	}
	rec = doRequest(t, srv.Router(), http.MethodGet, "/projects/"+project.ID+"/chats/"+chat.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestProjectAnalyticsAndWeakAreas(t *testing.T) {
	srv, _ := newTestServer(t)
	project := createTestProject(t, srv, `{"title":"Learn Go"}`)

	rec := doRequest(t, srv.Router(), http.MethodGet, "/projects/"+project.ID+"/analytics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv.Router(), http.MethodGet, "/projects/unknown/analytics", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown project, got %d", rec.Code)
	}

	rec = doRequest(t, srv.Router(), http.MethodGet, "/projects/"+project.ID+"/weak-areas", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("weak areas: expected 200, got %d", rec.Code)
	}
	var res map[string][]string
	decodeBody(t, rec, &res)
	if _, ok := res["weakAreas"]; !ok {
		t.Fatalf("missing weakAreas key in %s", rec.Body.String())
	}
}

func TestResumePointer(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv.Router(), http.MethodGet, "/resume", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("resume: expected 200, got %d", rec.Code)
	}
	var empty map[string]*domain.ResumePointer
	decodeBody(t, rec, &empty)
	if empty["resume"] != nil {
		t.Fatalf("expected null resume pointer, got %+v", empty["resume"])
	}

	rec = doRequest(t, srv.Router(), http.MethodPost, "/chats",
		`{"title":"Slices","messages":[
			{"role":"user","content":"explain slices"},
			{"role":"assistant","content":"a slice is a view over an array"}
		]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save chat: %d", rec.Code)
	}

	rec = doRequest(t, srv.Router(), http.MethodGet, "/resume", "")
	var res map[string]*domain.ResumePointer
	decodeBody(t, rec, &res)
	if res["resume"] == nil || res["resume"].ChatTitle != "Slices" {
		t.Fatalf("unexpected resume pointer %+v", res["resume"])
	}
}

func TestUserContextRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv.Router(), http.MethodPut, "/context",
		`{"currentProject":"p1","preferredExplanationStyle":"visual"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put context: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv.Router(), http.MethodGet, "/context", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get context: expected 200, got %d", rec.Code)
	}
	var ctx domain.UserContext
	decodeBody(t, rec, &ctx)
	if ctx.CurrentProject != "p1" || ctx.PreferredExplanationStyle != "visual" {
		t.Fatalf("context not persisted: %+v", ctx)
	}
}
