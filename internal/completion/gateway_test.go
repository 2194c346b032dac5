package completion

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"mindcoach/pkg/ai"
	"mindcoach/pkg/domain"
	"mindcoach/pkg/retry"
)

type fakeClient struct {
	completeCalls int
	streamCalls   int
	lastRequest   ai.Request
	completion    ai.Completion
	completeErrs  []error
	chunks        []string
	streamErr     error
}

func (f *fakeClient) Complete(ctx context.Context, req ai.Request) (ai.Completion, error) {
	idx := f.completeCalls
	f.completeCalls++
	f.lastRequest = req
	if idx < len(f.completeErrs) && f.completeErrs[idx] != nil {
		return ai.Completion{}, f.completeErrs[idx]
	}
	return f.completion, nil
}

func (f *fakeClient) Stream(ctx context.Context, req ai.Request) (ai.StreamReader, error) {
	f.streamCalls++
	f.lastRequest = req
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return &fakeStream{chunks: f.chunks}, nil
}

type fakeStream struct {
	chunks []string
	pos    int
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

func fastGateway(c client) *Gateway {
	g := NewGateway(c)
	g.policy = retry.Policy{Attempts: 3, Backoff: 0}
	return g
}

func userMsg(content string) domain.Message {
	return domain.Message{Role: domain.RoleUser, Content: content}
}

func TestDetectAgent(t *testing.T) {
	cases := []struct {
		name     string
		chatCtx  *ChatContext
		messages []domain.Message
		want     Agent
	}{
		{"project context wins", &ChatContext{ProjectID: "p1"}, []domain.Message{userMsg("latest trends please")}, AgentProject},
		{"consultation keywords", nil, []domain.Message{userMsg("I want to learn rust")}, AgentConsultation},
		{"discovery keywords", nil, []domain.Message{userMsg("what are the latest industry tools?")}, AgentDiscovery},
		{"default general", nil, []domain.Message{userMsg("hello there")}, AgentGeneral},
		{"only last three messages scanned", nil, []domain.Message{
			userMsg("help me learn go"),
			userMsg("thanks"), userMsg("ok"), userMsg("sounds good"),
		}, AgentGeneral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectAgent(tc.chatCtx, tc.messages); got != tc.want {
				t.Fatalf("agent = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNeedsReasoning(t *testing.T) {
	if !NeedsReasoning("Can you explain how does garbage collection work?") {
		t.Fatal("deep question not detected")
	}
	if NeedsReasoning("hi there") {
		t.Fatal("greeting flagged as reasoning")
	}
}

func TestCompleteReasoningAdjustsModelRequest(t *testing.T) {
	c := &fakeClient{completion: ai.Completion{Content: "because of tri-color marking"}}
	g := fastGateway(c)

	got, err := g.Complete(context.Background(), ChatRequest{
		Messages: []domain.Message{userMsg("walk me through go's garbage collector")},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !got.Reasoning {
		t.Fatal("reasoning not detected")
	}
	if c.lastRequest.Temperature != 0.5 || c.lastRequest.MaxTokens != 4096 {
		t.Fatalf("model params = %v/%d, want 0.5/4096", c.lastRequest.Temperature, c.lastRequest.MaxTokens)
	}
	if got.Model != ai.DefaultModel {
		t.Fatalf("model = %s", got.Model)
	}
}

func TestCompleteDefaultParams(t *testing.T) {
	c := &fakeClient{completion: ai.Completion{Content: "hi!"}}
	g := fastGateway(c)

	got, err := g.Complete(context.Background(), ChatRequest{Messages: []domain.Message{userMsg("hello")}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Reasoning {
		t.Fatal("greeting should not trigger reasoning")
	}
	if c.lastRequest.Temperature != 0.7 || c.lastRequest.MaxTokens != 2048 {
		t.Fatalf("model params = %v/%d, want 0.7/2048", c.lastRequest.Temperature, c.lastRequest.MaxTokens)
	}
	if got.Agent != AgentGeneral {
		t.Fatalf("agent = %s", got.Agent)
	}
}

func TestCompleteSanitizesMessagesAndPrependsPrompts(t *testing.T) {
	c := &fakeClient{completion: ai.Completion{Content: "ok"}}
	g := fastGateway(c)

	_, err := g.Complete(context.Background(), ChatRequest{
		Messages:      []domain.Message{{Role: domain.RoleUser, Content: "hello", IsStreaming: true}},
		ContextPrompt: "PROJECT CONTEXT GOES HERE",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	msgs := c.lastRequest.Messages
	if len(msgs) != 3 {
		t.Fatalf("message count = %d, want context + persona + user", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "PROJECT CONTEXT GOES HERE" {
		t.Fatalf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != "system" || !strings.Contains(msgs[1].Content, "You are MindCoach") {
		t.Fatalf("persona message = %+v", msgs[1])
	}
	if msgs[2].Role != "user" || msgs[2].Content != "hello" {
		t.Fatalf("user message = %+v", msgs[2])
	}
}

func TestCompleteRetriesProviderFailures(t *testing.T) {
	c := &fakeClient{
		completeErrs: []error{errors.New("flaky"), nil},
		completion:   ai.Completion{Content: "recovered"},
	}
	g := fastGateway(c)

	got, err := g.Complete(context.Background(), ChatRequest{Messages: []domain.Message{userMsg("hello")}})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if c.completeCalls != 2 {
		t.Fatalf("calls = %d, want 2", c.completeCalls)
	}
	if got.Response != "recovered" {
		t.Fatalf("response = %q", got.Response)
	}
}

func TestStreamAssemblesChunks(t *testing.T) {
	c := &fakeClient{chunks: []string{"Hel", "lo"}}
	g := fastGateway(c)

	var out string
	var calls int
	agent, err := g.Stream(context.Background(), ChatRequest{Messages: []domain.Message{userMsg("hello")}},
		func(chunk string) error {
			calls++
			out += chunk
			return nil
		})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if out != "Hello" || calls != 2 {
		t.Fatalf("assembled %q in %d calls", out, calls)
	}
	if agent != AgentGeneral {
		t.Fatalf("agent = %s", agent)
	}
}

func TestStreamCallbackErrorAbandonsStream(t *testing.T) {
	c := &fakeClient{chunks: []string{"a", "b", "c"}}
	g := fastGateway(c)

	boom := errors.New("client went away")
	_, err := g.Stream(context.Background(), ChatRequest{Messages: []domain.Message{userMsg("hello")}},
		func(string) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want callback error", err)
	}
}

func TestWantsStreamDefaultsTrue(t *testing.T) {
	if !(ChatRequest{}).WantsStream() {
		t.Fatal("stream should default to true")
	}
	off := false
	if (ChatRequest{Stream: &off}).WantsStream() {
		t.Fatal("explicit false ignored")
	}
}
