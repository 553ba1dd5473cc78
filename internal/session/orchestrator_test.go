package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/Maaaxiii/toolchat/internal/backend"
	"github.com/Maaaxiii/toolchat/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ============================================================================
// Fakes
// ============================================================================

type fakeSession struct {
	reply     string
	err       error
	snapshots []string

	// When started is non-nil, each generation announces itself on started
	// and then waits for a receive on block before returning.
	started chan struct{}
	block   chan struct{}

	generateCalls int
	prewarmCalls  int
	resetCalls    int
	lastPrompt    string
}

func (s *fakeSession) StreamGenerate(_ context.Context, prompt string, onPartial backend.PartialFunc) (string, error) {
	s.generateCalls++
	s.lastPrompt = prompt
	if s.started != nil {
		s.started <- struct{}{}
		<-s.block
	}
	if s.err != nil {
		return "", s.err
	}
	if onPartial != nil {
		for _, snap := range s.snapshots {
			onPartial(snap)
		}
	}
	return s.reply, nil
}

func (s *fakeSession) Prewarm(_ context.Context) { s.prewarmCalls++ }
func (s *fakeSession) Reset()                    { s.resetCalls++ }

type fakeClient struct {
	status  backend.Status
	session *fakeSession
	err     error

	createCalls   int
	lastPreamble  string
	lastToolNames []string
}

func (c *fakeClient) Status(_ context.Context) backend.Status { return c.status }

func (c *fakeClient) CreateSession(_ context.Context, preamble string, subset []*tools.Capability) (backend.Session, error) {
	c.createCalls++
	c.lastPreamble = preamble
	c.lastToolNames = nil
	for _, capability := range subset {
		c.lastToolNames = append(c.lastToolNames, capability.Name())
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.session, nil
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	return tools.NewRegistry(
		tools.NewTimeCapability(nil),
		tools.NewWeatherCapability(nil),
	)
}

func newTestOrchestrator(t *testing.T, client *fakeClient, registry *tools.Registry) *Orchestrator {
	t.Helper()
	o, err := New(Config{Client: client, Registry: registry})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

// ============================================================================
// Session lifecycle
// ============================================================================

func TestEnsureCurrentSession_BuildsOnce(t *testing.T) {
	client := &fakeClient{session: &fakeSession{reply: "ok"}}
	o := newTestOrchestrator(t, client, testRegistry(t))
	ctx := context.Background()

	if err := o.EnsureCurrentSession(ctx); err != nil {
		t.Fatalf("EnsureCurrentSession() error = %v", err)
	}
	if err := o.EnsureCurrentSession(ctx); err != nil {
		t.Fatalf("EnsureCurrentSession() error = %v", err)
	}

	if client.createCalls != 1 {
		t.Errorf("CreateSession called %d times, want 1 (same subset must be reused)", client.createCalls)
	}
}

func TestEnsureCurrentSession_PreambleListsActiveTools(t *testing.T) {
	client := &fakeClient{session: &fakeSession{reply: "ok"}}
	o := newTestOrchestrator(t, client, testRegistry(t))

	if err := o.EnsureCurrentSession(context.Background()); err != nil {
		t.Fatalf("EnsureCurrentSession() error = %v", err)
	}

	if !strings.HasPrefix(client.lastPreamble, DefaultPreamble) {
		t.Errorf("preamble should start with the base instruction:\n%s", client.lastPreamble)
	}
	for _, name := range []string{tools.TimeName, tools.WeatherName} {
		if !strings.Contains(client.lastPreamble, "- "+name+":") {
			t.Errorf("preamble missing tool %s:\n%s", name, client.lastPreamble)
		}
	}
}

func TestEnsureCurrentSession_RebuildsAfterToggle(t *testing.T) {
	client := &fakeClient{session: &fakeSession{reply: "ok"}}
	registry := testRegistry(t)
	o := newTestOrchestrator(t, client, registry)
	ctx := context.Background()

	if err := o.EnsureCurrentSession(ctx); err != nil {
		t.Fatal(err)
	}

	registry.Toggle(tools.WeatherName)
	if err := o.EnsureCurrentSession(ctx); err != nil {
		t.Fatal(err)
	}

	if client.createCalls != 2 {
		t.Fatalf("CreateSession called %d times, want 2 after toggle", client.createCalls)
	}
	if len(client.lastToolNames) != 1 || client.lastToolNames[0] != tools.TimeName {
		t.Errorf("rebuilt session bound tools %v, want [%s]", client.lastToolNames, tools.TimeName)
	}
	if strings.Contains(client.lastPreamble, tools.WeatherName) {
		t.Errorf("rebuilt preamble should not mention the disabled tool:\n%s", client.lastPreamble)
	}
}

func TestEnsureCurrentSession_EmptySubset(t *testing.T) {
	client := &fakeClient{session: &fakeSession{reply: "ok"}}
	registry := testRegistry(t)
	registry.Toggle(tools.TimeName)
	registry.Toggle(tools.WeatherName)
	o := newTestOrchestrator(t, client, registry)

	if err := o.EnsureCurrentSession(context.Background()); err != nil {
		t.Fatalf("empty subset should still build a session: %v", err)
	}
	if client.lastPreamble != DefaultPreamble {
		t.Errorf("empty subset preamble should be the bare instruction:\n%s", client.lastPreamble)
	}
	if len(client.lastToolNames) != 0 {
		t.Errorf("bound tools = %v, want none", client.lastToolNames)
	}
}

func TestEnsureCurrentSession_Unavailable(t *testing.T) {
	client := &fakeClient{status: backend.StatusFeatureDisabled}
	o := newTestOrchestrator(t, client, testRegistry(t))

	err := o.EnsureCurrentSession(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("EnsureCurrentSession() error = %v, want ErrUnavailable", err)
	}
	if client.createCalls != 0 {
		t.Error("no session should be created while unavailable")
	}
}

// ============================================================================
// GenerateReply
// ============================================================================

func TestGenerateReply_Success(t *testing.T) {
	session := &fakeSession{reply: "hello there", snapshots: []string{"hel", "hello there"}}
	client := &fakeClient{session: session}
	o := newTestOrchestrator(t, client, testRegistry(t))

	var seen []string
	got := o.GenerateReply(context.Background(), "hi", func(snapshot string) {
		seen = append(seen, snapshot)
	})

	if got != "hello there" {
		t.Errorf("GenerateReply() = %q, want hello there", got)
	}
	if o.LastError() != "" {
		t.Errorf("LastError() = %q, want empty after success", o.LastError())
	}
	if len(seen) != 2 || seen[1] != "hello there" {
		t.Errorf("partial snapshots = %v", seen)
	}
	if session.lastPrompt != "hi" {
		t.Errorf("session received prompt %q", session.lastPrompt)
	}
}

func TestGenerateReply_BackendError(t *testing.T) {
	session := &fakeSession{err: errors.New("quota exceeded")}
	client := &fakeClient{session: session}
	o := newTestOrchestrator(t, client, testRegistry(t))

	got := o.GenerateReply(context.Background(), "hi", nil)

	if got != GenerationFallbackMessage {
		t.Errorf("GenerateReply() = %q, want fallback", got)
	}
	if !strings.Contains(o.LastError(), "quota exceeded") {
		t.Errorf("LastError() = %q, should carry the cause", o.LastError())
	}
}

func TestGenerateReply_EmptyReply(t *testing.T) {
	session := &fakeSession{reply: "   \n"}
	client := &fakeClient{session: session}
	o := newTestOrchestrator(t, client, testRegistry(t))

	got := o.GenerateReply(context.Background(), "hi", nil)

	if got != EmptyReplyFallbackMessage {
		t.Errorf("GenerateReply() = %q, want empty-reply fallback", got)
	}
	if o.LastError() != "The model did not return any text." {
		t.Errorf("LastError() = %q", o.LastError())
	}
}

func TestGenerateReply_Unavailable(t *testing.T) {
	client := &fakeClient{status: backend.StatusModelNotReady}
	o := newTestOrchestrator(t, client, testRegistry(t))

	got := o.GenerateReply(context.Background(), "hi", nil)

	if got != GenerationFallbackMessage {
		t.Errorf("GenerateReply() = %q, want fallback", got)
	}
	if o.LastError() == "" {
		t.Error("LastError() should be set when the backend is unavailable")
	}
}

func TestGenerateReply_ErrorStateClearedOnNextCall(t *testing.T) {
	session := &fakeSession{err: errors.New("boom")}
	client := &fakeClient{session: session}
	o := newTestOrchestrator(t, client, testRegistry(t))
	ctx := context.Background()

	o.GenerateReply(ctx, "first", nil)
	if o.LastError() == "" {
		t.Fatal("expected recorded error after failure")
	}

	session.err = nil
	session.reply = "recovered"
	if got := o.GenerateReply(ctx, "second", nil); got != "recovered" {
		t.Fatalf("GenerateReply() = %q", got)
	}
	if o.LastError() != "" {
		t.Errorf("LastError() = %q, want cleared after success", o.LastError())
	}
}

func TestGenerateReply_LoadingTransitions(t *testing.T) {
	session := &fakeSession{reply: "ok"}
	client := &fakeClient{session: session}
	o := newTestOrchestrator(t, client, testRegistry(t))

	var states []bool
	o.Subscribe(func() {
		states = append(states, o.IsLoading())
	})

	o.GenerateReply(context.Background(), "hi", nil)

	if o.IsLoading() {
		t.Error("IsLoading() should be false after the call returns")
	}
	// First observed transition turns loading on; a later one turns it off.
	if len(states) < 2 || !states[0] {
		t.Fatalf("observed transitions %v, want leading true", states)
	}
	if states[len(states)-1] {
		t.Errorf("observed transitions %v, want trailing false", states)
	}
}

func TestGenerateReply_LoadingClearedOnFailure(t *testing.T) {
	client := &fakeClient{status: backend.StatusDeviceNotEligible}
	o := newTestOrchestrator(t, client, testRegistry(t))

	o.GenerateReply(context.Background(), "hi", nil)

	if o.IsLoading() {
		t.Error("IsLoading() must reset to false on the failure path too")
	}
}

func TestGenerateReply_QueuedCallKeepsLoading(t *testing.T) {
	session := &fakeSession{
		reply:   "ok",
		started: make(chan struct{}),
		block:   make(chan struct{}),
	}
	client := &fakeClient{session: session}
	o := newTestOrchestrator(t, client, testRegistry(t))
	ctx := context.Background()

	done := make(chan struct{}, 2)
	go func() {
		o.GenerateReply(ctx, "first", nil)
		done <- struct{}{}
	}()
	<-session.started

	go func() {
		o.GenerateReply(ctx, "second", nil)
		done <- struct{}{}
	}()

	// Let the first call finish completely while the second is still queued.
	session.block <- struct{}{}
	<-done

	// The second call is now generating; the first call's exit must not have
	// knocked the loading flag back to false.
	<-session.started
	if !o.IsLoading() {
		t.Error("IsLoading() must stay true while a queued call is generating")
	}

	session.block <- struct{}{}
	<-done
	if o.IsLoading() {
		t.Error("IsLoading() should be false once every call has returned")
	}
}

// ============================================================================
// ClearCurrent / Prewarm
// ============================================================================

func TestClearCurrent(t *testing.T) {
	session := &fakeSession{reply: "ok"}
	client := &fakeClient{session: session}
	o := newTestOrchestrator(t, client, testRegistry(t))
	ctx := context.Background()

	// No session yet: a no-op.
	o.ClearCurrent()
	if session.resetCalls != 0 {
		t.Error("ClearCurrent before any session should not reset anything")
	}

	o.GenerateReply(ctx, "hi", nil)
	o.ClearCurrent()

	if session.resetCalls != 1 {
		t.Errorf("resetCalls = %d, want 1", session.resetCalls)
	}
	if client.createCalls != 1 {
		t.Errorf("ClearCurrent must keep the session slot, got %d creates", client.createCalls)
	}
}

func TestPrewarm(t *testing.T) {
	session := &fakeSession{reply: "ok"}
	client := &fakeClient{session: session}
	o := newTestOrchestrator(t, client, testRegistry(t))

	o.Prewarm(context.Background())

	if client.createCalls != 1 {
		t.Errorf("Prewarm should build the session, got %d creates", client.createCalls)
	}
	if session.prewarmCalls != 1 {
		t.Errorf("prewarmCalls = %d, want 1", session.prewarmCalls)
	}
}

func TestPrewarm_UnavailableIsSilent(t *testing.T) {
	client := &fakeClient{status: backend.StatusFeatureDisabled}
	o := newTestOrchestrator(t, client, testRegistry(t))

	// Must not panic or error; prewarm is best-effort.
	o.Prewarm(context.Background())

	if client.createCalls != 0 {
		t.Error("no session should be created while unavailable")
	}
}
