package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/toolrelay/toolrelay/internal/registry"
	"github.com/toolrelay/toolrelay/internal/schema"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) notify(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Status
	}
	return out
}

func newTestCoordinator(t *testing.T, opts Options) (*Coordinator, *recorder) {
	t.Helper()
	reg := registry.New(nil)
	echo := schema.Object().WithProperty("x", schema.String()).WithRequired("x")
	if _, err := reg.Register(context.Background(), registry.Descriptor{Name: "echo", Schema: echo}); err != nil {
		t.Fatalf("register echo: %v", err)
	}
	if _, err := reg.Register(context.Background(), registry.Descriptor{Name: "remote", Schema: schema.Object(), Provider: "peer-2"}); err != nil {
		t.Fatalf("register remote: %v", err)
	}
	c := NewCoordinator(reg, opts)
	rec := &recorder{}
	c.SetNotifier(rec.notify)
	return c, rec
}

func codeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ─── Begin ─────────────────────────────────────────────────────────────────

func TestBegin_EchoCompletes(t *testing.T) {
	c, rec := newTestCoordinator(t, Options{})

	inv, err := c.Begin(BeginRequest{ExecutionID: "e1", ToolName: "echo", Args: map[string]any{"x": "hi"}, Origin: "peer-1"})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if inv.Status != StatusRunning {
		t.Fatalf("expected running, got %s", inv.Status)
	}

	done, err := c.Complete("e1", inv.Args)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Result.(map[string]any)["x"] != "hi" {
		t.Errorf("unexpected result %v", done.Result)
	}

	want := []Status{StatusStarted, StatusRunning, StatusCompleted}
	got := rec.statuses()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if rec.events[0].Origin != "peer-1" {
		t.Errorf("expected origin on events, got %q", rec.events[0].Origin)
	}
}

func TestBegin_InvalidArgsNeverStarts(t *testing.T) {
	c, rec := newTestCoordinator(t, Options{})

	_, err := c.Begin(BeginRequest{ExecutionID: "e1", ToolName: "echo", Args: map[string]any{}})
	if codeOf(err) != CodeValidationFailed {
		t.Fatalf("expected INVALID_ARGUMENTS, got %v", err)
	}
	var e *Error
	errors.As(err, &e)
	if len(e.Details) != 1 || e.Details[0] != "x: required property is missing" {
		t.Errorf("unexpected details %v", e.Details)
	}
	if len(rec.statuses()) != 0 {
		t.Error("expected no events for rejected Begin")
	}
	if _, ok := c.Get("e1"); ok {
		t.Error("expected nothing tracked")
	}
}

func TestBegin_NilArgsDefaultToObject(t *testing.T) {
	c, _ := newTestCoordinator(t, Options{})
	inv, err := c.Begin(BeginRequest{ExecutionID: "e1", ToolName: "remote"})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if inv.Args == nil || inv.Provider != "peer-2" {
		t.Errorf("expected empty args and provider, got %+v", inv)
	}
}

func TestBegin_Rejections(t *testing.T) {
	c, _ := newTestCoordinator(t, Options{})
	cases := []struct {
		name string
		req  BeginRequest
		code string
	}{
		{"empty id", BeginRequest{ToolName: "echo", Args: map[string]any{"x": "a"}}, CodeInvalidExecutionID},
		{"unknown tool", BeginRequest{ExecutionID: "e1", ToolName: "nope"}, CodeToolNotFound},
		{"args not object", BeginRequest{ExecutionID: "e1", ToolName: "echo", Args: []any{"x"}}, CodeValidationFailed},
	}
	for _, tc := range cases {
		if _, err := c.Begin(tc.req); codeOf(err) != tc.code {
			t.Errorf("%s: expected %s, got %v", tc.name, tc.code, err)
		}
	}
}

func TestBegin_ConcurrentSameID(t *testing.T) {
	c, _ := newTestCoordinator(t, Options{})

	const n = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		duplicate int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Begin(BeginRequest{ExecutionID: "same", ToolName: "echo", Args: map[string]any{"x": "a"}})
			mu.Lock()
			defer mu.Unlock()
			switch codeOf(err) {
			case "":
				wins++
			case CodeDuplicateID:
				duplicate++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || duplicate != n-1 {
		t.Fatalf("expected 1 win and %d duplicates, got %d and %d", n-1, wins, duplicate)
	}
}

func TestBegin_ReusesTerminalID(t *testing.T) {
	c, _ := newTestCoordinator(t, Options{Retention: time.Minute})
	args := map[string]any{"x": "a"}
	_, _ = c.Begin(BeginRequest{ExecutionID: "e1", ToolName: "echo", Args: args})
	_, _ = c.Complete("e1", "first")

	if _, err := c.Begin(BeginRequest{ExecutionID: "e1", ToolName: "echo", Args: args}); err != nil {
		t.Fatalf("expected terminal id to be reusable, got %v", err)
	}
}

// ─── Complete / Fail ───────────────────────────────────────────────────────

func TestComplete_Twice(t *testing.T) {
	c, rec := newTestCoordinator(t, Options{Retention: time.Minute})
	_, _ = c.Begin(BeginRequest{ExecutionID: "e1", ToolName: "echo", Args: map[string]any{"x": "a"}})

	if _, err := c.Complete("e1", "first"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	_, err := c.Complete("e1", "second")
	if codeOf(err) != CodeAlreadyCompleted {
		t.Fatalf("expected EXECUTION_ALREADY_COMPLETED, got %v", err)
	}
	if _, err := c.Fail("e1", "", "late"); codeOf(err) != CodeAlreadyCompleted {
		t.Fatalf("expected EXECUTION_ALREADY_COMPLETED on Fail, got %v", err)
	}

	inv, _ := c.Get("e1")
	if inv.Result != "first" || inv.Status != StatusCompleted {
		t.Errorf("expected stored result untouched, got %+v", inv)
	}
	if len(rec.statuses()) != 3 {
		t.Errorf("expected no extra events, got %v", rec.statuses())
	}
}

func TestComplete_ConcurrentTerminal(t *testing.T) {
	c, _ := newTestCoordinator(t, Options{Retention: time.Minute})
	_, _ = c.Begin(BeginRequest{ExecutionID: "e1", ToolName: "echo", Args: map[string]any{"x": "a"}})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = c.Complete("e1", i)
			} else {
				_, err = c.Fail("e1", "", "boom")
			}
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one terminal transition, got %d", wins)
	}
}

func TestFail_DefaultCode(t *testing.T) {
	c, rec := newTestCoordinator(t, Options{})
	_, _ = c.Begin(BeginRequest{ExecutionID: "e1", ToolName: "echo", Args: map[string]any{"x": "a"}})

	inv, err := c.Fail("e1", "", "boom")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if inv.Error == nil || inv.Error.Code != CodeToolFailed || inv.Error.Message != "boom" {
		t.Errorf("unexpected error %+v", inv.Error)
	}
	last := rec.events[len(rec.events)-1]
	if last.Status != StatusFailed || last.Error == nil {
		t.Errorf("expected failed event with error, got %+v", last)
	}
}

func TestCompleteFrom_ChecksProviderAtomically(t *testing.T) {
	c, rec := newTestCoordinator(t, Options{Retention: time.Minute})
	if _, err := c.Begin(BeginRequest{ExecutionID: "e1", ToolName: "remote"}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := c.FailFrom("peer-3", "e1", "", "not mine"); codeOf(err) != CodeForbidden {
		t.Fatalf("expected FORBIDDEN for a peer the call was not assigned to, got %v", err)
	}
	if _, err := c.CompleteFrom("peer-2", "e1", "first"); err != nil {
		t.Fatalf("CompleteFrom: %v", err)
	}

	// The id is reused for a local call while peer-2's late duplicate is in flight.
	if _, err := c.Begin(BeginRequest{ExecutionID: "e1", ToolName: "echo", Args: map[string]any{"x": "a"}}); err != nil {
		t.Fatalf("re-Begin: %v", err)
	}
	before := len(rec.statuses())
	if _, err := c.CompleteFrom("peer-2", "e1", "stale"); codeOf(err) != CodeForbidden {
		t.Fatalf("expected FORBIDDEN for the previous provider, got %v", err)
	}

	inv, _ := c.Get("e1")
	if inv.Status.Terminal() || inv.Result != nil || inv.Provider != "" {
		t.Errorf("expected the reused invocation untouched, got %+v", inv)
	}
	if len(rec.statuses()) != before {
		t.Errorf("expected no events from a rejected result, got %v", rec.statuses()[before:])
	}
}

func TestComplete_Unknown(t *testing.T) {
	c, _ := newTestCoordinator(t, Options{})
	if _, err := c.Complete("missing", nil); codeOf(err) != CodeNotFound {
		t.Fatalf("expected EXECUTION_NOT_FOUND, got %v", err)
	}
}

// ─── Sweep ─────────────────────────────────────────────────────────────────

func TestSweep_TimesOutAndPrunes(t *testing.T) {
	c, rec := newTestCoordinator(t, Options{Timeout: time.Minute, Retention: 10 * time.Second})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	args := map[string]any{"x": "a"}
	_, _ = c.Begin(BeginRequest{ExecutionID: "slow", ToolName: "echo", Args: args})
	_, _ = c.Begin(BeginRequest{ExecutionID: "done", ToolName: "echo", Args: args})
	_, _ = c.Complete("done", "ok")

	timedOut, pruned := c.Sweep(base.Add(5 * time.Second))
	if timedOut != 0 || pruned != 0 {
		t.Fatalf("expected nothing swept yet, got %d/%d", timedOut, pruned)
	}

	timedOut, pruned = c.Sweep(base.Add(time.Minute))
	if timedOut != 1 || pruned != 1 {
		t.Fatalf("expected 1 timeout and 1 prune, got %d/%d", timedOut, pruned)
	}
	inv, ok := c.Get("slow")
	if !ok || inv.Status != StatusFailed || inv.Error.Code != CodeTimeout {
		t.Fatalf("expected slow to fail with TIMEOUT, got %+v", inv)
	}
	if _, ok := c.Get("done"); ok {
		t.Error("expected done to be pruned")
	}
	last := rec.events[len(rec.events)-1]
	if last.ExecutionID != "slow" || last.Status != StatusFailed {
		t.Errorf("expected timeout event, got %+v", last)
	}

	if _, err := c.Complete("slow", "late"); codeOf(err) != CodeAlreadyCompleted {
		t.Errorf("expected late result to be rejected, got %v", err)
	}
	if c.Running() != 0 {
		t.Errorf("expected nothing running, got %d", c.Running())
	}
}

func TestSweep_ZeroTimeoutNeverExpires(t *testing.T) {
	c, _ := newTestCoordinator(t, Options{})
	_, _ = c.Begin(BeginRequest{ExecutionID: "e1", ToolName: "echo", Args: map[string]any{"x": "a"}})

	timedOut, _ := c.Sweep(time.Now().Add(24 * time.Hour))
	if timedOut != 0 || c.Running() != 1 {
		t.Fatalf("expected invocation to keep running, got timedOut=%d running=%d", timedOut, c.Running())
	}
}

func TestJanitor_StopsOnCancel(t *testing.T) {
	c, _ := newTestCoordinator(t, Options{})
	j := NewJanitor(c, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
