package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeCandidate struct {
	name     string
	response string
	err      error
	calls    int
}

func (f *fakeCandidate) Name() string { return f.name }

func (f *fakeCandidate) Generate(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.response, f.err
}

type staticSource struct {
	candidates []Candidate
}

func (s *staticSource) Candidates(_ context.Context) []Candidate { return s.candidates }

func TestCall_StopsAtFirstSuccess(t *testing.T) {
	good := `{"answer": 42}`
	c1 := &fakeCandidate{name: "a", err: errors.New("boom")}
	c2 := &fakeCandidate{name: "b", response: "not json at all"}
	c3 := &fakeCandidate{name: "c", response: good}
	c4 := &fakeCandidate{name: "d", response: good}

	caller := NewCaller(&staticSource{candidates: []Candidate{c1, c2, c3, c4}}, nil)

	var out struct {
		Answer int `json:"answer"`
	}
	if err := caller.Call(context.Background(), "p", &out); err != nil {
		t.Fatalf("call: %v", err)
	}
	if out.Answer != 42 {
		t.Errorf("parsed answer = %d, want 42", out.Answer)
	}
	if c3.calls != 1 {
		t.Errorf("winning candidate called %d times", c3.calls)
	}
	if c4.calls != 0 {
		t.Error("candidates after the winner must not be contacted")
	}
}

func TestCall_EmptyResponseSkipsCandidate(t *testing.T) {
	c1 := &fakeCandidate{name: "a", response: "   "}
	c2 := &fakeCandidate{name: "b", response: `{"ok": true}`}

	caller := NewCaller(&staticSource{candidates: []Candidate{c1, c2}}, nil)

	var out struct {
		OK bool `json:"ok"`
	}
	if err := caller.Call(context.Background(), "p", &out); err != nil {
		t.Fatalf("call: %v", err)
	}
	if !out.OK {
		t.Error("expected second candidate to serve the call")
	}
}

func TestCall_FallbackUsedAfterExhaustion(t *testing.T) {
	c1 := &fakeCandidate{name: "a", err: errors.New("down")}
	fb := &fakeCandidate{name: "local", response: `{"ok": true}`}

	caller := NewCaller(&staticSource{candidates: []Candidate{c1}}, fb)

	var out struct {
		OK bool `json:"ok"`
	}
	if err := caller.Call(context.Background(), "p", &out); err != nil {
		t.Fatalf("call: %v", err)
	}
	if fb.calls != 1 {
		t.Errorf("fallback called %d times, want 1", fb.calls)
	}
}

func TestCall_AllFailedCarriesLastError(t *testing.T) {
	c1 := &fakeCandidate{name: "a", err: errors.New("first failure")}
	c2 := &fakeCandidate{name: "b", err: errors.New("second failure")}
	fb := &fakeCandidate{name: "local", err: errors.New("fallback failure")}

	caller := NewCaller(&staticSource{candidates: []Candidate{c1, c2}}, fb)

	var out map[string]any
	err := caller.Call(context.Background(), "p", &out)
	if err == nil {
		t.Fatal("expected error when everything fails")
	}
	if !strings.Contains(err.Error(), "all models failed") {
		t.Errorf("error missing exhaustion context: %v", err)
	}
	if !strings.Contains(err.Error(), "fallback failure") {
		t.Errorf("error must carry the last diagnostic: %v", err)
	}
}

func TestCall_NoFallbackConfigured(t *testing.T) {
	c1 := &fakeCandidate{name: "a", err: errors.New("down")}

	caller := NewCaller(&staticSource{candidates: []Candidate{c1}}, nil)

	var out map[string]any
	if err := caller.Call(context.Background(), "p", &out); err == nil {
		t.Fatal("expected error without fallback")
	}
}
