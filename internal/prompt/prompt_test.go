package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/osbuddy/osbuddy/internal/store"
)

func TestBuildContainsAllSections(t *testing.T) {
	b := Builder{}
	got := b.Build(
		[]string{"Paging divides memory into fixed-size frames."},
		[]store.Message{{Role: store.RoleUser, Content: "what is paging?"}},
		"what is paging?",
	)

	for _, want := range []string{
		"strict but helpful Tutor",
		"Mermaid",
		"Paging divides memory into fixed-size frames.",
		"User: what is paging?",
		"Current Question:\nwhat is paging?",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildWithoutContextUsesPlaceholder(t *testing.T) {
	got := Builder{}.Build(nil, nil, "explain threads")
	if !strings.Contains(got, noContextPlaceholder) {
		t.Error("empty context did not produce placeholder")
	}

	// Whitespace-only passages count as empty too.
	got = Builder{}.Build([]string{"  ", "\n"}, nil, "explain threads")
	if !strings.Contains(got, noContextPlaceholder) {
		t.Error("blank passages did not produce placeholder")
	}
}

func TestBuildJoinsPassagesWithSeparator(t *testing.T) {
	got := Builder{}.Build([]string{"first passage", "second passage"}, nil, "q")
	if !strings.Contains(got, "first passage\n---\nsecond passage") {
		t.Error("passages not joined with separator")
	}
}

func TestBuildBoundsHistory(t *testing.T) {
	var history []store.Message
	for i := 0; i < 15; i++ {
		history = append(history, store.Message{
			Role:    store.RoleUser,
			Content: fmt.Sprintf("turn-%02d", i),
		})
	}

	got := Builder{HistoryLimit: 10}.Build(nil, history, "q")

	if strings.Contains(got, "turn-04") {
		t.Error("message outside the history window leaked into prompt")
	}
	if !strings.Contains(got, "turn-05") {
		t.Error("oldest in-window message missing")
	}
	if !strings.Contains(got, "turn-14") {
		t.Error("newest message missing")
	}
}

func TestBuildZeroValueUsesDefaultLimit(t *testing.T) {
	var history []store.Message
	for i := 0; i < DefaultHistoryLimit+2; i++ {
		history = append(history, store.Message{
			Role:    store.RoleAssistant,
			Content: fmt.Sprintf("msg-%02d", i),
		})
	}

	got := Builder{}.Build(nil, history, "q")
	if strings.Contains(got, "msg-01") {
		t.Error("zero-value builder did not apply default history limit")
	}
	if !strings.Contains(got, "msg-02") {
		t.Error("in-window message missing with default limit")
	}
}

func TestBuildRoleLabels(t *testing.T) {
	got := Builder{}.Build(nil, []store.Message{
		{Role: store.RoleUser, Content: "ping"},
		{Role: store.RoleAssistant, Content: "pong"},
	}, "q")

	if !strings.Contains(got, "User: ping\nAssistant: pong\n") {
		t.Errorf("history formatting wrong:\n%s", got)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	ctx := []string{"a", "b"}
	hist := []store.Message{{Role: store.RoleUser, Content: "x"}}

	first := Builder{HistoryLimit: 5}.Build(ctx, hist, "question")
	second := Builder{HistoryLimit: 5}.Build(ctx, hist, "question")
	if first != second {
		t.Error("same inputs produced different prompts")
	}
}
