package tutor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/osbuddy/osbuddy/internal/guard"
	"github.com/osbuddy/osbuddy/internal/log"
	"github.com/osbuddy/osbuddy/internal/store"
)

// memStore is an in-memory SessionStore mirroring the real store's contract:
// Get never fails and yields an empty session for unknown ids.
type memStore struct {
	sessions map[string]*store.Session
	saveErr  error
	getCalls int
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*store.Session)}
}

func (m *memStore) Get(_ context.Context, id string) *store.Session {
	m.getCalls++
	if sess, ok := m.sessions[id]; ok {
		cp := *sess
		return &cp
	}
	return &store.Session{ID: id, Messages: []store.Message{}}
}

func (m *memStore) Save(_ context.Context, id string, sess *store.Session, owner string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if owner != "" {
		sess.Owner = owner
	}
	cp := *sess
	m.sessions[id] = &cp
	return nil
}

type fakeRetriever struct {
	passages []string
	calls    int
	lastK    int
}

func (f *fakeRetriever) Search(_ context.Context, _ string, k int) []string {
	f.calls++
	f.lastK = k
	return f.passages
}

type fakeGenerator struct {
	reply      string
	err        error
	calls      int
	lastPrompt string
}

func (f *fakeGenerator) Generate(_ context.Context, p string) (string, error) {
	f.calls++
	f.lastPrompt = p
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestTutor(st SessionStore, r Retriever, g Generator) *Tutor {
	return New(Options{
		Store:      st,
		Retriever:  r,
		Classifier: guard.New(),
		Generator:  g,
		TopK:       3,
		Logger:     log.NewNop(),
	})
}

func TestChatEmptyMessageSkipsStore(t *testing.T) {
	st := newMemStore()
	tut := newTestTutor(st, &fakeRetriever{}, &fakeGenerator{reply: "x"})

	reply := tut.Chat(context.Background(), "", "", "   ")

	if reply.Mode != ModeEmptyInput {
		t.Errorf("Mode = %q, want %q", reply.Mode, ModeEmptyInput)
	}
	if reply.Text != "Please enter a message." {
		t.Errorf("Text = %q", reply.Text)
	}
	if st.getCalls != 0 || len(st.sessions) != 0 {
		t.Error("empty input touched the session store")
	}
}

func TestChatGeneratesSessionIDWhenMissing(t *testing.T) {
	st := newMemStore()
	tut := newTestTutor(st, &fakeRetriever{}, &fakeGenerator{reply: "answer"})

	reply := tut.Chat(context.Background(), "", "", "what is a deadlock?")

	if reply.SessionID == "" {
		t.Fatal("no session id generated")
	}
	if _, ok := st.sessions[reply.SessionID]; !ok {
		t.Error("session not persisted under generated id")
	}
}

func TestChatPersistsTurnPairAndTitle(t *testing.T) {
	st := newMemStore()
	gen := &fakeGenerator{reply: "A deadlock is a circular wait."}
	tut := newTestTutor(st, &fakeRetriever{}, gen)

	question := "what is a deadlock and how do operating systems avoid it"
	reply := tut.Chat(context.Background(), "s1", "alice", question)

	sess := st.sessions["s1"]
	if sess == nil {
		t.Fatal("session not saved")
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("messages = %d, want user+assistant", len(sess.Messages))
	}
	if sess.Messages[0].Role != store.RoleUser || sess.Messages[1].Role != store.RoleAssistant {
		t.Errorf("roles = %s,%s", sess.Messages[0].Role, sess.Messages[1].Role)
	}
	if sess.Messages[1].Content != reply.Text {
		t.Error("persisted assistant text differs from reply")
	}
	want := string([]rune(question)[:30]) + "..."
	if sess.Title != want {
		t.Errorf("Title = %q, want %q", sess.Title, want)
	}
	if sess.Owner != "alice" {
		t.Errorf("Owner = %q", sess.Owner)
	}
}

func TestChatRAGModeWhenPassagesRetrieved(t *testing.T) {
	ret := &fakeRetriever{passages: []string{"paging passage"}}
	gen := &fakeGenerator{reply: "answer"}
	tut := newTestTutor(newMemStore(), ret, gen)

	reply := tut.Chat(context.Background(), "s1", "", "explain paging")

	if reply.Mode != ModeRAG {
		t.Errorf("Mode = %q, want %q", reply.Mode, ModeRAG)
	}
	if ret.lastK != 3 {
		t.Errorf("retriever k = %d, want 3", ret.lastK)
	}
	if !strings.Contains(gen.lastPrompt, "paging passage") {
		t.Error("retrieved passage missing from prompt")
	}
}

func TestChatDirectModeWithoutPassages(t *testing.T) {
	tut := newTestTutor(newMemStore(), &fakeRetriever{}, &fakeGenerator{reply: "answer"})

	reply := tut.Chat(context.Background(), "s1", "", "explain paging")
	if reply.Mode != ModeDirect {
		t.Errorf("Mode = %q, want %q", reply.Mode, ModeDirect)
	}
}

func TestChatBlockedTurnSkipsGeneratorAndRetriever(t *testing.T) {
	st := newMemStore()
	ret := &fakeRetriever{passages: []string{"irrelevant"}}
	gen := &fakeGenerator{reply: "should not appear"}
	tut := newTestTutor(st, ret, gen)

	reply := tut.Chat(context.Background(), "s1", "", "what's the capital of France?")

	if reply.Mode != ModeBlocked {
		t.Fatalf("Mode = %q, want %q", reply.Mode, ModeBlocked)
	}
	if reply.Text != guard.RefusalMessage {
		t.Errorf("Text = %q", reply.Text)
	}
	if gen.calls != 0 {
		t.Error("generator called for blocked turn")
	}
	if ret.calls != 0 {
		t.Error("retriever called for blocked turn")
	}

	// The refusal is still persisted as a normal turn pair.
	sess := st.sessions["s1"]
	if sess == nil || len(sess.Messages) != 2 {
		t.Fatal("blocked turn not persisted as user+assistant pair")
	}
	if sess.Messages[1].Content != guard.RefusalMessage {
		t.Error("persisted assistant text is not the refusal")
	}
}

func TestChatGreetingSkipsRetrievalButGenerates(t *testing.T) {
	ret := &fakeRetriever{passages: []string{"unused"}}
	gen := &fakeGenerator{reply: "Hello! Ask me about operating systems."}
	tut := newTestTutor(newMemStore(), ret, gen)

	reply := tut.Chat(context.Background(), "s1", "", "hello")

	if ret.calls != 0 {
		t.Error("retriever called for a greeting")
	}
	if gen.calls != 1 {
		t.Error("generator not called for a greeting")
	}
	if reply.Mode != ModeDirect {
		t.Errorf("Mode = %q, want %q", reply.Mode, ModeDirect)
	}
}

func TestChatConfigErrorMode(t *testing.T) {
	gen := &fakeGenerator{err: ErrNoAPIKey}
	tut := newTestTutor(newMemStore(), &fakeRetriever{}, gen)

	reply := tut.Chat(context.Background(), "s1", "", "what is a mutex?")

	if reply.Mode != ModeConfigError {
		t.Errorf("Mode = %q, want %q", reply.Mode, ModeConfigError)
	}
	if !strings.Contains(reply.Text, "GEMINI_API_KEY") {
		t.Errorf("Text = %q, should name the missing key", reply.Text)
	}
}

func TestChatCallFailedMode(t *testing.T) {
	gen := &fakeGenerator{err: errors.Join(ErrGenerateFailed, errors.New("503"))}
	st := newMemStore()
	tut := newTestTutor(st, &fakeRetriever{}, gen)

	reply := tut.Chat(context.Background(), "s1", "", "what is a mutex?")

	if reply.Mode != ModeCallFailed {
		t.Errorf("Mode = %q, want %q", reply.Mode, ModeCallFailed)
	}
	if reply.Text == "" {
		t.Error("call-failed reply has no text")
	}
	// The error turn is persisted like any other.
	if sess := st.sessions["s1"]; sess == nil || len(sess.Messages) != 2 {
		t.Error("failed turn not persisted")
	}
}

func TestChatSaveFailureYieldsSystemErrorReply(t *testing.T) {
	st := newMemStore()
	st.saveErr = errors.New("disk full")
	tut := newTestTutor(st, &fakeRetriever{}, &fakeGenerator{reply: "answer"})

	reply := tut.Chat(context.Background(), "s1", "", "what is a thread?")

	if reply.Mode != ModeSystemError {
		t.Errorf("Mode = %q, want %q", reply.Mode, ModeSystemError)
	}
	if reply.Text == "" || reply.SessionID != "s1" {
		t.Errorf("reply = %+v, want well-formed text and session id", reply)
	}
}

func TestChatContinuesExistingSessionWithoutRetitling(t *testing.T) {
	st := newMemStore()
	existing := store.NewSession("s1")
	existing.Title = "what is a deadlock and how do..."
	existing.Append(store.RoleUser, "what is a deadlock?")
	existing.Append(store.RoleAssistant, "a circular wait")
	st.sessions["s1"] = existing

	gen := &fakeGenerator{reply: "threads share the process address space"}
	tut := newTestTutor(st, &fakeRetriever{}, gen)

	tut.Chat(context.Background(), "s1", "", "what about threads?")

	sess := st.sessions["s1"]
	if len(sess.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(sess.Messages))
	}
	if sess.Title != "what is a deadlock and how do..." {
		t.Errorf("Title rewritten to %q", sess.Title)
	}
	// Prior turns appear in the assembled prompt.
	if !strings.Contains(gen.lastPrompt, "a circular wait") {
		t.Error("history missing from prompt")
	}
}

func TestDeriveTitleShortMessage(t *testing.T) {
	if got := deriveTitle("hi"); got != "hi..." {
		t.Errorf("deriveTitle = %q", got)
	}
}
