package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/daleelapp/daleel/internal/api"
	"github.com/daleelapp/daleel/internal/auth"
	"github.com/daleelapp/daleel/internal/ingest"
	"github.com/daleelapp/daleel/internal/log"
	"github.com/daleelapp/daleel/internal/rag"
	"github.com/daleelapp/daleel/internal/store"
	"github.com/daleelapp/daleel/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubAnswerer scripts the answer stream and title generation.
type stubAnswerer struct {
	chunks    []string
	streamErr error
	title     string
	titleErr  error

	gotQuestion string
	gotHistory  []rag.Exchange
}

func (s *stubAnswerer) StreamAnswer(_ context.Context, question string, history []rag.Exchange) (iter.Seq2[string, error], error) {
	s.gotQuestion = question
	s.gotHistory = history
	return func(yield func(string, error) bool) {
		for _, c := range s.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if s.streamErr != nil {
			yield("", s.streamErr)
		}
	}, nil
}

func (s *stubAnswerer) Title(context.Context, string) (string, error) {
	return s.title, s.titleErr
}

// stubIngestor records which files were handed to indexing.
type stubIngestor struct {
	err error
	got []string
}

func (s *stubIngestor) IngestFiles(_ context.Context, names []string) (*ingest.Result, error) {
	s.got = append(s.got, names...)
	if s.err != nil {
		return nil, s.err
	}
	return &ingest.Result{Files: len(names), Chunks: len(names)}, nil
}

type fixture struct {
	server   *httptest.Server
	client   *http.Client
	store    store.Store
	answerer *stubAnswerer
	ingestor *stubIngestor
	docsDir  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := testutil.NewSQLiteStore(t)
	answerer := &stubAnswerer{chunks: []string{"hello ", "world"}}
	ingestor := &stubIngestor{}
	docsDir := t.TempDir()
	sessions := auth.NewSessions("test-secret-that-is-long-enough-0000", time.Hour)

	srv := api.NewServer(api.Config{
		Addr:        "127.0.0.1:0",
		CORSOrigins: []string{"http://localhost:5173"},
		DocsDir:     docsDir,
		MemorySize:  10,
	}, st, answerer, ingestor, sessions, log.NewNop())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	client := &http.Client{Jar: jar}
	t.Cleanup(client.CloseIdleConnections)

	return &fixture{
		server:   ts,
		client:   client,
		store:    st,
		answerer: answerer,
		ingestor: ingestor,
		docsDir:  docsDir,
	}
}

func (f *fixture) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := f.client.Post(f.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := f.client.Get(f.server.URL + path)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// signup registers and logs the fixture client in.
func (f *fixture) signup(t *testing.T) map[string]any {
	t.Helper()
	resp := f.postJSON(t, "/api/signup", map[string]string{
		"username": "tester",
		"email":    "tester@example.com",
		"password": "a long password",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[map[string]any](t, resp)
}

func (f *fixture) newConversation(t *testing.T) string {
	t.Helper()
	resp := f.postJSON(t, "/api/conversations", map[string]string{})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	return body["id"].(string)
}

func TestSignupLoginSession(t *testing.T) {
	f := newFixture(t)

	user := f.signup(t)
	assert.Equal(t, "tester", user["username"])
	assert.NotContains(t, user, "password_hash", "hash must never leave the server")

	// Session cookie from signup authenticates immediately.
	resp := f.get(t, "/api/session")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[map[string]any](t, resp)
	assert.Equal(t, "tester@example.com", session["email"])

	// Duplicate email is rejected.
	dup := f.postJSON(t, "/api/signup", map[string]string{
		"username": "other", "email": "tester@example.com", "password": "another password",
	})
	assert.Equal(t, http.StatusConflict, dup.StatusCode)
	dup.Body.Close()

	// Logout clears the session.
	out := f.postJSON(t, "/api/logout", nil)
	require.Equal(t, http.StatusOK, out.StatusCode)
	out.Body.Close()

	resp = f.get(t, "/api/session")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Login restores it.
	login := f.postJSON(t, "/api/login", map[string]string{
		"email": "tester@example.com", "password": "a long password",
	})
	assert.Equal(t, http.StatusOK, login.StatusCode)
	login.Body.Close()

	bad := f.postJSON(t, "/api/login", map[string]string{
		"email": "tester@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)
	bad.Body.Close()
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"username": "x", "password": "long enough pw"}},
		{"bad email", map[string]string{"username": "x", "email": "not-an-email", "password": "long enough pw"}},
		{"short password", map[string]string{"username": "x", "email": "x@example.com", "password": "short"}},
		{"missing username", map[string]string{"email": "x@example.com", "password": "long enough pw"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.postJSON(t, "/api/signup", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestConversationsRequireAuth(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/api/conversations")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestConversationReuse(t *testing.T) {
	f := newFixture(t)
	f.signup(t)

	first := f.newConversation(t)
	second := f.newConversation(t)
	assert.Equal(t, first, second, "an unused conversation is reused, not duplicated")

	list := decode[map[string][]store.Conversation](t, f.get(t, "/api/conversations"))
	assert.Len(t, list["conversations"], 1)
}

func TestGetConversationWithMessages(t *testing.T) {
	f := newFixture(t)
	f.signup(t)
	id := f.newConversation(t)

	resp := f.postJSON(t, "/api/stream-answer/"+id+"/messages", map[string]string{"message": "سؤال"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	got := decode[map[string]any](t, f.get(t, "/api/conversations/"+id))
	messages := got["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, false, got["is_new"])

	missing := f.get(t, "/api/conversations/does-not-exist")
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	missing.Body.Close()
}

func TestStreamAnswer(t *testing.T) {
	f := newFixture(t)
	f.answerer.title = "عنوان جديد"
	f.signup(t)
	id := f.newConversation(t)

	resp := f.postJSON(t, "/api/stream-answer/"+id+"/messages", map[string]string{"message": "ما هو النظام؟"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	events := testutil.ParseSSEEvents(t, string(body))
	chunks := testutil.FindAllEvents(events, "chunk")
	require.Len(t, chunks, 2)

	done := testutil.FindEvent(events, "done")
	require.NotNil(t, done)
	var doneData api.SSEDoneData
	require.NoError(t, json.Unmarshal([]byte(done.Data), &doneData))
	assert.Equal(t, "hello world", doneData.Response)

	assert.Nil(t, testutil.FindEvent(events, "error"))
	assert.Equal(t, "ما هو النظام؟", f.answerer.gotQuestion)

	// Title applied and is_new cleared by the first message.
	got := decode[map[string]any](t, f.get(t, "/api/conversations/"+id))
	assert.Equal(t, "عنوان جديد", got["title"])
	assert.Equal(t, false, got["is_new"])
}

func TestStreamAnswerMidStreamError(t *testing.T) {
	f := newFixture(t)
	f.answerer.chunks = []string{"partial "}
	f.answerer.streamErr = fmt.Errorf("model unavailable")
	f.signup(t)
	id := f.newConversation(t)

	resp := f.postJSON(t, "/api/stream-answer/"+id+"/messages", map[string]string{"message": "سؤال"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	events := testutil.ParseSSEEvents(t, string(body))
	require.NotEmpty(t, events)

	// The failure is a terminal error event, never inline answer text.
	last := events[len(events)-1]
	assert.Equal(t, "error", last.Type)
	var errData api.SSEErrorData
	require.NoError(t, json.Unmarshal([]byte(last.Data), &errData))
	assert.Equal(t, "STREAM_ERROR", errData.Code)
	assert.Contains(t, errData.Message, "model unavailable")

	assert.Nil(t, testutil.FindEvent(events, "done"))
}

func TestStreamAnswerValidation(t *testing.T) {
	f := newFixture(t)
	f.signup(t)
	id := f.newConversation(t)

	empty := f.postJSON(t, "/api/stream-answer/"+id+"/messages", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, empty.StatusCode)
	empty.Body.Close()

	missing := f.postJSON(t, "/api/stream-answer/no-such-conversation/messages", map[string]string{"message": "q"})
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	missing.Body.Close()
}

func TestSaveAIMessage(t *testing.T) {
	f := newFixture(t)
	f.signup(t)
	id := f.newConversation(t)

	resp := f.postJSON(t, "/api/stream-answer/"+id+"/ai-message", map[string]string{"message": "الإجابة الكاملة"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	got := decode[map[string]any](t, f.get(t, "/api/conversations/"+id))
	messages := got["messages"].([]any)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "الإجابة الكاملة", msg["content"])
	assert.Equal(t, false, msg["is_user"])
}

func TestUpload(t *testing.T) {
	f := newFixture(t)
	f.signup(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "../sneaky/path/guide.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("document body"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "indexed", body["status"])
	assert.Equal(t, "guide.txt", body["file"], "path components are stripped")

	// Saved into the documents directory and handed to indexing.
	saved, err := os.ReadFile(filepath.Join(f.docsDir, "guide.txt"))
	require.NoError(t, err)
	assert.Equal(t, "document body", string(saved))
	assert.Equal(t, []string{"guide.txt"}, f.ingestor.got)
}

func TestUploadRejectsUnsupported(t *testing.T) {
	f := newFixture(t)
	f.signup(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "malware.exe")
	require.NoError(t, err)
	_, err = part.Write([]byte("binary"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	assert.Empty(t, f.ingestor.got)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.get(t, "/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestCORS(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/api/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	// Unlisted origins get no CORS headers.
	req2, err := http.NewRequest(http.MethodGet, f.server.URL+"/health", nil)
	require.NoError(t, err)
	req2.Header.Set("Origin", "http://evil.example.com")
	resp2, err := f.client.Do(req2)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}
