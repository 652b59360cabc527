package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tmcfarland/casepilot/internal/contextstore"
	"github.com/tmcfarland/casepilot/internal/courtlistener"
	"github.com/tmcfarland/casepilot/internal/llm"
	"github.com/tmcfarland/casepilot/internal/research"
)

// fakeChat answers by matching a lowercase substring of the system prompt,
// so each agent in the pipeline can be scripted independently.
type fakeChat struct {
	responses map[string]string
}

func (f *fakeChat) Chat(_ context.Context, _ string, messages []llm.Message) (string, error) {
	system := ""
	if len(messages) > 0 && messages[0].Role == "system" {
		system = strings.ToLower(messages[0].Content)
	}
	for key, resp := range f.responses {
		if strings.Contains(system, key) {
			return resp, nil
		}
	}
	return "", errors.New("no scripted response")
}

type fakeSearcher struct {
	cases []courtlistener.Case
	err   error
}

func (f *fakeSearcher) Search(context.Context, courtlistener.Query) ([]courtlistener.Case, error) {
	return f.cases, f.err
}

type fakeRenderer struct {
	pdf []byte
	err error
}

func (f *fakeRenderer) Render(context.Context, string) ([]byte, error) {
	return f.pdf, f.err
}

func resultsResponses() map[string]string {
	return map[string]string{
		"paralegal":       "Proceed. NO QUESTIONS NEEDED.",
		"structured":      `{"facts":["breach"],"jurisdictions":["CA"],"parties":[],"legal_issues":[],"causes_of_action":[],"penal_codes":[]}`,
		"summarize":       "Contract breach in California.",
		"search keywords": "breach contract damages california remedy",
		"relevance":       `{"score": 77, "reason": "On point."}`,
		"memos":           "# MEMORANDUM\n\nDraft body.",
	}
}

func newTestServer(chat llm.ChatClient, searcher research.Searcher, renderer DocumentRenderer) (http.Handler, contextstore.Store) {
	store := contextstore.NewMemory()
	handler := NewServer(Config{
		Store: store,
		NewPipeline: func() *research.Orchestrator {
			return research.New(research.Config{Chat: chat, Searcher: searcher})
		},
		Renderer: renderer,
	})
	return handler, store
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	handler, _ := newTestServer(&fakeChat{}, &fakeSearcher{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["ok"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestUploadRejections(t *testing.T) {
	handler, _ := newTestServer(&fakeChat{}, &fakeSearcher{}, nil)

	t.Run("missing file field", func(t *testing.T) {
		buf, ctype := multipartUpload(t, "attachment", "brief.pdf", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/upload", buf)
		req.Header.Set("Content-Type", ctype)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		if decodeBody(t, rec)["error"] != "No PDF uploaded" {
			t.Fatalf("body = %s", rec.Body.String())
		}
	})

	t.Run("wrong extension", func(t *testing.T) {
		buf, ctype := multipartUpload(t, "pdf", "notes.txt", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/upload", buf)
		req.Header.Set("Content-Type", ctype)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		if decodeBody(t, rec)["error"] != "Invalid file type" {
			t.Fatalf("body = %s", rec.Body.String())
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/upload", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestUploadUnparseablePDFStoresPlaceholder(t *testing.T) {
	handler, store := newTestServer(&fakeChat{}, &fakeSearcher{}, nil)

	buf, ctype := multipartUpload(t, "pdf", "scan.pdf", []byte{0x00, 0x01, 0x02, 0x03})
	req := httptest.NewRequest(http.MethodPost, "/upload", buf)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "uploaded" {
		t.Fatalf("status field = %v", body["status"])
	}
	text, _ := body["text"].(string)
	if !strings.HasPrefix(text, "[PDF parsing error:") {
		t.Fatalf("preview = %q", text)
	}

	sid, _ := body["context_id"].(string)
	if sid == "" {
		t.Fatal("missing context_id")
	}
	sc, ok, err := store.Get(sid)
	if err != nil || !ok {
		t.Fatalf("stored context missing: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(sc.Text, "[PDF parsing error:") {
		t.Fatalf("stored text = %q", sc.Text)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	handler, _ := newTestServer(&fakeChat{}, &fakeSearcher{}, nil)
	rec := postJSON(t, handler, "/chat", map[string]string{"message": "   "}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "empty message" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestChatClarifyingBranch(t *testing.T) {
	chat := &fakeChat{responses: map[string]string{
		"paralegal": "What jurisdiction?\nWhen did the incident occur?",
	}}
	handler, _ := newTestServer(chat, &fakeSearcher{}, nil)

	rec := postJSON(t, handler, "/chat", map[string]string{"message": "My landlord did something."}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != research.StatusClarifying {
		t.Fatalf("status field = %v", body["status"])
	}
	questions, _ := body["questions"].([]any)
	if len(questions) != 2 || questions[0] != "What jurisdiction?" {
		t.Fatalf("questions = %v", questions)
	}
	if body["context_id"] == "" {
		t.Fatal("missing context_id")
	}
}

func TestChatResultsBranchUpdatesContext(t *testing.T) {
	chat := &fakeChat{responses: resultsResponses()}
	searcher := &fakeSearcher{cases: []courtlistener.Case{
		{Title: "Smith v. Jones", Snippet: "breach of contract"},
	}}
	handler, store := newTestServer(chat, searcher, nil)

	rec := postJSON(t, handler, "/chat", map[string]string{"message": "Full case description."}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != research.StatusResults {
		t.Fatalf("status field = %v", body["status"])
	}
	if body["summary"] != "Contract breach in California." {
		t.Fatalf("summary = %v", body["summary"])
	}
	if body["keywords"] != "breach contract damages california remedy" {
		t.Fatalf("keywords = %v", body["keywords"])
	}
	cases, _ := body["cases"].([]any)
	if len(cases) != 1 {
		t.Fatalf("cases = %v", body["cases"])
	}
	first, _ := cases[0].(map[string]any)
	if first["relevance_score"] != float64(77) {
		t.Fatalf("relevance_score = %v", first["relevance_score"])
	}

	sid, _ := body["context_id"].(string)
	sc, ok, err := store.Get(sid)
	if err != nil || !ok {
		t.Fatalf("stored context missing: ok=%v err=%v", ok, err)
	}
	if sc.Summary != "Contract breach in California." {
		t.Fatalf("stored summary = %q", sc.Summary)
	}
	if len(sc.Queries) != 1 || sc.Queries[0] != "breach contract damages california remedy" {
		t.Fatalf("stored queries = %v", sc.Queries)
	}
	if len(sc.Cases) != 1 || sc.Cases[0].RelevanceScore != 77 {
		t.Fatalf("stored cases = %+v", sc.Cases)
	}
	if len(sc.Analysis.Facts) != 1 || sc.Analysis.Facts[0] != "breach" {
		t.Fatalf("stored analysis = %+v", sc.Analysis)
	}
}

func TestChatAccumulatesAcrossTurns(t *testing.T) {
	chat := &fakeChat{responses: map[string]string{
		"paralegal": "Which state?",
	}}
	handler, store := newTestServer(chat, &fakeSearcher{}, nil)

	rec := postJSON(t, handler, "/chat", map[string]string{"message": "first turn"}, nil)
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie set")
	}
	sid := cookies[0].Value

	rec = postJSON(t, handler, "/chat", map[string]string{"message": "second turn"}, cookies)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["context_id"]; got != sid {
		t.Fatalf("context_id = %v, want %q", got, sid)
	}

	sc, ok, err := store.Get(sid)
	if err != nil || !ok {
		t.Fatalf("stored context missing: ok=%v err=%v", ok, err)
	}
	if sc.Text != "\n\nfirst turn\n\nsecond turn" {
		t.Fatalf("accumulated text = %q", sc.Text)
	}
}

func TestDraftUnknownContext(t *testing.T) {
	handler, _ := newTestServer(&fakeChat{}, &fakeSearcher{}, nil)
	rec := postJSON(t, handler, "/draft", map[string]string{"context_id": "nope"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "Context not found" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestDraftJSON(t *testing.T) {
	chat := &fakeChat{responses: resultsResponses()}
	handler, store := newTestServer(chat, &fakeSearcher{}, nil)

	if err := store.Put("ctx-1", contextstore.SessionContext{
		Text:    "case text",
		Summary: "summary",
	}); err != nil {
		t.Fatal(err)
	}

	rec := postJSON(t, handler, "/draft", map[string]string{"context_id": "ctx-1"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "success" {
		t.Fatalf("status field = %v", body["status"])
	}
	if body["document"] != "# MEMORANDUM\n\nDraft body." {
		t.Fatalf("document = %v", body["document"])
	}
	if body["context_id"] != "ctx-1" {
		t.Fatalf("context_id = %v", body["context_id"])
	}
}

func TestDraftPDF(t *testing.T) {
	chat := &fakeChat{responses: resultsResponses()}
	renderer := &fakeRenderer{pdf: []byte("%PDF-1.4 fake")}
	handler, store := newTestServer(chat, &fakeSearcher{}, renderer)

	if err := store.Put("ctx-2", contextstore.SessionContext{Text: "case text"}); err != nil {
		t.Fatal(err)
	}

	rec := postJSON(t, handler, "/draft", map[string]string{
		"context_id": "ctx-2",
		"doc_type":   "brief",
		"format":     "pdf",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), renderer.pdf) {
		t.Fatalf("pdf body = %q", rec.Body.String())
	}
}

func TestDraftPDFWithoutRenderer(t *testing.T) {
	chat := &fakeChat{responses: resultsResponses()}
	handler, store := newTestServer(chat, &fakeSearcher{}, nil)
	if err := store.Put("ctx-3", contextstore.SessionContext{Text: "case text"}); err != nil {
		t.Fatal(err)
	}
	rec := postJSON(t, handler, "/draft", map[string]string{
		"context_id": "ctx-3",
		"format":     "pdf",
	}, nil)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestContextEndpoint(t *testing.T) {
	handler, store := newTestServer(&fakeChat{}, &fakeSearcher{}, nil)

	t.Run("fresh session gets default shape", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/context", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		body := decodeBody(t, rec)
		sc, _ := body["context"].(map[string]any)
		if sc == nil {
			t.Fatalf("body = %v", body)
		}
		if sc["text"] != "" {
			t.Fatalf("text = %v", sc["text"])
		}
		if len(rec.Result().Cookies()) == 0 {
			t.Fatal("no session cookie set")
		}
	})

	t.Run("existing session round trips", func(t *testing.T) {
		if err := store.Put("ctx-9", contextstore.SessionContext{Text: "stored"}); err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodGet, "/context", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "ctx-9"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		body := decodeBody(t, rec)
		if body["context_id"] != "ctx-9" {
			t.Fatalf("context_id = %v", body["context_id"])
		}
		sc, _ := body["context"].(map[string]any)
		if sc["text"] != "stored" {
			t.Fatalf("text = %v", sc["text"])
		}
	})
}

func TestPreviewTruncation(t *testing.T) {
	long := strings.Repeat("a", 600)
	got := preview(long)
	if len([]rune(got)) != previewChars+3 {
		t.Fatalf("len = %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("suffix = %q", got[len(got)-5:])
	}
	if preview("short") != "short" {
		t.Fatal("short text should pass through")
	}
}
