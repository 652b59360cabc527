// Package httpapi is the request layer over the research pipeline: PDF
// upload, chat turns, memo drafting, and context inspection, with a cookie
// session token keying the context store.
package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmcfarland/casepilot/internal/contextstore"
	"github.com/tmcfarland/casepilot/internal/pdftext"
	"github.com/tmcfarland/casepilot/internal/research"
)

const (
	sessionCookie = "casepilot_session"
	previewChars  = 500
)

// PipelineFactory builds a fresh orchestrator per request, so agent
// transcripts never leak between requests.
type PipelineFactory func() *research.Orchestrator

// DocumentRenderer turns drafted memo markdown into PDF bytes.
type DocumentRenderer interface {
	Render(ctx context.Context, memo string) ([]byte, error)
}

type Server struct {
	store       contextstore.Store
	newPipeline PipelineFactory
	renderer    DocumentRenderer
	uploadDir   string
}

type Config struct {
	Store       contextstore.Store
	NewPipeline PipelineFactory
	Renderer    DocumentRenderer
	// UploadDir keeps a copy of each accepted upload when set.
	UploadDir string
}

func NewServer(cfg Config) http.Handler {
	s := &Server{
		store:       cfg.Store,
		newPipeline: cfg.NewPipeline,
		renderer:    cfg.Renderer,
		uploadDir:   cfg.UploadDir,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/draft", s.handleDraft)
	mux.HandleFunc("/context", s.handleContext)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func generateToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// sessionID returns the request's session token, minting and setting a new
// one when the cookie is absent.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value
	}
	token := generateToken()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseMultipartForm(pdftext.MaxPDFBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No PDF uploaded")
		return
	}
	defer file.Close()

	name := strings.TrimSpace(header.Filename)
	if name == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		writeError(w, http.StatusBadRequest, "Invalid file type")
		return
	}

	blob, err := io.ReadAll(io.LimitReader(file, pdftext.MaxPDFBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	s.saveUpload(name, blob)

	text, err := pdftext.Extract(blob)
	switch {
	case err != nil:
		// Extraction failure is folded into the context, not the response.
		log.Printf("casepilot upload_extract_error file=%q err=%q", name, err.Error())
		text = "[PDF parsing error: " + err.Error() + "]"
	case strings.TrimSpace(text) == "":
		text = "[PDF " + name + " uploaded but no extractable text]"
	}

	sid := s.sessionID(w, r)
	if _, err := s.store.Update(sid, func(sc *contextstore.SessionContext) {
		sc.AppendText(text)
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store context")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "uploaded",
		"text":       preview(text),
		"context_id": sid,
	})
}

func (s *Server) saveUpload(name string, blob []byte) {
	if s.uploadDir == "" {
		return
	}
	_ = os.MkdirAll(s.uploadDir, 0o755)
	dst := filepath.Join(s.uploadDir, filepath.Base(name))
	if err := os.WriteFile(dst, blob, 0o644); err != nil {
		log.Printf("casepilot upload_save_failed file=%q err=%q", name, err.Error())
	}
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewChars {
		return text
	}
	return string(runes[:previewChars]) + "..."
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "empty message")
		return
	}

	sid := s.sessionID(w, r)
	sc, err := s.store.Update(sid, func(sc *contextstore.SessionContext) {
		sc.AppendText(message)
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store context")
		return
	}

	pipeline := s.newPipeline()
	result := pipeline.RunChat(r.Context(), sc.Text)

	if result.Status == research.StatusClarifying {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     result.Status,
			"questions":  result.Questions,
			"context_id": sid,
		})
		return
	}

	if _, err := s.store.Update(sid, func(sc *contextstore.SessionContext) {
		sc.Analysis = result.Analysis
		sc.Summary = result.Summary
		sc.Cases = result.Cases
		sc.Queries = append(sc.Queries, result.Keywords)
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store context")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     result.Status,
		"summary":    result.Summary,
		"analysis":   result.Analysis,
		"cases":      result.Cases,
		"keywords":   result.Keywords,
		"context_id": sid,
	})
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	var req struct {
		ContextID string `json:"context_id"`
		DocType   string `json:"doc_type"`
		Format    string `json:"format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sc, ok, err := s.store.Get(req.ContextID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load context")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Context not found")
		return
	}

	pipeline := s.newPipeline()
	document := pipeline.Draft(r.Context(), sc, req.DocType)

	if strings.EqualFold(req.Format, "pdf") {
		if s.renderer == nil {
			writeError(w, http.StatusNotImplemented, "PDF rendering not configured")
			return
		}
		pdf, err := s.renderer.Render(r.Context(), document)
		if err != nil {
			log.Printf("casepilot draft_render_error err=%q", err.Error())
			writeError(w, http.StatusInternalServerError, "failed to render PDF")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="draft.pdf"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"document":   document,
		"context_id": req.ContextID,
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	sid := s.sessionID(w, r)
	sc, ok, err := s.store.Get(sid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load context")
		return
	}
	if !ok {
		sc = contextstore.NewSessionContext()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"context_id": sid,
		"context":    sc,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
