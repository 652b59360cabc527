package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/tmcfarland/casepilot/internal/contextstore"
	"github.com/tmcfarland/casepilot/internal/courtlistener"
	"github.com/tmcfarland/casepilot/internal/httpapi"
	"github.com/tmcfarland/casepilot/internal/llm"
	"github.com/tmcfarland/casepilot/internal/render"
	"github.com/tmcfarland/casepilot/internal/research"
)

func main() {
	var (
		addr      = flag.String("addr", ":5000", "Listen address")
		model     = flag.String("model", "", "Completion model (default: provider default)")
		clURL     = flag.String("courtlistener-url", courtlistener.DefaultBaseURL, "CourtListener base URL")
		storeKind = flag.String("store", "memory", "Context store backend: memory or sqlite")
		dbPath    = flag.String("db-path", "./casepilot.db", "SQLite database path (store=sqlite)")
		uploadDir = flag.String("upload-dir", "", "Directory to keep upload copies (empty: discard)")
		noRender  = flag.Bool("no-pdf-render", false, "Disable headless Chromium PDF rendering")
	)
	flag.Parse()

	chat, backendModel, err := chatClient()
	if err != nil {
		log.Fatal(err)
	}
	if *model == "" {
		*model = backendModel
	}

	store, err := contextStore(*storeKind, *dbPath)
	if err != nil {
		log.Fatal(err)
	}

	searcher := courtlistener.NewClient(courtlistener.Config{
		BaseURL: *clURL,
		Token:   strings.TrimSpace(os.Getenv("COURTLISTENER_TOKEN")),
	})

	var renderer httpapi.DocumentRenderer
	if !*noRender {
		renderer = render.NewChromiumRenderer()
	}

	handler := httpapi.NewServer(httpapi.Config{
		Store: store,
		NewPipeline: func() *research.Orchestrator {
			return research.New(research.Config{
				Chat:     chat,
				Searcher: searcher,
				Model:    *model,
			})
		},
		Renderer:  renderer,
		UploadDir: *uploadDir,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log.Printf("casepilot listening on %s (store=%s, courtlistener=%s)", *addr, *storeKind, *clURL)
	srv := &http.Server{Addr: *addr, Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// chatClient picks the completion backend from the environment: OpenRouter
// when OPENROUTER_API_KEY is set, otherwise Anthropic. The returned model is
// the backend's default, used when -model is not given.
func chatClient() (llm.ChatClient, string, error) {
	if key := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")); key != "" {
		c, err := llm.NewOpenRouterClient(llm.OpenRouterConfig{APIKey: key})
		return c, "", err
	}
	if strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")) != "" {
		c, err := llm.NewAnthropicClientFromEnv()
		return c, llm.DefaultAnthropicModel, err
	}
	return nil, "", errMissingAPIKey
}

var errMissingAPIKey = &configError{"set OPENROUTER_API_KEY or ANTHROPIC_API_KEY"}

type configError struct{ msg string }

func (e *configError) Error() string { return e.msg }

func contextStore(kind, dbPath string) (contextstore.Store, error) {
	switch kind {
	case "memory":
		return contextstore.NewMemory(), nil
	case "sqlite":
		return contextstore.NewSQLite(dbPath)
	default:
		return nil, &configError{"unknown store backend " + kind}
	}
}
