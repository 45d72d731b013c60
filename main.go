package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xiaot623/gogo/travel/internal/adapter/llm"
	"github.com/xiaot623/gogo/travel/internal/assistant"
	"github.com/xiaot623/gogo/travel/internal/checkpoint"
	"github.com/xiaot623/gogo/travel/internal/config"
	"github.com/xiaot623/gogo/travel/internal/graph"
	"github.com/xiaot623/gogo/travel/internal/log"
	"github.com/xiaot623/gogo/travel/internal/metrics"
	"github.com/xiaot623/gogo/travel/internal/policy"
	"github.com/xiaot623/gogo/travel/internal/prompts"
	"github.com/xiaot623/gogo/travel/internal/repository"
	"github.com/xiaot623/gogo/travel/internal/retriever"
	"github.com/xiaot623/gogo/travel/internal/service"
	"github.com/xiaot623/gogo/travel/internal/tools"
	server "github.com/xiaot623/gogo/travel/internal/transport/http"
	"github.com/xiaot623/gogo/travel/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.SetLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Infof("Starting travel assistant...")
	log.Infof("HTTP Port: %d", cfg.HTTPPort)
	log.Infof("Database: %s", cfg.DatabaseURL)
	log.Infof("Checkpoints: %s", cfg.CheckpointBackend)
	if cfg.MockMode() {
		log.Infof("LLM: mock")
	} else {
		log.Infof("LLM: %s (%s)", cfg.LLMBaseURL, cfg.LLMModel)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize store
	store, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer store.Close()

	saver, err := newSaver(cfg, store)
	if err != nil {
		log.Fatalf("Failed to initialize checkpoint saver: %v", err)
	}

	// Initialize policy engine and drop or reject tools it disagrees with
	policyEngine, err := policy.NewDefaultEngine(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}
	catalog, err := assistant.DefaultCatalog().Enforce(ctx, policyEngine)
	if err != nil {
		log.Fatalf("Tool catalog rejected by policy: %v", err)
	}

	set, err := prompts.Load()
	if err != nil {
		log.Fatalf("Failed to load prompts: %v", err)
	}

	m := metrics.New()
	recorder := service.NewRecorder(store, m)

	g, err := assistant.BuildGraph(assistant.Config{
		Catalog:        catalog,
		Registry:       tools.NewTravelRegistry(store, retriever.New()),
		Prompts:        set,
		Client:         llm.NewLLMClient(cfg.MockMode(), cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout),
		Model:          cfg.LLMModel,
		Saver:          saver,
		Ledger:         store,
		Metrics:        m,
		RecursionLimit: cfg.RecursionLimit,
		Observers:      []graph.Observer{recorder},
		ToolObservers:  []assistant.ToolObserver{recorder},
	})
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}
	log.Debugf("Graph:\n%s", g.Mermaid())

	// Initialize service
	svc := service.New(store, g, catalog, cfg, m)

	hub := ws.NewHub(m)
	go hub.Run(ctx)

	e := server.NewServer(svc, m, ws.NewServer(cfg, hub, svc))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Infof("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infof("Shutting down travel assistant...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Failed to shutdown server gracefully: %v", err)
	}
	stop()

	log.Infof("Travel assistant stopped")
}

func newSaver(cfg *config.Config, store *repository.SQLiteStore) (graph.Saver, error) {
	if cfg.CheckpointBackend == config.CheckpointSQLite {
		saver, err := checkpoint.NewSQLiteSaver(store.DB())
		if err != nil {
			return nil, err
		}
		return saver, nil
	}
	return checkpoint.NewMemorySaver(), nil
}
