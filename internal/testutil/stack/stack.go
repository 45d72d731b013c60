// Package stack wires a complete travel service for transport tests.
package stack

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/travel/internal/adapter/llm"
	"github.com/xiaot623/gogo/travel/internal/assistant"
	"github.com/xiaot623/gogo/travel/internal/checkpoint"
	"github.com/xiaot623/gogo/travel/internal/config"
	"github.com/xiaot623/gogo/travel/internal/graph"
	"github.com/xiaot623/gogo/travel/internal/metrics"
	"github.com/xiaot623/gogo/travel/internal/prompts"
	"github.com/xiaot623/gogo/travel/internal/repository"
	"github.com/xiaot623/gogo/travel/internal/retriever"
	"github.com/xiaot623/gogo/travel/internal/service"
	"github.com/xiaot623/gogo/travel/internal/testutil"
	"github.com/xiaot623/gogo/travel/internal/tools"
)

// Config returns settings suited to tests.
func Config() *config.Config {
	cfg := config.Load()
	cfg.Mode = config.ModeMock
	cfg.PassengerID = repository.SeedPassengerID
	return cfg
}

// NewService builds a service backed by a seeded SQLite store and the mock
// chat model.
func NewService(t *testing.T) (*service.Service, *repository.SQLiteStore) {
	t.Helper()
	store := testutil.NewTestSQLiteStore(t)
	set, err := prompts.Load()
	require.NoError(t, err)

	m := metrics.New()
	rec := service.NewRecorder(store, m)
	catalog := assistant.DefaultCatalog()
	g, err := assistant.BuildGraph(assistant.Config{
		Catalog:       catalog,
		Registry:      tools.NewTravelRegistry(store, retriever.New()),
		Prompts:       set,
		Client:        llm.NewMockClient(),
		Model:         "mock",
		Saver:         checkpoint.NewMemorySaver(),
		Ledger:        store,
		Metrics:       m,
		Observers:     []graph.Observer{rec},
		ToolObservers: []assistant.ToolObserver{rec},
	})
	require.NoError(t, err)

	return service.New(store, g, catalog, Config(), m), store
}
