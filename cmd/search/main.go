// cmd/search/main.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/time/rate"

	"github.com/jules-labs/lexitrace/internal/search"
	"github.com/jules-labs/lexitrace/pkg/config"
	"github.com/jules-labs/lexitrace/pkg/eventstore"
	"github.com/jules-labs/lexitrace/pkg/logging"
	"github.com/jules-labs/lexitrace/pkg/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := observability.Init(ctx, "lexitrace-search", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"))
	if err != nil {
		log.Fatalf("observability: %v", err)
	}
	defer shutdown(ctx)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	sqlxDB := sqlx.NewDb(db, "postgres")

	store := eventstore.New(db)
	indexer := search.NewIndexer(getEnv("MEILI_HOST", "http://localhost:7700"), getEnv("MEILI_API_KEY", ""), getEnv("MEILI_INDEX", "vocabulary_items"))
	runtime := search.NewRuntime(sqlxDB, store, indexer, rate.Limit(20), 100)

	logger := logging.New("search", false)
	go func() {
		if err := runtime.Run(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("search runtime stopped")
		}
	}()

	svc := search.NewService(indexer, search.NewDefaultAnalyzer())
	handler := search.NewHandler(svc)

	router := chi.NewRouter()
	handler.Routes(router)

	port := getEnv("PORT", "8085")
	fmt.Printf("🔎 Starting Search Service on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
