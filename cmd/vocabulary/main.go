// cmd/vocabulary/main.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/jules-labs/lexitrace/internal/vocabulary"
	"github.com/jules-labs/lexitrace/pkg/config"
	"github.com/jules-labs/lexitrace/pkg/eventbus"
	"github.com/jules-labs/lexitrace/pkg/events"
	"github.com/jules-labs/lexitrace/pkg/eventstore"
	"github.com/jules-labs/lexitrace/pkg/logging"
	"github.com/jules-labs/lexitrace/pkg/observability"
	"github.com/jules-labs/lexitrace/pkg/schemaregistry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	shutdown, err := observability.Init(ctx, "lexitrace-vocabulary", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"))
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

	registry := schemaregistry.New(db, cfg.Registry.MaxVersions, time.Duration(cfg.Registry.CacheTTLSeconds)*time.Second)
	validator := schemaregistry.NewValidator(registry)
	validator.RegisterCheck(events.TypeVocabularyEntryCreated, schemaregistry.RequireFields("entry_id", "spelling"))

	store := eventstore.New(db, eventstore.WithSchemaRegistry(registry), eventstore.WithValidator(validator))
	bus := eventbus.NewMemoryBus("lexitrace", logging.New("vocabulary", false))
	svc := vocabulary.NewService(store, bus, sqlx.NewDb(db, "postgres"))
	handler := vocabulary.NewHandler(svc)

	router := chi.NewRouter()
	handler.Routes(router)

	port := getEnv("PORT", "8081")
	fmt.Printf("📚 Starting Vocabulary Service on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
