// cmd/registry/main.go
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
	_ "github.com/lib/pq"

	"github.com/jules-labs/lexitrace/pkg/config"
	"github.com/jules-labs/lexitrace/pkg/observability"
	"github.com/jules-labs/lexitrace/pkg/schemaregistry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	shutdown, err := observability.Init(ctx, "lexitrace-registry", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"))
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
	handler := schemaregistry.NewHandler(registry)

	router := chi.NewRouter()
	handler.Routes(router)

	port := getEnv("PORT", "8091")
	fmt.Printf("📋 Starting Schema Registry Service on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
