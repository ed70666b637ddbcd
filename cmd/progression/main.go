// cmd/progression/main.go
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
	"golang.org/x/time/rate"

	"github.com/jules-labs/lexitrace/internal/progress"
	"github.com/jules-labs/lexitrace/pkg/config"
	"github.com/jules-labs/lexitrace/pkg/eventbus"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := observability.Init(ctx, "lexitrace-progression", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"))
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

	registry := schemaregistry.New(db, cfg.Registry.MaxVersions, time.Duration(cfg.Registry.CacheTTLSeconds)*time.Second)
	store := eventstore.New(db, eventstore.WithSchemaRegistry(registry))
	bus := eventbus.NewMemoryBus("lexitrace", logging.New("progression", false))
	runtime := progress.NewRuntime(sqlxDB, store, bus, rate.Limit(20), 100)

	logger := logging.New("progression", false)
	go func() {
		if err := runtime.Run(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("projection runtime stopped")
		}
	}()

	svc := progress.NewService(sqlxDB)
	handler := progress.NewHandler(svc)

	router := chi.NewRouter()
	handler.Routes(router)

	port := getEnv("PORT", "8084")
	fmt.Printf("📈 Starting Progression Service on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
