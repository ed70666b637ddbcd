// cmd/gateway/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"github.com/jules-labs/lexitrace/pkg/observability"
)

func main() {
	ctx := context.Background()
	shutdown, err := observability.Init(ctx, "lexitrace-gateway", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"))
	if err != nil {
		log.Fatalf("observability: %v", err)
	}
	defer shutdown(ctx)

	vocabularyServiceURL, _ := url.Parse(getEnv("VOCABULARY_SERVICE_URL", "http://localhost:8081"))
	userServiceURL, _ := url.Parse(getEnv("USER_SERVICE_URL", "http://localhost:8082"))
	algorithmServiceURL, _ := url.Parse(getEnv("ALGORITHM_SERVICE_URL", "http://localhost:8083"))
	progressionServiceURL, _ := url.Parse(getEnv("PROGRESSION_SERVICE_URL", "http://localhost:8084"))
	searchServiceURL, _ := url.Parse(getEnv("SEARCH_SERVICE_URL", "http://localhost:8085"))
	eventstoreServiceURL, _ := url.Parse(getEnv("EVENTSTORE_SERVICE_URL", "http://localhost:8090"))
	registryServiceURL, _ := url.Parse(getEnv("REGISTRY_SERVICE_URL", "http://localhost:8091"))

	vocabularyProxy := httputil.NewSingleHostReverseProxy(vocabularyServiceURL)
	userProxy := httputil.NewSingleHostReverseProxy(userServiceURL)
	algorithmProxy := httputil.NewSingleHostReverseProxy(algorithmServiceURL)
	progressionProxy := httputil.NewSingleHostReverseProxy(progressionServiceURL)
	searchProxy := httputil.NewSingleHostReverseProxy(searchServiceURL)
	eventstoreProxy := httputil.NewSingleHostReverseProxy(eventstoreServiceURL)
	registryProxy := httputil.NewSingleHostReverseProxy(registryServiceURL)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/vocabulary/", http.StripPrefix("/api/v1/vocabulary", vocabularyProxy))
	mux.Handle("/api/v1/users/", http.StripPrefix("/api/v1/users", userProxy))
	mux.Handle("/api/v1/algorithm/", http.StripPrefix("/api/v1/algorithm", algorithmProxy))
	mux.Handle("/api/v1/progression/", http.StripPrefix("/api/v1/progression", progressionProxy))
	mux.Handle("/api/v1/search/", http.StripPrefix("/api/v1/search", searchProxy))
	mux.Handle("/api/v1/ops/events/", http.StripPrefix("/api/v1/ops/events", eventstoreProxy))
	mux.Handle("/api/v1/ops/schemas/", http.StripPrefix("/api/v1/ops/schemas", registryProxy))

	port := getEnv("PORT", "8080")
	log.Printf("🚪 API Gateway listening on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, mux))
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
