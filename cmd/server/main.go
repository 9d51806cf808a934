package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/pinnacle/tender-finder/internal/api"
	"github.com/pinnacle/tender-finder/internal/catalog"
	"github.com/pinnacle/tender-finder/internal/db"
	"github.com/pinnacle/tender-finder/internal/ingest"
	"github.com/pinnacle/tender-finder/internal/mercadopublico"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	settings, err := ingest.LoadSettings()
	if err != nil {
		log.Fatalf("Failed to load watch settings: %v", err)
	}

	cat, err := catalog.Load()
	if err != nil {
		log.Fatalf("Failed to load product catalog: %v", err)
	}
	log.Printf("Loaded %d catalog products", cat.Len())

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	client := mercadopublico.NewClient(mercadopublico.Config{
		BaseURL:     settings.API.BaseURL,
		Ticket:      settings.API.Ticket,
		OrgCode:     settings.API.OrgCode,
		Status:      settings.API.Status,
		Timeout:     settings.Timeout(),
		MaxAttempts: settings.API.MaxAttempts,
		BackoffBase: settings.BackoffBase(),
	})

	pipeline := ingest.NewPipeline(client, cat, settings.CallDelay())
	srv := api.NewServer(pool, pipeline)

	go scheduleRefresh(srv, settings.RefreshInterval())

	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}

// scheduleRefresh kicks off a refresh at startup and then on every tick.
// An in-flight refresh makes TriggerRefresh a no-op for that tick.
func scheduleRefresh(srv *api.Server, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	if _, err := srv.TriggerRefresh(); err != nil {
		log.Printf("Startup refresh not started: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if _, err := srv.TriggerRefresh(); err != nil {
			log.Printf("Scheduled refresh skipped: %v", err)
		}
	}
}
