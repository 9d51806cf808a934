package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pinnacle/tender-finder/internal/catalog"
	"github.com/pinnacle/tender-finder/internal/db"
	"github.com/pinnacle/tender-finder/internal/ingest"
	"github.com/pinnacle/tender-finder/internal/mercadopublico"
)

// One-shot watch run from the terminal: scan, print the matches, and
// optionally persist the snapshot with -save.
func main() {
	save := flag.Bool("save", false, "persist the run as the new snapshot")
	flag.Parse()

	settings, err := ingest.LoadSettings()
	if err != nil {
		log.Fatalf("Failed to load watch settings: %v", err)
	}

	cat, err := catalog.Load()
	if err != nil {
		log.Fatalf("Failed to load product catalog: %v", err)
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

	ctx := context.Background()
	pipeline := ingest.NewPipeline(client, cat, settings.CallDelay())
	res := pipeline.Run(ctx)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Tender", "Product", "Item", "Qty", "Closes", "Days"})
	for _, o := range res.Opportunities {
		t.AppendRow(table.Row{o.TenderID, o.CatalogProduct, o.ItemName, o.Quantity, o.ClosingDate, o.DaysToClose.String()})
	}
	t.Render()

	log.Printf("Run %s: %d opportunities from %d tenders (%d failed)",
		res.RunID, len(res.Opportunities), res.TendersScanned, res.TendersFailed)

	if !*save {
		return
	}

	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	store := db.NewStore(pool)
	stats := db.RunStats{
		RunID:          res.RunID,
		GeneratedAt:    res.GeneratedAt,
		TendersScanned: res.TendersScanned,
		TendersFailed:  res.TendersFailed,
	}
	if err := store.SaveRun(ctx, stats, res.Opportunities); err != nil {
		log.Fatalf("Failed to save snapshot: %v", err)
	}
	log.Printf("Snapshot saved as run %s", res.RunID)
}
