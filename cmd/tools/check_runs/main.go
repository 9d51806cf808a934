package main

import (
	"context"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pinnacle/tender-finder/internal/db"
)

func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Generated At", "Scanned", "Failed", "Opportunities"})

	for _, r := range runs {
		t.AppendRow(table.Row{r.RunID[:8], r.GeneratedAt.Format("02/01 15:04"), r.TendersScanned, r.TendersFailed, r.OpportunityCount})
	}
	t.Render()
}
