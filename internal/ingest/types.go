package ingest

import (
	"context"
	"time"

	"github.com/pinnacle/tender-finder/internal/mercadopublico"
	"github.com/pinnacle/tender-finder/internal/models"
	"github.com/pinnacle/tender-finder/internal/runlog"
)

// TenderAPI is the slice of the remote client the pipeline needs. Both
// operations fail soft: the listing degrades to an empty slice and the
// detail to nil, with diagnostics already recorded on the run log.
type TenderAPI interface {
	ListActiveTenders(ctx context.Context, rl *runlog.Log) []mercadopublico.TenderSummary
	GetTenderDetail(ctx context.Context, rl *runlog.Log, code string) *mercadopublico.TenderDetail
}

// RunResult is the output of one complete watch run: the fresh
// opportunity sequence plus its diagnostic trail. Results are replaced
// wholesale on the next run, never merged.
type RunResult struct {
	RunID          string
	GeneratedAt    time.Time
	Opportunities  []models.Opportunity
	TendersScanned int
	TendersFailed  int
	Log            *runlog.Log
}
