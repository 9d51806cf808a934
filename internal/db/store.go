package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pinnacle/tender-finder/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RunStats summarizes one stored watch run.
type RunStats struct {
	RunID            string    `json:"run_id"`
	GeneratedAt      time.Time `json:"generated_at"`
	TendersScanned   int       `json:"tenders_scanned"`
	TendersFailed    int       `json:"tenders_failed"`
	OpportunityCount int       `json:"opportunity_count"`
}

// SaveRun stores a run's opportunities as the new snapshot, replacing the
// previous snapshot wholesale. Run stat rows are kept for operability.
func (s *Store) SaveRun(ctx context.Context, stats RunStats, opps []models.Opportunity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM opportunities"); err != nil {
		return fmt.Errorf("clearing previous snapshot: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO watch_runs (run_id, generated_at, tenders_scanned, tenders_failed, opportunity_count)
		VALUES ($1, $2, $3, $4, $5)`,
		stats.RunID, stats.GeneratedAt, stats.TendersScanned, stats.TendersFailed, len(opps),
	); err != nil {
		return fmt.Errorf("recording watch run: %w", err)
	}

	for i, o := range opps {
		if _, err := tx.Exec(ctx, `
			INSERT INTO opportunities (
				run_id, position, tender_id, catalog_product, item_name,
				description, quantity, closing_date_display, days_to_close, tender_name
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			stats.RunID, i, o.TenderID, o.CatalogProduct, o.ItemName,
			o.Description, o.Quantity, o.ClosingDate, daysOrNil(o.DaysToClose), o.TenderName,
		); err != nil {
			return fmt.Errorf("inserting opportunity %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

// LatestSnapshot returns the most recent run's stats and opportunities in
// their original order. No snapshot yet returns (nil, nil, nil).
func (s *Store) LatestSnapshot(ctx context.Context) (*RunStats, []models.Opportunity, error) {
	var stats RunStats
	err := s.pool.QueryRow(ctx, `
		SELECT run_id::text, generated_at, tenders_scanned, tenders_failed, opportunity_count
		FROM watch_runs ORDER BY generated_at DESC LIMIT 1
	`).Scan(&stats.RunID, &stats.GeneratedAt, &stats.TendersScanned, &stats.TendersFailed, &stats.OpportunityCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading latest run: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT tender_id, catalog_product, item_name, description, quantity,
		       closing_date_display, days_to_close, tender_name
		FROM opportunities WHERE run_id = $1 ORDER BY position
	`, stats.RunID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading snapshot: %w", err)
	}
	defer rows.Close()

	var opps []models.Opportunity
	for rows.Next() {
		var o models.Opportunity
		var days *int
		if err := rows.Scan(&o.TenderID, &o.CatalogProduct, &o.ItemName, &o.Description,
			&o.Quantity, &o.ClosingDate, &days, &o.TenderName); err != nil {
			return nil, nil, fmt.Errorf("scanning opportunity: %w", err)
		}
		if days != nil {
			o.DaysToClose = models.DaysToClose{Days: *days, Known: true}
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating snapshot: %w", err)
	}

	return &stats, opps, nil
}

// RecentRuns returns up to limit run stat rows, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunStats, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx, `
		SELECT run_id::text, generated_at, tenders_scanned, tenders_failed, opportunity_count
		FROM watch_runs ORDER BY generated_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("loading runs: %w", err)
	}
	defer rows.Close()

	var runs []RunStats
	for rows.Next() {
		var r RunStats
		if err := rows.Scan(&r.RunID, &r.GeneratedAt, &r.TendersScanned, &r.TendersFailed, &r.OpportunityCount); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func daysOrNil(d models.DaysToClose) interface{} {
	if !d.Known {
		return nil
	}
	return d.Days
}
