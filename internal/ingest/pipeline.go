// Package ingest drives the opportunity-matching pipeline: list active
// tenders, fetch per-tender detail, match line items against the product
// catalog and assemble the run's opportunity sequence.
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pinnacle/tender-finder/internal/catalog"
	"github.com/pinnacle/tender-finder/internal/models"
	"github.com/pinnacle/tender-finder/internal/runlog"
)

// Pipeline runs one watch pass over the remote API. Calls are strictly
// serial and separated by CallDelay; the endpoint throttles concurrent
// callers. Each Run starts fresh and discards any prior state.
type Pipeline struct {
	API       TenderAPI
	Catalog   *catalog.Catalog
	CallDelay time.Duration

	// Now is the clock used for date arithmetic; tests pin it.
	Now func() time.Time
}

func NewPipeline(api TenderAPI, cat *catalog.Catalog, callDelay time.Duration) *Pipeline {
	if callDelay <= 0 {
		callDelay = time.Second
	}
	return &Pipeline{
		API:       api,
		Catalog:   cat,
		CallDelay: callDelay,
		Now:       time.Now,
	}
}

// Run executes one full pass. Failures local to one tender or one item
// never abort the run: the result carries whatever was matched plus the
// diagnostic trail. An empty listing finishes with zero opportunities.
func (p *Pipeline) Run(ctx context.Context) *RunResult {
	rl := runlog.New()
	res := &RunResult{
		RunID: uuid.NewString(),
		Log:   rl,
	}

	rl.Infof("starting watch run %s", res.RunID)

	summaries := p.API.ListActiveTenders(ctx, rl)
	if len(summaries) == 0 {
		rl.Warnf("no tenders to scan; finishing with zero opportunities")
		res.GeneratedAt = p.Now()
		return res
	}

	now := p.Now()
	for i, sum := range summaries {
		// Cancellation is only checked between tenders; a tender in
		// flight always completes or fails on its own.
		if ctx.Err() != nil {
			rl.Errorf("run cancelled after %d of %d tenders: %v", i, len(summaries), ctx.Err())
			break
		}

		code := strings.TrimSpace(sum.CodigoExterno)
		if code == "" {
			rl.Warnf("skipping tender listing entry %d: missing identifier", i+1)
			continue
		}

		p.sleep(ctx, p.CallDelay)
		res.TendersScanned++

		detail := p.API.GetTenderDetail(ctx, rl, code)
		if detail == nil {
			res.TendersFailed++
			continue
		}

		rawClose := detail.ClosingDate()
		display, days := NormalizeClosingDate(rawClose, now)
		if display == NAValue {
			if strings.TrimSpace(rawClose) == "" {
				rl.Warnf("tender %s: missing closing date", code)
			} else {
				rl.Warnf("tender %s: unparseable closing date %q", code, rawClose)
			}
		}

		items := detail.Items.Listado
		if len(items) == 0 {
			rl.Warnf("tender %s has no line items", code)
			continue
		}

		for _, item := range items {
			product, ok := p.Catalog.Match(item.NombreProducto, item.Descripcion)
			if !ok {
				continue
			}
			res.Opportunities = append(res.Opportunities, models.Opportunity{
				TenderID:       code,
				CatalogProduct: product,
				ItemName:       cleanText(item.NombreProducto),
				Description:    sanitizeDescription(item.Descripcion),
				Quantity:       item.Cantidad.String(),
				ClosingDate:    display,
				DaysToClose:    days,
				TenderName:     cleanText(detail.Nombre),
			})
		}
	}

	res.GeneratedAt = p.Now()
	rl.Infof("watch run %s finished: %d opportunities from %d tenders (%d failed)",
		res.RunID, len(res.Opportunities), res.TendersScanned, res.TendersFailed)
	return res
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
