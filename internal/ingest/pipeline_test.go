package ingest

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/pinnacle/tender-finder/internal/catalog"
	"github.com/pinnacle/tender-finder/internal/mercadopublico"
	"github.com/pinnacle/tender-finder/internal/runlog"
)

type fakeAPI struct {
	summaries []mercadopublico.TenderSummary
	details   map[string]*mercadopublico.TenderDetail
	fetched   []string
}

func (f *fakeAPI) ListActiveTenders(ctx context.Context, rl *runlog.Log) []mercadopublico.TenderSummary {
	return f.summaries
}

func (f *fakeAPI) GetTenderDetail(ctx context.Context, rl *runlog.Log, code string) *mercadopublico.TenderDetail {
	f.fetched = append(f.fetched, code)
	d, ok := f.details[code]
	if !ok {
		rl.Errorf("tender %s: not found", code)
		return nil
	}
	return d
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse("IBUPROFENO\nPARACETAMOL\tacetaminofen")
	if err != nil {
		t.Fatalf("catalog.Parse failed: %v", err)
	}
	return c
}

func testPipeline(api TenderAPI, cat *catalog.Catalog) *Pipeline {
	p := NewPipeline(api, cat, time.Second)
	p.CallDelay = 0
	p.Now = func() time.Time { return time.Date(2025, 5, 30, 10, 0, 0, 0, time.UTC) }
	return p
}

func runOnce(p *Pipeline) *RunResult {
	return p.Run(context.Background())
}

func TestRunMatchesCatalogItems(t *testing.T) {
	api := &fakeAPI{
		summaries: []mercadopublico.TenderSummary{{CodigoExterno: "1057-10-LE25"}},
		details: map[string]*mercadopublico.TenderDetail{
			"1057-10-LE25": {
				CodigoExterno: "1057-10-LE25",
				Nombre:        "Suministro  de\tfarmacos",
				FechaCierre:   "2025-06-01T10:00:00",
				Items: mercadopublico.ItemListing{Cantidad: 2, Listado: []mercadopublico.LineItem{
					{NombreProducto: "Ibuprofeno 400mg", Descripcion: "<p>comprimidos recubiertos</p>", Cantidad: "1200"},
					{NombreProducto: "Gasa esteril", Descripcion: "10x10cm"},
				}},
			},
		},
	}

	res := runOnce(testPipeline(api, testCatalog(t)))

	if res.TendersScanned != 1 || res.TendersFailed != 0 {
		t.Errorf("scanned/failed = %d/%d, want 1/0", res.TendersScanned, res.TendersFailed)
	}
	if len(res.Opportunities) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(res.Opportunities))
	}

	o := res.Opportunities[0]
	if o.TenderID != "1057-10-LE25" || o.CatalogProduct != "IBUPROFENO" {
		t.Errorf("unexpected match: %+v", o)
	}
	if o.Description != "comprimidos recubiertos" {
		t.Errorf("description not sanitized: %q", o.Description)
	}
	if o.TenderName != "Suministro de farmacos" {
		t.Errorf("tender name not cleaned: %q", o.TenderName)
	}
	if o.ClosingDate != "01/06/2025 10:00" {
		t.Errorf("closing date = %q", o.ClosingDate)
	}
	if !o.DaysToClose.Known || o.DaysToClose.Days != 2 {
		t.Errorf("days to close = %+v", o.DaysToClose)
	}
	if o.Quantity != "1200" {
		t.Errorf("quantity = %q", o.Quantity)
	}
}

func TestRunSkipsMissingIdentifier(t *testing.T) {
	api := &fakeAPI{
		summaries: []mercadopublico.TenderSummary{
			{CodigoExterno: "   "},
			{CodigoExterno: "2097-5-L125"},
		},
		details: map[string]*mercadopublico.TenderDetail{
			"2097-5-L125": {Items: mercadopublico.ItemListing{Cantidad: 1, Listado: []mercadopublico.LineItem{
				{NombreProducto: "Paracetamol 500mg"},
			}}},
		},
	}

	res := runOnce(testPipeline(api, testCatalog(t)))

	if res.TendersScanned != 1 {
		t.Errorf("scanned = %d, want 1 (blank identifier skipped)", res.TendersScanned)
	}
	if !reflect.DeepEqual(api.fetched, []string{"2097-5-L125"}) {
		t.Errorf("fetched = %v", api.fetched)
	}
	if len(res.Opportunities) != 1 {
		t.Errorf("expected 1 opportunity, got %d", len(res.Opportunities))
	}
}

func TestRunEmptyListing(t *testing.T) {
	res := runOnce(testPipeline(&fakeAPI{}, testCatalog(t)))

	if res.RunID == "" {
		t.Error("missing run ID")
	}
	if res.GeneratedAt.IsZero() {
		t.Error("missing GeneratedAt")
	}
	if len(res.Opportunities) != 0 || res.TendersScanned != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestRunCountsDetailFailures(t *testing.T) {
	// One tender resolves, one fails; the failure never aborts the run.
	api := &fakeAPI{
		summaries: []mercadopublico.TenderSummary{
			{CodigoExterno: "broken-1"},
			{CodigoExterno: "2097-5-L125"},
		},
		details: map[string]*mercadopublico.TenderDetail{
			"2097-5-L125": {Items: mercadopublico.ItemListing{Cantidad: 1, Listado: []mercadopublico.LineItem{
				{NombreProducto: "Ibuprofeno suspension"},
			}}},
		},
	}

	res := runOnce(testPipeline(api, testCatalog(t)))

	if res.TendersScanned != 2 || res.TendersFailed != 1 {
		t.Errorf("scanned/failed = %d/%d, want 2/1", res.TendersScanned, res.TendersFailed)
	}
	if len(res.Opportunities) != 1 {
		t.Errorf("expected 1 opportunity, got %d", len(res.Opportunities))
	}
}

func TestRunTenderWithoutItems(t *testing.T) {
	api := &fakeAPI{
		summaries: []mercadopublico.TenderSummary{{CodigoExterno: "1057-10-LE25"}},
		details: map[string]*mercadopublico.TenderDetail{
			"1057-10-LE25": {FechaCierre: "2025-06-01T10:00:00"},
		},
	}

	res := runOnce(testPipeline(api, testCatalog(t)))

	if res.TendersScanned != 1 || res.TendersFailed != 0 {
		t.Errorf("scanned/failed = %d/%d, want 1/0", res.TendersScanned, res.TendersFailed)
	}
	if len(res.Opportunities) != 0 {
		t.Errorf("expected no opportunities, got %d", len(res.Opportunities))
	}

	var warned bool
	for _, e := range res.Log.Entries() {
		if e.Level == runlog.LevelWarn {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a warning for the itemless tender")
	}
}

func TestRunUnparseableClosingDate(t *testing.T) {
	api := &fakeAPI{
		summaries: []mercadopublico.TenderSummary{{CodigoExterno: "1057-10-LE25"}},
		details: map[string]*mercadopublico.TenderDetail{
			"1057-10-LE25": {
				FechaCierre: "pronto",
				Items: mercadopublico.ItemListing{Cantidad: 1, Listado: []mercadopublico.LineItem{
					{NombreProducto: "Ibuprofeno 600mg"},
				}},
			},
		},
	}

	res := runOnce(testPipeline(api, testCatalog(t)))

	if len(res.Opportunities) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(res.Opportunities))
	}
	o := res.Opportunities[0]
	if o.ClosingDate != NAValue || o.DaysToClose.Known {
		t.Errorf("expected N/A closing date, got %q / %+v", o.ClosingDate, o.DaysToClose)
	}
}

func TestRunIsRepeatable(t *testing.T) {
	api := &fakeAPI{
		summaries: []mercadopublico.TenderSummary{{CodigoExterno: "1057-10-LE25"}},
		details: map[string]*mercadopublico.TenderDetail{
			"1057-10-LE25": {
				FechaCierre: "2025-06-01T10:00:00",
				Items: mercadopublico.ItemListing{Cantidad: 1, Listado: []mercadopublico.LineItem{
					{NombreProducto: "Ibuprofeno 400mg", Cantidad: "10"},
				}},
			},
		},
	}

	p := testPipeline(api, testCatalog(t))
	first := runOnce(p)
	second := runOnce(p)

	if first.RunID == second.RunID {
		t.Error("runs must have distinct IDs")
	}
	if !reflect.DeepEqual(first.Opportunities, second.Opportunities) {
		t.Errorf("repeat run diverged:\n first %+v\nsecond %+v", first.Opportunities, second.Opportunities)
	}
}

func TestRunStopsBetweenTendersOnCancel(t *testing.T) {
	api := &fakeAPI{
		summaries: []mercadopublico.TenderSummary{
			{CodigoExterno: "a-1"},
			{CodigoExterno: "a-2"},
		},
		details: map[string]*mercadopublico.TenderDetail{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := testPipeline(api, testCatalog(t))
	res := p.Run(ctx)

	if len(api.fetched) != 0 {
		t.Errorf("fetched %v after cancellation", api.fetched)
	}
	if res.GeneratedAt.IsZero() {
		t.Error("cancelled run still needs a timestamp")
	}
}
