package models

import (
	"encoding/json"
	"strconv"
)

// Opportunity is one catalog-matched tender line item, enriched with
// timing and context. JSON tags follow the cache contract the dashboard
// viewer indexes by column name; changing them breaks the viewer.
type Opportunity struct {
	TenderID       string      `json:"Tender_id"`
	CatalogProduct string      `json:"Producto de mi Catálogo"`
	ItemName       string      `json:"Nombre_Producto Licitación"`
	Description    string      `json:"Descripcion"`
	Quantity       string      `json:"Quantity"`
	ClosingDate    string      `json:"Fecha Cierre"`
	DaysToClose    DaysToClose `json:"Vencimiento"`
	TenderName     string      `json:"Nombre Licitación General"`
}

// Feed is the JSON envelope published for the dashboard: the latest run's
// opportunities plus the timestamp the run completed.
type Feed struct {
	FechaCache    string        `json:"fecha_cache"`
	Oportunidades []Opportunity `json:"oportunidades"`
}

// DaysToClose counts whole days until a tender closes. Unknown values
// marshal as the literal "N/A", matching the dashboard contract.
type DaysToClose struct {
	Days  int
	Known bool
}

func (d DaysToClose) MarshalJSON() ([]byte, error) {
	if !d.Known {
		return json.Marshal("N/A")
	}
	return json.Marshal(d.Days)
}

func (d *DaysToClose) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		d.Days, d.Known = n, true
		return nil
	}
	d.Days, d.Known = 0, false
	return nil
}

func (d DaysToClose) String() string {
	if !d.Known {
		return "N/A"
	}
	return strconv.Itoa(d.Days)
}
