package mercadopublico

import (
	"encoding/json"
	"strconv"
	"strings"
)

// envelope is the response shape both operations share: a count, a
// listing, and an application-level error code the API embeds in bodies
// that are otherwise valid JSON (notably its throttling signal).
type envelope struct {
	Cantidad int             `json:"Cantidad"`
	Codigo   int             `json:"Codigo"`
	Mensaje  string          `json:"Mensaje"`
	Listado  json.RawMessage `json:"Listado"`
}

func (e *envelope) emptyListing() bool {
	return e.Cantidad == 0 || len(e.Listado) == 0 || string(e.Listado) == "null"
}

// TenderSummary is one row of the active-tender listing for an
// organization.
type TenderSummary struct {
	CodigoExterno string `json:"CodigoExterno"`
	Nombre        string `json:"Nombre"`
	CodigoEstado  int    `json:"CodigoEstado"`
	FechaCierre   string `json:"FechaCierre"`
}

// TenderDetail is the full tender object the detail call returns. The
// closing date can appear at the top level or nested under Fechas.
type TenderDetail struct {
	CodigoExterno string      `json:"CodigoExterno"`
	Nombre        string      `json:"Nombre"`
	FechaCierre   string      `json:"FechaCierre"`
	Fechas        TenderDates `json:"Fechas"`
	Items         ItemListing `json:"Items"`
}

type TenderDates struct {
	FechaCierre string `json:"FechaCierre"`
}

type ItemListing struct {
	Cantidad int        `json:"Cantidad"`
	Listado  []LineItem `json:"Listado"`
}

// LineItem is a single product line inside a tender. Name, description
// and quantity may all be absent.
type LineItem struct {
	Correlativo    int      `json:"Correlativo"`
	CodigoProducto int      `json:"CodigoProducto"`
	NombreProducto string   `json:"NombreProducto"`
	Descripcion    string   `json:"Descripcion"`
	UnidadMedida   string   `json:"UnidadMedida"`
	Cantidad       Quantity `json:"Cantidad"`
}

// ClosingDate returns the tender's raw closing-date string. The top-level
// field takes precedence over the nested Fechas block; consumers depend
// on that order.
func (d *TenderDetail) ClosingDate() string {
	if strings.TrimSpace(d.FechaCierre) != "" {
		return d.FechaCierre
	}
	return d.Fechas.FechaCierre
}

// Quantity tolerates both string and numeric encodings of item
// quantities. Integral floats render without the trailing fraction.
type Quantity string

func (q *Quantity) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*q = ""
		return nil
	}

	if s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*q = Quantity(strings.TrimSpace(v))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		*q = Quantity(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*q = Quantity(n.String())
	return nil
}

func (q Quantity) String() string {
	return string(q)
}
