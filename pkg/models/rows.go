package models

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/hapdco/catalog-engine/pkg/normalize"
)

// SupplierRow is one validated record from the supplier master CSV. Field
// coercion rules live here, not scattered across call sites: every cell is
// parsed with the normalize package and failures fall back to the documented
// defaults instead of propagating.
type SupplierRow struct {
	ID             int64
	Name           string
	LegalName      string
	SalesContact   string
	PhoneField     string
	Website        string
	Delivers       bool
	MinOrder       float64
	OffersCredit   bool
	Rating         *float64
	MembershipTier *float64
}

// ProductRow is one record from a supplier's daily product CSV. SupplierID is
// stamped by the caller from the file name; SupplierProductID comes from the
// id_producto column and is zero (invalid) when that cell failed validation.
type ProductRow struct {
	SupplierID        int64
	SupplierProductID int64
	Name              string
	Code              string
	Brand             string
	Presentation      string
	Unit              string
	PriceRaw          string
	Currency          string
	Categories        []string
	LastUpdatedRaw    string
	Validity          string
}

// Product builds the catalog row for a new business key, applying the price
// and date coercion rules. ok is false when the price cell was unparseable
// (the product is still stored, with a 0.0 price).
func (r *ProductRow) Product() (p *Product, priceOK bool) {
	price, priceOK := normalize.ParsePrice(r.PriceRaw)
	return &Product{
		SupplierID:        r.SupplierID,
		SupplierProductID: r.SupplierProductID,
		Name:              r.Name,
		Code:              r.Code,
		Brand:             r.Brand,
		Presentation:      r.Presentation,
		Unit:              r.Unit,
		UnitPrice:         price,
		Currency:          r.Currency,
		Categories:        r.Categories,
		LastUpdated:       normalize.ParseSpanishDate(r.LastUpdatedRaw),
		Validity:          r.Validity,
	}, priceOK
}

// header maps column names to indices, trimming BOM and whitespace.
type header map[string]int

func (h header) get(record []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readCSV(r io.Reader, required ...string) (header, [][]string, error) {
	// Some exports carry a UTF-8 BOM; it has to go before the latin-1 decode
	// or the first header name gets three junk characters prepended.
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(lead, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	// Supplier exports arrive latin-1 encoded.
	cr := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(br))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty csv")
	}

	h := make(header, len(records[0]))
	for i, name := range records[0] {
		h[strings.TrimSpace(name)] = i
	}
	for _, col := range required {
		if _, ok := h[col]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", col)
		}
	}
	return h, records[1:], nil
}

// ParseSupplierCSV parses the supplier master file. Rows whose id cell is not
// a positive integer are returned separately so the caller can log them.
func ParseSupplierCSV(r io.Reader) (rows []SupplierRow, dropped int, err error) {
	h, records, err := readCSV(r, "id_proveedor")
	if err != nil {
		return nil, 0, err
	}
	for _, rec := range records {
		id, ok := normalize.ParsePositiveInt(h.get(rec, "id_proveedor"))
		if !ok {
			dropped++
			continue
		}
		row := SupplierRow{
			ID:           id,
			Name:         h.get(rec, "nombre_comercial"),
			LegalName:    h.get(rec, "razon_social"),
			SalesContact: h.get(rec, "nombre_ejecutivo_ventas"),
			PhoneField:   h.get(rec, "whatsapp_ventas"),
			Website:      h.get(rec, "pagina_web"),
			Delivers:     normalize.ParseBool(h.get(rec, "entregas_domicilio")),
			MinOrder:     normalize.ParseFloat(h.get(rec, "monto_minimo")),
			OffersCredit: normalize.ParseBool(h.get(rec, "ofrece_credito")),
		}
		if v := h.get(rec, "calificacion_usuarios"); v != "" {
			f := normalize.ParseFloat(v)
			row.Rating = &f
		}
		if v := h.get(rec, "nivel_membresia"); v != "" {
			f := normalize.ParseFloat(v)
			row.MembershipTier = &f
		}
		rows = append(rows, row)
	}
	return rows, dropped, nil
}

// categoryColumns are the fixed multi-valued category headers of the feed.
var categoryColumns = []string{"categoria_1", "categoria_2", "categoria_3", "categoria_4", "categoria_5"}

// ParseProductCSV parses one supplier's daily product file. The id_producto
// column is required; rows with an invalid id are returned with
// SupplierProductID zero so the caller can count and report them before the
// file-level dedupe.
func ParseProductCSV(r io.Reader, supplierID int64) ([]ProductRow, error) {
	h, records, err := readCSV(r, "id_producto")
	if err != nil {
		return nil, err
	}
	rows := make([]ProductRow, 0, len(records))
	for _, rec := range records {
		row := ProductRow{
			SupplierID:     supplierID,
			Name:           h.get(rec, "nombre_producto"),
			Code:           h.get(rec, "cod_producto"),
			Brand:          h.get(rec, "marca"),
			Presentation:   h.get(rec, "presentacion_venta"),
			Unit:           h.get(rec, "unidad_venta"),
			PriceRaw:       h.get(rec, "precio_unidad"),
			Currency:       h.get(rec, "moneda"),
			LastUpdatedRaw: h.get(rec, "ultima_actualizacion"),
			Validity:       h.get(rec, "vigencia"),
		}
		if id, ok := normalize.ParsePositiveInt(h.get(rec, "id_producto")); ok {
			row.SupplierProductID = id
		}
		for _, col := range categoryColumns {
			if c := h.get(rec, col); c != "" {
				row.Categories = append(row.Categories, c)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
