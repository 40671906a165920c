package inventory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"inventory-sync/core/jsonl"
	"inventory-sync/core/reconcile"
	"inventory-sync/core/utils"
)

// ErrNoSKUColumn is returned when an imported sheet has no SKU column.
var ErrNoSKUColumn = errors.New("sheet has no sku column")

// ErrNoQuantityColumn is returned when an imported sheet has no quantity column.
var ErrNoQuantityColumn = errors.New("sheet has no quantity column")

var (
	skuHeaders      = []string{"sku", "variant sku"}
	quantityHeaders = []string{"quantity", "qty", "available"}
	locationHeaders = []string{"location", "location name"}
)

var exportHeader = []string{
	"product_title", "handle", "variant_title", "sku", "location", "quantity",
	"variant_id", "inventory_item_id", "location_id",
}

// DecodeRows reads desired rows from a CSV sheet with a header line.
// Headers are matched case-insensitively. Blank lines are skipped and every row keeps
// its line number in the sheet.
func DecodeRows(r io.Reader) ([]reconcile.DesiredRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoSKUColumn
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	skuCol := column(header, skuHeaders)
	if skuCol < 0 {
		return nil, ErrNoSKUColumn
	}
	qtyCol := column(header, quantityHeaders)
	if qtyCol < 0 {
		return nil, ErrNoQuantityColumn
	}
	locCol := column(header, locationHeaders)

	var rows []reconcile.DesiredRow
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read sheet: %w", err)
		}
		if blank(record) {
			continue
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, reconcile.DesiredRow{
			Line:          line,
			SKU:           strings.TrimSpace(cell(record, skuCol)),
			Quantity:      utils.ToQuantity(cell(record, qtyCol)),
			LocationLabel: strings.TrimSpace(cell(record, locCol)),
		})
	}
	return rows, nil
}

// WriteRows writes exported rows as CSV. The sku, location and quantity columns make
// the sheet importable as is.
func WriteRows(w io.Writer, rows []jsonl.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		qty := ""
		if r.Stocked {
			qty = strconv.Itoa(r.Quantity)
		}
		if err := cw.Write([]string{
			r.ProductTitle, r.Handle, r.VariantTitle, r.SKU, r.LocationName, qty,
			r.VariantID, r.InventoryItemID, r.LocationID,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func column(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func blank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
