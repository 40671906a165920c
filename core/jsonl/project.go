package jsonl

import "strings"

// DefaultQuantityName is the quantity reported for each level.
const DefaultQuantityName = "available"

// Row is the flat projection of one (variant, inventory level) pair.
type Row struct {
	ProductID       string `json:"product_id"`
	ProductTitle    string `json:"product_title"`
	Handle          string `json:"handle"`
	VariantID       string `json:"variant_id"`
	VariantTitle    string `json:"variant_title"`
	SKU             string `json:"sku"`
	InventoryItemID string `json:"inventory_item_id"`
	LocationID      string `json:"location_id"`
	LocationName    string `json:"location_name"`
	Quantity        int    `json:"quantity"`
	// Stocked is false for the placeholder row of a variant without levels.
	Stocked bool `json:"stocked"`
}

// Filter narrows a projection.
type Filter struct {
	// LocationID keeps only levels at this location. Empty means all locations.
	LocationID string
	// QuantityName selects the quantity to report. Empty means "available".
	QuantityName string
}

// Project flattens products into one row per (variant, inventory level) pair.
//
// A variant without levels yields one placeholder row, unless a location filter is set,
// in which case variants without a matching level are left out.
func Project(products []*Node, f Filter) []Row {
	qtyName := f.QuantityName
	if qtyName == "" {
		qtyName = DefaultQuantityName
	}

	var rows []Row
	for _, p := range products {
		for _, v := range p.ChildrenOf(KindVariant) {
			base := Row{
				ProductID:       p.ID,
				ProductTitle:    p.Title,
				Handle:          p.Handle,
				VariantID:       v.ID,
				VariantTitle:    v.Title,
				SKU:             v.SKU,
				InventoryItemID: inventoryItemID(v),
			}

			matched := 0
			for _, lvl := range levels(v) {
				if lvl.Location == nil {
					continue
				}
				if f.LocationID != "" && !strings.EqualFold(lvl.Location.ID, f.LocationID) {
					continue
				}
				qty, _ := lvl.quantity(qtyName)
				row := base
				row.LocationID = lvl.Location.ID
				row.LocationName = lvl.Location.Name
				row.Quantity = qty
				row.Stocked = true
				rows = append(rows, row)
				matched++
			}

			if matched == 0 && f.LocationID == "" {
				rows = append(rows, base)
			}
		}
	}
	return rows
}

// levels collects the levels of a variant, whether attached through its inventory
// item or directly.
func levels(v *Node) []*Node {
	out := v.ChildrenOf(KindInventoryLevel)
	for _, item := range v.ChildrenOf(KindInventoryItem) {
		out = append(out, item.ChildrenOf(KindInventoryLevel)...)
	}
	return out
}

func inventoryItemID(v *Node) string {
	if items := v.ChildrenOf(KindInventoryItem); len(items) > 0 {
		return items[0].ID
	}
	if v.InventoryItem != nil {
		return v.InventoryItem.ID
	}
	return ""
}
