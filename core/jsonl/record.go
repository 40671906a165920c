package jsonl

import (
	"encoding/json"
	"strings"
)

// Kind is the closed set of entity types found in a bulk read result.
type Kind int

const (
	KindUnknown Kind = iota
	KindProduct
	KindVariant
	KindInventoryItem
	KindInventoryLevel
)

func (k Kind) String() string {
	switch k {
	case KindProduct:
		return "Product"
	case KindVariant:
		return "ProductVariant"
	case KindInventoryItem:
		return "InventoryItem"
	case KindInventoryLevel:
		return "InventoryLevel"
	default:
		return "Unknown"
	}
}

// Location is the location reference carried by an inventory level.
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Quantity is one named quantity of an inventory level (e.g. "available").
type Quantity struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// ItemRef is the inline inventory item of a variant line.
type ItemRef struct {
	ID string `json:"id"`
}

// Record is one decoded result line. Only the fields used downstream are kept.
type Record struct {
	ID            string     `json:"id"`
	ParentID      string     `json:"__parentId"`
	Title         string     `json:"title"`
	Handle        string     `json:"handle"`
	SKU           string     `json:"sku"`
	InventoryItem *ItemRef   `json:"inventoryItem"`
	Location      *Location  `json:"location"`
	Quantities    []Quantity `json:"quantities"`

	// Kind is resolved once by Classify.
	Kind Kind `json:"-"`
}

// DecodeRecord parses one line and classifies it.
func DecodeRecord(line []byte) (Record, error) {
	var raw struct {
		Record
		AltParentID string `json:"parentId"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return Record{}, err
	}
	rec := raw.Record
	if rec.ParentID == "" {
		rec.ParentID = raw.AltParentID
	}
	rec.Kind = Classify(rec)
	return rec, nil
}

// Classify resolves the entity type of a record from the type tag of its id,
// falling back to the record's shape.
func Classify(r Record) Kind {
	switch typeTag(r.ID) {
	case "Product":
		return KindProduct
	case "ProductVariant":
		return KindVariant
	case "InventoryItem":
		return KindInventoryItem
	case "InventoryLevel":
		return KindInventoryLevel
	}
	if r.Location != nil && r.Quantities != nil {
		return KindInventoryLevel
	}
	return KindUnknown
}

// typeTag extracts "Type" from "gid://app/Type/123?query".
func typeTag(id string) string {
	rest, ok := strings.CutPrefix(id, "gid://")
	if !ok {
		return ""
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}

// quantity returns the named quantity of a level record.
func (r Record) quantity(name string) (int, bool) {
	for _, q := range r.Quantities {
		if q.Name == name {
			return q.Quantity, true
		}
	}
	return 0, false
}
