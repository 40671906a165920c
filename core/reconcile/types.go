package reconcile

import "context"

// Location is a remote stock location.
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Level is the quantity of one variant at one location.
type Level struct {
	LocationID string `json:"location_id"`
	Quantity   int    `json:"quantity"`
}

// ListedVariant is one variant returned by the remote listing.
type ListedVariant struct {
	SKU             string  `json:"sku"`
	VariantID       string  `json:"variant_id"`
	InventoryItemID string  `json:"inventory_item_id"`
	Levels          []Level `json:"levels"`
}

// Page is one page of the remote listing.
type Page struct {
	Variants    []ListedVariant
	HasNextPage bool
	EndCursor   string
}

// Lister pages through the remote variant listing. An empty cursor requests the first page.
type Lister interface {
	ListInventory(ctx context.Context, cursor string) (*Page, error)
}

// LocationSource lists every stock location.
type LocationSource interface {
	ListLocations(ctx context.Context) ([]Location, error)
}
