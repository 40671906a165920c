package remote

import (
	"context"

	"inventory-sync/core/reconcile"
)

const variantsQuery = `query inventoryVariants($first: Int!, $after: String, $names: [String!]!) {
  productVariants(first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    nodes {
      id
      sku
      inventoryItem {
        id
        inventoryLevels(first: 250) {
          nodes {
            location { id }
            quantities(names: $names) { name quantity }
          }
        }
      }
    }
  }
}`

const locationsQuery = `query locations($first: Int!, $after: String) {
  locations(first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    nodes { id name }
  }
}`

type pageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

func (p pageInfo) cursor() string {
	if p.EndCursor == nil {
		return ""
	}
	return *p.EndCursor
}

type variantNode struct {
	ID            string `json:"id"`
	SKU           string `json:"sku"`
	InventoryItem *struct {
		ID              string `json:"id"`
		InventoryLevels struct {
			Nodes []struct {
				Location struct {
					ID string `json:"id"`
				} `json:"location"`
				Quantities []struct {
					Name     string `json:"name"`
					Quantity int    `json:"quantity"`
				} `json:"quantities"`
			} `json:"nodes"`
		} `json:"inventoryLevels"`
	} `json:"inventoryItem"`
}

func cursorVar(cursor string) any {
	if cursor == "" {
		return nil
	}
	return cursor
}

// ListInventory fetches one page of variants with their levels.
func (c *Client) ListInventory(ctx context.Context, cursor string) (*reconcile.Page, error) {
	var data struct {
		Variants struct {
			PageInfo pageInfo      `json:"pageInfo"`
			Nodes    []variantNode `json:"nodes"`
		} `json:"productVariants"`
	}
	vars := map[string]any{
		"first": c.cfg.pageSize(),
		"after": cursorVar(cursor),
		"names": []string{c.quantityName},
	}
	if err := c.Do(ctx, variantsQuery, vars, &data); err != nil {
		return nil, err
	}

	page := &reconcile.Page{
		HasNextPage: data.Variants.PageInfo.HasNextPage,
		EndCursor:   data.Variants.PageInfo.cursor(),
		Variants:    make([]reconcile.ListedVariant, 0, len(data.Variants.Nodes)),
	}
	for _, n := range data.Variants.Nodes {
		v := reconcile.ListedVariant{SKU: n.SKU, VariantID: n.ID}
		if n.InventoryItem != nil {
			v.InventoryItemID = n.InventoryItem.ID
			for _, lvl := range n.InventoryItem.InventoryLevels.Nodes {
				for _, q := range lvl.Quantities {
					if q.Name == c.quantityName {
						v.Levels = append(v.Levels, reconcile.Level{LocationID: lvl.Location.ID, Quantity: q.Quantity})
					}
				}
			}
		}
		page.Variants = append(page.Variants, v)
	}
	return page, nil
}

// ListLocations fetches every location.
func (c *Client) ListLocations(ctx context.Context) ([]reconcile.Location, error) {
	var locations []reconcile.Location
	cursor := ""
	for {
		var data struct {
			Locations struct {
				PageInfo pageInfo             `json:"pageInfo"`
				Nodes    []reconcile.Location `json:"nodes"`
			} `json:"locations"`
		}
		vars := map[string]any{"first": c.cfg.pageSize(), "after": cursorVar(cursor)}
		if err := c.Do(ctx, locationsQuery, vars, &data); err != nil {
			return nil, err
		}
		locations = append(locations, data.Locations.Nodes...)

		next := data.Locations.PageInfo.cursor()
		if !data.Locations.PageInfo.HasNextPage || next == "" || next == cursor {
			return locations, nil
		}
		cursor = next
	}
}

var (
	_ reconcile.Lister         = (*Client)(nil)
	_ reconcile.LocationSource = (*Client)(nil)
)
