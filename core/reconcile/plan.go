package reconcile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// SetQuantitiesMutation is the mutation template run once per payload line.
const SetQuantitiesMutation = `mutation inventorySetQuantities($input: InventorySetQuantitiesInput!) {
  inventorySetQuantities(input: $input) {
    inventoryAdjustmentGroup { id }
    userErrors { field message code }
  }
}`

// BatchUnit is a group of diffs sent in a single mutation call.
type BatchUnit struct {
	// Seq is the 0-based position of the unit in the payload.
	Seq   int
	Diffs []Diff
}

// Plan groups diffs into units of at most size diffs, preserving order.
func Plan(diffs []Diff, size int) []BatchUnit {
	if size < 1 {
		size = 1
	}
	units := make([]BatchUnit, 0, (len(diffs)+size-1)/size)
	for start := 0; start < len(diffs); start += size {
		end := min(start+size, len(diffs))
		units = append(units, BatchUnit{
			Seq:   len(units),
			Diffs: append([]Diff(nil), diffs[start:end]...),
		})
	}
	return units
}

// DiffsOf collects the diffs of accepted outcomes.
func DiffsOf(outcomes []Outcome) []Diff {
	var diffs []Diff
	for _, o := range outcomes {
		if o.Verdict == Accepted && o.Diff != nil {
			diffs = append(diffs, *o.Diff)
		}
	}
	return diffs
}

// PayloadOptions are the fixed fields of every mutation input.
type PayloadOptions struct {
	Name   string
	Reason string
}

type payloadLine struct {
	Input setQuantitiesInput `json:"input"`
}

type setQuantitiesInput struct {
	Name                  string          `json:"name"`
	Reason                string          `json:"reason"`
	IgnoreCompareQuantity bool            `json:"ignoreCompareQuantity"`
	Quantities            []quantityInput `json:"quantities"`
}

type quantityInput struct {
	InventoryItemID string `json:"inventoryItemId"`
	LocationID      string `json:"locationId"`
	Quantity        int    `json:"quantity"`
}

// WritePayload writes one JSON line of mutation variables per unit.
func WritePayload(w io.Writer, units []BatchUnit, opts PayloadOptions) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	for _, u := range units {
		line := payloadLine{Input: setQuantitiesInput{
			Name:                  opts.Name,
			Reason:                opts.Reason,
			IgnoreCompareQuantity: true,
			Quantities:            make([]quantityInput, 0, len(u.Diffs)),
		}}
		for _, d := range u.Diffs {
			line.Input.Quantities = append(line.Input.Quantities, quantityInput{
				InventoryItemID: d.InventoryItemID,
				LocationID:      d.LocationID,
				Quantity:        d.Quantity,
			})
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("encode unit %d: %w", u.Seq, err)
		}
	}
	return bw.Flush()
}
