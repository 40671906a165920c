package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"inventory-sync/core/bulk"
)

const bulkOperationFields = `id status objectCount url errorCode`

const runQueryMutation = `mutation bulkOperationRunQuery($query: String!) {
  bulkOperationRunQuery(query: $query) {
    bulkOperation { ` + bulkOperationFields + ` }
    userErrors { field message code }
  }
}`

const runMutationMutation = `mutation bulkOperationRunMutation($mutation: String!, $stagedUploadPath: String!) {
  bulkOperationRunMutation(mutation: $mutation, stagedUploadPath: $stagedUploadPath) {
    bulkOperation { ` + bulkOperationFields + ` }
    userErrors { field message code }
  }
}`

const statusQuery = `query bulkOperation($id: ID!) {
  node(id: $id) {
    ... on BulkOperation { ` + bulkOperationFields + ` }
  }
}`

const cancelMutation = `mutation bulkOperationCancel($id: ID!) {
  bulkOperationCancel(id: $id) {
    bulkOperation { ` + bulkOperationFields + ` }
    userErrors { field message }
  }
}`

const currentQuery = `query currentBulkOperation($type: BulkOperationType!) {
  currentBulkOperation(type: $type) { ` + bulkOperationFields + ` }
}`

// ExportQuery is the bulk query used for inventory exports. Levels are nested under the
// inline inventory item, so their parent reference is the variant.
const ExportQuery = `{
  products {
    edges {
      node {
        id
        title
        handle
        variants {
          edges {
            node {
              id
              title
              sku
              inventoryItem {
                id
                inventoryLevels {
                  edges {
                    node {
                      id
                      location { id name }
                      quantities(names: ["available", "on_hand", "committed", "incoming"]) { name quantity }
                    }
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

type bulkOperation struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	ObjectCount json.Number `json:"objectCount"`
	URL         *string     `json:"url"`
	ErrorCode   *string     `json:"errorCode"`
}

type bulkPayload struct {
	BulkOperation *bulkOperation   `json:"bulkOperation"`
	UserErrors    []bulk.UserError `json:"userErrors"`
}

// snapshot converts the remote representation, mapping the statuses the engine does
// not model: CANCELING is still running, EXPIRED is a failure.
func (op *bulkOperation) snapshot() *bulk.Snapshot {
	if op == nil || op.ID == "" {
		return nil
	}
	s := &bulk.Snapshot{ID: op.ID, Status: mapStatus(op.Status)}
	if n, err := op.ObjectCount.Int64(); err == nil {
		s.ObjectCount = n
	}
	if op.URL != nil {
		s.ResultURL = *op.URL
	}
	if op.ErrorCode != nil {
		s.ErrorCode = *op.ErrorCode
	}
	if op.Status == "EXPIRED" && s.ErrorCode == "" {
		s.ErrorCode = "EXPIRED"
	}
	return s
}

func mapStatus(status string) bulk.Status {
	switch status {
	case "CREATED":
		return bulk.StatusCreated
	case "RUNNING", "CANCELING":
		return bulk.StatusRunning
	case "COMPLETED":
		return bulk.StatusCompleted
	case "CANCELED":
		return bulk.StatusCanceled
	case "FAILED", "EXPIRED":
		return bulk.StatusFailed
	default:
		return bulk.Status(status)
	}
}

func operationType(kind bulk.Kind) string {
	if kind == bulk.KindWrite {
		return "MUTATION"
	}
	return "QUERY"
}

// Submit starts a bulk query or a bulk mutation.
func (c *Client) Submit(ctx context.Context, spec bulk.Spec) (*bulk.Submission, error) {
	var (
		doc  string
		vars map[string]any
		key  string
	)
	switch spec.Kind {
	case bulk.KindRead:
		doc, key = runQueryMutation, "bulkOperationRunQuery"
		vars = map[string]any{"query": spec.Query}
	case bulk.KindWrite:
		doc, key = runMutationMutation, "bulkOperationRunMutation"
		vars = map[string]any{"mutation": spec.Mutation, "stagedUploadPath": spec.StagedUploadKey}
	default:
		return nil, fmt.Errorf("unknown job kind %q", spec.Kind)
	}

	// A 5xx may arrive after the job was created, so a resend could start a second one.
	var data map[string]bulkPayload
	if err := c.doNoResend(ctx, doc, vars, &data); err != nil {
		return nil, err
	}
	payload := data[key]
	return &bulk.Submission{
		Job:        payload.BulkOperation.snapshot(),
		UserErrors: payload.UserErrors,
	}, nil
}

// Status fetches a bulk operation by id. It returns nil if the id is unknown.
func (c *Client) Status(ctx context.Context, id string) (*bulk.Snapshot, error) {
	var data struct {
		Node *bulkOperation `json:"node"`
	}
	if err := c.Do(ctx, statusQuery, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	return data.Node.snapshot(), nil
}

// Cancel requests cancellation of a bulk operation.
func (c *Client) Cancel(ctx context.Context, id string) (*bulk.Snapshot, error) {
	var data struct {
		Cancel bulkPayload `json:"bulkOperationCancel"`
	}
	if err := c.Do(ctx, cancelMutation, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	if len(data.Cancel.UserErrors) > 0 {
		return nil, &UserErrors{Operation: "bulkOperationCancel", Messages: messages(data.Cancel.UserErrors)}
	}
	return data.Cancel.BulkOperation.snapshot(), nil
}

// Current returns the most recent bulk operation of a kind, or nil.
func (c *Client) Current(ctx context.Context, kind bulk.Kind) (*bulk.Snapshot, error) {
	var data struct {
		Current *bulkOperation `json:"currentBulkOperation"`
	}
	if err := c.Do(ctx, currentQuery, map[string]any{"type": operationType(kind)}, &data); err != nil {
		return nil, err
	}
	return data.Current.snapshot(), nil
}

func messages(errs []bulk.UserError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Message)
	}
	return out
}

var _ bulk.API = (*Client)(nil)
