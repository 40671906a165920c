package reconcile

import (
	"encoding/json"
	"io"
	"strconv"

	"inventory-sync/core/jsonl"

	"go.uber.org/zap"
)

// resultLine is one line of a write job result artifact.
type resultLine struct {
	Data       map[string]mutationPayload `json:"data"`
	Errors     []graphQLError             `json:"errors"`
	LineNumber *int                       `json:"__lineNumber"`
}

type mutationPayload struct {
	UserErrors []userError `json:"userErrors"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// ParseWriteResult scans a write job result artifact and returns the deferred report.
//
// Each line belongs to the unit named by its __lineNumber, or to the unit at the same
// position when the field is absent. A user error whose field path points at a
// quantities entry is attributed to that diff; any other error is attributed to every
// diff of the unit. Malformed lines are logged and skipped. Only reader failures are
// returned.
func ParseWriteResult(r io.Reader, units []BatchUnit, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	report := NewReport()
	position := 0
	err := jsonl.Scan(r, func(lineNo int, line []byte) error {
		seq := position
		position++

		var res resultLine
		if err := json.Unmarshal(line, &res); err != nil {
			logger.Warn("Skipping malformed result line", zap.Error(&jsonl.ParseError{Line: lineNo, Err: err}))
			return nil
		}
		if res.LineNumber != nil {
			seq = *res.LineNumber
		}
		if seq < 0 || seq >= len(units) {
			logger.Warn("Result line does not match any batch unit",
				zap.Int("line", lineNo),
				zap.Int("unit", seq),
			)
			return nil
		}
		unit := units[seq]

		for _, ge := range res.Errors {
			for _, d := range unit.Diffs {
				_ = report.AddJobError(jobError(unit.Seq, d, userError{Message: ge.Message}))
			}
		}
		for _, payload := range res.Data {
			for _, ue := range payload.UserErrors {
				if i, ok := quantityIndex(ue.Field); ok && i < len(unit.Diffs) {
					_ = report.AddJobError(jobError(unit.Seq, unit.Diffs[i], ue))
					continue
				}
				for _, d := range unit.Diffs {
					_ = report.AddJobError(jobError(unit.Seq, d, ue))
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report.Finalize(), nil
}

// quantityIndex extracts i from a field path like ["input", "quantities", "i", ...].
func quantityIndex(field []string) (int, bool) {
	for k := 0; k+1 < len(field); k++ {
		if field[k] != "quantities" {
			continue
		}
		i, err := strconv.Atoi(field[k+1])
		if err != nil || i < 0 {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func jobError(seq int, d Diff, ue userError) JobError {
	return JobError{
		Unit:            seq,
		Line:            d.Line,
		SKU:             d.SKU,
		InventoryItemID: d.InventoryItemID,
		LocationID:      d.LocationID,
		Message:         ue.Message,
		Code:            ue.Code,
		Field:           ue.Field,
	}
}
