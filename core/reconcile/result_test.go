package reconcile

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWriteResult_OneDiffPerUnit(t *testing.T) {
	units := Plan(sampleDiffs(), 1)
	artifact := `{"data":{"inventorySetQuantities":{"inventoryAdjustmentGroup":{"id":"gid://shopify/InventoryAdjustmentGroup/1"},"userErrors":[]}},"__lineNumber":0}
{"data":{"inventorySetQuantities":{"inventoryAdjustmentGroup":null,"userErrors":[{"field":["input","quantities","0","locationId"],"message":"The specified location could not be found.","code":"INVALID_LOCATION"}]}},"__lineNumber":1}
{"data":{"inventorySetQuantities":{"inventoryAdjustmentGroup":{"id":"gid://shopify/InventoryAdjustmentGroup/3"},"userErrors":[]}},"__lineNumber":2}
`
	report, err := ParseWriteResult(strings.NewReader(artifact), units, nil)
	require.NoError(t, err)

	assert.True(t, report.Finalized())
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.JobErrors, 1)
	je := report.JobErrors[0]
	assert.Equal(t, 1, je.Unit)
	assert.Equal(t, 3, je.Line)
	assert.Equal(t, "B2", je.SKU)
	assert.Equal(t, "INVALID_LOCATION", je.Code)
	assert.Zero(t, report.Total, "the deferred report carries no row counts")
}

func TestParseWriteResult_AttributionWithinUnit(t *testing.T) {
	units := Plan(sampleDiffs(), 2)
	artifact := `{"__lineNumber":0,"data":{"inventorySetQuantities":{"userErrors":[{"field":["input","quantities","1","quantity"],"message":"bad quantity"}]}}}
{"__lineNumber":1,"data":{"inventorySetQuantities":{"userErrors":[{"field":["input","reason"],"message":"bad reason"}]}}}
`
	report, err := ParseWriteResult(strings.NewReader(artifact), units, nil)
	require.NoError(t, err)

	require.Len(t, report.JobErrors, 2)
	assert.Equal(t, 3, report.JobErrors[0].Line, "field path names the second diff of unit 0")
	assert.Equal(t, "bad quantity", report.JobErrors[0].Message)
	assert.Equal(t, 5, report.JobErrors[1].Line)
	assert.Equal(t, "bad reason", report.JobErrors[1].Message)
}

func TestParseWriteResult_UnattributableErrorHitsWholeUnit(t *testing.T) {
	units := Plan(sampleDiffs(), 3)
	artifact := `{"__lineNumber":0,"errors":[{"message":"Throttled"}]}` + "\n"

	report, err := ParseWriteResult(strings.NewReader(artifact), units, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Failed)
	for _, je := range report.JobErrors {
		assert.Equal(t, "Throttled", je.Message)
	}
}

func TestParseWriteResult_PositionalAndMalformed(t *testing.T) {
	units := Plan(sampleDiffs(), 1)
	artifact := `{"data":{"inventorySetQuantities":{"userErrors":[{"field":["input"],"message":"first"}]}}}
{garbage
{"data":{"inventorySetQuantities":{"userErrors":[{"field":["input"],"message":"third"}]}}}
{"__lineNumber":42,"data":{"inventorySetQuantities":{"userErrors":[{"message":"ghost"}]}}}
`
	report, err := ParseWriteResult(strings.NewReader(artifact), units, nil)
	require.NoError(t, err)

	require.Len(t, report.JobErrors, 2)
	assert.Equal(t, 2, report.JobErrors[0].Line)
	assert.Equal(t, 5, report.JobErrors[1].Line, "malformed line still consumes its position")
}

func TestParseWriteResult_ReaderFailure(t *testing.T) {
	_, err := ParseWriteResult(iotest.ErrReader(errors.New("connection reset")), nil, nil)
	assert.Error(t, err)
}

func TestQuantityIndex(t *testing.T) {
	i, ok := quantityIndex([]string{"input", "quantities", "2", "quantity"})
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = quantityIndex([]string{"input", "quantities"})
	assert.False(t, ok)
	_, ok = quantityIndex([]string{"input", "quantities", "x"})
	assert.False(t, ok)
	_, ok = quantityIndex(nil)
	assert.False(t, ok)
}
