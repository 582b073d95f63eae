package daemon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexParamsValidate(t *testing.T) {
	p := IndexParams{}
	assert.Error(t, p.Validate())

	p = IndexParams{Path: "/tmp/project"}
	assert.NoError(t, p.Validate())
}

func TestSearchParamsValidateNormalizesNegativeLimit(t *testing.T) {
	p := SearchParams{Query: "foo", Limit: -5}
	require.NoError(t, p.Validate())
	assert.Equal(t, 0, p.Limit)
}

func TestSearchParamsValidateRequiresQuery(t *testing.T) {
	p := SearchParams{}
	assert.Error(t, p.Validate())
}

func TestNewSuccessAndErrorResponse(t *testing.T) {
	ok := NewSuccessResponse("1", ClearResult{OK: true})
	assert.Equal(t, "2.0", ok.JSONRPC)
	assert.Nil(t, ok.Error)

	failed := NewErrorResponse("1", ErrCodeInvalidParams, "bad request")
	require.NotNil(t, failed.Error)
	assert.Equal(t, ErrCodeInvalidParams, failed.Error.Code)
	assert.Equal(t, "bad request", failed.Error.Message)
}

func TestSearchResultRoundTripsJSON(t *testing.T) {
	r := SearchResult{
		Path:      "main.go",
		Score:     0.87,
		MatchType: MatchHybrid,
		Target:    Span{StartLine: 10, EndLine: 20, Content: "func main() {}"},
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded SearchResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, r, decoded)
	assert.NotContains(t, string(data), `"above"`, "omitempty should drop a nil Above span")
}
