package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hsearch/hsearch/internal/hserr"
)

func TestNewInvalidParamsErrorSetsCode(t *testing.T) {
	err := NewInvalidParamsError("query is required")
	assert.Equal(t, ErrCodeInvalidParams, err.Code)
	assert.Contains(t, err.Error(), "query is required")
}

func TestMapErrorConfigKindIsInvalidParams(t *testing.T) {
	err := mapError(hserr.New(hserr.Config, "bad config"))
	assert.Equal(t, ErrCodeInvalidParams, err.Code)
}

func TestMapErrorOtherKindIsInternalError(t *testing.T) {
	err := mapError(hserr.New(hserr.Io, "disk full"))
	assert.Equal(t, ErrCodeInternalError, err.Code)
}

func TestMapErrorNilReturnsNil(t *testing.T) {
	assert.Nil(t, mapError(nil))
}
