package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMeta(t *testing.T) {
	assert.Equal(t, &Meta{Page: 2, Limit: 20, TotalItems: 41, TotalPages: 3}, NewMeta(2, 20, 41))
	assert.Equal(t, &Meta{Page: 1, Limit: 20, TotalItems: 0, TotalPages: 0}, NewMeta(1, 20, 0))
	assert.Equal(t, &Meta{TotalItems: 7}, NewMeta(0, 0, 7))
}

func TestMultiStatus_KeepsData(t *testing.T) {
	rec := httptest.NewRecorder()
	MultiStatus(rec, "2 of 3 items applied", map[string]int{"failed": 1})

	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	var body Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "2 of 3 items applied", body.Message)
	assert.Equal(t, map[string]any{"failed": float64(1)}, body.Data)
}
