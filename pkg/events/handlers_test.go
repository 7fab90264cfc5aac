package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitEndpoint(t *testing.T) {
	d := NewDispatcher(nil, nil)

	var seen *Payload
	require.NoError(t, d.Register(EventStockLowAlert, func(ctx context.Context, p *Payload) error {
		seen = p
		return nil
	}))

	router := mux.NewRouter()
	NewEmitHandlers(d).RegisterRoutes(router)

	body := `{
		"event_type": "STOCK_LOW_ALERT",
		"resource_type": "product",
		"resource_id": "p-9",
		"resource_name": "Espresso Beans 1kg",
		"branch_id": "b-1",
		"data": {"quantity": 3}
	}`
	req := httptest.NewRequest(http.MethodPost, "/events/emit", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload Payload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, EventStockLowAlert, payload.EventType)
	assert.Equal(t, "p-9", payload.ResourceID)
	assert.False(t, payload.Timestamp.IsZero())

	require.NotNil(t, seen)
	assert.Equal(t, "Espresso Beans 1kg", seen.ResourceName)
}

func TestEmitEndpointRejectsUnknownType(t *testing.T) {
	router := mux.NewRouter()
	NewEmitHandlers(NewDispatcher(nil, nil)).RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/events/emit",
		strings.NewReader(`{"event_type": "NOT_A_THING", "resource_type": "x", "resource_id": "1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmitEndpointRejectsBadJSON(t *testing.T) {
	router := mux.NewRouter()
	NewEmitHandlers(NewDispatcher(nil, nil)).RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/events/emit", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
