package events

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/retailops/backoffice/pkg/httputil"
)

// EmitHandlers provides the internal HTTP surface other back-office
// services use to emit events
type EmitHandlers struct {
	dispatcher *Dispatcher
}

// NewEmitHandlers creates new emit handlers
func NewEmitHandlers(dispatcher *Dispatcher) *EmitHandlers {
	return &EmitHandlers{
		dispatcher: dispatcher,
	}
}

// RegisterRoutes registers event routes
func (h *EmitHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/events/emit", h.emitEvent).Methods("POST")
}

type emitRequest struct {
	EventType    EventType              `json:"event_type"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	ResourceName string                 `json:"resource_name,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	UserID       string                 `json:"user_id,omitempty"`
	UserName     string                 `json:"user_name,omitempty"`
	BranchID     string                 `json:"branch_id,omitempty"`
	BranchName   string                 `json:"branch_name,omitempty"`
}

// emitEvent handles POST /events/emit
func (h *EmitHandlers) emitEvent(w http.ResponseWriter, r *http.Request) {
	var req emitRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if !req.EventType.Valid() {
		httputil.WriteValidationError(w, "unknown event type")
		return
	}

	payload := h.dispatcher.Emit(r.Context(), req.EventType, Options{
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		ResourceName: req.ResourceName,
		Data:         req.Data,
		UserID:       req.UserID,
		UserName:     req.UserName,
		BranchID:     req.BranchID,
		BranchName:   req.BranchName,
	})

	httputil.WriteSuccess(w, payload)
}
