package webhooks

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/retailops/backoffice/pkg/events"
	"github.com/retailops/backoffice/pkg/httputil"
)

// Handlers provides the HTTP admin surface for webhook subscriptions
type Handlers struct {
	store     Store
	deliverer *Deliverer
}

// NewHandlers creates new webhook admin handlers. deliverer may be nil when
// the delivery log endpoint is not wanted.
func NewHandlers(store Store, deliverer *Deliverer) *Handlers {
	return &Handlers{
		store:     store,
		deliverer: deliverer,
	}
}

// RegisterRoutes registers webhook admin routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks", h.createSubscription).Methods("POST")
	router.HandleFunc("/webhooks", h.listSubscriptions).Methods("GET")
	router.HandleFunc("/webhooks/{id}", h.getSubscription).Methods("GET")
	router.HandleFunc("/webhooks/{id}/deactivate", h.deactivateSubscription).Methods("POST")
	router.HandleFunc("/webhooks/{id}/deliveries", h.listDeliveries).Methods("GET")
}

type createRequest struct {
	Name   string                    `json:"name"`
	URL    string                    `json:"url"`
	Events []events.WebhookEventName `json:"events"`
}

// createSubscription handles POST /webhooks. The response is the only
// place the signing secret is ever exposed.
func (h *Handlers) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	sub, err := h.store.Create(r.Context(), req.Name, req.URL, req.Events)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	httputil.WriteCreated(w, sub)
}

// listSubscriptions handles GET /webhooks; secrets are omitted
func (h *Handlers) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.List(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	redacted := make([]*Subscription, 0, len(subs))
	for _, sub := range subs {
		redacted = append(redacted, sub.Redacted())
	}

	httputil.WriteSuccess(w, redacted)
}

// getSubscription handles GET /webhooks/{id}
func (h *Handlers) getSubscription(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sub, err := h.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, sub.Redacted())
}

// deactivateSubscription handles POST /webhooks/{id}/deactivate
func (h *Handlers) deactivateSubscription(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.store.Deactivate(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// listDeliveries handles GET /webhooks/{id}/deliveries
func (h *Handlers) listDeliveries(w http.ResponseWriter, r *http.Request) {
	if h.deliverer == nil {
		httputil.WriteNotFoundError(w, "delivery log not available")
		return
	}

	id := mux.Vars(r)["id"]
	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil || limit <= 0 {
		limit = 50
	}

	recs := h.deliverer.RecentDeliveries(id, limit)
	if recs == nil {
		recs = []*DeliveryRecord{}
	}

	httputil.WriteSuccess(w, recs)
}
