package events

import (
	"time"
)

// EventType identifies a domain-state change inside the back office
type EventType string

const (
	// Branch lifecycle
	EventBranchCreated EventType = "BRANCH_CREATED"
	EventBranchUpdated EventType = "BRANCH_UPDATED"
	EventBranchDeleted EventType = "BRANCH_DELETED"

	// Product lifecycle
	EventProductCreated     EventType = "PRODUCT_CREATED"
	EventProductUpdated     EventType = "PRODUCT_UPDATED"
	EventProductDeleted     EventType = "PRODUCT_DELETED"
	EventProductPriceLocked EventType = "PRODUCT_PRICE_LOCKED"

	// User lifecycle
	EventUserCreated     EventType = "USER_CREATED"
	EventUserUpdated     EventType = "USER_UPDATED"
	EventUserDeactivated EventType = "USER_DEACTIVATED"

	// Purchase orders
	EventPurchaseOrderCreated   EventType = "PURCHASE_ORDER_CREATED"
	EventPurchaseOrderApproved  EventType = "PURCHASE_ORDER_APPROVED"
	EventPurchaseOrderReceived  EventType = "PURCHASE_ORDER_RECEIVED"
	EventPurchaseOrderCancelled EventType = "PURCHASE_ORDER_CANCELLED"

	// Inventory
	EventStockLowAlert EventType = "STOCK_LOW_ALERT"
	EventStockOutAlert EventType = "STOCK_OUT_ALERT"
	EventStockAdjusted EventType = "STOCK_ADJUSTED"

	// Sales targets
	EventSalesTargetReached EventType = "SALES_TARGET_REACHED"
	EventSalesTargetMissed  EventType = "SALES_TARGET_MISSED"

	// Production
	EventProductionBatchStarted   EventType = "PRODUCTION_BATCH_STARTED"
	EventProductionBatchCompleted EventType = "PRODUCTION_BATCH_COMPLETED"

	// Returns, promos, ledger
	EventReturnProcessed   EventType = "RETURN_PROCESSED"
	EventPromoActivated    EventType = "PROMO_ACTIVATED"
	EventPromoExpired      EventType = "PROMO_EXPIRED"
	EventLedgerEntryPosted EventType = "LEDGER_ENTRY_POSTED"
)

// allTypes is the closed set of known event types
var allTypes = map[EventType]struct{}{
	EventBranchCreated:            {},
	EventBranchUpdated:            {},
	EventBranchDeleted:            {},
	EventProductCreated:           {},
	EventProductUpdated:           {},
	EventProductDeleted:           {},
	EventProductPriceLocked:       {},
	EventUserCreated:              {},
	EventUserUpdated:              {},
	EventUserDeactivated:          {},
	EventPurchaseOrderCreated:     {},
	EventPurchaseOrderApproved:    {},
	EventPurchaseOrderReceived:    {},
	EventPurchaseOrderCancelled:   {},
	EventStockLowAlert:            {},
	EventStockOutAlert:            {},
	EventStockAdjusted:            {},
	EventSalesTargetReached:       {},
	EventSalesTargetMissed:        {},
	EventProductionBatchStarted:   {},
	EventProductionBatchCompleted: {},
	EventReturnProcessed:          {},
	EventPromoActivated:           {},
	EventPromoExpired:             {},
	EventLedgerEntryPosted:        {},
}

// Valid reports whether t is a known event type
func (t EventType) Valid() bool {
	_, ok := allTypes[t]
	return ok
}

// Types returns every known event type, for startup registration loops
func Types() []EventType {
	types := make([]EventType, 0, len(allTypes))
	for t := range allTypes {
		types = append(types, t)
	}
	return types
}

// WebhookEventName is the external event namespace exposed to webhook
// subscribers. It is a smaller namespace than EventType; only event types
// present in the mapping table can ever reach a subscriber.
type WebhookEventName string

const (
	WebhookBranchCreated         WebhookEventName = "branch.created"
	WebhookBranchUpdated         WebhookEventName = "branch.updated"
	WebhookProductCreated        WebhookEventName = "product.created"
	WebhookProductUpdated        WebhookEventName = "product.updated"
	WebhookProductPriceLocked    WebhookEventName = "product.price_locked"
	WebhookPurchaseOrderCreated  WebhookEventName = "purchase_order.created"
	WebhookPurchaseOrderApproved WebhookEventName = "purchase_order.approved"
	WebhookPurchaseOrderReceived WebhookEventName = "purchase_order.received"
	WebhookStockLow              WebhookEventName = "stock.low"
	WebhookStockOut              WebhookEventName = "stock.out"
	WebhookSalesTargetReached    WebhookEventName = "sales_target.reached"
	WebhookReturnProcessed       WebhookEventName = "return.processed"
	WebhookPromoActivated        WebhookEventName = "promo.activated"
)

// webhookNames maps internal event types to their external webhook names.
// The mapping is a fixed partial function; user, ledger, production and
// cancellation events have no external counterpart.
var webhookNames = map[EventType]WebhookEventName{
	EventBranchCreated:         WebhookBranchCreated,
	EventBranchUpdated:         WebhookBranchUpdated,
	EventProductCreated:        WebhookProductCreated,
	EventProductUpdated:        WebhookProductUpdated,
	EventProductPriceLocked:    WebhookProductPriceLocked,
	EventPurchaseOrderCreated:  WebhookPurchaseOrderCreated,
	EventPurchaseOrderApproved: WebhookPurchaseOrderApproved,
	EventPurchaseOrderReceived: WebhookPurchaseOrderReceived,
	EventStockLowAlert:         WebhookStockLow,
	EventStockOutAlert:         WebhookStockOut,
	EventSalesTargetReached:    WebhookSalesTargetReached,
	EventReturnProcessed:       WebhookReturnProcessed,
	EventPromoActivated:        WebhookPromoActivated,
}

// WebhookName returns the external webhook event name for t, if any
func WebhookName(t EventType) (WebhookEventName, bool) {
	name, ok := webhookNames[t]
	return name, ok
}

// WebhookEventNames returns the full external namespace, for subscription
// validation
func WebhookEventNames() []WebhookEventName {
	names := make([]WebhookEventName, 0, len(webhookNames))
	for _, name := range webhookNames {
		names = append(names, name)
	}
	return names
}

// auditable is the fixed allow-list of compliance-sensitive event types
// that produce an audit trail entry
var auditable = map[EventType]struct{}{
	EventBranchCreated:          {},
	EventBranchDeleted:          {},
	EventProductPriceLocked:     {},
	EventUserCreated:            {},
	EventUserDeactivated:        {},
	EventPurchaseOrderApproved:  {},
	EventPurchaseOrderCancelled: {},
	EventReturnProcessed:        {},
	EventLedgerEntryPosted:      {},
}

// Auditable reports whether t is in the audit allow-list
func Auditable(t EventType) bool {
	_, ok := auditable[t]
	return ok
}

// Payload is the envelope passed to handlers, webhook delivery and the
// audit trail. It is ephemeral: constructed at emission, consumed, then
// discarded. Timestamp is assigned exactly once, by the dispatcher.
type Payload struct {
	EventType    EventType              `json:"event_type"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	ResourceName string                 `json:"resource_name,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	UserID       string                 `json:"user_id,omitempty"`
	UserName     string                 `json:"user_name,omitempty"`
	BranchID     string                 `json:"branch_id,omitempty"`
	BranchName   string                 `json:"branch_name,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Options carries the caller-supplied fields of an emission. Everything
// except the resource identification is optional.
type Options struct {
	ResourceType string
	ResourceID   string
	ResourceName string
	Data         map[string]interface{}
	UserID       string
	UserName     string
	BranchID     string
	BranchName   string
}
