// Package webhooks manages external webhook subscriptions and signed
// delivery of back-office events.
//
// # Subscriptions
//
// A subscription binds an HTTP endpoint to a set of external event names
// (see pkg/events). Registration generates the ID and a random signing
// secret; the secret is returned once, by the create call, and never again.
// Subscriptions are soft-deleted by deactivation; there is no reactivation
// path.
//
//	store, _ := webhooks.NewSQLStore(db)
//	sub, err := store.Create(ctx, "erp-bridge", "https://erp.example.com/hooks",
//		[]events.WebhookEventName{events.WebhookStockLow, events.WebhookStockOut})
//
// # Delivery
//
// The Deliverer POSTs a JSON envelope {event, timestamp, data} to every
// active, matching subscriber, concurrently, with one attempt per
// subscriber per emission. Each request carries:
//
//	X-Backoffice-Event:     stock.low
//	X-Backoffice-Signature: sha256=<hex HMAC-SHA256 of the body>
//	X-Backoffice-Delivery:  <RFC3339 timestamp>
//
// A 2xx response increments the subscription's success counter and sets
// last_triggered; anything else increments the failure counter. Counters
// never lose updates under concurrent deliveries.
//
// Receiver side verification:
//
//	sig := r.Header.Get("X-Backoffice-Signature")
//	if !webhooks.VerifySignature(body, sig, secret) {
//		// reject
//	}
package webhooks
