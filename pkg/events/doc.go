// Package events defines the closed taxonomy of back-office domain events
// and the dispatcher that fans them out.
//
// # Taxonomy
//
// EventType is the internal namespace (BRANCH_CREATED, STOCK_LOW_ALERT, ...).
// A fixed partial mapping projects a subset of types into the external
// WebhookEventName namespace (branch.created, stock.low, ...); only mapped
// types can ever reach a webhook subscriber. A second fixed subset, the
// audit allow-list, marks compliance-sensitive types.
//
// # Dispatching
//
//	dispatcher := events.NewDispatcher(logger, metrics)
//	dispatcher.SetDeliverer(deliverer)
//	dispatcher.SetAuditSink(auditSink)
//	dispatcher.Register(events.EventStockLowAlert, notifyPurchasing)
//
//	payload := dispatcher.Emit(ctx, events.EventBranchCreated, events.Options{
//		ResourceType: "branch",
//		ResourceID:   branch.ID,
//		UserName:     actor,
//	})
//
// Emit stamps the timestamp, runs handlers concurrently (settle-all), hands
// the payload to the delivery engine when the type is mapped, and writes an
// audit record when the type is allow-listed. No failure in any stage ever
// reaches the caller.
package events
