// Package audit persists an append-only trail of compliance-sensitive
// back-office events.
//
// Only event types in the dispatcher's allow-list reach this package; the
// write is a best-effort side channel and its failures never propagate to
// the business operation that triggered the event.
//
//	dbLogger, _ := audit.NewDBLogger(db)
//	dispatcher.SetAuditSink(audit.NewSink(dbLogger))
//
// Retention runs a nightly cleanup, optionally archiving expired entries
// to S3 as NDJSON before deleting them:
//
//	retention := audit.NewRetention(dbLogger, archiver, policy, logger)
//	retention.Start()
//	defer retention.Stop()
package audit
