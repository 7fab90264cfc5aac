// Package async provides safe goroutine helpers for background tasks.
//
// SafeGo executes a function in a goroutine with panic recovery, a per-task
// timeout, and context cancellation, logging failures through the
// observability logger:
//
//	async.SafeGo(ctx, 5*time.Second, "audit write", func(ctx context.Context) error {
//	    return auditLogger.Record(ctx, entry)
//	})
//
// Used by the event dispatcher's EmitAsync so background dispatch can never
// crash or outlive the triggering business operation.
package async
