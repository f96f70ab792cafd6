// Package async runs background work the plugin host must never block on.
//
// # Overview
//
// SafeGo starts a goroutine with a timeout and panic recovery and logs
// failures instead of returning them:
//
//	done := async.SafeGo(ctx, log, 30*time.Second, "update check", func(ctx context.Context) error {
//		return checker.Check(ctx, mods)
//	})
//
// WorkerPool and Batch spread a slice of work over a fixed number of
// goroutines and collect the errors:
//
//	errs := async.Batch(ctx, log, batches, 4, "update check", 10*time.Second, send)
//
// # Related Packages
//
//   - pkg/updates: runs update checks with SafeGo and Batch
//   - pkg/host: waits for background work on Close
package async
