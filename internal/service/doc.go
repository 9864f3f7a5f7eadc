// Package service is the request facade of the delete engine.
//
// A Deletion walks one request through its lifecycle:
//
//	d := svc.NewDeletion(principal)
//	n, err := d.Initialize(ctx, "Image", 42, opts) // permission check, collection, plan
//	for i := 0; i < n; i++ {
//		warning, err := d.ExecuteStep(ctx, i)
//	}
//	report, err := d.Finish(ctx) // commit, publish events, clean binaries
//
// Any error from Initialize, ExecuteStep or Finish rolls the transaction
// back; Abort does the same on request. Events produced while executing
// are held back until the transaction commits.
package service
