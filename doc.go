// Package flowdex provides reliable batched write pipelines with
// pass-through acknowledgment for streaming connectors.
//
// A Flow groups incoming messages into batches, writes each batch through
// a store backend as a single bulk request, retries transient failures on
// a fixed interval within a per-item budget, and resolves every message to
// exactly one Result. Results carry the original message and an opaque
// pass-through value, so callers can acknowledge upstream systems (commit
// a queue offset, complete a request) only after the write landed:
//
//	st, _ := redisearch.New(redisearch.Config{
//	    Addrs:      []string{"localhost:6379"},
//	    Collection: "books",
//	})
//	flow, _ := flowdex.NewFlow[Book, int64](st, flowdex.DefaultFlowConfig())
//
//	in := make(chan flowdex.Message[Book, int64])
//	go func() {
//	    defer close(in)
//	    for rec := range queue {
//	        in <- flowdex.NewMessage(rec.Book.ID, &rec.Book, rec.Offset)
//	    }
//	}()
//	for group := range flow.Run(ctx, in) {
//	    for _, r := range group {
//	        if r.Success() {
//	            committer.Commit(r.PassThrough())
//	        }
//	    }
//	}
//
// Failures are data, not panics: a Result with a non-nil Err reports the
// classified terminal outcome (version conflict, permanent item error, or
// retries exhausted). A Source streams a collection back out of a backend
// for verification and copy jobs.
//
// Backends live in their own packages: redisearch (RediSearch/JSON over
// rueidis) and remotefs (FTP, FTPS and SFTP servers).
package flowdex
