// Package resilience bounds how much concurrent work a process accepts.
//
// A Bulkhead hands out a fixed number of slots. Callers either hold a slot
// for the lifetime of some work (Acquire/release) or wrap a function with
// Execute. When no slot frees up within MaxWait the call is rejected, so an
// overloaded server answers quickly instead of queueing unbounded work.
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "runs", MaxConcurrent: 4})
//	release, err := bh.Acquire(ctx)
//	if err != nil {
//	    return err // ErrBulkheadFull or ErrBulkheadTimeout
//	}
//	defer release()
package resilience
