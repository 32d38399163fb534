// Package pipeline implements a bounded producer/consumer run over pull-based
// iterators.
//
// A run spawns one producer goroutine per source. Producers drain their
// generator into a shared unbounded Queue, skipping generation failures. A
// single Consumer pops with an idle timeout, transforms each item, and now and
// then emits a break marker or a cancel marker that raises the shared
// StopSignal. When the consumer ends the Session joins every producer and
// emits a final done result.
//
//	orch, err := pipeline.New(pipeline.Config{
//	    Dataset: []string{"abc", "xyz"},
//	    Counts:  []int{3},
//	}, pipeline.WithLogger(log))
//	report, err := orch.Run(ctx, func(_ context.Context, r pipeline.Result) error {
//	    fmt.Println(r)
//	    return nil
//	})
//
// Runs are also lazy pipelines and compose with the operators:
//
//	values := pipeline.Filter(orch.Stream(), func(r pipeline.Result) bool { return !r.IsMarker() })
//	lines := pipeline.Map(values, func(_ context.Context, r pipeline.Result) (string, error) {
//	    return r.Value, nil
//	})
//	out, err := pipeline.Collect(ctx, lines)
//
// Pipelines are lazy: no work happens until values are pulled via Collect,
// Drain, or ForEach.
package pipeline
