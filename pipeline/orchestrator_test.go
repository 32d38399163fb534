package pipeline

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kbukum/queuekit/errors"
)

func quietConfig(dataset ...string) Config {
	return Config{
		Dataset:    dataset,
		Multiplier: 2,
		TimeUnit:   time.Millisecond,
		Timeout:    200 * time.Millisecond,
	}
}

func mustNew(t *testing.T, cfg Config, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func runAll(t *testing.T, o *Orchestrator) ([]Result, *Report) {
	t.Helper()
	var results []Result
	report, err := o.Run(context.Background(), func(_ context.Context, r Result) error {
		results = append(results, r)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return results, report
}

func TestOrchestrator_SingleSourceScenario(t *testing.T) {
	results, report := runAll(t, mustNew(t, quietConfig("ab")))

	want := []string{"AA", "BB", DoneMessage}
	if !strSliceEqual(values(results), want) {
		t.Fatalf("got %v, want %v", values(results), want)
	}
	if results[2].Kind != ResultDone {
		t.Errorf("last result must be the done marker, got %s", results[2].Kind)
	}
	if report.Results != 2 || report.Breaks != 0 || report.Cancelled || !report.Idle {
		t.Errorf("unexpected report %+v", report)
	}
	if report.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestOrchestrator_SpawnsAndJoinsEveryProducer(t *testing.T) {
	cfg := quietConfig("abc", "xyz", "foo")
	cfg.Counts = []int{3}
	extra := Source{Name: "scripted", Open: func(...GeneratorOption) Generator {
		return FromSteps([]Step{{Item: IntItem("scripted", 0, 100)}})
	}}
	o := mustNew(t, cfg, WithSources(extra))

	results, report := runAll(t, o)
	if len(report.Producers) != 5 {
		t.Fatalf("expected 5 producers, got %d", len(report.Producers))
	}
	for i, p := range report.Producers {
		if p.ID != i {
			t.Errorf("producer %d reported id %d", i, p.ID)
		}
		if p.Stopped || p.Error != "" {
			t.Errorf("producer %d did not complete normally: %+v", i, p)
		}
	}
	if report.Pushed() != 13 || report.Results != 13 {
		t.Errorf("expected 13 items through the pipeline, pushed=%d results=%d", report.Pushed(), report.Results)
	}
	if results[len(results)-1].Kind != ResultDone {
		t.Error("done marker must come last")
	}
}

func TestOrchestrator_IntraProducerOrder(t *testing.T) {
	cfg := quietConfig("abcdef", "uvwxyz")
	results, _ := runAll(t, mustNew(t, cfg, WithTransform(Upper())))

	last := map[string]int{}
	pos := map[string]string{"abcdef": "ABCDEF", "uvwxyz": "UVWXYZ"}
	for _, r := range results {
		if r.Kind != ResultValue {
			continue
		}
		i := last[r.Source]
		if want := string(pos[r.Source][i]); r.Value != want {
			t.Fatalf("source %s: got %s at position %d, want %s", r.Source, r.Value, i, want)
		}
		last[r.Source] = i + 1
	}
	if last["abcdef"] != 6 || last["uvwxyz"] != 6 {
		t.Errorf("expected all items, got %v", last)
	}
}

func TestOrchestrator_StopSetBeforeStart(t *testing.T) {
	stop := NewStopSignal()
	stop.Set()
	cfg := quietConfig("abc", "xyz")
	cfg.Counts = []int{2}

	results, report := runAll(t, mustNew(t, cfg, WithStopSignal(stop)))
	if len(results) != 1 || results[0].Kind != ResultDone {
		t.Fatalf("expected only the done marker, got %v", results)
	}
	if len(report.Producers) != 3 {
		t.Fatalf("expected 3 producers joined, got %d", len(report.Producers))
	}
	for _, p := range report.Producers {
		if !p.Stopped || p.Pushed != 0 {
			t.Errorf("producer should stop at its first check: %+v", p)
		}
	}
}

func TestOrchestrator_CancelMarker(t *testing.T) {
	cfg := quietConfig("ab")
	cfg.CancelProbability = 1
	results, report := runAll(t, mustNew(t, cfg))

	want := []ResultKind{ResultValue, ResultCancelled, ResultDone}
	if len(results) != len(want) {
		t.Fatalf("got %v", results)
	}
	for i, k := range want {
		if results[i].Kind != k {
			t.Errorf("result %d = %s, want %s", i, results[i].Kind, k)
		}
	}
	if results[0].Value != "AA" {
		t.Errorf("first value = %q", results[0].Value)
	}
	if !report.Cancelled || report.Idle {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestOrchestrator_SeededRunsRepeat(t *testing.T) {
	cfg := quietConfig("queuekit")
	cfg.Seed = 42
	cfg.FailureProbability = 0.3
	cfg.BreakProbability = 0.3
	cfg.CancelProbability = 0.1
	cfg.BreakPause = time.Millisecond

	first, _ := runAll(t, mustNew(t, cfg))
	second, _ := runAll(t, mustNew(t, cfg))
	if !strSliceEqual(values(first), values(second)) {
		t.Errorf("seeded runs differ:\n%v\n%v", values(first), values(second))
	}
}

func TestOrchestrator_SeededMultiSourceRunsRepeat(t *testing.T) {
	cfg := Config{
		Dataset:            []string{"abcdefgh", "stuvwxyz"},
		Counts:             []int{6},
		Multiplier:         2,
		TimeUnit:           10 * time.Millisecond,
		Timeout:            50 * time.Millisecond,
		BreakPause:         5 * time.Millisecond,
		FailureProbability: 0.3,
		BreakProbability:   0.2,
		CancelProbability:  0.02,
		Seed:               7,
	}

	// a virtual clock keeps goroutine scheduling out of the arrival order
	var runs [][]string
	for i := 0; i < 5; i++ {
		synctest.Test(t, func(t *testing.T) {
			results, report := runAll(t, mustNew(t, cfg))
			if len(report.Producers) != 3 {
				t.Fatalf("expected 3 producers, got %d", len(report.Producers))
			}
			runs = append(runs, values(results))
		})
	}
	for i, run := range runs[1:] {
		if !strSliceEqual(run, runs[0]) {
			t.Errorf("run %d differs:\n%v\n%v", i+1, runs[0], run)
		}
	}

	sources := map[string]bool{}
	full := cfg
	full.CancelProbability = 0
	synctest.Test(t, func(t *testing.T) {
		results, _ := runAll(t, mustNew(t, full))
		for _, r := range results {
			if r.Source != "" {
				sources[r.Source] = true
			}
		}
	})
	if len(sources) < 2 {
		t.Errorf("expected values from several producers, got %v", sources)
	}
}

func TestOrchestrator_FailuresAreSkipped(t *testing.T) {
	cfg := quietConfig("abcdefgh")
	cfg.FailureProbability = 1
	results, report := runAll(t, mustNew(t, cfg))
	if len(results) != 1 || results[0].Kind != ResultDone {
		t.Errorf("every item failed, expected only done, got %v", results)
	}
	if report.Failed() != 8 || report.Pushed() != 0 {
		t.Errorf("unexpected totals pushed=%d failed=%d", report.Pushed(), report.Failed())
	}
}

func TestOrchestrator_ContextCancelJoinsProducers(t *testing.T) {
	var closed atomic.Int32
	slow := Source{Name: "slow", Open: func(opts ...GeneratorOption) Generator {
		return &closeCounter{Generator: Chars("abc", append(opts, WithTimeUnit(time.Hour))...), n: &closed}
	}}
	cfg := quietConfig()
	cfg.Timeout = time.Hour
	o := mustNew(t, cfg, WithSources(slow, slow))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	report, err := o.Run(ctx, func(context.Context, Result) error { return nil })
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if appErr, ok := errors.AsAppError(err); !ok || appErr.Code != errors.ErrCodeCancelled {
		t.Errorf("expected CANCELLED AppError, got %v", err)
	}
	if closed.Load() != 2 {
		t.Errorf("every producer must be joined, %d closed", closed.Load())
	}
	if len(report.Producers) != 2 {
		t.Errorf("expected producer reports, got %+v", report.Producers)
	}
}

func TestSession_CloseBeforeCompletion(t *testing.T) {
	var closed atomic.Int32
	slow := Source{Name: "slow", Open: func(opts ...GeneratorOption) Generator {
		return &closeCounter{Generator: Chars("abc", append(opts, WithTimeUnit(time.Hour))...), n: &closed}
	}}
	o := mustNew(t, quietConfig(), WithSources(slow))

	s := o.Start(context.Background())
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if closed.Load() != 1 {
		t.Error("Close must join the producer")
	}
	if _, ok, _ := s.Next(context.Background()); ok {
		t.Error("closed session must be exhausted")
	}
	_ = s.Close()
}

func TestOrchestrator_SinkErrorStopsRun(t *testing.T) {
	sinkErr := stderrors.New("client gone")
	o := mustNew(t, quietConfig("abc"))
	_, err := o.Run(context.Background(), func(context.Context, Result) error { return sinkErr })
	if !stderrors.Is(err, sinkErr) {
		t.Errorf("expected sink error, got %v", err)
	}
}

func TestOrchestrator_StreamComposes(t *testing.T) {
	o := mustNew(t, quietConfig("ab"))
	only := Filter(o.Stream(), func(r Result) bool { return !r.IsMarker() })
	got, err := Collect(context.Background(), Map(only, func(_ context.Context, r Result) (string, error) {
		return r.Value, nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !strSliceEqual(got, []string{"AA", "BB"}) {
		t.Errorf("got %v", got)
	}
}

func TestOrchestrator_Metrics(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	m, err := NewMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	runAll(t, mustNew(t, quietConfig("abc"), WithMetrics(m)))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if data, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[md.Name] += dp.Value
				}
			}
		}
	}
	if sums["queuekit.items.produced"] != 3 || sums["queuekit.items.consumed"] != 3 {
		t.Errorf("unexpected counters %v", sums)
	}
	if sums["queuekit.runs"] != 1 {
		t.Errorf("expected one run recorded, got %v", sums)
	}
}

func TestOrchestrator_UpperTransform(t *testing.T) {
	cfg := quietConfig("ab")
	cfg.Transform = TransformUpper
	cfg.Multiplier = 3
	results, _ := runAll(t, mustNew(t, cfg))
	want := []string{"A", "B", DoneMessage}
	if !strSliceEqual(values(results), want) {
		t.Fatalf("got %v, want %v", values(results), want)
	}

	cfg.Transform = "reverse"
	_, err := New(cfg)
	if !stderrors.Is(err, &errors.AppError{Code: errors.ErrCodeInvalidInput}) {
		t.Fatalf("expected INVALID_INPUT for unknown transform, got %v", err)
	}
}

func TestConfig_DefaultsAndValidation(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.TimeUnit != time.Second || cfg.Timeout != 5*time.Second || cfg.BreakPause != time.Second || cfg.Multiplier != 2 || cfg.Transform != TransformScale {
		t.Errorf("unexpected defaults %+v", cfg)
	}

	d := DefaultConfig()
	if d.FailureProbability != 0.3 || d.BreakProbability != 0.1 || d.CancelProbability != 0.05 {
		t.Errorf("unexpected default probabilities %+v", d)
	}

	bad := quietConfig("a")
	bad.CancelProbability = 1.5
	bad.Counts = []int{-1}
	_, err := New(bad)
	if !stderrors.Is(err, &errors.AppError{Code: errors.ErrCodeInvalidInput}) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

type closeCounter struct {
	Generator
	n *atomic.Int32
}

func (c *closeCounter) Close() error {
	c.n.Add(1)
	return c.Generator.Close()
}
