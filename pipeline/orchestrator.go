package pipeline

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/queuekit/errors"
	"github.com/kbukum/queuekit/logger"
	"github.com/kbukum/queuekit/observability"
)

// Report summarizes a finished run.
type Report struct {
	RunID     string           `json:"run_id"`
	Producers []ProducerReport `json:"producers"`
	// Results counts transformed values, markers excluded.
	Results   int  `json:"results"`
	Breaks    int  `json:"breaks"`
	Cancelled bool `json:"cancelled"`
	// Idle is set when the stream ended on the queue timeout.
	Idle bool `json:"idle"`
	// Unconsumed counts items left in the queue after the consumer ended.
	Unconsumed int           `json:"unconsumed"`
	Duration   time.Duration `json:"duration"`
}

// Pushed returns the total number of items enqueued by all producers.
func (r *Report) Pushed() int {
	n := 0
	for _, p := range r.Producers {
		n += p.Pushed
	}
	return n
}

// Failed returns the total number of generation failures.
func (r *Report) Failed() int {
	n := 0
	for _, p := range r.Producers {
		n += p.Failed
	}
	return n
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTransform replaces the transform named by Config.Transform.
func WithTransform(t Transform) Option {
	return func(o *Orchestrator) { o.transform = t }
}

// WithSources adds producers beyond those described by the config.
func WithSources(sources ...Source) Option {
	return func(o *Orchestrator) { o.extra = append(o.extra, sources...) }
}

// WithStopSignal shares a caller-owned stop signal with every run.
func WithStopSignal(s *StopSignal) Option {
	return func(o *Orchestrator) { o.stop = s }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator wires producers, queue, and consumer for each run.
type Orchestrator struct {
	cfg       Config
	transform Transform
	extra     []Source
	stop      *StopSignal
	log       *logger.Logger
	metrics   *Metrics
}

// New validates cfg and creates an orchestrator.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{cfg: cfg, log: logger.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if o.transform == nil {
		o.transform = transformFor(cfg)
	}
	return o, nil
}

// Config returns the effective config.
func (o *Orchestrator) Config() Config { return o.cfg }

// Sources lists every producer input in spawn order.
func (o *Orchestrator) Sources() []Source {
	sources := make([]Source, 0, o.cfg.ProducerCount()+len(o.extra))
	for _, s := range o.cfg.Dataset {
		sources = append(sources, TextSource(s))
	}
	for _, n := range o.cfg.Counts {
		sources = append(sources, CountSource(n))
	}
	return append(sources, o.extra...)
}

// Stream returns a lazy pipeline that starts a fresh run each time it is pulled.
func (o *Orchestrator) Stream() *Pipeline[Result] {
	return FromFunc(func(ctx context.Context) Iterator[Result] {
		return o.Start(ctx)
	})
}

// Run executes one run, sending every result to sink, and returns its report.
// Producers are always joined before Run returns.
func (o *Orchestrator) Run(ctx context.Context, sink func(context.Context, Result) error) (*Report, error) {
	s := o.Start(ctx)
	err := drainIter(ctx, s, sink)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	report := s.Report()
	return &report, err
}

// Start spawns the producers and returns the session streaming the results.
// The caller must Close the session.
func (o *Orchestrator) Start(ctx context.Context) *Session {
	runID := uuid.NewString()
	ctx = logger.ContextWithRunID(ctx, runID)
	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun)
	runCtx, cancel := context.WithCancel(ctx)

	stop := o.stop
	if stop == nil {
		stop = NewStopSignal()
	}
	log := o.log.WithContext(ctx).WithComponent("pipeline")
	queue := NewQueue()
	sources := o.Sources()

	s := &Session{
		ctx:     runCtx,
		cancel:  cancel,
		span:    span,
		log:     log,
		metrics: o.metrics,
		queue:   queue,
		started: time.Now(),
		reports: make([]ProducerReport, len(sources)),
		report:  Report{RunID: runID},
	}
	s.consumer = NewConsumer(queue, stop, o.transform, ConsumerConfig{
		Timeout:           o.cfg.Timeout,
		BreakPause:        o.cfg.BreakPause,
		BreakProbability:  o.cfg.BreakProbability,
		CancelProbability: o.cfg.CancelProbability,
		Rand:              NewRand(o.cfg.Seed, 0),
	}).WithLogger(log).WithMetrics(o.metrics)

	observability.SetSpanAttribute(ctx, observability.AttrRunID, runID)
	observability.SetSpanAttribute(ctx, "queuekit.producers", len(sources))
	log.Info("pipeline run started", logger.Fields("producers", len(sources)))

	for i, src := range sources {
		gen := src.Open(
			WithRand(NewRand(o.cfg.Seed, uint64(i+1))),
			WithTimeUnit(o.cfg.TimeUnit),
			WithFailureProbability(o.cfg.FailureProbability),
		)
		p := NewProducer(i, src.Name, gen, queue, stop).WithLogger(log).WithMetrics(o.metrics)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			rep, err := p.Run(runCtx)
			if err != nil && !isContextErr(err) {
				rep.Error = err.Error()
			}
			s.reports[i] = rep
		}()
	}
	return s
}

type sessionState int

const (
	sessionRunning sessionState = iota
	sessionDone
	sessionClosed
)

// Session is one in-flight run. It implements Iterator[Result]; the final
// result is the done marker, emitted after every producer has been joined.
type Session struct {
	ctx      context.Context
	cancel   context.CancelFunc
	span     trace.Span
	log      *logger.Logger
	metrics  *Metrics
	queue    *Queue
	consumer *Consumer
	started  time.Time

	wg      sync.WaitGroup
	reports []ProducerReport

	mu     sync.Mutex
	state  sessionState
	report Report
}

// RunID returns the run identifier.
func (s *Session) RunID() string { return s.report.RunID }

// Next returns the next result of the run.
func (s *Session) Next(ctx context.Context) (Result, bool, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != sessionRunning {
		return Result{}, false, nil
	}

	r, ok, err := s.consumer.Next(ctx)
	if err != nil {
		err = aborted(err)
		s.finish(err)
		return Result{}, false, err
	}
	if ok {
		s.count(r)
		return r, true, nil
	}

	if err := s.join(ctx); err != nil {
		err = aborted(err)
		s.finish(err)
		return Result{}, false, err
	}
	s.finish(nil)
	s.log.Info(DoneMessage, logger.Fields(
		"results", s.report.Results,
		"pushed", s.report.Pushed(),
		"failed", s.report.Failed(),
	))
	return markerResult(ResultDone), true, nil
}

// Close aborts the run if it is still going and joins all producers.
func (s *Session) Close() error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == sessionRunning {
		s.cancel()
		s.wg.Wait()
		s.finish(context.Canceled)
	}
	s.mu.Lock()
	s.state = sessionClosed
	s.mu.Unlock()
	return nil
}

// Report returns a snapshot of the run summary. Producer reports are
// complete once the done result has been emitted or the session closed.
func (s *Session) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.report
	r.Producers = append([]ProducerReport(nil), s.report.Producers...)
	return r
}

func (s *Session) count(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch r.Kind {
	case ResultValue:
		s.report.Results++
	case ResultBreak:
		s.report.Breaks++
	case ResultCancelled:
		s.report.Cancelled = true
	}
}

// join waits for every producer. If ctx ends first the producers are
// cancelled and still awaited.
func (s *Session) join(ctx context.Context) error {
	joined := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
		return nil
	case <-ctx.Done():
		s.cancel()
		<-joined
		return ctx.Err()
	}
}

func (s *Session) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != sessionRunning {
		return
	}
	s.state = sessionDone
	s.cancel()
	// every path into finish has joined the producers or is about to
	// abandon the run after cancelling them
	s.wg.Wait()

	s.report.Producers = append([]ProducerReport(nil), s.reports...)
	s.report.Idle = s.consumer.Idle()
	s.report.Unconsumed = s.queue.Len()
	s.report.Duration = time.Since(s.started)

	status := "completed"
	switch {
	case err != nil && isContextErr(err):
		status = "aborted"
	case err != nil:
		status = "failed"
	case s.report.Cancelled:
		status = "cancelled"
	}
	s.metrics.RecordRun(context.WithoutCancel(s.ctx), status, s.report.Duration)

	s.span.SetAttributes(
		attribute.Int("queuekit.results", s.report.Results),
		attribute.String("queuekit.status", status),
	)
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
		s.log.Warn("pipeline run ended early", logger.Fields(logger.FieldStatus, status, logger.FieldError, err.Error()))
	}
	s.span.End()
}

// aborted reports a context error as a CANCELLED AppError. The context error
// stays in the chain for errors.Is.
func aborted(err error) error {
	if !isContextErr(err) || errors.IsAppError(err) {
		return err
	}
	return errors.Cancelled("pipeline run aborted").WithCause(err)
}

func isContextErr(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
