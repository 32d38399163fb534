package pipeline

import (
	"context"
	"fmt"

	"github.com/kbukum/queuekit/errors"
	"github.com/kbukum/queuekit/logger"
)

// ProducerReport summarizes one producer's run.
type ProducerReport struct {
	ID     int    `json:"id"`
	Source string `json:"source"`
	Pushed int    `json:"pushed"`
	Failed int    `json:"failed"`
	// Stopped is set when the producer exited because the stop signal was raised.
	Stopped bool   `json:"stopped"`
	Error   string `json:"error,omitempty"`
}

// Producer drains one generator into the shared queue.
type Producer struct {
	id      int
	source  string
	gen     Generator
	queue   *Queue
	stop    *StopSignal
	log     *logger.Logger
	metrics *Metrics
}

// NewProducer creates a producer pushing gen's items onto q until gen is
// exhausted or stop is raised.
func NewProducer(id int, source string, gen Generator, q *Queue, stop *StopSignal) *Producer {
	return &Producer{
		id:     id,
		source: source,
		gen:    gen,
		queue:  q,
		stop:   stop,
		log:    logger.NewNop(),
	}
}

// WithLogger sets the logger used for failure reports.
func (p *Producer) WithLogger(l *logger.Logger) *Producer {
	if l != nil {
		p.log = l.WithFields(logger.Fields(logger.FieldProducer, p.id, logger.FieldSource, p.source))
	}
	return p
}

// WithMetrics sets the metric instruments.
func (p *Producer) WithMetrics(m *Metrics) *Producer {
	p.metrics = m
	return p
}

// Run drives the generator to completion. The stop signal is checked before
// every generation step; a step already in flight still lands. Generation
// failures are logged and skipped. The only errors returned are context
// errors and recovered generator panics.
func (p *Producer) Run(ctx context.Context) (report ProducerReport, err error) {
	report = ProducerReport{ID: p.id, Source: p.source}
	defer p.gen.Close()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Internal(fmt.Errorf("producer %d panicked: %v", p.id, r))
			p.log.Error("producer panic recovered", logger.Fields(logger.FieldError, fmt.Sprint(r)))
		}
	}()

	for {
		if p.stop.IsSet() {
			report.Stopped = true
			p.log.Debug("producer stopped", logger.Fields("pushed", report.Pushed))
			return report, nil
		}

		step, ok, err := p.gen.Next(ctx)
		if err != nil {
			return report, err
		}
		if !ok {
			return report, nil
		}

		if step.Failed() {
			report.Failed++
			p.log.Warn("Producer failed", logger.Fields(
				logger.FieldSeq, step.Seq,
				logger.FieldError, step.Err.Error(),
			))
			p.metrics.RecordFailure(ctx, p.source)
			continue
		}

		if err := p.queue.Push(ctx, step.Item); err != nil {
			return report, err
		}
		report.Pushed++
		p.metrics.RecordProduced(ctx, p.source)
	}
}
