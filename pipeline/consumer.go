package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kbukum/queuekit/logger"
)

// ConsumerConfig tunes the consumer loop.
type ConsumerConfig struct {
	// Timeout is how long to wait for the next item before the stream ends.
	Timeout time.Duration
	// BreakPause is how long the consumer pauses after a break marker.
	BreakPause time.Duration
	// BreakProbability is the chance of a break marker after each value.
	BreakProbability float64
	// CancelProbability is the chance of a cancel marker after each value.
	CancelProbability float64
	// Rand drives the break and cancel rolls. Defaults to the process-wide source.
	Rand Rand
}

// Consumer drains the queue, transforms each item, and yields results.
// It implements Iterator[Result] and must be pulled from a single goroutine.
type Consumer struct {
	queue     *Queue
	stop      *StopSignal
	transform Transform
	cfg       ConsumerConfig
	log       *logger.Logger
	metrics   *Metrics

	pending  []Result
	pauseDue bool
	done     bool
	idle     bool
}

// NewConsumer creates a consumer reading from q. A nil transform uses Scale(2).
func NewConsumer(q *Queue, stop *StopSignal, transform Transform, cfg ConsumerConfig) *Consumer {
	if transform == nil {
		transform = Scale(2)
	}
	if cfg.Rand == nil {
		cfg.Rand = globalRand{}
	}
	return &Consumer{
		queue:     q,
		stop:      stop,
		transform: transform,
		cfg:       cfg,
		log:       logger.NewNop(),
	}
}

// WithLogger sets the consumer logger.
func (c *Consumer) WithLogger(l *logger.Logger) *Consumer {
	if l != nil {
		c.log = l.WithComponent("consumer")
	}
	return c
}

// WithMetrics sets the metric instruments.
func (c *Consumer) WithMetrics(m *Metrics) *Consumer {
	c.metrics = m
	return c
}

// Idle reports whether the stream ended because the queue stayed empty
// for the whole timeout window.
func (c *Consumer) Idle() bool { return c.idle }

// Next returns the next transformed value or marker. The stream ends
// without error when the queue idles past the timeout or the stop signal
// is raised.
func (c *Consumer) Next(ctx context.Context) (Result, bool, error) {
	if c.done {
		return Result{}, false, nil
	}

	if c.pauseDue {
		c.pauseDue = false
		if err := sleep(ctx, c.cfg.BreakPause); err != nil {
			return c.fail(err)
		}
	}

	if len(c.pending) > 0 {
		r := c.pending[0]
		c.pending = c.pending[1:]
		switch r.Kind {
		case ResultBreak:
			c.pauseDue = true
		case ResultCancelled:
			if c.stop.Set() {
				c.log.Info("stop signal raised")
			}
		}
		c.metrics.RecordMarker(ctx, r.Kind)
		return r, true, nil
	}

	if c.stop.IsSet() {
		c.done = true
		return Result{}, false, nil
	}

	item, err := c.queue.PopWithin(ctx, c.cfg.Timeout)
	if err != nil {
		if stderrors.Is(err, ErrQueueIdle) {
			c.done = true
			c.idle = true
			c.log.Debug("queue idle, ending stream", logger.Fields("timeout", c.cfg.Timeout.String()))
			return Result{}, false, nil
		}
		return c.fail(err)
	}

	value, err := c.transform(ctx, item)
	if err != nil {
		c.log.Error("transform failed", logger.Fields(
			logger.FieldSource, item.Source,
			logger.FieldSeq, item.Seq,
			logger.FieldError, err.Error(),
		))
		return c.fail(err)
	}
	c.metrics.RecordConsumed(ctx)

	if c.cfg.Rand.Float64() < c.cfg.BreakProbability {
		c.pending = append(c.pending, markerResult(ResultBreak))
	}
	if c.cfg.Rand.Float64() < c.cfg.CancelProbability {
		c.pending = append(c.pending, markerResult(ResultCancelled))
	}
	return valueResult(item, value), true, nil
}

// Close ends the stream. Items still queued are left in place.
func (c *Consumer) Close() error {
	c.done = true
	c.pending = nil
	return nil
}

func (c *Consumer) fail(err error) (Result, bool, error) {
	c.done = true
	c.pending = nil
	return Result{}, false, err
}
