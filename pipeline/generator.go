package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kbukum/queuekit/errors"
)

// Generator is a lazy, finite, non-restartable sequence of steps.
// Next returns an error only when ctx is done; generation failures are
// carried in Step.Err.
type Generator = Iterator[Step]

// Rand is the random source used for delays and probability rolls.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// NewRand returns a deterministic source for seed and stream. A zero seed
// returns the process-wide source.
func NewRand(seed, stream uint64) Rand {
	if seed == 0 {
		return globalRand{}
	}
	return rand.New(rand.NewPCG(seed, stream))
}

// GeneratorOption configures a generator.
type GeneratorOption func(*generatorOptions)

type generatorOptions struct {
	rng         Rand
	unit        time.Duration
	failureProb float64
}

func defaultGeneratorOptions() generatorOptions {
	return generatorOptions{rng: globalRand{}, unit: time.Second}
}

// WithRand sets the random source for delays and failure rolls.
func WithRand(r Rand) GeneratorOption {
	return func(o *generatorOptions) {
		if r != nil {
			o.rng = r
		}
	}
}

// WithTimeUnit sets the upper bound of the per-item delay.
// Zero disables the delay.
func WithTimeUnit(d time.Duration) GeneratorOption {
	return func(o *generatorOptions) { o.unit = d }
}

// WithFailureProbability makes each step fail with probability p.
func WithFailureProbability(p float64) GeneratorOption {
	return func(o *generatorOptions) { o.failureProb = p }
}

// Chars yields the characters of s in order.
func Chars(s string, opts ...GeneratorOption) Generator {
	runes := []rune(s)
	return newStepIter(s, len(runes), func(i int) Item {
		return CharItem(s, i, runes[i])
	}, opts)
}

// Numbers yields 0..n-1 in order.
func Numbers(n int, opts ...GeneratorOption) Generator {
	source := countSourceName(n)
	if n < 0 {
		n = 0
	}
	return newStepIter(source, n, func(i int) Item {
		return IntItem(source, i, i)
	}, opts)
}

// FromSteps replays a fixed script of steps without delay or random failure.
func FromSteps(steps []Step) Generator {
	return &sliceIter[Step]{items: steps}
}

// FailedStep builds the failure step for position seq of source.
func FailedStep(source string, seq int) Step {
	return Step{
		Item: Item{Source: source, Seq: seq},
		Err:  errors.GenerationFailed(source, seq),
	}
}

// Source names a generator input and knows how to open a fresh generator for it.
type Source struct {
	Name string
	Open func(opts ...GeneratorOption) Generator
}

// TextSource yields the characters of s.
func TextSource(s string) Source {
	return Source{
		Name: s,
		Open: func(opts ...GeneratorOption) Generator { return Chars(s, opts...) },
	}
}

// CountSource yields the integers 0..n-1.
func CountSource(n int) Source {
	return Source{
		Name: countSourceName(n),
		Open: func(opts ...GeneratorOption) Generator { return Numbers(n, opts...) },
	}
}

func countSourceName(n int) string { return fmt.Sprintf("range(%d)", n) }

type stepIter struct {
	source string
	n      int
	pos    int
	at     func(int) Item
	opts   generatorOptions
}

func newStepIter(source string, n int, at func(int) Item, opts []GeneratorOption) *stepIter {
	o := defaultGeneratorOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &stepIter{source: source, n: n, at: at, opts: o}
}

func (it *stepIter) Next(ctx context.Context) (Step, bool, error) {
	if it.pos >= it.n {
		return Step{}, false, nil
	}
	if err := sleep(ctx, jitter(it.opts.rng, it.opts.unit)); err != nil {
		return Step{}, false, err
	}
	i := it.pos
	it.pos++
	if it.opts.failureProb > 0 && it.opts.rng.Float64() < it.opts.failureProb {
		return FailedStep(it.source, i), true, nil
	}
	return Step{Item: it.at(i)}, true, nil
}

func (it *stepIter) Close() error {
	it.pos = it.n
	return nil
}

func jitter(r Rand, unit time.Duration) time.Duration {
	if unit <= 0 {
		return 0
	}
	return time.Duration(r.Float64() * float64(unit))
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
