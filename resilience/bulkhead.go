package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Rejection reasons.
var (
	ErrBulkheadFull    = errors.New("bulkhead is full")
	ErrBulkheadTimeout = errors.New("bulkhead wait timeout")
)

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies the bulkhead in logs and rejection callbacks.
	Name string
	// MaxConcurrent is the number of slots. Values <= 0 mean DefaultMaxConcurrent.
	MaxConcurrent int
	// MaxWait is how long Acquire waits for a slot. 0 fails immediately.
	MaxWait time.Duration
	// OnReject is called with the bulkhead name and the rejection error.
	OnReject func(name string, err error)
}

// DefaultMaxConcurrent is used when BulkheadConfig.MaxConcurrent is unset.
const DefaultMaxConcurrent = 10

// Bulkhead limits how many callers hold a slot at once.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}
}

// NewBulkhead creates a bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Acquire takes a slot and returns the function that gives it back. The
// release function is safe to call more than once.
func (b *Bulkhead) Acquire(ctx context.Context) (func(), error) {
	if err := b.acquire(ctx); err != nil {
		if b.config.OnReject != nil {
			b.config.OnReject(b.config.Name, err)
		}
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(b.release) }, nil
}

// Execute runs fn while holding a slot.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	release, err := b.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	default:
	}
	if b.config.MaxWait <= 0 {
		return ErrBulkheadFull
	}

	timer := time.NewTimer(b.config.MaxWait)
	defer timer.Stop()
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrBulkheadTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) release() {
	<-b.sem
}

// Name returns the configured name.
func (b *Bulkhead) Name() string { return b.config.Name }

// Available returns the number of free slots.
func (b *Bulkhead) Available() int {
	return b.config.MaxConcurrent - len(b.sem)
}

// InUse returns the number of held slots.
func (b *Bulkhead) InUse() int {
	return len(b.sem)
}

// MaxConcurrent returns the slot count.
func (b *Bulkhead) MaxConcurrent() int {
	return b.config.MaxConcurrent
}
