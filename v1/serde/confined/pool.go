package confined

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aleph-Alpha/serde/v1/observability"
	"github.com/Aleph-Alpha/serde/v1/serde"
)

// DefaultMaxIdle is the idle bound used without WithMaxIdle. Zero means no
// bound: every instance is kept, so a wrapper holds exactly as many
// instances as it ever had concurrent callers and steady workers never
// trigger a rebuild.
var DefaultMaxIdle = 0

// Logger is the subset of logger.Logger the wrappers use.
type Logger interface {
	Debug(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
}

type options struct {
	maxIdle  int
	name     string
	observer observability.Observer
	logger   Logger
}

// Option configures a wrapper.
type Option func(*options)

// WithMaxIdle bounds how many idle instances are kept for reuse. Instances
// returned while the idle set is full are released, so a bound below the
// steady number of concurrent callers makes the wrapper rebuild instances.
func WithMaxIdle(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxIdle = n
		}
	}
}

// WithName labels the wrapper in logs and observations, usually the schema
// or topic the codec serves.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithObserver reports every instance the supplier builds.
func WithObserver(observer observability.Observer) Option {
	return func(o *options) { o.observer = observer }
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(o *options) { o.logger = logger }
}

// pool hands out instances one caller at a time. An instance is either
// checked out by exactly one call or parked in idle.
type pool[T any] struct {
	kind     string
	supplier func() (T, error)
	opts     options

	// mu guards closed and idle. It is never held while a supplier or an
	// instance runs.
	mu      sync.Mutex
	closed  bool
	idle    []T
	created atomic.Int64
}

func newPool[T any](kind string, supplier func() (T, error), opts []Option) *pool[T] {
	o := options{maxIdle: DefaultMaxIdle}
	for _, opt := range opts {
		opt(&o)
	}
	return &pool[T]{
		kind:     kind,
		supplier: supplier,
		opts:     o,
	}
}

func (p *pool[T]) acquire() (T, error) {
	var zero T

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, serde.ErrClosed
	}
	if n := len(p.idle); n > 0 {
		inst := p.idle[n-1]
		p.idle[n-1] = zero
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return inst, nil
	}
	p.mu.Unlock()

	start := time.Now()
	inst, err := p.supplier()
	p.observe(time.Since(start), err)
	if err != nil {
		if p.opts.logger != nil {
			p.opts.logger.Warn("failed to create codec instance", err, map[string]interface{}{
				"kind": p.kind,
				"name": p.opts.name,
			})
		}
		return zero, fmt.Errorf("creating %s instance: %w", p.kind, err)
	}
	n := p.created.Add(1)
	if p.opts.logger != nil {
		p.opts.logger.Debug("created codec instance", nil, map[string]interface{}{
			"kind":    p.kind,
			"name":    p.opts.name,
			"created": n,
		})
	}
	return inst, nil
}

func (p *pool[T]) release(inst T) {
	p.mu.Lock()
	if !p.closed && (p.opts.maxIdle <= 0 || len(p.idle) < p.opts.maxIdle) {
		p.idle = append(p.idle, inst)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.discard(inst)
}

func (p *pool[T]) discard(inst T) error {
	c, ok := any(inst).(io.Closer)
	if !ok {
		return nil
	}
	err := c.Close()
	if err != nil && p.opts.logger != nil {
		p.opts.logger.Warn("failed to close codec instance", err, map[string]interface{}{
			"kind": p.kind,
			"name": p.opts.name,
		})
	}
	return err
}

// close marks the pool closed and releases every idle instance. Instances
// still checked out are released when their call returns.
func (p *pool[T]) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var errs []error
	for _, inst := range idle {
		errs = append(errs, p.discard(inst))
	}
	return errors.Join(errs...)
}

func (p *pool[T]) observe(duration time.Duration, err error) {
	if p.opts.observer == nil {
		return
	}
	p.opts.observer.ObserveOperation(observability.OperationContext{
		Component:   "serde",
		Operation:   "instance_created",
		Resource:    p.opts.name,
		SubResource: p.kind,
		Duration:    duration,
		Error:       err,
	})
}
