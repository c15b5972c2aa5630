package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"pipelined.dev/pipeline/log"
	"pipelined.dev/pipeline/metric"
)

// Context holds the state shared by all pipelines: registry of factories,
// logger and metrics. It must be initialized before use and deinitialized
// after all pipelines are closed.
type Context struct {
	mu          sync.Mutex
	initialized bool
	done        bool

	registry *Registry
	plugins  []Plugin
	log      logrus.FieldLogger
	reg      prometheus.Registerer
	metrics  *metric.Metrics

	names map[string]int
	live  map[*Pipeline]struct{}
}

// Option provides a way to set functional parameters to context.
type Option func(*Context) error

// WithLogger sets logger of the context.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Context) error {
		if l == nil {
			return errors.New("nil logger")
		}
		c.log = l
		return nil
	}
}

// WithPlugins adds plugins that are registered on Init.
func WithPlugins(plugins ...Plugin) Option {
	return func(c *Context) error {
		c.plugins = append(c.plugins, plugins...)
		return nil
	}
}

// WithMetrics registers element metrics in provided registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Context) error {
		c.reg = reg
		return nil
	}
}

// NewContext creates a new context and applies provided options. Returned
// context must be initialized with Init.
func NewContext(options ...Option) (*Context, error) {
	c := &Context{
		registry: NewRegistry(),
		log:      log.GetLogger(),
		names:    make(map[string]int),
		live:     make(map[*Pipeline]struct{}),
	}
	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Init registers plugins and metrics. Repeated calls have no effect. Context
// cannot be initialized again after Deinit.
func (c *Context) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return fmt.Errorf("init after deinit: %w", ErrNotInitialized)
	}
	if c.initialized {
		return nil
	}
	for _, p := range c.plugins {
		if err := p(c.registry); err != nil {
			return fmt.Errorf("error registering plugin: %w", err)
		}
	}
	if c.reg != nil {
		m, err := metric.New(c.reg)
		if err != nil {
			return fmt.Errorf("error registering metrics: %w", err)
		}
		c.metrics = m
	}
	c.initialized = true
	c.log.Debug("context initialized")
	return nil
}

// Deinit releases the context. It fails if any pipeline is not closed.
func (c *Context) Deinit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return ErrNotInitialized
	}
	if n := len(c.live); n > 0 {
		return fmt.Errorf("%w: %d", ErrPipelinesAlive, n)
	}
	c.initialized = false
	c.done = true
	c.log.Debug("context deinitialized")
	return nil
}

// Registry returns the registry of factories.
func (c *Context) Registry() *Registry {
	return c.registry
}

// Logger returns the logger of the context.
func (c *Context) Logger() logrus.FieldLogger {
	return c.log
}

// MakeElement creates element of provided factory. If name is empty, the
// unique one is generated.
func (c *Context) MakeElement(factory, name string) (Element, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	f, err := c.registry.Lookup(factory)
	if err != nil {
		return nil, err
	}
	e, err := f.New()
	if err != nil {
		return nil, fmt.Errorf("error making %s: %w", factory, err)
	}
	if name == "" {
		name = c.uniqueName(factory)
	}
	b := e.base()
	b.self = e
	b.factory = f.Name
	b.klass = f.Klass
	b.name = name
	b.id = xid.New().String()
	return e, nil
}

// NewPipeline creates a new empty pipeline. If name is empty, the unique
// one is generated.
func (c *Context) NewPipeline(name string) (*Pipeline, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if name == "" {
		name = c.uniqueName("pipeline")
	}
	p := newPipeline(c, name)
	c.mu.Lock()
	c.live[p] = struct{}{}
	c.mu.Unlock()
	return p, nil
}

func (c *Context) release(p *Pipeline) {
	c.mu.Lock()
	delete(c.live, p)
	c.mu.Unlock()
}

func (c *Context) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return ErrNotInitialized
	}
	return nil
}

// uniqueName returns the prefix followed by the counter of its usages.
func (c *Context) uniqueName(prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.names[prefix]
	c.names[prefix] = n + 1
	return fmt.Sprintf("%s%d", prefix, n)
}
