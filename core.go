// Package mqttbuf implements the partial-I/O buffering core of an MQTT
// client transport: resuming an interrupted byte-stream read across
// event-loop iterations, resuming a short scatter/gather write, and a
// bounded call-stack trace for diagnosing contract violations raised
// from deep inside either buffer.
package mqttbuf

import (
	"github.com/mqttbuf/mqttbuf/internal/config"
	"github.com/mqttbuf/mqttbuf/internal/inbound"
	"github.com/mqttbuf/mqttbuf/internal/interfaces"
	"github.com/mqttbuf/mqttbuf/internal/logging"
	"github.com/mqttbuf/mqttbuf/internal/outbound"
	"github.com/mqttbuf/mqttbuf/internal/trace"
)

// Core owns one InboundBuffer, one OutboundBuffer, and one Tracer,
// wiring a shared logger and Observer into the two buffers. A Core is
// the unit of buffering state a socket-driving caller (such as
// internal/eventloop) holds one of per process; per-socket isolation lives inside the buffers
// themselves, not in Core.
type Core struct {
	cfg config.Config

	in     *inbound.Buffer
	out    *outbound.Buffer
	tracer *trace.Tracer

	log interfaces.Logger
	obs interfaces.Observer
}

// Option configures a Core at construction time.
type Option func(*coreOptions)

type coreOptions struct {
	cfg config.Config
	log interfaces.Logger
	obs interfaces.Observer
}

// WithConfig overrides the default Config.
func WithConfig(c config.Config) Option {
	return func(o *coreOptions) { o.cfg = c }
}

// WithLogger attaches a logger; nil disables logging.
func WithLogger(log interfaces.Logger) Option {
	return func(o *coreOptions) { o.log = log }
}

// WithObserver attaches a metrics observer; nil is equivalent to
// NoOpObserver.
func WithObserver(obs interfaces.Observer) Option {
	return func(o *coreOptions) { o.obs = obs }
}

// NewCore builds a Core from options, defaulting config via
// config.Validate, the logger to logging.Default(), and the observer to
// NoOpObserver.
func NewCore(opts ...Option) (*Core, error) {
	o := coreOptions{
		cfg: config.DefaultConfig(),
		log: logging.Default(),
		obs: NoOpObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := config.Validate(o.cfg)
	if err != nil {
		return nil, err
	}

	return &Core{
		cfg:    cfg,
		in:     inbound.New(o.log, o.obs),
		out:    outbound.New(o.log, o.obs),
		tracer: trace.New(),
		log:    o.log,
		obs:    o.obs,
	}, nil
}

// Inbound returns the Core's InboundBuffer.
func (c *Core) Inbound() *inbound.Buffer { return c.in }

// Outbound returns the Core's OutboundBuffer.
func (c *Core) Outbound() *outbound.Buffer { return c.out }

// Tracer returns the Core's call-stack tracer.
func (c *Core) Tracer() *trace.Tracer { return c.tracer }

// Config returns the Core's validated configuration.
func (c *Core) Config() config.Config { return c.cfg }

// Cleanup discards every piece of state a socket may hold in either
// buffer: its promoted inbound queue (or claim on the default queue)
// and any pending outbound write. Call this once a socket is known to
// be closing, so neither buffer retains a reference to a descriptor
// that may be reused by the OS.
func (c *Core) Cleanup(socket int) {
	c.in.Cleanup(socket)
	c.out.WriteComplete(socket)
}

// Close releases the Core's buffer state, including clearing any
// outbound pending-write list contents (spec.md §4.2's terminate()
// behavior). It does not close any socket; callers own their sockets'
// lifecycle separately.
func (c *Core) Close() {
	c.in.Terminate()
	c.out.Clear()
}
