package fanout

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/raniellyferreira/magicdb/command"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Separator joins per-target segments of an aggregate reply
const Separator = "\n---\n"

const tracerName = "github.com/raniellyferreira/magicdb/fanout"

// Controller forwards requests to a fixed ordered list of targets
type Controller struct {
	targets        []string
	credentials    map[string]Credentials
	aggregate      *Aggregate
	transport      *Transport
	maxConcurrency int
	logger         Logger
	tracer         trace.Tracer

	// Metrics
	sweepCount   int64
	replayCount  int64
	failureCount int64
}

// Option configures a Controller
type Option func(*Controller)

// WithCredentials sets per-target credentials. Targets missing from the
// map are contacted without AUTH.
func WithCredentials(credentials map[string]Credentials) Option {
	return func(c *Controller) {
		c.credentials = make(map[string]Credentials, len(credentials))
		for target, creds := range credentials {
			c.credentials[target] = creds
		}
	}
}

// WithAggregate shares an aggregate cell with the controller
func WithAggregate(aggregate *Aggregate) Option {
	return func(c *Controller) {
		if aggregate != nil {
			c.aggregate = aggregate
		}
	}
}

// WithTransport replaces the outbound transport
func WithTransport(transport *Transport) Option {
	return func(c *Controller) {
		if transport != nil {
			c.transport = transport
		}
	}
}

// WithMaxConcurrency limits how many targets are contacted at once.
// 1 dispatches strictly in order; 0 means no limit.
func WithMaxConcurrency(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.maxConcurrency = n
		}
	}
}

// WithLogger sets the controller logger
func WithLogger(logger Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController creates a controller for targets. The list is copied and
// never changes afterwards.
func NewController(targets []string, opts ...Option) *Controller {
	c := &Controller{
		targets:     append([]string(nil), targets...),
		credentials: map[string]Credentials{},
		aggregate:   NewAggregate(),
		transport:   NewTransport(5*time.Second, 30*time.Second, 10*time.Second),
		logger:      nopLogger{},
		tracer:      otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Targets returns a copy of the configured target list
func (c *Controller) Targets() []string {
	return append([]string(nil), c.targets...)
}

// Aggregate returns the cell holding the last successful response
func (c *Controller) Aggregate() *Aggregate {
	return c.aggregate
}

// Handle lets the controller serve connections directly
func (c *Controller) Handle(ctx context.Context, payload []byte) []byte {
	return []byte(c.Reflect(ctx, payload))
}

// Reflect answers one client request. "SEND TO <address>" replays the
// aggregate; everything else is fanned out.
func (c *Controller) Reflect(ctx context.Context, request []byte) string {
	if cmd, ok := command.Parse(string(request)).(command.SendTo); ok {
		return c.Replay(ctx, cmd.Target)
	}
	return c.FanOut(ctx, request)
}

// Replay forwards the last aggregate to target and reports the outcome
func (c *Controller) Replay(ctx context.Context, target string) string {
	atomic.AddInt64(&c.replayCount, 1)

	ctx, span := c.tracer.Start(ctx, "fanout.replay", trace.WithAttributes(
		attribute.String("fanout.target", target),
	))
	defer span.End()

	payload, ok := c.aggregate.Load()
	if !ok {
		payload = []byte(NoDataSentinel)
	}

	if err := c.transport.Send(ctx, target, payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replay failed")
		c.logger.Error("Replay failed", "target", target, "error", err)
		return fmt.Sprintf("send to %s failed: %v", target, err)
	}

	c.logger.Info("Replayed aggregate", "target", target, "bytes", len(payload))
	return fmt.Sprintf("sent to %s", target)
}

// outcome is the result of one target in a sweep
type outcome struct {
	payload []byte
	err     error
}

// FanOut forwards request to every target and joins the replies in
// target order. Failures become segments; every target is attempted.
func (c *Controller) FanOut(ctx context.Context, request []byte) string {
	atomic.AddInt64(&c.sweepCount, 1)

	ctx, span := c.tracer.Start(ctx, "fanout.sweep", trace.WithAttributes(
		attribute.Int("fanout.targets", len(c.targets)),
	))
	defer span.End()

	results := make([]outcome, len(c.targets))

	var g errgroup.Group
	if c.maxConcurrency > 0 {
		g.SetLimit(c.maxConcurrency)
	}
	for i, target := range c.targets {
		g.Go(func() error {
			results[i] = c.dispatch(ctx, target, request)
			return nil
		})
	}
	_ = g.Wait()

	segments := make([]string, len(results))
	var last []byte
	succeeded := 0
	for i, result := range results {
		if result.err != nil {
			segments[i] = describe(result.err)
			continue
		}
		segments[i] = string(result.payload)
		last = result.payload
		succeeded++
	}

	if succeeded > 0 {
		c.aggregate.Store(last)
	}

	span.SetAttributes(attribute.Int("fanout.succeeded", succeeded))
	c.logger.Debug("Sweep finished", "targets", len(c.targets), "succeeded", succeeded)

	return strings.Join(segments, Separator)
}

// dispatch runs one target of a sweep
func (c *Controller) dispatch(ctx context.Context, target string, request []byte) outcome {
	ctx, span := c.tracer.Start(ctx, "fanout.target", trace.WithAttributes(
		attribute.String("fanout.target", target),
	))
	defer span.End()

	var creds *Credentials
	if cred, ok := c.credentials[target]; ok {
		creds = &cred
	}

	start := time.Now()
	response, err := c.transport.Exchange(ctx, target, request, creds)
	if err != nil {
		atomic.AddInt64(&c.failureCount, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "target failed")
		c.logger.Error("Target failed", "target", target, "error", err)
		return outcome{err: err}
	}

	c.logger.Debug("Target replied", "target", target, "bytes", len(response), "duration", time.Since(start))
	return outcome{payload: response}
}

// Stats returns controller statistics
func (c *Controller) Stats() map[string]interface{} {
	return map[string]interface{}{
		"targets":         len(c.targets),
		"total_sweeps":    atomic.LoadInt64(&c.sweepCount),
		"total_replays":   atomic.LoadInt64(&c.replayCount),
		"target_failures": atomic.LoadInt64(&c.failureCount),
	}
}
