package transforms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avaproxy/internal/config"
	"github.com/vyrodovalexey/avaproxy/internal/observability"
)

const tracerName = "avaproxy/transforms"

// BuildContext accumulates the results of one descriptor build. Factories
// record transforms through its methods.
type BuildContext struct {
	routeID            string
	requestTransforms  []RequestTransform
	requestHeaders     headerMap[RequestHeaderTransform]
	responseHeaders    headerMap[*ResponseHeaderValue]
	responseTrailers   headerMap[*ResponseHeaderValue]
	copyRequestHeaders bool
	useOriginalHost    bool
	nodeIDs            NodeIDGenerator
}

func newBuildContext(routeID string, nodeIDs NodeIDGenerator) *BuildContext {
	return &BuildContext{
		routeID:            routeID,
		requestHeaders:     newHeaderMap[RequestHeaderTransform](),
		responseHeaders:    newHeaderMap[*ResponseHeaderValue](),
		responseTrailers:   newHeaderMap[*ResponseHeaderValue](),
		copyRequestHeaders: true,
		nodeIDs:            nodeIDs,
	}
}

// RouteID returns the route being built.
func (bc *BuildContext) RouteID() string {
	return bc.routeID
}

// NodeIDs returns the generator for obfuscated Forwarded identifiers.
func (bc *BuildContext) NodeIDs() NodeIDGenerator {
	return bc.nodeIDs
}

// AddRequestTransform appends t to the request pipeline.
func (bc *BuildContext) AddRequestTransform(t RequestTransform) {
	bc.requestTransforms = append(bc.requestTransforms, t)
}

// AddRequestHeaderTransform registers t for a request header.
func (bc *BuildContext) AddRequestHeaderTransform(name string, t RequestHeaderTransform) error {
	if err := bc.requestHeaders.add(name, t); err != nil {
		return fmt.Errorf("%w: request header %s", err, name)
	}
	return nil
}

// AddResponseHeaderTransform registers t for a response header.
func (bc *BuildContext) AddResponseHeaderTransform(name string, t *ResponseHeaderValue) error {
	if err := bc.responseHeaders.add(name, t); err != nil {
		return fmt.Errorf("%w: response header %s", err, name)
	}
	return nil
}

// AddResponseTrailerTransform registers t for a response trailer.
func (bc *BuildContext) AddResponseTrailerTransform(name string, t *ResponseHeaderValue) error {
	if err := bc.responseTrailers.add(name, t); err != nil {
		return fmt.Errorf("%w: response trailer %s", err, name)
	}
	return nil
}

// SetCopyRequestHeaders controls copying of inbound request headers.
func (bc *BuildContext) SetCopyRequestHeaders(v bool) {
	bc.copyRequestHeaders = v
}

// SetUseOriginalHost controls forwarding of the inbound Host.
func (bc *BuildContext) SetUseOriginalHost(v bool) {
	bc.useOriginalHost = v
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithRegistry sets the factory registry.
func WithRegistry(r *Registry) BuilderOption {
	return func(b *Builder) {
		b.registry = r
	}
}

// WithBuilderLogger sets the logger used by the builder and by the
// transformers it builds.
func WithBuilderLogger(logger observability.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithNodeIDGenerator sets the generator for obfuscated Forwarded
// identifiers.
func WithNodeIDGenerator(g NodeIDGenerator) BuilderOption {
	return func(b *Builder) {
		b.nodeIDs = g
	}
}

// WithMetrics sets the metrics recorded by the builder and its transformers.
func WithMetrics(m *Metrics) BuilderOption {
	return func(b *Builder) {
		b.metrics = m
	}
}

// WithTracer sets the tracer. The global provider's tracer is used otherwise.
func WithTracer(t trace.Tracer) BuilderOption {
	return func(b *Builder) {
		b.tracer = t
	}
}

// Builder compiles descriptors into Transformers. It holds no per-build
// state and may be used concurrently.
type Builder struct {
	registry *Registry
	logger   observability.Logger
	metrics  *Metrics
	nodeIDs  NodeIDGenerator
	tracer   trace.Tracer
}

// NewBuilder creates a builder with the default registry.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	if b.registry == nil {
		b.registry = DefaultRegistry()
	}
	if b.logger == nil {
		b.logger = observability.NopLogger()
	}
	if b.nodeIDs == nil {
		b.nodeIDs = RandomNodeID
	}
	if b.tracer == nil {
		b.tracer = otel.Tracer(tracerName)
	}
	return b
}

// BuildRoute builds the transformer for route.
func (b *Builder) BuildRoute(ctx context.Context, route *config.Route) (*Transformer, error) {
	return b.build(ctx, route.RouteID, route.Transforms)
}

// Build builds a transformer from descriptor entries not tied to a route.
func (b *Builder) Build(ctx context.Context, entries []map[string]string) (*Transformer, error) {
	return b.build(ctx, "", entries)
}

func (b *Builder) build(ctx context.Context, routeID string, entries []map[string]string) (*Transformer, error) {
	_, span := b.tracer.Start(ctx, "transforms.build",
		trace.WithAttributes(
			attribute.String("route.id", routeID),
			attribute.Int("transforms.entries", len(entries)),
		),
	)
	defer span.End()

	t, err := b.compile(routeID, entries)
	if err != nil {
		var be *BuildError
		kind := ""
		if errors.As(err, &be) {
			kind = be.Kind
			b.logger.Error("failed to build transforms",
				observability.String("route_id", routeID),
				observability.Int("index", be.Index),
				observability.String("kind", kind),
				observability.Error(err),
			)
		}
		b.metrics.recordBuild(false, errorReason(err))
		span.SetAttributes(attribute.String("transforms.result", "error"))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	b.metrics.recordBuild(true, "")
	span.SetAttributes(
		attribute.String("transforms.result", "success"),
		attribute.Int("transforms.request", len(t.requestTransforms)),
		attribute.Int("transforms.request_headers", len(t.requestHeaders.names)),
	)
	b.logger.Debug("transforms built",
		observability.String("route_id", routeID),
		observability.Int("request_transforms", len(t.requestTransforms)),
		observability.Int("request_headers", len(t.requestHeaders.names)),
		observability.Int("response_headers", len(t.responseHeaders.names)),
		observability.Int("response_trailers", len(t.responseTrailers.names)),
	)
	return t, nil
}

func (b *Builder) compile(routeID string, entries []map[string]string) (*Transformer, error) {
	bc := newBuildContext(routeID, b.nodeIDs)

	for i, raw := range entries {
		if err := b.apply(bc, i, raw); err != nil {
			return nil, err
		}
	}

	implicitHost := false
	if !bc.useOriginalHost && !bc.requestHeaders.has(hostHeader) {
		// An empty Host sends the destination's host upstream.
		_ = bc.requestHeaders.add(hostHeader, &RequestHeaderValue{})
		implicitHost = true
	}

	return &Transformer{
		routeID:            routeID,
		requestTransforms:  bc.requestTransforms,
		requestHeaders:     bc.requestHeaders,
		responseHeaders:    bc.responseHeaders,
		responseTrailers:   bc.responseTrailers,
		copyRequestHeaders: bc.copyRequestHeaders,
		useOriginalHost:    bc.useOriginalHost,
		implicitHost:       implicitHost,
		logger:             b.logger.With(observability.String("route_id", routeID)),
		metrics:            b.metrics,
		tracer:             b.tracer,
	}, nil
}

func (b *Builder) apply(bc *BuildContext, index int, raw map[string]string) error {
	e, err := newEntry(index, raw)
	if err != nil {
		return &BuildError{RouteID: bc.routeID, Index: index, Err: err}
	}

	f, err := b.registry.resolve(e)
	if err != nil {
		return &BuildError{RouteID: bc.routeID, Index: index, Err: err}
	}

	if err := f.Build(bc, e); err != nil {
		return &BuildError{RouteID: bc.routeID, Index: index, Kind: f.Kind(), Err: err}
	}

	if extra := e.Unconsumed(); len(extra) > 0 {
		return &BuildError{
			RouteID: bc.routeID,
			Index:   index,
			Kind:    f.Kind(),
			Err:     invalidParam("unknown parameters %s", strings.Join(extra, ", ")),
		}
	}
	return nil
}
