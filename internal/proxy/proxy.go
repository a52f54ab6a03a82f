package proxy

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httputil"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avaproxy/internal/config"
	"github.com/vyrodovalexey/avaproxy/internal/observability"
	"github.com/vyrodovalexey/avaproxy/internal/transforms"
	"github.com/vyrodovalexey/avaproxy/internal/util"
)

// protocolHeaders are set on the outgoing request by the HTTP layer itself
// and survive the transform header rebuild.
var protocolHeaders = []string{"Te", "Connection", "Upgrade"}

// ReverseProxy forwards requests using the active route table.
type ReverseProxy struct {
	table         atomic.Pointer[Table]
	builder       *transforms.Builder
	logger        observability.Logger
	errorLog      *log.Logger
	transport     http.RoundTripper
	errorHandler  func(http.ResponseWriter, *http.Request, error)
	flushInterval time.Duration
	pathBase      string
	metrics       *proxyMetrics
}

// ProxyOption is a functional option for configuring the proxy.
type ProxyOption func(*ReverseProxy)

// WithProxyLogger sets the logger for the proxy.
func WithProxyLogger(logger observability.Logger) ProxyOption {
	return func(p *ReverseProxy) {
		p.logger = logger
	}
}

// WithTransport sets the transport for the proxy.
func WithTransport(transport http.RoundTripper) ProxyOption {
	return func(p *ReverseProxy) {
		p.transport = transport
	}
}

// WithErrorHandler sets the handler for upstream and destination errors.
func WithErrorHandler(handler func(http.ResponseWriter, *http.Request, error)) ProxyOption {
	return func(p *ReverseProxy) {
		p.errorHandler = handler
	}
}

// WithFlushInterval sets the flush interval for streaming responses.
func WithFlushInterval(interval time.Duration) ProxyOption {
	return func(p *ReverseProxy) {
		p.flushInterval = interval
	}
}

// WithPathBase sets the prefix stripped from inbound paths before routing.
func WithPathBase(pathBase string) ProxyOption {
	return func(p *ReverseProxy) {
		p.pathBase = strings.TrimSuffix(pathBase, "/")
	}
}

// WithBuilder sets the transform builder used when loading tables.
func WithBuilder(builder *transforms.Builder) ProxyOption {
	return func(p *ReverseProxy) {
		p.builder = builder
	}
}

// WithMetricsRegisterer registers the proxy's collectors with registerer.
func WithMetricsRegisterer(registerer prometheus.Registerer) ProxyOption {
	return func(p *ReverseProxy) {
		p.metrics = newProxyMetrics(registerer)
	}
}

// New creates a reverse proxy with no route table. It answers 503 until
// Load succeeds.
func New(opts ...ProxyOption) *ReverseProxy {
	p := &ReverseProxy{
		logger:        observability.NopLogger(),
		flushInterval: -1, // Immediate flush
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.builder == nil {
		p.builder = transforms.NewBuilder(transforms.WithBuilderLogger(p.logger))
	}
	if p.errorHandler == nil {
		p.errorHandler = p.defaultErrorHandler
	}
	p.errorLog = observability.NewStdLog(p.logger)

	return p
}

// Load builds a table from cfg and makes it active. On error the active
// table is left unchanged.
func (p *ReverseProxy) Load(ctx context.Context, cfg *config.ProxyConfig) error {
	table, err := BuildTable(ctx, cfg, p.builder, p.table.Load())
	if err != nil {
		p.logger.Error("route table rejected", observability.Error(err))
		return err
	}

	p.table.Store(table)
	p.logger.Info("route table loaded",
		observability.Int("routes", table.Len()),
		observability.Int("clusters", len(table.clusters)),
	)
	p.logger.Debug("route match order", observability.Strings("routes", table.MatchOrder()))
	return nil
}

// Table returns the active table, or nil before the first Load.
func (p *ReverseProxy) Table() *Table {
	return p.table.Load()
}

// Ready reports whether a route table is active.
func (p *ReverseProxy) Ready() bool {
	return p.table.Load() != nil
}

// ServeHTTP implements http.Handler.
func (p *ReverseProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	table := p.table.Load()
	if table == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable", "no route table loaded")
		return
	}

	path, ok := stripPathBase(r.URL.Path, p.pathBase)
	if !ok {
		p.handleRouteNotFound(w, r, util.NewRouteNotFoundError(r.Method, r.Host, r.URL.Path))
		return
	}

	route, values, err := table.Match(r, path)
	if err != nil {
		p.handleRouteNotFound(w, r, err)
		return
	}

	ctx := r.Context()
	info := util.RequestInfoFromContext(ctx)
	if info != nil {
		info.RouteID = route.ID
		info.ClusterID = route.Cluster.ID
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("http.route", route.ID))

	ctx = util.ContextWithRoute(ctx, route.ID)
	ctx = util.ContextWithCluster(ctx, route.Cluster.ID)
	ctx = util.ContextWithRouteValues(ctx, values)
	r = r.WithContext(ctx)

	dest, err := route.Cluster.Next()
	if err != nil {
		p.metrics.recordError(route.ID, "no_destination")
		p.errorHandler(w, r, util.NewClusterError(route.ID, route.Cluster.ID, err))
		return
	}
	if info != nil {
		info.Destination = dest.Name
	}

	p.proxyRequest(w, r, route, dest, path)
}

// proxyRequest forwards r to dest, running the route's transforms on the
// outgoing request and on the upstream response.
func (p *ReverseProxy) proxyRequest(
	w http.ResponseWriter,
	r *http.Request,
	route *Route,
	dest *Destination,
	path string,
) {
	start := time.Now()

	rp := &httputil.ReverseProxy{
		ErrorLog: p.errorLog,
		Rewrite: func(pr *httputil.ProxyRequest) {
			p.rewrite(pr, route, dest, path)
		},
		ModifyResponse: func(resp *http.Response) error {
			p.metrics.observeUpstream(route.Cluster.ID, time.Since(start).Seconds())
			route.Transformer.ApplyResponse(resp.Request.Context(), transforms.NewResponseContext(r, resp))
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			p.metrics.recordError(route.ID, errorType(err))
			p.errorHandler(w, req, NewUpstreamError(route.ID, dest.URL.String(), err))
		},
		Transport:     p.transport,
		FlushInterval: p.flushInterval,
	}

	rp.ServeHTTP(w, r)
}

// rewrite builds the outgoing request. The transform runtime sets the
// outgoing headers, host, method, path and query; the destination then
// supplies scheme, authority and base path. Route values come from the
// request context.
func (p *ReverseProxy) rewrite(
	pr *httputil.ProxyRequest,
	route *Route,
	dest *Destination,
	path string,
) {
	ctx := pr.Out.Context()
	values := util.RouteValuesFromContext(ctx)

	saved := make(map[string][]string, len(protocolHeaders))
	for _, name := range protocolHeaders {
		if v, ok := pr.Out.Header[name]; ok {
			saved[name] = v
		}
	}

	rc := transforms.NewRequestContext(pr.In, pr.Out, path, p.pathBase, values)
	if escaped, ok := stripPathBase(pr.In.URL.EscapedPath(), p.pathBase); ok {
		rc.SetEscapedPath(escaped)
	}
	route.Transformer.ApplyRequest(ctx, rc)

	host := pr.Out.Host
	pr.SetURL(dest.URL)
	pr.Out.Host = host

	for name, v := range saved {
		pr.Out.Header[name] = v
	}
	observability.InjectTraceContext(ctx, pr.Out.Header)

	p.logger.Debug("forwarding request",
		observability.String("route_id", route.ID),
		observability.String("destination", dest.Name),
		observability.String("method", pr.Out.Method),
		observability.String("path", pr.Out.URL.EscapedPath()),
		observability.Any("route_values", values),
	)
}

// stripPathBase removes base from path. A path outside base does not match.
func stripPathBase(path, base string) (string, bool) {
	if base == "" {
		return path, true
	}
	if len(path) < len(base) || !strings.EqualFold(path[:len(base)], base) {
		return "", false
	}
	rest := path[len(base):]
	switch {
	case rest == "":
		return "/", true
	case rest[0] == '/':
		return rest, true
	default:
		return "", false
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "upstream"
	}
}

// handleRouteNotFound handles requests that match no route.
func (p *ReverseProxy) handleRouteNotFound(w http.ResponseWriter, r *http.Request, err error) {
	p.logger.Debug("route not found",
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
		observability.Error(err),
	)

	writeJSONError(w, http.StatusNotFound, "not found", "no matching route")
}

// defaultErrorHandler is the default error handler.
func (p *ReverseProxy) defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	p.logger.Error("proxy error",
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
		observability.String("route_id", util.RouteFromContext(ctx)),
		observability.String("cluster_id", util.ClusterFromContext(ctx)),
		observability.Duration("elapsed", util.ElapsedTime(ctx)),
		observability.Error(err),
	)

	var upstream *UpstreamError
	switch {
	case errors.Is(err, util.ErrNoDestination):
		writeJSONError(w, http.StatusServiceUnavailable, "service unavailable", "no destination available")
	case errors.As(err, &upstream) && upstream.Timeout(), errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, http.StatusGatewayTimeout, "gateway timeout", "upstream request timed out")
	default:
		writeJSONError(w, http.StatusBadGateway, "bad gateway", "failed to proxy request")
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `{"error":"`+code+`","message":"`+message+`"}`)
}

// Handler returns an http.Handler for the proxy.
func (p *ReverseProxy) Handler() http.Handler {
	return p
}
