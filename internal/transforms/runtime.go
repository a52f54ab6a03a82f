package transforms

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/http/httpguts"

	"github.com/vyrodovalexey/avaproxy/internal/observability"
)

const (
	directionRequest  = "request"
	directionResponse = "response"
	directionTrailers = "trailers"
)

// hopHeaders are never copied to the outgoing request.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ApplyRequest rewrites rc.Outgoing. Headers are rebuilt first, then the
// request pipeline runs in declaration order, then method, path and query
// are committed to the outgoing request. The committed path is relative to
// the destination's base path.
func (t *Transformer) ApplyRequest(ctx context.Context, rc *RequestContext) {
	start := time.Now()
	_, span := t.tracer.Start(ctx, "transforms.request",
		trace.WithAttributes(
			attribute.String("route.id", t.routeID),
			attribute.Int("transforms.request", len(t.requestTransforms)),
			attribute.Int("transforms.request_headers", len(t.requestHeaders.names)),
		),
	)
	defer span.End()

	rc.noop = t.noopObserver(ctx)

	t.applyRequestHeaders(rc)
	for _, rt := range t.requestTransforms {
		rt.Apply(rc)
	}
	t.commit(rc)

	t.metrics.recordApply(directionRequest, time.Since(start))
}

func (t *Transformer) applyRequestHeaders(rc *RequestContext) {
	in, out := rc.Inbound, rc.Outgoing
	header := make(http.Header, len(in.Header))
	handled := make(map[string]bool, len(t.requestHeaders.names))

	if t.copyRequestHeaders {
		skip := connectionHeaders(in.Header)
		for name, values := range in.Header {
			if skip[name] || name == hostHeader {
				continue
			}
			if ht, ok := t.requestHeaders.get(name); ok {
				handled[strings.ToLower(name)] = true
				values = ht.Apply(rc, cloneValues(values))
				if len(values) == 0 {
					continue
				}
			}
			header[name] = cloneValues(values)
		}
	}

	for _, name := range t.requestHeaders.names {
		key := strings.ToLower(name)
		if handled[key] {
			continue
		}
		ht, _ := t.requestHeaders.get(name)

		if strings.EqualFold(name, hostHeader) {
			out.Host = firstValue(ht.Apply(rc, []string{in.Host}))
			continue
		}
		values := ht.Apply(rc, cloneValues(in.Header.Values(name)))
		if len(values) > 0 {
			header[canonical(name)] = values
		}
	}

	if t.useOriginalHost && !t.requestHeaders.has(hostHeader) {
		out.Host = in.Host
	}
	out.Header = header
}

// connectionHeaders returns the canonical names of hop-by-hop headers,
// including those listed in Connection.
func connectionHeaders(h http.Header) map[string]bool {
	skip := make(map[string]bool, len(hopHeaders))
	for _, name := range hopHeaders {
		skip[name] = true
	}
	for _, v := range h["Connection"] {
		for _, token := range strings.Split(v, ",") {
			token = strings.TrimSpace(token)
			if token != "" && httpguts.ValidHeaderFieldName(token) {
				skip[canonical(token)] = true
			}
		}
	}
	return skip
}

func (t *Transformer) commit(rc *RequestContext) {
	out := rc.Outgoing
	out.Method = rc.Method
	out.URL.Path = rc.Path
	out.URL.RawPath = rc.outgoingRawPath()
	if rc.queryModified {
		out.URL.RawQuery = rc.query.Encode()
	}
}

// ApplyResponse rewrites the response headers and announces the trailers
// that ApplyTrailers will set. The response body is wrapped so trailers are
// transformed once it has been read to EOF.
func (t *Transformer) ApplyResponse(ctx context.Context, rc *ResponseContext) {
	if len(t.responseHeaders.names) == 0 && len(t.responseTrailers.names) == 0 {
		return
	}

	start := time.Now()
	_, span := t.tracer.Start(ctx, "transforms.response",
		trace.WithAttributes(
			attribute.String("route.id", t.routeID),
			attribute.Int("http.response.status_code", rc.Response.StatusCode),
			attribute.Int("transforms.response_headers", len(t.responseHeaders.names)),
			attribute.Int("transforms.response_trailers", len(t.responseTrailers.names)),
		),
	)
	defer span.End()

	resp := rc.Response
	success := rc.Success()
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}

	for _, name := range t.responseHeaders.names {
		ht, _ := t.responseHeaders.get(name)
		if !ht.Always && !success {
			continue
		}
		key := canonical(name)
		values := ht.Apply(resp.Header.Values(key))
		if len(values) == 0 {
			resp.Header.Del(key)
			continue
		}
		resp.Header[key] = values
	}

	if len(t.responseTrailers.names) > 0 {
		announced := false
		for _, name := range t.responseTrailers.names {
			ht, _ := t.responseTrailers.get(name)
			if !ht.Always && !success {
				continue
			}
			if resp.Trailer == nil {
				resp.Trailer = make(http.Header)
			}
			key := canonical(name)
			if _, ok := resp.Trailer[key]; !ok {
				resp.Trailer[key] = nil
			}
			announced = true
		}
		if announced && resp.Body != nil {
			resp.Body = &trailerBody{ReadCloser: resp.Body, apply: func() {
				t.ApplyTrailers(ctx, rc)
			}}
		}
	}

	t.metrics.recordApply(directionResponse, time.Since(start))
}

// ApplyTrailers rewrites rc.Response.Trailer. A removed trailer keeps its
// announced key with no values.
func (t *Transformer) ApplyTrailers(ctx context.Context, rc *ResponseContext) {
	if len(t.responseTrailers.names) == 0 {
		return
	}

	start := time.Now()
	resp := rc.Response
	success := rc.Success()
	if resp.Trailer == nil {
		resp.Trailer = make(http.Header)
	}

	for _, name := range t.responseTrailers.names {
		ht, _ := t.responseTrailers.get(name)
		if !ht.Always && !success {
			continue
		}
		key := canonical(name)
		resp.Trailer[key] = ht.Apply(resp.Trailer.Values(key))
	}

	t.metrics.recordApply(directionTrailers, time.Since(start))
	t.logger.WithContext(ctx).Debug("response trailers transformed")
}

func (t *Transformer) noopObserver(ctx context.Context) func(kind, reason string) {
	return func(kind, reason string) {
		t.metrics.recordNoop(kind, reason)
		t.logger.WithContext(ctx).Debug("transform skipped",
			observability.String("kind", kind),
			observability.String("reason", reason),
		)
	}
}

// trailerBody runs apply once when the upstream body reaches EOF or is
// closed, after the transport has filled in the trailers.
type trailerBody struct {
	io.ReadCloser
	once  sync.Once
	apply func()
}

func (b *trailerBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err == io.EOF {
		b.once.Do(b.apply)
	}
	return n, err
}

func (b *trailerBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.apply)
	return err
}

func cloneValues(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
