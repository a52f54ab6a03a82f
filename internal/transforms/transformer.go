package transforms

import (
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avaproxy/internal/config"
	"github.com/vyrodovalexey/avaproxy/internal/observability"
)

// RequestTransform is one step of the ordered request pipeline.
type RequestTransform interface {
	// Kind returns the descriptor kind the transform was built from.
	Kind() string
	// Apply rewrites the request context in place.
	Apply(rc *RequestContext)
	// Entry returns a descriptor entry that rebuilds the transform.
	Entry() map[string]string
}

// RequestHeaderTransform produces the outgoing values of one request
// header from its inbound values. An empty result removes the header.
type RequestHeaderTransform interface {
	Kind() string
	Apply(rc *RequestContext, values []string) []string
	Entry(name string) map[string]string
}

// headerMap keeps header-keyed transforms by lower-cased name in
// declaration order.
type headerMap[T any] struct {
	names []string
	byKey map[string]T
}

func newHeaderMap[T any]() headerMap[T] {
	return headerMap[T]{byKey: make(map[string]T)}
}

func (m *headerMap[T]) add(name string, t T) error {
	key := strings.ToLower(name)
	if _, exists := m.byKey[key]; exists {
		return ErrDuplicateHeaderTransform
	}
	m.byKey[key] = t
	m.names = append(m.names, name)
	return nil
}

func (m *headerMap[T]) get(name string) (T, bool) {
	t, ok := m.byKey[strings.ToLower(name)]
	return t, ok
}

func (m *headerMap[T]) has(name string) bool {
	_, ok := m.byKey[strings.ToLower(name)]
	return ok
}

func (m *headerMap[T]) namesCopy() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Transformer is a compiled transform pipeline. It is immutable once built
// and safe for concurrent use.
type Transformer struct {
	routeID            string
	requestTransforms  []RequestTransform
	requestHeaders     headerMap[RequestHeaderTransform]
	responseHeaders    headerMap[*ResponseHeaderValue]
	responseTrailers   headerMap[*ResponseHeaderValue]
	copyRequestHeaders bool
	useOriginalHost    bool
	implicitHost       bool

	logger  observability.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// RouteID returns the route the transformer was built for.
func (t *Transformer) RouteID() string {
	return t.routeID
}

// RequestTransforms returns the request pipeline in declaration order.
func (t *Transformer) RequestTransforms() []RequestTransform {
	out := make([]RequestTransform, len(t.requestTransforms))
	copy(out, t.requestTransforms)
	return out
}

// RequestHeaderTransform returns the transform for a request header.
func (t *Transformer) RequestHeaderTransform(name string) (RequestHeaderTransform, bool) {
	return t.requestHeaders.get(name)
}

// RequestHeaderNames returns the transformed request header names in
// declaration order.
func (t *Transformer) RequestHeaderNames() []string {
	return t.requestHeaders.namesCopy()
}

// ResponseHeaderTransform returns the transform for a response header.
func (t *Transformer) ResponseHeaderTransform(name string) (*ResponseHeaderValue, bool) {
	return t.responseHeaders.get(name)
}

// ResponseHeaderNames returns the transformed response header names.
func (t *Transformer) ResponseHeaderNames() []string {
	return t.responseHeaders.namesCopy()
}

// ResponseTrailerTransform returns the transform for a response trailer.
func (t *Transformer) ResponseTrailerTransform(name string) (*ResponseHeaderValue, bool) {
	return t.responseTrailers.get(name)
}

// ResponseTrailerNames returns the transformed trailer names.
func (t *Transformer) ResponseTrailerNames() []string {
	return t.responseTrailers.namesCopy()
}

// ShouldCopyRequestHeaders reports whether inbound headers are copied to the
// outgoing request. When it is false, a configured header transform still
// starts from the inbound values of its own header, so Append-mode
// forwarding headers such as X-Forwarded-For keep the client's values.
func (t *Transformer) ShouldCopyRequestHeaders() bool {
	return t.copyRequestHeaders
}

// UseOriginalHost reports whether the inbound Host is sent upstream.
func (t *Transformer) UseOriginalHost() bool {
	return t.useOriginalHost
}

// Descriptor returns descriptor entries that build an equivalent
// transformer. The implicit Host transform is omitted.
func (t *Transformer) Descriptor() []map[string]string {
	var entries []map[string]string
	if !t.copyRequestHeaders {
		entries = append(entries, map[string]string{config.TransformRequestHeadersCopy: "false"})
	}
	if t.useOriginalHost {
		entries = append(entries, map[string]string{config.TransformRequestHeaderOriginalHost: "true"})
	}
	for _, rt := range t.requestTransforms {
		entries = append(entries, rt.Entry())
	}
	for _, name := range t.requestHeaders.names {
		if t.implicitHost && strings.EqualFold(name, hostHeader) {
			continue
		}
		ht, _ := t.requestHeaders.get(name)
		entries = append(entries, ht.Entry(name))
	}
	for _, name := range t.responseHeaders.names {
		rt, _ := t.responseHeaders.get(name)
		entries = append(entries, rt.entry(config.TransformResponseHeader, name))
	}
	for _, name := range t.responseTrailers.names {
		rt, _ := t.responseTrailers.get(name)
		entries = append(entries, rt.entry(config.TransformResponseTrailer, name))
	}
	return entries
}

const hostHeader = "Host"

func formatBool(b bool) string {
	return strconv.FormatBool(b)
}

func canonical(name string) string {
	return http.CanonicalHeaderKey(name)
}
