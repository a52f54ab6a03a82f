package transforms

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, entries ...map[string]string) *Transformer {
	t.Helper()
	tr, err := NewBuilder(WithNodeIDGenerator(fixedNodeID)).Build(context.Background(), entries)
	require.NoError(t, err)
	return tr
}

// applyRequest runs tr against in the way the proxy does and returns the
// outgoing request.
func applyRequest(t *testing.T, tr *Transformer, in *http.Request, routeValues map[string]string) *http.Request {
	t.Helper()
	out := in.Clone(in.Context())
	rc := NewRequestContext(in, out, in.URL.Path, "/edge", routeValues)
	tr.ApplyRequest(context.Background(), rc)
	return out
}

func withLocalAddr(in *http.Request, addr net.Addr) *http.Request {
	return in.WithContext(context.WithValue(in.Context(), http.LocalAddrContextKey, addr))
}

// =============================================================================
// Path Tests
// =============================================================================

func TestApplyRequest_Path(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry map[string]string
		path  string
		want  string
	}{
		{name: "set", entry: map[string]string{"PathSet": "/x"}, path: "/anything/else", want: "/x"},
		{name: "set from root", entry: map[string]string{"PathSet": "/x"}, path: "/", want: "/x"},
		{name: "prefix", entry: map[string]string{"PathPrefix": "/v1"}, path: "/users", want: "/v1/users"},
		{name: "prefix collapses separator", entry: map[string]string{"PathPrefix": "/v1/"}, path: "/users",
			want: "/v1/users"},
		{name: "remove prefix", entry: map[string]string{"PathRemovePrefix": "/api"}, path: "/api/users",
			want: "/users"},
		{name: "remove prefix exact", entry: map[string]string{"PathRemovePrefix": "/api"}, path: "/api",
			want: ""},
		{name: "remove prefix no match", entry: map[string]string{"PathRemovePrefix": "/api"}, path: "/other",
			want: "/other"},
		{name: "remove prefix segment boundary", entry: map[string]string{"PathRemovePrefix": "/api"},
			path: "/apiary", want: "/apiary"},
		{name: "remove prefix case-sensitive", entry: map[string]string{"PathRemovePrefix": "/api"},
			path: "/API/users", want: "/API/users"},
		{name: "remove prefix trailing slash", entry: map[string]string{"PathRemovePrefix": "/api/"},
			path: "/api/users", want: "/users"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := build(t, tt.entry)
			out := applyRequest(t, tr, httptest.NewRequest(http.MethodGet, tt.path, nil), nil)
			assert.Equal(t, tt.want, out.URL.Path)
			assert.Empty(t, out.URL.RawPath)
		})
	}
}

func TestApplyRequest_EscapedPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		entries     []map[string]string
		escaped     string
		wantPath    string
		wantRawPath string
	}{
		{name: "kept without path transform", escaped: "/files/a%2Fb",
			wantPath: "/files/a/b", wantRawPath: "/files/a%2Fb"},
		{name: "kept with header transform", entries: []map[string]string{{"RequestHeader": "X-A", "Set": "1"}},
			escaped: "/files/a%2Fb", wantPath: "/files/a/b", wantRawPath: "/files/a%2Fb"},
		{name: "dropped when path changes", entries: []map[string]string{{"PathPrefix": "/v1"}},
			escaped: "/files/a%2Fb", wantPath: "/v1/files/a/b"},
		{name: "ignored when it does not decode to the path", escaped: "/other%2Fpath",
			wantPath: "/files/a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := build(t, tt.entries...)
			in := httptest.NewRequest(http.MethodGet, "/files/a%2Fb", nil)
			out := in.Clone(in.Context())
			rc := NewRequestContext(in, out, in.URL.Path, "", nil)
			rc.SetEscapedPath(tt.escaped)
			tr.ApplyRequest(context.Background(), rc)

			assert.Equal(t, tt.wantPath, out.URL.Path)
			assert.Equal(t, tt.wantRawPath, out.URL.RawPath)
		})
	}
}

func TestApplyRequest_PathRouteValues(t *testing.T) {
	t.Parallel()

	tr := build(t, map[string]string{"PathRouteValues": "/items/{id}/{**rest}"})

	out := applyRequest(t, tr, httptest.NewRequest(http.MethodGet, "/i/42/a/b", nil),
		map[string]string{"id": "42", "rest": "a/b"})
	assert.Equal(t, "/items/42/a/b", out.URL.Path)

	out = applyRequest(t, tr, httptest.NewRequest(http.MethodGet, "/i", nil), map[string]string{})
	assert.Equal(t, "/items/", out.URL.Path)
}

func TestApplyRequest_PathPipelineOrder(t *testing.T) {
	t.Parallel()

	tr := build(t,
		map[string]string{"PathRemovePrefix": "/api"},
		map[string]string{"PathPrefix": "/v2"},
	)
	out := applyRequest(t, tr, httptest.NewRequest(http.MethodGet, "/api/users", nil), nil)
	assert.Equal(t, "/v2/users", out.URL.Path)
}

// =============================================================================
// Method and Query Tests
// =============================================================================

func TestApplyRequest_HTTPMethodChange(t *testing.T) {
	t.Parallel()

	tr := build(t, map[string]string{"HttpMethodChange": "PUT", "Set": "POST"})

	out := applyRequest(t, tr, httptest.NewRequest(http.MethodPut, "/", nil), nil)
	assert.Equal(t, http.MethodPost, out.Method)

	out = applyRequest(t, tr, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, http.MethodGet, out.Method)
}

func TestApplyRequest_Query(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		entry       map[string]string
		target      string
		routeValues map[string]string
		want        string
	}{
		{name: "set on empty", entry: map[string]string{"QueryValueParameter": "key", "Set": "value"},
			target: "/", want: "key=value"},
		{name: "set replaces", entry: map[string]string{"QueryValueParameter": "key", "Set": "value"},
			target: "/?Key=a&key=b&z=1", want: "key=value&z=1"},
		{name: "append keeps", entry: map[string]string{"QueryValueParameter": "key", "Append": "value"},
			target: "/?key=a", want: "key=a&key=value"},
		{name: "append to differently cased key", entry: map[string]string{"QueryValueParameter": "key", "Append": "v"},
			target: "/?KEY=a", want: "KEY=a&KEY=v"},
		{name: "encodes value", entry: map[string]string{"QueryValueParameter": "q", "Set": "a b&c"},
			target: "/", want: "q=a+b%26c"},
		{name: "route value", entry: map[string]string{"QueryRouteParameter": "user", "Set": "id"},
			target: "/?x=1", routeValues: map[string]string{"id": "42"}, want: "user=42&x=1"},
		{name: "missing route value leaves query untouched",
			entry:  map[string]string{"QueryRouteParameter": "user", "Set": "id"},
			target: "/?b=2&a=1", want: "b=2&a=1"},
		{name: "remove", entry: map[string]string{"QueryRemoveParameter": "drop"},
			target: "/?drop=1&DROP=2&keep=3", want: "keep=3"},
		{name: "remove absent", entry: map[string]string{"QueryRemoveParameter": "drop"},
			target: "/?b=2&a=1", want: "b=2&a=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr := build(t, tt.entry)
			out := applyRequest(t, tr, httptest.NewRequest(http.MethodGet, tt.target, nil), tt.routeValues)
			assert.Equal(t, tt.want, out.URL.RawQuery)
		})
	}
}

// =============================================================================
// Request Header Tests
// =============================================================================

func TestApplyRequest_HeaderValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry map[string]string
		want  []string
	}{
		{name: "append keeps prior", entry: map[string]string{"RequestHeader": "x-a", "Append": "2"},
			want: []string{"1", "2"}},
		{name: "set replaces prior", entry: map[string]string{"RequestHeader": "x-a", "Set": "2"},
			want: []string{"2"}},
		{name: "empty set removes", entry: map[string]string{"RequestHeader": "x-a", "Set": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := httptest.NewRequest(http.MethodGet, "/", nil)
			in.Header.Set("X-A", "1")
			in.Header.Set("X-Other", "o")

			out := applyRequest(t, build(t, tt.entry), in, nil)
			assert.Equal(t, tt.want, out.Header.Values("X-A"))
			assert.Equal(t, "o", out.Header.Get("X-Other"))
			assert.Equal(t, []string{"1"}, in.Header.Values("X-A"), "inbound request must not change")
		})
	}
}

func TestApplyRequest_HeaderAddedWhenAbsent(t *testing.T) {
	t.Parallel()

	tr := build(t, map[string]string{"RequestHeader": "X-New", "Append": "v"})
	out := applyRequest(t, tr, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Equal(t, []string{"v"}, out.Header.Values("X-New"))
}

func TestApplyRequest_HopByHopHeaders(t *testing.T) {
	t.Parallel()

	in := httptest.NewRequest(http.MethodGet, "/", nil)
	in.Header.Set("Connection", "keep-alive, X-Secret")
	in.Header.Set("Keep-Alive", "timeout=5")
	in.Header.Set("X-Secret", "s")
	in.Header.Set("Proxy-Authorization", "Basic abc")
	in.Header.Set("X-Kept", "k")

	out := applyRequest(t, build(t), in, nil)
	assert.Empty(t, out.Header.Get("Connection"))
	assert.Empty(t, out.Header.Get("Keep-Alive"))
	assert.Empty(t, out.Header.Get("X-Secret"))
	assert.Empty(t, out.Header.Get("Proxy-Authorization"))
	assert.Equal(t, "k", out.Header.Get("X-Kept"))
}

func TestApplyRequest_RequestHeadersCopyDisabled(t *testing.T) {
	t.Parallel()

	in := httptest.NewRequest(http.MethodGet, "/", nil)
	in.Header.Set("X-A", "1")
	in.Header.Set("X-B", "2")
	in.Header.Set("User-Agent", "test")

	tr := build(t,
		map[string]string{"RequestHeadersCopy": "false"},
		map[string]string{"RequestHeader": "X-C", "Set": "3"},
	)
	out := applyRequest(t, tr, in, nil)
	assert.Equal(t, http.Header{"X-C": {"3"}}, out.Header)

	// A configured transform still sees the inbound values of its header.
	tr = build(t,
		map[string]string{"RequestHeadersCopy": "false"},
		map[string]string{"RequestHeader": "X-A", "Append": "9"},
	)
	out = applyRequest(t, tr, in, nil)
	assert.Equal(t, http.Header{"X-A": {"1", "9"}}, out.Header)

	// Forwarding headers in Append mode keep client-supplied values.
	in.Header.Set("X-Forwarded-For", "6.6.6.6")
	tr = build(t,
		map[string]string{"RequestHeadersCopy": "false"},
		map[string]string{"X-Forwarded": "For"},
	)
	out = applyRequest(t, tr, in, nil)
	assert.Equal(t, []string{"6.6.6.6", "192.0.2.1"}, out.Header.Values("X-Forwarded-For"))

	tr = build(t,
		map[string]string{"RequestHeadersCopy": "false"},
		map[string]string{"X-Forwarded": "For", "Append": "false"},
	)
	out = applyRequest(t, tr, in, nil)
	assert.Equal(t, []string{"192.0.2.1"}, out.Header.Values("X-Forwarded-For"))
}

func TestApplyRequest_Host(t *testing.T) {
	t.Parallel()

	in := httptest.NewRequest(http.MethodGet, "http://client.example.com/", nil)

	out := applyRequest(t, build(t), in, nil)
	assert.Empty(t, out.Host, "empty Host selects the destination host")

	out = applyRequest(t, build(t, map[string]string{"RequestHeaderOriginalHost": "true"}), in, nil)
	assert.Equal(t, "client.example.com", out.Host)

	out = applyRequest(t, build(t, map[string]string{"RequestHeader": "Host", "Set": "upstream.internal"}), in, nil)
	assert.Equal(t, "upstream.internal", out.Host)
	assert.Empty(t, out.Header.Get("Host"))

	out = applyRequest(t, build(t,
		map[string]string{"RequestHeaderOriginalHost": "true"},
		map[string]string{"RequestHeadersCopy": "false"},
	), in, nil)
	assert.Equal(t, "client.example.com", out.Host)
}

// =============================================================================
// Forwarding Header Tests
// =============================================================================

func TestApplyRequest_XForwarded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		dims   string
		header string
		want   string
	}{
		{name: "for", dims: "For", header: "X-Forwarded-For", want: "192.0.2.1"},
		{name: "host", dims: "Host", header: "X-Forwarded-Host", want: "client.example.com"},
		{name: "proto", dims: "Proto", header: "X-Forwarded-Proto", want: "http"},
		{name: "path base", dims: "PathBase", header: "X-Forwarded-PathBase", want: "/edge"},
	}
	all := []string{"X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto", "X-Forwarded-PathBase"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := httptest.NewRequest(http.MethodGet, "http://client.example.com/", nil)
			in.RemoteAddr = "192.0.2.1:1234"

			out := applyRequest(t, build(t, map[string]string{"X-Forwarded": tt.dims}), in, nil)
			for _, h := range all {
				if h == tt.header {
					assert.Equal(t, []string{tt.want}, out.Header.Values(h))
				} else {
					assert.Empty(t, out.Header.Values(h), h)
				}
			}
		})
	}
}

func TestApplyRequest_XForwardedAppendAndSet(t *testing.T) {
	t.Parallel()

	in := httptest.NewRequest(http.MethodGet, "/", nil)
	in.RemoteAddr = "[2001:db8::1]:4711"
	in.Header.Set("X-Forwarded-For", "10.0.0.1")

	out := applyRequest(t, build(t, map[string]string{"X-Forwarded": "For"}), in, nil)
	assert.Equal(t, []string{"10.0.0.1", "2001:db8::1"}, out.Header.Values("X-Forwarded-For"))

	out = applyRequest(t, build(t, map[string]string{"X-Forwarded": "For", "Append": "false"}), in, nil)
	assert.Equal(t, []string{"2001:db8::1"}, out.Header.Values("X-Forwarded-For"))

	in.RemoteAddr = ""
	out = applyRequest(t, build(t, map[string]string{"X-Forwarded": "For"}), in, nil)
	assert.Equal(t, []string{"10.0.0.1"}, out.Header.Values("X-Forwarded-For"))

	out = applyRequest(t, build(t, map[string]string{"X-Forwarded": "For", "Append": "false"}), in, nil)
	assert.Empty(t, out.Header.Values("X-Forwarded-For"))
}

func TestApplyRequest_XForwardedPrefixAndTLS(t *testing.T) {
	t.Parallel()

	in := httptest.NewRequest(http.MethodGet, "https://client.example.com/", nil)
	require.NotNil(t, in.TLS)

	out := applyRequest(t, build(t, map[string]string{"X-Forwarded": "Proto", "Prefix": "X-Original-"}), in, nil)
	assert.Equal(t, "https", out.Header.Get("X-Original-Proto"))
	assert.Empty(t, out.Header.Get("X-Forwarded-Proto"))
}

func TestApplyRequest_Forwarded(t *testing.T) {
	t.Parallel()

	in := httptest.NewRequest(http.MethodGet, "http://client.example.com/", nil)
	in.RemoteAddr = "192.0.2.1:1234"
	in = withLocalAddr(in, &net.TCPAddr{IP: net.ParseIP("198.51.100.1"), Port: 8080})

	tr := build(t, map[string]string{
		"Forwarded": "proto,host,for,by",
		"ForFormat": "Ip",
		"ByFormat":  "Ip",
	})
	out := applyRequest(t, tr, in, nil)
	assert.Equal(t, []string{"by=198.51.100.1;for=192.0.2.1;host=client.example.com;proto=http"},
		out.Header.Values("Forwarded"))
}

func TestApplyRequest_ForwardedFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		format string
		remote string
		want   string
	}{
		{name: "random", format: "Random", remote: "192.0.2.1:1234", want: "for=_n0de"},
		{name: "random and port", format: "RandomAndPort", remote: "192.0.2.1:1234", want: `for="_n0de:_n0de"`},
		{name: "unknown", format: "Unknown", remote: "192.0.2.1:1234", want: "for=unknown"},
		{name: "unknown and port", format: "UnknownAndPort", remote: "192.0.2.1:1234", want: `for="unknown:1234"`},
		{name: "ip", format: "Ip", remote: "192.0.2.1:1234", want: "for=192.0.2.1"},
		{name: "ip v6", format: "Ip", remote: "[2001:db8::1]:4711", want: `for="[2001:db8::1]"`},
		{name: "ip missing", format: "Ip", remote: "", want: "for=unknown"},
		{name: "ip and port", format: "IpAndPort", remote: "192.0.2.1:1234", want: `for="192.0.2.1:1234"`},
		{name: "ip and port v6", format: "IpAndPort", remote: "[2001:db8::1]:4711",
			want: `for="[2001:db8::1]:4711"`},
		{name: "ip and port without port", format: "IpAndPort", remote: "192.0.2.1",
			want: `for="192.0.2.1:_n0de"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := httptest.NewRequest(http.MethodGet, "/", nil)
			in.RemoteAddr = tt.remote

			tr := build(t, map[string]string{"Forwarded": "for", "ForFormat": tt.format, "Append": "false"})
			out := applyRequest(t, tr, in, nil)
			assert.Equal(t, []string{tt.want}, out.Header.Values("Forwarded"))
		})
	}
}

func TestApplyRequest_ForwardedAppendAndQuotedHost(t *testing.T) {
	t.Parallel()

	in := httptest.NewRequest(http.MethodGet, "http://client.example.com:8443/", nil)
	in.Header.Set("Forwarded", "for=203.0.113.9")

	out := applyRequest(t, build(t, map[string]string{"Forwarded": "host"}), in, nil)
	assert.Equal(t, []string{"for=203.0.113.9", `host="client.example.com:8443"`}, out.Header.Values("Forwarded"))

	out = applyRequest(t, build(t, map[string]string{"Forwarded": "host", "Append": "false"}), in, nil)
	assert.Equal(t, []string{`host="client.example.com:8443"`}, out.Header.Values("Forwarded"))
}

func TestApplyRequest_ClientCert(t *testing.T) {
	t.Parallel()

	tr := build(t, map[string]string{"RequestHeaderClientCert": "X-Client-Cert"})

	in := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	in.TLS = &tls.ConnectionState{PeerCertificates: []*x509.Certificate{{Raw: []byte("cert")}}}
	out := applyRequest(t, tr, in, nil)
	assert.Equal(t, []string{"Y2VydA=="}, out.Header.Values("X-Client-Cert"))

	spoofed := httptest.NewRequest(http.MethodGet, "/", nil)
	spoofed.Header.Set("X-Client-Cert", "forged")
	out = applyRequest(t, tr, spoofed, nil)
	assert.Empty(t, out.Header.Values("X-Client-Cert"))
}

// =============================================================================
// Response Tests
// =============================================================================

func newResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"X-A": {"1"}},
		Body:       io.NopCloser(strings.NewReader("body")),
	}
}

func TestApplyResponse_Headers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		entry  map[string]string
		status int
		want   []string
	}{
		{name: "set on success", entry: map[string]string{"ResponseHeader": "X-A", "Set": "2"},
			status: 200, want: []string{"2"}},
		{name: "append on success", entry: map[string]string{"ResponseHeader": "x-a", "Append": "2"},
			status: 204, want: []string{"1", "2"}},
		{name: "skipped on failure", entry: map[string]string{"ResponseHeader": "X-A", "Set": "2"},
			status: 500, want: []string{"1"}},
		{name: "always on failure", entry: map[string]string{"ResponseHeader": "X-A", "Set": "2", "When": "Always"},
			status: 404, want: []string{"2"}},
		{name: "empty set removes", entry: map[string]string{"ResponseHeader": "X-A", "Set": ""},
			status: 200},
		{name: "redirect is success", entry: map[string]string{"ResponseHeader": "X-A", "Set": "2"},
			status: 302, want: []string{"2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp := newResponse(tt.status)
			in := httptest.NewRequest(http.MethodGet, "/", nil)
			build(t, tt.entry).ApplyResponse(context.Background(), NewResponseContext(in, resp))
			assert.Equal(t, tt.want, resp.Header.Values("X-A"))
		})
	}
}

func TestApplyResponse_Trailers(t *testing.T) {
	t.Parallel()

	tr := build(t,
		map[string]string{"ResponseTrailer": "X-Checksum", "Set": "abc"},
		map[string]string{"ResponseTrailer": "X-Status", "Append": "done", "When": "Always"},
		map[string]string{"ResponseTrailer": "X-Drop", "Set": ""},
	)

	resp := newResponse(http.StatusOK)
	resp.Trailer = http.Header{"X-Status": nil, "X-Drop": nil}
	rc := NewResponseContext(httptest.NewRequest(http.MethodGet, "/", nil), resp)

	tr.ApplyResponse(context.Background(), rc)
	assert.Contains(t, resp.Trailer, "X-Checksum")

	// The transport fills in upstream trailers while the body is read.
	resp.Trailer.Set("X-Status", "upstream")
	resp.Trailer.Set("X-Drop", "secret")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "body", string(body))
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, []string{"abc"}, resp.Trailer.Values("X-Checksum"))
	assert.Equal(t, []string{"upstream", "done"}, resp.Trailer.Values("X-Status"))
	assert.Contains(t, resp.Trailer, "X-Drop")
	assert.Empty(t, resp.Trailer.Values("X-Drop"))
}

func TestApplyResponse_TrailersSkippedOnFailure(t *testing.T) {
	t.Parallel()

	tr := build(t, map[string]string{"ResponseTrailer": "X-Checksum", "Set": "abc"})

	resp := newResponse(http.StatusBadGateway)
	tr.ApplyResponse(context.Background(), NewResponseContext(httptest.NewRequest(http.MethodGet, "/", nil), resp))
	assert.Nil(t, resp.Trailer)

	_, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Nil(t, resp.Trailer)
}

// =============================================================================
// Descriptor Round Trip Tests
// =============================================================================

func TestDescriptor_RoundTrip(t *testing.T) {
	t.Parallel()

	entries := []map[string]string{
		{"PathRemovePrefix": "/api"},
		{"PathPrefix": "/v2"},
		{"HttpMethodChange": "PUT", "Set": "POST"},
		{"QueryValueParameter": "a", "Append": "1"},
		{"QueryRouteParameter": "user", "Set": "id"},
		{"QueryRemoveParameter": "drop"},
		{"RequestHeadersCopy": "false"},
		{"RequestHeaderOriginalHost": "true"},
		{"RequestHeader": "X-A", "Append": "2"},
		{"RequestHeaderClientCert": "X-Cert"},
		{"X-Forwarded": "For,Proto", "Prefix": "X-Fwd-", "Append": "false"},
		{"X-Forwarded": "Host"},
		{"Forwarded": "for,by,proto", "ForFormat": "IpAndPort", "ByFormat": "Unknown"},
		{"ResponseHeader": "X-R", "Set": "r", "When": "Always"},
		{"ResponseTrailer": "X-T", "Append": "t"},
	}

	original := build(t, entries...)
	rebuilt := build(t, original.Descriptor()...)
	assert.ElementsMatch(t, original.Descriptor(), rebuilt.Descriptor())

	newIn := func() *http.Request {
		in := httptest.NewRequest(http.MethodPut, "http://client.example.com/api/users?drop=1&a=0", nil)
		in.RemoteAddr = "192.0.2.1:1234"
		in.Header.Set("X-A", "1")
		in.Header.Set("X-Ignored", "x")
		in.Header.Set("X-Fwd-For", "10.0.0.1")
		return in
	}
	values := map[string]string{"id": "7"}

	a := applyRequest(t, original, newIn(), values)
	b := applyRequest(t, rebuilt, newIn(), values)
	assert.Equal(t, a.Method, b.Method)
	assert.Equal(t, a.Host, b.Host)
	assert.Equal(t, a.URL.String(), b.URL.String())
	assert.Equal(t, a.Header, b.Header)

	assert.Equal(t, http.MethodPost, a.Method)
	assert.Equal(t, "/v2/users", a.URL.Path)
	assert.Equal(t, "a=0&a=1&user=7", a.URL.RawQuery)
	assert.Equal(t, "client.example.com", a.Host)
	assert.Equal(t, []string{"192.0.2.1"}, a.Header.Values("X-Fwd-For"))
	assert.Empty(t, a.Header.Get("X-Ignored"))

	respA, respB := newResponse(500), newResponse(500)
	original.ApplyResponse(context.Background(), NewResponseContext(newIn(), respA))
	rebuilt.ApplyResponse(context.Background(), NewResponseContext(newIn(), respB))
	assert.Equal(t, respA.Header, respB.Header)
	assert.Equal(t, "r", respA.Header.Get("X-R"))
}

func TestTransformer_ConcurrentUse(t *testing.T) {
	t.Parallel()

	tr := build(t,
		map[string]string{"PathPrefix": "/v1"},
		map[string]string{"RequestHeader": "X-A", "Append": "2"},
		map[string]string{"QueryValueParameter": "k", "Set": "v"},
	)

	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			in := httptest.NewRequest(http.MethodGet, "/users", nil)
			in.Header.Set("X-A", "1")
			out := applyRequest(t, tr, in, nil)
			assert.Equal(t, "/v1/users", out.URL.Path)
			assert.Equal(t, []string{"1", "2"}, out.Header.Values("X-A"))
			assert.Equal(t, "k=v", out.URL.RawQuery)
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
}
