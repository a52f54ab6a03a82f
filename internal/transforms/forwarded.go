package transforms

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/http/httpguts"

	"github.com/vyrodovalexey/avaproxy/internal/config"
)

// NodeFormat selects how the for and by parameters of the Forwarded header
// identify a node.
type NodeFormat int

// Node formats.
const (
	NodeFormatNone NodeFormat = iota
	NodeFormatRandom
	NodeFormatRandomAndPort
	NodeFormatUnknown
	NodeFormatUnknownAndPort
	NodeFormatIP
	NodeFormatIPAndPort
)

var nodeFormatNames = map[NodeFormat]string{
	NodeFormatNone:           config.NodeFormatNone,
	NodeFormatRandom:         config.NodeFormatRandom,
	NodeFormatRandomAndPort:  config.NodeFormatRandomAndPort,
	NodeFormatUnknown:        config.NodeFormatUnknown,
	NodeFormatUnknownAndPort: config.NodeFormatUnknownAndPort,
	NodeFormatIP:             config.NodeFormatIP,
	NodeFormatIPAndPort:      config.NodeFormatIPAndPort,
}

// String returns the descriptor token for f.
func (f NodeFormat) String() string {
	if name, ok := nodeFormatNames[f]; ok {
		return name
	}
	return config.NodeFormatNone
}

// ParseNodeFormat parses a node format token case-insensitively.
func ParseNodeFormat(s string) (NodeFormat, error) {
	s = strings.TrimSpace(s)
	for f, name := range nodeFormatNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return NodeFormatNone, invalidParam("unknown node format %q", s)
}

// NodeIDGenerator returns an obfuscated identifier made of characters
// allowed in an RFC 7239 obfnode.
type NodeIDGenerator func() string

const obfAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789._-"

// uuidRandomBytes are the positions of a version 4 UUID that carry no
// version or variant bits.
var uuidRandomBytes = [...]int{0, 1, 2, 3, 4, 5, 7, 9, 10, 11, 12, 13, 14, 15}

// obfAcceptBelow is the largest multiple of len(obfAlphabet) that fits in a
// byte. Bytes at or above it are discarded so every character is equally
// likely.
const obfAcceptBelow = 256 / len(obfAlphabet) * len(obfAlphabet)

// RandomNodeID returns eight random obfnode characters.
func RandomNodeID() string {
	b := make([]byte, 0, 8)
	for len(b) < cap(b) {
		id := uuid.New()
		for _, i := range uuidRandomBytes {
			if int(id[i]) >= obfAcceptBelow {
				continue
			}
			b = append(b, obfAlphabet[int(id[i])%len(obfAlphabet)])
			if len(b) == cap(b) {
				break
			}
		}
	}
	return string(b)
}

// RequestHeaderForwarded builds one RFC 7239 Forwarded element with the
// parameters by, for, host and proto in that order.
type RequestHeaderForwarded struct {
	Append       bool
	HostEnabled  bool
	ProtoEnabled bool
	ForFormat    NodeFormat
	ByFormat     NodeFormat

	nodeIDs NodeIDGenerator
}

// Kind implements RequestHeaderTransform.
func (f *RequestHeaderForwarded) Kind() string { return config.TransformForwarded }

// Apply implements RequestHeaderTransform.
func (f *RequestHeaderForwarded) Apply(rc *RequestContext, values []string) []string {
	element := f.element(rc.Inbound)
	if element == "" {
		rc.observeNoop(f.Kind(), "no_value")
		if f.Append {
			return values
		}
		return nil
	}
	return applyValue(values, element, f.Append)
}

func (f *RequestHeaderForwarded) element(in *http.Request) string {
	var parts []string
	if f.ByFormat != NodeFormatNone {
		parts = append(parts, "by="+f.node(f.ByFormat, localAddr(in.Context())))
	}
	if f.ForFormat != NodeFormatNone {
		parts = append(parts, "for="+f.node(f.ForFormat, in.RemoteAddr))
	}
	if f.HostEnabled && in.Host != "" {
		parts = append(parts, "host="+quoteIfNeeded(in.Host))
	}
	if f.ProtoEnabled {
		parts = append(parts, "proto="+scheme(in))
	}
	return strings.Join(parts, ";")
}

// node formats addr, a host:port or bare IP, per format.
func (f *RequestHeaderForwarded) node(format NodeFormat, addr string) string {
	ip, port := splitAddr(addr)
	portOrID := func() string {
		if port == "" {
			return "_" + f.nodeID()
		}
		return port
	}

	switch format {
	case NodeFormatRandom:
		return "_" + f.nodeID()
	case NodeFormatRandomAndPort:
		return quote("_" + f.nodeID() + ":_" + f.nodeID())
	case NodeFormatUnknown:
		return "unknown"
	case NodeFormatUnknownAndPort:
		return quote("unknown:" + portOrID())
	case NodeFormatIP:
		if ip == "" {
			return "unknown"
		}
		if strings.Contains(ip, ":") {
			return quote("[" + ip + "]")
		}
		return ip
	case NodeFormatIPAndPort:
		if ip == "" {
			return quote("unknown:" + portOrID())
		}
		if strings.Contains(ip, ":") {
			ip = "[" + ip + "]"
		}
		return quote(ip + ":" + portOrID())
	default:
		return ""
	}
}

func (f *RequestHeaderForwarded) nodeID() string {
	if f.nodeIDs == nil {
		return RandomNodeID()
	}
	return f.nodeIDs()
}

// Entry implements RequestHeaderTransform.
func (f *RequestHeaderForwarded) Entry(_ string) map[string]string {
	var dims []string
	e := map[string]string{config.ParamAppend: formatBool(f.Append)}
	if f.ByFormat != NodeFormatNone {
		dims = append(dims, config.ForwardedBy)
		e[config.ParamByFormat] = f.ByFormat.String()
	}
	if f.ForFormat != NodeFormatNone {
		dims = append(dims, config.ForwardedFor)
		e[config.ParamForFormat] = f.ForFormat.String()
	}
	if f.HostEnabled {
		dims = append(dims, config.ForwardedHost)
	}
	if f.ProtoEnabled {
		dims = append(dims, config.ForwardedProto)
	}
	e[config.TransformForwarded] = strings.Join(dims, ",")
	return e
}

func buildForwarded(bc *BuildContext, e *Entry) error {
	t := &RequestHeaderForwarded{nodeIDs: bc.NodeIDs()}

	forFormat, byFormat := NodeFormatRandom, NodeFormatRandom
	if v, ok := e.Get(config.ParamForFormat); ok {
		f, err := ParseNodeFormat(v)
		if err != nil {
			return err
		}
		forFormat = f
	}
	if v, ok := e.Get(config.ParamByFormat); ok {
		f, err := ParseNodeFormat(v)
		if err != nil {
			return err
		}
		byFormat = f
	}

	appendValue, err := e.Bool(config.ParamAppend, true)
	if err != nil {
		return err
	}
	t.Append = appendValue

	for _, dim := range splitList(e.Value()) {
		switch strings.ToLower(dim) {
		case config.ForwardedBy:
			t.ByFormat = byFormat
		case config.ForwardedFor:
			t.ForFormat = forFormat
		case config.ForwardedHost:
			t.HostEnabled = true
		case config.ForwardedProto:
			t.ProtoEnabled = true
		default:
			return invalidParam("unknown Forwarded parameter %q", dim)
		}
	}

	if t.ByFormat == NodeFormatNone && t.ForFormat == NodeFormatNone && !t.HostEnabled && !t.ProtoEnabled {
		return invalidParam("Forwarded transform emits no parameters")
	}
	return bc.AddRequestHeaderTransform("Forwarded", t)
}

// splitAddr splits host:port. An address without a port is returned as the
// IP when it parses as one.
func splitAddr(addr string) (ip, port string) {
	if addr == "" {
		return "", ""
	}
	if h, p, err := net.SplitHostPort(addr); err == nil {
		if zone := strings.IndexByte(h, '%'); zone >= 0 {
			h = h[:zone]
		}
		return h, p
	}
	if parsed := net.ParseIP(strings.Trim(addr, "[]")); parsed != nil {
		return parsed.String(), ""
	}
	return "", ""
}

func localAddr(ctx context.Context) string {
	if addr, ok := ctx.Value(http.LocalAddrContextKey).(net.Addr); ok && addr != nil {
		return addr.String()
	}
	return ""
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func quoteIfNeeded(s string) string {
	for i := 0; i < len(s); i++ {
		if !httpguts.IsTokenRune(rune(s[i])) {
			return quote(s)
		}
	}
	return s
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}
