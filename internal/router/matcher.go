package router

import (
	"net"
	"net/http"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vyrodovalexey/avaproxy/internal/config"
)

// regexCacheSize bounds the number of compiled header regexes kept across
// route table reloads.
const regexCacheSize = 1000

var regexCache, _ = lru.NewWithEvict[string, *regexp.Regexp](regexCacheSize,
	func(string, *regexp.Regexp) { getRegexCacheMetrics().cacheEvictions.Inc() })

// compileRegex returns the compiled form of pattern, reusing an earlier
// compilation when one is cached.
func compileRegex(pattern string) (*regexp.Regexp, error) {
	metrics := getRegexCacheMetrics()

	if regex, ok := regexCache.Get(pattern); ok {
		metrics.cacheHits.Inc()
		return regex, nil
	}
	metrics.cacheMisses.Inc()

	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	// A concurrent compile of the same pattern may have won; keep its value.
	if previous, ok, _ := regexCache.PeekOrAdd(pattern, regex); ok {
		return previous, nil
	}
	metrics.cacheSize.Set(float64(regexCache.Len()))
	return regex, nil
}

// HostMatcher matches the request host. Patterns compare case-insensitively;
// a leading "*." matches any subdomain. A pattern without a port matches
// any port.
type HostMatcher struct {
	pattern  string
	host     string
	port     string
	wildcard bool
}

// NewHostMatcher creates a host matcher for pattern.
func NewHostMatcher(pattern string) *HostMatcher {
	host, port := splitHostPort(strings.ToLower(pattern))
	m := &HostMatcher{pattern: pattern, host: host, port: port}
	if strings.HasPrefix(host, "*.") {
		m.wildcard = true
		m.host = host[1:]
	}
	return m
}

// Match checks if the request host matches.
func (m *HostMatcher) Match(requestHost string) bool {
	host, port := splitHostPort(strings.ToLower(requestHost))
	if m.port != "" && m.port != port {
		return false
	}
	if m.wildcard {
		return strings.HasSuffix(host, m.host) && len(host) > len(m.host)
	}
	return host == m.host
}

// Pattern returns the configured pattern.
func (m *HostMatcher) Pattern() string {
	return m.pattern
}

func splitHostPort(hostport string) (host, port string) {
	if h, p, err := net.SplitHostPort(hostport); err == nil {
		return h, p
	}
	return strings.TrimSuffix(strings.TrimPrefix(hostport, "["), "]"), ""
}

// MethodMatcher matches HTTP methods.
type MethodMatcher struct {
	methods map[string]bool
}

// NewMethodMatcher creates a new method matcher.
func NewMethodMatcher(methods []string) *MethodMatcher {
	m := &MethodMatcher{
		methods: make(map[string]bool, len(methods)),
	}
	for _, method := range methods {
		m.methods[strings.ToUpper(method)] = true
	}
	return m
}

// Match checks if the method matches. HEAD matches routes that accept GET.
func (m *MethodMatcher) Match(method string) bool {
	method = strings.ToUpper(method)

	if m.methods["*"] {
		return true
	}
	if method == http.MethodHead && m.methods[http.MethodGet] {
		return true
	}
	return m.methods[method]
}

// HeaderMatcher matches one request header. Any of the header's values may
// satisfy a value match.
type HeaderMatcher struct {
	config config.HeaderMatch
	regex  *regexp.Regexp
}

// NewHeaderMatcher creates a new header matcher.
func NewHeaderMatcher(cfg config.HeaderMatch) (*HeaderMatcher, error) {
	m := &HeaderMatcher{config: cfg}

	if cfg.Regex != "" {
		regex, err := compileRegex(cfg.Regex)
		if err != nil {
			return nil, err
		}
		m.regex = regex
	}

	return m, nil
}

// Match checks if the headers match.
func (m *HeaderMatcher) Match(headers http.Header) bool {
	values := headers.Values(m.config.Name)
	present := len(values) > 0

	if m.config.Present != nil && !*m.config.Present {
		return !present
	}
	if !present {
		return false
	}

	for _, value := range values {
		if m.matchValue(value) {
			return true
		}
	}
	return false
}

func (m *HeaderMatcher) matchValue(value string) bool {
	switch {
	case m.config.Exact != "":
		return value == m.config.Exact
	case m.config.Prefix != "":
		return strings.HasPrefix(value, m.config.Prefix)
	case m.regex != nil:
		return m.regex.MatchString(value)
	default:
		return true
	}
}
