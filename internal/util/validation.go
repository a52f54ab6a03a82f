package util

import (
	"fmt"
	"net"
	"net/url"
	"regexp"

	"golang.org/x/net/http/httpguts"
)

// ValidateURL validates an absolute http or https URL.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme == "" {
		return fmt.Errorf("URL must have a scheme (http or https)")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("URL must not carry a query or fragment")
	}

	return nil
}

// ValidateHeaderName validates an HTTP header field name (RFC 7230 token).
func ValidateHeaderName(name string) error {
	if name == "" {
		return fmt.Errorf("header name cannot be empty")
	}

	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("invalid header name: %q", name)
	}

	return nil
}

// ValidateHTTPMethod validates an HTTP method. Methods are tokens, so
// extension methods are accepted alongside the registered ones.
func ValidateHTTPMethod(method string) error {
	if method == "*" {
		return nil
	}
	if method == "" || !httpguts.ValidHeaderFieldName(method) {
		return fmt.Errorf("invalid HTTP method: %q", method)
	}
	return nil
}

// ValidateRegex validates a regex pattern.
func ValidateRegex(pattern string) error {
	if pattern == "" {
		return nil
	}

	_, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid regex pattern: %w", err)
	}

	return nil
}

// ValidateListenAddress validates a host:port listen address. The host may be
// empty to listen on all interfaces.
func ValidateListenAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}

	if port == "" {
		return fmt.Errorf("listen address %q has no port", addr)
	}

	if _, err := net.LookupPort("tcp", port); err != nil {
		return fmt.Errorf("invalid port in listen address %q: %w", addr, err)
	}

	if host != "" && net.ParseIP(host) == nil && !httpguts.ValidHostHeader(host) {
		return fmt.Errorf("invalid host in listen address %q", addr)
	}

	return nil
}
