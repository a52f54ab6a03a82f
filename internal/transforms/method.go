package transforms

import (
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/vyrodovalexey/avaproxy/internal/config"
)

// HTTPMethodChange rewrites the outgoing method when it equals From.
type HTTPMethodChange struct {
	From string
	To   string
}

// Kind implements RequestTransform.
func (m *HTTPMethodChange) Kind() string { return config.TransformHTTPMethodChange }

// Apply implements RequestTransform.
func (m *HTTPMethodChange) Apply(rc *RequestContext) {
	if strings.EqualFold(rc.Method, m.From) {
		rc.Method = m.To
	}
}

// Entry implements RequestTransform.
func (m *HTTPMethodChange) Entry() map[string]string {
	return map[string]string{
		config.TransformHTTPMethodChange: m.From,
		config.ParamSet:                  m.To,
	}
}

func buildHTTPMethodChange(bc *BuildContext, e *Entry) error {
	from := strings.ToUpper(strings.TrimSpace(e.Value()))
	to, ok := e.Get(config.ParamSet)
	if !ok {
		return invalidParam("%s is required", config.ParamSet)
	}
	to = strings.ToUpper(strings.TrimSpace(to))

	for _, m := range []string{from, to} {
		if !validMethod(m) {
			return invalidParam("invalid HTTP method %q", m)
		}
	}
	bc.AddRequestTransform(&HTTPMethodChange{From: from, To: to})
	return nil
}

func validMethod(m string) bool {
	if m == "" {
		return false
	}
	for i := 0; i < len(m); i++ {
		if !httpguts.IsTokenRune(rune(m[i])) {
			return false
		}
	}
	return true
}
