package transforms

import (
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/vyrodovalexey/avaproxy/internal/config"
)

// RequestHeaderValue sets or appends a literal request header value. An
// empty Set removes the header.
type RequestHeaderValue struct {
	Value  string
	Append bool
}

// Kind implements RequestHeaderTransform.
func (h *RequestHeaderValue) Kind() string { return config.TransformRequestHeader }

// Apply implements RequestHeaderTransform.
func (h *RequestHeaderValue) Apply(_ *RequestContext, values []string) []string {
	return applyValue(values, h.Value, h.Append)
}

// Entry implements RequestHeaderTransform.
func (h *RequestHeaderValue) Entry(name string) map[string]string {
	return valueEntry(config.TransformRequestHeader, name, h.Value, h.Append)
}

// ResponseHeaderValue sets or appends a response header or trailer value.
// Unless Always is set it only applies to successful responses.
type ResponseHeaderValue struct {
	Value  string
	Append bool
	Always bool
}

// Apply returns the new values for the header.
func (h *ResponseHeaderValue) Apply(values []string) []string {
	return applyValue(values, h.Value, h.Append)
}

func (h *ResponseHeaderValue) entry(kind, name string) map[string]string {
	e := valueEntry(kind, name, h.Value, h.Append)
	if h.Always {
		e[config.ParamWhen] = config.WhenAlways
	}
	return e
}

func applyValue(values []string, value string, appendValue bool) []string {
	if appendValue {
		out := make([]string, 0, len(values)+1)
		out = append(out, values...)
		return append(out, value)
	}
	if value == "" {
		return nil
	}
	return []string{value}
}

func valueEntry(kind, name, value string, appendValue bool) map[string]string {
	param := config.ParamSet
	if appendValue {
		param = config.ParamAppend
	}
	return map[string]string{kind: name, param: value}
}

// headerNameAndValue reads the header name and exactly one of Set or Append.
func headerNameAndValue(e *Entry) (name, value string, appendValue bool, err error) {
	name = strings.TrimSpace(e.Value())
	if err := validHeaderName(name); err != nil {
		return "", "", false, err
	}
	param, value, err := e.OneOf(config.ParamSet, config.ParamAppend)
	if err != nil {
		return "", "", false, err
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return "", "", false, invalidParam("invalid value for header %s", name)
	}
	return name, value, param == config.ParamAppend, nil
}

func validHeaderName(name string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return invalidParam("invalid header name %q", name)
	}
	return nil
}

func buildRequestHeader(bc *BuildContext, e *Entry) error {
	name, value, appendValue, err := headerNameAndValue(e)
	if err != nil {
		return err
	}
	return bc.AddRequestHeaderTransform(name, &RequestHeaderValue{Value: value, Append: appendValue})
}

func buildResponseHeader(trailer bool) FactoryFunc {
	return func(bc *BuildContext, e *Entry) error {
		name, value, appendValue, err := headerNameAndValue(e)
		if err != nil {
			return err
		}

		always := false
		if when, ok := e.Get(config.ParamWhen); ok {
			switch {
			case strings.EqualFold(when, config.WhenAlways):
				always = true
			case strings.EqualFold(when, config.WhenSuccess):
			default:
				return invalidParam("%s must be %s or %s, got %q",
					config.ParamWhen, config.WhenSuccess, config.WhenAlways, when)
			}
		}

		t := &ResponseHeaderValue{Value: value, Append: appendValue, Always: always}
		if trailer {
			return bc.AddResponseTrailerTransform(name, t)
		}
		return bc.AddResponseHeaderTransform(name, t)
	}
}

func buildRequestHeadersCopy(bc *BuildContext, e *Entry) error {
	v, err := parseBool(config.TransformRequestHeadersCopy, e.Value())
	if err != nil {
		return err
	}
	bc.SetCopyRequestHeaders(v)
	return nil
}

func buildRequestHeaderOriginalHost(bc *BuildContext, e *Entry) error {
	v, err := parseBool(config.TransformRequestHeaderOriginalHost, e.Value())
	if err != nil {
		return err
	}
	bc.SetUseOriginalHost(v)
	return nil
}
