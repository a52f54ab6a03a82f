package transforms

import (
	"encoding/base64"
	"strings"

	"github.com/vyrodovalexey/avaproxy/internal/config"
)

// RequestHeaderClientCert forwards the client's leaf certificate as
// base64-encoded DER. Without a client certificate the header is removed.
type RequestHeaderClientCert struct{}

// Kind implements RequestHeaderTransform.
func (c *RequestHeaderClientCert) Kind() string { return config.TransformClientCert }

// Apply implements RequestHeaderTransform.
func (c *RequestHeaderClientCert) Apply(rc *RequestContext, _ []string) []string {
	state := rc.Inbound.TLS
	if state == nil || len(state.PeerCertificates) == 0 {
		rc.observeNoop(c.Kind(), "no_client_certificate")
		return nil
	}
	return []string{base64.StdEncoding.EncodeToString(state.PeerCertificates[0].Raw)}
}

// Entry implements RequestHeaderTransform.
func (c *RequestHeaderClientCert) Entry(name string) map[string]string {
	return map[string]string{config.TransformClientCert: name}
}

func buildClientCert(bc *BuildContext, e *Entry) error {
	name := strings.TrimSpace(e.Value())
	if err := validHeaderName(name); err != nil {
		return err
	}
	return bc.AddRequestHeaderTransform(name, &RequestHeaderClientCert{})
}
