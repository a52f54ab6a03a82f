package tls

import (
	"crypto/tls"
	"fmt"
)

// Client-auth modes accepted by ClientAuthType.
const (
	ClientAuthNone    = "none"
	ClientAuthRequest = "request"
	ClientAuthRequire = "require"
	ClientAuthVerify  = "verify"
)

// ClientAuthType maps a client-auth mode to the crypto/tls policy. A client
// CA turns "request" into verify-if-given; "verify" requires one.
func ClientAuthType(mode string, hasCA bool) (tls.ClientAuthType, error) {
	switch mode {
	case "", ClientAuthNone:
		return tls.NoClientCert, nil
	case ClientAuthRequest:
		if hasCA {
			return tls.VerifyClientCertIfGiven, nil
		}
		return tls.RequestClientCert, nil
	case ClientAuthRequire:
		return tls.RequireAnyClientCert, nil
	case ClientAuthVerify:
		if !hasCA {
			return tls.NoClientCert, fmt.Errorf("%w: %q requires a client CA", ErrClientAuthInvalid, mode)
		}
		return tls.RequireAndVerifyClientCert, nil
	default:
		return tls.NoClientCert, fmt.Errorf("%w: %q", ErrClientAuthInvalid, mode)
	}
}

// ServerConfig builds a listener TLS configuration backed by p. Each
// handshake reads the reloader's current certificate and client CA.
func ServerConfig(p *Reloader, clientAuth string) (*tls.Config, error) {
	authType, err := ClientAuthType(clientAuth, p.ClientCA() != nil)
	if err != nil {
		return nil, err
	}

	base := &tls.Config{
		MinVersion:     tls.VersionTLS12,
		ClientAuth:     authType,
		GetCertificate: p.GetCertificate,
	}
	base.GetConfigForClient = func(*tls.ClientHelloInfo) (*tls.Config, error) {
		cfg := base.Clone()
		cfg.GetConfigForClient = nil
		cfg.ClientCAs = p.ClientCA()
		return cfg, nil
	}

	return base, nil
}
