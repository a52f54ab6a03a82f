package tls

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFiles struct {
	cert string
	key  string
}

// writeKeyPair writes a self-signed CA certificate for localhost with the
// given common name.
func writeKeyPair(t *testing.T, files testFiles, commonName string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(files.cert, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(files.key, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
}

func newFiles(t *testing.T, commonName string) testFiles {
	t.Helper()

	dir := t.TempDir()
	files := testFiles{cert: filepath.Join(dir, "tls.crt"), key: filepath.Join(dir, "tls.key")}
	writeKeyPair(t, files, commonName)
	return files
}

func commonName(t *testing.T, p *Reloader) string {
	t.Helper()

	cert, err := p.GetCertificate(nil)
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	return cert.Leaf.Subject.CommonName
}

// =============================================================================
// Reloader Tests
// =============================================================================

func TestNewReloader(t *testing.T) {
	t.Parallel()

	files := newFiles(t, "first")

	p, err := NewReloader(Files{Cert: files.cert, Key: files.key})
	require.NoError(t, err)
	assert.Equal(t, "first", commonName(t, p))
	assert.Nil(t, p.ClientCA())

	withCA, err := NewReloader(Files{Cert: files.cert, Key: files.key, ClientCA: files.cert})
	require.NoError(t, err)
	assert.NotNil(t, withCA.ClientCA())
}

func TestNewReloader_Errors(t *testing.T) {
	t.Parallel()

	files := newFiles(t, "first")
	badCA := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(badCA, []byte("not pem"), 0o600))

	tests := []struct {
		name   string
		cert   string
		key    string
		ca     string
		errMsg string
	}{
		{name: "missing certificate", cert: "/missing/tls.crt", key: files.key, errMsg: "failed to load certificate"},
		{name: "mismatched key", cert: files.cert, key: files.cert, errMsg: "failed to load certificate"},
		{name: "missing CA", cert: files.cert, key: files.key, ca: "/missing/ca.pem", errMsg: "failed to read CA file"},
		{name: "CA without certificates", cert: files.cert, key: files.key, ca: badCA,
			errMsg: "no certificates found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewReloader(Files{Cert: tt.cert, Key: tt.key, ClientCA: tt.ca})
			require.Error(t, err)

			var certErr *CertificateError
			require.True(t, errors.As(err, &certErr))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestReloader_ReloadOnChange(t *testing.T) {
	t.Parallel()

	files := newFiles(t, "first")
	p, err := NewReloader(Files{Cert: files.cert, Key: files.key}, WithReloadDebounce(10*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { _ = p.Close() })

	writeKeyPair(t, files, "second")

	assert.Eventually(t, func() bool {
		cert, err := p.GetCertificate(nil)
		return err == nil && cert.Leaf.Subject.CommonName == "second"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestReloader_FailedReloadKeepsCertificate(t *testing.T) {
	t.Parallel()

	files := newFiles(t, "first")
	p, err := NewReloader(Files{Cert: files.cert, Key: files.key})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(files.cert, []byte("truncated"), 0o600))
	assert.Error(t, p.Reload())

	assert.Equal(t, "first", commonName(t, p))
}

func TestReloader_Close(t *testing.T) {
	t.Parallel()

	files := newFiles(t, "first")
	p, err := NewReloader(Files{Cert: files.cert, Key: files.key})
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.GetCertificate(nil)
	assert.ErrorIs(t, err, ErrReloaderClosed)
	assert.ErrorIs(t, p.Start(context.Background()), ErrReloaderClosed)
}

func TestReloader_ReloadSwapsCertificateAndCA(t *testing.T) {
	t.Parallel()

	files := newFiles(t, "first")
	p, err := NewReloader(Files{Cert: files.cert, Key: files.key, ClientCA: files.cert})
	require.NoError(t, err)
	before := p.ClientCA()

	writeKeyPair(t, files, "second")
	require.NoError(t, p.Reload())

	assert.Equal(t, "second", commonName(t, p))
	assert.NotSame(t, before, p.ClientCA())
}

func TestReloader_Touches(t *testing.T) {
	t.Parallel()

	r := &Reloader{files: Files{Cert: "/certs/tls.crt", Key: "/certs/tls.key"}}

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{name: "certificate written", event: fsnotify.Event{Name: "/certs/tls.crt", Op: fsnotify.Write}, want: true},
		{name: "key renamed", event: fsnotify.Event{Name: "/certs/tls.key", Op: fsnotify.Rename}, want: true},
		{name: "chmod", event: fsnotify.Event{Name: "/certs/tls.crt", Op: fsnotify.Chmod}, want: false},
		{name: "unrelated file", event: fsnotify.Event{Name: "/certs/ca.crt", Op: fsnotify.Write}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, r.touches(tt.event))
		})
	}
}

// =============================================================================
// Server Config Tests
// =============================================================================

func TestClientAuthType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode     string
		hasCA    bool
		expected tls.ClientAuthType
		wantErr  bool
	}{
		{mode: "", expected: tls.NoClientCert},
		{mode: ClientAuthNone, expected: tls.NoClientCert},
		{mode: ClientAuthRequest, expected: tls.RequestClientCert},
		{mode: ClientAuthRequest, hasCA: true, expected: tls.VerifyClientCertIfGiven},
		{mode: ClientAuthRequire, expected: tls.RequireAnyClientCert},
		{mode: ClientAuthVerify, hasCA: true, expected: tls.RequireAndVerifyClientCert},
		{mode: ClientAuthVerify, wantErr: true},
		{mode: "sometimes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			t.Parallel()

			got, err := ClientAuthType(tt.mode, tt.hasCA)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrClientAuthInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestServerConfig_Handshake(t *testing.T) {
	t.Parallel()

	files := newFiles(t, "listener")
	p, err := NewReloader(Files{Cert: files.cert, Key: files.key, ClientCA: files.cert})
	require.NoError(t, err)

	serverConfig, err := ServerConfig(p, ClientAuthRequest)
	require.NoError(t, err)
	assert.Equal(t, tls.VerifyClientCertIfGiven, serverConfig.ClientAuth)
	assert.Equal(t, uint16(tls.VersionTLS12), serverConfig.MinVersion)

	perClient, err := serverConfig.GetConfigForClient(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	assert.Same(t, p.ClientCA(), perClient.ClientCAs)

	ln, err := tls.Listen("tcp", "127.0.0.1:0", serverConfig)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.(*tls.Conn).Handshake()
	}()

	roots := x509.NewCertPool()
	pemData, err := os.ReadFile(files.cert)
	require.NoError(t, err)
	require.True(t, roots.AppendCertsFromPEM(pemData))

	conn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{
		RootCAs:    roots,
		ServerName: "localhost",
		MinVersion: tls.VersionTLS12,
	})
	require.NoError(t, err)
	defer conn.Close()

	state := conn.ConnectionState()
	require.NotEmpty(t, state.PeerCertificates)
	assert.Equal(t, "listener", state.PeerCertificates[0].Subject.CommonName)
}

func TestServerConfig_InvalidClientAuth(t *testing.T) {
	t.Parallel()

	files := newFiles(t, "listener")
	p, err := NewReloader(Files{Cert: files.cert, Key: files.key})
	require.NoError(t, err)

	_, err = ServerConfig(p, ClientAuthVerify)
	assert.ErrorIs(t, err, ErrClientAuthInvalid)
}

func TestRegisterMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))
	require.NoError(t, RegisterMetrics(reg))

	files := newFiles(t, "metrics-test")
	_, err := NewReloader(Files{Cert: files.cert, Key: files.key})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "avaproxy_tls_certificate_expiry_timestamp_seconds")
}
