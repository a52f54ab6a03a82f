package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/avaproxy/internal/observability"
)

// DefaultReloadDebounce is how long the reloader waits after the last file
// event before reading the files again.
const DefaultReloadDebounce = 100 * time.Millisecond

// Files names the PEM files served by a Reloader. ClientCA is optional.
type Files struct {
	Cert     string
	Key      string
	ClientCA string
}

func (f Files) paths() []string {
	paths := []string{filepath.Clean(f.Cert), filepath.Clean(f.Key)}
	if f.ClientCA != "" {
		paths = append(paths, filepath.Clean(f.ClientCA))
	}
	return paths
}

// material is one consistent generation of listener credentials.
type material struct {
	cert     *tls.Certificate
	clientCA *x509.CertPool
}

// Reloader serves the listener certificate and client CA and swaps both in
// one step when the files change.
type Reloader struct {
	files    Files
	logger   observability.Logger
	metrics  *certMetrics
	debounce time.Duration

	current atomic.Pointer[material]
	closed  atomic.Bool

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	stop    context.CancelFunc
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithReloaderLogger sets the logger.
func WithReloaderLogger(logger observability.Logger) ReloaderOption {
	return func(r *Reloader) {
		r.logger = logger
	}
}

// WithReloadDebounce sets the quiet period before a reload.
func WithReloadDebounce(d time.Duration) ReloaderOption {
	return func(r *Reloader) {
		r.debounce = d
	}
}

// NewReloader reads files once. It fails when the key pair or the client CA
// cannot be loaded.
func NewReloader(files Files, opts ...ReloaderOption) (*Reloader, error) {
	r := &Reloader{
		files:    files,
		logger:   observability.NopLogger(),
		metrics:  getCertMetrics(),
		debounce: DefaultReloadDebounce,
	}
	for _, opt := range opts {
		opt(r)
	}

	m, err := r.load()
	if err != nil {
		return nil, err
	}
	r.current.Store(m)
	return r, nil
}

// Start watches the directories holding the files until ctx is done or
// Close is called. Calling Start again is a no-op.
func (r *Reloader) Start(ctx context.Context) error {
	if r.closed.Load() {
		return ErrReloaderClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return NewCertificateError("", "failed to create file watcher", err)
	}
	watched := make(map[string]struct{})
	for _, path := range r.files.paths() {
		dir := filepath.Dir(path)
		if _, ok := watched[dir]; ok {
			continue
		}
		watched[dir] = struct{}{}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return NewCertificateError(dir, "failed to watch directory", err)
		}
	}

	ctx, r.stop = context.WithCancel(ctx)
	r.watcher = watcher
	r.done = make(chan struct{})
	go r.run(ctx, watcher, r.done)

	r.logger.Info("watching listener certificate",
		observability.String("cert_file", r.files.Cert),
		observability.String("client_ca_file", r.files.ClientCA),
	)
	return nil
}

// Close stops watching. GetCertificate fails once Close has been called.
func (r *Reloader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher == nil {
		return nil
	}

	r.stop()
	<-r.done
	if err := r.watcher.Close(); err != nil {
		return NewCertificateError("", "failed to close file watcher", err)
	}
	return nil
}

// GetCertificate has the signature of tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	if r.closed.Load() {
		return nil, ErrReloaderClosed
	}
	m := r.current.Load()
	if m == nil || m.cert == nil {
		return nil, ErrCertificateNotFound
	}
	return m.cert, nil
}

// ClientCA returns the client CA pool, nil when none is configured.
func (r *Reloader) ClientCA() *x509.CertPool {
	if m := r.current.Load(); m != nil {
		return m.clientCA
	}
	return nil
}

// Reload reads the files again. On error the current generation stays in
// use.
func (r *Reloader) Reload() error {
	m, err := r.load()
	if err != nil {
		r.metrics.reloads.WithLabelValues("error").Inc()
		r.logger.Error("listener certificate reload failed", observability.Error(err))
		return err
	}

	r.current.Store(m)
	r.metrics.reloads.WithLabelValues("success").Inc()
	r.logger.Info("listener certificate reloaded")
	return nil
}

func (r *Reloader) load() (*material, error) {
	cert, err := tls.LoadX509KeyPair(r.files.Cert, r.files.Key)
	if err != nil {
		return nil, NewCertificateError(r.files.Cert, "failed to load certificate", err)
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, NewCertificateError(r.files.Cert, "failed to parse certificate", err)
		}
		cert.Leaf = leaf
	}

	m := &material{cert: &cert}
	if r.files.ClientCA != "" {
		data, err := os.ReadFile(r.files.ClientCA) // #nosec G304 -- path from listener config
		if err != nil {
			return nil, NewCertificateError(r.files.ClientCA, "failed to read CA file", err)
		}
		m.clientCA = x509.NewCertPool()
		if !m.clientCA.AppendCertsFromPEM(data) {
			return nil, NewCertificateError(r.files.ClientCA, "no certificates found in CA file", nil)
		}
	}

	subject := cert.Leaf.Subject.CommonName
	r.metrics.expiry.WithLabelValues(subject).Set(float64(cert.Leaf.NotAfter.Unix()))
	r.logger.Info("listener certificate loaded",
		observability.String("subject", subject),
		observability.Time("not_after", cert.Leaf.NotAfter),
	)
	return m, nil
}

func (r *Reloader) run(ctx context.Context, watcher *fsnotify.Watcher, done chan<- struct{}) {
	defer close(done)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if r.touches(event) {
				r.logger.Debug("listener certificate file changed",
					observability.String("path", event.Name),
					observability.String("op", event.Op.String()),
				)
				pending = time.After(r.debounce)
			}
		case <-pending:
			pending = nil
			_ = r.Reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("listener certificate watcher error", observability.Error(err))
		}
	}
}

// touches reports whether event writes, creates or renames one of the files.
func (r *Reloader) touches(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	for _, path := range r.files.paths() {
		if name == path {
			return true
		}
	}
	return false
}
