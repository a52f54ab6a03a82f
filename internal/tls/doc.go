// Package tls serves the listener's certificate and client CA from PEM files
// and reloads them when the files change.
//
// A Reloader loads the key pair and optional client CA once at construction.
// Start watches the files with fsnotify and, after a debounce delay, swaps in
// the certificate and CA together. A failed reload keeps the previous pair.
// ServerConfig builds a *tls.Config that resolves both through the reloader
// on every handshake:
//
//	certs, err := tlspkg.NewReloader(tlspkg.Files{Cert: certFile, Key: keyFile, ClientCA: caFile},
//		tlspkg.WithReloaderLogger(logger))
//	if err != nil {
//		return err
//	}
//	tlsConfig, err := tlspkg.ServerConfig(certs, "verify")
package tls
