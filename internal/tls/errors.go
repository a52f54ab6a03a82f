package tls

import (
	"errors"
	"fmt"
)

var (
	// ErrCertificateNotFound indicates that no certificate has been loaded.
	ErrCertificateNotFound = errors.New("certificate not found")

	// ErrReloaderClosed is returned by a Reloader after Close.
	ErrReloaderClosed = errors.New("certificate reloader closed")

	// ErrClientAuthInvalid indicates an unknown or unsatisfiable client-auth mode.
	ErrClientAuthInvalid = errors.New("invalid client auth mode")
)

// CertificateError reports a certificate or CA file that could not be used.
type CertificateError struct {
	Path    string
	Message string
	Cause   error
}

// NewCertificateError creates a CertificateError.
func NewCertificateError(path, message string, cause error) *CertificateError {
	return &CertificateError{Path: path, Message: message, Cause: cause}
}

func (e *CertificateError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return "tls: " + msg
}

func (e *CertificateError) Unwrap() error {
	return e.Cause
}
