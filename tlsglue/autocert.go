package tlsglue

import (
	"crypto/tls"

	"golang.org/x/crypto/acme/autocert"
)

// NewAutocertServerSession builds a server Session whose certificate comes
// from Let's Encrypt via autocert rather than a static PEM pair, for a
// listener bound directly on :443 with domains under m's allow-list. cacheDir
// is where autocert persists issued certificates between restarts.
func NewAutocertServerSession(domains []string, cacheDir string) *Session {
	m := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}
	cfg := &tls.Config{
		GetCertificate: m.GetCertificate,
		MinVersion:     tls.VersionTLS12,
		NextProtos:     []string{"http/1.1", "acme-tls/1"},
	}
	return NewServerSession(cfg)
}
