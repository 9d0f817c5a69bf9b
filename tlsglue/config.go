package tlsglue

import "crypto/tls"

// ServerConfigFromPEM builds a server *tls.Config from a certificate and
// private key pair given as PEM-encoded bytes, the static-certificate path
// spec.md names directly alongside the autocert alternative in autocert.go.
func ServerConfigFromPEM(certPEM, keyPEM []byte) (*tls.Config, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ClientConfig builds a minimal client *tls.Config. insecureSkipVerify
// should only ever be true in tests against a self-signed loopback
// certificate.
func ClientConfig(insecureSkipVerify bool) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecureSkipVerify,
	}
}
