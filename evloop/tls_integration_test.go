package evloop_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/loopwire/evcore/evloop"
	"github.com/loopwire/evcore/tlsglue"
	"golang.org/x/sys/unix"
)

func selfSignedCertForTest(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

// TestTLSHandshakeAndEchoOverDispatcher drives a real tlsglue.Session on
// each end of a live socketpair through the ordinary Poll loop: the
// handshake completes with no help beyond repeated Poll calls, and
// plaintext written by one side arrives decrypted as a RECV on the other.
func TestTLSHandshakeAndEchoOverDispatcher(t *testing.T) {
	m, err := evloop.NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatal(err)
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		t.Fatal(err)
	}

	cert := selfSignedCertForTest(t)
	serverCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	clientCfg := &tls.Config{InsecureSkipVerify: true}

	var got []byte
	serverConn, err := evloop.AddSocket(m, fds[0], 0, func(conn *evloop.Connection, ev evloop.Event, payload any) {
		if ev == evloop.Recv {
			got = append(got, conn.Recv.Bytes()...)
			conn.Recv.Reset()
		}
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	serverConn.SetTLS(tlsglue.NewServerSession(serverCfg))

	clientConn, err := evloop.AddSocket(m, fds[1], 0, func(*evloop.Connection, evloop.Event, any) {}, nil)
	if err != nil {
		t.Fatal(err)
	}
	clientConn.SetTLS(tlsglue.NewClientSession(clientCfg, "localhost"))

	deadline := time.Now().Add(3 * time.Second)
	for !clientConn.Flags().Has(evloop.TLSHandshakeDone) && time.Now().Before(deadline) {
		if _, err := m.Poll(20 * time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}
	if !clientConn.Flags().Has(evloop.TLSHandshakeDone) || !serverConn.Flags().Has(evloop.TLSHandshakeDone) {
		t.Fatal("handshake did not complete")
	}

	if _, err := clientConn.SendBytes([]byte("hello over tls")); err != nil {
		t.Fatal(err)
	}

	for len(got) == 0 && time.Now().Before(deadline) {
		if _, err := m.Poll(20 * time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}
	if string(got) != "hello over tls" {
		t.Fatalf("got %q", got)
	}
}
