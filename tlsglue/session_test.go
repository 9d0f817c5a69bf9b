package tlsglue

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/loopwire/evcore/evloop"
)

func selfSignedCert(t *testing.T) tls.Certificate {
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

// pumpUntil drives Feed back and forth between a client and server Session
// until both report TLSDone or the step budget is exhausted.
func pumpUntil(t *testing.T, client, server *Session) {
	t.Helper()
	var toServer, toClient []byte
	for i := 0; i < 50; i++ {
		cOut, cState, cErr := client.Feed(toClient)
		if cErr != nil {
			t.Fatalf("client handshake error: %v", cErr)
		}
		sOut, sState, sErr := server.Feed(toServer)
		if sErr != nil {
			t.Fatalf("server handshake error: %v", sErr)
		}
		toServer, toClient = cOut, sOut
		if cState == evloop.TLSDone && sState == evloop.TLSDone && len(cOut) == 0 && len(sOut) == 0 {
			return
		}
	}
	t.Fatal("handshake did not complete within step budget")
}

func TestHandshakeAndApplicationData(t *testing.T) {
	cert := selfSignedCert(t)
	serverCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	clientCfg := &tls.Config{InsecureSkipVerify: true}

	server := NewServerSession(serverCfg)
	client := NewClientSession(clientCfg, "localhost")
	defer server.Close()
	defer client.Close()

	pumpUntil(t, client, server)

	ct, err := client.Encrypt([]byte("hello server"))
	if err != nil {
		t.Fatalf("client encrypt: %v", err)
	}
	if _, _, err := server.Feed(ct); err != nil {
		t.Fatalf("server feed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	var got []byte
	for time.Now().Before(deadline) {
		got = server.Plaintext()
		if len(got) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !bytes.Equal(got, []byte("hello server")) {
		t.Fatalf("got %q", got)
	}
}
