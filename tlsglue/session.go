// License: Apache-2.0
//
// Package tlsglue bridges evloop's opaque TLSSession contract to the
// standard library's crypto/tls by running a real tls.Conn over an
// in-memory byte pipe: ciphertext the dispatcher reads off the real socket
// is appended into the pipe's inbound side, tls.Conn reads and decrypts it
// on a background goroutine, and decrypted bytes flow back out through a
// mutex-guarded buffer that Feed/Plaintext drain without blocking the
// single-threaded dispatcher.
package tlsglue

import (
	"crypto/tls"
	"errors"
	"io"
	"sync"

	"github.com/loopwire/evcore/evloop"
)

// Session implements evloop.TLSSession over a *tls.Conn driven via the
// pipeConn pair in pipe.go. The tls.Conn's blocking Handshake/Read calls
// run on one dedicated goroutine per connection. Feed and Plaintext only
// touch the pipeConns and the plaintext buffer (Write never blocks,
// TryReadAll never blocks), so they never block the readiness loop; Encrypt
// calls tls.Conn.Write, which waits for an in-progress handshake to finish.
type Session struct {
	conn *tls.Conn
	in   *pipeConn // dispatcher writes ciphertext read off the wire here
	out  *pipeConn // dispatcher drains ciphertext tls.Conn wants written to the wire

	mu           sync.Mutex
	plaintext    []byte
	handshakeErr error
	state        evloop.HandshakeState

	closeOnce sync.Once
}

func newSession(conn *tls.Conn, in, out *pipeConn) *Session {
	s := &Session{conn: conn, in: in, out: out, state: evloop.TLSWantWrite}
	go s.pumpApplicationData()
	return s
}

// NewServerSession wraps cfg in a server-side tls.Conn ready to pump the
// handshake started by the peer's ClientHello.
func NewServerSession(cfg *tls.Config) *Session {
	in, out := newPipeConn(), newPipeConn()
	far := &farConn{in: in, out: out}
	return newSession(tls.Server(far, cfg), in, out)
}

// NewClientSession wraps cfg in a client-side tls.Conn that initiates the
// handshake against serverName.
func NewClientSession(cfg *tls.Config, serverName string) *Session {
	in, out := newPipeConn(), newPipeConn()
	far := &farConn{in: in, out: out}
	c := cfg.Clone()
	if c == nil {
		c = &tls.Config{}
	}
	if c.ServerName == "" {
		c.ServerName = serverName
	}
	return newSession(tls.Client(far, c), in, out)
}

// pumpApplicationData runs crypto/tls's handshake and then repeatedly reads
// decrypted application data, appending it to s.plaintext under s.mu. It
// exits once the pipe closes or a fatal error occurs.
func (s *Session) pumpApplicationData() {
	if err := s.conn.Handshake(); err != nil {
		s.mu.Lock()
		s.handshakeErr = err
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.state = evloop.TLSDone
	s.mu.Unlock()

	buf := make([]byte, 32*1024)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.plaintext = append(s.plaintext, buf[:n]...)
			s.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.mu.Lock()
				s.handshakeErr = err
				s.mu.Unlock()
			}
			return
		}
	}
}

// Feed implements evloop.TLSSession. It appends ciphertextIn to the
// inbound pipe (waking the handshake/read goroutine if it's blocked
// reading) and drains whatever tls.Conn has queued to send back over the
// real socket.
func (s *Session) Feed(ciphertextIn []byte) ([]byte, evloop.HandshakeState, error) {
	if len(ciphertextIn) > 0 {
		s.in.Write(ciphertextIn)
	}

	out := s.out.TryReadAll()

	s.mu.Lock()
	state := s.state
	herr := s.handshakeErr
	s.mu.Unlock()
	if herr != nil {
		return out, state, herr
	}
	return out, state, nil
}

// Plaintext implements evloop.TLSSession.
func (s *Session) Plaintext() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.plaintext) == 0 {
		return nil
	}
	p := s.plaintext
	s.plaintext = nil
	return p
}

// Encrypt implements evloop.TLSSession: it seals plaintext through the
// live tls.Conn and returns whatever ciphertext that produced. Once the
// handshake has completed, tls.Conn.Write only appends to the outbound
// pipeConn before returning, so this does not block regardless of whether
// the dispatcher has drained prior output yet. Called while the handshake
// is still in progress, it blocks until the handshake finishes.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	if _, err := s.conn.Write(plaintext); err != nil {
		return nil, err
	}
	return s.out.TryReadAll(), nil
}

// Close implements evloop.TLSSession.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
		s.in.Close()
	})
	return err
}
