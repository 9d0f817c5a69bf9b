package evloop

// HandshakeState mirrors tlsglue.HandshakeState without importing tlsglue,
// so evloop depends only on this small structural contract, matching
// spec.md §6's "opaque provider" framing of the TLS collaborator.
type HandshakeState int

const (
	TLSDone HandshakeState = iota
	TLSWantRead
	TLSWantWrite
)

// TLSSession is the external TLS provider contract of spec.md §6, shaped so
// the single-threaded dispatcher can pump it without blocking: every chunk
// of ciphertext read off the socket is handed to Feed, which runs whatever
// mix of handshake and decryption is appropriate for the session's current
// phase and returns any ciphertext that must now be flushed back to the
// socket. Decrypted application bytes accumulate until the dispatcher
// drains them with Plaintext.
type TLSSession interface {
	// Feed supplies newly read ciphertext. It returns ciphertext that must
	// be written to the socket (handshake flight or a TLS alert), the
	// resulting handshake state, and any fatal error.
	Feed(ciphertextIn []byte) (ciphertextOut []byte, state HandshakeState, err error)
	// Plaintext returns and clears decrypted application bytes made
	// available by Feed calls since the last Plaintext call.
	Plaintext() []byte
	// Encrypt seals plaintext the application wants to send, returning the
	// ciphertext to append to the connection's send buffer.
	Encrypt(plaintext []byte) ([]byte, error)
	// Close releases the session's internal resources.
	Close() error
}

// SetTLS attaches a TLS session to the connection and clears
// TLSHandshakeDone so the dispatcher pumps the handshake before delivering
// any plaintext events.
func (c *Connection) SetTLS(sess TLSSession) {
	c.tls = sess
	c.ClearFlags(TLSHandshakeDone)
}

// TLS returns the attached TLS session, or nil if this connection is plain.
func (c *Connection) TLS() TLSSession { return c.tls }
