package evloop

// Flags is the per-connection state bitset of spec.md §4.2.
type Flags uint32

const (
	// Listening marks a passive listener socket; the dispatcher only
	// services accept events for it.
	Listening Flags = 1 << iota
	// UDP marks a datagram socket.
	UDP
	// Connecting marks a pending non-blocking client connect.
	Connecting
	// TLSHandshakeDone marks a TLS session that has completed its
	// handshake; until set, reads/writes pump the handshake instead of
	// delivering plaintext events.
	TLSHandshakeDone
	// FinishedSendingData marks a graceful-close request: once the send
	// buffer drains, the dispatcher sets CloseImmediately.
	FinishedSendingData
	// BufferButDontSend holds output: the dispatcher must not issue the
	// write syscall while this is set.
	BufferButDontSend
	// CloseImmediately tells the dispatcher to close the socket and
	// deliver Close. A handler that sets this directly gets Close by the
	// end of the current iteration; the dispatcher's own
	// FinishedSendingData-derived transition sets it at the end of one
	// iteration and acts on it at the start of the next, so Close never
	// lands in the same iteration as the Send that drained the buffer.
	CloseImmediately

	// User0..User3 are caller-defined bits, untouched by the manager.
	User0
	User1
	User2
	User3
)

// userMask covers the four caller-defined bits.
const userMask = User0 | User1 | User2 | User3

// managerOwnedMask covers every bit the manager itself sets or clears;
// callers may read all flags but should only mutate BufferButDontSend,
// FinishedSendingData, CloseImmediately, and the User bits (spec.md §6).
const managerOwnedMask = Listening | UDP | Connecting | TLSHandshakeDone

// Has reports whether all bits in mask are set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Any reports whether any bit in mask is set.
func (f Flags) Any(mask Flags) bool { return f&mask != 0 }
