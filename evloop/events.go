package evloop

// Event tags the reason an EventHandler was invoked (spec.md §3).
type Event int

const (
	// Poll is delivered to every live connection once per iteration.
	Poll Event = iota
	// Accept is delivered on a freshly accepted connection. Payload:
	// AcceptPayload.
	Accept
	// Connected is delivered once a non-blocking connect resolves.
	// Payload: ConnectPayload.
	Connected
	// Recv is delivered after bytes are appended to the recv buffer.
	// Payload: RecvPayload.
	Recv
	// Send is delivered after bytes are drained from the send buffer.
	// Payload: SendPayload.
	Send
	// Close is delivered exactly once, immediately before the
	// connection is unlinked and freed. No payload.
	Close
	// ProtocolErr is delivered when a protocol handler (HTTP/WS) hits a
	// framing violation, immediately before CloseImmediately is applied.
	// This resolves spec.md §9's open question in favor of observability.
	// Payload: error.
	ProtocolErr

	// HTTPRequest is delivered by the built-in HTTP/WS protocol handler
	// once a full request (start line + headers + body, if fixed
	// length) has arrived. Payload: *httpwire.Message.
	HTTPRequest
	// HTTPReply is the response-side equivalent of HTTPRequest.
	HTTPReply
	// WSHandshakeRequest is delivered when an HTTP request looks like a
	// valid WebSocket upgrade. Payload: *httpwire.Message.
	WSHandshakeRequest
	// WSHandshakeDone is delivered once the 101 response has been
	// queued on the send buffer and the connection has switched to
	// WebSocket framing.
	WSHandshakeDone
	// WSFrame is delivered once a complete (possibly reassembled)
	// WebSocket message has been decoded. Payload: *wsframe.Message.
	WSFrame
)

// AcceptPayload is the Accept event's payload.
type AcceptPayload struct {
	Peer Endpoint
}

// ConnectPayload is the Connected event's payload. Code == 0 means success.
type ConnectPayload struct {
	Code int
	Err  error
}

// RecvPayload is the Recv event's payload: the count of bytes just
// appended to the connection's recv buffer.
type RecvPayload struct {
	N int
}

// SendPayload is the Send event's payload: the count of bytes just
// drained from the connection's send buffer.
type SendPayload struct {
	N int
}

// EventHandler is the callback contract every connection carries. Handlers
// must not block and must not retain conn past the Close event.
type EventHandler func(conn *Connection, ev Event, payload any)
