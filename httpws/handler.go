// License: Apache-2.0
//
// Package httpws implements evcore's built-in HTTP/1.1 and WebSocket
// protocol handler: it wraps a connection's recv buffer, parses HTTP/1.1
// messages, recognizes a WebSocket upgrade request, and switches the
// connection to frame decoding once the handshake completes. It is the
// inner layer of the protocol-attach contract that lets a handler opt a
// connection into structured events instead of raw bytes.
package httpws

import (
	"github.com/loopwire/evcore/evloop"
	"github.com/loopwire/evcore/httpwire"
	"github.com/loopwire/evcore/wsframe"
)

// phase tracks where a connection sits in the HTTP-then-maybe-WebSocket
// lifecycle.
type phase int

const (
	phaseHTTP phase = iota
	phaseWebSocket
)

// Handler is the evloop.ProtocolHandler attached via Attach. One Handler
// instance is stateful per connection; never share one across connections.
type Handler struct {
	ph       phase
	ws       wsframe.Decoder
	asServer bool
}

// Attach wires h onto conn as its protocol layer and stores it as the
// connection's ProtoState, matching spec.md §6's
// set_protocol_http_websocket. isServer controls whether outgoing frames
// this handler emits through Send* helpers are masked (client) or not
// (server), per RFC 6455 §5.1.
func Attach(conn *evloop.Connection, isServer bool) *Handler {
	h := &Handler{asServer: isServer}
	h.ws.ExpectMasked = isServer
	conn.SetProtocolHandler(h)
	conn.ProtoState = h
	return h
}

// OnRecv implements evloop.ProtocolHandler. It always suppresses the raw
// RECV event: callers attaching this handler receive HTTPRequest/HTTPReply
// or WSFrame events instead, never the underlying bytes.
func (h *Handler) OnRecv(conn *evloop.Connection, n int) (suppressRaw bool) {
	switch h.ph {
	case phaseHTTP:
		h.pumpHTTP(conn)
	case phaseWebSocket:
		h.pumpWebSocket(conn)
	}
	return true
}

func (h *Handler) pumpHTTP(conn *evloop.Connection) {
	for {
		raw := conn.Recv.Bytes()
		msg, consumed, status := httpwire.Parse(raw)
		switch status {
		case httpwire.Need:
			return
		case httpwire.TooLarge:
			conn.SetFlags(evloop.CloseImmediately)
			if conn.Handler != nil {
				conn.Handler(conn, evloop.ProtocolErr, httpwire.ErrHeaderTooLarge)
			}
			return
		case httpwire.Err:
			conn.SetFlags(evloop.CloseImmediately)
			if conn.Handler != nil {
				conn.Handler(conn, evloop.ProtocolErr, httpwire.ErrMalformedStartLine)
			}
			return
		}

		// msg.Headers and msg.Body are views into conn.Recv's backing array
		// (httpwire.Parse never copies them), so every use of msg — the
		// upgrade check and the event delivery below — must happen before
		// RemoveHead compacts that array and overwrites the region they
		// point at with whatever bytes trail this message.
		if key, upErr := wsframe.ValidateUpgrade(headerLookup(&msg)); upErr == nil && !msg.IsResponse {
			if conn.Handler != nil {
				conn.Handler(conn, evloop.WSHandshakeRequest, &msg)
			}
			conn.Recv.RemoveHead(consumed)
			h.completeUpgrade(conn, key)
			return
		}

		ev := evloop.HTTPRequest
		if msg.IsResponse {
			ev = evloop.HTTPReply
		}
		if conn.Handler != nil {
			conn.Handler(conn, ev, &msg)
		}

		conn.Recv.RemoveHead(consumed)

		if conn.Recv.Len() == 0 {
			return
		}
	}
}

func (h *Handler) pumpWebSocket(conn *evloop.Connection) {
	raw := conn.Recv.Bytes()
	msgs, consumed, err := h.ws.Feed(raw, nil)
	if err != nil {
		conn.SetFlags(evloop.CloseImmediately)
		if conn.Handler != nil {
			conn.Handler(conn, evloop.ProtocolErr, err)
		}
		return
	}
	conn.Recv.RemoveHead(consumed)
	for i := range msgs {
		if conn.Handler != nil {
			conn.Handler(conn, evloop.WSFrame, &msgs[i])
		}
	}
}

// completeUpgrade writes the 101 response and flips this connection to
// WebSocket framing, delivering WSHandshakeDone once the response is
// queued (spec.md §4.6: "the protocol handler delivers ... once the
// connection has switched to WebSocket framing").
func (h *Handler) completeUpgrade(conn *evloop.Connection, clientKey string) {
	accept := wsframe.ComputeAcceptKey(clientKey)
	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n\r\n"
	conn.SendBytes([]byte(resp))
	h.ph = phaseWebSocket
	if conn.Handler != nil {
		conn.Handler(conn, evloop.WSHandshakeDone, nil)
	}
}

// Send queues a WebSocket frame, masking it if and only if this handler
// was attached with isServer=false (RFC 6455 §5.1: only clients mask).
func (h *Handler) Send(conn *evloop.Connection, op wsframe.Opcode, payload []byte) (int, error) {
	return SendFrame(conn, op, payload, !h.asServer)
}

// SendV queues a WebSocket frame assembled from several buffers as one
// frame with a single shared header, masking per h.asServer exactly like
// Send.
func (h *Handler) SendV(conn *evloop.Connection, op wsframe.Opcode, parts [][]byte) (int, error) {
	return SendFrameV(conn, op, parts, !h.asServer)
}

func headerLookup(msg *httpwire.Message) func(string) string {
	return func(name string) string {
		v, _ := msg.Header(name)
		return v
	}
}

// SendFrame queues one WebSocket frame carrying payload, masked per RFC
// 6455 §5.1 if and only if mask is true.
func SendFrame(conn *evloop.Connection, op wsframe.Opcode, payload []byte, mask bool) (int, error) {
	return conn.SendBytes(wsframe.AppendFrame(nil, op, payload, mask))
}

// SendFrameV queues one WebSocket frame whose payload is the
// concatenation of parts, computing a single shared header up front
// instead of framing each part separately (spec's send_websocket_framev).
func SendFrameV(conn *evloop.Connection, op wsframe.Opcode, parts [][]byte, mask bool) (int, error) {
	return conn.SendBytes(wsframe.AppendFrameV(nil, op, parts, mask))
}

// SendHandshakeRequest queues a client-side WebSocket upgrade request
// carrying the caller-supplied Sec-WebSocket-Key and returns SendBytes'
// count and error. The caller keeps key to verify the eventual
// Sec-WebSocket-Accept.
func SendHandshakeRequest(conn *evloop.Connection, host, path, key string) (int, error) {
	req := "GET " + path + " HTTP/1.1\r\n" +
		"Host: " + host + "\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: " + key + "\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	return conn.SendBytes([]byte(req))
}
