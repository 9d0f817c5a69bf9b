package jsonrpc

import (
	"bytes"

	"github.com/loopwire/evcore/evloop"
	"github.com/sugawarayuuta/sonnet"
)

// Codec decodes newline-delimited JSON-RPC requests out of a connection's
// recv buffer and encodes responses into its send buffer. One Codec per
// connection; attach via Attach.
type Codec struct {
	OnRequest func(conn *evloop.Connection, req Request)
}

// Attach wires c as conn's protocol handler (evloop.ProtocolHandler),
// consuming newline-delimited JSON-RPC request objects out of the recv
// buffer. Unlike httpws, this suppresses raw RECV only once at least one
// complete line has been consumed (a line that fails to decode is answered
// with a parse-error response); partial lines are left buffered.
func (c *Codec) Attach(conn *evloop.Connection) {
	conn.SetProtocolHandler(c)
}

// OnRecv implements evloop.ProtocolHandler.
func (c *Codec) OnRecv(conn *evloop.Connection, n int) bool {
	consumedAny := false
	for {
		raw := conn.Recv.Bytes()
		idx := bytes.IndexByte(raw, '\n')
		if idx < 0 {
			break
		}
		line := raw[:idx]
		conn.Recv.RemoveHead(idx + 1)
		consumedAny = true

		var req Request
		if err := sonnet.Unmarshal(line, &req); err != nil {
			resp := NewError(nil, CodeParseError, err.Error())
			c.writeResponse(conn, resp)
			continue
		}
		if c.OnRequest != nil {
			c.OnRequest(conn, req)
		}
	}
	return consumedAny
}

// WriteResult encodes and queues a success response for id.
func (c *Codec) WriteResult(conn *evloop.Connection, id any, result any) error {
	resp, err := NewResult(id, result)
	if err != nil {
		return err
	}
	return c.writeResponse(conn, resp)
}

// WriteError encodes and queues a failure response for id.
func (c *Codec) WriteError(conn *evloop.Connection, id any, code int, message string) error {
	return c.writeResponse(conn, NewError(id, code, message))
}

func (c *Codec) writeResponse(conn *evloop.Connection, resp Response) error {
	b, err := sonnet.Marshal(resp)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = conn.SendBytes(b)
	return err
}
