// License: Apache-2.0
//
// Package httpwire implements a pure, incremental HTTP/1.1 start-line and
// header parser: Parse consumes a byte slice and reports either "need more
// bytes," a complete message, or a framing error, never allocating copies
// of the source bytes it doesn't have to.
package httpwire

import (
	"bytes"
	"errors"
)

// maxHeaders bounds how many header fields a single message may carry,
// guarding against a peer trying to exhaust memory with an endless header
// section.
const maxHeaders = 40

// Header is one (name, value) pair, sliced directly out of the source
// buffer. Both views are invalidated once the source buffer is compacted
// (e.g. by iobuf.Buffer.RemoveHead).
type Header struct {
	Name  []byte
	Value []byte
}

// Message is a parsed HTTP/1.1 request or response, per spec: the start
// line split into three fields, an ordered header list, and the body. Body
// is set only for a Content-Length message, and then holds the whole body;
// without Content-Length it is empty.
type Message struct {
	IsResponse bool

	// Request fields, set when !IsResponse.
	Method string
	URI    string

	// Response fields, set when IsResponse.
	StatusCode int
	StatusText string

	Proto   string
	Headers []Header
	Body    []byte

	// Complete is true once the full message (headers plus, for a fixed
	// Content-Length body, the body) has been observed.
	Complete bool
}

// Status reports the outcome of one Parse call.
type Status int

const (
	// Need means raw does not yet contain a complete start line plus
	// headers (or, with Content-Length, the complete body); the caller
	// should feed more bytes and retry.
	Need Status = iota
	// Ok means msg is populated and consumed bytes may be removed from
	// the source buffer.
	Ok
	// Err means raw is not a well-formed HTTP/1.1 message; the
	// connection should be closed without further parsing.
	Err
	// TooLarge means raw's start line plus header block has grown past
	// maxHeaderSection with no terminating blank line yet. It is
	// reported separately from Err: unlike a framing error, TooLarge is
	// a property of raw's length alone; feeding the same prefix again
	// with fewer bytes would have returned Need, so collapsing it into
	// Err would make Parse's Need-to-Err transition depend on input
	// length rather than on malformed content. The caller still closes
	// the connection on TooLarge, same as Err.
	TooLarge
)

var (
	ErrMalformedStartLine = errors.New("httpwire: malformed start line")
	ErrTooManyHeaders     = errors.New("httpwire: too many header fields")
	ErrMalformedHeader    = errors.New("httpwire: malformed header line")
	ErrHeaderTooLarge     = errors.New("httpwire: header section exceeds limit")
)

// maxHeaderSection bounds the start line plus header block, independent of
// any Content-Length, to cap memory used by a peer that never sends a
// blank line.
const maxHeaderSection = 32 * 1024

// Header looks up the first header matching name, case-insensitively, or
// returns ("", false).
func (m *Message) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if bytes.EqualFold(h.Name, []byte(name)) {
			return string(h.Value), true
		}
	}
	return "", false
}
