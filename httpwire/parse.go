package httpwire

import (
	"bytes"
	"strconv"
)

// Parse implements spec's "pure function over a byte slice producing
// either need more bytes, a parsed message, or a parse error." It
// distinguishes a request from a response by whether the first start-line
// token begins with "HTTP/" (a response's status line), per spec §4.6.
//
// On Ok, consumed is the number of leading bytes of raw belonging to this
// message (start line + headers + any fixed-length body already present);
// the caller removes exactly that many bytes from its recv buffer before
// calling Parse again for the next message on the same connection
// (HTTP/1.1 keep-alive pipelining).
//
// Growing raw never turns a Need into an Err: malformed content is only
// ever detected once enough of it is present to parse. An oversized
// header-less prefix is reported as TooLarge, not Err, precisely so this
// holds regardless of input length.
func Parse(raw []byte) (Message, int, Status) {
	if len(raw) > maxHeaderSection && bytes.Index(raw, []byte("\r\n\r\n")) < 0 {
		return Message{}, 0, TooLarge
	}

	lineEnd := bytes.Index(raw, []byte("\r\n"))
	if lineEnd < 0 {
		return Message{}, 0, Need
	}
	startLine := raw[:lineEnd]

	msg, err := parseStartLine(startLine)
	if err != nil {
		return Message{}, 0, Err
	}

	headerStart := lineEnd + 2
	// Search from the start line's own CRLF so a message with no header
	// lines (blank line right after the start line) is found too.
	headerEnd := bytes.Index(raw[lineEnd:], []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return Message{}, 0, Need
	}
	headerEnd += lineEnd

	var block []byte
	if headerEnd > headerStart {
		block = raw[headerStart:headerEnd]
	}
	headers, err := parseHeaders(block)
	if err != nil {
		return Message{}, 0, Err
	}
	msg.Headers = headers

	bodyStart := headerEnd + 4

	if cl, ok := msg.Header("Content-Length"); ok {
		n, perr := strconv.Atoi(cl)
		if perr != nil || n < 0 {
			return Message{}, 0, Err
		}
		if len(raw) < bodyStart+n {
			return Message{}, 0, Need
		}
		msg.Body = raw[bodyStart : bodyStart+n]
		msg.Complete = true
		return msg, bodyStart + n, Ok
	}

	// No Content-Length: Parse succeeds as soon as the start line and
	// headers are fully parsed, with body length/presence conveyed by
	// the headers to the caller (e.g. chunked transfer or a response
	// that runs to connection close).
	msg.Complete = false
	return msg, bodyStart, Ok
}

func parseStartLine(line []byte) (Message, error) {
	fields := bytes.Fields(line)
	if len(fields) != 3 {
		return Message{}, ErrMalformedStartLine
	}
	if bytes.HasPrefix(fields[0], []byte("HTTP/")) {
		code, err := strconv.Atoi(string(fields[1]))
		if err != nil {
			return Message{}, ErrMalformedStartLine
		}
		return Message{
			IsResponse: true,
			Proto:      string(fields[0]),
			StatusCode: code,
			StatusText: string(fields[2]),
		}, nil
	}
	return Message{
		IsResponse: false,
		Method:     string(fields[0]),
		URI:        string(fields[1]),
		Proto:      string(fields[2]),
	}, nil
}

func parseHeaders(block []byte) ([]Header, error) {
	var headers []Header
	for len(block) > 0 {
		lineEnd := bytes.Index(block, []byte("\r\n"))
		if lineEnd < 0 {
			lineEnd = len(block)
		}
		line := block[:lineEnd]
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, ErrMalformedHeader
		}
		name := bytes.TrimSpace(line[:colon])
		value := bytes.TrimSpace(line[colon+1:])
		if len(name) == 0 {
			return nil, ErrMalformedHeader
		}
		if len(headers) >= maxHeaders {
			return nil, ErrTooManyHeaders
		}
		headers = append(headers, Header{Name: name, Value: value})

		if lineEnd == len(block) {
			break
		}
		block = block[lineEnd+2:]
	}
	return headers, nil
}
