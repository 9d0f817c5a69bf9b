package httpwire

import "testing"

func TestParsePartialChunks(t *testing.T) {
	full := "GET /a HTTP/1.1\r\nHost: h\r\nContent-Length: 3\r\n\r\nxyz"

	chunks := []string{
		full[:10],
		full[:len(full)-5],
		full,
	}

	var lastStatus Status
	var lastMsg Message
	for _, c := range chunks {
		msg, consumed, status := Parse([]byte(c))
		lastStatus = status
		if status == Ok {
			lastMsg = msg
			if consumed != len(c) {
				t.Fatalf("consumed %d, want %d", consumed, len(c))
			}
		}
	}
	if lastStatus != Ok {
		t.Fatalf("final status = %v, want Ok", lastStatus)
	}
	if lastMsg.Method != "GET" || lastMsg.URI != "/a" {
		t.Fatalf("got method=%q uri=%q", lastMsg.Method, lastMsg.URI)
	}
	if string(lastMsg.Body) != "xyz" {
		t.Fatalf("got body=%q", lastMsg.Body)
	}
}

func TestParseNeedNeverRegressesToErr(t *testing.T) {
	full := []byte("GET / HTTP/1.1\r\nHost: h\r\n\r\n")
	for n := 0; n < len(full); n++ {
		_, _, status := Parse(full[:n])
		if status == Err {
			t.Fatalf("prefix of length %d returned Err", n)
		}
	}
}

func TestParseOversizeHeaderlessPrefixIsTooLargeNotErr(t *testing.T) {
	raw := append([]byte("GET / HTTP/1.1\r\n"), make([]byte, maxHeaderSection)...)
	_, _, status := Parse(raw)
	if status != TooLarge {
		t.Fatalf("status = %v, want TooLarge", status)
	}

	for n := 0; n <= len(raw); n += 4096 {
		_, _, status := Parse(raw[:n])
		if status == Err {
			t.Fatalf("prefix of length %d returned Err, want Need or TooLarge", n)
		}
	}
}

func TestParseResponse(t *testing.T) {
	raw := []byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")
	msg, consumed, status := Parse(raw)
	if status != Ok {
		t.Fatalf("status = %v", status)
	}
	if !msg.IsResponse || msg.StatusCode != 200 || msg.StatusText != "OK" {
		t.Fatalf("got %+v", msg)
	}
	if consumed != len(raw) {
		t.Fatalf("consumed %d, want %d", consumed, len(raw))
	}
}

func TestParseMalformedStartLineIsErr(t *testing.T) {
	_, _, status := Parse([]byte("garbage\r\n\r\n"))
	if status != Err {
		t.Fatalf("status = %v, want Err", status)
	}
}

func TestParseTooManyHeadersIsErr(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n"
	for i := 0; i < 41; i++ {
		raw += "X-Pad: 1\r\n"
	}
	raw += "\r\n"
	_, _, status := Parse([]byte(raw))
	if status != Err {
		t.Fatalf("status = %v, want Err", status)
	}
}
