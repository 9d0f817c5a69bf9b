package wsframe

import (
	"crypto/rand"
	"encoding/binary"
)

// AppendFrame appends one final frame carrying payload to dst and returns
// the extended slice. mask selects RFC 6455 §5.1 masking: true for
// client-direction frames (a fresh 32-bit key is drawn from crypto/rand
// per call), false for server-direction frames.
func AppendFrame(dst []byte, op Opcode, payload []byte, mask bool) []byte {
	return AppendFrameV(dst, op, [][]byte{payload}, mask)
}

// AppendFrameV appends one final frame whose payload is the concatenation
// of parts, writing a single header sized from their combined length up
// front rather than framing each part separately — the vectored send
// used when a handler has assembled a message out of several buffers and
// wants them to land as one WebSocket frame with no interleaving risk.
func AppendFrameV(dst []byte, op Opcode, parts [][]byte, mask bool) []byte {
	plen := 0
	for _, p := range parts {
		plen += len(p)
	}

	dst = appendFrameHeader(dst, op, plen, mask)

	if !mask {
		for _, p := range parts {
			dst = append(dst, p...)
		}
		return dst
	}

	var key [4]byte
	rand.Read(key[:])
	dst = append(dst, key[:]...)
	start := len(dst)
	for _, p := range parts {
		dst = append(dst, p...)
	}
	unmask(dst[start:], key) // XOR-mask is its own inverse
	return dst
}

// appendFrameHeader writes the 2..14-byte fixed/extended-length header for
// a final (FIN=1) frame of the given opcode and total payload length.
func appendFrameHeader(dst []byte, op Opcode, plen int, mask bool) []byte {
	b0 := byte(0x80) | byte(op&0x0F) // FIN always set; fragmentation is the caller's choice via AppendFragment

	switch {
	case plen <= 125:
		b1 := byte(plen)
		if mask {
			b1 |= 0x80
		}
		return append(dst, b0, b1)
	case plen <= 0xFFFF:
		b1 := byte(126)
		if mask {
			b1 |= 0x80
		}
		dst = append(dst, b0, b1)
		var lb [2]byte
		binary.BigEndian.PutUint16(lb[:], uint16(plen))
		return append(dst, lb[:]...)
	default:
		b1 := byte(127)
		if mask {
			b1 |= 0x80
		}
		dst = append(dst, b0, b1)
		var lb [8]byte
		binary.BigEndian.PutUint64(lb[:], uint64(plen))
		return append(dst, lb[:]...)
	}
}

// AppendFragment appends one unmasked frame of a fragmented message; fin
// sets the FIN bit on the frame that ends the message. first indicates whether this is the opening frame (carrying op) or a
// CONTINUATION frame (op is ignored and OpContinuation is used instead).
func AppendFragment(dst []byte, op Opcode, payload []byte, first, fin bool) []byte {
	useOp := op
	if !first {
		useOp = OpContinuation
	}
	b0 := byte(useOp & 0x0F)
	if fin {
		b0 |= 0x80
	}
	plen := len(payload)
	switch {
	case plen <= 125:
		dst = append(dst, b0, byte(plen))
	case plen <= 0xFFFF:
		dst = append(dst, b0, 126)
		var lb [2]byte
		binary.BigEndian.PutUint16(lb[:], uint16(plen))
		dst = append(dst, lb[:]...)
	default:
		dst = append(dst, b0, 127)
		var lb [8]byte
		binary.BigEndian.PutUint64(lb[:], uint64(plen))
		dst = append(dst, lb[:]...)
	}
	return append(dst, payload...)
}
