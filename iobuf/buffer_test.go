package iobuf

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestAppendNeverTruncates(t *testing.T) {
	b := New(0)
	var want []byte
	for i := 0; i < 200; i++ {
		chunk := []byte{byte(i), byte(i + 1)}
		n := b.Append(chunk)
		if n != len(chunk) {
			t.Fatalf("Append returned %d, want %d", n, len(chunk))
		}
		want = append(want, chunk...)
		if !bytes.Equal(b.Bytes(), want) {
			t.Fatalf("buffer mismatch at step %d", i)
		}
	}
}

func TestRemoveHeadPreservesSuffix(t *testing.T) {
	b := New(0)
	src := []byte("the quick brown fox jumps over the lazy dog")
	b.Append(src)
	for n := 0; n <= len(src); n++ {
		bb := New(0)
		bb.Append(src)
		bb.RemoveHead(n)
		if !bytes.Equal(bb.Bytes(), src[n:]) {
			t.Fatalf("RemoveHead(%d): got %q want %q", n, bb.Bytes(), src[n:])
		}
	}
}

func TestInvariants_LenLECap(t *testing.T) {
	b := New(0)
	for i := 0; i < 500; i++ {
		b.Append([]byte{byte(i)})
		if b.Len() > b.Cap() {
			t.Fatalf("invariant violated: len=%d cap=%d", b.Len(), b.Cap())
		}
	}
}

func TestReserveDoesNotChangeLen(t *testing.T) {
	b := New(0)
	b.Append([]byte("abc"))
	before := b.Len()
	b.Reserve(1000)
	if b.Len() != before {
		t.Fatalf("Reserve changed Len: %d -> %d", before, b.Len())
	}
	if b.Cap() < before+1000 {
		t.Fatalf("Reserve did not grow capacity enough: cap=%d", b.Cap())
	}
}

func TestPropertyRandomAppendRemove(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	b := New(0)
	var model []byte
	for i := 0; i < 5000; i++ {
		if len(model) == 0 || rng.Intn(2) == 0 {
			n := rng.Intn(17)
			chunk := make([]byte, n)
			rng.Read(chunk)
			b.Append(chunk)
			model = append(model, chunk...)
		} else {
			n := rng.Intn(len(model) + 1)
			b.RemoveHead(n)
			model = model[n:]
		}
		if !bytes.Equal(b.Bytes(), model) {
			t.Fatalf("mismatch at step %d: got %v want %v", i, b.Bytes(), model)
		}
	}
}

func TestGrowAndTruncate(t *testing.T) {
	b := New(0)
	b.Append([]byte("hi"))
	tail := b.Grow(3)
	if len(tail) != 3 {
		t.Fatalf("Grow returned %d bytes, want 3", len(tail))
	}
	copy(tail, "!!")
	b.Truncate(b.Len() - 1)
	if !bytes.Equal(b.Bytes(), []byte("hi!!")) {
		t.Fatalf("got %q", b.Bytes())
	}
}
