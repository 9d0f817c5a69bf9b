package evloop

import "testing"

func TestPinCurrentThreadToCPUZero(t *testing.T) {
	if err := PinCurrentThread(0); err != nil {
		t.Fatalf("PinCurrentThread(0): %v", err)
	}
}
