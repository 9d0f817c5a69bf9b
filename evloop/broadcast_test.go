package evloop

import (
	"testing"
	"time"
)

// TestBroadcastAppendsToEveryLiveConnection exercises spec.md scenario 6:
// a record pushed from another goroutine appends "ping" to every live
// connection's send buffer by the manager's next Poll.
func TestBroadcastAppendsToEveryLiveConnection(t *testing.T) {
	m, err := NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	var received [2][]byte
	makeHandler := func(slot int) EventHandler {
		return func(conn *Connection, ev Event, payload any) {
			if ev == Recv {
				received[slot] = append(received[slot], conn.Recv.Bytes()...)
				conn.Recv.Reset()
			}
		}
	}

	var peers []*Connection
	listener, err := Bind(m, "tcp://127.0.0.1:0", func(conn *Connection, ev Event, payload any) {
		if ev == Accept {
			conn.Handler = makeHandler(0)
			peers = append(peers, conn)
		}
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	port, err := boundPort(listener)
	if err != nil {
		t.Fatal(err)
	}

	client, err := Connect(m, "tcp://127.0.0.1:"+itoa(port), makeHandler(1), nil)
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for client.Flags().Has(Connecting) && time.Now().Before(deadline) {
		if _, err := m.Poll(50 * time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Broadcast(func(c *Connection, data any) {
			c.SendBytes(data.([]byte))
		}, []byte("ping"))
	}()
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}

	for len(received[1]) == 0 && time.Now().Before(deadline) {
		if _, err := m.Poll(50 * time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}

	if string(received[1]) != "ping" {
		t.Fatalf("client got %q", received[1])
	}
}
