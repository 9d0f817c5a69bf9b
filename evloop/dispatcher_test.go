package evloop

import (
	"testing"
	"time"
)

func TestEchoServerOverLoopback(t *testing.T) {
	m, err := NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	echoHandler := func(conn *Connection, ev Event, payload any) {
		if ev == Recv {
			conn.SendBytes(conn.Recv.Bytes())
			conn.Recv.Reset()
		}
	}

	listener, err := Bind(m, "tcp://127.0.0.1:0", echoHandler, nil)
	if err != nil {
		t.Fatal(err)
	}
	port, err := boundPort(listener)
	if err != nil {
		t.Fatal(err)
	}

	var gotReply []byte
	clientHandler := func(conn *Connection, ev Event, payload any) {
		switch ev {
		case Connected:
			conn.SendBytes([]byte("hello"))
		case Recv:
			gotReply = append(gotReply, conn.Recv.Bytes()...)
			conn.Recv.Reset()
		}
	}
	if _, err := Connect(m, "tcp://127.0.0.1:"+itoa(port), clientHandler, nil); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(gotReply) < 5 && time.Now().Before(deadline) {
		if _, err := m.Poll(50 * time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}
	if string(gotReply) != "hello" {
		t.Fatalf("got %q", gotReply)
	}
}

func TestFinishSendingThenCloseNextIteration(t *testing.T) {
	m, err := NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	var iteration int
	sendTick, closeTick := -1, -1
	handler := func(conn *Connection, ev Event, payload any) {
		switch ev {
		case Send:
			sendTick = iteration
		case Close:
			closeTick = iteration
		}
	}

	listener, err := Bind(m, "tcp://127.0.0.1:0", func(conn *Connection, ev Event, payload any) {
		if ev == Accept {
			conn.Handler = handler
			conn.SendBytes([]byte("bye"))
			conn.FinishSending()
		}
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	port, err := boundPort(listener)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Connect(m, "tcp://127.0.0.1:"+itoa(port), func(*Connection, Event, any) {}, nil); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for closeTick < 0 && time.Now().Before(deadline) {
		if _, err := m.Poll(50 * time.Millisecond); err != nil {
			t.Fatal(err)
		}
		iteration++
	}
	if sendTick < 0 {
		t.Fatal("expected a SEND event before CLOSE")
	}
	if closeTick < 0 {
		t.Fatal("expected CLOSE to eventually fire")
	}
	if closeTick == sendTick {
		t.Fatalf("expected CLOSE on a later Poll iteration than SEND, both landed on iteration %d", sendTick)
	}
}

func TestUDPDatagramRoundTrip(t *testing.T) {
	m, err := NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	serverHandler := func(conn *Connection, ev Event, payload any) {
		if ev == Recv {
			conn.SendBytes(conn.Recv.Bytes())
		}
	}
	listener, err := Bind(m, "udp://127.0.0.1:0", serverHandler, nil)
	if err != nil {
		t.Fatal(err)
	}
	port, err := boundPort(listener)
	if err != nil {
		t.Fatal(err)
	}

	var reply []byte
	clientHandler := func(conn *Connection, ev Event, payload any) {
		if ev == Recv {
			reply = append(reply, conn.Recv.Bytes()...)
		}
	}
	client, err := Connect(m, "udp://127.0.0.1:"+itoa(port), clientHandler, nil)
	if err != nil {
		t.Fatal(err)
	}
	client.SendBytes([]byte("ping"))

	deadline := time.Now().Add(2 * time.Second)
	for len(reply) == 0 && time.Now().Before(deadline) {
		if _, err := m.Poll(50 * time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}
	if string(reply) != "ping" {
		t.Fatalf("got %q", reply)
	}
}
