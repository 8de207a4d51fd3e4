package netsock

import (
	"errors"
	"io"
	"testing"
	"time"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func listenLoopback(t *testing.T, n *TCPNetwork) Listener {
	t.Helper()
	ln, err := n.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() failed: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}

func acceptOne(t *testing.T, ln Listener) Conn {
	t.Helper()
	var conn Conn
	waitFor(t, "accept", func() bool {
		c, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, ErrWouldBlock) {
				t.Fatalf("Accept() failed: %v", err)
			}
			return false
		}
		conn = c
		return true
	})
	return conn
}

func TestAcceptWouldBlock(t *testing.T) {
	n := NewTCPNetwork()
	ln := listenLoopback(t, n)

	if _, err := ln.Accept(); !errors.Is(err, ErrWouldBlock) {
		t.Errorf("Accept() error = %v, want ErrWouldBlock", err)
	}
}

func TestSendReceivePoll(t *testing.T) {
	n := NewTCPNetwork()
	ln := listenLoopback(t, n)

	client, err := n.Dial(ln.Address(), time.Second)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer client.Close()
	client.SetBlocking(false)

	server := acceptOne(t, ln)
	defer server.Close()
	server.SetBlocking(false)

	buf := make([]byte, 16)
	if _, err := server.Receive(buf); !errors.Is(err, ErrWouldBlock) {
		t.Errorf("Receive() on idle conn error = %v, want ErrWouldBlock", err)
	}

	if _, err := client.Send([]byte("hello")); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}

	waitFor(t, "readable", func() bool {
		res, err := n.Poll([]Conn{server}, 0)
		if err != nil {
			t.Fatalf("Poll() failed: %v", err)
		}
		return res[0].Readable
	})

	got, err := server.Receive(buf)
	if err != nil {
		t.Fatalf("Receive() failed: %v", err)
	}
	if string(buf[:got]) != "hello" {
		t.Errorf("Receive() = %q, want %q", buf[:got], "hello")
	}
}

func TestHangUpAfterPeerClose(t *testing.T) {
	n := NewTCPNetwork()
	ln := listenLoopback(t, n)

	client, err := n.Dial(ln.Address(), time.Second)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	server := acceptOne(t, ln)
	defer server.Close()
	server.SetBlocking(false)

	if _, err := client.Send([]byte("bye")); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	client.Close()

	waitFor(t, "hangup", func() bool {
		res, _ := n.Poll([]Conn{server}, 0)
		return res[0].HungUp
	})

	buf := make([]byte, 16)
	got, err := server.Receive(buf)
	if err != nil || string(buf[:got]) != "bye" {
		t.Errorf("Receive() = %q, %v; want bye, nil", buf[:got], err)
	}
	if _, err := server.Receive(buf); !errors.Is(err, io.EOF) {
		t.Errorf("Receive() after drain error = %v, want io.EOF", err)
	}
}

func TestBlockingReceiveWakesOnData(t *testing.T) {
	n := NewTCPNetwork()
	ln := listenLoopback(t, n)

	client, err := n.Dial(ln.Address(), time.Second)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer client.Close()
	server := acceptOne(t, ln)
	defer server.Close()
	server.SetBlocking(true)

	go func() {
		time.Sleep(10 * time.Millisecond)
		client.Send([]byte("x"))
	}()

	buf := make([]byte, 4)
	got, err := server.Receive(buf)
	if err != nil || got != 1 {
		t.Errorf("blocking Receive() = %d, %v; want 1, nil", got, err)
	}
}

func TestDialRefused(t *testing.T) {
	n := NewTCPNetwork()
	ln := listenLoopback(t, n)
	addr := ln.Address()
	ln.Close()

	_, err := n.Dial(addr, 200*time.Millisecond)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Dial() error = %v, want *TransportError", err)
	}
	if te.Op != "connect" {
		t.Errorf("Op = %q, want connect", te.Op)
	}
}

func TestPollTimeout(t *testing.T) {
	n := NewTCPNetwork()
	ln := listenLoopback(t, n)

	client, err := n.Dial(ln.Address(), time.Second)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer client.Close()

	start := time.Now()
	res, err := n.Poll([]Conn{client}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Poll() failed: %v", err)
	}
	if res[0].Readable || res[0].HungUp {
		t.Errorf("Poll() = %+v, want idle", res[0])
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Poll() returned before timeout")
	}
}

func TestJoinAddress(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 4325, "localhost:4325"},
		{"example.com", 4325, "example.com:4325"},
		{"10.0.0.1:9000", 4325, "10.0.0.1:9000"},
		{"::1", 4325, "[::1]:4325"},
	}

	for _, tt := range tests {
		if got := JoinAddress(tt.host, tt.port); got != tt.want {
			t.Errorf("JoinAddress(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}
