package tcp

import (
	"testing"
	"time"

	"github.com/hioframe/hioframe/api"
)

func TestListenDialRoundTrip(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	if ln.Addr() == "" {
		t.Fatal("Addr() returned empty string for an ephemeral-port listener")
	}

	addr := "127.0.0.1:18231"
	ln2, err := Listen(addr)
	if err != nil {
		t.Fatalf("Listen(%s): %v", addr, err)
	}
	defer ln2.Close()

	accepted := make(chan api.Transport, 1)
	go func() {
		for {
			conn, _, err := ln2.Accept()
			if err == api.ErrWouldBlock {
				time.Sleep(time.Millisecond)
				continue
			}
			if err != nil {
				return
			}
			accepted <- conn
			return
		}
	}()

	client, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var server api.Transport
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	defer server.Close()

	msg := []byte("hello")
	if _, err := client.Write(msg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf := make([]byte, len(msg))
	deadline := time.Now().Add(2 * time.Second)
	read := 0
	for read < len(msg) && time.Now().Before(deadline) {
		n, err := server.Read(buf[read:])
		if err == api.ErrWouldBlock {
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		read += n
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q, want %q", buf, msg)
	}
}
