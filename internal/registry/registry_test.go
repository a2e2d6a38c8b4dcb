package registry

import (
	"errors"
	"testing"

	"github.com/hioframe/hioframe/api"
)

type fakeTransport struct {
	closed bool
}

func (f *fakeTransport) Read(p []byte) (int, error)  { return 0, errors.New("not implemented") }
func (f *fakeTransport) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakeTransport) Close() error                { f.closed = true; return nil }
func (f *fakeTransport) RawFD() uintptr              { return 0 }
func (f *fakeTransport) SetNonblocking() error       { return nil }
func (f *fakeTransport) Features() api.TransportFeatures {
	return api.TransportFeatures{}
}

func TestInsertGetRemove(t *testing.T) {
	r := New()
	key := api.PeerKey{IP: "127.0.0.1", Service: "5000"}
	tr := &fakeTransport{}
	c := &Conn{Key: key, Transport: tr}
	r.Insert(c)

	got, ok := r.Get(key)
	if !ok || got != c {
		t.Fatalf("Get returned ok=%v got=%v", ok, got)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	r.Remove(key)
	if _, ok := r.Get(key); ok {
		t.Fatal("connection still present after Remove")
	}
	if !tr.closed {
		t.Fatal("transport was not closed on Remove")
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
}

func TestForEachSnapshot(t *testing.T) {
	r := New()
	keys := []api.PeerKey{
		{IP: "10.0.0.1", Service: "1"},
		{IP: "10.0.0.2", Service: "2"},
		{IP: "10.0.0.3", Service: "3"},
	}
	for _, k := range keys {
		r.Insert(&Conn{Key: k, Transport: &fakeTransport{}})
	}

	visited := 0
	r.ForEach(func(c *Conn) {
		visited++
		// Mutating the registry mid-iteration must not affect this pass.
		r.Remove(c.Key)
	})
	if visited != 3 {
		t.Fatalf("visited = %d, want 3", visited)
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after removing all", r.Len())
	}
}

func TestMarkClosingDrain(t *testing.T) {
	r := New()
	key := api.PeerKey{IP: "127.0.0.1", Service: "9000"}
	tr := &fakeTransport{}
	r.Insert(&Conn{Key: key, Transport: tr})

	r.MarkClosing(key)
	c, ok := r.Get(key)
	if !ok {
		t.Fatal("connection removed before drain")
	}
	if c.State() != api.ConnClosing {
		t.Fatalf("state = %v, want ConnClosing", c.State())
	}

	r.DrainClosing()
	if _, ok := r.Get(key); ok {
		t.Fatal("connection still present after DrainClosing")
	}
	if !tr.closed {
		t.Fatal("transport not closed after DrainClosing")
	}
}

func TestCloseAllEmptiesRegistry(t *testing.T) {
	r := New()
	for i := 0; i < 5; i++ {
		k := api.PeerKey{IP: "127.0.0.1", Service: string(rune('a' + i))}
		r.Insert(&Conn{Key: k, Transport: &fakeTransport{}})
	}
	r.CloseAll()
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after CloseAll", r.Len())
	}
}
