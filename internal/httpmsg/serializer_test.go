package httpmsg

import "testing"

func TestSerializeRequestComputesContentLength(t *testing.T) {
	req := &Request{Method: POST, Target: "/x", Version: HTTP11, Header: NewHeader(), Body: []byte("abc")}
	out := string(SerializeRequest(req))
	want := "POST /x HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc"
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestSerializeResponseS1Scenario(t *testing.T) {
	resp := NewResponse(HTTP11, StatusOK)
	resp.Body = []byte("hi")
	out := string(SerializeResponse(resp))
	want := "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi"
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestRoundTripRequest(t *testing.T) {
	req := &Request{Method: GET, Target: "/hello", Version: HTTP11, Header: NewHeader()}
	req.Header.Set("Host", "example.com")
	raw := SerializeRequest(req)

	p := NewRequestParser()
	if err := p.Feed(raw, false); err != nil {
		t.Fatal(err)
	}
	got, ok := p.Take()
	if !ok {
		t.Fatal("expected parsed request")
	}
	if got.Method != req.Method || got.Target != req.Target || got.Header.Get("host") != "example.com" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
