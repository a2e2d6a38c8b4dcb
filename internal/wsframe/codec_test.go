package wsframe

import "testing"

func TestEncodeDecodeRoundTripLengths(t *testing.T) {
	lengths := []int{0, 125, 126, 127, 65535, 65536}
	for _, n := range lengths {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i)
		}
		f := &Frame{Fin: true, Opcode: OpBinary, Payload: payload}
		raw, err := EncodeFrame(f, RoleClient)
		if err != nil {
			t.Fatalf("len %d: encode: %v", n, err)
		}
		decoded, consumed, err := DecodeFrame(raw, RoleServer)
		if err != nil {
			t.Fatalf("len %d: decode: %v", n, err)
		}
		if decoded == nil || consumed != len(raw) {
			t.Fatalf("len %d: incomplete decode", n)
		}
		if !decoded.Masked {
			t.Fatalf("len %d: client frame must be masked", n)
		}
		if len(decoded.Payload) != n {
			t.Fatalf("len %d: payload length mismatch: %d", n, len(decoded.Payload))
		}
		for i := range payload {
			if decoded.Payload[i] != payload[i] {
				t.Fatalf("len %d: payload mismatch at %d", n, i)
			}
		}
	}
}

func TestShortestLengthEncoding(t *testing.T) {
	cases := []struct {
		n        int
		wantHdrLen int
	}{
		{0, 2}, {125, 2}, {126, 4}, {65535, 4}, {65536, 10},
	}
	for _, c := range cases {
		f := &Frame{Fin: true, Opcode: OpBinary, Payload: make([]byte, c.n)}
		raw, err := EncodeFrame(f, RoleServer)
		if err != nil {
			t.Fatalf("n=%d: %v", c.n, err)
		}
		if len(raw)-c.n != c.wantHdrLen {
			t.Fatalf("n=%d: header length = %d, want %d", c.n, len(raw)-c.n, c.wantHdrLen)
		}
	}
}

func TestServerFramesNeverMasked(t *testing.T) {
	f := &Frame{Fin: true, Opcode: OpText, Payload: []byte("hi")}
	raw, err := EncodeFrame(f, RoleServer)
	if err != nil {
		t.Fatal(err)
	}
	if raw[1]&0x80 != 0 {
		t.Fatal("server-originated frame must not be masked")
	}
}

func TestClientFramesAlwaysMasked(t *testing.T) {
	f := &Frame{Fin: true, Opcode: OpText, Payload: []byte("hi")}
	raw, err := EncodeFrame(f, RoleClient)
	if err != nil {
		t.Fatal(err)
	}
	if raw[1]&0x80 == 0 {
		t.Fatal("client-originated frame must be masked")
	}
}

// TestS4MaskedTextFrame reproduces spec.md scenario S4.
func TestS4MaskedTextFrame(t *testing.T) {
	payload := []byte("Hello")
	mask := [4]byte{0x37, 0xfa, 0x21, 0x3d}
	masked := make([]byte, len(payload))
	for i := range payload {
		masked[i] = payload[i] ^ mask[i%4]
	}
	raw := []byte{0x81, 0x85}
	raw = append(raw, mask[:]...)
	raw = append(raw, masked...)

	f, n, err := DecodeFrame(raw, RoleServer)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	if string(f.Payload) != "Hello" {
		t.Fatalf("unmasked payload = %q", f.Payload)
	}
}

func TestServerRejectsUnmaskedFrame(t *testing.T) {
	f := &Frame{Fin: true, Opcode: OpText, Payload: []byte("hi")}
	raw, _ := EncodeFrame(f, RoleServer) // unmasked
	if _, _, err := DecodeFrame(raw, RoleServer); err != ErrMaskPolicyViolation {
		t.Fatalf("expected ErrMaskPolicyViolation, got %v", err)
	}
}

func TestClientRejectsMaskedFrame(t *testing.T) {
	f := &Frame{Fin: true, Opcode: OpText, Payload: []byte("hi")}
	raw, _ := EncodeFrame(f, RoleClient) // masked
	if _, _, err := DecodeFrame(raw, RoleClient); err != ErrMaskPolicyViolation {
		t.Fatalf("expected ErrMaskPolicyViolation, got %v", err)
	}
}

func TestReservedBitRejected(t *testing.T) {
	raw := []byte{0x90, 0x00} // FIN + RSV3 set, opcode continuation
	if _, _, err := DecodeFrame(raw, RoleServer); err != ErrReservedBitSet {
		t.Fatalf("expected ErrReservedBitSet, got %v", err)
	}
}

func TestFragmentedControlFrameRejected(t *testing.T) {
	raw := []byte{0x08, 0x80, 0, 0, 0, 0} // fin=0, opcode=CLOSE, masked, len 0
	if _, _, err := DecodeFrame(raw, RoleServer); err != ErrFragmentedControlFrame {
		t.Fatalf("expected ErrFragmentedControlFrame, got %v", err)
	}
}

func TestControlFrameTooLargeRejected(t *testing.T) {
	f := &Frame{Fin: true, Opcode: OpPing, Payload: make([]byte, 200)}
	if _, err := EncodeFrame(f, RoleServer); err != ErrControlFrameTooLarge {
		t.Fatalf("expected ErrControlFrameTooLarge, got %v", err)
	}
}
