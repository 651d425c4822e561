package datagram

import (
	"bytes"
	"testing"

	"github.com/ignacioSepam/sbmp/frame"
)

func TestParseShortPayloadFails(t *testing.T) {
	_, err := Parse([]byte{0x01, 0x02})
	if err != ErrShort {
		t.Fatalf("got err %v, want ErrShort", err)
	}
}

func TestParseSplitsHeaderAndBody(t *testing.T) {
	payload := []byte{0x34, 0x12, 0x05, 0xDE, 0xAD}
	dg, err := Parse(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dg.Session != 0x1234 {
		t.Fatalf("got session %#04x, want 0x1234", dg.Session)
	}
	if dg.Type != 0x05 {
		t.Fatalf("got type %#02x, want 0x05", dg.Type)
	}
	if !bytes.Equal(dg.Body, []byte{0xDE, 0xAD}) {
		t.Fatalf("got body %X, want DEAD", dg.Body)
	}
}

func TestParseEmptyBody(t *testing.T) {
	dg, err := Parse([]byte{0x00, 0x00, 0xF0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dg.Body) != 0 {
		t.Fatalf("expected empty body, got %X", dg.Body)
	}
}

func TestOriginBit(t *testing.T) {
	cases := []struct {
		session uint16
		want    uint16
	}{
		{0x0001, 0},
		{0x8001, 1},
	}
	for _, c := range cases {
		dg := Datagram{Session: c.session}
		if got := dg.Origin(); got != c.want {
			t.Fatalf("Origin(%#04x) = %d, want %d", c.session, got, c.want)
		}
	}
}

func TestIsHandshake(t *testing.T) {
	for _, typ := range []Type{TypeHskStart, TypeHskAccept, TypeHskConflict} {
		if !typ.IsHandshake() {
			t.Fatalf("%#02x should be a handshake type", byte(typ))
		}
	}
	if Type(0x01).IsHandshake() {
		t.Fatalf("application type 0x01 misclassified as handshake")
	}
}

func TestStartAndParseRoundTrip(t *testing.T) {
	var wire bytes.Buffer
	f := frame.New(make([]byte, 64), &wire, nil)

	body := []byte("payload")
	if !Start(f, frame.ChecksumXOR, 0x2A2A, 0x7, len(body)) {
		t.Fatalf("Start failed")
	}
	if !f.SendBuffer(body) {
		t.Fatalf("SendBuffer failed")
	}

	var gotDg Datagram
	rx := frame.New(make([]byte, 64), nil, func(payload []byte) {
		dg, err := Parse(payload)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		gotDg = Datagram{Session: dg.Session, Type: dg.Type, Body: append([]byte{}, dg.Body...)}
	})
	rx.FeedBuffer(wire.Bytes())

	if gotDg.Session != 0x2A2A {
		t.Fatalf("got session %#04x, want 0x2A2A", gotDg.Session)
	}
	if gotDg.Type != 0x7 {
		t.Fatalf("got type %#02x, want 0x07", gotDg.Type)
	}
	if !bytes.Equal(gotDg.Body, body) {
		t.Fatalf("got body %q, want %q", gotDg.Body, body)
	}
}
