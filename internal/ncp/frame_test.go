package ncp

import (
	"bufio"
	"bytes"
	"errors"
	"testing"
)

func TestFCS16CheckValue(t *testing.T) {
	// CRC-16/X.25 check value for "123456789".
	if got := fcs16([]byte("123456789")); got != 0x906E {
		t.Errorf("fcs16 = 0x%04X, want 0x906E", got)
	}
}

func TestHDLCEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"simple", []byte{0x01, 0x02, 0x03}},
		{"with flag byte", []byte{0x7E, 0x01}},
		{"with escape byte", []byte{0x7D, 0x02}},
		{"mixed special", []byte{0x00, 0x7E, 0x7D, 0xFF}},
		{"empty body", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := hdlcEncode(tt.data)
			if encoded[0] != hdlcFlag || encoded[len(encoded)-1] != hdlcFlag {
				t.Fatalf("missing flags: %X", encoded)
			}
			inner := encoded[1 : len(encoded)-1]
			if bytes.IndexByte(inner, hdlcFlag) >= 0 {
				t.Errorf("unescaped flag inside frame: %X", inner)
			}
			decoded, err := hdlcDecode(inner)
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if !bytes.Equal(decoded, tt.data) {
				t.Errorf("got %X, want %X", decoded, tt.data)
			}
		})
	}
}

func TestHDLCDecodeErrors(t *testing.T) {
	encoded := hdlcEncode([]byte{0x01, 0x02})
	inner := append([]byte(nil), encoded[1:len(encoded)-1]...)
	inner[len(inner)-1] ^= 0xFF
	if _, err := hdlcDecode(inner); !errors.Is(err, errBadFCS) {
		t.Errorf("corrupt FCS: err = %v", err)
	}
	if _, err := hdlcDecode([]byte{0x01}); !errors.Is(err, errShortFrame) {
		t.Errorf("one byte: err = %v", err)
	}
	if _, err := hdlcDecode([]byte{0x01, 0x02, hdlcEscape}); err == nil {
		t.Error("dangling escape: expected error")
	}
}

func TestReadRawFrameSkipsNoise(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x11, 0x22) // line noise before first flag
	stream = append(stream, encodeSignal(0, 0)...)
	stream = append(stream, encodeStartRequest(10)...)
	r := bufio.NewReader(bytes.NewReader(stream))

	for i, wantKind := range []uint8{frameSignal, frameStartRequest} {
		raw, err := readRawFrame(r)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		body, err := hdlcDecode(raw)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if body[0] != wantKind {
			t.Errorf("frame %d kind = 0x%02X, want 0x%02X", i, body[0], wantKind)
		}
	}
}

func TestReadRawFrameTooLong(t *testing.T) {
	stream := append([]byte{hdlcFlag}, bytes.Repeat([]byte{0x01}, maxFrameSize+1)...)
	r := bufio.NewReader(bytes.NewReader(stream))
	if _, err := readRawFrame(r); !errors.Is(err, errFrameTooLong) {
		t.Errorf("err = %v, want errFrameTooLong", err)
	}
}

func TestParseAttribute(t *testing.T) {
	want := AttributeMessage{Endpoint: 10, ClusterID: 0x0300, AttrID: 0x0003, DataType: 0x21, Value: []byte{0x00, 0xFF}}
	frame := encodeAttribute(want)
	body, err := hdlcDecode(frame[1 : len(frame)-1])
	if err != nil {
		t.Fatal(err)
	}
	got, err := parseAttribute(body[1:])
	if err != nil {
		t.Fatal(err)
	}
	if got.Endpoint != want.Endpoint || got.ClusterID != want.ClusterID || got.AttrID != want.AttrID ||
		got.DataType != want.DataType || !bytes.Equal(got.Value, want.Value) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseAttributeErrors(t *testing.T) {
	if _, err := parseAttribute([]byte{10, 0x00, 0x03}); err == nil {
		t.Error("short header: expected error")
	}
	// declares 4 value bytes, carries 1
	if _, err := parseAttribute([]byte{10, 0x00, 0x03, 0x03, 0x00, 0x21, 4, 0xAA}); err == nil {
		t.Error("truncated value: expected error")
	}
}

func TestParseSignal(t *testing.T) {
	sig, err := parseSignal([]byte{0x02, 0xFE, 0xFF, 0xFF, 0xFF})
	if err != nil {
		t.Fatal(err)
	}
	if sig.Kind != SignalError || sig.Status != -2 {
		t.Errorf("got %v, want error status -2", sig)
	}
	if _, err := parseSignal([]byte{0x00, 0x00}); err == nil {
		t.Error("short signal: expected error")
	}
}

func TestDecodeSignal(t *testing.T) {
	tests := []struct {
		typ    uint8
		status int32
		want   SignalKind
	}{
		{0x00, 0, SignalStarted},
		{0x00, -1, SignalError},
		{0x01, 0, SignalStopped},
		{0x02, 7, SignalError},
		{0x37, 0, SignalUnknown},
		{0xFF, -2147483648, SignalUnknown},
	}
	for _, tt := range tests {
		got := DecodeSignal(tt.typ, tt.status)
		if got.Kind != tt.want {
			t.Errorf("DecodeSignal(0x%02X, %d) = %s, want %s", tt.typ, tt.status, got.Kind, tt.want)
		}
		if got.Type != tt.typ || got.Status != tt.status {
			t.Errorf("raw fields changed: %+v", got)
		}
	}
}
