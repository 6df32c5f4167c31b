package ncp

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeNCP is the co-processor end of a pipe.
type fakeNCP struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newPipeStack(t *testing.T) (*SerialStack, *fakeNCP) {
	t.Helper()
	host, dev := net.Pipe()
	s := newSerialStack(host, 10, newTestLogger())
	t.Cleanup(func() {
		dev.Close()
		s.Close()
	})
	return s, &fakeNCP{conn: dev, reader: bufio.NewReader(dev)}
}

func (f *fakeNCP) expectFrame(t *testing.T) []byte {
	t.Helper()
	raw, err := readRawFrame(f.reader)
	if err != nil {
		t.Errorf("fake ncp read: %v", err)
		return nil
	}
	body, err := hdlcDecode(raw)
	if err != nil {
		t.Errorf("fake ncp decode: %v", err)
		return nil
	}
	return body
}

func (f *fakeNCP) send(t *testing.T, frame []byte) {
	t.Helper()
	if _, err := f.conn.Write(frame); err != nil {
		t.Errorf("fake ncp write: %v", err)
	}
}

func TestSerialStackStart(t *testing.T) {
	s, dev := newPipeStack(t)
	var signals []Signal
	s.OnSignal(func(sig Signal) { signals = append(signals, sig) })

	go func() {
		body := dev.expectFrame(t)
		if !bytes.Equal(body, []byte{frameStartRequest, 10}) {
			t.Errorf("start request = %X", body)
		}
		dev.send(t, encodeSignal(0x37, 1)) // unknown, skipped by Start
		dev.send(t, encodeSignal(0x00, 0))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(signals) != 2 || signals[1].Kind != SignalStarted {
		t.Errorf("signals = %v", signals)
	}
}

func TestSerialStackStartError(t *testing.T) {
	s, dev := newPipeStack(t)

	go func() {
		dev.expectFrame(t)
		dev.send(t, encodeSignal(0x02, -5))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Start(ctx); err == nil {
		t.Fatal("expected start failure")
	}
}

func TestSerialStackStartTimeout(t *testing.T) {
	s, dev := newPipeStack(t)
	go dev.expectFrame(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Start(ctx); err == nil {
		t.Fatal("expected timeout")
	}
}

func TestSerialStackAttribute(t *testing.T) {
	s, dev := newPipeStack(t)
	got := make(chan AttributeMessage, 1)
	s.OnAttribute(func(m AttributeMessage) { got <- m })

	want := AttributeMessage{Endpoint: 10, ClusterID: 0x0006, AttrID: 0, DataType: 0x10, Value: []byte{1}}
	go func() {
		corrupt := encodeAttribute(want)
		corrupt[2] ^= 0x01
		dev.send(t, corrupt) // dropped on FCS
		dev.send(t, encodeAttribute(want))
	}()

	select {
	case m := <-got:
		if m.ClusterID != want.ClusterID || !bytes.Equal(m.Value, want.Value) {
			t.Errorf("got %v, want %v", m, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("attribute not delivered")
	}
}

func TestSerialStackCloseIdempotent(t *testing.T) {
	s, _ := newPipeStack(t)
	s.Close()
	s.Close()
}

func TestMemoryStack(t *testing.T) {
	m := NewMemoryStack()
	var sigs []Signal
	var msgs []AttributeMessage
	m.OnSignal(func(s Signal) { sigs = append(sigs, s) })
	m.OnAttribute(func(a AttributeMessage) { msgs = append(msgs, a) })

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	m.InjectAttribute(AttributeMessage{Endpoint: 10})
	m.InjectSignal(DecodeSignal(0x01, 0))

	if len(sigs) != 2 || sigs[0].Kind != SignalStarted || sigs[1].Kind != SignalStopped {
		t.Errorf("signals = %v", sigs)
	}
	if len(msgs) != 1 {
		t.Errorf("messages = %v", msgs)
	}

	m.StartSignal = DecodeSignal(0x02, -1)
	if err := m.Start(context.Background()); err == nil {
		t.Error("expected start error")
	}
}
