package udp

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"melspec/internal/render"
	"melspec/internal/transport"
)

func testDB() [][]float64 {
	return [][]float64{
		{-80, -40, -20},
		{-10, 0, -5.5},
	}
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, 42, 1_700_000_000_000, 3, testDB()); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if buf.Len() != headerSize+6*4 {
		t.Fatalf("packet length = %d", buf.Len())
	}

	p, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Sequence != 42 || p.Timestamp != 1_700_000_000_000 || p.Index != 3 || p.Mels != 2 || p.Columns != 3 {
		t.Errorf("header = %+v", p)
	}
	if p.At(0, 1) != -40 || p.At(1, 2) != -5.5 {
		t.Errorf("values = %v", p.Values)
	}
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name string
		db   [][]float64
	}{
		{"no bands", nil},
		{"no columns", [][]float64{{}}},
		{"ragged", [][]float64{{1, 2}, {3}}},
		{"too large", make2D(128, 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, 1, 0, 0, tt.db); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func make2D(rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	return out
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for short packet")
	}
	var buf bytes.Buffer
	if err := Encode(&buf, 1, 0, 0, testDB()); err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(buf.Bytes()[:buf.Len()-1]); err == nil {
		t.Error("expected error for truncated packet")
	}
}

type memSender struct {
	mu      sync.Mutex
	packets [][]byte
	closed  bool
}

func (m *memSender) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets = append(m.packets, bytes.Clone(data))
	return nil
}

func (m *memSender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func message(index int) transport.FrameMessage {
	return transport.FrameMessage{
		Type:     transport.MessageTypeFrame,
		Document: render.Document{Index: index, NMels: 2, Columns: 3, DB: testDB()},
	}
}

func TestPublisherFlushesInOrder(t *testing.T) {
	sender := &memSender{}
	p, err := NewPublisher(time.Millisecond, sender)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	for i := range 5 {
		msg := message(i)
		if i%2 == 1 {
			if err := p.Send(&msg); err != nil {
				t.Fatalf("Send: %v", err)
			}
			continue
		}
		if err := p.Send(msg); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !sender.closed {
		t.Error("sender not closed")
	}
	if len(sender.packets) != 5 {
		t.Fatalf("packets = %d, want 5", len(sender.packets))
	}
	for i, raw := range sender.packets {
		pkt, err := Decode(raw)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if int(pkt.Index) != i || pkt.Sequence != uint32(i+1) {
			t.Errorf("packet %d: index %d seq %d", i, pkt.Index, pkt.Sequence)
		}
	}
}

func TestPublisherCloseWithoutStart(t *testing.T) {
	sender := &memSender{}
	p, err := NewPublisher(0, sender)
	if err != nil {
		t.Fatal(err)
	}
	if p.interval != DefaultInterval {
		t.Errorf("interval = %v", p.interval)
	}
	if err := p.Send(message(0)); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if len(sender.packets) != 1 {
		t.Errorf("packets = %d, want 1", len(sender.packets))
	}
}

func TestPublisherRejects(t *testing.T) {
	if _, err := NewPublisher(time.Millisecond, nil); err == nil {
		t.Error("expected error for nil sender")
	}
	p, err := NewPublisher(time.Millisecond, &memSender{})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Send("hello"); err == nil {
		t.Error("expected error for unsupported message")
	}
	empty := transport.FrameMessage{}
	if err := p.Send(empty); err == nil {
		t.Error("expected error for empty frame")
	}
}

func TestSenderLoopback(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	sender, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	p, err := NewPublisher(time.Millisecond, sender)
	if err != nil {
		t.Fatal(err)
	}
	p.Start()
	if err := p.Send(message(9)); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, MaxPacketSize)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	pkt, err := Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pkt.Index != 9 || pkt.At(1, 1) != 0 {
		t.Errorf("packet = %+v", pkt)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sender.Send([]byte{1}); err == nil {
		t.Error("expected error after close")
	}
	if err := sender.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSenderRejectsOversize(t *testing.T) {
	s := &Sender{}
	err := s.Send(make([]byte, MaxPacketSize+1))
	if err == nil || errors.Is(err, net.ErrClosed) {
		t.Errorf("err = %v", err)
	}
}
