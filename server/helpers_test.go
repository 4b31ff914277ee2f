package server

import (
	"net"
	"sync"
	"testing"

	"creaturenet/protocol"
)

type sent struct {
	to      string
	payload []byte
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
}

func (f *fakeSender) Send(to *net.UDPAddr, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: to.String(), payload: payload})
}

func (f *fakeSender) take() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sent
	f.sent = nil
	return out
}

func endpoint(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

func decode(t *testing.T, payload []byte) []protocol.Message {
	t.Helper()
	msgs, errs := protocol.DecodePayload(payload)
	if len(errs) != 0 {
		t.Fatalf("decode %q: %v", payload, errs)
	}
	return msgs
}

func mustLine(t *testing.T, line string) protocol.Message {
	t.Helper()
	m, err := protocol.DecodeLine(line)
	if err != nil {
		t.Fatalf("decode %q: %v", line, err)
	}
	return m
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RatePerSecond = 0
	return cfg
}
