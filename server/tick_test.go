package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"creaturenet/creature"
	"creaturenet/protocol"
)

type capturePublisher struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *capturePublisher) Publish(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, p)
}

func TestBroadcastEmptyIsNoop(t *testing.T) {
	cfg := testConfig()
	m, _ := newManager(t, cfg)
	fs := &fakeSender{}
	pub := &capturePublisher{}
	b := NewBroadcaster(cfg, m, fs, pub, nil)

	if payloads := b.Tick(); payloads != nil {
		t.Fatalf("empty broadcast produced %q", payloads)
	}
	if len(fs.take()) != 0 || len(pub.frames) != 0 {
		t.Fatalf("empty broadcast sent something")
	}
	if b.metrics.EmptyBroadcasts != 1 {
		t.Fatalf("empty broadcasts = %d", b.metrics.EmptyBroadcasts)
	}
}

func TestBroadcastSendsFullStateToEveryEndpoint(t *testing.T) {
	cfg := testConfig()
	m, _ := newManager(t, cfg)
	m.HandleDatagram(endpoint(1), []protocol.Message{protocol.PlayerCreature{ID: 1, Type: "Snake"}})
	m.HandleDatagram(endpoint(2), []protocol.Message{
		protocol.PlayerPositions{ID: 2, Positions: []creature.Vec2{{X: 5, Y: 6}, {X: 7, Y: 8}}},
	})

	fs := &fakeSender{}
	pub := &capturePublisher{}
	b := NewBroadcaster(cfg, m, fs, pub, nil)
	payloads := b.Tick()
	if len(payloads) != 1 {
		t.Fatalf("payloads = %d", len(payloads))
	}

	out := fs.take()
	if len(out) != 2 {
		t.Fatalf("sent %d datagrams", len(out))
	}
	dest := map[string]bool{}
	for _, s := range out {
		dest[s.to] = true
		if string(s.payload) != string(payloads[0]) {
			t.Fatalf("endpoints received different payloads")
		}
	}
	if !dest[endpoint(1).String()] || !dest[endpoint(2).String()] {
		t.Fatalf("destinations %v", dest)
	}
	if len(pub.frames) != 1 {
		t.Fatalf("spectator frames = %d", len(pub.frames))
	}

	positions := map[int][]creature.Vec2{}
	creatures := map[int]string{}
	for _, msg := range decode(t, payloads[0]) {
		switch v := msg.(type) {
		case protocol.PlayerPositions:
			positions[v.ID] = v.Positions
		case protocol.PlayerCreature:
			creatures[v.ID] = v.Type
		}
	}
	if len(positions) != 2 || len(positions[2]) != 2 || !positions[2][1].Equal(creature.Vec2{X: 7, Y: 8}) {
		t.Fatalf("positions %v", positions)
	}
	if creatures[1] != "Snake" || creatures[2] != "Lizard" {
		t.Fatalf("creatures %v", creatures)
	}

	// 声明已发送，下一次广播只有位置
	for _, msg := range decode(t, b.Tick()[0]) {
		if _, ok := msg.(protocol.PlayerCreature); ok {
			t.Fatalf("announcement repeated without change")
		}
	}
}

func TestBroadcastPeriodicAnnounce(t *testing.T) {
	cfg := testConfig()
	cfg.AnnounceEvery = 3
	m, _ := newManager(t, cfg)
	m.HandleDatagram(endpoint(1), nil)
	b := NewBroadcaster(cfg, m, &fakeSender{}, nil, nil)

	counts := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		n := 0
		for _, msg := range decode(t, b.Tick()[0]) {
			if _, ok := msg.(protocol.PlayerCreature); ok {
				n++
			}
		}
		counts = append(counts, n)
	}
	want := []int{1, 0, 1, 0, 0, 1}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("announcements per tick %v, want %v", counts, want)
		}
	}
}

func TestBroadcastIncludesLeave(t *testing.T) {
	cfg := testConfig()
	m, _ := newManager(t, cfg)
	m.HandleDatagram(endpoint(1), nil)
	m.HandleDatagram(endpoint(2), nil)
	m.HandleDatagram(endpoint(2), []protocol.Message{protocol.PlayerLeave{ID: 2}})

	fs := &fakeSender{}
	b := NewBroadcaster(cfg, m, fs, nil, nil)
	payloads := b.Tick()
	msgs := decode(t, payloads[0])
	if l, ok := msgs[0].(protocol.PlayerLeave); !ok || l.ID != 2 {
		t.Fatalf("first message %+v", msgs[0])
	}
	out := fs.take()
	if len(out) != 1 || out[0].to != endpoint(1).String() {
		t.Fatalf("sent %v", out)
	}
}

func TestBroadcastSplitsLargeState(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPayload = 64
	m, _ := newManager(t, cfg)
	for i := 1; i <= 4; i++ {
		m.HandleDatagram(endpoint(i), nil)
	}
	fs := &fakeSender{}
	b := NewBroadcaster(cfg, m, fs, nil, nil)
	payloads := b.Tick()
	if len(payloads) < 2 {
		t.Fatalf("expected split, got %d payloads", len(payloads))
	}
	if got := len(fs.take()); got != 4*len(payloads) {
		t.Fatalf("sent %d datagrams", got)
	}
}

func TestBroadcastRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.BroadcastInterval = 5 * time.Millisecond
	m, _ := newManager(t, cfg)
	m.HandleDatagram(endpoint(1), nil)
	fs := &fakeSender{}
	b := NewBroadcaster(cfg, m, fs, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	time.Sleep(40 * time.Millisecond)
	b.SetInterval(10 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcast loop did not stop")
	}
	if len(fs.take()) == 0 {
		t.Fatalf("no broadcasts sent")
	}
}
