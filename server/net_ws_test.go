package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSpectatorReceivesBroadcast(t *testing.T) {
	hub := NewSpectatorHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	waitFor(t, func() bool { return hub.Count() == 1 })

	hub.Publish([]byte("PlayerPositions:1:1,2\n"))
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.TextMessage || string(data) != "PlayerPositions:1:1,2\n" {
		t.Fatalf("frame %d %q", kind, data)
	}

	ws.Close()
	waitFor(t, func() bool { return hub.Count() == 0 })
}

func TestSpectatorQueueFullCountsDrop(t *testing.T) {
	metrics := &Metrics{}
	hub := NewSpectatorHub(metrics)
	// 不启动写协程，队列填满后应计入丢弃
	c := &Spectator{ID: "slow", send: make(chan []byte, 1)}
	hub.add(c)

	hub.Publish([]byte("a"))
	hub.Publish([]byte("b"))
	if metrics.SpectatorDrops != 1 {
		t.Fatalf("drops = %d", metrics.SpectatorDrops)
	}
	hub.Close()
	if hub.Count() != 0 {
		t.Fatalf("hub not empty after close")
	}
}
