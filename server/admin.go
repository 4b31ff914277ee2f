package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"creaturenet/logging"
)

// HandleAdminConfig 提供运行期参数的读取与更新（热更新）
// GET /admin/config   返回当前配置
// POST /admin/config  以 JSON 载荷更新部分字段
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	type cfg struct {
		BroadcastIntervalMs *int     `json:"broadcastIntervalMs,omitempty"`
		AnnounceEvery       *int     `json:"announceEvery,omitempty"`
		TrustPayloadID      *bool    `json:"trustPayloadId,omitempty"`
		IdleTimeoutMs       *int     `json:"idleTimeoutMs,omitempty"`
		SimulateDropProb    *float64 `json:"simulateDropProb,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		trust, idle := s.Sessions.Tunables()
		interval := int(s.Broadcaster.Interval() / time.Millisecond)
		announce := s.Broadcaster.AnnounceEvery()
		idleMs := int(idle / time.Millisecond)
		cur := cfg{
			BroadcastIntervalMs: &interval,
			AnnounceEvery:       &announce,
			TrustPayloadID:      &trust,
			IdleTimeoutMs:       &idleMs,
		}
		if s.transport != nil {
			drop := s.transport.DropProbability()
			cur.SimulateDropProb = &drop
		}
		writeJSON(w, cur)
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.BroadcastIntervalMs != nil {
			if *body.BroadcastIntervalMs <= 0 {
				http.Error(w, "broadcastIntervalMs must be positive", http.StatusBadRequest)
				return
			}
			s.Broadcaster.SetInterval(time.Duration(*body.BroadcastIntervalMs) * time.Millisecond)
		}
		if body.AnnounceEvery != nil {
			s.Broadcaster.SetAnnounceEvery(*body.AnnounceEvery)
		}
		if body.TrustPayloadID != nil {
			s.Sessions.SetTrustPayloadID(*body.TrustPayloadID)
		}
		if body.IdleTimeoutMs != nil {
			s.Sessions.SetIdleTimeout(time.Duration(*body.IdleTimeoutMs) * time.Millisecond)
		}
		if body.SimulateDropProb != nil && s.transport != nil {
			s.transport.SetDropProbability(*body.SimulateDropProb)
		}
		trust, idle := s.Sessions.Tunables()
		logging.Log.Infow("config updated",
			"broadcastInterval", s.Broadcaster.Interval(),
			"announceEvery", s.Broadcaster.AnnounceEvery(),
			"trustPayloadId", trust,
			"idleTimeout", idle)
		writeJSON(w, map[string]any{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"sessions":   s.Sessions.Len(),
		"spectators": s.Spectators.Count(),
		"metrics":    s.Metrics.Snapshot(s.transportStats()),
	}
	writeJSON(w, payload)
}

// HandleSessions 会话列表；DELETE /sessions?id=3 移除指定会话
func (s *Server) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.Sessions.Snapshot())
	case http.MethodDelete:
		id, err := strconv.Atoi(r.URL.Query().Get("id"))
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}
		if !s.Sessions.Remove(PlayerID(id)) {
			http.Error(w, "no such session", http.StatusNotFound)
			return
		}
		logging.Log.Infow("session removed by admin", "player", id)
		writeJSON(w, map[string]any{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
