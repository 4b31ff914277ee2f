package server

import (
	"sync/atomic"

	"creaturenet/transport"
)

// Metrics 记录服务端运行期的关键指标（用于监控与调试）
type Metrics struct {
	SessionsCreated   int64 // 新建会话数
	SessionsLeft      int64 // 显式断开的会话数
	SessionsExpired   int64 // 因超时被清除的会话数
	RateLimited       int64 // 因限速被丢弃的数据报
	ForeignIDRejected int64 // 消息 ID 与发送方不符而被拒绝
	UnknownIDIgnored  int64 // 消息 ID 不存在而被忽略
	Broadcasts        int64 // 广播次数
	EmptyBroadcasts   int64 // 无会话时的空广播
	SpectatorDrops    int64 // 观战队列满被丢弃的帧
	TotalBroadcastNs  int64 // 广播累计耗时（纳秒）
}

func (m *Metrics) IncCreated() { atomic.AddInt64(&m.SessionsCreated, 1) }
func (m *Metrics) IncLeft() { atomic.AddInt64(&m.SessionsLeft, 1) }
func (m *Metrics) IncExpired() { atomic.AddInt64(&m.SessionsExpired, 1) }
func (m *Metrics) IncRateLimited() { atomic.AddInt64(&m.RateLimited, 1) }
func (m *Metrics) IncForeignID() { atomic.AddInt64(&m.ForeignIDRejected, 1) }
func (m *Metrics) IncUnknownID() { atomic.AddInt64(&m.UnknownIDIgnored, 1) }
func (m *Metrics) IncEmptyBroadcast() { atomic.AddInt64(&m.EmptyBroadcasts, 1) }
func (m *Metrics) IncSpectatorDrop() { atomic.AddInt64(&m.SpectatorDrops, 1) }
func (m *Metrics) AddBroadcast(ns int64) {
	atomic.AddInt64(&m.Broadcasts, 1)
	atomic.AddInt64(&m.TotalBroadcastNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot(ts transport.Stats) map[string]any {
	n := atomic.LoadInt64(&m.Broadcasts)
	total := atomic.LoadInt64(&m.TotalBroadcastNs)
	var avgMs float64
	if n > 0 {
		avgMs = float64(total) / float64(n) / 1e6
	}
	return map[string]any{
		"sessions_created":    atomic.LoadInt64(&m.SessionsCreated),
		"sessions_left":       atomic.LoadInt64(&m.SessionsLeft),
		"sessions_expired":    atomic.LoadInt64(&m.SessionsExpired),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"foreign_id_rejected": atomic.LoadInt64(&m.ForeignIDRejected),
		"unknown_id_ignored":  atomic.LoadInt64(&m.UnknownIDIgnored),
		"broadcasts":          n,
		"empty_broadcasts":    atomic.LoadInt64(&m.EmptyBroadcasts),
		"spectator_drops":     atomic.LoadInt64(&m.SpectatorDrops),
		"avg_broadcast_ms":    avgMs,
		"datagrams_in":        ts.DatagramsIn,
		"datagrams_out":       ts.DatagramsOut,
		"decode_errors":       ts.DecodeErrors,
		"receive_errors":      ts.ReceiveErrors,
		"send_errors":         ts.SendErrors,
		"send_queue_full":     ts.QueueFull,
		"drops_simulated":     ts.DropsSimulated,
	}
}
