package server

import (
	"context"
	"sync/atomic"
	"time"

	"creaturenet/logging"
	"creaturenet/protocol"
	"creaturenet/transport"
)

// Publisher 额外的广播出口（例如观战 WebSocket）
type Publisher interface {
	Publish(payload []byte)
}

// Broadcaster 固定周期把全部会话状态打包发送给每个已连接的来源地址
type Broadcaster struct {
	sessions *SessionManager
	sender   transport.Sender
	extra    Publisher
	metrics  *Metrics

	interval      atomic.Int64 // time.Duration
	announceEvery atomic.Int64
	maxPayload    int
	tickSeq       int64
}

// NewBroadcaster 创建广播循环；extra 可为 nil
func NewBroadcaster(cfg Config, sessions *SessionManager, sender transport.Sender, extra Publisher, metrics *Metrics) *Broadcaster {
	if metrics == nil {
		metrics = &Metrics{}
	}
	b := &Broadcaster{
		sessions:   sessions,
		sender:     sender,
		extra:      extra,
		metrics:    metrics,
		maxPayload: cfg.MaxPayload,
	}
	b.SetInterval(cfg.BroadcastInterval)
	b.SetAnnounceEvery(cfg.AnnounceEvery)
	return b
}

// SetInterval 运行期调整广播周期（下一次 Tick 生效）
func (b *Broadcaster) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultConfig().BroadcastInterval
	}
	b.interval.Store(int64(d))
}

func (b *Broadcaster) Interval() time.Duration { return time.Duration(b.interval.Load()) }

// SetAnnounceEvery 每 N 次广播重发全部生物种类，<=0 关闭
func (b *Broadcaster) SetAnnounceEvery(n int) { b.announceEvery.Store(int64(n)) }

func (b *Broadcaster) AnnounceEvery() int { return int(b.announceEvery.Load()) }

// Run 启动广播循环，阻塞直到 ctx 取消
func (b *Broadcaster) Run(ctx context.Context) {
	interval := b.Interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logging.Log.Infow("broadcast loop started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			logging.Log.Info("broadcast loop stopped")
			return
		case <-ticker.C:
			// 核心循环：清理超时会话 → 取快照 → 编码 → 发送
			b.sessions.Sweep()
			b.Tick()
			if cur := b.Interval(); cur != interval {
				interval = cur
				ticker.Reset(interval)
			}
		}
	}
}

// Tick 执行一次广播，返回发送的载荷（无会话时为 nil）
func (b *Broadcaster) Tick() [][]byte {
	start := time.Now()
	b.tickSeq++
	n := int64(b.AnnounceEvery())
	announceAll := n > 0 && b.tickSeq%n == 0

	frame := b.sessions.TakeFrame(announceAll)
	payloads := protocol.Batch(BuildMessages(frame), b.maxPayload)
	if len(payloads) == 0 {
		b.metrics.IncEmptyBroadcast()
		return nil
	}

	for _, addr := range frame.Endpoints {
		for _, p := range payloads {
			b.sender.Send(addr, p)
		}
	}
	if b.extra != nil {
		for _, p := range payloads {
			b.extra.Publish(p)
		}
	}
	b.metrics.AddBroadcast(time.Since(start).Nanoseconds())
	if b.tickSeq%250 == 0 {
		logging.Log.Debugw("broadcast", "tick", b.tickSeq, "sessions", len(frame.Sessions), "payloads", len(payloads))
	}
	return payloads
}

// BuildMessages 把快照转换成线上消息：离开通知、全部位置、待发送的种类声明
func BuildMessages(f Frame) []protocol.Message {
	msgs := make([]protocol.Message, 0, len(f.Left)+len(f.Sessions)+len(f.Announce))
	for _, id := range f.Left {
		msgs = append(msgs, protocol.PlayerLeave{ID: int(id)})
	}
	for _, s := range f.Sessions {
		if len(s.Positions) == 0 {
			continue
		}
		msgs = append(msgs, protocol.PlayerPositions{ID: s.ID, Positions: s.Positions})
	}
	for _, s := range f.Announce {
		msgs = append(msgs, protocol.PlayerCreature{ID: s.ID, Type: string(s.Creature)})
	}
	return msgs
}
