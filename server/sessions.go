package server

import (
	"net"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"creaturenet/creature"
	"creaturenet/logging"
	"creaturenet/protocol"
	"creaturenet/transport"
)

// SessionManager 来源地址与玩家 ID 的绑定；入站接收协程写，广播协程只读快照
type SessionManager struct {
	mu         sync.RWMutex
	byID       map[PlayerID]*Session
	byEndpoint map[string]PlayerID
	nextID     PlayerID

	// 待广播的生物种类声明与离开通知
	pendingCreature map[PlayerID]struct{}
	pendingLeave    []PlayerID

	// 运行期可调；初始值取自 Config，之后以这里为准
	trustPayloadID bool
	idleTimeout    time.Duration

	spawn         func(PlayerID) creature.Vec2
	ratePerSecond float64
	rateBurst     int

	sender  transport.Sender
	metrics *Metrics
	now     func() time.Time
}

// NewSessionManager 创建会话表；sender 可稍后通过 Bind 设置
func NewSessionManager(cfg Config, metrics *Metrics) *SessionManager {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &SessionManager{
		byID:            make(map[PlayerID]*Session),
		byEndpoint:      make(map[string]PlayerID),
		nextID:          1,
		pendingCreature: make(map[PlayerID]struct{}),
		trustPayloadID:  cfg.TrustPayloadID,
		idleTimeout:     cfg.IdleTimeout,
		spawn:           cfg.SpawnPoint,
		ratePerSecond:   cfg.RatePerSecond,
		rateBurst:       cfg.RateBurst,
		metrics:         metrics,
		now:             time.Now,
	}
}

// Bind 设置回复 PlayerId 所用的发送端
func (m *SessionManager) Bind(sender transport.Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sender = sender
}

// SetTrustPayloadID 运行期切换是否信任消息内携带的 ID
func (m *SessionManager) SetTrustPayloadID(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trustPayloadID = v
}

// SetIdleTimeout 运行期调整会话超时
func (m *SessionManager) SetIdleTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.idleTimeout = d
}

// Tunables 当前可调参数
func (m *SessionManager) Tunables() (trustPayloadID bool, idleTimeout time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trustPayloadID, m.idleTimeout
}

// HandleDatagram 入站分发：未知来源先分配 ID 并回复，再逐条应用消息
func (m *SessionManager) HandleDatagram(from *net.UDPAddr, msgs []protocol.Message) {
	if from == nil {
		return
	}
	var replies [][]byte

	m.mu.Lock()
	s, created := m.sessionFor(from)
	if created {
		replies = append(replies, protocol.Encode(protocol.PlayerIDMsg{ID: int(s.ID)}))
	}
	if !s.limiter.Allow() {
		sender := m.sender
		m.mu.Unlock()
		m.metrics.IncRateLimited()
		logging.Log.Debugw("rate limited datagram", "from", from.String(), "player", s.ID)
		m.reply(sender, from, replies)
		return
	}
	s.LastSeen = m.now()

	for _, msg := range msgs {
		switch v := msg.(type) {
		case protocol.PlayerIDMsg:
			// 客户端的加入请求；回复可能丢失，已有会话时重发
			if !created {
				replies = append(replies, protocol.Encode(protocol.PlayerIDMsg{ID: int(s.ID)}))
			}
		case protocol.PlayerPositions:
			target, ok := m.target(s, v.ID)
			if !ok {
				continue
			}
			target.Positions = append(target.Positions[:0], v.Positions...)
		case protocol.PlayerCreature:
			target, ok := m.target(s, v.ID)
			if !ok {
				continue
			}
			t, known := creature.ParseType(v.Type)
			if !known {
				logging.Log.Infow("unknown creature type, using default", "player", v.ID, "type", v.Type, "default", t)
			}
			if target.Creature != t {
				logging.Log.Infow("player creature changed", "player", target.ID, "creature", t)
			}
			target.Creature = t
			m.pendingCreature[target.ID] = struct{}{}
		case protocol.PlayerLeave:
			target, ok := m.target(s, v.ID)
			if !ok {
				continue
			}
			m.removeLocked(target.ID)
			m.metrics.IncLeft()
			logging.Log.Infow("player left", "player", target.ID, "endpoint", target.Endpoint.String())
		}
	}
	sender := m.sender
	m.mu.Unlock()

	m.reply(sender, from, replies)
}

// sessionFor 查找或新建来源地址对应的会话；调用方持有写锁
func (m *SessionManager) sessionFor(from *net.UDPAddr) (*Session, bool) {
	key := from.String()
	if id, ok := m.byEndpoint[key]; ok {
		if s, ok := m.byID[id]; ok {
			return s, false
		}
	}
	id := m.nextID
	m.nextID++
	now := m.now()
	s := &Session{
		ID:        id,
		Endpoint:  from,
		Positions: []creature.Vec2{m.spawn(id)},
		Creature:  creature.DefaultType,
		JoinedAt:  now,
		LastSeen:  now,
		limiter:   m.newLimiter(),
	}
	m.byID[id] = s
	m.byEndpoint[key] = id
	// 新玩家需要知道所有人的生物种类，其他人也需要知道新玩家的
	for other := range m.byID {
		m.pendingCreature[other] = struct{}{}
	}
	m.metrics.IncCreated()
	logging.Log.Infow("player joined", "player", id, "endpoint", key)
	return s, true
}

// target 解析消息携带的 ID；默认只允许操作发送方自己的会话
func (m *SessionManager) target(sender *Session, id int) (*Session, bool) {
	pid := PlayerID(id)
	if !m.trustPayloadID && pid != sender.ID {
		m.metrics.IncForeignID()
		logging.Log.Debugw("rejecting message for foreign player id", "sender", sender.ID, "id", id)
		return nil, false
	}
	s, ok := m.byID[pid]
	if !ok {
		m.metrics.IncUnknownID()
		logging.Log.Debugw("ignoring message for unknown player id", "sender", sender.ID, "id", id)
		return nil, false
	}
	return s, true
}

func (m *SessionManager) newLimiter() *rate.Limiter {
	if m.ratePerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := m.rateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(m.ratePerSecond), burst)
}

func (m *SessionManager) reply(sender transport.Sender, to *net.UDPAddr, replies [][]byte) {
	if sender == nil {
		return
	}
	for _, b := range replies {
		sender.Send(to, b)
	}
}

func (m *SessionManager) removeLocked(id PlayerID) {
	s, ok := m.byID[id]
	if !ok {
		return
	}
	delete(m.byID, id)
	if cur, ok := m.byEndpoint[s.Endpoint.String()]; ok && cur == id {
		delete(m.byEndpoint, s.Endpoint.String())
	}
	delete(m.pendingCreature, id)
	m.pendingLeave = append(m.pendingLeave, id)
}

// Remove 显式移除会话（例如管理接口）
func (m *SessionManager) Remove(id PlayerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return false
	}
	m.removeLocked(id)
	return true
}

// Sweep 清除超时会话，返回被清除的 ID
func (m *SessionManager) Sweep() []PlayerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idleTimeout <= 0 {
		return nil
	}
	cutoff := m.now().Add(-m.idleTimeout)
	var expired []PlayerID
	for id, s := range m.byID {
		if s.LastSeen.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	for _, id := range expired {
		m.removeLocked(id)
		m.metrics.IncExpired()
		logging.Log.Infow("player session expired", "player", id)
	}
	return expired
}

// Get 单个会话的副本
func (m *SessionManager) Get(id PlayerID) (SessionInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return SessionInfo{}, false
	}
	return s.info(), true
}

// Snapshot 所有会话的副本，按 ID 升序
func (m *SessionManager) Snapshot() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *SessionManager) snapshotLocked() []SessionInfo {
	out := make([]SessionInfo, 0, len(m.byID))
	for _, s := range m.byID {
		out = append(out, s.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len 会话数量
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Frame 一次广播所需的原子快照
type Frame struct {
	Sessions  []SessionInfo
	Announce  []SessionInfo // 需要声明生物种类的会话
	Left      []PlayerID
	Endpoints []*net.UDPAddr
}

// TakeFrame 取出广播快照并清空待发送的声明；announceAll 为 true 时声明全部种类
func (m *SessionManager) TakeFrame(announceAll bool) Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := Frame{Sessions: m.snapshotLocked(), Left: m.pendingLeave}
	m.pendingLeave = nil
	for _, s := range f.Sessions {
		if _, ok := m.pendingCreature[PlayerID(s.ID)]; ok || announceAll {
			f.Announce = append(f.Announce, s)
		}
		f.Endpoints = append(f.Endpoints, s.addr)
	}
	m.pendingCreature = make(map[PlayerID]struct{})
	return f
}
