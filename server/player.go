package server

import (
	"net"
	"time"

	"golang.org/x/time/rate"

	"creaturenet/creature"
)

// PlayerID 服务端分配的玩家标识（单调递增）
type PlayerID int

// Session 服务端记录的玩家会话；只在 SessionManager 的锁内修改
type Session struct {
	ID        PlayerID
	Endpoint  *net.UDPAddr
	Positions []creature.Vec2 // 最近一次上报的节段位置
	Creature  creature.Type   // 最近一次声明的生物种类
	JoinedAt  time.Time
	LastSeen  time.Time

	limiter *rate.Limiter
}

// SessionInfo 会话的只读副本，用于广播与管理接口
type SessionInfo struct {
	ID        int             `json:"id"`
	Endpoint  string          `json:"endpoint"`
	Creature  creature.Type   `json:"creature"`
	Segments  int             `json:"segments"`
	Head      creature.Vec2   `json:"head"`
	LastSeen  time.Time       `json:"lastSeen"`
	Positions []creature.Vec2 `json:"-"`
	addr      *net.UDPAddr
}

func (s *Session) info() SessionInfo {
	ps := make([]creature.Vec2, len(s.Positions))
	copy(ps, s.Positions)
	var head creature.Vec2
	if len(ps) > 0 {
		head = ps[0]
	}
	return SessionInfo{
		ID:        int(s.ID),
		Endpoint:  s.Endpoint.String(),
		Creature:  s.Creature,
		Segments:  len(ps),
		Head:      head,
		LastSeen:  s.LastSeen,
		Positions: ps,
		addr:      s.Endpoint,
	}
}
