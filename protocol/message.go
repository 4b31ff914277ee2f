package protocol

import "creaturenet/creature"

// Kind 消息种类（行首前缀）
type Kind string

const (
	KindPlayerID        Kind = "PlayerId"
	KindPlayerPositions Kind = "PlayerPositions"
	KindPlayerCreature  Kind = "PlayerCreature"
	KindPlayerLeave     Kind = "PlayerLeave"
)

// Delimiter 消息分隔符，每条消息之后都会追加
const Delimiter = "\n"

// Message 线上消息（标签联合），每行恰好一条
type Message interface {
	Kind() Kind
	PlayerID() int
}

// PlayerIDMsg 服务端分配的玩家 ID；客户端以 ID 0 发送表示请求加入
type PlayerIDMsg struct {
	ID int
}

// PlayerPositions 玩家生物的全部节段位置，头在前
type PlayerPositions struct {
	ID        int
	Positions []creature.Vec2
}

// PlayerCreature 玩家生物种类；Type 保留原始字符串，解析交由接收方
type PlayerCreature struct {
	ID   int
	Type string
}

// PlayerLeave 显式断开通知
type PlayerLeave struct {
	ID int
}

func (m PlayerIDMsg) Kind() Kind { return KindPlayerID }
func (m PlayerIDMsg) PlayerID() int { return m.ID }

func (m PlayerPositions) Kind() Kind { return KindPlayerPositions }
func (m PlayerPositions) PlayerID() int { return m.ID }

func (m PlayerCreature) Kind() Kind { return KindPlayerCreature }
func (m PlayerCreature) PlayerID() int { return m.ID }

func (m PlayerLeave) Kind() Kind { return KindPlayerLeave }
func (m PlayerLeave) PlayerID() int { return m.ID }

// CreatureType 解析种类，未知时回落到默认种类
func (m PlayerCreature) CreatureType() creature.Type {
	t, _ := creature.ParseType(m.Type)
	return t
}
