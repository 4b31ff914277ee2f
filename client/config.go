package client

import (
	"time"

	"creaturenet/creature"
	"creaturenet/transport"
)

// Config 客户端配置
type Config struct {
	Transport  transport.Config
	ServerAddr string        // 服务端 ip:port
	Creature   creature.Type // 本地玩家的生物种类

	Tick          time.Duration // 本地模拟与上报周期
	JoinRetry     time.Duration // 未分配 ID 时重发加入请求的间隔
	AnnounceEvery int           // 每 N 个 tick 重发一次生物种类，<=0 只在分配时发送

	// 与服务端一致的出生点规则，用于还没收到位置的条目
	SpawnOrigin  creature.Vec2
	SpawnSpacing float64
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Transport:     transport.DefaultConfig(),
		ServerAddr:    "127.0.0.1:9050",
		Creature:      creature.DefaultType,
		Tick:          16 * time.Millisecond,
		JoinRetry:     500 * time.Millisecond,
		AnnounceEvery: 60,
		SpawnOrigin:   creature.Vec2{X: 400, Y: 300},
		SpawnSpacing:  20,
	}
}

// SpawnPoint 按 ID 计算初始位置
func (c Config) SpawnPoint(id int) creature.Vec2 {
	return creature.Vec2{X: c.SpawnOrigin.X + float64(id)*c.SpawnSpacing, Y: c.SpawnOrigin.Y}
}
