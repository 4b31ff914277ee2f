package server

import (
	"time"

	"creaturenet/creature"
	"creaturenet/transport"
)

// Config 服务端配置
type Config struct {
	Transport transport.Config
	HTTPAddr  string // 管理与观战接口，为空则不启动

	BroadcastInterval time.Duration // 广播周期
	AnnounceEvery     int           // 每 N 次广播重发一次全部生物种类，<=0 关闭
	MaxPayload        int           // 单个数据报载荷上限（字节）

	// TrustPayloadID 为 true 时接受消息内携带的任意玩家 ID；默认只接受发送方自己的 ID
	TrustPayloadID bool
	// IdleTimeout 超过该时长没有入站流量的会话被清除，0 为不清除
	IdleTimeout time.Duration

	// 每个来源地址的入站数据报限速
	RatePerSecond float64
	RateBurst     int

	SpawnOrigin  creature.Vec2 // 新玩家初始位置基准
	SpawnSpacing float64       // 按 ID 错开的横向间距
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	tc := transport.DefaultConfig()
	tc.ListenAddr = ":9050"
	return Config{
		Transport:         tc,
		HTTPAddr:          ":8080",
		BroadcastInterval: 40 * time.Millisecond,
		AnnounceEvery:     25,
		MaxPayload:        60000,
		RatePerSecond:     120,
		RateBurst:         60,
		SpawnOrigin:       creature.Vec2{X: 400, Y: 300},
		SpawnSpacing:      20,
	}
}

// SpawnPoint 按 ID 计算确定的初始位置，避免多个玩家重叠
func (c Config) SpawnPoint(id PlayerID) creature.Vec2 {
	return creature.Vec2{
		X: c.SpawnOrigin.X + float64(id)*c.SpawnSpacing,
		Y: c.SpawnOrigin.Y,
	}
}
