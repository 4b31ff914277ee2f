package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"creaturenet/creature"
	"creaturenet/logging"
	"creaturenet/protocol"
	"creaturenet/transport"
)

// Client 本地模拟自己的生物并按 tick 上报位置，同时应用服务端广播的其他玩家状态
type Client struct {
	cfg      Config
	Registry *creature.Registry

	server    *net.UDPAddr
	sender    transport.Sender
	transport *transport.Transport
	target    TargetSource

	// 收到 PlayerId 后置位，下一个 tick 声明生物种类
	announce atomic.Bool

	// 以下字段只在 tick 协程中访问
	lastJoin time.Time
	ticks    int64
	elapsed  float64
}

// New 解析服务端地址并绑定本地 UDP 端口
func New(cfg Config, target TargetSource) (*Client, error) {
	server, err := net.ResolveUDPAddr("udp", cfg.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve server address %q: %w", cfg.ServerAddr, err)
	}
	c := newClient(cfg, server, target)
	tr, err := transport.Listen(cfg.Transport, c)
	if err != nil {
		return nil, fmt.Errorf("start transport: %w", err)
	}
	c.transport = tr
	c.sender = tr
	return c, nil
}

func newClient(cfg Config, server *net.UDPAddr, target TargetSource) *Client {
	if target == nil {
		target = None{}
	}
	if _, ok := creature.ParseType(string(cfg.Creature)); !ok {
		cfg.Creature = creature.DefaultType
	}
	return &Client{
		cfg:      cfg,
		Registry: creature.NewRegistry(),
		server:   server,
		target:   target,
	}
}

// LocalAddr 本地 UDP 地址
func (c *Client) LocalAddr() *net.UDPAddr {
	return c.transport.LocalAddr()
}

// Run 启动接收与 tick 循环，阻塞直到 ctx 取消；退出前向服务端发送离开通知
func (c *Client) Run(ctx context.Context) error {
	trCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var trErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		trErr = c.transport.Run(trCtx)
	}()

	logging.Log.Infow("client started", "server", c.server.String(), "local", c.LocalAddr().String(), "creature", c.cfg.Creature)
	c.loop(ctx)

	c.leave()
	cancel()
	wg.Wait()
	logging.Log.Info("client stopped")
	return trErr
}

func (c *Client) loop(ctx context.Context) {
	interval := c.cfg.Tick
	if interval <= 0 {
		interval = DefaultConfig().Tick
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			c.Tick(now, dt)
		}
	}
}

// Tick 推进一次本地模拟：未分配 ID 时发送加入请求，否则上报自己的位置
func (c *Client) Tick(now time.Time, dt float64) {
	id, ok := c.Registry.LocalID()
	if !ok {
		if c.lastJoin.IsZero() || now.Sub(c.lastJoin) >= c.cfg.JoinRetry {
			c.lastJoin = now
			c.sender.Send(c.server, protocol.Encode(protocol.PlayerIDMsg{}))
			logging.Log.Debugw("join request sent", "server", c.server.String())
		}
		return
	}

	c.elapsed += dt
	positions, ok := c.Registry.StepLocal(c.target.Target(c.elapsed), dt)
	if !ok {
		return
	}
	c.ticks++

	msgs := []protocol.Message{protocol.PlayerPositions{ID: id, Positions: positions}}
	if c.announce.Swap(false) || (c.cfg.AnnounceEvery > 0 && c.ticks%int64(c.cfg.AnnounceEvery) == 0) {
		msgs = append(msgs, protocol.PlayerCreature{ID: id, Type: string(c.cfg.Creature)})
	}
	c.sender.Send(c.server, protocol.EncodeAll(msgs))
}

// leave 发送离开通知；传输层退出前会写完发送队列
func (c *Client) leave() {
	id, ok := c.Registry.LocalID()
	if !ok {
		return
	}
	c.sender.Send(c.server, protocol.Encode(protocol.PlayerLeave{ID: id}))
	logging.Log.Infow("leave notice sent", "player", id)
}

// HandleDatagram 实现 transport.Handler，把服务端消息应用到本地注册表
func (c *Client) HandleDatagram(from *net.UDPAddr, msgs []protocol.Message) {
	// 只接受配置的服务端地址，其他来源可能伪造 PlayerId
	if from == nil || from.String() != c.server.String() {
		logging.Log.Debugw("ignoring datagram from unexpected endpoint", "from", from.String(), "server", c.server.String())
		return
	}
	for _, msg := range msgs {
		switch v := msg.(type) {
		case protocol.PlayerIDMsg:
			c.assign(v.ID)
		case protocol.PlayerPositions:
			// 自己的生物以本地模拟为准，忽略服务端回传
			if c.Registry.IsLocal(v.ID) {
				continue
			}
			if c.Registry.ApplyPositions(v.ID, v.Positions) {
				logging.Log.Infow("remote player appeared", "player", v.ID)
			}
		case protocol.PlayerCreature:
			if c.Registry.IsLocal(v.ID) {
				continue
			}
			c.Registry.ApplyType(v.ID, v.CreatureType(), c.cfg.SpawnPoint(v.ID))
		case protocol.PlayerLeave:
			local := c.Registry.IsLocal(v.ID)
			if !c.Registry.Remove(v.ID) {
				continue
			}
			if local {
				// 被服务端移除（超时或管理接口），重新走加入流程
				logging.Log.Warnw("local player removed by server, rejoining", "player", v.ID)
				continue
			}
			logging.Log.Infow("remote player left", "player", v.ID)
		}
	}
}

func (c *Client) assign(id int) {
	if id <= 0 {
		return
	}
	if cur, ok := c.Registry.LocalID(); ok && cur == id {
		return
	}
	c.Registry.SetLocal(id, c.cfg.Creature, c.cfg.SpawnPoint(id))
	c.announce.Store(true)
	logging.Log.Infow("player id assigned", "player", id, "creature", c.cfg.Creature)
}
