package transport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"creaturenet/logging"
	"creaturenet/protocol"
)

// MaxPacketSize UDP 最大载荷
const MaxPacketSize = 65535

// Handler 接收解码后的消息；同一个数据报的消息一次性交付
type Handler interface {
	HandleDatagram(from *net.UDPAddr, msgs []protocol.Message)
}

// HandlerFunc 函数适配器
type HandlerFunc func(from *net.UDPAddr, msgs []protocol.Message)

func (f HandlerFunc) HandleDatagram(from *net.UDPAddr, msgs []protocol.Message) { f(from, msgs) }

// Sender 即发即弃的发送原语
type Sender interface {
	Send(to *net.UDPAddr, payload []byte)
}

// Config 传输层配置
type Config struct {
	ListenAddr      string        // 如 ":9050"；客户端用 ":0"
	QueueSize       int           // 发送队列容量
	ReadTimeout     time.Duration // 读超时，用于轮询退出
	DropProbability float64       // 模拟入站丢包概率 [0,1]
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		ListenAddr:  ":0",
		QueueSize:   256,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Stats 传输层计数
type Stats struct {
	DatagramsIn    int64
	DatagramsOut   int64
	DecodeErrors   int64
	ReceiveErrors  int64
	SendErrors     int64
	QueueFull      int64
	DropsSimulated int64
}

type outbound struct {
	to      *net.UDPAddr
	payload []byte
}

// Transport UDP 收发：一个接收协程、一个发送协程
type Transport struct {
	cfg     Config
	conn    *net.UDPConn
	handler Handler
	send    chan outbound

	dropProb atomic.Uint64 // math.Float64bits

	datagramsIn    atomic.Int64
	datagramsOut   atomic.Int64
	decodeErrors   atomic.Int64
	receiveErrors  atomic.Int64
	sendErrors     atomic.Int64
	queueFull      atomic.Int64
	dropsSimulated atomic.Int64

	rngMu sync.Mutex
	rng   *rand.Rand

	running atomic.Bool
	wg      sync.WaitGroup
}

// Listen 绑定本地 UDP 端口
func Listen(cfg Config, h Handler) (*Transport, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultConfig().ReadTimeout
	}
	addr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve listen address %q: %w", cfg.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %q: %w", cfg.ListenAddr, err)
	}
	t := &Transport{
		cfg:     cfg,
		conn:    conn,
		handler: h,
		send:    make(chan outbound, cfg.QueueSize),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	t.SetDropProbability(cfg.DropProbability)
	return t, nil
}

// LocalAddr 实际绑定的地址
func (t *Transport) LocalAddr() *net.UDPAddr {
	return t.conn.LocalAddr().(*net.UDPAddr)
}

// SetDropProbability 运行期调整模拟丢包率
func (t *Transport) SetDropProbability(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	t.dropProb.Store(math.Float64bits(p))
}

// DropProbability 当前模拟丢包率
func (t *Transport) DropProbability() float64 {
	return math.Float64frombits(t.dropProb.Load())
}

// Run 启动收发协程，阻塞直到 ctx 取消；返回前关闭套接字
func (t *Transport) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return errors.New("transport already running")
	}
	t.wg.Add(2)
	go t.readPump(ctx)
	go t.writePump(ctx)
	<-ctx.Done()
	t.wg.Wait()
	return t.conn.Close()
}

// Send 将数据报压入发送队列（非阻塞，满则丢弃并计数）
func (t *Transport) Send(to *net.UDPAddr, payload []byte) {
	if to == nil || len(payload) == 0 {
		return
	}
	select {
	case t.send <- outbound{to: to, payload: payload}:
	default:
		t.queueFull.Add(1)
		logging.Log.Debugw("send queue full, dropping datagram", "to", to.String(), "bytes", len(payload))
	}
}

// Stats 计数快照
func (t *Transport) Stats() Stats {
	return Stats{
		DatagramsIn:    t.datagramsIn.Load(),
		DatagramsOut:   t.datagramsOut.Load(),
		DecodeErrors:   t.decodeErrors.Load(),
		ReceiveErrors:  t.receiveErrors.Load(),
		SendErrors:     t.sendErrors.Load(),
		QueueFull:      t.queueFull.Load(),
		DropsSimulated: t.dropsSimulated.Load(),
	}
}

// readPump 独立协程，持续接收数据报并交给 Handler；任何单次失败都只记录后继续
func (t *Transport) readPump(ctx context.Context) {
	defer t.wg.Done()
	buf := make([]byte, MaxPacketSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
		n, from, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			t.receiveErrors.Add(1)
			logging.Log.Warnw("udp receive failed", "error", err)
			continue
		}
		t.datagramsIn.Add(1)

		if t.shouldDrop() {
			t.dropsSimulated.Add(1)
			continue
		}
		t.deliver(from, buf[:n])
	}
}

func (t *Transport) deliver(from *net.UDPAddr, payload []byte) {
	defer func() {
		// Handler 的异常不能终止接收循环
		if r := recover(); r != nil {
			logging.Log.Errorw("datagram handler panicked", "from", from.String(), "panic", r)
		}
	}()

	msgs, errs := protocol.DecodePayload(payload)
	for _, err := range errs {
		t.decodeErrors.Add(1)
		logging.Log.Warnw("dropping undecodable line", "from", from.String(), "error", err)
	}
	if t.handler != nil {
		t.handler.HandleDatagram(from, msgs)
	}
}

// writePump 独立协程，负责从 send 队列写出到 UDP
func (t *Transport) writePump(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// 退出前写完已入队的数据报（例如离开通知）
			for {
				select {
				case out := <-t.send:
					t.write(out)
				default:
					return
				}
			}
		case out := <-t.send:
			t.write(out)
		}
	}
}

func (t *Transport) write(out outbound) {
	_ = t.conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := t.conn.WriteToUDP(out.payload, out.to); err != nil {
		t.sendErrors.Add(1)
		logging.Log.Warnw("udp send failed", "to", out.to.String(), "error", err)
		return
	}
	t.datagramsOut.Add(1)
}

func (t *Transport) shouldDrop() bool {
	p := t.DropProbability()
	if p <= 0 {
		return false
	}
	t.rngMu.Lock()
	defer t.rngMu.Unlock()
	return t.rng.Float64() < p
}
