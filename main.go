package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"creaturenet/client"
	"creaturenet/creature"
	"creaturenet/logging"
	"creaturenet/server"
)

// creaturenet 入口：-mode server 启动 UDP 中继与管理接口，-mode client 启动无界面客户端
func main() {
	var (
		mode      string
		addr      string
		serverIP  string
		httpAddr  string
		kind      string
		target    string
		broadcast time.Duration
		tick      time.Duration
		idle      time.Duration
		trustID   bool
		drop      float64
		rateLimit float64
		burst     int
		logFile   string
		logLevel  string
		stderr    bool
	)
	sdef := server.DefaultConfig()
	cdef := client.DefaultConfig()
	flag.StringVar(&mode, "mode", "server", "run mode: server | client")
	flag.StringVar(&addr, "addr", sdef.Transport.ListenAddr, "server UDP listen address")
	flag.StringVar(&serverIP, "server", cdef.ServerAddr, "client: server ip:port")
	flag.StringVar(&httpAddr, "http", sdef.HTTPAddr, "server admin/spectator HTTP address, empty disables")
	flag.StringVar(&kind, "creature", string(cdef.Creature), "client creature: Lizard | Frog | Snake")
	flag.StringVar(&target, "target", "orbit", "client target source: orbit | none")
	flag.DurationVar(&broadcast, "broadcast", sdef.BroadcastInterval, "server broadcast interval")
	flag.DurationVar(&tick, "tick", cdef.Tick, "client simulation tick")
	flag.DurationVar(&idle, "idle-timeout", sdef.IdleTimeout, "server idle session timeout, 0 disables")
	flag.BoolVar(&trustID, "trust-payload-id", sdef.TrustPayloadID, "server accepts any player id carried in messages")
	flag.Float64Var(&drop, "drop", 0, "simulated inbound drop probability [0,1]")
	flag.Float64Var(&rateLimit, "rate", sdef.RatePerSecond, "server per-endpoint datagrams per second, 0 disables")
	flag.IntVar(&burst, "burst", sdef.RateBurst, "server per-endpoint burst")
	flag.StringVar(&logFile, "log", "creaturenet.log", "log file path, empty logs to stderr")
	flag.StringVar(&logLevel, "log-level", "info", "log level: debug | info | warn | error")
	flag.BoolVar(&stderr, "stderr", false, "also write logs to stderr")
	flag.Parse()

	// 使用第三方 zap 日志库写入滚动日志文件
	if err := logging.Init(logging.Options{File: logFile, Level: logLevel, Stderr: stderr}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(2)
	}
	defer logging.Sync()

	// 优雅退出（Ctrl+C）
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logging.Log.Info("Shutting down...")
		cancel()
	}()

	var err error
	switch mode {
	case "server":
		cfg := sdef
		cfg.Transport.ListenAddr = addr
		cfg.Transport.DropProbability = drop
		cfg.HTTPAddr = httpAddr
		cfg.BroadcastInterval = broadcast
		cfg.IdleTimeout = idle
		cfg.TrustPayloadID = trustID
		cfg.RatePerSecond = rateLimit
		cfg.RateBurst = burst
		err = runServer(ctx, cfg)
	case "client":
		cfg := cdef
		cfg.ServerAddr = serverIP
		cfg.Transport.DropProbability = drop
		cfg.Tick = tick
		t, known := creature.ParseType(kind)
		if !known {
			logging.Log.Warnw("unknown creature type, using default", "type", kind, "default", t)
		}
		cfg.Creature = t
		err = runClient(ctx, cfg, target)
	default:
		err = fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		logging.Log.Errorw("exit with error", "error", err)
		logging.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg server.Config) error {
	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func runClient(ctx context.Context, cfg client.Config, target string) error {
	var src client.TargetSource
	switch target {
	case "orbit":
		src = client.Orbit{Center: cfg.SpawnOrigin, Radius: 150, AngularSpeed: 1}
	case "none":
		src = client.None{}
	default:
		return fmt.Errorf("unknown target source %q", target)
	}
	c, err := client.New(cfg, src)
	if err != nil {
		return err
	}
	return c.Run(ctx)
}
