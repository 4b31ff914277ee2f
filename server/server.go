package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"creaturenet/logging"
	"creaturenet/transport"
)

// Server 组装会话表、传输层、广播循环与管理接口
type Server struct {
	cfg Config

	Sessions    *SessionManager
	Broadcaster *Broadcaster
	Spectators  *SpectatorHub
	Metrics     *Metrics

	transport *transport.Transport
	httpSrv   *http.Server
}

// New 绑定 UDP 端口并创建各组件；HTTP 在 Run 中启动
func New(cfg Config) (*Server, error) {
	metrics := &Metrics{}
	sessions := NewSessionManager(cfg, metrics)
	tr, err := transport.Listen(cfg.Transport, sessions)
	if err != nil {
		return nil, fmt.Errorf("start transport: %w", err)
	}
	sessions.Bind(tr)

	hub := NewSpectatorHub(metrics)
	s := &Server{
		cfg:         cfg,
		Sessions:    sessions,
		Broadcaster: NewBroadcaster(cfg, sessions, tr, hub, metrics),
		Spectators:  hub,
		Metrics:     metrics,
		transport:   tr,
	}
	if cfg.HTTPAddr != "" {
		s.httpSrv = &http.Server{Addr: cfg.HTTPAddr, Handler: s.Handler()}
	}
	return s, nil
}

// Addr UDP 实际监听地址
func (s *Server) Addr() *net.UDPAddr {
	return s.transport.LocalAddr()
}

// Handler 管理与观战路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.Spectators.HandleWS)
	mux.HandleFunc("/admin/config", s.HandleAdminConfig)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/sessions", s.HandleSessions)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Run 启动接收、广播与 HTTP，阻塞直到 ctx 取消
func (s *Server) Run(ctx context.Context) error {
	logging.Log.Infow("server listening", "udp", s.Addr().String(), "http", s.cfg.HTTPAddr)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := s.transport.Run(ctx); err != nil {
			errCh <- fmt.Errorf("transport: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		s.Broadcaster.Run(ctx)
	}()

	if s.httpSrv != nil {
		go func() {
			if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Log.Errorw("http listen failed", "addr", s.cfg.HTTPAddr, "error", err)
				errCh <- fmt.Errorf("http: %w", err)
			}
		}()
	}

	<-ctx.Done()
	logging.Log.Info("shutting down server")
	if s.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = s.httpSrv.Shutdown(shutdownCtx)
		cancel()
	}
	s.Spectators.Close()
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func (s *Server) transportStats() transport.Stats {
	if s.transport == nil {
		return transport.Stats{}
	}
	return s.transport.Stats()
}
