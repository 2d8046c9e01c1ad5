// Package http 提供预测服务的HTTP接口
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	AllowedOrigins []string
	MaxBodyBytes   int64
	RateLimit      float64 // 每秒请求数, 0 表示不限制
	RateBurst      int
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           5001,
		Timeout:        30 * time.Second,
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   1 << 20,
		RateLimit:      50,
		RateBurst:      100,
	}
}

// NewServer 创建HTTP服务器
func NewServer(config ServerConfig, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      NewHandler(config, deps),
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
		logger: deps.Logger,
	}
}

// NewHandler 注册路由并包装中间件链
func NewHandler(config ServerConfig, deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	RegisterHandlers(mux, deps)

	maxBody := config.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	chain := Chain(
		RecoveryMiddleware(deps.Logger),                         // 1. 捕获panic
		LoggerMiddleware(deps.Logger),                           // 2. 请求日志
		SecurityHeadersMiddleware,                               // 3. 安全头
		CORSMiddleware(config.AllowedOrigins),                   // 4. CORS
		RateLimitMiddleware(config.RateLimit, config.RateBurst), // 5. 限流
		RequestSizeMiddleware(maxBody),                          // 6. 请求体大小
	)
	return chain(mux)
}

// Serve 在已有的 listener 上提供服务, 阻塞直到 Stop
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("starting HTTP server", zap.String("addr", listener.Addr().String()))

	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr 返回配置的监听地址
func (s *Server) Addr() string {
	return s.server.Addr
}
