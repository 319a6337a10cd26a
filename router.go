package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/quantfolio/quantfolio/pkg/config"
	"github.com/quantfolio/quantfolio/pkg/event"
	"github.com/quantfolio/quantfolio/pkg/handler"
	"github.com/quantfolio/quantfolio/pkg/service"
	"github.com/quantfolio/quantfolio/pkg/upstream"
	"github.com/quantfolio/quantfolio/pkg/utils"
)

type Server struct {
	ginEngine *gin.Engine
	cfg       *config.AppConfig
	logger    *slog.Logger
	port      int
}

func NewServer(cfg *config.AppConfig, gdb *gorm.DB) *Server {
	gin.SetMode(gin.ReleaseMode)
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	// CORS middleware: allow common localhost dev origins only.
	ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// No Origin header means it's not a browser CORS request.
		if origin != "" {
			if utils.IsLocalOrigin(origin) {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-User-ID")
			} else {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	server := &Server{
		ginEngine: ginEngine,
		cfg:       cfg,
		logger:    utils.GetLogger(),
	}

	server.SetupRoutes(gdb)

	return server
}

// requireUser extracts the authenticated user from the X-User-ID header.
// Upstream auth terminates before this service; an absent header means the
// request never went through it.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
			return
		}
		c.Set("userID", userID)
		c.Next()
	}
}

func (s *Server) SetupRoutes(gdb *gorm.DB) {
	var cache *redis.Client
	if s.cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     s.cfg.Redis.Addr,
			Password: s.cfg.Redis.Password,
			DB:       s.cfg.Redis.DB,
		})
	}

	portfolioClient := upstream.NewPortfolioClient(s.cfg.PortfolioURL())
	marketClient := upstream.NewMarketClient(s.cfg.MarketURL(), cache)
	ordersClient := upstream.NewOrdersClient(s.cfg.OrdersURL())

	chatStoreService := service.NewChatStoreService(gdb)
	agentService := service.NewAgentService(chatStoreService, s.cfg, portfolioClient, marketClient, ordersClient)
	agentHandler := handler.NewAgentHandler(agentService, chatStoreService)

	s.ginEngine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := s.ginEngine.Group("/api/v1")

	// Event notifications over WebSocket
	// /api/v1/events/ws
	wsHandler := event.NewWSHandler()
	apiGroup.GET("/events/ws", wsHandler.Handle)

	// Agent chat and conversation routes, all user-scoped
	// /api/v1/agent/...
	agentGroup := apiGroup.Group("")
	agentGroup.Use(requireUser())
	agentHandler.RegisterRoutes(agentGroup)
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host(), s.cfg.Port())
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	// Listen first so a busy port fails fast.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	}
	s.logger.Info("Server listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
