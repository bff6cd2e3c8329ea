package controlplane

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/betbot/spreadbot/internal/domain"
	"github.com/betbot/spreadbot/internal/store"
)

var log = logrus.WithField("component", "controlplane")

// StatusSource 运行状态快照来源（bot 主程序注入）
type StatusSource interface {
	FeedLive() bool
	RiskSnapshot() domain.RiskState
}

// Server 控制面 HTTP 服务：状态查询、紧急暂停、档位配置热更新。
// 面向运维，不做鉴权，只应监听 localhost 或内网。
type Server struct {
	store  *store.Store
	status StatusSource
}

func NewServer(st *store.Store, status StatusSource) *Server {
	return &Server{store: st, status: status}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/pause", s.handlePause(true))
	api.POST("/resume", s.handlePause(false))
	api.GET("/positions", s.handlePositions)
	api.GET("/tiers/:asset", s.handleTiersGet)
	api.PUT("/tiers/:asset", s.handleTiersPut)

	return r
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{
		"paused": s.store.IsPaused(),
	}
	if s.status != nil {
		risk := s.status.RiskSnapshot()
		resp["feed_live"] = s.status.FeedLive()
		resp["bankroll_usd"] = float64(risk.BankrollCents) / 100
		resp["consecutive_losses"] = risk.ConsecutiveLosses
		resp["rolling_win_rate"] = risk.RollingWinRate()
		if !risk.CooldownUntil.IsZero() {
			resp["cooldown_until"] = risk.CooldownUntil
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePause(paused bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.store.SetPaused(paused); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		log.Warnf("🚨 紧急暂停开关: paused=%v (via %s)", paused, c.ClientIP())
		c.JSON(http.StatusOK, gin.H{"paused": paused})
	}
}

func (s *Server) handlePositions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	positions, err := s.store.RecentPositions(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, positions)
}

func (s *Server) handleTiersGet(c *gin.Context) {
	tiers, ok := s.store.TierTable(c.Param("asset"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no tier config for asset"})
		return
	}
	c.JSON(http.StatusOK, tiers)
}

func (s *Server) handleTiersPut(c *gin.Context) {
	var tiers domain.TierTable
	if err := c.ShouldBindJSON(&tiers); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	asset := c.Param("asset")
	if err := s.store.UpsertTierConfig(asset, tiers); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Infof("⚙️ 档位配置已更新: asset=%s tiers=%d", asset, len(tiers))
	c.JSON(http.StatusOK, gin.H{"asset": asset, "tiers": len(tiers)})
}

// StartAsync 启动控制面服务（非阻塞），ctx 取消时优雅关闭。
func (s *Server) StartAsync(ctx context.Context, listenAddr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Addr: listenAddr, Handler: s.Router()}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("控制面服务异常退出: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv, nil
}
