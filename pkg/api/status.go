package api

import (
	"net/http"
	"time"

	"github.com/ZentaChain/zentalk-gateway/pkg/gateway"
	"github.com/ZentaChain/zentalk-gateway/pkg/rpc"
	"github.com/ZentaChain/zentalk-gateway/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// StatsResponse is returned by /api/v1/stats.
type StatsResponse struct {
	Gateway *gateway.Stats   `json:"gateway,omitempty"`
	RPC     *rpc.Stats       `json:"rpc,omitempty"`
	Storage map[string]int64 `json:"storage,omitempty"`
}

// SessionsResponse is returned by /api/v1/sessions.
type SessionsResponse struct {
	Count    int            `json:"count"`
	Sessions []session.Info `json:"sessions"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	var resp StatsResponse
	if s.src.Gateway != nil {
		st := s.src.Gateway.Stats()
		resp.Gateway = &st
	}
	if s.src.Dispatcher != nil {
		st := s.src.Dispatcher.Stats()
		resp.RPC = &st
	}
	if s.src.Storage != nil {
		st, err := s.src.Storage.Stats()
		if err != nil {
			s.log.Error("storage stats", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "storage unavailable"})
			return
		}
		resp.Storage = st
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSessions(c *gin.Context) {
	if s.src.Sessions == nil {
		c.JSON(http.StatusOK, SessionsResponse{Sessions: []session.Info{}})
		return
	}
	list := s.src.Sessions.List()
	c.JSON(http.StatusOK, SessionsResponse{Count: len(list), Sessions: list})
}
