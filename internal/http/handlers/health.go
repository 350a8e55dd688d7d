package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type PingFunc func(ctx context.Context) error

type HealthHandler struct {
	dbPing    PingFunc
	redisPing PingFunc
}

func NewHealthHandler(dbPing, redisPing PingFunc) *HealthHandler {
	return &HealthHandler{dbPing: dbPing, redisPing: redisPing}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz checks the backing stores. Redis being down degrades but does not
// fail readiness, since the limiter fails open without it.
func (h *HealthHandler) Readyz(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 800*time.Millisecond)
	defer cancel()

	if h.dbPing != nil {
		if err := h.dbPing(cctx); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"db":     "down",
			})
			return
		}
	}

	redisState := "ok"

	if h.redisPing != nil {
		if err := h.redisPing(cctx); err != nil {
			redisState = "down"
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"redis":  redisState,
	})
}
