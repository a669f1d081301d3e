package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pairgogo/backend/internal/config"
	"pairgogo/backend/internal/matchhub"
	"pairgogo/backend/internal/storage"
)

// Handler exposes the HTTP surface of the matchmaking engine.
type Handler struct {
	Service *matchhub.Service
	Auth    config.AuthConfig
	Logger  *zap.Logger
}

// NewHandler constructs the handler set.
func NewHandler(svc *matchhub.Service, auth config.AuthConfig, logger *zap.Logger) *Handler {
	return &Handler{Service: svc, Auth: auth, Logger: logger}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetStats reports engine counters: online sessions, pool depth, live
// proposals.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.Stats())
}

// GetRoom returns the chat room a confirmed pairing produced, so the chat
// service can validate a room ID handed to it by a client.
func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.Service.Room(c.Param("id"))
	if errors.Is(err, storage.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		h.Logger.Error("room lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, room)
}
