package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// StatusHandler expone el estado de la base de datos para la página de
// login, que lo consulta antes de habilitar el formulario.
type StatusHandler struct {
	logger *zap.Logger
	pool   *pgxpool.Pool
}

func NewStatusHandler(logger *zap.Logger, pool *pgxpool.Pool) *StatusHandler {
	return &StatusHandler{logger: logger, pool: pool}
}

// DBStatus maneja GET /api/db-status.
func (h *StatusHandler) DBStatus(c *gin.Context) {
	if h.pool == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}
	if err := h.pool.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("db ping failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
