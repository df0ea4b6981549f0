package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas.
// userH puede ser nil cuando el binario corre sin base de datos; en ese
// caso solo se publican el proxy de completions y el estado.
func NewRouter(
	logger *zap.Logger,
	completionH *CompletionHandler,
	statusH *StatusHandler,
	userH *UserHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares básicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	// Cualquier método distinto del declarado responde 405 con cuerpo
	// JSON, igual que el resto de los errores del proxy.
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	r.POST("/api/openai", completionH.Generate)
	r.GET("/api/db-status", statusH.DBStatus)

	if userH != nil {
		r.POST("/users", userH.Register)

		auth := r.Group("/auth")
		auth.POST("/login", userH.Login)
		auth.POST("/refresh", userH.Refresh)
		auth.POST("/logout", userH.Logout)

		r.GET("/users/me", JWTAuthMiddleware(userH.jwtServ), userH.Me)
	}

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
