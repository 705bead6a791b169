package routes

import (
	"github.com/gin-gonic/gin"
)

func PingRoutes(r *gin.Engine, h Handlers) {
	r.GET("/ping", h.Ping.HandlePing)
}
