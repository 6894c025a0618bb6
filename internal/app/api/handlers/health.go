package handlers

import (
	"net/http"

	"github.com/coralpay/paysync/pkg/response"

	"github.com/gin-gonic/gin"
)

// Healthz reports process liveness for the load balancer.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(map[string]string{"status": "ok"}))
}

func RegisterHealthRoutes(r gin.IRouter) {
	r.GET("/healthz", Healthz)
}
