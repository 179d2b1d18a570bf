package api

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.WorkerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)
	s.router.GET("/metrics", gin.WrapH(s.services.Metrics.Handler()))

	s.router.GET("/group_status", s.gateHandler.GroupStatus)

	gates := s.router.Group("/gates")
	{
		gates.GET("", s.gateHandler.ListGates)
		gates.GET("/:id/status", s.gateHandler.GetGateStatus)
		gates.POST("/:id/ticks", s.gateHandler.SubmitTick)
		gates.GET("/:id/history", s.gateHandler.GetHistory)
		gates.GET("/:id/alerts", s.gateHandler.GetAlerts)
	}

	system := s.router.Group("/system")
	{
		system.GET("/stats", s.systemHandler.GetStats)
	}
}
