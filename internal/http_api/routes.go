package http_api

import "github.com/gin-gonic/gin"

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.GET("/healthz", s.healthz)

	v1 := s.router.Group("/api/v1")
	v1.GET("/state", s.state)
	v1.POST("/connect", s.connect)
	v1.POST("/disconnect", s.disconnect)
	v1.GET("/history", s.history)

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}
}
