package api

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"transitportal/internal/domain"
	h "transitportal/internal/http/handlers"
	"transitportal/internal/http/middleware"
	"transitportal/internal/utils"
)

func NewRouter(hd *h.Handler) *gin.Engine {
	env := hd.Env

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), middleware.Recovery(), middleware.CORS(env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.Logger().Warn("failed to set trusted proxies", zap.Error(err))
	}

	r.OPTIONS("/*path", func(c *gin.Context) { c.AbortWithStatus(stdhttp.StatusNoContent) })

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"success":    false,
			"error":      domain.CodeNotFound,
			"message":    "route not found",
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
			"request_id": middleware.GetRequestID(c),
		})
	})

	optional := middleware.AuthOptional(env.JWTSecret)

	api := r.Group("/api")
	{
		api.GET("/health", hd.Health)
		api.GET("/db-check", hd.DBCheck)
		api.GET("/routes", hd.Routes)

		// Auth
		api.POST("/auth/login", hd.Login)

		// Tickets & attendance
		api.POST("/tickets/validate", hd.ValidateTicket)
		attendance := api.Group("/attendance", optional)
		attendance.POST("/mark", hd.MarkAttendance)
		attendance.POST("/bulk", hd.BulkAttendance)
		attendance.GET("", hd.ListAttendance)
		attendance.GET("/manifest", hd.AttendanceManifest)

		api.GET("/bookings/:id/boarding-pass", optional, hd.BoardingPass)
		api.GET("/staff/routes", optional, hd.StaffRoutes)

		// Scheduler (key-protected in the service)
		scheduler := api.Group("/scheduler")
		scheduler.POST("/daily-reminders", hd.TriggerDailyReminders)
		scheduler.GET("/status", hd.SchedulerStatus)
		scheduler.POST("/status", hd.SchedulerStatus)

		// Admin
		admin := api.Group("/admin", middleware.AuthRequired(env.JWTSecret), middleware.RequireRoles(domain.RoleAdmin))
		admin.POST("/staff-assignments", hd.AssignStaff)
		admin.DELETE("/staff-assignments", hd.UnassignStaff)
	}

	hd.SetRouter(r)
	return r
}
