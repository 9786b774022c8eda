package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/serene-scheduler/internal/middleware"
	"github.com/noah-isme/serene-scheduler/internal/models"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	Timetable *TimetableHandler
	Teacher   *TeacherHandler
	Student   *StudentHandler
	Admin     *AdminHandler
	Auth      *AuthHandler
	Metrics   *MetricsHandler
}

// RegisterRoutes mounts the probes at the root and the API under prefix.
func RegisterRoutes(r gin.IRouter, prefix string, tokens middleware.TokenValidator, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.POST("/auth/login", h.Auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))
	secured.GET("/auth/me", h.Auth.Me)

	timetable := secured.Group("/timetable")
	timetable.GET("/export", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleStudent), h.Timetable.Export)
	timetableAdmin := timetable.Group("")
	timetableAdmin.Use(middleware.RequireRoles(models.RoleAdmin))
	timetableAdmin.POST("/validate", h.Timetable.Validate)
	timetableAdmin.POST("/generate", h.Timetable.Generate)
	timetableAdmin.POST("/publish", h.Timetable.Publish)
	timetableAdmin.GET("/published", h.Timetable.Published)
	timetableAdmin.DELETE("/published", h.Timetable.DeletePublished)

	teacher := secured.Group("/teacher")
	teacher.Use(middleware.RequireRoles(models.RoleTeacher))
	teacher.GET("/timetable", h.Teacher.Timetable)
	teacher.POST("/available-slots", h.Teacher.AvailableSlots)
	teacher.POST("/reschedule-requests", h.Teacher.CreateRequest)

	student := secured.Group("/student")
	student.Use(middleware.RequireRoles(models.RoleStudent))
	student.GET("/timetable", h.Student.Timetable)

	admin := secured.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/reschedule-requests", h.Admin.ListRequests)
	admin.POST("/reschedule-requests/:id/approve", h.Admin.Approve)
	admin.POST("/reschedule-requests/:id/reject", h.Admin.Reject)
	admin.GET("/activity-feed", h.Admin.ActivityFeed)
	admin.GET("/users", h.Admin.Users)
	admin.GET("/metrics", h.Metrics.Summary)
}
