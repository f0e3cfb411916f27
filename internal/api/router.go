package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portal/internal/auth"
	"portal/internal/httpmiddleware"
)

// NewRouter wires middleware and routes.
func NewRouter(h *Handler, d Deps) *gin.Engine {
	r := gin.New()
	// forwarding headers are honoured only from listed proxies
	if err := r.SetTrustedProxies(d.Config.TrustedProxies); err != nil {
		h.log.Warn("invalid trusted proxies, trusting none", zap.Strings("proxies", d.Config.TrustedProxies), zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Logger(h.log, "/healthz", "/metrics"))
	r.Use(h.metrics.GinMiddleware())
	r.Use(cors.New(corsConfig(d.Config.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders(d.Config.IsProduction()))
	if d.APILimiter != nil {
		r.Use(httpmiddleware.RateLimit(d.APILimiter, "api", h.log))
	}

	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	r.GET("/healthz", h.Healthz)

	requireAuth := auth.RequireAuth(h.auth, h.cfg.SessionCookieName)
	requireAdmin := auth.RequireAdmin(h.auth)

	authGroup := r.Group("/api/auth")
	if d.LoginLimiter != nil {
		authGroup.POST("/login", httpmiddleware.RateLimit(d.LoginLimiter, "login", h.log), h.Login)
	} else {
		authGroup.POST("/login", h.Login)
	}
	authGroup.GET("/user", requireAuth, h.CurrentUser)
	authGroup.POST("/logout", requireAuth, h.Logout)
	authGroup.POST("/track-login", requireAuth, h.TrackLogin)
	authGroup.POST("/logout-track", requireAuth, h.TrackLogout)

	att := r.Group("/api/attendance", requireAuth)
	att.POST("/mark", h.MarkAttendance)
	att.GET("/today", h.TodayAttendance)
	att.GET("/history", h.AttendanceHistory)

	reviews := r.Group("/api/reviews", requireAuth)
	reviews.POST("/submit", h.SubmitReview)
	reviews.GET("/my-reviews", h.MyReviews)

	adm := r.Group("/api/admin", requireAuth, requireAdmin)
	adm.GET("/stats", h.Stats)
	adm.GET("/moderators", h.Moderators)
	adm.PATCH("/moderators/:id/status", h.SetModeratorStatus)
	adm.GET("/moderators/:id/attendance", h.ModeratorAttendance)
	adm.GET("/moderators/:id/logins", h.ModeratorLogins)
	adm.GET("/actions", h.AdminActions)
	adm.GET("/reviews", h.ListReviews)
	adm.POST("/reviews/:id/review", h.ModerateReview)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found", "code": "NOT_FOUND"})
	})
	return r
}

// corsConfig allows credentialed requests from the configured origins, or reflects any
// origin when none are configured.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", httpmiddleware.RequestIDHeader},
		ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
	} else {
		cfg.AllowOriginFunc = func(string) bool { return true }
	}
	return cfg
}
