package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"portal/internal/apperr"
)

// ---------- Session ----------

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials and sets the session cookie.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.FromBinding(err))
		return
	}

	issued, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.Logins.WithLabelValues(loginOutcome(err)).Inc()
		h.fail(c, err)
		return
	}
	h.metrics.Logins.WithLabelValues("success").Inc()

	h.setSessionCookie(c, issued.Cookie)
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "user": issued.User.Summary()})
}

// CurrentUser returns the summary of the signed-in user.
func (h *Handler) CurrentUser(c *gin.Context) {
	u, err := h.auth.CurrentUser(c.Request.Context(), sessionOf(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u.Summary())
}

// Logout destroys the session and clears the cookie.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), sessionOf(c)); err != nil {
		h.fail(c, err)
		return
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// TrackLogin appends a login-log entry for the current session.
func (h *Handler) TrackLogin(c *gin.Context) {
	ctx := c.Request.Context()
	ip := c.ClientIP()
	location := h.geo.Locate(ctx, ip)
	if _, err := h.logins.Create(ctx, sessionOf(c).UserID, ip, location, c.Request.UserAgent()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// TrackLogout closes the user's open login-log entries.
func (h *Handler) TrackLogout(c *gin.Context) {
	if _, err := h.logins.CloseOpen(c.Request.Context(), sessionOf(c).UserID, h.now()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) setSessionCookie(c *gin.Context, value string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.SessionCookieName, value, int(h.cfg.SessionTTL.Seconds()), "/", "", h.cfg.CookieSecure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.SessionCookieName, "", -1, "/", "", h.cfg.CookieSecure, true)
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, apperr.ErrAccountDeactivated):
		return "deactivated"
	default:
		return "error"
	}
}
