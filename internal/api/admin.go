package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"portal/internal/admin"
	"portal/internal/apperr"
	"portal/internal/auth"
)

// ---------- Admin ----------

// Stats returns the dashboard counters.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Moderators lists moderators with their activity figures.
func (h *Handler) Moderators(c *gin.Context) {
	mods, err := h.admin.Moderators(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moderators": mods})
}

type statusRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// SetModeratorStatus activates or deactivates a moderator.
func (h *Handler) SetModeratorStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.fail(c, apperr.Validation("Invalid moderator id"))
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.FromBinding(err))
		return
	}
	adm, _ := auth.CurrentAdmin(c)
	if err := h.admin.SetModeratorStatus(c.Request.Context(), adm.ID, id, *req.IsActive, c.ClientIP()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ModeratorAttendance returns a moderator's records between ?from= and ?to=
// (YYYY-MM-DD, inclusive). The default is the trailing rate window ending today.
func (h *Handler) ModeratorAttendance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.fail(c, apperr.Validation("Invalid moderator id"))
		return
	}
	today := h.now().In(h.loc)
	to, err := h.parseDay(c.Query("to"), today)
	if err != nil {
		h.fail(c, apperr.Validation("to must be a date in YYYY-MM-DD format"))
		return
	}
	from, err := h.parseDay(c.Query("from"), to.AddDate(0, 0, -(admin.RateWindowDays-1)))
	if err != nil {
		h.fail(c, apperr.Validation("from must be a date in YYYY-MM-DD format"))
		return
	}
	recs, err := h.admin.ModeratorAttendance(c.Request.Context(), id, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": recs})
}

// ModeratorLogins returns a moderator's recent login events.
func (h *Handler) ModeratorLogins(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.fail(c, apperr.Validation("Invalid moderator id"))
		return
	}
	logs, err := h.admin.ModeratorLogins(c.Request.Context(), id, queryInt(c, "limit"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logins": logs})
}

// AdminActions lists the admin action log.
func (h *Handler) AdminActions(c *gin.Context) {
	actions, err := h.admin.Actions(c.Request.Context(), queryInt(c, "limit"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

func (h *Handler) parseDay(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	return time.ParseInLocation(time.DateOnly, value, h.loc)
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
