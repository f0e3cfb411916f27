package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"portal/internal/apperr"
)

// ---------- Attendance ----------

// MarkAttendance records today's attendance. A second mark on the same day answers 400 and
// echoes the existing record.
func (h *Handler) MarkAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	ip := c.ClientIP()
	location := h.geo.Locate(ctx, ip)

	rec, err := h.attendance.Mark(ctx, sessionOf(c).UserID, ip, location, c.Request.UserAgent())
	if errors.Is(err, apperr.ErrAlreadyMarked) {
		h.metrics.AttendanceMarks.WithLabelValues("already_marked").Inc()
		body := gin.H{"message": apperr.ErrAlreadyMarked.Message, "code": apperr.ErrAlreadyMarked.Code}
		if rec.ID != 0 {
			body["attendance"] = rec
		}
		c.JSON(apperr.ErrAlreadyMarked.Status, body)
		return
	}
	if err != nil {
		h.metrics.AttendanceMarks.WithLabelValues("error").Inc()
		h.fail(c, err)
		return
	}
	h.metrics.AttendanceMarks.WithLabelValues("marked").Inc()
	c.JSON(http.StatusOK, gin.H{"success": true, "attendance": rec})
}

// TodayAttendance returns today's record or null.
func (h *Handler) TodayAttendance(c *gin.Context) {
	rec, err := h.attendance.Today(c.Request.Context(), sessionOf(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": rec})
}

// AttendanceHistory returns recent records, newest first.
func (h *Handler) AttendanceHistory(c *gin.Context) {
	history, err := h.attendance.History(c.Request.Context(), sessionOf(c).UserID, queryInt(c, "limit"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// queryInt parses an optional integer query parameter; missing or invalid values are 0.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
