package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portal/internal/apperr"
	"portal/internal/auth"
	"portal/internal/review"
)

// ---------- Reviews ----------

// SubmitReview stores a new pending review for the current moderator.
func (h *Handler) SubmitReview(c *gin.Context) {
	var in review.SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.fail(c, apperr.FromBinding(err))
		return
	}
	rv, err := h.reviews.Submit(c.Request.Context(), sessionOf(c).UserID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "review": rv})
}

// MyReviews lists the current moderator's reviews.
func (h *Handler) MyReviews(c *gin.Context) {
	reviews, err := h.reviews.ListMine(c.Request.Context(), sessionOf(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// ListReviews lists every review, optionally filtered by ?status=.
func (h *Handler) ListReviews(c *gin.Context) {
	reviews, err := h.reviews.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

type moderateRequest struct {
	Status        string `json:"status" binding:"required,oneof=approved rejected"`
	AdminComments string `json:"adminComments" binding:"max=5000"`
}

// ModerateReview approves or rejects a pending review.
func (h *Handler) ModerateReview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		h.fail(c, apperr.Validation("Invalid review id"))
		return
	}
	var req moderateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.FromBinding(err))
		return
	}
	adm, _ := auth.CurrentAdmin(c)
	rv, err := h.reviews.Moderate(c.Request.Context(), id, adm.ID, req.Status, req.AdminComments, c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.metrics.ReviewsModerated.WithLabelValues(rv.Status).Inc()
	c.JSON(http.StatusOK, gin.H{"success": true, "review": rv})
}
