package review

import "time"

// Statuses. pending is the only non-terminal one.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Review is a customer testimonial submitted by a moderator for admin approval.
type Review struct {
	ID               int        `json:"id"`
	ModeratorID      int        `json:"moderatorId"`
	CustomerName     string     `json:"customerName"`
	CustomerEmail    string     `json:"customerEmail"`
	Rating           int        `json:"rating"`
	ReviewText       string     `json:"reviewText"`
	BusinessResponse *string    `json:"businessResponse"`
	Status           string     `json:"status"`
	AdminReviewID    *int       `json:"adminReviewId"`
	AdminComments    *string    `json:"adminComments"`
	ReviewedAt       *time.Time `json:"reviewedAt"`
	SubmittedAt      time.Time  `json:"submittedAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// SubmitInput is what a moderator provides for a new review.
type SubmitInput struct {
	CustomerName     string  `json:"customerName" validate:"required,max=200"`
	CustomerEmail    string  `json:"customerEmail" validate:"required,email"`
	Rating           int     `json:"rating" validate:"required,min=1,max=5"`
	ReviewText       string  `json:"reviewText" validate:"required,max=5000"`
	BusinessResponse *string `json:"businessResponse" validate:"omitempty,max=5000"`
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}
