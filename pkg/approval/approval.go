package approval

import "errors"

var ErrReasonRequired = errors.New("a rejection reason is required")

// Stats summarizes the review queue of the signed-in manager.
type Stats struct {
	PendingCount     int     `json:"pendingCount"`
	ApprovedThisWeek int     `json:"approvedThisWeek"`
	TeamHours        float64 `json:"teamHours"`
	TeamMembers      int     `json:"teamMembers"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
)
