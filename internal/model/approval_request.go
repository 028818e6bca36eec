package model

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus enum constants
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// ApprovalRequest tracks a user's request for elevated access to an application
// area. Lifecycle: created pending, reviewed exactly once (approve/reject) by an
// authorized reviewer, then terminal. Requests are never reopened.
type ApprovalRequest struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User           *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	App            string     `gorm:"type:varchar(20);not null;index" json:"app"`
	RequestedLevel string     `gorm:"type:varchar(10);not null;default:'view'" json:"requested_level"`
	Reason         string     `gorm:"type:text" json:"reason"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ReviewedBy     *uuid.UUID `gorm:"type:uuid" json:"reviewed_by"`
	Reviewer       *User      `gorm:"foreignKey:ReviewedBy" json:"reviewer,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	ReviewNotes    string     `gorm:"type:text" json:"review_notes"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
