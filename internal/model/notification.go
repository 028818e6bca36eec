package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification kind constants
const (
	NotifyInfo     = "info"
	NotifyWarning  = "warning"
	NotifySuccess  = "success"
	NotifyQuote    = "quote"
	NotifyApproval = "approval"
)

// SecurityEvent type constants
const (
	EventLoginSuccess     = "login_success"
	EventLoginFailed      = "login_failed"
	EventRoleChanged      = "role_changed"
	EventPermissionGrant  = "permission_granted"
	EventPermissionDenied = "permission_denied"
	EventApprovalReviewed = "approval_reviewed"
	EventAccountLocked    = "account_locked"
)

// Notification is an append-only side-effect record created by the engine as a
// consequence of state transitions. Only the is_read/is_archived flags may
// change after creation.
type Notification struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_notifications_user_read" json:"user_id"`
	Kind       string    `gorm:"type:varchar(20);not null;default:'info'" json:"kind"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	ActionURL  string    `gorm:"type:varchar(255)" json:"action_url,omitempty"`
	IsRead     bool      `gorm:"default:false;index:idx_notifications_user_read" json:"is_read"`
	IsArchived bool      `gorm:"default:false" json:"is_archived"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"-"`
}

// SecurityEvent is the append-only audit trail for authentication and
// permission changes. Rows are never mutated; old entries are removed by the
// cleanup job only.
type SecurityEvent struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for anonymous/system events
	EventType   string     `gorm:"type:varchar(30);not null;index" json:"event_type"`
	Description string     `gorm:"type:text" json:"description"`
	IPAddress   string     `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent   string     `gorm:"type:text" json:"user_agent"`
	Details     string     `gorm:"type:jsonb" json:"details"` // serialized JSON payload
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}
