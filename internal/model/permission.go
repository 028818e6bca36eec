package model

import (
	"time"

	"github.com/google/uuid"
)

// Application area constants. These are the cache-enumerable app keys the
// permission resolver knows about.
const (
	AppCRM       = "crm"
	AppQuotes    = "quotes"
	AppInventory = "inventory"
	AppWebsite   = "website"
	AppBlog      = "blog"
	AppAdmin     = "admin"
	AppFinancial = "financial"
	AppReports   = "reports"
)

// KnownApps lists every application area. Cache invalidation walks this list,
// so a new app key must be added here to be evicted on role changes.
var KnownApps = []string{
	AppCRM, AppQuotes, AppInventory, AppWebsite,
	AppBlog, AppAdmin, AppFinancial, AppReports,
}

// AppPermission is an explicit per-(user, app) access grant. Rows here override
// the role-based defaults computed by the resolver and are written when an
// approval request for elevated access is granted.
type AppPermission struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_app_permissions_user_app,unique" json:"user_id"`
	App       string     `gorm:"type:varchar(20);not null;index:idx_app_permissions_user_app,unique" json:"app"`
	Level     string     `gorm:"type:varchar(10);not null;default:'view'" json:"level"` // view, edit, admin
	GrantedBy *uuid.UUID `gorm:"type:uuid" json:"granted_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
