package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserType enum constants
const (
	UserTypeCustomer = "customer"
	UserTypeBlogger  = "blogger"
	UserTypeEmployee = "employee"
)

// Department enum constants (employees only)
const (
	DeptSales       = "sales"
	DeptSupport     = "support"
	DeptTechnical   = "technical"
	DeptAdmin       = "admin"
	DeptProcurement = "procurement"
	DeptFinance     = "finance"
)

// Employee role constants used by the permission resolver defaults
const (
	RoleBusinessOwner      = "business_owner"
	RoleSystemAdmin        = "system_admin"
	RoleSalesManager       = "sales_manager"
	RoleSalesRep           = "sales_rep"
	RoleProcurementOfficer = "procurement_officer"
	RoleAccounting         = "accounting"
)

// User represents the central account entity
type User struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username    string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email       string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password    string         `gorm:"type:varchar(255);not null" json:"-"` // Omit password from JSON requests/responses
	IsSuperuser bool           `gorm:"default:false" json:"is_superuser"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	Profile     *UserProfile   `gorm:"foreignKey:UserID" json:"profile,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

// UserProfile carries the business identity of a user. Every user has exactly
// one profile; a missing profile resolves to zero access everywhere.
type UserProfile struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	UserType    string     `gorm:"type:varchar(20);not null;default:'customer'" json:"user_type"` // customer, blogger, employee
	Department  string     `gorm:"type:varchar(20)" json:"department,omitempty"`
	Role        string     `gorm:"type:varchar(50)" json:"role,omitempty"` // sales_manager, sales_rep, ...
	Phone       string     `gorm:"type:varchar(20)" json:"phone"`
	CompanyName string     `gorm:"type:varchar(100)" json:"company_name"`
	TaxNumber   string     `gorm:"type:varchar(50)" json:"tax_number"`
	IsApproved  bool       `gorm:"default:false" json:"is_approved"`
	ApprovedBy  *uuid.UUID `gorm:"type:uuid" json:"approved_by"`
	ApprovedAt  *time.Time `json:"approved_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsEmployee reports whether the profile belongs to internal staff.
func (p *UserProfile) IsEmployee() bool {
	return p != nil && p.UserType == UserTypeEmployee
}

// IsAdmin reports whether the profile grants blanket admin access.
func (p *UserProfile) IsAdmin() bool {
	if p == nil || p.UserType != UserTypeEmployee {
		return false
	}
	return p.Role == RoleBusinessOwner || p.Role == RoleSystemAdmin || p.Department == DeptAdmin
}
