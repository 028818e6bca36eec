package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ClientStatus enum constants
const (
	ClientStatusLead     = "lead"
	ClientStatusProspect = "prospect"
	ClientStatusActive   = "client"
	ClientStatusInactive = "inactive"
)

// CustomerInteraction type constants
const (
	InteractionQuoteDraft    = "quote_draft"
	InteractionQuoteSent     = "quote_sent"
	InteractionQuoteAccepted = "quote_accepted"
	InteractionQuoteRejected = "quote_rejected"
	InteractionQuoteExpired  = "quote_expired"
	InteractionStatusChange  = "quote_status"
	InteractionCall          = "call"
	InteractionEmail         = "email"
	InteractionMeeting       = "meeting"
)

// Client is a CRM account. The aggregate value/order columns are updated by the
// quote engine on acceptance, never edited directly.
type Client struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`
	CompanyName   string    `gorm:"type:varchar(255)" json:"company_name"`
	Email         string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone         string    `gorm:"type:varchar(50)" json:"phone"`
	Address       string    `gorm:"type:text" json:"address"`
	TaxCode       string    `gorm:"type:varchar(50)" json:"tax_code"`
	Status        string    `gorm:"type:varchar(20);not null;default:'lead';index" json:"status"`
	AccountOwner  *uuid.UUID `gorm:"type:uuid;index" json:"account_owner"`

	TotalOrders       int             `gorm:"default:0" json:"total_orders"`
	TotalValue        decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"total_value"`
	AverageOrderValue decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"average_order_value"`
	LastContacted     *time.Time      `gorm:"index" json:"last_contacted"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// CustomerInteraction is an append-only entry in a client's timeline. Records
// are facts once created and are never mutated.
type CustomerInteraction struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"client_id"`
	Client       *Client    `gorm:"foreignKey:ClientID" json:"-"`
	Type         string     `gorm:"type:varchar(30);not null;index" json:"type"`
	Subject      string     `gorm:"type:varchar(255);not null" json:"subject"`
	Notes        string     `gorm:"type:text" json:"notes"`
	QuoteID      *uuid.UUID `gorm:"type:uuid;index" json:"quote_id"`
	NextFollowup *time.Time `json:"next_followup"`
	CreatedByID  *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}
