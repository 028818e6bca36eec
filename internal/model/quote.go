package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quote priority constants
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// QuoteItem source constants
const (
	SourceStock  = "stock"  // fulfilled from current inventory
	SourceOrder  = "order"  // ordered from supplier on acceptance
	SourceDirect = "direct" // supplier ships direct to client
	SourceCustom = "custom" // service / non-inventory line
)

// Quote is the priced proposal document sent to a client. Status values are
// owned by the quote engine (internal/quote); all monetary columns are derived
// from the item set plus quote-level discount/tax and are never authoritative.
type Quote struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	QuoteNumber string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"quote_number"` // e.g. QUO-2026-00042
	ClientID    uuid.UUID `gorm:"type:uuid;not null;index:idx_quotes_client_status" json:"client_id"`
	Client      *Client   `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	Title         string `gorm:"type:varchar(200);not null" json:"title"`
	Description   string `gorm:"type:text" json:"description"`
	InternalNotes string `gorm:"type:text" json:"-"` // never exposed to the client portal

	Status   string `gorm:"type:varchar(20);not null;default:'draft';index:idx_quotes_client_status;index:idx_quotes_status_validity" json:"status"`
	Priority string `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`

	// Derived financials, recomputed inside the same transaction as any item
	// or discount/tax mutation.
	Subtotal           decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	TaxRate            decimal.Decimal `gorm:"type:decimal(5,2);not null;default:15" json:"tax_rate"`
	TaxAmount          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax_amount"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	Currency           string          `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`

	PaymentTermsDays int       `gorm:"default:30" json:"payment_terms_days"`
	DeliveryTerms    string    `gorm:"type:varchar(200)" json:"delivery_terms"`
	ValidityDate     time.Time `gorm:"type:date;not null;index:idx_quotes_status_validity" json:"validity_date"`

	// Approval gate on draft -> sent for high-value / high-discount quotes.
	RequiresApproval bool       `gorm:"default:false" json:"requires_approval"`
	ApprovalReason   string     `gorm:"type:varchar(200)" json:"approval_reason,omitempty"`
	ApprovedBy       *uuid.UUID `gorm:"type:uuid" json:"approved_by"`
	Approver         *User      `gorm:"foreignKey:ApprovedBy" json:"approver,omitempty"`

	// Client communication tracking
	SentDate     *time.Time `json:"sent_date"`
	ViewedDate   *time.Time `json:"viewed_date"`
	ResponseDate *time.Time `json:"response_date"`
	AccessToken  string     `gorm:"type:varchar(64);index" json:"-"` // client portal token
	ViewCount    int        `gorm:"default:0" json:"view_count"`
	LastViewed   *time.Time `json:"last_viewed"`
	ClientIP     string     `gorm:"type:varchar(45)" json:"-"`

	// Follow-up management
	NextFollowup  *time.Time `gorm:"index" json:"next_followup"`
	FollowupCount int        `gorm:"default:0" json:"followup_count"`

	CreatedByID *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedBy   *User      `gorm:"foreignKey:CreatedByID" json:"-"`
	AssignedTo  *uuid.UUID `gorm:"type:uuid;index" json:"assigned_to"`
	Assignee    *User      `gorm:"foreignKey:AssignedTo" json:"-"`

	// Optimistic concurrency guard for the mutate-items + recompute-totals
	// transaction boundary. Bumped on every mutation.
	Version int `gorm:"not null;default:1" json:"version"`

	Items []QuoteItem `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE" json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuoteItem is a single priced line owned by exactly one quote. Mutating or
// deleting an item triggers recomputation of the parent totals.
type QuoteItem struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	QuoteID uuid.UUID `gorm:"type:uuid;not null;index" json:"quote_id"`

	ProductID *uuid.UUID `gorm:"type:uuid;index" json:"product_id"` // nil for custom/service lines
	Product   *Product   `gorm:"foreignKey:ProductID" json:"-"`

	Description string          `gorm:"type:varchar(500);not null" json:"description"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"` // quantity * unit_price
	UnitCost    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"unit_cost"`

	SourceType string     `gorm:"type:varchar(20);not null;default:'stock'" json:"source_type"`
	SupplierID *uuid.UUID `gorm:"type:uuid" json:"supplier_id"`
	Supplier   *Supplier  `gorm:"foreignKey:SupplierID" json:"-"`
	LeadDays   int        `gorm:"default:0" json:"lead_days"`

	SortOrder int       `gorm:"default:1" json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
