package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"backend/internal/mail"
	"backend/internal/model"
	"backend/internal/quote"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Follow-up scheduling: high-value quotes get a shorter window.
var followupFastThreshold = decimal.NewFromInt(5000)

const (
	followupDaysDefault  = 3
	followupDaysFast     = 2
	followupDaysRejected = 30
)

// --- DTOs ---

type CreateQuoteRequest struct {
	ClientID           string `json:"client_id" binding:"required"`
	Title              string `json:"title" binding:"required"`
	Description        string `json:"description"`
	Priority           string `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	DiscountPercentage string `json:"discount_percentage"`
	TaxRate            string `json:"tax_rate"`
	Currency           string `json:"currency" binding:"omitempty,oneof=USD ZWG"`
	PaymentTermsDays   int    `json:"payment_terms_days"`
	DeliveryTerms      string `json:"delivery_terms"`
	ValidityDate       string `json:"validity_date" binding:"required"` // YYYY-MM-DD
	AssignedTo         string `json:"assigned_to"`
}

type UpdateQuoteRequest struct {
	Title              *string `json:"title"`
	Description        *string `json:"description"`
	Priority           *string `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	DiscountPercentage *string `json:"discount_percentage"`
	TaxRate            *string `json:"tax_rate"`
	ValidityDate       *string `json:"validity_date"`
	AssignedTo         *string `json:"assigned_to"`
	Version            int     `json:"version" binding:"required"`
}

type QuoteItemRequest struct {
	ProductID   string `json:"product_id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity" binding:"required,gt=0"`
	UnitPrice   string `json:"unit_price" binding:"required"`
	UnitCost    string `json:"unit_cost"`
	SourceType  string `json:"source_type" binding:"omitempty,oneof=stock order direct custom"`
	SupplierID  string `json:"supplier_id"`
	SortOrder   int    `json:"sort_order"`
}

type RejectQuoteRequest struct {
	Reason string `json:"reason"`
}

type QuoteItemResponse struct {
	ID          string `json:"id"`
	ProductID   *string `json:"product_id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TotalPrice  string `json:"total_price"`
	SourceType  string `json:"source_type"`
	SortOrder   int    `json:"sort_order"`
}

type QuoteResponse struct {
	ID                 string              `json:"id"`
	QuoteNumber        string              `json:"quote_number"`
	ClientID           string              `json:"client_id"`
	ClientName         string              `json:"client_name,omitempty"`
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	Status             string              `json:"status"`
	Priority           string              `json:"priority"`
	Subtotal           string              `json:"subtotal"`
	DiscountPercentage string              `json:"discount_percentage"`
	DiscountAmount     string              `json:"discount_amount"`
	TaxRate            string              `json:"tax_rate"`
	TaxAmount          string              `json:"tax_amount"`
	TotalAmount        string              `json:"total_amount"`
	Currency           string              `json:"currency"`
	ValidityDate       string              `json:"validity_date"`
	IsExpired          bool                `json:"is_expired"`
	RequiresApproval   bool                `json:"requires_approval"`
	ApprovalReason     string              `json:"approval_reason,omitempty"`
	ApprovedBy         *string             `json:"approved_by"`
	SentDate           *string             `json:"sent_date"`
	ViewedDate         *string             `json:"viewed_date"`
	ResponseDate       *string             `json:"response_date"`
	ViewCount          int                 `json:"view_count"`
	NextFollowup       *string             `json:"next_followup"`
	AssignedTo         *string             `json:"assigned_to"`
	Version            int                 `json:"version"`
	Items              []QuoteItemResponse `json:"items,omitempty"`
	CreatedAt          string              `json:"created_at"`
}

type QuoteFilter struct {
	Status     string
	ClientID   string
	AssignedTo string
	Sort       string
	Page       int
	Limit      int
}

// --- Interface ---

type QuoteService interface {
	CreateQuote(ctx context.Context, req CreateQuoteRequest, createdBy uuid.UUID) (QuoteResponse, error)
	GetQuote(ctx context.Context, id string) (QuoteResponse, error)
	ListQuotes(ctx context.Context, filter QuoteFilter) ([]QuoteResponse, int64, error)
	UpdateQuote(ctx context.Context, id string, req UpdateQuoteRequest) (QuoteResponse, error)

	AddItem(ctx context.Context, quoteID string, req QuoteItemRequest) (QuoteResponse, error)
	UpdateItem(ctx context.Context, quoteID, itemID string, req QuoteItemRequest) (QuoteResponse, error)
	RemoveItem(ctx context.Context, quoteID, itemID string) (QuoteResponse, error)

	ApproveQuote(ctx context.Context, id string, approverID uuid.UUID) (QuoteResponse, error)
	SendQuote(ctx context.Context, id string, sentBy uuid.UUID) (QuoteResponse, error)
	MarkUnderReview(ctx context.Context, id string) (QuoteResponse, error)
	AcceptQuote(ctx context.Context, id string, actorID *uuid.UUID) (QuoteResponse, error)
	RejectQuote(ctx context.Context, id string, actorID *uuid.UUID, reason string) (QuoteResponse, error)
	ConvertQuote(ctx context.Context, id string, actorID uuid.UUID) (QuoteResponse, error)
	CancelQuote(ctx context.Context, id string, actorID uuid.UUID) (QuoteResponse, error)

	// Client portal (token-gated, out-of-band of staff auth).
	GetQuoteByToken(ctx context.Context, token string) (QuoteResponse, error)
	TrackClientView(ctx context.Context, token, clientIP string) (QuoteResponse, error)

	// Periodic sweeps, safe to rerun.
	ExpireOpenQuotes(ctx context.Context) (int, error)
	SendFollowupReminders(ctx context.Context) (int, error)
}

type quoteService struct {
	quoteRepo  repository.QuoteRepository
	clientRepo repository.ClientRepository
	userRepo   repository.UserRepository
	txManager  repository.TransactionManager
	notifier   NotificationService
	mailer     mail.Mailer
	policy     quote.ApprovalPolicy
	baseURL    string
	log        *zap.SugaredLogger
	now        func() time.Time
}

func NewQuoteService(
	quoteRepo repository.QuoteRepository,
	clientRepo repository.ClientRepository,
	userRepo repository.UserRepository,
	txManager repository.TransactionManager,
	notifier NotificationService,
	mailer mail.Mailer,
	policy quote.ApprovalPolicy,
	baseURL string,
	log *zap.SugaredLogger,
) QuoteService {
	return &quoteService{
		quoteRepo:  quoteRepo,
		clientRepo: clientRepo,
		userRepo:   userRepo,
		txManager:  txManager,
		notifier:   notifier,
		mailer:     mailer,
		policy:     policy,
		baseURL:    baseURL,
		log:        log,
		now:        time.Now,
	}
}

// --- Creation and reads ---

func (s *quoteService) CreateQuote(ctx context.Context, req CreateQuoteRequest, createdBy uuid.UUID) (QuoteResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("invalid client_id: %w", err)
	}

	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return QuoteResponse{}, notFound("client")
	}

	validity, err := time.Parse("2006-01-02", req.ValidityDate)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("invalid validity_date: %w", err)
	}

	discountPct := decimal.Zero
	if req.DiscountPercentage != "" {
		if discountPct, err = decimal.NewFromString(req.DiscountPercentage); err != nil {
			return QuoteResponse{}, fmt.Errorf("invalid discount_percentage: %w", err)
		}
	}
	if discountPct.IsNegative() || discountPct.GreaterThan(decimal.NewFromInt(100)) {
		return QuoteResponse{}, policyErrorf("discount_percentage must be between 0 and 100")
	}

	taxRate := decimal.NewFromInt(15)
	if req.TaxRate != "" {
		if taxRate, err = decimal.NewFromString(req.TaxRate); err != nil {
			return QuoteResponse{}, fmt.Errorf("invalid tax_rate: %w", err)
		}
	}

	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	paymentTerms := req.PaymentTermsDays
	if paymentTerms == 0 {
		paymentTerms = 30
	}

	var assignedTo *uuid.UUID
	if req.AssignedTo != "" {
		parsed, parseErr := uuid.Parse(req.AssignedTo)
		if parseErr != nil {
			return QuoteResponse{}, fmt.Errorf("invalid assigned_to: %w", parseErr)
		}
		assignedTo = &parsed
	}

	q := model.Quote{
		ClientID:           clientID,
		Title:              req.Title,
		Description:        req.Description,
		Status:             string(quote.StatusDraft),
		Priority:           priority,
		DiscountPercentage: discountPct.Round(2),
		TaxRate:            taxRate.Round(2),
		Currency:           currency,
		PaymentTermsDays:   paymentTerms,
		DeliveryTerms:      req.DeliveryTerms,
		ValidityDate:       validity,
		CreatedByID:        &createdBy,
		AssignedTo:         assignedTo,
		Version:            1,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		number, numErr := s.generateQuoteNumber(txCtx)
		if numErr != nil {
			return fmt.Errorf("failed to generate quote number: %w", numErr)
		}
		q.QuoteNumber = number
		if createErr := s.quoteRepo.Create(txCtx, &q); createErr != nil {
			return fmt.Errorf("failed to create quote: %w", createErr)
		}
		return nil
	})
	if err != nil {
		return QuoteResponse{}, err
	}

	s.recordInteraction(ctx, client.ID, &q, model.InteractionQuoteDraft,
		fmt.Sprintf("Quote %s created", q.QuoteNumber),
		fmt.Sprintf("New quote created for %s", q.Title), &createdBy, nil)

	if assignedTo != nil && *assignedTo != createdBy {
		s.notifier.Notify(ctx, *assignedTo, model.NotifyQuote, "New quote assigned",
			fmt.Sprintf("Quote %s for %s has been assigned to you", q.QuoteNumber, client.Name),
			"/quotes/"+q.ID.String())
	}

	return s.reload(ctx, q.ID)
}

func (s *quoteService) GetQuote(ctx context.Context, id string) (QuoteResponse, error) {
	quoteID, err := uuid.Parse(id)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("invalid quote id: %w", err)
	}
	return s.reload(ctx, quoteID)
}

func (s *quoteService) ListQuotes(ctx context.Context, filter QuoteFilter) ([]QuoteResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	repoFilter := repository.QuoteListFilter{
		Status: filter.Status,
		Sort:   filter.Sort,
		Page:   filter.Page,
		Limit:  filter.Limit,
	}
	if filter.ClientID != "" {
		parsed, err := uuid.Parse(filter.ClientID)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid client_id: %w", err)
		}
		repoFilter.ClientID = &parsed
	}
	if filter.AssignedTo != "" {
		parsed, err := uuid.Parse(filter.AssignedTo)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid assigned_to: %w", err)
		}
		repoFilter.AssignedTo = &parsed
	}

	quotes, total, err := s.quoteRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch quotes: %w", err)
	}

	result := make([]QuoteResponse, 0, len(quotes))
	for i := range quotes {
		result = append(result, s.toResponse(&quotes[i]))
	}
	return result, total, nil
}

// --- Mutation of quote-level pricing terms ---

func (s *quoteService) UpdateQuote(ctx context.Context, id string, req UpdateQuoteRequest) (QuoteResponse, error) {
	quoteID, err := uuid.Parse(id)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("invalid quote id: %w", err)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		q, findErr := s.quoteRepo.FindByIDForUpdate(txCtx, quoteID)
		if findErr != nil {
			return notFound("quote")
		}
		if quote.EditLocked(quote.Status(q.Status)) {
			return policyErrorf("quote cannot be edited in %s status", q.Status)
		}
		if q.Version != req.Version {
			return policyErrorf("quote was modified concurrently, reload and retry (version %d, got %d)", q.Version, req.Version)
		}

		pricingChanged := false

		if req.Title != nil {
			q.Title = *req.Title
		}
		if req.Description != nil {
			q.Description = *req.Description
		}
		if req.Priority != nil {
			q.Priority = *req.Priority
		}
		if req.ValidityDate != nil {
			validity, parseErr := time.Parse("2006-01-02", *req.ValidityDate)
			if parseErr != nil {
				return fmt.Errorf("invalid validity_date: %w", parseErr)
			}
			q.ValidityDate = validity
		}
		if req.AssignedTo != nil {
			if *req.AssignedTo == "" {
				q.AssignedTo = nil
			} else {
				parsed, parseErr := uuid.Parse(*req.AssignedTo)
				if parseErr != nil {
					return fmt.Errorf("invalid assigned_to: %w", parseErr)
				}
				q.AssignedTo = &parsed
			}
		}
		if req.DiscountPercentage != nil {
			discount, parseErr := decimal.NewFromString(*req.DiscountPercentage)
			if parseErr != nil {
				return fmt.Errorf("invalid discount_percentage: %w", parseErr)
			}
			if discount.IsNegative() || discount.GreaterThan(decimal.NewFromInt(100)) {
				return policyErrorf("discount_percentage must be between 0 and 100")
			}
			q.DiscountPercentage = discount.Round(2)
			pricingChanged = true
		}
		if req.TaxRate != nil {
			tax, parseErr := decimal.NewFromString(*req.TaxRate)
			if parseErr != nil {
				return fmt.Errorf("invalid tax_rate: %w", parseErr)
			}
			q.TaxRate = tax.Round(2)
			pricingChanged = true
		}

		if pricingChanged {
			if recalcErr := s.recalculate(txCtx, q); recalcErr != nil {
				return recalcErr
			}
		}

		q.Version++
		return s.quoteRepo.Update(txCtx, q)
	})
	if err != nil {
		return QuoteResponse{}, err
	}

	return s.reload(ctx, quoteID)
}

// --- Item mutations ---

func (s *quoteService) AddItem(ctx context.Context, quoteID string, req QuoteItemRequest) (QuoteResponse, error) {
	return s.mutateItems(ctx, quoteID, func(txCtx context.Context, q *model.Quote) error {
		item, err := s.buildItem(q.ID, req)
		if err != nil {
			return err
		}
		return s.quoteRepo.CreateItem(txCtx, item)
	})
}

func (s *quoteService) UpdateItem(ctx context.Context, quoteID, itemID string, req QuoteItemRequest) (QuoteResponse, error) {
	parsedItemID, err := uuid.Parse(itemID)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("invalid item id: %w", err)
	}
	return s.mutateItems(ctx, quoteID, func(txCtx context.Context, q *model.Quote) error {
		existing, findErr := s.quoteRepo.FindItem(txCtx, q.ID, parsedItemID)
		if findErr != nil {
			return notFound("quote item")
		}
		updated, buildErr := s.buildItem(q.ID, req)
		if buildErr != nil {
			return buildErr
		}
		existing.ProductID = updated.ProductID
		existing.Description = updated.Description
		existing.Quantity = updated.Quantity
		existing.UnitPrice = updated.UnitPrice
		existing.TotalPrice = updated.TotalPrice
		existing.UnitCost = updated.UnitCost
		existing.SourceType = updated.SourceType
		existing.SupplierID = updated.SupplierID
		if updated.SortOrder > 0 {
			existing.SortOrder = updated.SortOrder
		}
		return s.quoteRepo.UpdateItem(txCtx, existing)
	})
}

func (s *quoteService) RemoveItem(ctx context.Context, quoteID, itemID string) (QuoteResponse, error) {
	parsedItemID, err := uuid.Parse(itemID)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("invalid item id: %w", err)
	}
	return s.mutateItems(ctx, quoteID, func(txCtx context.Context, q *model.Quote) error {
		if _, findErr := s.quoteRepo.FindItem(txCtx, q.ID, parsedItemID); findErr != nil {
			return notFound("quote item")
		}
		return s.quoteRepo.DeleteItem(txCtx, q.ID, parsedItemID)
	})
}

// mutateItems is the single transaction boundary for item changes: lock the
// quote row, refuse edit-locked statuses, apply the mutation, recompute totals
// and bump the version, all in one commit so partial writes cannot persist.
func (s *quoteService) mutateItems(ctx context.Context, quoteID string, mutate func(txCtx context.Context, q *model.Quote) error) (QuoteResponse, error) {
	parsed, err := uuid.Parse(quoteID)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("invalid quote id: %w", err)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		q, findErr := s.quoteRepo.FindByIDForUpdate(txCtx, parsed)
		if findErr != nil {
			return notFound("quote")
		}
		if quote.EditLocked(quote.Status(q.Status)) {
			return policyErrorf("quote cannot be edited in %s status", q.Status)
		}

		if mutateErr := mutate(txCtx, q); mutateErr != nil {
			return mutateErr
		}

		if recalcErr := s.recalculate(txCtx, q); recalcErr != nil {
			return recalcErr
		}

		q.Version++
		return s.quoteRepo.Update(txCtx, q)
	})
	if err != nil {
		return QuoteResponse{}, err
	}

	return s.reload(ctx, parsed)
}

func (s *quoteService) buildItem(quoteID uuid.UUID, req QuoteItemRequest) (*model.QuoteItem, error) {
	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid unit_price: %w", err)
	}
	if unitPrice.IsNegative() {
		return nil, policyErrorf("unit_price cannot be negative")
	}
	if req.Quantity < 1 {
		return nil, policyErrorf("quantity must be at least 1")
	}

	unitCost := decimal.Zero
	if req.UnitCost != "" {
		if unitCost, err = decimal.NewFromString(req.UnitCost); err != nil {
			return nil, fmt.Errorf("invalid unit_cost: %w", err)
		}
	}

	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = model.SourceStock
	}
	sortOrder := req.SortOrder
	if sortOrder == 0 {
		sortOrder = 1
	}

	item := &model.QuoteItem{
		QuoteID:     quoteID,
		Description: req.Description,
		Quantity:    req.Quantity,
		UnitPrice:   unitPrice.Round(2),
		TotalPrice:  quote.LineTotal(req.Quantity, unitPrice),
		UnitCost:    unitCost.Round(2),
		SourceType:  sourceType,
		SortOrder:   sortOrder,
	}

	if req.ProductID != "" {
		parsed, parseErr := uuid.Parse(req.ProductID)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid product_id: %w", parseErr)
		}
		item.ProductID = &parsed
	}
	if req.SupplierID != "" {
		parsed, parseErr := uuid.Parse(req.SupplierID)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid supplier_id: %w", parseErr)
		}
		item.SupplierID = &parsed
	}
	if item.Description == "" {
		return nil, policyErrorf("item description is required")
	}
	return item, nil
}

// recalculate derives the quote financials from the current item set and
// re-evaluates the approval gate. A pricing change voids any existing
// countersign: approval always applies to the current numbers.
func (s *quoteService) recalculate(txCtx context.Context, q *model.Quote) error {
	items, err := s.quoteRepo.ListItems(txCtx, q.ID)
	if err != nil {
		return fmt.Errorf("failed to load quote items: %w", err)
	}

	lines := make([]quote.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, quote.Line{Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}

	totals := quote.CalculateTotals(lines, q.DiscountPercentage, q.TaxRate)
	q.Subtotal = totals.Subtotal
	q.DiscountAmount = totals.DiscountAmount
	q.TaxAmount = totals.TaxAmount
	q.TotalAmount = totals.TotalAmount

	required, reason := s.policy.ApprovalReason(q.TotalAmount, q.DiscountPercentage)
	q.RequiresApproval = required
	q.ApprovalReason = reason
	q.ApprovedBy = nil

	return nil
}

// --- Lifecycle transitions ---

func (s *quoteService) ApproveQuote(ctx context.Context, id string, approverID uuid.UUID) (QuoteResponse, error) {
	quoteID, err := uuid.Parse(id)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("invalid quote id: %w", err)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		q, findErr := s.quoteRepo.FindByIDForUpdate(txCtx, quoteID)
		if findErr != nil {
			return notFound("quote")
		}
		if quote.Status(q.Status) != quote.StatusDraft {
			return policyErrorf("quote can only be approved in draft status, current status is %s", q.Status)
		}
		if !q.RequiresApproval {
			return policyErrorf("quote %s does not require approval", q.QuoteNumber)
		}
		q.ApprovedBy = &approverID
		q.Version++
		return s.quoteRepo.Update(txCtx, q)
	})
	if err != nil {
		return QuoteResponse{}, err
	}

	return s.reload(ctx, quoteID)
}

func (s *quoteService) SendQuote(ctx context.Context, id string, sentBy uuid.UUID) (QuoteResponse, error) {
	quoteID, err := uuid.Parse(id)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("invalid quote id: %w", err)
	}

	var sent *model.Quote
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		q, findErr := s.quoteRepo.FindByIDForUpdate(txCtx, quoteID)
		if findErr != nil {
			return notFound("quote")
		}
		if !quote.CanTransition(quote.Status(q.Status), quote.StatusSent) {
			return policyErrorf("quote cannot be sent from %s status", q.Status)
		}

		items, itemsErr := s.quoteRepo.ListItems(txCtx, q.ID)
		if itemsErr != nil {
			return fmt.Errorf("failed to load quote items: %w", itemsErr)
		}
		if len(items) == 0 {
			return policyErrorf("quote must have at least one item before it can be sent")
		}
		now := s.now()
		if quote.IsExpired(q.ValidityDate, now) {
			return policyErrorf("quote validity date %s has already passed", q.ValidityDate.Format("2006-01-02"))
		}
		if q.RequiresApproval && q.ApprovedBy == nil {
			return policyErrorf("quote requires approval before sending: %s", q.ApprovalReason)
		}

		q.Status = string(quote.StatusSent)
		q.SentDate = &now
		followup := now.AddDate(0, 0, s.followupDays(q.TotalAmount))
		q.NextFollowup = &followup
		if q.AccessToken == "" {
			q.AccessToken = s.generateAccessToken(q)
		}
		q.Version++
		if saveErr := s.quoteRepo.Update(txCtx, q); saveErr != nil {
			return saveErr
		}
		sent = q
		return nil
	})
	if err != nil {
		return QuoteResponse{}, err
	}

	s.onSent(ctx, sent, sentBy)
	return s.reload(ctx, quoteID)
}

func (s *quoteService) MarkUnderReview(ctx context.Context, id string) (QuoteResponse, error) {
	quoteID, err := uuid.Parse(id)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("invalid quote id: %w", err)
	}

	err = s.transition(ctx, quoteID, quote.StatusUnderReview, func(q *model.Quote) error { return nil })
	if err != nil {
		return QuoteResponse{}, err
	}
	return s.reload(ctx, quoteID)
}

func (s *quoteService) AcceptQuote(ctx context.Context, id string, actorID *uuid.UUID) (QuoteResponse, error) {
	quoteID, err := uuid.Parse(id)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("invalid quote id: %w", err)
	}

	var accepted *model.Quote
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		q, findErr := s.quoteRepo.FindByIDForUpdate(txCtx, quoteID)
		if findErr != nil {
			return notFound("quote")
		}
		now := s.now()
		if !quote.Acceptable(quote.Status(q.Status)) {
			return policyErrorf("quote cannot be accepted in %s status", q.Status)
		}
		if quote.IsExpired(q.ValidityDate, now) {
			return policyErrorf("quote expired on %s and can no longer be accepted", q.ValidityDate.Format("2006-01-02"))
		}

		q.Status = string(quote.StatusAccepted)
		q.ResponseDate = &now
		q.NextFollowup = nil
		q.Version++
		if saveErr := s.quoteRepo.Update(txCtx, q); saveErr != nil {
			return saveErr
		}

		// Client aggregates move with the acceptance, in the same commit.
		client, clientErr := s.clientRepo.FindByIDForUpdate(txCtx, q.ClientID)
		if clientErr != nil {
			return fmt.Errorf("failed to load client: %w", clientErr)
		}
		client.TotalOrders++
		client.TotalValue = client.TotalValue.Add(q.TotalAmount)
		client.AverageOrderValue = client.TotalValue.Div(decimal.NewFromInt(int64(client.TotalOrders))).Round(2)
		if client.Status == model.ClientStatusLead || client.Status == model.ClientStatusProspect {
			client.Status = model.ClientStatusActive
		}
		if updateErr := s.clientRepo.Update(txCtx, client); updateErr != nil {
			return fmt.Errorf("failed to update client aggregates: %w", updateErr)
		}

		accepted = q
		return nil
	})
	if err != nil {
		return QuoteResponse{}, err
	}

	s.onAccepted(ctx, accepted, actorID)
	return s.reload(ctx, quoteID)
}

func (s *quoteService) RejectQuote(ctx context.Context, id string, actorID *uuid.UUID, reason string) (QuoteResponse, error) {
	quoteID, err := uuid.Parse(id)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("invalid quote id: %w", err)
	}

	var rejected *model.Quote
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		q, findErr := s.quoteRepo.FindByIDForUpdate(txCtx, quoteID)
		if findErr != nil {
			return notFound("quote")
		}
		if !quote.CanTransition(quote.Status(q.Status), quote.StatusRejected) {
			return policyErrorf("quote cannot be rejected in %s status", q.Status)
		}

		now := s.now()
		q.Status = string(quote.StatusRejected)
		q.ResponseDate = &now
		// A rejection is not the end of the relationship: schedule a distant
		// follow-up so the rep circles back.
		followup := now.AddDate(0, 0, followupDaysRejected)
		q.NextFollowup = &followup
		q.Version++
		if saveErr := s.quoteRepo.Update(txCtx, q); saveErr != nil {
			return saveErr
		}
		rejected = q
		return nil
	})
	if err != nil {
		return QuoteResponse{}, err
	}

	s.onRejected(ctx, rejected, actorID, reason)
	return s.reload(ctx, quoteID)
}

func (s *quoteService) ConvertQuote(ctx context.Context, id string, actorID uuid.UUID) (QuoteResponse, error) {
	quoteID, err := uuid.Parse(id)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("invalid quote id: %w", err)
	}

	err = s.transition(ctx, quoteID, quote.StatusConverted, func(q *model.Quote) error { return nil })
	if err != nil {
		return QuoteResponse{}, err
	}

	if q, loadErr := s.quoteRepo.FindByID(ctx, quoteID); loadErr == nil {
		s.recordInteraction(ctx, q.ClientID, q, model.InteractionStatusChange,
			fmt.Sprintf("Quote %s converted to order", q.QuoteNumber),
			fmt.Sprintf("Quote converted by staff, value %s %s", q.Currency, q.TotalAmount.StringFixed(2)),
			&actorID, nil)
	}
	return s.reload(ctx, quoteID)
}

func (s *quoteService) CancelQuote(ctx context.Context, id string, actorID uuid.UUID) (QuoteResponse, error) {
	quoteID, err := uuid.Parse(id)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("invalid quote id: %w", err)
	}

	err = s.transition(ctx, quoteID, quote.StatusCancelled, func(q *model.Quote) error {
		q.NextFollowup = nil
		return nil
	})
	if err != nil {
		return QuoteResponse{}, err
	}
	return s.reload(ctx, quoteID)
}

// transition runs a guarded status move inside one locked transaction.
func (s *quoteService) transition(ctx context.Context, quoteID uuid.UUID, to quote.Status, apply func(q *model.Quote) error) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		q, err := s.quoteRepo.FindByIDForUpdate(txCtx, quoteID)
		if err != nil {
			return notFound("quote")
		}
		if !quote.CanTransition(quote.Status(q.Status), to) {
			return policyErrorf("quote cannot move from %s to %s", q.Status, to)
		}
		q.Status = string(to)
		if applyErr := apply(q); applyErr != nil {
			return applyErr
		}
		q.Version++
		return s.quoteRepo.Update(txCtx, q)
	})
}

// --- Client portal ---

func (s *quoteService) GetQuoteByToken(ctx context.Context, token string) (QuoteResponse, error) {
	q, err := s.quoteRepo.FindByAccessToken(ctx, token)
	if err != nil {
		return QuoteResponse{}, notFound("quote")
	}
	return s.toResponseWithItems(q), nil
}

// TrackClientView records a portal open. Idempotent with respect to status:
// only the first view moves sent -> viewed, later opens just bump the counter.
func (s *quoteService) TrackClientView(ctx context.Context, token, clientIP string) (QuoteResponse, error) {
	var viewed *model.Quote
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		q, findErr := s.quoteRepo.FindByAccessToken(txCtx, token)
		if findErr != nil {
			return notFound("quote")
		}
		locked, lockErr := s.quoteRepo.FindByIDForUpdate(txCtx, q.ID)
		if lockErr != nil {
			return notFound("quote")
		}

		now := s.now()
		locked.ViewCount++
		locked.LastViewed = &now
		if clientIP != "" {
			locked.ClientIP = clientIP
		}
		if quote.Status(locked.Status) == quote.StatusSent {
			locked.Status = string(quote.StatusViewed)
			locked.ViewedDate = &now
		}
		locked.Version++
		if saveErr := s.quoteRepo.Update(txCtx, locked); saveErr != nil {
			return saveErr
		}
		viewed = locked
		return nil
	})
	if err != nil {
		return QuoteResponse{}, err
	}
	return s.reload(ctx, viewed.ID)
}

// --- Periodic sweeps ---

// ExpireOpenQuotes is the single writer of the stored "expired" status. Expiry
// is always derived from validity_date for reads; the sweep only aligns the
// column for listings and fires the expiry side effects once.
func (s *quoteService) ExpireOpenQuotes(ctx context.Context) (int, error) {
	open := []string{string(quote.StatusSent), string(quote.StatusViewed), string(quote.StatusUnderReview)}
	now := s.now()
	y, m, d := now.Date()
	startOfToday := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	stale, err := s.quoteRepo.ListOpenPastValidity(ctx, open, startOfToday)
	if err != nil {
		return 0, fmt.Errorf("failed to list expirable quotes: %w", err)
	}

	expired := 0
	for i := range stale {
		q := &stale[i]
		err := s.transition(ctx, q.ID, quote.StatusExpired, func(locked *model.Quote) error {
			locked.NextFollowup = nil
			return nil
		})
		if err != nil {
			// Raced with a concurrent accept/reject; skip, the sweep reruns.
			s.log.Debugw("skipping quote during expiry sweep", "quote", q.QuoteNumber, "error", err)
			continue
		}
		expired++
		s.onExpired(ctx, q)
	}
	return expired, nil
}

// SendFollowupReminders notifies assignees of quotes whose follow-up timestamp
// has passed, then reschedules so the next run does not re-notify.
func (s *quoteService) SendFollowupReminders(ctx context.Context) (int, error) {
	open := []string{string(quote.StatusSent), string(quote.StatusViewed), string(quote.StatusUnderReview)}
	due, err := s.quoteRepo.ListDueFollowups(ctx, open, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list due follow-ups: %w", err)
	}

	reminded := 0
	for i := range due {
		q := &due[i]
		target := q.AssignedTo
		if target == nil {
			target = q.CreatedByID
		}
		if target != nil {
			clientName := ""
			if q.Client != nil {
				clientName = q.Client.Name
			}
			s.notifier.Notify(ctx, *target, model.NotifyQuote, "Quote follow-up due",
				fmt.Sprintf("Quote %s for %s is awaiting a client response (sent %s)",
					q.QuoteNumber, clientName, safeDate(q.SentDate)),
				"/quotes/"+q.ID.String())
		}

		err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			locked, lockErr := s.quoteRepo.FindByIDForUpdate(txCtx, q.ID)
			if lockErr != nil {
				return lockErr
			}
			next := s.now().AddDate(0, 0, s.followupDays(locked.TotalAmount))
			locked.NextFollowup = &next
			locked.FollowupCount++
			locked.Version++
			return s.quoteRepo.Update(txCtx, locked)
		})
		if err != nil {
			s.log.Warnw("failed to reschedule follow-up", "quote", q.QuoteNumber, "error", err)
			continue
		}
		reminded++
	}
	return reminded, nil
}

// --- Post-transition hooks (best-effort side effects) ---

func (s *quoteService) onSent(ctx context.Context, q *model.Quote, sentBy uuid.UUID) {
	client, err := s.clientRepo.FindByID(ctx, q.ClientID)
	if err != nil {
		s.log.Warnw("quote sent but client lookup failed, skipping side effects", "quote", q.QuoteNumber, "error", err)
		return
	}

	portalURL := fmt.Sprintf("%s/portal/quotes/%s", s.baseURL, q.AccessToken)
	if err := s.mailer.SendQuote(q, client, portalURL); err != nil {
		s.log.Warnw("failed to email quote to client", "quote", q.QuoteNumber, "client", client.Email, "error", err)
	}

	s.recordInteraction(ctx, client.ID, q, model.InteractionQuoteSent,
		fmt.Sprintf("Quote %s sent", q.QuoteNumber),
		fmt.Sprintf("Quote for %s - total %s %s", q.Title, q.Currency, q.TotalAmount.StringFixed(2)),
		&sentBy, q.NextFollowup)

	s.touchLastContacted(ctx, q.ClientID)

	if q.AssignedTo != nil && *q.AssignedTo != sentBy {
		s.notifier.Notify(ctx, *q.AssignedTo, model.NotifyQuote, "Quote sent",
			fmt.Sprintf("Quote %s was sent to %s", q.QuoteNumber, client.Name),
			"/quotes/"+q.ID.String())
	}
}

func (s *quoteService) onAccepted(ctx context.Context, q *model.Quote, actorID *uuid.UUID) {
	client, err := s.clientRepo.FindByID(ctx, q.ClientID)
	if err != nil {
		s.log.Warnw("quote accepted but client lookup failed", "quote", q.QuoteNumber, "error", err)
		return
	}

	s.recordInteraction(ctx, client.ID, q, model.InteractionQuoteAccepted,
		fmt.Sprintf("Quote %s accepted", q.QuoteNumber),
		fmt.Sprintf("Client accepted quote for %s %s", q.Currency, q.TotalAmount.StringFixed(2)),
		actorID, nil)

	if q.AssignedTo != nil {
		s.notifier.Notify(ctx, *q.AssignedTo, model.NotifySuccess, "Quote accepted",
			fmt.Sprintf("%s accepted quote %s (%s %s)", client.Name, q.QuoteNumber, q.Currency, q.TotalAmount.StringFixed(2)),
			"/quotes/"+q.ID.String())
	}

	// Management hears about big wins directly.
	if q.TotalAmount.GreaterThanOrEqual(s.policy.TotalThreshold) {
		managers, mgrErr := s.userRepo.ListByRoles(ctx, []string{model.RoleSalesManager, model.RoleBusinessOwner})
		if mgrErr != nil {
			s.log.Warnw("failed to load managers for acceptance fan-out", "error", mgrErr)
		} else {
			for _, manager := range managers {
				s.notifier.Notify(ctx, manager.ID, model.NotifySuccess, "High-value quote accepted",
					fmt.Sprintf("Quote %s for %s accepted at %s %s", q.QuoteNumber, client.Name, q.Currency, q.TotalAmount.StringFixed(2)),
					"/quotes/"+q.ID.String())
			}
		}
	}

	recipients := s.staffRecipients(ctx, q)
	if err := s.mailer.SendQuoteStatusNotification(q, client, "accepted", recipients); err != nil {
		s.log.Warnw("failed to send acceptance email", "quote", q.QuoteNumber, "error", err)
	}
}

func (s *quoteService) onRejected(ctx context.Context, q *model.Quote, actorID *uuid.UUID, reason string) {
	client, err := s.clientRepo.FindByID(ctx, q.ClientID)
	if err != nil {
		s.log.Warnw("quote rejected but client lookup failed", "quote", q.QuoteNumber, "error", err)
		return
	}

	notes := "Client declined the quote"
	if reason != "" {
		notes = "Client declined the quote: " + reason
	}
	s.recordInteraction(ctx, client.ID, q, model.InteractionQuoteRejected,
		fmt.Sprintf("Quote %s rejected", q.QuoteNumber), notes, actorID, q.NextFollowup)

	if q.AssignedTo != nil {
		s.notifier.Notify(ctx, *q.AssignedTo, model.NotifyWarning, "Quote rejected",
			fmt.Sprintf("%s declined quote %s, follow-up scheduled", client.Name, q.QuoteNumber),
			"/quotes/"+q.ID.String())
	}
}

func (s *quoteService) onExpired(ctx context.Context, q *model.Quote) {
	s.recordInteraction(ctx, q.ClientID, q, model.InteractionQuoteExpired,
		fmt.Sprintf("Quote %s expired", q.QuoteNumber),
		"Quote expired without a client response", nil, nil)

	if q.AssignedTo != nil {
		s.notifier.Notify(ctx, *q.AssignedTo, model.NotifyWarning, "Quote expired",
			fmt.Sprintf("Quote %s passed its validity date without a response", q.QuoteNumber),
			"/quotes/"+q.ID.String())
	}
}

// --- Helpers ---

func (s *quoteService) followupDays(total decimal.Decimal) int {
	if total.GreaterThanOrEqual(followupFastThreshold) {
		return followupDaysFast
	}
	return followupDaysDefault
}

func (s *quoteService) generateQuoteNumber(txCtx context.Context) (string, error) {
	prefix := fmt.Sprintf("QUO-%d-", s.now().Year())

	// Advisory lock prevents concurrent duplicate numbers.
	if err := s.quoteRepo.AdvisoryLock(txCtx, prefix); err != nil {
		return "", err
	}
	count, err := s.quoteRepo.CountByPrefix(txCtx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

func (s *quoteService) generateAccessToken(q *model.Quote) string {
	seed := fmt.Sprintf("%s-%s-%s", q.ID, q.QuoteNumber, uuid.NewString())
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:32]
}

// recordInteraction appends to the client timeline, best-effort.
func (s *quoteService) recordInteraction(ctx context.Context, clientID uuid.UUID, q *model.Quote, kind, subject, notes string, createdBy *uuid.UUID, nextFollowup *time.Time) {
	interaction := model.CustomerInteraction{
		ClientID:     clientID,
		Type:         kind,
		Subject:      subject,
		Notes:        notes,
		QuoteID:      &q.ID,
		NextFollowup: nextFollowup,
		CreatedByID:  createdBy,
	}
	if err := s.clientRepo.CreateInteraction(ctx, &interaction); err != nil {
		s.log.Warnw("failed to record CRM interaction", "quote", q.QuoteNumber, "type", kind, "error", err)
	}
}

func (s *quoteService) touchLastContacted(ctx context.Context, clientID uuid.UUID) {
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return
	}
	now := s.now()
	client.LastContacted = &now
	if err := s.clientRepo.Update(ctx, client); err != nil {
		s.log.Warnw("failed to update last_contacted", "client", clientID, "error", err)
	}
}

func (s *quoteService) staffRecipients(ctx context.Context, q *model.Quote) []string {
	var recipients []string
	if q.AssignedTo != nil {
		if user, err := s.userRepo.FindByID(ctx, *q.AssignedTo); err == nil {
			recipients = append(recipients, user.Email)
		}
	}
	if q.CreatedByID != nil && (q.AssignedTo == nil || *q.CreatedByID != *q.AssignedTo) {
		if user, err := s.userRepo.FindByID(ctx, *q.CreatedByID); err == nil {
			recipients = append(recipients, user.Email)
		}
	}
	return recipients
}

func (s *quoteService) reload(ctx context.Context, id uuid.UUID) (QuoteResponse, error) {
	q, err := s.quoteRepo.FindByIDWithItems(ctx, id)
	if err != nil {
		return QuoteResponse{}, notFound("quote")
	}
	return s.toResponseWithItems(q), nil
}

func (s *quoteService) toResponse(q *model.Quote) QuoteResponse {
	resp := QuoteResponse{
		ID:                 q.ID.String(),
		QuoteNumber:        q.QuoteNumber,
		ClientID:           q.ClientID.String(),
		Title:              q.Title,
		Description:        q.Description,
		Status:             q.Status,
		Priority:           q.Priority,
		Subtotal:           q.Subtotal.StringFixed(2),
		DiscountPercentage: q.DiscountPercentage.StringFixed(2),
		DiscountAmount:     q.DiscountAmount.StringFixed(2),
		TaxRate:            q.TaxRate.StringFixed(2),
		TaxAmount:          q.TaxAmount.StringFixed(2),
		TotalAmount:        q.TotalAmount.StringFixed(2),
		Currency:           q.Currency,
		ValidityDate:       q.ValidityDate.Format("2006-01-02"),
		IsExpired:          quote.IsExpired(q.ValidityDate, s.now()) && quote.Open(quote.Status(q.Status)),
		RequiresApproval:   q.RequiresApproval,
		ApprovalReason:     q.ApprovalReason,
		ViewCount:          q.ViewCount,
		Version:            q.Version,
		CreatedAt:          q.CreatedAt.Format(time.RFC3339),
	}
	if q.Client != nil {
		resp.ClientName = q.Client.Name
	}
	if q.ApprovedBy != nil {
		v := q.ApprovedBy.String()
		resp.ApprovedBy = &v
	}
	if q.AssignedTo != nil {
		v := q.AssignedTo.String()
		resp.AssignedTo = &v
	}
	resp.SentDate = formatTimePtr(q.SentDate)
	resp.ViewedDate = formatTimePtr(q.ViewedDate)
	resp.ResponseDate = formatTimePtr(q.ResponseDate)
	resp.NextFollowup = formatTimePtr(q.NextFollowup)
	return resp
}

func (s *quoteService) toResponseWithItems(q *model.Quote) QuoteResponse {
	resp := s.toResponse(q)
	resp.Items = make([]QuoteItemResponse, 0, len(q.Items))
	for _, item := range q.Items {
		ir := QuoteItemResponse{
			ID:          item.ID.String(),
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			TotalPrice:  item.TotalPrice.StringFixed(2),
			SourceType:  item.SourceType,
			SortOrder:   item.SortOrder,
		}
		if item.ProductID != nil {
			v := item.ProductID.String()
			ir.ProductID = &v
		}
		resp.Items = append(resp.Items, ir)
	}
	return resp
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}

func safeDate(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format("2006-01-02")
}
