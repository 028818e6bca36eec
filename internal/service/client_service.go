package service

import (
	"context"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateClientRequest struct {
	Name        string `json:"name" binding:"required"`
	CompanyName string `json:"company_name"`
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	TaxCode     string `json:"tax_code"`
	Status      string `json:"status" binding:"omitempty,oneof=lead prospect client inactive"`
}

type UpdateClientRequest struct {
	Name        *string `json:"name"`
	CompanyName *string `json:"company_name"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	TaxCode     *string `json:"tax_code"`
	Status      *string `json:"status" binding:"omitempty,oneof=lead prospect client inactive"`
}

type LogInteractionRequest struct {
	Type         string `json:"type" binding:"required,oneof=call email meeting"`
	Subject      string `json:"subject" binding:"required"`
	Notes        string `json:"notes"`
	NextFollowup string `json:"next_followup"` // YYYY-MM-DD
}

type ClientResponse struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	CompanyName       string  `json:"company_name,omitempty"`
	Email             string  `json:"email"`
	Phone             string  `json:"phone,omitempty"`
	Address           string  `json:"address,omitempty"`
	TaxCode           string  `json:"tax_code,omitempty"`
	Status            string  `json:"status"`
	TotalOrders       int     `json:"total_orders"`
	TotalValue        string  `json:"total_value"`
	AverageOrderValue string  `json:"average_order_value"`
	LastContacted     *string `json:"last_contacted"`
	CreatedAt         string  `json:"created_at"`
}

type InteractionResponse struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Subject      string  `json:"subject"`
	Notes        string  `json:"notes,omitempty"`
	QuoteID      *string `json:"quote_id"`
	NextFollowup *string `json:"next_followup"`
	CreatedBy    *string `json:"created_by"`
	CreatedAt    string  `json:"created_at"`
}

type ClientService interface {
	CreateClient(ctx context.Context, req CreateClientRequest) (*ClientResponse, error)
	GetClient(ctx context.Context, id string) (*ClientResponse, error)
	ListClients(ctx context.Context, status, search string, page, limit int) ([]ClientResponse, int64, error)
	UpdateClient(ctx context.Context, id string, req UpdateClientRequest) (*ClientResponse, error)

	LogInteraction(ctx context.Context, clientID string, req LogInteractionRequest, createdBy uuid.UUID) (*InteractionResponse, error)
	ListInteractions(ctx context.Context, clientID string, page, limit int) ([]InteractionResponse, int64, error)
}

type clientService struct {
	repo repository.ClientRepository
	log  *zap.SugaredLogger
}

func NewClientService(repo repository.ClientRepository, log *zap.SugaredLogger) ClientService {
	return &clientService{repo: repo, log: log}
}

func mapClientToResponse(client *model.Client) *ClientResponse {
	resp := &ClientResponse{
		ID:                client.ID.String(),
		Name:              client.Name,
		CompanyName:       client.CompanyName,
		Email:             client.Email,
		Phone:             client.Phone,
		Address:           client.Address,
		TaxCode:           client.TaxCode,
		Status:            client.Status,
		TotalOrders:       client.TotalOrders,
		TotalValue:        client.TotalValue.StringFixed(2),
		AverageOrderValue: client.AverageOrderValue.StringFixed(2),
		CreatedAt:         client.CreatedAt.Format(time.RFC3339),
	}
	resp.LastContacted = formatTimePtr(client.LastContacted)
	return resp
}

func (s *clientService) CreateClient(ctx context.Context, req CreateClientRequest) (*ClientResponse, error) {
	status := req.Status
	if status == "" {
		status = model.ClientStatusLead
	}
	client := &model.Client{
		Name:        req.Name,
		CompanyName: req.CompanyName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		TaxCode:     req.TaxCode,
		Status:      status,
	}
	if err := s.repo.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return mapClientToResponse(client), nil
}

func (s *clientService) GetClient(ctx context.Context, id string) (*ClientResponse, error) {
	clientID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid client id: %w", err)
	}
	client, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return nil, notFound("client")
	}
	return mapClientToResponse(client), nil
}

func (s *clientService) ListClients(ctx context.Context, status, search string, page, limit int) ([]ClientResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	clients, total, err := s.repo.List(ctx, status, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch clients: %w", err)
	}

	responses := make([]ClientResponse, 0, len(clients))
	for i := range clients {
		responses = append(responses, *mapClientToResponse(&clients[i]))
	}
	return responses, total, nil
}

func (s *clientService) UpdateClient(ctx context.Context, id string, req UpdateClientRequest) (*ClientResponse, error) {
	clientID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid client id: %w", err)
	}
	client, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return nil, notFound("client")
	}

	if req.Name != nil {
		client.Name = *req.Name
	}
	if req.CompanyName != nil {
		client.CompanyName = *req.CompanyName
	}
	if req.Email != nil {
		client.Email = *req.Email
	}
	if req.Phone != nil {
		client.Phone = *req.Phone
	}
	if req.Address != nil {
		client.Address = *req.Address
	}
	if req.TaxCode != nil {
		client.TaxCode = *req.TaxCode
	}
	if req.Status != nil {
		client.Status = *req.Status
	}

	if err := s.repo.Update(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	return mapClientToResponse(client), nil
}

func (s *clientService) LogInteraction(ctx context.Context, clientID string, req LogInteractionRequest, createdBy uuid.UUID) (*InteractionResponse, error) {
	parsed, err := uuid.Parse(clientID)
	if err != nil {
		return nil, fmt.Errorf("invalid client id: %w", err)
	}
	client, err := s.repo.FindByID(ctx, parsed)
	if err != nil {
		return nil, notFound("client")
	}

	interaction := model.CustomerInteraction{
		ClientID:    client.ID,
		Type:        req.Type,
		Subject:     req.Subject,
		Notes:       req.Notes,
		CreatedByID: &createdBy,
	}
	if req.NextFollowup != "" {
		followup, parseErr := time.Parse("2006-01-02", req.NextFollowup)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid next_followup: %w", parseErr)
		}
		interaction.NextFollowup = &followup
	}
	if err := s.repo.CreateInteraction(ctx, &interaction); err != nil {
		return nil, fmt.Errorf("failed to log interaction: %w", err)
	}

	now := time.Now()
	client.LastContacted = &now
	if err := s.repo.Update(ctx, client); err != nil {
		s.log.Warnw("failed to update last_contacted", "client", client.ID, "error", err)
	}

	return mapInteractionToResponse(&interaction), nil
}

func (s *clientService) ListInteractions(ctx context.Context, clientID string, page, limit int) ([]InteractionResponse, int64, error) {
	parsed, err := uuid.Parse(clientID)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid client id: %w", err)
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	interactions, total, err := s.repo.ListInteractions(ctx, parsed, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch interactions: %w", err)
	}

	responses := make([]InteractionResponse, 0, len(interactions))
	for i := range interactions {
		responses = append(responses, *mapInteractionToResponse(&interactions[i]))
	}
	return responses, total, nil
}

func mapInteractionToResponse(interaction *model.CustomerInteraction) *InteractionResponse {
	resp := &InteractionResponse{
		ID:        interaction.ID.String(),
		Type:      interaction.Type,
		Subject:   interaction.Subject,
		Notes:     interaction.Notes,
		CreatedAt: interaction.CreatedAt.Format(time.RFC3339),
	}
	if interaction.QuoteID != nil {
		v := interaction.QuoteID.String()
		resp.QuoteID = &v
	}
	if interaction.CreatedByID != nil {
		v := interaction.CreatedByID.String()
		resp.CreatedBy = &v
	}
	resp.NextFollowup = formatTimePtr(interaction.NextFollowup)
	return resp
}
