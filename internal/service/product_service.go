package service

import (
	"context"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateProductRequest struct {
	SKU          string `json:"sku" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	Price        string `json:"price" binding:"required"`
	Cost         string `json:"cost"`
	CurrentStock int    `json:"current_stock"`
	SupplierID   string `json:"supplier_id"`
}

type UpdateProductRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	Price        *string `json:"price"`
	Cost         *string `json:"cost"`
	CurrentStock *int    `json:"current_stock"`
	IsActive     *bool   `json:"is_active"`
}

type CreateSupplierRequest struct {
	Name          string `json:"name" binding:"required"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email" binding:"omitempty,email"`
	Phone         string `json:"phone"`
	LeadDays      int    `json:"lead_days"`
}

type ProductResponse struct {
	ID           string  `json:"id"`
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Price        string  `json:"price"`
	Cost         string  `json:"cost"`
	CurrentStock int     `json:"current_stock"`
	SupplierID   *string `json:"supplier_id"`
	IsActive     bool    `json:"is_active"`
	CreatedAt    string  `json:"created_at"`
}

type SupplierResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	LeadDays      int    `json:"lead_days"`
	IsActive      bool   `json:"is_active"`
}

type ProductService interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*ProductResponse, error)
	GetProduct(ctx context.Context, id string) (*ProductResponse, error)
	ListProducts(ctx context.Context, search string, page, limit int) ([]ProductResponse, int64, error)
	UpdateProduct(ctx context.Context, id string, req UpdateProductRequest) (*ProductResponse, error)
	DeleteProduct(ctx context.Context, id string) error

	CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*SupplierResponse, error)
	ListSuppliers(ctx context.Context, page, limit int) ([]SupplierResponse, int64, error)
}

type productService struct {
	repo repository.ProductRepository
}

func NewProductService(repo repository.ProductRepository) ProductService {
	return &productService{repo: repo}
}

func mapProductToResponse(product *model.Product) *ProductResponse {
	resp := &ProductResponse{
		ID:           product.ID.String(),
		SKU:          product.SKU,
		Name:         product.Name,
		Description:  product.Description,
		Price:        product.Price.StringFixed(2),
		Cost:         product.Cost.StringFixed(2),
		CurrentStock: product.CurrentStock,
		IsActive:     product.IsActive,
		CreatedAt:    product.CreatedAt.Format(time.RFC3339),
	}
	if product.SupplierID != nil {
		v := product.SupplierID.String()
		resp.SupplierID = &v
	}
	return resp
}

func (s *productService) CreateProduct(ctx context.Context, req CreateProductRequest) (*ProductResponse, error) {
	if _, err := s.repo.FindBySKU(ctx, req.SKU); err == nil {
		return nil, policyErrorf("a product with SKU %s already exists", req.SKU)
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid price: %w", err)
	}
	if price.IsNegative() {
		return nil, policyErrorf("price cannot be negative")
	}
	cost := decimal.Zero
	if req.Cost != "" {
		if cost, err = decimal.NewFromString(req.Cost); err != nil {
			return nil, fmt.Errorf("invalid cost: %w", err)
		}
	}

	product := &model.Product{
		SKU:          req.SKU,
		Name:         req.Name,
		Description:  req.Description,
		Price:        price.Round(2),
		Cost:         cost.Round(2),
		CurrentStock: req.CurrentStock,
		IsActive:     true,
	}
	if req.SupplierID != "" {
		supplierID, parseErr := uuid.Parse(req.SupplierID)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid supplier_id: %w", parseErr)
		}
		if _, findErr := s.repo.FindSupplier(ctx, supplierID); findErr != nil {
			return nil, notFound("supplier")
		}
		product.SupplierID = &supplierID
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return mapProductToResponse(product), nil
}

func (s *productService) GetProduct(ctx context.Context, id string) (*ProductResponse, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid product id: %w", err)
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, notFound("product")
	}
	return mapProductToResponse(product), nil
}

func (s *productService) ListProducts(ctx context.Context, search string, page, limit int) ([]ProductResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	products, total, err := s.repo.List(ctx, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}

	responses := make([]ProductResponse, 0, len(products))
	for i := range products {
		responses = append(responses, *mapProductToResponse(&products[i]))
	}
	return responses, total, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id string, req UpdateProductRequest) (*ProductResponse, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid product id: %w", err)
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, notFound("product")
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		price, parseErr := decimal.NewFromString(*req.Price)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid price: %w", parseErr)
		}
		product.Price = price.Round(2)
	}
	if req.Cost != nil {
		cost, parseErr := decimal.NewFromString(*req.Cost)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid cost: %w", parseErr)
		}
		product.Cost = cost.Round(2)
	}
	if req.CurrentStock != nil {
		product.CurrentStock = *req.CurrentStock
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return mapProductToResponse(product), nil
}

func (s *productService) DeleteProduct(ctx context.Context, id string) error {
	productID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid product id: %w", err)
	}
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		return notFound("product")
	}
	return s.repo.Delete(ctx, productID)
}

func (s *productService) CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*SupplierResponse, error) {
	leadDays := req.LeadDays
	if leadDays <= 0 {
		leadDays = 7
	}
	supplier := &model.Supplier{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		LeadDays:      leadDays,
		IsActive:      true,
	}
	if err := s.repo.CreateSupplier(ctx, supplier); err != nil {
		return nil, fmt.Errorf("failed to create supplier: %w", err)
	}
	return mapSupplierToResponse(supplier), nil
}

func (s *productService) ListSuppliers(ctx context.Context, page, limit int) ([]SupplierResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	suppliers, total, err := s.repo.ListSuppliers(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch suppliers: %w", err)
	}

	responses := make([]SupplierResponse, 0, len(suppliers))
	for i := range suppliers {
		responses = append(responses, *mapSupplierToResponse(&suppliers[i]))
	}
	return responses, total, nil
}

func mapSupplierToResponse(supplier *model.Supplier) *SupplierResponse {
	return &SupplierResponse{
		ID:            supplier.ID.String(),
		Name:          supplier.Name,
		ContactPerson: supplier.ContactPerson,
		Email:         supplier.Email,
		Phone:         supplier.Phone,
		LeadDays:      supplier.LeadDays,
		IsActive:      supplier.IsActive,
	}
}
