package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/permission"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// Columns the quote list endpoint accepts for ?sort=. Every entry must be a
// real quotes column since the repository interpolates it into ORDER BY.
var quoteSortColumns = []string{"created_at", "total_amount", "validity_date"}

type QuoteHandler struct {
	quoteService service.QuoteService
	resolver     *permission.Resolver
}

func NewQuoteHandler(quoteService service.QuoteService, resolver *permission.Resolver) *QuoteHandler {
	return &QuoteHandler{quoteService: quoteService, resolver: resolver}
}

func (h *QuoteHandler) RegisterRoutes(router *gin.RouterGroup, authn gin.HandlerFunc) {
	view := middleware.RequireApp(h.resolver, model.AppQuotes, permission.LevelView)
	edit := middleware.RequireApp(h.resolver, model.AppQuotes, permission.LevelEdit)
	admin := middleware.RequireApp(h.resolver, model.AppQuotes, permission.LevelAdmin)

	quotes := router.Group("/api/quotes", authn)
	{
		quotes.POST("", edit, h.CreateQuote)
		quotes.GET("", view, h.ListQuotes)
		quotes.GET("/:id", view, h.GetQuote)
		quotes.PUT("/:id", edit, h.UpdateQuote)

		quotes.POST("/:id/items", edit, h.AddItem)
		quotes.PUT("/:id/items/:itemId", edit, h.UpdateItem)
		quotes.DELETE("/:id/items/:itemId", edit, h.RemoveItem)

		quotes.POST("/:id/approve", admin, h.ApproveQuote)
		quotes.POST("/:id/send", edit, h.SendQuote)
		quotes.POST("/:id/review", edit, h.MarkUnderReview)
		quotes.POST("/:id/accept", edit, h.AcceptQuote)
		quotes.POST("/:id/reject", edit, h.RejectQuote)
		quotes.POST("/:id/convert", edit, h.ConvertQuote)
		quotes.POST("/:id/cancel", edit, h.CancelQuote)
	}
}

// CreateQuote creates a draft quote for a client
// @Summary      Create quote
// @Description  Creates a draft quote with a generated QUO-YYYY-NNNNN number
// @Tags         quotes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateQuoteRequest  true  "Create Quote Payload"
// @Success      201      {object}  response.Response{data=service.QuoteResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/quotes [post]
func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	var req service.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	quote, err := h.quoteService.CreateQuote(c.Request.Context(), req, middleware.CurrentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, quote))
}

// ListQuotes returns a paginated, filterable quote list
// @Summary      List quotes
// @Tags         quotes
// @Security     BearerAuth
// @Produce      json
// @Param        status       query     string  false  "Filter by status"
// @Param        client_id    query     string  false  "Filter by client"
// @Param        assigned_to  query     string  false  "Filter by assignee"
// @Param        sort         query     string  false  "Sort column: created_at, total_amount, validity_date"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Items per page (default 20)"
// @Success      200          {object}  response.Response{data=[]service.QuoteResponse}
// @Failure      403          {object}  response.Response
// @Router       /api/quotes [get]
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	params := pagination.Parse(c)
	filter := service.QuoteFilter{
		Status:     c.Query("status"),
		ClientID:   c.Query("client_id"),
		AssignedTo: c.Query("assigned_to"),
		Sort:       pagination.Sort(c, quoteSortColumns...),
		Page:       params.Page,
		Limit:      params.Limit,
	}

	quotes, total, err := h.quoteService.ListQuotes(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, quotes, params.Page, params.Limit, total))
}

// GetQuote returns one quote with its items
// @Summary      Get quote
// @Tags         quotes
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Quote ID"
// @Success      200  {object}  response.Response{data=service.QuoteResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/quotes/{id} [get]
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	quote, err := h.quoteService.GetQuote(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// UpdateQuote updates quote-level fields; pricing changes recompute totals
// @Summary      Update quote
// @Description  Updates title, terms, discount or tax; rejected on edit-locked statuses and stale versions
// @Tags         quotes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Quote ID"
// @Param        payload  body      service.UpdateQuoteRequest  true  "Update Payload"
// @Success      200      {object}  response.Response{data=service.QuoteResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/quotes/{id} [put]
func (h *QuoteHandler) UpdateQuote(c *gin.Context) {
	var req service.UpdateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	quote, err := h.quoteService.UpdateQuote(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// AddItem appends a line item and recomputes the quote totals
// @Summary      Add quote item
// @Tags         quotes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Quote ID"
// @Param        payload  body      service.QuoteItemRequest  true  "Item Payload"
// @Success      201      {object}  response.Response{data=service.QuoteResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/quotes/{id}/items [post]
func (h *QuoteHandler) AddItem(c *gin.Context) {
	var req service.QuoteItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	quote, err := h.quoteService.AddItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, quote))
}

// UpdateItem rewrites a line item and recomputes the quote totals
// @Summary      Update quote item
// @Tags         quotes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Quote ID"
// @Param        itemId   path      string                    true  "Item ID"
// @Param        payload  body      service.QuoteItemRequest  true  "Item Payload"
// @Success      200      {object}  response.Response{data=service.QuoteResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/quotes/{id}/items/{itemId} [put]
func (h *QuoteHandler) UpdateItem(c *gin.Context) {
	var req service.QuoteItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	quote, err := h.quoteService.UpdateItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// RemoveItem deletes a line item and recomputes the quote totals
// @Summary      Remove quote item
// @Tags         quotes
// @Security     BearerAuth
// @Produce      json
// @Param        id      path      string  true  "Quote ID"
// @Param        itemId  path      string  true  "Item ID"
// @Success      200     {object}  response.Response{data=service.QuoteResponse}
// @Failure      409     {object}  response.Response
// @Router       /api/quotes/{id}/items/{itemId} [delete]
func (h *QuoteHandler) RemoveItem(c *gin.Context) {
	quote, err := h.quoteService.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// ApproveQuote countersigns a draft that tripped the approval gate
// @Summary      Approve quote
// @Tags         quotes
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Quote ID"
// @Success      200  {object}  response.Response{data=service.QuoteResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/quotes/{id}/approve [post]
func (h *QuoteHandler) ApproveQuote(c *gin.Context) {
	quote, err := h.quoteService.ApproveQuote(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// SendQuote transitions draft -> sent, emails the client and schedules follow-up
// @Summary      Send quote
// @Description  Requires at least one item, a future validity date and a satisfied approval gate
// @Tags         quotes
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Quote ID"
// @Success      200  {object}  response.Response{data=service.QuoteResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/quotes/{id}/send [post]
func (h *QuoteHandler) SendQuote(c *gin.Context) {
	quote, err := h.quoteService.SendQuote(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// MarkUnderReview flags a quote the client is actively evaluating
// @Summary      Mark quote under review
// @Tags         quotes
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Quote ID"
// @Success      200  {object}  response.Response{data=service.QuoteResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/quotes/{id}/review [post]
func (h *QuoteHandler) MarkUnderReview(c *gin.Context) {
	quote, err := h.quoteService.MarkUnderReview(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// AcceptQuote records an acceptance on behalf of the client
// @Summary      Accept quote
// @Description  Moves the quote to accepted and updates the client's order aggregates
// @Tags         quotes
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Quote ID"
// @Success      200  {object}  response.Response{data=service.QuoteResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/quotes/{id}/accept [post]
func (h *QuoteHandler) AcceptQuote(c *gin.Context) {
	actorID := middleware.CurrentUser(c).ID
	quote, err := h.quoteService.AcceptQuote(c.Request.Context(), c.Param("id"), &actorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// RejectQuote records a rejection on behalf of the client
// @Summary      Reject quote
// @Tags         quotes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true   "Quote ID"
// @Param        payload  body      service.RejectQuoteRequest  false  "Rejection Payload"
// @Success      200      {object}  response.Response{data=service.QuoteResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/quotes/{id}/reject [post]
func (h *QuoteHandler) RejectQuote(c *gin.Context) {
	var req service.RejectQuoteRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	actorID := middleware.CurrentUser(c).ID
	quote, err := h.quoteService.RejectQuote(c.Request.Context(), c.Param("id"), &actorID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// ConvertQuote marks an accepted quote as converted to an order
// @Summary      Convert quote
// @Tags         quotes
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Quote ID"
// @Success      200  {object}  response.Response{data=service.QuoteResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/quotes/{id}/convert [post]
func (h *QuoteHandler) ConvertQuote(c *gin.Context) {
	quote, err := h.quoteService.ConvertQuote(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// CancelQuote withdraws a quote at any non-terminal point
// @Summary      Cancel quote
// @Tags         quotes
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Quote ID"
// @Success      200  {object}  response.Response{data=service.QuoteResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/quotes/{id}/cancel [post]
func (h *QuoteHandler) CancelQuote(c *gin.Context) {
	quote, err := h.quoteService.CancelQuote(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}
