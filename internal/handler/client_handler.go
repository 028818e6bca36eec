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

type ClientHandler struct {
	clientService service.ClientService
	resolver      *permission.Resolver
}

func NewClientHandler(clientService service.ClientService, resolver *permission.Resolver) *ClientHandler {
	return &ClientHandler{clientService: clientService, resolver: resolver}
}

func (h *ClientHandler) RegisterRoutes(router *gin.RouterGroup, authn gin.HandlerFunc) {
	view := middleware.RequireApp(h.resolver, model.AppCRM, permission.LevelView)
	edit := middleware.RequireApp(h.resolver, model.AppCRM, permission.LevelEdit)

	clients := router.Group("/api/clients", authn)
	{
		clients.POST("", edit, h.CreateClient)
		clients.GET("", view, h.ListClients)
		clients.GET("/:id", view, h.GetClient)
		clients.PUT("/:id", edit, h.UpdateClient)

		clients.POST("/:id/interactions", edit, h.LogInteraction)
		clients.GET("/:id/interactions", view, h.ListInteractions)
	}
}

// CreateClient creates a CRM account
// @Summary      Create client
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateClientRequest  true  "Create Client Payload"
// @Success      201      {object}  response.Response{data=service.ClientResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/clients [post]
func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req service.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	client, err := h.clientService.CreateClient(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, client))
}

// ListClients returns a paginated client list
// @Summary      List clients
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status (lead, prospect, client, inactive)"
// @Param        search  query     string  false  "Search by name, company or email"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.ClientResponse}
// @Failure      403     {object}  response.Response
// @Router       /api/clients [get]
func (h *ClientHandler) ListClients(c *gin.Context) {
	params := pagination.Parse(c)
	clients, total, err := h.clientService.ListClients(c.Request.Context(), c.Query("status"), c.Query("search"), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, clients, params.Page, params.Limit, total))
}

// GetClient returns one client
// @Summary      Get client
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Client ID"
// @Success      200  {object}  response.Response{data=service.ClientResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/clients/{id} [get]
func (h *ClientHandler) GetClient(c *gin.Context) {
	client, err := h.clientService.GetClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, client))
}

// UpdateClient updates CRM fields
// @Summary      Update client
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Client ID"
// @Param        payload  body      service.UpdateClientRequest  true  "Update Payload"
// @Success      200      {object}  response.Response{data=service.ClientResponse}
// @Failure      404      {object}  response.Response
// @Router       /api/clients/{id} [put]
func (h *ClientHandler) UpdateClient(c *gin.Context) {
	var req service.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	client, err := h.clientService.UpdateClient(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, client))
}

// LogInteraction appends a manual entry to the client timeline
// @Summary      Log interaction
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Client ID"
// @Param        payload  body      service.LogInteractionRequest  true  "Interaction Payload"
// @Success      201      {object}  response.Response{data=service.InteractionResponse}
// @Failure      404      {object}  response.Response
// @Router       /api/clients/{id}/interactions [post]
func (h *ClientHandler) LogInteraction(c *gin.Context) {
	var req service.LogInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	interaction, err := h.clientService.LogInteraction(c.Request.Context(), c.Param("id"), req, middleware.CurrentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, interaction))
}

// ListInteractions returns the client timeline newest first
// @Summary      List interactions
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "Client ID"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]service.InteractionResponse}
// @Failure      404    {object}  response.Response
// @Router       /api/clients/{id}/interactions [get]
func (h *ClientHandler) ListInteractions(c *gin.Context) {
	params := pagination.Parse(c)
	interactions, total, err := h.clientService.ListInteractions(c.Request.Context(), c.Param("id"), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, interactions, params.Page, params.Limit, total))
}
