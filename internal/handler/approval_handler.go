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

type ApprovalHandler struct {
	approvalService service.ApprovalService
	resolver        *permission.Resolver
}

func NewApprovalHandler(approvalService service.ApprovalService, resolver *permission.Resolver) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService, resolver: resolver}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup, authn gin.HandlerFunc) {
	reviewerOnly := middleware.RequireApp(h.resolver, model.AppAdmin, permission.LevelAdmin)

	approvals := router.Group("/api/approvals", authn)
	{
		approvals.POST("", h.CreateRequest) // any authenticated user may ask
		approvals.GET("", reviewerOnly, h.ListRequests)
		approvals.GET("/:id", reviewerOnly, h.GetRequest)
		approvals.POST("/:id/approve", reviewerOnly, h.Approve)
		approvals.POST("/:id/reject", reviewerOnly, h.Reject)
	}
}

// CreateRequest submits an access-elevation request
// @Summary      Request access
// @Description  Creates a pending request for a higher level on an application area; one open request per user+app
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateApprovalRequest  true  "Request Payload"
// @Success      201      {object}  response.Response{data=service.ApprovalResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/approvals [post]
func (h *ApprovalHandler) CreateRequest(c *gin.Context) {
	var req service.CreateApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	request, err := h.approvalService.CreateRequest(c.Request.Context(), middleware.CurrentUser(c).ID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, request))
}

// ListRequests returns access requests, optionally by status
// @Summary      List access requests
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status (pending, approved, rejected)"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.ApprovalResponse}
// @Failure      403     {object}  response.Response
// @Router       /api/approvals [get]
func (h *ApprovalHandler) ListRequests(c *gin.Context) {
	params := pagination.Parse(c)
	requests, total, err := h.approvalService.ListRequests(c.Request.Context(), c.Query("status"), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, requests, params.Page, params.Limit, total))
}

// GetRequest returns one access request
// @Summary      Get access request
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.ApprovalResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/approvals/{id} [get]
func (h *ApprovalHandler) GetRequest(c *gin.Context) {
	request, err := h.approvalService.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, request))
}

// Approve grants the requested level and invalidates the requester's cache
// @Summary      Approve access request
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true   "Request ID"
// @Param        payload  body      service.ReviewApprovalRequest  false  "Review Notes"
// @Success      200      {object}  response.Response{data=service.ApprovalResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/approvals/{id}/approve [post]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	var req service.ReviewApprovalRequest
	_ = c.ShouldBindJSON(&req) // notes are optional

	request, err := h.approvalService.Approve(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c), req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, request))
}

// Reject declines the request without changing any permissions
// @Summary      Reject access request
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true   "Request ID"
// @Param        payload  body      service.ReviewApprovalRequest  false  "Review Notes"
// @Success      200      {object}  response.Response{data=service.ApprovalResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/approvals/{id}/reject [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	var req service.ReviewApprovalRequest
	_ = c.ShouldBindJSON(&req)

	request, err := h.approvalService.Reject(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c), req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, request))
}
