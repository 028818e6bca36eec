package handler

import (
	"net/http"

	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// PortalHandler serves the token-gated client portal. There is no staff auth
// here: possession of the access token is the credential, so these routes only
// ever expose the single quote the token names.
type PortalHandler struct {
	quoteService service.QuoteService
}

func NewPortalHandler(quoteService service.QuoteService) *PortalHandler {
	return &PortalHandler{quoteService: quoteService}
}

func (h *PortalHandler) RegisterRoutes(router *gin.RouterGroup) {
	portal := router.Group("/api/portal/quotes")
	{
		portal.GET("/:token", h.ViewQuote)
		portal.POST("/:token/accept", h.AcceptQuote)
		portal.POST("/:token/reject", h.RejectQuote)
	}
}

// ViewQuote renders the quote to the client and records the view
// @Summary      View quote (client portal)
// @Description  Records a view; the first open moves the quote from sent to viewed
// @Tags         portal
// @Produce      json
// @Param        token  path      string  true  "Access token"
// @Success      200    {object}  response.Response{data=service.QuoteResponse}
// @Failure      404    {object}  response.Response
// @Router       /api/portal/quotes/{token} [get]
func (h *PortalHandler) ViewQuote(c *gin.Context) {
	quote, err := h.quoteService.TrackClientView(c.Request.Context(), c.Param("token"), c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// AcceptQuote lets the client accept through the portal
// @Summary      Accept quote (client portal)
// @Tags         portal
// @Produce      json
// @Param        token  path      string  true  "Access token"
// @Success      200    {object}  response.Response{data=service.QuoteResponse}
// @Failure      409    {object}  response.Response
// @Router       /api/portal/quotes/{token}/accept [post]
func (h *PortalHandler) AcceptQuote(c *gin.Context) {
	quote, err := h.quoteService.GetQuoteByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}

	accepted, err := h.quoteService.AcceptQuote(c.Request.Context(), quote.ID, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, accepted))
}

// RejectQuote lets the client decline through the portal
// @Summary      Reject quote (client portal)
// @Tags         portal
// @Accept       json
// @Produce      json
// @Param        token    path      string                      true   "Access token"
// @Param        payload  body      service.RejectQuoteRequest  false  "Rejection Payload"
// @Success      200      {object}  response.Response{data=service.QuoteResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/portal/quotes/{token}/reject [post]
func (h *PortalHandler) RejectQuote(c *gin.Context) {
	var req service.RejectQuoteRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	quote, err := h.quoteService.GetQuoteByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}

	rejected, err := h.quoteService.RejectQuote(c.Request.Context(), quote.ID, nil, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rejected))
}
