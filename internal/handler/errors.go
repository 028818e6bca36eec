package handler

import (
	"errors"
	"net/http"

	"backend/internal/permission"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeError maps service errors onto HTTP status codes: business rule
// violations conflict, missing resources 404, permission denials 403,
// everything else is a 400 so internals never leak as a 500 by default.
func writeError(c *gin.Context, err error) {
	var policyErr *service.PolicyError
	var notFoundErr *service.NotFoundError
	var permErr *permission.PermissionError

	switch {
	case errors.As(err, &policyErr):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, policyErr.Error()))
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, notFoundErr.Error()))
	case errors.As(err, &permErr):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, permErr.Error()))
	default:
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	}
}
