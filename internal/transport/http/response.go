package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"media-caption-server/internal/platform/errors"
)

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

func RespondSuccess(c *gin.Context, httpStatus int, data interface{}, message string) {
	if message == "" {
		message = "ok"
	}

	resp := APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	}

	c.JSON(httpStatus, resp)
}

func RespondError(c *gin.Context, httpStatus int, message string, data interface{}) {
	resp := APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	}

	c.JSON(httpStatus, resp)
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindDomain:
		return http.StatusBadRequest
	case errors.KindTransport, errors.KindResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
