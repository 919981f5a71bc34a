package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeAppError maps err to its HTTP status. Server-side failures are masked.
func writeAppError(c *gin.Context, err error) {
	_ = c.Error(err)
	var ae *errors.AppError
	if !stderrors.As(err, &ae) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Code:    errors.ErrCodeInternal.String(),
			Message: "internal server error",
		})
		return
	}
	status := errors.HTTPStatusForCode(ae.Code)
	resp := ErrorResponse{Code: ae.Code.String(), Message: ae.Message, Detail: ae.Detail}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		resp.Message = errors.DefaultMessageForCode(ae.Code)
		resp.Detail = ""
	}
	c.AbortWithStatusJSON(status, resp)
}

// bindJSON decodes the body into dst and writes a 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeAppError(c, errors.NewInvalidInput("malformed request body").WithDetail(err.Error()))
		return false
	}
	return true
}

// queryInt reads a non-negative integer query parameter, falling back to def.
func queryInt(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
