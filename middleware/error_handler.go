package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/iRail/occupancy-api/errors"
	"github.com/iRail/occupancy-api/logger"
	"github.com/iRail/occupancy-api/types"
)

// ErrorHandler renders the last error attached to the context with c.Error.
// Only the numeric code and the message reach the client; the detail and
// the wrapped cause are logged.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		appError := errors.As(err)
		statusCode := appError.GetHTTPStatus()

		logger.LogHTTPError(c, err, statusCode, fmt.Sprintf("%s error", appError.Type))

		if c.Writer.Written() {
			return
		}
		RenderError(c, statusCode, appError.Message)
	}
}

// RenderError writes an error body in the format selected by the format and
// callback query parameters.
func RenderError(c *gin.Context, statusCode int, message string) {
	body := types.ErrorResponse{Code: statusCode, Message: message}

	switch types.ParseOutputFormat(c.Query("format"), c.Query("callback")) {
	case types.FormatJSONP:
		c.JSONP(statusCode, body)
	case types.FormatJSON:
		c.JSON(statusCode, body)
	default:
		c.XML(statusCode, body)
	}
}

// RecoveryHandler turns a panic into a rendered 500.
func RecoveryHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err := fmt.Errorf("panic: %v", recovered)
		logger.LogHTTPError(c, err, http.StatusInternalServerError, "Recovered from panic")
		RenderError(c, http.StatusInternalServerError, "Internal server error")
		c.Abort()
	})
}
