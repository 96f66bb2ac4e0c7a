// Package dto holds the JSON envelopes and request/response shapes of the
// admin and market-data HTTP API.
package dto

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/marketguard/pkg/errors"
)

// APIResponse is the envelope every JSON endpoint returns.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorDTO   `json:"error,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ErrorDTO describes a failed request.
type ErrorDTO struct {
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Description string                 `json:"description,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps data in a success envelope.
func SuccessResponse(data interface{}, traceID string) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		TraceID:   traceID,
		Timestamp: time.Now().Unix(),
	}
}

// ErrorResponse wraps err in a failure envelope and returns the status to
// send. Errors that are not AppErrors become internal errors without leaking
// their text.
func ErrorResponse(err error, traceID string) (int, *APIResponse) {
	status, body := errors.ToGenericErrorResponse(err)
	return status, &APIResponse{
		Success: false,
		Error: &ErrorDTO{
			Code:        body.Error,
			Message:     body.Message,
			Description: body.ErrorDescription,
			Details:     body.Metadata,
		},
		TraceID:   traceID,
		Timestamp: time.Now().Unix(),
	}
}

// SendSuccess writes a 200 success envelope.
func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse(data, traceID(c)))
}

// SendError writes the failure envelope for err.
func SendError(c *gin.Context, err error) {
	status, body := ErrorResponse(err, traceID(c))
	c.JSON(status, body)
}

func traceID(c *gin.Context) string {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
		return sc.TraceID().String()
	}
	return c.GetString("trace_id")
}
