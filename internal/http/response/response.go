package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealforge/mealforge-backend/internal/platform/apierr"
)

type APIError struct {
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError maps an error from the service layer onto the wire.
// Client errors (4xx) keep their status, code, message and field detail.
// Server errors keep only their machine code; the wrapped cause is attached
// to the gin context for the request logger and never serialized, so driver
// and infrastructure detail cannot leak to the caller.
func RespondServiceError(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		msg := ae.Error()
		if ae.Status >= http.StatusInternalServerError {
			_ = c.Error(err)
			msg = "something went wrong"
		}
		c.JSON(ae.Status, ErrorEnvelope{
			Error: APIError{
				Message: msg,
				Code:    ae.Code,
				Fields:  ae.Fields,
			},
		})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorEnvelope{
		Error: APIError{
			Message: "internal error",
			Code:    "internal_error",
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
