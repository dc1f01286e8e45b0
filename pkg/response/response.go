package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/medekzamen/medbot-api/pkg/errors"
)

// Envelope is the common wire contract: a success flag plus endpoint-specific
// payload fields merged at the top level, the shape the front-end already
// consumes.
type Envelope map[string]interface{}

// JSON sends a success response with the given payload fields.
func JSON(c *gin.Context, status int, payload Envelope) {
	body := Envelope{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(status, body)
}

// OK responds with HTTP 200.
func OK(c *gin.Context, payload Envelope) {
	JSON(c, http.StatusOK, payload)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.JSON(appErr.Status, Envelope{
		"success": false,
		"error":   appErr,
	})
}
