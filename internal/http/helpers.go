package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog/log"

	"github.com/markit/attendance/internal/auth"
	"github.com/markit/attendance/internal/entities"
	"github.com/markit/attendance/internal/validation"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // field errors for invalid input
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: "bad-request"})
}

// respondInvalid sends a 400 response listing the offending fields.
func respondInvalid(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid input",
		Code:    "invalid-input",
		Details: fields,
	})
}

// respondNotFound sends a 404 Not Found response.
func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found", Code: "not-found"})
}

// respondConflict sends a 409 Conflict response.
func respondConflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, ErrorResponse{Error: message, Code: "conflict"})
}

// respondInternalError logs the error and sends a 500 Internal Server Error response.
// The actual error is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, context string) {
	logInternal(c, err, context)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: "internal"})
}

func logInternal(c *gin.Context, err error, context string) {
	log.Error().Err(err).Str("context", context).Str("path", c.Request.URL.Path).Msg("Internal error")
}

// --- Success Response Helpers ---

// respondSuccess sends a 200 OK response with a message and optional data.
func respondSuccess(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, SuccessResponse{Message: message, Data: data})
}

// respondCreated sends a 201 Created response with a message and optional data.
func respondCreated(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, SuccessResponse{Message: message, Data: data})
}

// --- Request Helpers ---

// bindForm decodes a form post into obj. Validation happens in the services.
func bindForm(c *gin.Context, obj any) error {
	return c.ShouldBindWith(obj, binding.Form)
}

// bindJSON decodes a JSON body into obj.
func bindJSON(c *gin.Context, obj any) error {
	return c.ShouldBindJSON(obj)
}

func isAPIPath(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/")
}

// wantsJSON reports whether the caller asked for JSON instead of a page.
func wantsJSON(c *gin.Context) bool {
	return c.Query("format") == "json" || strings.Contains(c.GetHeader("Accept"), "application/json")
}

// identityOrAbort returns the signed-in identity. Guarded routes always have
// one; a missing identity is treated as an internal error.
func identityOrAbort(c *gin.Context) (*entities.Identity, bool) {
	who := auth.CurrentIdentity(c)
	if who == nil {
		respondInternalError(c, errors.New("no identity on guarded route"), "identity")
		c.Abort()
		return nil, false
	}
	return who, true
}

// fieldErrors returns the per-field messages of a validation failure.
func fieldErrors(err error) (map[string]string, bool) {
	return validation.Fields(err)
}

// Flasher stores one-time notices shown on the next rendered page.
type Flasher interface {
	Flash(r *http.Request, message string)
}

// redirectWithNotice flashes message and sends the browser to path.
func redirectWithNotice(c *gin.Context, flasher Flasher, path, message string) {
	if flasher != nil && message != "" {
		flasher.Flash(c.Request, message)
	}
	c.Redirect(http.StatusSeeOther, path)
}
