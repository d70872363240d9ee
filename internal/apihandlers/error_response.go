package apihandlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes used in the error envelope.
const (
	CodeBadRequest  = "bad_request"
	CodeNotFound    = "not_found"
	CodeOutOfQuota  = "out_of_quota"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal_error"
)

// APIError is the body of every non-2xx response:
// { "error": { "code": "not_found", "message": "Job not found with ID: ..." } }
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// JSONError writes the error envelope and aborts the handler chain.
func JSONError(ctx *gin.Context, status int, code, msg string) {
	ctx.AbortWithStatusJSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

func BadRequest(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusBadRequest, CodeBadRequest, msg)
}

func NotFound(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusNotFound, CodeNotFound, msg)
}

// TooManyRequests reports an expedited submission dropped for lack of quota.
func TooManyRequests(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusTooManyRequests, CodeOutOfQuota, msg)
}

func Unavailable(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusServiceUnavailable, CodeUnavailable, msg)
}

func Internal(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusInternalServerError, CodeInternal, msg)
}
