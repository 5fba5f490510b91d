package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/encore/internal/authorization"
	financedomain "github.com/smallbiznis/encore/internal/finance/domain"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
	"github.com/smallbiznis/encore/pkg/db/pagination"
	"gorm.io/gorm"
)

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInvalidID          = errors.New("invalid_id")
	ErrFileTooLarge       = errors.New("file_too_large")
	ErrUnsupportedFile    = errors.New("unsupported_file_type")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// mapError turns err into a status and a client safe body. Internal causes never reach the body.
func mapError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{Message: "internal server error", Error: "internal_error"}
	}

	var ferr *financedomain.Error
	if errors.As(err, &ferr) {
		return mapFinanceError(ferr)
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrUnsupportedFile),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, ledgerdomain.ErrInvalidTransactionType),
		errors.Is(err, financedomain.ErrInvalidRecordType):
		return http.StatusBadRequest, errorResponse{Message: validationMessage(err), Error: err.Error()}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, notificationdomain.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{Message: "unauthorized", Error: "unauthorized"}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorResponse{Message: "you are not allowed to perform this action", Error: "forbidden"}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, notificationdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorResponse{Message: "not found", Error: "not_found"}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Message: "too many uploads, retry later", Error: "rate_limited"}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Message: "service unavailable", Error: "service_unavailable"}
	default:
		return http.StatusInternalServerError, errorResponse{Message: "internal server error", Error: "internal_error"}
	}
}

func mapFinanceError(err *financedomain.Error) (int, errorResponse) {
	switch err.Kind {
	case financedomain.KindValidation:
		return http.StatusBadRequest, errorResponse{Message: err.Message, Error: causeCode(err, "validation_error")}
	case financedomain.KindNotFound:
		return http.StatusNotFound, errorResponse{Message: err.Message, Error: causeCode(err, "not_found")}
	case financedomain.KindInvalidState:
		return http.StatusBadRequest, errorResponse{Message: err.Message, Error: causeCode(err, "invalid_state")}
	case financedomain.KindForbidden:
		return http.StatusForbidden, errorResponse{Message: err.Message, Error: "forbidden"}
	case financedomain.KindDependency:
		return http.StatusBadGateway, errorResponse{Message: err.Message, Error: "dependency_error"}
	default:
		return http.StatusInternalServerError, errorResponse{Message: "internal server error", Error: "internal_error"}
	}
}

// causeCode is the innermost sentinel under err, e.g. "invalid_status".
func causeCode(err *financedomain.Error, fallback string) string {
	cause := err.Err
	if cause == nil {
		return fallback
	}
	for next := errors.Unwrap(cause); next != nil; next = errors.Unwrap(cause) {
		cause = next
	}
	return cause.Error()
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return "file exceeds the upload size limit"
	case errors.Is(err, ErrUnsupportedFile):
		return "only JPEG, PNG and PDF files are accepted"
	case errors.Is(err, ErrInvalidID):
		return "invalid id"
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return "invalid page token"
	case errors.Is(err, ledgerdomain.ErrInvalidTransactionType):
		return "invalid transaction type"
	case errors.Is(err, financedomain.ErrInvalidRecordType):
		return "invalid record type"
	default:
		return "invalid request"
	}
}

// classifyErrorForLog reports the error type and code attached to access log lines.
func classifyErrorForLog(err error) (string, string) {
	var ferr *financedomain.Error
	if errors.As(err, &ferr) {
		return string(ferr.Kind), causeCode(ferr, string(ferr.Kind))
	}
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "internal", payload.Error
	case status == http.StatusTooManyRequests:
		return "rate_limited", payload.Error
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "auth", payload.Error
	default:
		return "client", payload.Error
	}
}
