package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	memberdomain "github.com/trinetlabs/trinet/internal/member/domain"
	orderdomain "github.com/trinetlabs/trinet/internal/order/domain"
	pooldomain "github.com/trinetlabs/trinet/internal/pointpool/domain"
	"github.com/trinetlabs/trinet/internal/queue"
	rewarddomain "github.com/trinetlabs/trinet/internal/reward/domain"
	"github.com/trinetlabs/trinet/internal/tree"
	walletdomain "github.com/trinetlabs/trinet/internal/wallet/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal_error")
	ErrNotFound        = errors.New("not_found")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
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
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isBusinessRejection(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Message: err.Error(),
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case errors.Is(err, queue.ErrQueueFull),
		errors.Is(err, queue.ErrQueueClosed):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, memberdomain.ErrInvalidName),
		errors.Is(err, memberdomain.ErrInvalidEmail),
		errors.Is(err, orderdomain.ErrInvalidOrderAmount),
		errors.Is(err, walletdomain.ErrInvalidAmount),
		errors.Is(err, rewarddomain.ErrInvalidPoints),
		errors.Is(err, rewarddomain.ErrInvalidReward):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, memberdomain.ErrNotFound),
		errors.Is(err, memberdomain.ErrReferrerNotFound),
		errors.Is(err, walletdomain.ErrWalletNotFound),
		errors.Is(err, walletdomain.ErrWithdrawalNotFound),
		errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, pooldomain.ErrPoolNotFound),
		errors.Is(err, tree.ErrSponsorNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, memberdomain.ErrEmailTaken),
		errors.Is(err, rewarddomain.ErrThresholdExists),
		errors.Is(err, walletdomain.ErrInvalidStatus),
		errors.Is(err, orderdomain.ErrInvalidOrderStatus):
		return true
	default:
		return false
	}
}

// isBusinessRejection covers plan-rule refusals: the request was well formed
// but the compensation rules say no.
func isBusinessRejection(err error) bool {
	switch {
	case errors.Is(err, walletdomain.ErrNotEligible),
		errors.Is(err, walletdomain.ErrExceedsWithdrawable),
		errors.Is(err, walletdomain.ErrExceedsRankLimit),
		errors.Is(err, walletdomain.ErrInsufficientBalance),
		errors.Is(err, tree.ErrNoAvailableSlot),
		errors.Is(err, tree.ErrMaxLevelReached):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

// classifyErrorForLog labels the request log line without leaking internals.
func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case asValidationErrors(err) != nil, isValidationError(err):
		return "validation", validationErrorCode(err)
	case isNotFoundError(err):
		return "not_found", err.Error()
	case isConflictError(err):
		return "conflict", err.Error()
	case isBusinessRejection(err):
		return "business_rule", err.Error()
	case errors.Is(err, ErrTooManyRequests):
		return "rate_limited", "too_many_requests"
	default:
		return "internal", "internal_error"
	}
}
