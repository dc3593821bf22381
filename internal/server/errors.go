package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	conversiondomain "github.com/vendelo/checkout/internal/conversion/domain"
	credentialdomain "github.com/vendelo/checkout/internal/credential/domain"
	gatewaydomain "github.com/vendelo/checkout/internal/gateway/domain"
	orderdomain "github.com/vendelo/checkout/internal/order/domain"
	"github.com/vendelo/checkout/internal/orderlock"
	tokenizationdomain "github.com/vendelo/checkout/internal/tokenization/domain"
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
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
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
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(err),
					Code:    err.Error(),
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, gatewaydomain.ErrGatewayNotSupported):
		return http.StatusBadRequest, errorPayload{
			Type:    "not_supported",
			Message: "gateway not supported",
		}
	case errors.Is(err, tokenizationdomain.ErrCardBrandUnknown):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "tokenization_error",
			Message: "could not identify card brand",
			Errors: []ValidationError{
				{
					Field:   gatewaydomain.FieldCardNumber,
					Code:    "brand_unknown",
					Message: "could not identify card brand",
				},
			},
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, orderlock.ErrOrderBusy):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, gatewaydomain.ErrGatewayUnreachable),
		errors.Is(err, ErrServiceUnavailable):
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
		errors.Is(err, orderdomain.ErrInvalidOrder),
		errors.Is(err, orderdomain.ErrInvalidItems),
		errors.Is(err, orderdomain.ErrInvalidEventType),
		errors.Is(err, orderdomain.ErrInvalidEffectTime),
		errors.Is(err, conversiondomain.ErrInvalidEventType),
		errors.Is(err, conversiondomain.ErrInvalidVendor),
		errors.Is(err, credentialdomain.ErrInvalidVendor),
		errors.Is(err, credentialdomain.ErrInvalidGateway),
		errors.Is(err, gatewaydomain.ErrInvalidBIN),
		errors.Is(err, tokenizationdomain.ErrInvalidSession):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(err error) string {
	switch {
	case errors.Is(err, orderdomain.ErrInvalidItems):
		return "items"
	case errors.Is(err, orderdomain.ErrInvalidEventType),
		errors.Is(err, conversiondomain.ErrInvalidEventType):
		return "event_type"
	case errors.Is(err, orderdomain.ErrInvalidEffectTime):
		return "effective_at"
	case errors.Is(err, conversiondomain.ErrInvalidVendor),
		errors.Is(err, credentialdomain.ErrInvalidVendor):
		return "vendor_id"
	case errors.Is(err, credentialdomain.ErrInvalidGateway):
		return "gateway_id"
	case errors.Is(err, gatewaydomain.ErrInvalidBIN):
		return "card_number"
	case errors.Is(err, tokenizationdomain.ErrInvalidSession):
		return "session"
	default:
		return "request"
	}
}
