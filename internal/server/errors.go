package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/guardline/aegis/internal/auth/domain"
	bookingdomain "github.com/guardline/aegis/internal/booking/domain"
	gatewaydomain "github.com/guardline/aegis/internal/gateway/domain"
	invoicedomain "github.com/guardline/aegis/internal/invoice/domain"
	paymentdomain "github.com/guardline/aegis/internal/payment/domain"
	"github.com/guardline/aegis/pkg/db/pagination"
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
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	}

	var gatewayErr *gatewaydomain.GatewayError
	if errors.As(err, &gatewayErr) {
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_error",
			Message: "payment provider request failed",
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, invoicedomain.ErrDuplicateProviderRef):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
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
		errors.Is(err, bookingdomain.ErrEventDateTooSoon),
		errors.Is(err, bookingdomain.ErrDepositBelowMinimum),
		errors.Is(err, bookingdomain.ErrInvalidTotalAmount),
		errors.Is(err, bookingdomain.ErrInvalidGuardCount),
		errors.Is(err, bookingdomain.ErrMissingContactPhone),
		errors.Is(err, bookingdomain.ErrMissingVenueAddress),
		errors.Is(err, bookingdomain.ErrInvalidPaymentRef),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, bookingdomain.ErrInvalidStatus),
		errors.Is(err, bookingdomain.ErrInvalidTransition),
		errors.Is(err, bookingdomain.ErrPaymentAlreadySettled),
		errors.Is(err, invoicedomain.ErrBookingNotApproved),
		errors.Is(err, invoicedomain.ErrInvalidTransition),
		errors.Is(err, invoicedomain.ErrInvoiceAlreadySettled),
		errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, bookingdomain.ErrBookingNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
