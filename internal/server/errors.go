package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/boilermanc/onceuponadrawing/internal/docstore"
	fulfillmentdomain "github.com/boilermanc/onceuponadrawing/internal/fulfillment/domain"
	orderdomain "github.com/boilermanc/onceuponadrawing/internal/order/domain"
	paymentdomain "github.com/boilermanc/onceuponadrawing/internal/payment/domain"
	"github.com/boilermanc/onceuponadrawing/internal/webhook"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not_found")
	ErrRateLimited  = errors.New("rate_limited")
)

type apiError struct {
	status  int
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return e.Message }

func newValidationError(field, code, message string) error {
	return &apiError{
		status:  http.StatusBadRequest,
		Code:    code,
		Field:   field,
		Message: message,
	}
}

func invalidRequestError() error {
	return &apiError{
		status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: "invalid request body",
	}
}

// AbortWithError translates domain errors into HTTP responses with a
// stable error envelope.
func AbortWithError(c *gin.Context, err error) {
	status, code := classifyError(err)
	message := err.Error()

	var typed *apiError
	if errors.As(err, &typed) {
		c.AbortWithStatusJSON(typed.status, gin.H{"error": typed})
		return
	}

	if status >= http.StatusInternalServerError {
		message = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{
		"code":    code,
		"message": message,
	}})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrNotFound),
		errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, orderdomain.ErrCreationNotFound),
		errors.Is(err, orderdomain.ErrUnknownPrintJob),
		errors.Is(err, docstore.ErrDocumentNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, orderdomain.ErrInvalidOrder):
		return http.StatusBadRequest, "invalid_order"
	case errors.Is(err, orderdomain.ErrOrderNotReady),
		errors.Is(err, orderdomain.ErrOrderNotPayable),
		errors.Is(err, orderdomain.ErrInvalidTransition),
		errors.Is(err, orderdomain.ErrAlreadyShipped):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, webhook.ErrInvalidSignature),
		errors.Is(err, webhook.ErrMalformedHeader),
		errors.Is(err, webhook.ErrStaleTimestamp):
		return http.StatusUnauthorized, "invalid_signature"
	case errors.Is(err, webhook.ErrMissingSecret):
		return http.StatusServiceUnavailable, "webhook_not_configured"
	case errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, paymentdomain.ErrInvalidProvider):
		return http.StatusBadRequest, "invalid_payload"
	case errors.Is(err, paymentdomain.ErrProviderNotFound):
		return http.StatusNotFound, "provider_not_found"
	case errors.Is(err, docstore.ErrExpiredURL),
		errors.Is(err, docstore.ErrInvalidURLSig),
		errors.Is(err, docstore.ErrMissingKey):
		return http.StatusForbidden, "invalid_document_url"
	case errors.Is(err, fulfillmentdomain.ErrIncompleteAddress),
		errors.Is(err, fulfillmentdomain.ErrMissingDocumentURL):
		return http.StatusBadRequest, "invalid_submission"
	case errors.Is(err, fulfillmentdomain.ErrNoShippingOptions):
		return http.StatusUnprocessableEntity, "no_shipping_options"
	case errors.Is(err, fulfillmentdomain.ErrAuth):
		return http.StatusBadGateway, "partner_auth_failed"
	case errors.Is(err, fulfillmentdomain.ErrSubmission):
		return http.StatusBadGateway, "partner_rejected"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
