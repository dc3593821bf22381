package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gatewaydomain "github.com/vendelo/checkout/internal/gateway/domain"
)

type tokenizeRequest struct {
	GatewayID        string `json:"gateway_id"`
	Session          string `json:"session"`
	HolderName       string `json:"holder_name"`
	TaxID            string `json:"tax_id"`
	CardNumberPrefix string `json:"card_number_prefix"`
	PaymentMethodID  string `json:"payment_method_id"`
	IssuerID         string `json:"issuer_id"`
	InstallmentCount int    `json:"installment_count"`
}

type tokenizeResponse struct {
	Token            string `json:"token"`
	PaymentMethodID  string `json:"payment_method_id"`
	IssuerID         string `json:"issuer_id,omitempty"`
	InstallmentCount int    `json:"installment_count"`
}

// tokenizeCard runs one full tokenization attempt in a single request. The
// interactive collecting phase happens in the hosted fields on the client;
// this endpoint receives the session reference plus the locally owned fields
// and finishes the exchange.
func (s *Server) tokenizeCard(c *gin.Context) {
	var req tokenizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	attempt, err := s.tokenSvc.NewAttempt(req.GatewayID, req.Session)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer attempt.Abandon()

	attempt.SetHolderName(req.HolderName)
	attempt.SetTaxID(req.TaxID)
	attempt.SetInstallments(req.InstallmentCount)

	switch {
	case req.PaymentMethodID != "":
		// hosted fields already resolved the brand client-side
		attempt.SetCardMetadata(gatewaydomain.CardMetadata{
			PaymentMethodID: req.PaymentMethodID,
			IssuerID:        req.IssuerID,
		})
	case req.CardNumberPrefix != "":
		if meta, ok := s.resolveMetadata(c, req.GatewayID, req.CardNumberPrefix); ok {
			attempt.SetCardMetadata(meta)
		}
	}

	result, fieldErrs, err := attempt.Submit(c.Request.Context())
	if err != nil {
		if len(fieldErrs) > 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": errorPayload{
					Type:    "tokenization_error",
					Message: "tokenization failed",
					Errors:  toValidationErrors(fieldErrs),
				},
			})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tokenizeResponse{
		Token:            result.Token,
		PaymentMethodID:  result.PaymentMethodID,
		IssuerID:         result.IssuerID,
		InstallmentCount: result.InstallmentCount,
	})
}

// resolveMetadata performs the BIN lookup synchronously; the request is the
// whole session here, so there is no typing to race against. Best effort: a
// miss leaves the attempt to fail with brand-unknown on submit.
func (s *Server) resolveMetadata(c *gin.Context, gatewayID, prefix string) (gatewaydomain.CardMetadata, bool) {
	gw, err := s.registry.Resolve(gatewayID)
	if err != nil {
		return gatewaydomain.CardMetadata{}, false
	}
	resolver, ok := gw.(gatewaydomain.MetadataResolver)
	if !ok {
		return gatewaydomain.CardMetadata{}, false
	}
	meta, err := resolver.ResolveCardMetadata(c.Request.Context(), prefix)
	if err != nil {
		return gatewaydomain.CardMetadata{}, false
	}
	return meta, true
}

func toValidationErrors(fieldErrs []gatewaydomain.FieldError) []ValidationError {
	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field,
			Code:    fe.Code,
			Message: fe.Message,
		})
	}
	return out
}
