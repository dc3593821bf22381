package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	gatewaydomain "github.com/vendelo/checkout/internal/gateway/domain"
	"github.com/vendelo/checkout/internal/installment"
)

const (
	gatewayID   = "stripe"
	displayName = "Stripe"

	defaultBaseURL         = "https://api.stripe.com"
	defaultMaxInstallments = 12
	minInstallmentCents    = 500
)

var interestRate = decimal.RequireFromString("0.0249")

type Config struct {
	BaseURL        string
	PublishableKey string
	Client         *http.Client
}

type Gateway struct {
	baseURL        string
	publishableKey string
	client         *http.Client
}

func New(cfg Config) *Gateway {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{
		baseURL:        baseURL,
		publishableKey: strings.TrimSpace(cfg.PublishableKey),
		client:         client,
	}
}

func (g *Gateway) ID() string          { return gatewayID }
func (g *Gateway) DisplayName() string { return displayName }

func (g *Gateway) InterestRate() decimal.Decimal { return interestRate }

func (g *Gateway) GenerateInstallments(amountCents int64, maxInstallments int) []installment.Installment {
	if maxInstallments <= 0 {
		maxInstallments = defaultMaxInstallments
	}
	return installment.Plan(amountCents, interestRate, maxInstallments, minInstallmentCents)
}

type tokenResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Code    string `json:"code"`
		Param   string `json:"param"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCardToken exchanges a Stripe Elements session for a card token.
// Stripe resolves the brand inside its hosted fields, so this gateway has no
// MetadataResolver; the secure-field events supply the payment-method id.
func (g *Gateway) CreateCardToken(ctx context.Context, req gatewaydomain.CardTokenRequest) (*gatewaydomain.CardToken, []gatewaydomain.FieldError, error) {
	form := url.Values{}
	form.Set("secure_session", req.SecureFieldsSession)
	form.Set("card[name]", req.HolderName)
	if req.TaxID != "" {
		form.Set("card[tax_id]", req.TaxID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/tokens", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Bearer "+g.publishableKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, nil, gatewaydomain.ErrGatewayUnreachable
	}
	defer resp.Body.Close()

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, nil, gatewaydomain.ErrTokenRejected
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Error != nil {
			return nil, []gatewaydomain.FieldError{mapStripeError(parsed.Error.Code, parsed.Error.Param, parsed.Error.Message)}, gatewaydomain.ErrTokenRejected
		}
		return nil, nil, gatewaydomain.ErrTokenRejected
	}
	if strings.TrimSpace(parsed.ID) == "" {
		return nil, nil, gatewaydomain.ErrTokenRejected
	}

	return &gatewaydomain.CardToken{
		Token:           parsed.ID,
		PaymentMethodID: req.PaymentMethodID,
		IssuerID:        req.IssuerID,
	}, nil, nil
}

func mapStripeError(code, param, message string) gatewaydomain.FieldError {
	field := gatewaydomain.FieldCardNumber
	switch {
	case strings.Contains(param, "exp"), code == "invalid_expiry_month", code == "invalid_expiry_year", code == "expired_card":
		field = gatewaydomain.FieldExpiry
	case strings.Contains(param, "cvc"), code == "invalid_cvc", code == "incorrect_cvc":
		field = gatewaydomain.FieldCVV
	case strings.Contains(param, "name"):
		field = gatewaydomain.FieldHolderName
	case strings.Contains(param, "tax_id"):
		field = gatewaydomain.FieldTaxID
	}
	return gatewaydomain.FieldError{Field: field, Code: code, Message: message}
}
