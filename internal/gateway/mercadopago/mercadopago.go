package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	gatewaydomain "github.com/vendelo/checkout/internal/gateway/domain"
	"github.com/vendelo/checkout/internal/installment"
)

const (
	gatewayID   = "mercadopago"
	displayName = "Mercado Pago"

	defaultBaseURL         = "https://api.mercadopago.com"
	defaultMaxInstallments = 12
	// Minimum per-installment value accepted by the gateway, in centavos.
	minInstallmentCents = 500
)

// interestRate is the fixed per-count simple interest applied to card
// installments charged through Mercado Pago.
var interestRate = decimal.RequireFromString("0.0299")

type Config struct {
	BaseURL   string
	PublicKey string
	Client    *http.Client
}

type Gateway struct {
	baseURL   string
	publicKey string
	client    *http.Client
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
		baseURL:   baseURL,
		publicKey: strings.TrimSpace(cfg.PublicKey),
		client:    client,
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

type paymentMethodsResponse struct {
	Results []struct {
		ID     string `json:"id"`
		Issuer struct {
			ID json.Number `json:"id"`
		} `json:"issuer"`
	} `json:"results"`
}

// ResolveCardMetadata resolves the payment-method and issuer identifiers for
// a BIN prefix. Best effort: callers must tolerate failure.
func (g *Gateway) ResolveCardMetadata(ctx context.Context, bin string) (gatewaydomain.CardMetadata, error) {
	bin = strings.TrimSpace(bin)
	if len(bin) < 6 {
		return gatewaydomain.CardMetadata{}, gatewaydomain.ErrInvalidBIN
	}

	query := url.Values{}
	query.Set("bin", bin[:6])
	query.Set("public_key", g.publicKey)
	endpoint := fmt.Sprintf("%s/v1/payment_methods/search?%s", g.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gatewaydomain.CardMetadata{}, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return gatewaydomain.CardMetadata{}, gatewaydomain.ErrGatewayUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gatewaydomain.CardMetadata{}, gatewaydomain.ErrMetadataUnavailable
	}

	var parsed paymentMethodsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return gatewaydomain.CardMetadata{}, gatewaydomain.ErrMetadataUnavailable
	}
	if len(parsed.Results) == 0 || strings.TrimSpace(parsed.Results[0].ID) == "" {
		return gatewaydomain.CardMetadata{}, gatewaydomain.ErrMetadataUnavailable
	}

	return gatewaydomain.CardMetadata{
		PaymentMethodID: strings.TrimSpace(parsed.Results[0].ID),
		IssuerID:        parsed.Results[0].Issuer.ID.String(),
	}, nil
}

type cardTokenRequest struct {
	SecureFieldsSession string `json:"secure_fields_session"`
	CardholderName      string `json:"cardholder_name"`
	Identification      struct {
		Type   string `json:"type"`
		Number string `json:"number"`
	} `json:"identification"`
	PaymentMethodID string `json:"payment_method_id"`
	IssuerID        string `json:"issuer_id,omitempty"`
}

type cardTokenResponse struct {
	ID    string `json:"id"`
	Cause []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"cause"`
}

func (g *Gateway) CreateCardToken(ctx context.Context, req gatewaydomain.CardTokenRequest) (*gatewaydomain.CardToken, []gatewaydomain.FieldError, error) {
	body := cardTokenRequest{
		SecureFieldsSession: req.SecureFieldsSession,
		CardholderName:      req.HolderName,
		PaymentMethodID:     req.PaymentMethodID,
		IssuerID:            req.IssuerID,
	}
	body.Identification.Type = identificationType(req.TaxID)
	body.Identification.Number = req.TaxID

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/card_tokens?public_key=%s", g.baseURL, url.QueryEscape(g.publicKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, nil, gatewaydomain.ErrGatewayUnreachable
	}
	defer resp.Body.Close()

	var parsed cardTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, nil, gatewaydomain.ErrTokenRejected
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fieldErrs := make([]gatewaydomain.FieldError, 0, len(parsed.Cause))
		for _, cause := range parsed.Cause {
			fieldErrs = append(fieldErrs, mapCause(cause.Code, cause.Description))
		}
		return nil, fieldErrs, gatewaydomain.ErrTokenRejected
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

// mapCause maps Mercado Pago card-token error codes onto the logical
// checkout fields.
func mapCause(code, description string) gatewaydomain.FieldError {
	field := gatewaydomain.FieldCardNumber
	switch code {
	case "205", "E301":
		field = gatewaydomain.FieldCardNumber
	case "208", "209", "325", "326":
		field = gatewaydomain.FieldExpiry
	case "224", "E302":
		field = gatewaydomain.FieldCVV
	case "221", "316":
		field = gatewaydomain.FieldHolderName
	case "214", "324":
		field = gatewaydomain.FieldTaxID
	}
	return gatewaydomain.FieldError{Field: field, Code: code, Message: description}
}

func identificationType(taxID string) string {
	if len(taxID) > 11 {
		return "CNPJ"
	}
	return "CPF"
}
