package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/vendelo/checkout/internal/installment"
)

var (
	ErrGatewayNotSupported = errors.New("gateway_not_supported")
	ErrInvalidBIN          = errors.New("invalid_bin")
	ErrMetadataUnavailable = errors.New("metadata_unavailable")
	ErrTokenRejected       = errors.New("token_rejected")
	ErrGatewayUnreachable  = errors.New("gateway_unreachable")
)

// Gateway is one implemented payment gateway. The registry serves only this
// set; "coming soon" gateways from the configuration catalog never get a
// Gateway value.
type Gateway interface {
	ID() string
	DisplayName() string
	// InterestRate is the per-count simple interest rate used for card
	// installments on this gateway.
	InterestRate() decimal.Decimal
	// GenerateInstallments computes the installment options for an amount.
	// maxInstallments <= 0 selects the gateway default.
	GenerateInstallments(amountCents int64, maxInstallments int) []installment.Installment
}

// CardMetadata is the BIN-resolved payment-method information. IssuerID may
// be empty; metadata is best effort and never blocks a charge by itself.
type CardMetadata struct {
	PaymentMethodID string
	IssuerID        string
}

// MetadataResolver is implemented by gateways that can resolve card metadata
// from a BIN prefix.
type MetadataResolver interface {
	ResolveCardMetadata(ctx context.Context, bin string) (CardMetadata, error)
}

// Logical checkout fields that gateway errors are mapped onto.
const (
	FieldCardNumber = "card_number"
	FieldExpiry     = "expiry"
	FieldCVV        = "cvv"
	FieldHolderName = "holder_name"
	FieldTaxID      = "tax_id"
)

// FieldError is a gateway rejection mapped to one logical checkout field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CardTokenRequest carries the fields this core owns plus an opaque reference
// to the provider-hosted secure fields holding the card digits. Full card
// numbers never reach this core.
type CardTokenRequest struct {
	SecureFieldsSession string
	HolderName          string
	TaxID               string
	PaymentMethodID     string
	IssuerID            string
	InstallmentCount    int
}

// CardToken is a charge-capable token returned by a gateway.
type CardToken struct {
	Token           string
	PaymentMethodID string
	IssuerID        string
}

// Tokenizer exchanges secure-field data for a charge-capable token. A
// rejection with field-level detail returns ErrTokenRejected alongside the
// mapped field errors.
type Tokenizer interface {
	CreateCardToken(ctx context.Context, req CardTokenRequest) (*CardToken, []FieldError, error)
}
