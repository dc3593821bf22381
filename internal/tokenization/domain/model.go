package domain

import (
	"errors"
)

var (
	ErrCardBrandUnknown = errors.New("card_brand_unknown")
	ErrAttemptFinished  = errors.New("attempt_finished")
	ErrSubmitInFlight   = errors.New("submit_in_flight")
	ErrInvalidGateway   = errors.New("invalid_gateway")
	ErrInvalidSession   = errors.New("invalid_session")
)

// State of one tokenization attempt. Collecting and resolving-metadata both
// accept input; submitting blocks further edits; tokenized and failed are
// terminal.
type State string

const (
	StateCollecting        State = "collecting"
	StateResolvingMetadata State = "resolving_metadata"
	StateSubmitting        State = "submitting"
	StateTokenized         State = "tokenized"
	StateFailed            State = "failed"
)

func (s State) Terminal() bool {
	return s == StateTokenized || s == StateFailed
}

// Result of a successful tokenization. TaxID carries digits only, for the
// compliance fields downstream charge calls require.
type Result struct {
	Token            string `json:"token"`
	PaymentMethodID  string `json:"payment_method_id"`
	IssuerID         string `json:"issuer_id,omitempty"`
	InstallmentCount int    `json:"installment_count"`
	TaxID            string `json:"tax_id"`
}
