package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	gatewaydomain "github.com/vendelo/checkout/internal/gateway/domain"
	"github.com/vendelo/checkout/internal/observability/metrics"
	"github.com/vendelo/checkout/internal/tokenization/binlookup"
	"github.com/vendelo/checkout/internal/tokenization/domain"
	"github.com/vendelo/checkout/internal/tokenization/securefield"
	"go.uber.org/zap"
)

// Attempt is one run at tokenizing a card. The card digits live inside the
// provider-hosted secure fields; this side owns only the holder name and tax
// id plus the lifecycle around them.
type Attempt struct {
	log     *zap.Logger
	metrics *metrics.Metrics

	gateway   gatewaydomain.Gateway
	tokenizer gatewaydomain.Tokenizer
	resolver  *binlookup.Resolver
	mount     *securefield.Handle
	session   string

	mu           sync.Mutex
	state        domain.State
	holderName   string
	taxIDDigits  string
	installments int
	override     *gatewaydomain.CardMetadata
	localErrors  map[string]gatewaydomain.FieldError
}

// State reports where the attempt is. Collecting flips to resolving-metadata
// while a BIN lookup is in flight; input stays open in both.
func (a *Attempt) State() domain.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == domain.StateCollecting && a.resolver.Busy() {
		return domain.StateResolvingMetadata
	}
	return a.state
}

// SetHolderName records the holder name and runs the blur-time validation.
func (a *Attempt) SetHolderName(v string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Terminal() || a.state == domain.StateSubmitting {
		return
	}
	a.holderName = strings.TrimSpace(v)
	a.validateHolderNameLocked()
}

// SetTaxID records the customer document, keeping digits only. CPF is 11
// digits, CNPJ is 14; anything else is a field error.
func (a *Attempt) SetTaxID(v string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Terminal() || a.state == domain.StateSubmitting {
		return
	}
	a.taxIDDigits = digitsOnly(v)
	a.validateTaxIDLocked()
}

// SetInstallments selects the installment count for the eventual charge.
func (a *Attempt) SetInstallments(count int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Terminal() || a.state == domain.StateSubmitting {
		return
	}
	if count < 1 {
		count = 1
	}
	a.installments = count
}

// ObserveCardNumber ingests the secure-field value-changed event carrying the
// digits typed so far. Metadata resolution is asynchronous and best effort.
func (a *Attempt) ObserveCardNumber(ctx context.Context, digits string) {
	a.mu.Lock()
	if a.state.Terminal() || a.state == domain.StateSubmitting {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	a.resolver.Observe(ctx, digits)
}

// SetCardMetadata accepts metadata pushed by the gateway's hosted fields,
// taking precedence over BIN lookup results.
func (a *Attempt) SetCardMetadata(meta gatewaydomain.CardMetadata) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Terminal() || a.state == domain.StateSubmitting {
		return
	}
	a.override = &meta
}

// FieldErrors returns the current local validation errors.
func (a *Attempt) FieldErrors() []gatewaydomain.FieldError {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fieldErrorList(a.localErrors)
}

// Submit exchanges the collected input for a token. Local validation errors
// and gateway-reported field errors come back merged in one list. A missing
// payment-method id fails before anything is sent; an incomplete charge
// request is worse than a late one.
func (a *Attempt) Submit(ctx context.Context) (*domain.Result, []gatewaydomain.FieldError, error) {
	a.mu.Lock()
	switch {
	case a.state.Terminal():
		a.mu.Unlock()
		return nil, nil, domain.ErrAttemptFinished
	case a.state == domain.StateSubmitting:
		a.mu.Unlock()
		return nil, nil, domain.ErrSubmitInFlight
	}

	a.validateHolderNameLocked()
	a.validateTaxIDLocked()
	if len(a.localErrors) > 0 {
		fieldErrs := fieldErrorList(a.localErrors)
		a.mu.Unlock()
		a.countSubmit("validation_error")
		return nil, fieldErrs, gatewaydomain.ErrTokenRejected
	}

	meta, ok := a.metadata()
	if !ok || meta.PaymentMethodID == "" {
		a.mu.Unlock()
		a.countSubmit("brand_unknown")
		return nil, nil, domain.ErrCardBrandUnknown
	}

	req := gatewaydomain.CardTokenRequest{
		SecureFieldsSession: a.session,
		HolderName:          a.holderName,
		TaxID:               a.taxIDDigits,
		PaymentMethodID:     meta.PaymentMethodID,
		IssuerID:            meta.IssuerID,
		InstallmentCount:    a.installments,
	}
	a.state = domain.StateSubmitting
	a.mu.Unlock()

	token, fieldErrs, err := a.tokenizer.CreateCardToken(ctx, req)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.state = domain.StateFailed
		a.mount.Release()
		a.resolver.Stop()
		if errors.Is(err, gatewaydomain.ErrTokenRejected) {
			a.countSubmit("rejected")
			a.log.Info("card token rejected",
				zap.String("gateway", a.gateway.ID()),
				zap.Int("field_errors", len(fieldErrs)),
			)
			return nil, fieldErrs, err
		}
		a.countSubmit("unreachable")
		a.log.Warn("card token request failed",
			zap.String("gateway", a.gateway.ID()),
			zap.Error(err),
		)
		return nil, nil, err
	}

	a.state = domain.StateTokenized
	a.mount.Release()
	a.resolver.Stop()
	a.countSubmit("tokenized")

	return &domain.Result{
		Token:            token.Token,
		PaymentMethodID:  token.PaymentMethodID,
		IssuerID:         token.IssuerID,
		InstallmentCount: req.InstallmentCount,
		TaxID:            req.TaxID,
	}, nil, nil
}

// Abandon discards the attempt before submission, releasing the secure-field
// mount and any in-flight metadata lookup.
func (a *Attempt) Abandon() {
	a.mu.Lock()
	if a.state.Terminal() {
		a.mu.Unlock()
		return
	}
	a.state = domain.StateFailed
	a.mu.Unlock()

	a.resolver.Stop()
	a.mount.Release()
}

func (a *Attempt) metadata() (gatewaydomain.CardMetadata, bool) {
	if a.override != nil {
		return *a.override, true
	}
	return a.resolver.Current()
}

func (a *Attempt) validateHolderNameLocked() {
	if a.holderName == "" {
		a.localErrors[gatewaydomain.FieldHolderName] = gatewaydomain.FieldError{
			Field:   gatewaydomain.FieldHolderName,
			Code:    "required",
			Message: "holder name is required",
		}
		return
	}
	delete(a.localErrors, gatewaydomain.FieldHolderName)
}

func (a *Attempt) validateTaxIDLocked() {
	if n := len(a.taxIDDigits); n != 11 && n != 14 {
		a.localErrors[gatewaydomain.FieldTaxID] = gatewaydomain.FieldError{
			Field:   gatewaydomain.FieldTaxID,
			Code:    "invalid_length",
			Message: "document must be a CPF (11 digits) or CNPJ (14 digits)",
		}
		return
	}
	delete(a.localErrors, gatewaydomain.FieldTaxID)
}

func (a *Attempt) countSubmit(outcome string) {
	if a.metrics != nil {
		a.metrics.CardTokenRequests.WithLabelValues(a.gateway.ID(), outcome).Inc()
	}
}

func digitsOnly(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func fieldErrorList(m map[string]gatewaydomain.FieldError) []gatewaydomain.FieldError {
	if len(m) == 0 {
		return nil
	}
	out := make([]gatewaydomain.FieldError, 0, len(m))
	for _, field := range []string{
		gatewaydomain.FieldCardNumber,
		gatewaydomain.FieldExpiry,
		gatewaydomain.FieldCVV,
		gatewaydomain.FieldHolderName,
		gatewaydomain.FieldTaxID,
	} {
		if fe, ok := m[field]; ok {
			out = append(out, fe)
		}
	}
	return out
}
