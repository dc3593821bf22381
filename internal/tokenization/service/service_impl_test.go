package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendelo/checkout/internal/config"
	"github.com/vendelo/checkout/internal/gateway"
	gatewaydomain "github.com/vendelo/checkout/internal/gateway/domain"
	"github.com/vendelo/checkout/internal/installment"
	"github.com/vendelo/checkout/internal/observability/metrics"
	"github.com/vendelo/checkout/internal/tokenization/domain"
	"github.com/vendelo/checkout/internal/tokenization/securefield"
	"go.uber.org/zap"
)

// stubGateway implements Gateway plus Tokenizer; resolveMeta controls whether
// it also answers BIN lookups.
type stubGateway struct {
	tokenErr  error
	fieldErrs []gatewaydomain.FieldError
	meta      *gatewaydomain.CardMetadata

	lastRequest gatewaydomain.CardTokenRequest
}

func (g *stubGateway) ID() string                    { return "stub" }
func (g *stubGateway) DisplayName() string           { return "Stub Gateway" }
func (g *stubGateway) InterestRate() decimal.Decimal { return decimal.Zero }

func (g *stubGateway) GenerateInstallments(amountCents int64, maxInstallments int) []installment.Installment {
	return installment.Plan(amountCents, decimal.Zero, maxInstallments, 1)
}

func (g *stubGateway) CreateCardToken(ctx context.Context, req gatewaydomain.CardTokenRequest) (*gatewaydomain.CardToken, []gatewaydomain.FieldError, error) {
	g.lastRequest = req
	if g.tokenErr != nil {
		return nil, g.fieldErrs, g.tokenErr
	}
	return &gatewaydomain.CardToken{
		Token:           "tok_abc123",
		PaymentMethodID: req.PaymentMethodID,
		IssuerID:        req.IssuerID,
	}, nil, nil
}

type resolvingStubGateway struct {
	stubGateway
}

func (g *resolvingStubGateway) ResolveCardMetadata(ctx context.Context, bin string) (gatewaydomain.CardMetadata, error) {
	if g.meta == nil {
		return gatewaydomain.CardMetadata{}, gatewaydomain.ErrMetadataUnavailable
	}
	return *g.meta, nil
}

func newTokenService(t *testing.T, gw gatewaydomain.Gateway) (*Service, *securefield.Registry) {
	t.Helper()

	mounts := securefield.NewRegistry()
	svc := NewService(Params{
		Log:      zap.NewNop(),
		Config:   config.Config{Gateway: config.GatewayConfig{TimeoutSeconds: 5}},
		Registry: gateway.NewRegistry(gw),
		Mounts:   mounts,
		Metrics:  metrics.New(),
	})
	return svc, mounts
}

func fillValid(a *Attempt) {
	a.SetHolderName("Maria Souza")
	a.SetTaxID("123.456.789-09")
	a.SetInstallments(3)
	a.SetCardMetadata(gatewaydomain.CardMetadata{PaymentMethodID: "visa", IssuerID: "1001"})
}

func TestNewAttemptValidation(t *testing.T) {
	svc, _ := newTokenService(t, &stubGateway{})

	_, err := svc.NewAttempt("unknown", "sess_1")
	assert.ErrorIs(t, err, gatewaydomain.ErrGatewayNotSupported)

	_, err = svc.NewAttempt("stub", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}

func TestNewAttemptOwnsSecureFieldMount(t *testing.T) {
	svc, mounts := newTokenService(t, &stubGateway{})

	first, err := svc.NewAttempt("stub", "sess_1")
	require.NoError(t, err)
	assert.True(t, mounts.Mounted("sess_1"))

	// a re-render acquires again and attaches instead of double-mounting
	second, err := svc.NewAttempt("stub", "sess_1")
	require.NoError(t, err)

	first.Abandon()
	assert.True(t, mounts.Mounted("sess_1"))
	second.Abandon()
	assert.False(t, mounts.Mounted("sess_1"))
}

func TestSubmitMergesLocalValidationErrors(t *testing.T) {
	svc, _ := newTokenService(t, &stubGateway{})
	attempt, err := svc.NewAttempt("stub", "sess_1")
	require.NoError(t, err)
	defer attempt.Abandon()

	attempt.SetHolderName("   ")
	attempt.SetTaxID("123")

	_, fieldErrs, err := attempt.Submit(context.Background())
	assert.ErrorIs(t, err, gatewaydomain.ErrTokenRejected)
	require.Len(t, fieldErrs, 2)
	assert.Equal(t, gatewaydomain.FieldHolderName, fieldErrs[0].Field)
	assert.Equal(t, gatewaydomain.FieldTaxID, fieldErrs[1].Field)

	// a failed validation leaves the attempt open for another try
	assert.Equal(t, domain.StateCollecting, attempt.State())
}

func TestSubmitFailsWithoutCardBrand(t *testing.T) {
	svc, _ := newTokenService(t, &stubGateway{})
	attempt, err := svc.NewAttempt("stub", "sess_1")
	require.NoError(t, err)
	defer attempt.Abandon()

	attempt.SetHolderName("Maria Souza")
	attempt.SetTaxID("12345678909")

	_, _, err = attempt.Submit(context.Background())
	assert.ErrorIs(t, err, domain.ErrCardBrandUnknown)
	assert.Equal(t, domain.StateCollecting, attempt.State())
}

func TestSubmitSucceeds(t *testing.T) {
	gw := &stubGateway{}
	svc, mounts := newTokenService(t, gw)
	attempt, err := svc.NewAttempt("stub", "sess_1")
	require.NoError(t, err)

	fillValid(attempt)

	result, fieldErrs, err := attempt.Submit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fieldErrs)
	assert.Equal(t, "tok_abc123", result.Token)
	assert.Equal(t, "visa", result.PaymentMethodID)
	assert.Equal(t, "1001", result.IssuerID)
	assert.Equal(t, 3, result.InstallmentCount)
	assert.Equal(t, "12345678909", result.TaxID, "tax id must be digits only")

	assert.Equal(t, domain.StateTokenized, attempt.State())
	assert.False(t, mounts.Mounted("sess_1"), "mount released on completion")
	assert.Equal(t, "12345678909", gw.lastRequest.TaxID)

	_, _, err = attempt.Submit(context.Background())
	assert.ErrorIs(t, err, domain.ErrAttemptFinished)
}

func TestSubmitSurfacesGatewayFieldErrors(t *testing.T) {
	gw := &stubGateway{
		tokenErr: gatewaydomain.ErrTokenRejected,
		fieldErrs: []gatewaydomain.FieldError{
			{Field: gatewaydomain.FieldExpiry, Code: "invalid_expiry", Message: "expiration date is invalid"},
		},
	}
	svc, _ := newTokenService(t, gw)
	attempt, err := svc.NewAttempt("stub", "sess_1")
	require.NoError(t, err)

	fillValid(attempt)

	_, fieldErrs, err := attempt.Submit(context.Background())
	assert.ErrorIs(t, err, gatewaydomain.ErrTokenRejected)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, gatewaydomain.FieldExpiry, fieldErrs[0].Field)
	assert.Equal(t, domain.StateFailed, attempt.State())
}

func TestObserveCardNumberResolvesMetadata(t *testing.T) {
	gw := &resolvingStubGateway{}
	gw.meta = &gatewaydomain.CardMetadata{PaymentMethodID: "master", IssuerID: "2002"}
	svc, _ := newTokenService(t, gw)

	attempt, err := svc.NewAttempt("stub", "sess_1")
	require.NoError(t, err)

	attempt.SetHolderName("Maria Souza")
	attempt.SetTaxID("12345678909")
	attempt.ObserveCardNumber(context.Background(), "5222 22")

	require.Eventually(t, func() bool {
		return attempt.State() == domain.StateCollecting
	}, 2*time.Second, 5*time.Millisecond, "resolution should finish")

	result, _, err := attempt.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "master", result.PaymentMethodID)
	assert.Equal(t, "2002", result.IssuerID)
}

func TestAbandonReleasesResources(t *testing.T) {
	svc, mounts := newTokenService(t, &stubGateway{})
	attempt, err := svc.NewAttempt("stub", "sess_1")
	require.NoError(t, err)

	attempt.Abandon()
	assert.Equal(t, domain.StateFailed, attempt.State())
	assert.False(t, mounts.Mounted("sess_1"))

	_, _, err = attempt.Submit(context.Background())
	assert.ErrorIs(t, err, domain.ErrAttemptFinished)
}
