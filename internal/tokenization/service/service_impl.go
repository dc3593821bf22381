package service

import (
	"strings"
	"time"

	"github.com/vendelo/checkout/internal/config"
	"github.com/vendelo/checkout/internal/gateway"
	gatewaydomain "github.com/vendelo/checkout/internal/gateway/domain"
	"github.com/vendelo/checkout/internal/observability/metrics"
	"github.com/vendelo/checkout/internal/tokenization/binlookup"
	"github.com/vendelo/checkout/internal/tokenization/domain"
	"github.com/vendelo/checkout/internal/tokenization/securefield"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Config   config.Config
	Registry *gateway.Registry
	Mounts   *securefield.Registry
	Metrics  *metrics.Metrics
}

// Service creates tokenization attempts. One attempt covers one try at
// turning secure-field input into a charge-capable token; a failed attempt is
// discarded and a fresh one created.
type Service struct {
	log      *zap.Logger
	registry *gateway.Registry
	mounts   *securefield.Registry
	metrics  *metrics.Metrics
	timeout  time.Duration
}

func NewService(p Params) *Service {
	return &Service{
		log:      p.Log.Named("tokenization.service"),
		registry: p.Registry,
		mounts:   p.Mounts,
		metrics:  p.Metrics,
		timeout:  time.Duration(p.Config.Gateway.TimeoutSeconds) * time.Second,
	}
}

// NewAttempt starts an attempt against a gateway for one checkout session.
// The session's secure-field mount is acquired here and released when the
// attempt finishes or is abandoned.
func (s *Service) NewAttempt(gatewayID, session string) (*Attempt, error) {
	if strings.TrimSpace(session) == "" {
		return nil, domain.ErrInvalidSession
	}
	gw, err := s.registry.Resolve(gatewayID)
	if err != nil {
		return nil, err
	}
	tokenizer, ok := gw.(gatewaydomain.Tokenizer)
	if !ok {
		return nil, gatewaydomain.ErrGatewayNotSupported
	}

	// gateways without a BIN backend push metadata from their hosted fields
	backend, _ := gw.(gatewaydomain.MetadataResolver)

	mount, attached := s.mounts.Acquire(session)
	if attached {
		s.log.Debug("attached to existing secure-field mount",
			zap.String("session", session),
			zap.String("gateway", gw.ID()),
		)
	}

	return &Attempt{
		log:          s.log,
		metrics:      s.metrics,
		gateway:      gw,
		tokenizer:    tokenizer,
		resolver:     binlookup.New(backend, s.log, s.timeout),
		mount:        mount,
		session:      session,
		state:        domain.StateCollecting,
		installments: 1,
		localErrors:  make(map[string]gatewaydomain.FieldError),
	}, nil
}
