package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/vendelo/checkout/internal/config"
	"github.com/vendelo/checkout/internal/conversion/domain"
	"github.com/vendelo/checkout/internal/credential"
	credentialdomain "github.com/vendelo/checkout/internal/credential/domain"
	"github.com/vendelo/checkout/internal/observability/metrics"
	orderdomain "github.com/vendelo/checkout/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxResponseSnippet = 256

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	Repo    domain.Repository
	Vault   credentialdomain.Vault
	Metrics *metrics.Metrics
}

// Service pushes conversion events to the vendor's tracking provider. Every
// call resolves the vendor's integration config and credential fresh; there
// is no cache to invalidate when a vendor rotates a token mid-session.
type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      config.ConversionConfig
	repo     domain.Repository
	vault    credentialdomain.Vault
	metrics  *metrics.Metrics
	client   *http.Client
	platform string
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("conversion.service"),
		cfg:     p.Config.Conversion,
		repo:    p.Repo,
		vault:   p.Vault,
		metrics: p.Metrics,
		client: &http.Client{
			Timeout: time.Duration(p.Config.Conversion.TimeoutSeconds) * time.Second,
		},
		platform: p.Config.Conversion.Platform,
	}
}

// Dispatch runs the gate sequence for one (order, event) pair and, when every
// gate passes, posts the payload. A result is always returned; callers decide
// whether a failure is worth retrying.
func (s *Service) Dispatch(ctx context.Context, order *orderdomain.Order, event domain.EventType) domain.DispatchResult {
	if order == nil {
		return s.done(event, domain.DispatchResult{Status: domain.DispatchFailure, Reason: "invalid_order"})
	}
	if !event.Valid() {
		return s.done(event, domain.DispatchResult{Status: domain.DispatchFailure, Reason: "invalid_event"})
	}

	vendorCfg, err := s.repo.FindByVendor(ctx, s.db, order.VendorID)
	if err != nil {
		s.log.Error("integration config lookup failed",
			zap.String("vendor_id", order.VendorID.String()),
			zap.Error(err),
		)
		return s.done(event, domain.DispatchResult{Status: domain.DispatchFailure, Reason: "config_unavailable"})
	}
	if vendorCfg == nil || !vendorCfg.IsActive {
		return s.done(event, domain.Skipped(domain.SkipNotEnabled))
	}

	selected, err := vendorCfg.ParsedSelectedEvents()
	if err != nil {
		return s.done(event, domain.DispatchResult{Status: domain.DispatchFailure, Reason: "config_unavailable"})
	}
	if len(selected) > 0 && !lo.Contains(selected, string(event)) {
		return s.done(event, domain.Skipped(domain.SkipNotEnabled))
	}

	allowList, err := vendorCfg.ParsedProductAllowList()
	if err != nil {
		return s.done(event, domain.DispatchResult{Status: domain.DispatchFailure, Reason: "config_unavailable"})
	}
	if len(allowList) > 0 {
		items, err := order.ParsedItems()
		if err != nil {
			return s.done(event, domain.DispatchResult{Status: domain.DispatchFailure, Reason: "payload_error"})
		}
		// any single allowed product on the order qualifies the whole order
		match := lo.SomeBy(items, func(item orderdomain.LineItem) bool {
			return lo.Contains(allowList, item.ProductID)
		})
		if !match {
			return s.done(event, domain.Skipped(domain.SkipNotEnabled))
		}
	}

	raw, found, err := s.vault.GetCredential(ctx, order.VendorID, vendorCfg.Provider)
	if err != nil {
		s.log.Error("credential lookup failed",
			zap.String("vendor_id", order.VendorID.String()),
			zap.Error(err),
		)
		return s.done(event, domain.DispatchResult{Status: domain.DispatchFailure, Reason: "credential_unavailable"})
	}
	if !found {
		return s.done(event, domain.Skipped(domain.SkipNoToken))
	}

	normalized := credential.Normalize(raw)
	if normalized.Value == "" {
		// the raw value itself never reaches the log, only its size
		s.log.Warn("credential empty after normalization",
			zap.String("vendor_id", order.VendorID.String()),
			zap.Int("raw_length", len(raw)),
			zap.Strings("changes", changeTags(normalized.Changes)),
		)
		return s.done(event, domain.DispatchResult{Status: domain.DispatchFailure, Reason: domain.FailEmptyToken})
	}

	fingerprint := credential.Fingerprint(normalized.Value)
	if len(normalized.Changes) > 0 {
		s.log.Info("credential normalized before use",
			zap.String("vendor_id", order.VendorID.String()),
			zap.String("credential_fingerprint", fingerprint),
			zap.Strings("changes", changeTags(normalized.Changes)),
		)
	}

	payload, err := buildPayload(order, event, s.platform)
	if err != nil {
		return s.done(event, domain.DispatchResult{
			Status:      domain.DispatchFailure,
			Reason:      "payload_error",
			Fingerprint: fingerprint,
		})
	}

	result := s.post(ctx, payload, normalized.Value)
	result.Fingerprint = fingerprint
	return s.done(event, result)
}

func (s *Service) post(ctx context.Context, payload *conversionPayload, token string) domain.DispatchResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.DispatchResult{Status: domain.DispatchFailure, Reason: "payload_error"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.DispatchResult{Status: domain.DispatchFailure, Reason: domain.FailNetworkError}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-token", token)

	resp, err := s.client.Do(req)
	if err != nil {
		// the error string can embed the request URL but never the token
		s.log.Warn("conversion endpoint unreachable",
			zap.String("order_id", payload.OrderID),
			zap.Error(err),
		)
		return domain.DispatchResult{Status: domain.DispatchFailure, Reason: domain.FailNetworkError}
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSnippet))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.log.Warn("conversion endpoint rejected payload",
			zap.String("order_id", payload.OrderID),
			zap.Int("http_status", resp.StatusCode),
			zap.ByteString("response", snippet),
		)
		return domain.DispatchResult{
			Status:       domain.DispatchFailure,
			Reason:       domain.FailHTTPError,
			HTTPStatus:   resp.StatusCode,
			ResponseBody: string(snippet),
		}
	}

	return domain.DispatchResult{
		Status:     domain.DispatchSuccess,
		HTTPStatus: resp.StatusCode,
	}
}

func (s *Service) done(event domain.EventType, result domain.DispatchResult) domain.DispatchResult {
	if s.metrics != nil {
		s.metrics.ConversionDispatches.WithLabelValues(string(event), string(result.Status)).Inc()
	}
	return result
}

func changeTags(changes []credential.Change) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, string(c))
	}
	return out
}

// UpsertConfig saves a vendor's integration settings. Event names and product
// ids are stored as given; filtering happens at dispatch time.
func (s *Service) UpsertConfig(ctx context.Context, cfg *domain.VendorIntegrationConfig) error {
	if cfg == nil || cfg.VendorID == 0 {
		return domain.ErrInvalidVendor
	}
	if cfg.Provider == "" {
		cfg.Provider = domain.ProviderUTMify
	}
	return s.repo.Upsert(ctx, s.db, cfg)
}

// ConfigForVendor returns the stored integration settings, or nil when the
// vendor never configured one.
func (s *Service) ConfigForVendor(ctx context.Context, vendorID snowflake.ID) (*domain.VendorIntegrationConfig, error) {
	if vendorID == 0 {
		return nil, domain.ErrInvalidVendor
	}
	return s.repo.FindByVendor(ctx, s.db, vendorID)
}
