package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/vendelo/checkout/internal/order/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvalidEventType = errors.New("invalid_event_type")
	ErrInvalidOrder     = errors.New("invalid_order")
	ErrInvalidVendor    = errors.New("invalid_vendor")
)

// ProviderUTMify is the default attribution provider.
const ProviderUTMify = "utmify"

// EventType is the fixed vocabulary of conversion events sent to the
// attribution provider.
type EventType string

const (
	EventPixGenerated     EventType = "pix_generated"
	EventPurchaseApproved EventType = "purchase_approved"
	EventPurchaseRefused  EventType = "purchase_refused"
	EventRefund           EventType = "refund"
	EventChargeback       EventType = "chargeback"
)

func (e EventType) Valid() bool {
	switch e {
	case EventPixGenerated, EventPurchaseApproved, EventPurchaseRefused, EventRefund, EventChargeback:
		return true
	}
	return false
}

// ForTransition maps an applied order status to the conversion event it
// fires. Expired orders do not convert; pix_generated fires at order
// creation, not on a transition.
func ForTransition(to orderdomain.Status) (EventType, bool) {
	switch to {
	case orderdomain.StatusPaid:
		return EventPurchaseApproved, true
	case orderdomain.StatusRefused:
		return EventPurchaseRefused, true
	case orderdomain.StatusRefunded:
		return EventRefund, true
	case orderdomain.StatusChargeback:
		return EventChargeback, true
	}
	return "", false
}

// VendorIntegrationConfig gates conversion dispatch per vendor. Empty
// allow-lists mean "everything".
type VendorIntegrationConfig struct {
	ID               snowflake.ID   `json:"id" gorm:"primaryKey"`
	VendorID         snowflake.ID   `json:"vendor_id" gorm:"not null;uniqueIndex:ux_vendor_integration_configs_vendor"`
	Provider         string         `json:"provider" gorm:"type:text;not null;default:utmify"`
	IsActive         bool           `json:"is_active" gorm:"not null;default:false"`
	SelectedEvents   datatypes.JSON `json:"selected_events" gorm:"type:jsonb"`
	ProductAllowList datatypes.JSON `json:"product_allow_list" gorm:"type:jsonb"`
	CreatedAt        time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"not null"`
}

func (VendorIntegrationConfig) TableName() string { return "vendor_integration_configs" }

func (c *VendorIntegrationConfig) ParsedSelectedEvents() ([]string, error) {
	return parseStringList(c.SelectedEvents)
}

func (c *VendorIntegrationConfig) ParsedProductAllowList() ([]string, error) {
	return parseStringList(c.ProductAllowList)
}

func parseStringList(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type DispatchStatus string

const (
	DispatchSuccess DispatchStatus = "success"
	DispatchSkipped DispatchStatus = "skipped"
	DispatchFailure DispatchStatus = "failure"
)

// Skip reasons and failure codes.
const (
	SkipNotEnabled = "not_enabled"
	SkipNoToken    = "no_token"

	FailEmptyToken   = "empty_token_after_normalization"
	FailHTTPError    = "http_error"
	FailNetworkError = "network_error"
)

// DispatchResult is the structured outcome of one dispatch attempt. The
// fingerprint identifies the credential in logs; the raw secret never
// appears here.
type DispatchResult struct {
	Status       DispatchStatus `json:"status"`
	Reason       string         `json:"reason,omitempty"`
	HTTPStatus   int            `json:"http_status,omitempty"`
	ResponseBody string         `json:"response_body,omitempty"`
	Fingerprint  string         `json:"fingerprint,omitempty"`
}

func Skipped(reason string) DispatchResult {
	return DispatchResult{Status: DispatchSkipped, Reason: reason}
}

// Dispatcher sends one conversion event for an order. Idempotency comes from
// deterministic payload construction: re-dispatching the same (order, event)
// pair produces a byte-identical request the provider can safely absorb.
type Dispatcher interface {
	Dispatch(ctx context.Context, order *orderdomain.Order, event EventType) DispatchResult
}

// Repository loads vendor integration configuration.
type Repository interface {
	FindByVendor(ctx context.Context, db *gorm.DB, vendorID snowflake.ID) (*VendorIntegrationConfig, error)
	Upsert(ctx context.Context, db *gorm.DB, cfg *VendorIntegrationConfig) error
}
