package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound     = errors.New("order_not_found")
	ErrInvalidOrder      = errors.New("invalid_order")
	ErrInvalidItems      = errors.New("invalid_items")
	ErrInvalidEventType  = errors.New("invalid_event_type")
	ErrInvalidEffectTime = errors.New("invalid_effective_time")
)

type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusExpired        Status = "expired"
	StatusRefused        Status = "refused"
	StatusRefunded       Status = "refunded"
	StatusChargeback     Status = "chargeback"
)

type PaymentMethod string

const (
	PaymentMethodPix        PaymentMethod = "pix"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodBoleto     PaymentMethod = "boleto"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodPix, PaymentMethodCreditCard, PaymentMethodBoleto:
		return true
	}
	return false
}

// LifecycleEvent is the normalized event type delivered by webhook adapters
// or gateway polling. Provider wire formats are parsed upstream; this core
// only sees the normalized vocabulary.
type LifecycleEvent string

const (
	EventPaid       LifecycleEvent = "paid"
	EventExpired    LifecycleEvent = "expired"
	EventRefused    LifecycleEvent = "refused"
	EventRefunded   LifecycleEvent = "refund"
	EventChargeback LifecycleEvent = "chargeback"
)

// targetStatus maps a lifecycle event to the status it drives the order into.
var targetStatus = map[LifecycleEvent]Status{
	EventPaid:       StatusPaid,
	EventExpired:    StatusExpired,
	EventRefused:    StatusRefused,
	EventRefunded:   StatusRefunded,
	EventChargeback: StatusChargeback,
}

func (e LifecycleEvent) TargetStatus() (Status, bool) {
	s, ok := targetStatus[e]
	return s, ok
}

// validTransitions is the full transition table. Anything absent is rejected:
// a refund notification for an order that never reached paid is an
// out-of-order delivery, not a state change.
var validTransitions = map[Status][]Status{
	StatusPendingPayment: {StatusPaid, StatusExpired, StatusRefused},
	StatusPaid:           {StatusRefunded, StatusChargeback},
}

func TransitionAllowed(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LineItem is one purchasable row of an order. Subtotals are integer minor
// units; the order amount is always the sum of item subtotals.
type LineItem struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_in_cents"`
	Quantity   int    `json:"quantity"`
}

func (i LineItem) SubtotalCents() int64 {
	return i.PriceCents * int64(i.Quantity)
}

// Tracking carries the marketing attribution parameters captured at checkout.
type Tracking struct {
	Src         *string `json:"src"`
	Sck         *string `json:"sck"`
	UTMSource   *string `json:"utm_source"`
	UTMMedium   *string `json:"utm_medium"`
	UTMCampaign *string `json:"utm_campaign"`
	UTMContent  *string `json:"utm_content"`
	UTMTerm     *string `json:"utm_term"`
}

type Order struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	VendorID      snowflake.ID      `json:"vendor_id" gorm:"not null;index"`
	GatewayID     string            `json:"gateway_id" gorm:"type:text;not null"`
	PaymentMethod PaymentMethod     `json:"payment_method" gorm:"type:text;not null"`
	Status        Status            `json:"status" gorm:"type:text;not null;index"`
	AmountCents   int64             `json:"amount_cents" gorm:"not null"`
	Items         datatypes.JSON    `json:"items" gorm:"type:jsonb;not null"`
	CustomerName  *string           `json:"customer_name" gorm:"type:text"`
	CustomerEmail *string           `json:"customer_email" gorm:"type:text"`
	CustomerPhone *string           `json:"customer_phone" gorm:"type:text"`
	CustomerTaxID *string           `json:"customer_tax_id" gorm:"type:text"`
	CustomerIP    *string           `json:"customer_ip" gorm:"type:text"`
	Tracking      datatypes.JSON    `json:"tracking" gorm:"type:jsonb"`
	Metadata      datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"not null"`
	ApprovedAt    *time.Time        `json:"approved_at"`
	RefundedAt    *time.Time        `json:"refunded_at"`
}

func (Order) TableName() string { return "orders" }

// ParsedItems decodes the line items JSON column.
func (o *Order) ParsedItems() ([]LineItem, error) {
	if len(o.Items) == 0 {
		return nil, nil
	}
	var items []LineItem
	if err := json.Unmarshal(o.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ParsedTracking decodes the tracking JSON column. Absent column means no
// attribution was captured.
func (o *Order) ParsedTracking() (Tracking, error) {
	var tracking Tracking
	if len(o.Tracking) == 0 {
		return tracking, nil
	}
	err := json.Unmarshal(o.Tracking, &tracking)
	return tracking, err
}

type ApplyOutcome string

const (
	OutcomeApplied  ApplyOutcome = "applied"
	OutcomeSkipped  ApplyOutcome = "skipped"
	OutcomeRejected ApplyOutcome = "rejected"
)

const (
	SkipAlreadyInState = "already-in-state"
	RejectInvalid      = "invalid_transition"
	RejectConflict     = "conflict"
)

// ApplyResult reports how a lifecycle event was handled.
type ApplyResult struct {
	Outcome ApplyOutcome `json:"outcome"`
	Reason  string       `json:"reason,omitempty"`
	From    Status       `json:"from,omitempty"`
	To      Status       `json:"to,omitempty"`
}

// Repository is the order-store contract. recordTransition is conditional on
// the expected current status; a concurrent writer winning the race surfaces
// as conflict, never as a silent overwrite.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	RecordTransition(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, effectiveAt time.Time) (bool, error)
}
