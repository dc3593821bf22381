package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vendelo/checkout/internal/clock"
	conversiondomain "github.com/vendelo/checkout/internal/conversion/domain"
	orderdomain "github.com/vendelo/checkout/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       orderdomain.Repository
	Dispatcher conversiondomain.Dispatcher
}

// Service is the order lifecycle state machine. It is the only writer of
// order status; callers must serialize concurrent ApplyEvent calls for the
// same order (different orders are independent).
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       orderdomain.Repository
	dispatcher conversiondomain.Dispatcher
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("order.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		dispatcher: p.Dispatcher,
	}
}

// CreateOrderInput is a successful checkout submission.
type CreateOrderInput struct {
	VendorID      snowflake.ID
	GatewayID     string
	PaymentMethod orderdomain.PaymentMethod
	Items         []orderdomain.LineItem
	CustomerName  *string
	CustomerEmail *string
	CustomerPhone *string
	CustomerTaxID *string
	CustomerIP    *string
	Tracking      orderdomain.Tracking
	Metadata      map[string]any
}

// CreateOrder persists a pending order. The amount is always derived from
// the line items, never taken from the caller. PIX orders fire the
// pix_generated conversion event at creation regardless of later outcome.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*orderdomain.Order, error) {
	if input.VendorID == 0 || strings.TrimSpace(input.GatewayID) == "" {
		return nil, orderdomain.ErrInvalidOrder
	}
	if !input.PaymentMethod.Valid() {
		return nil, orderdomain.ErrInvalidOrder
	}
	if len(input.Items) == 0 {
		return nil, orderdomain.ErrInvalidItems
	}

	var amountCents int64
	for _, item := range input.Items {
		if strings.TrimSpace(item.ProductID) == "" || item.PriceCents < 0 || item.Quantity < 1 {
			return nil, orderdomain.ErrInvalidItems
		}
		amountCents += item.SubtotalCents()
	}

	itemsJSON, err := json.Marshal(input.Items)
	if err != nil {
		return nil, orderdomain.ErrInvalidItems
	}
	trackingJSON, err := json.Marshal(input.Tracking)
	if err != nil {
		return nil, orderdomain.ErrInvalidOrder
	}

	now := s.clock.Now()
	order := &orderdomain.Order{
		ID:            s.genID.Generate(),
		VendorID:      input.VendorID,
		GatewayID:     strings.ToLower(strings.TrimSpace(input.GatewayID)),
		PaymentMethod: input.PaymentMethod,
		Status:        orderdomain.StatusPendingPayment,
		AmountCents:   amountCents,
		Items:         datatypes.JSON(itemsJSON),
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		CustomerPhone: input.CustomerPhone,
		CustomerTaxID: input.CustomerTaxID,
		CustomerIP:    input.CustomerIP,
		Tracking:      datatypes.JSON(trackingJSON),
		Metadata:      datatypes.JSONMap(input.Metadata),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, order); err != nil {
		return nil, err
	}

	if order.PaymentMethod == orderdomain.PaymentMethodPix {
		s.dispatch(ctx, order, conversiondomain.EventPixGenerated)
	}

	return order, nil
}

// ApplyEvent applies one normalized gateway/webhook notification.
//
// Re-delivery of an event whose target matches the current status returns
// skipped and runs no side effects. An event whose target is not reachable
// from the current status is rejected; retry policy belongs to the caller.
func (s *Service) ApplyEvent(ctx context.Context, orderID snowflake.ID, event orderdomain.LifecycleEvent, effectiveAt time.Time, metadata map[string]any) (orderdomain.ApplyResult, error) {
	target, ok := event.TargetStatus()
	if !ok {
		return orderdomain.ApplyResult{}, orderdomain.ErrInvalidEventType
	}
	if effectiveAt.IsZero() {
		return orderdomain.ApplyResult{}, orderdomain.ErrInvalidEffectTime
	}

	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return orderdomain.ApplyResult{}, err
	}
	if order == nil {
		return orderdomain.ApplyResult{}, orderdomain.ErrOrderNotFound
	}

	if order.Status == target {
		s.log.Info("duplicate lifecycle event skipped",
			zap.String("order_id", orderID.String()),
			zap.String("event", string(event)),
			zap.String("status", string(order.Status)),
		)
		return orderdomain.ApplyResult{
			Outcome: orderdomain.OutcomeSkipped,
			Reason:  orderdomain.SkipAlreadyInState,
			From:    order.Status,
			To:      target,
		}, nil
	}

	if !orderdomain.TransitionAllowed(order.Status, target) {
		s.log.Warn("out-of-order lifecycle event rejected",
			zap.String("order_id", orderID.String()),
			zap.String("event", string(event)),
			zap.String("current_status", string(order.Status)),
			zap.String("target_status", string(target)),
		)
		return orderdomain.ApplyResult{
			Outcome: orderdomain.OutcomeRejected,
			Reason:  orderdomain.RejectInvalid,
			From:    order.Status,
			To:      target,
		}, nil
	}

	applied, err := s.repo.RecordTransition(ctx, s.db, order.ID, order.Status, target, effectiveAt)
	if err != nil {
		return orderdomain.ApplyResult{}, err
	}
	if !applied {
		// another writer moved the order between our read and write
		return orderdomain.ApplyResult{
			Outcome: orderdomain.OutcomeRejected,
			Reason:  orderdomain.RejectConflict,
			From:    order.Status,
			To:      target,
		}, nil
	}

	from := order.Status
	order.Status = target
	switch target {
	case orderdomain.StatusPaid:
		at := effectiveAt.UTC()
		order.ApprovedAt = &at
	case orderdomain.StatusRefunded, orderdomain.StatusChargeback:
		at := effectiveAt.UTC()
		order.RefundedAt = &at
	}
	if len(metadata) > 0 {
		if order.Metadata == nil {
			order.Metadata = datatypes.JSONMap{}
		}
		for k, v := range metadata {
			order.Metadata[k] = v
		}
	}

	if conversionEvent, fires := conversiondomain.ForTransition(target); fires {
		s.dispatch(ctx, order, conversionEvent)
	}

	return orderdomain.ApplyResult{
		Outcome: orderdomain.OutcomeApplied,
		From:    from,
		To:      target,
	}, nil
}

// dispatch hands off to the conversion side channel. Failures are logged,
// never propagated: conversion tracking must not break checkout flow.
func (s *Service) dispatch(ctx context.Context, order *orderdomain.Order, event conversiondomain.EventType) {
	result := s.dispatcher.Dispatch(ctx, order, event)
	fields := []zap.Field{
		zap.String("order_id", order.ID.String()),
		zap.String("event", string(event)),
		zap.String("status", string(result.Status)),
	}
	if result.Reason != "" {
		fields = append(fields, zap.String("reason", result.Reason))
	}
	if result.Fingerprint != "" {
		fields = append(fields, zap.String("credential_fingerprint", result.Fingerprint))
	}
	switch result.Status {
	case conversiondomain.DispatchFailure:
		s.log.Warn("conversion dispatch failed", fields...)
	default:
		s.log.Info("conversion dispatch finished", fields...)
	}
}
