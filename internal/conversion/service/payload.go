package service

import (
	"time"

	"github.com/vendelo/checkout/internal/conversion/domain"
	orderdomain "github.com/vendelo/checkout/internal/order/domain"
)

// The provider rejects a null customer ip; unknown addresses carry this
// sentinel instead.
const unknownCustomerIP = "0.0.0.0"

const providerTimeLayout = "2006-01-02 15:04:05"

// eventStatus is the fixed mapping from internal event types to the
// provider's status vocabulary.
var eventStatus = map[domain.EventType]string{
	domain.EventPixGenerated:     "waiting_payment",
	domain.EventPurchaseApproved: "paid",
	domain.EventPurchaseRefused:  "refused",
	domain.EventRefund:           "refunded",
	domain.EventChargeback:       "chargeback",
}

type conversionPayload struct {
	OrderID            string             `json:"orderId"`
	Platform           string             `json:"platform"`
	PaymentMethod      string             `json:"paymentMethod"`
	Status             string             `json:"status"`
	CreatedAt          string             `json:"createdAt"`
	ApprovedDate       *string            `json:"approvedDate"`
	RefundedAt         *string            `json:"refundedAt"`
	Customer           customerPayload    `json:"customer"`
	Products           []productPayload   `json:"products"`
	TrackingParameters trackingParameters `json:"trackingParameters"`
	Commission         commissionPayload  `json:"commission"`
	IsTest             bool               `json:"isTest"`
}

type customerPayload struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone"`
	Document *string `json:"document"`
	Country  string  `json:"country"`
	IP       string  `json:"ip"`
}

type productPayload struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	PlanID      *string `json:"planId"`
	PlanName    *string `json:"planName"`
	Quantity    int     `json:"quantity"`
	PriceCents  int64   `json:"priceInCents"`
}

type trackingParameters struct {
	Src         *string `json:"src"`
	Sck         *string `json:"sck"`
	UTMSource   *string `json:"utm_source"`
	UTMMedium   *string `json:"utm_medium"`
	UTMCampaign *string `json:"utm_campaign"`
	UTMContent  *string `json:"utm_content"`
	UTMTerm     *string `json:"utm_term"`
}

type commissionPayload struct {
	TotalPriceCents     int64  `json:"totalPriceInCents"`
	GatewayFeeCents     int64  `json:"gatewayFeeInCents"`
	UserCommissionCents int64  `json:"userCommissionInCents"`
	Currency            string `json:"currency"`
}

// buildPayload shapes an order into the provider's wire format. Construction
// is deterministic for a given (order, event) pair; re-dispatch produces an
// identical body, which is what makes at-least-once delivery safe for the
// receiver.
func buildPayload(order *orderdomain.Order, event domain.EventType, platform string) (*conversionPayload, error) {
	items, err := order.ParsedItems()
	if err != nil {
		return nil, err
	}
	tracking, err := order.ParsedTracking()
	if err != nil {
		return nil, err
	}

	products := make([]productPayload, 0, len(items))
	for _, item := range items {
		products = append(products, productPayload{
			ID:         item.ProductID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			PriceCents: item.PriceCents,
		})
	}

	ip := unknownCustomerIP
	if order.CustomerIP != nil && *order.CustomerIP != "" {
		ip = *order.CustomerIP
	}

	fee := gatewayFeeCents(order)

	return &conversionPayload{
		OrderID:       order.ID.String(),
		Platform:      platform,
		PaymentMethod: string(order.PaymentMethod),
		Status:        eventStatus[event],
		CreatedAt:     formatTime(order.CreatedAt),
		ApprovedDate:  formatTimePtr(order.ApprovedAt),
		RefundedAt:    formatTimePtr(order.RefundedAt),
		Customer: customerPayload{
			Name:     stringOrEmpty(order.CustomerName),
			Email:    stringOrEmpty(order.CustomerEmail),
			Phone:    order.CustomerPhone,
			Document: order.CustomerTaxID,
			Country:  "BR",
			IP:       ip,
		},
		Products: products,
		TrackingParameters: trackingParameters{
			Src:         tracking.Src,
			Sck:         tracking.Sck,
			UTMSource:   tracking.UTMSource,
			UTMMedium:   tracking.UTMMedium,
			UTMCampaign: tracking.UTMCampaign,
			UTMContent:  tracking.UTMContent,
			UTMTerm:     tracking.UTMTerm,
		},
		Commission: commissionPayload{
			TotalPriceCents:     order.AmountCents,
			GatewayFeeCents:     fee,
			UserCommissionCents: order.AmountCents - fee,
			Currency:            "BRL",
		},
		IsTest: false,
	}, nil
}

func gatewayFeeCents(order *orderdomain.Order) int64 {
	if order.Metadata == nil {
		return 0
	}
	switch v := order.Metadata["gateway_fee_cents"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(providerTimeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
