package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	orderdomain "github.com/vendelo/checkout/internal/order/domain"
	orderservice "github.com/vendelo/checkout/internal/order/service"
)

type lineItemRequest struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

type customerRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
	TaxID *string `json:"tax_id"`
	IP    *string `json:"ip"`
}

type trackingRequest struct {
	Src         *string `json:"src"`
	Sck         *string `json:"sck"`
	UTMSource   *string `json:"utm_source"`
	UTMMedium   *string `json:"utm_medium"`
	UTMCampaign *string `json:"utm_campaign"`
	UTMContent  *string `json:"utm_content"`
	UTMTerm     *string `json:"utm_term"`
}

type createOrderRequest struct {
	VendorID      string            `json:"vendor_id"`
	GatewayID     string            `json:"gateway_id"`
	PaymentMethod string            `json:"payment_method"`
	Items         []lineItemRequest `json:"items"`
	Customer      customerRequest   `json:"customer"`
	Tracking      trackingRequest   `json:"tracking"`
	Metadata      map[string]any    `json:"metadata"`
}

type orderResponse struct {
	ID            string    `json:"id"`
	VendorID      string    `json:"vendor_id"`
	GatewayID     string    `json:"gateway_id"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	AmountCents   int64     `json:"amount_cents"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	vendorID, err := snowflake.ParseString(req.VendorID)
	if err != nil || vendorID == 0 {
		AbortWithError(c, newValidationError("vendor_id", "invalid_vendor", "vendor id is required"))
		return
	}

	items := make([]orderdomain.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orderdomain.LineItem{
			ProductID:  item.ProductID,
			Name:       item.Name,
			PriceCents: item.PriceCents,
			Quantity:   item.Quantity,
		})
	}

	ip := req.Customer.IP
	if ip == nil || *ip == "" {
		remote := c.ClientIP()
		if remote != "" {
			ip = &remote
		}
	}

	created, err := s.orderSvc.CreateOrder(c.Request.Context(), orderservice.CreateOrderInput{
		VendorID:      vendorID,
		GatewayID:     req.GatewayID,
		PaymentMethod: orderdomain.PaymentMethod(req.PaymentMethod),
		Items:         items,
		CustomerName:  req.Customer.Name,
		CustomerEmail: req.Customer.Email,
		CustomerPhone: req.Customer.Phone,
		CustomerTaxID: req.Customer.TaxID,
		CustomerIP:    ip,
		Tracking: orderdomain.Tracking{
			Src:         req.Tracking.Src,
			Sck:         req.Tracking.Sck,
			UTMSource:   req.Tracking.UTMSource,
			UTMMedium:   req.Tracking.UTMMedium,
			UTMCampaign: req.Tracking.UTMCampaign,
			UTMContent:  req.Tracking.UTMContent,
			UTMTerm:     req.Tracking.UTMTerm,
		},
		Metadata: req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.obsMetrics.OrdersCreated.WithLabelValues(string(created.PaymentMethod)).Inc()

	c.JSON(http.StatusCreated, orderResponse{
		ID:            created.ID.String(),
		VendorID:      created.VendorID.String(),
		GatewayID:     created.GatewayID,
		PaymentMethod: string(created.PaymentMethod),
		Status:        string(created.Status),
		AmountCents:   created.AmountCents,
		CreatedAt:     created.CreatedAt,
	})
}
