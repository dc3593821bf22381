package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	orderdomain "github.com/vendelo/checkout/internal/order/domain"
)

type orderEventRequest struct {
	EventType   string         `json:"event_type"`
	EffectiveAt time.Time      `json:"effective_at"`
	Metadata    map[string]any `json:"metadata"`
}

type orderEventResponse struct {
	Result string `json:"result"`
	Reason string `json:"reason,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
}

// applyOrderEvent ingests one normalized lifecycle notification. Provider
// wire formats are translated upstream; by the time a payload reaches this
// endpoint it is already the (order, event, effective-at) triple.
//
// Duplicates and out-of-order deliveries are judged by the state machine:
// skipped deliveries answer 200 so the sender stops retrying, rejected ones
// answer 409 so it backs off and retries later.
func (s *Server) applyOrderEvent(c *gin.Context) {
	orderID, err := snowflake.ParseString(c.Param("order_id"))
	if err != nil || orderID == 0 {
		AbortWithError(c, newValidationError("order_id", "invalid_order", "order id is invalid"))
		return
	}

	var req orderEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	event := orderdomain.LifecycleEvent(req.EventType)

	release, err := s.guard.Acquire(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer release()

	result, err := s.orderSvc.ApplyEvent(c.Request.Context(), orderID, event, req.EffectiveAt, req.Metadata)
	if err != nil {
		s.obsMetrics.WebhookEvents.WithLabelValues(string(event), "error").Inc()
		AbortWithError(c, err)
		return
	}

	s.obsMetrics.WebhookEvents.WithLabelValues(string(event), string(result.Outcome)).Inc()

	resp := orderEventResponse{
		Result: string(result.Outcome),
		Reason: result.Reason,
		From:   string(result.From),
		To:     string(result.To),
	}

	switch result.Outcome {
	case orderdomain.OutcomeRejected:
		c.JSON(http.StatusConflict, resp)
	default:
		c.JSON(http.StatusOK, resp)
	}
}
