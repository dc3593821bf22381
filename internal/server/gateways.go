package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type gatewayResponse struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	InterestRate string `json:"interest_rate"`
}

func (s *Server) listGateways(c *gin.Context) {
	ids := s.registry.ListAvailable()
	out := make([]gatewayResponse, 0, len(ids))
	for _, id := range ids {
		gw, err := s.registry.Resolve(id)
		if err != nil {
			continue
		}
		out = append(out, gatewayResponse{
			ID:           gw.ID(),
			DisplayName:  gw.DisplayName(),
			InterestRate: gw.InterestRate().String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"gateways": out})
}

type installmentResponse struct {
	Count       int    `json:"count"`
	AmountCents int64  `json:"amount_cents"`
	TotalCents  int64  `json:"total_cents"`
	HasInterest bool   `json:"has_interest"`
	Label       string `json:"label"`
}

func (s *Server) previewInstallments(c *gin.Context) {
	gw, err := s.registry.Resolve(c.Param("gateway_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	amountCents, err := strconv.ParseInt(c.Query("amount_cents"), 10, 64)
	if err != nil || amountCents <= 0 {
		AbortWithError(c, newValidationError("amount_cents", "invalid_amount", "amount_cents must be a positive integer"))
		return
	}

	maxInstallments := 0
	if raw := c.Query("max_installments"); raw != "" {
		maxInstallments, err = strconv.Atoi(raw)
		if err != nil || maxInstallments < 1 {
			AbortWithError(c, newValidationError("max_installments", "invalid_max", "max_installments must be a positive integer"))
			return
		}
	}

	plan := gw.GenerateInstallments(amountCents, maxInstallments)
	out := make([]installmentResponse, 0, len(plan))
	for _, entry := range plan {
		out = append(out, installmentResponse{
			Count:       entry.Count,
			AmountCents: entry.AmountCents,
			TotalCents:  entry.TotalCents,
			HasInterest: entry.HasInterest,
			Label:       entry.Label,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"gateway":      gw.ID(),
		"installments": out,
	})
}
