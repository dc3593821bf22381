package server

import (
	"encoding/json"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	conversiondomain "github.com/vendelo/checkout/internal/conversion/domain"
	"gorm.io/datatypes"
)

type conversionConfigRequest struct {
	Provider         string   `json:"provider"`
	IsActive         bool     `json:"is_active"`
	SelectedEvents   []string `json:"selected_events"`
	ProductAllowList []string `json:"product_allow_list"`
}

type conversionConfigResponse struct {
	VendorID         string   `json:"vendor_id"`
	Provider         string   `json:"provider"`
	IsActive         bool     `json:"is_active"`
	SelectedEvents   []string `json:"selected_events"`
	ProductAllowList []string `json:"product_allow_list"`
}

func (s *Server) getConversionConfig(c *gin.Context) {
	vendorID, err := snowflake.ParseString(c.Param("vendor_id"))
	if err != nil || vendorID == 0 {
		AbortWithError(c, newValidationError("vendor_id", "invalid_vendor", "vendor id is invalid"))
		return
	}

	cfg, err := s.conversionSvc.ConfigForVendor(c.Request.Context(), vendorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if cfg == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	resp, err := configResponse(cfg)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) putConversionConfig(c *gin.Context) {
	vendorID, err := snowflake.ParseString(c.Param("vendor_id"))
	if err != nil || vendorID == 0 {
		AbortWithError(c, newValidationError("vendor_id", "invalid_vendor", "vendor id is invalid"))
		return
	}

	var req conversionConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	for _, event := range req.SelectedEvents {
		if !conversiondomain.EventType(event).Valid() {
			AbortWithError(c, newValidationError("selected_events", "invalid_event_type", "unknown event type: "+event))
			return
		}
	}

	selected, err := json.Marshal(req.SelectedEvents)
	if err != nil {
		AbortWithError(c, newValidationError("selected_events", "invalid_request", "invalid selected events"))
		return
	}
	allowList, err := json.Marshal(req.ProductAllowList)
	if err != nil {
		AbortWithError(c, newValidationError("product_allow_list", "invalid_request", "invalid product allow list"))
		return
	}

	now := s.clock.Now()
	cfg := &conversiondomain.VendorIntegrationConfig{
		ID:               s.genID.Generate(),
		VendorID:         vendorID,
		Provider:         req.Provider,
		IsActive:         req.IsActive,
		SelectedEvents:   datatypes.JSON(selected),
		ProductAllowList: datatypes.JSON(allowList),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.conversionSvc.UpsertConfig(c.Request.Context(), cfg); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := configResponse(cfg)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func configResponse(cfg *conversiondomain.VendorIntegrationConfig) (conversionConfigResponse, error) {
	selected, err := cfg.ParsedSelectedEvents()
	if err != nil {
		return conversionConfigResponse{}, err
	}
	allowList, err := cfg.ParsedProductAllowList()
	if err != nil {
		return conversionConfigResponse{}, err
	}
	return conversionConfigResponse{
		VendorID:         cfg.VendorID.String(),
		Provider:         cfg.Provider,
		IsActive:         cfg.IsActive,
		SelectedEvents:   selected,
		ProductAllowList: allowList,
	}, nil
}
