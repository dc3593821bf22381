package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendelo/checkout/internal/config"
	"github.com/vendelo/checkout/internal/conversion/domain"
	"github.com/vendelo/checkout/internal/conversion/repository"
	"github.com/vendelo/checkout/internal/observability/metrics"
	orderdomain "github.com/vendelo/checkout/internal/order/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type stubVault struct {
	raw   string
	found bool
	err   error
}

func (v *stubVault) GetCredential(ctx context.Context, vendorID snowflake.ID, gatewayName string) (string, bool, error) {
	return v.raw, v.found, v.err
}

const testVendorID = snowflake.ID(7)

func newDispatchService(t *testing.T, endpoint string, vault *stubVault) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.VendorIntegrationConfig{}))

	cfg := config.Config{
		Conversion: config.ConversionConfig{
			Endpoint:       endpoint,
			Platform:       "Vendelo",
			TimeoutSeconds: 5,
		},
	}

	svc := NewService(Params{
		DB:      db,
		Log:     zap.NewNop(),
		Config:  cfg,
		Repo:    repository.Provide(),
		Vault:   vault,
		Metrics: metrics.New(),
	})
	return svc, db
}

func saveConfig(t *testing.T, db *gorm.DB, active bool, selectedEvents, allowList []string) {
	t.Helper()

	selected, err := json.Marshal(selectedEvents)
	require.NoError(t, err)
	allowed, err := json.Marshal(allowList)
	require.NoError(t, err)

	cfg := &domain.VendorIntegrationConfig{
		ID:               snowflake.ID(1),
		VendorID:         testVendorID,
		Provider:         domain.ProviderUTMify,
		IsActive:         active,
		SelectedEvents:   datatypes.JSON(selected),
		ProductAllowList: datatypes.JSON(allowed),
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	require.NoError(t, db.Create(cfg).Error)
}

func testOrder(t *testing.T, items []orderdomain.LineItem) *orderdomain.Order {
	t.Helper()

	itemsJSON, err := json.Marshal(items)
	require.NoError(t, err)

	src := "facebook"
	campaign := "launch"
	trackingJSON, err := json.Marshal(orderdomain.Tracking{
		Src:         &src,
		UTMCampaign: &campaign,
	})
	require.NoError(t, err)

	name := "Maria Souza"
	email := "maria@example.com"
	approvedAt := time.Date(2026, 3, 14, 15, 30, 45, 0, time.UTC)

	return &orderdomain.Order{
		ID:            snowflake.ID(123456789),
		VendorID:      testVendorID,
		GatewayID:     "mercadopago",
		PaymentMethod: orderdomain.PaymentMethodPix,
		Status:        orderdomain.StatusPaid,
		AmountCents:   12900,
		Items:         datatypes.JSON(itemsJSON),
		CustomerName:  &name,
		CustomerEmail: &email,
		Tracking:      datatypes.JSON(trackingJSON),
		CreatedAt:     time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC),
		ApprovedAt:    &approvedAt,
	}
}

func defaultItems() []orderdomain.LineItem {
	return []orderdomain.LineItem{
		{ProductID: "prod_main", Name: "Course", PriceCents: 9900, Quantity: 1},
		{ProductID: "prod_bump", Name: "Add-on", PriceCents: 3000, Quantity: 1},
	}
}

func TestDispatchSkipsWhenVendorHasNoConfig(t *testing.T) {
	svc, _ := newDispatchService(t, "http://unused.invalid", &stubVault{})

	result := svc.Dispatch(context.Background(), testOrder(t, defaultItems()), domain.EventPurchaseApproved)
	assert.Equal(t, domain.DispatchSkipped, result.Status)
	assert.Equal(t, domain.SkipNotEnabled, result.Reason)
}

func TestDispatchSkipsInactiveIntegration(t *testing.T) {
	svc, db := newDispatchService(t, "http://unused.invalid", &stubVault{raw: "tok", found: true})
	saveConfig(t, db, false, nil, nil)

	result := svc.Dispatch(context.Background(), testOrder(t, defaultItems()), domain.EventPurchaseApproved)
	assert.Equal(t, domain.DispatchSkipped, result.Status)
	assert.Equal(t, domain.SkipNotEnabled, result.Reason)
}

func TestDispatchSkipsUnselectedEvent(t *testing.T) {
	svc, db := newDispatchService(t, "http://unused.invalid", &stubVault{raw: "tok", found: true})
	saveConfig(t, db, true, []string{"purchase_approved"}, nil)

	result := svc.Dispatch(context.Background(), testOrder(t, defaultItems()), domain.EventPixGenerated)
	assert.Equal(t, domain.DispatchSkipped, result.Status)
	assert.Equal(t, domain.SkipNotEnabled, result.Reason)
}

func TestDispatchAllowListAnyItemMatches(t *testing.T) {
	var received int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc, db := newDispatchService(t, server.URL, &stubVault{raw: "tok", found: true})
	// only the main product is allow-listed; the add-on is not
	saveConfig(t, db, true, nil, []string{"prod_main"})

	result := svc.Dispatch(context.Background(), testOrder(t, defaultItems()), domain.EventPurchaseApproved)
	assert.Equal(t, domain.DispatchSuccess, result.Status)
	assert.Equal(t, 1, received)
}

func TestDispatchAllowListNoMatchSkips(t *testing.T) {
	svc, db := newDispatchService(t, "http://unused.invalid", &stubVault{raw: "tok", found: true})
	saveConfig(t, db, true, nil, []string{"prod_other"})

	result := svc.Dispatch(context.Background(), testOrder(t, defaultItems()), domain.EventPurchaseApproved)
	assert.Equal(t, domain.DispatchSkipped, result.Status)
	assert.Equal(t, domain.SkipNotEnabled, result.Reason)
}

func TestDispatchSkipsWhenNoCredential(t *testing.T) {
	svc, db := newDispatchService(t, "http://unused.invalid", &stubVault{found: false})
	saveConfig(t, db, true, nil, nil)

	result := svc.Dispatch(context.Background(), testOrder(t, defaultItems()), domain.EventPurchaseApproved)
	assert.Equal(t, domain.DispatchSkipped, result.Status)
	assert.Equal(t, domain.SkipNoToken, result.Reason)
}

func TestDispatchFailsWhenTokenEmptyAfterNormalization(t *testing.T) {
	svc, db := newDispatchService(t, "http://unused.invalid", &stubVault{raw: "  \"\"  ", found: true})
	saveConfig(t, db, true, nil, nil)

	result := svc.Dispatch(context.Background(), testOrder(t, defaultItems()), domain.EventPurchaseApproved)
	assert.Equal(t, domain.DispatchFailure, result.Status)
	assert.Equal(t, domain.FailEmptyToken, result.Reason)
}

func TestDispatchPostsProviderPayload(t *testing.T) {
	var gotToken string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("x-api-token")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// raw credential needs trimming and unquoting before use
	svc, db := newDispatchService(t, server.URL, &stubVault{raw: "  \"secret-token\"\n", found: true})
	saveConfig(t, db, true, nil, nil)

	result := svc.Dispatch(context.Background(), testOrder(t, defaultItems()), domain.EventPurchaseApproved)
	require.Equal(t, domain.DispatchSuccess, result.Status)
	assert.Len(t, result.Fingerprint, 12)

	assert.Equal(t, "secret-token", gotToken)
	assert.Equal(t, "123456789", gotBody["orderId"])
	assert.Equal(t, "Vendelo", gotBody["platform"])
	assert.Equal(t, "pix", gotBody["paymentMethod"])
	assert.Equal(t, "paid", gotBody["status"])
	assert.Equal(t, "2026-03-14 15:00:00", gotBody["createdAt"])
	assert.Equal(t, "2026-03-14 15:30:45", gotBody["approvedDate"])
	assert.Nil(t, gotBody["refundedAt"])
	assert.Equal(t, false, gotBody["isTest"])

	customer, ok := gotBody["customer"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Maria Souza", customer["name"])
	assert.Equal(t, "0.0.0.0", customer["ip"], "missing ip must use the sentinel, not null")

	products, ok := gotBody["products"].([]any)
	require.True(t, ok)
	require.Len(t, products, 2)
	first := products[0].(map[string]any)
	assert.Equal(t, "prod_main", first["id"])
	assert.Nil(t, first["planId"])
	assert.Equal(t, float64(9900), first["priceInCents"])

	tracking, ok := gotBody["trackingParameters"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "facebook", tracking["src"])
	assert.Equal(t, "launch", tracking["utm_campaign"])
	assert.Nil(t, tracking["utm_medium"])

	commission, ok := gotBody["commission"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(12900), commission["totalPriceInCents"])
	assert.Equal(t, "BRL", commission["currency"])
}

func TestDispatchReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid api token"))
	}))
	defer server.Close()

	svc, db := newDispatchService(t, server.URL, &stubVault{raw: "tok", found: true})
	saveConfig(t, db, true, nil, nil)

	result := svc.Dispatch(context.Background(), testOrder(t, defaultItems()), domain.EventPurchaseApproved)
	assert.Equal(t, domain.DispatchFailure, result.Status)
	assert.Equal(t, domain.FailHTTPError, result.Reason)
	assert.Equal(t, http.StatusUnauthorized, result.HTTPStatus)
	assert.Equal(t, "invalid api token", result.ResponseBody)
	assert.NotEmpty(t, result.Fingerprint)
}

func TestDispatchReportsNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	svc, db := newDispatchService(t, endpoint, &stubVault{raw: "tok", found: true})
	saveConfig(t, db, true, nil, nil)

	result := svc.Dispatch(context.Background(), testOrder(t, defaultItems()), domain.EventPurchaseApproved)
	assert.Equal(t, domain.DispatchFailure, result.Status)
	assert.Equal(t, domain.FailNetworkError, result.Reason)
}

func TestDispatchRepeatedCallsBuildIdenticalPayloads(t *testing.T) {
	order := testOrder(t, defaultItems())

	first, err := buildPayload(order, domain.EventPurchaseApproved, "Vendelo")
	require.NoError(t, err)
	second, err := buildPayload(order, domain.EventPurchaseApproved, "Vendelo")
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}
