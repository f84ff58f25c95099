package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/identity"
	"github.com/vladislavdragonenkov/pos/internal/service/order"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

const (
	clientToken  = "token-client"
	cashierToken = "token-cashier"
	adminToken   = "token-admin"
)

func newTestRouter(t *testing.T) (*gin.Engine, *catalog.Service) {
	t.Helper()

	logger := log.WithField("component", "rest-test")

	// Каталог и заказы делят один репозиторий товаров.
	products := memory.NewProductRepository()
	catalogSvc := catalog.NewService(products, logger)
	orderSvc := order.NewService(memory.NewOrderRepository(), products, memory.NewOutboxRepository(), logger)

	provider := identity.NewMockProvider().
		Allow(clientToken, "client-1", domain.RoleClient).
		Allow(cashierToken, "cashier-1", domain.RoleCashier).
		Allow(adminToken, "admin-1", domain.RoleAdmin)

	server := NewServer(orderSvc, catalogSvc, provider, memory.NewIdempotencyRepository(), logger)
	return server.Router(), catalogSvc
}

func performRequest(t *testing.T, router *gin.Engine, method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeOrder(t *testing.T, recorder *httptest.ResponseRecorder) orderResponse {
	t.Helper()

	var resp orderResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return resp
}

func seedProduct(t *testing.T, catalogSvc *catalog.Service, sku string, priceMinor int64) domain.Product {
	t.Helper()

	product, err := catalogSvc.Create(context.Background(), catalog.CreateProductInput{
		SKU:        sku,
		Name:       "Товар " + sku,
		PriceMinor: priceMinor,
		Colors:     []string{"black", "white"},
	})
	require.NoError(t, err)
	return product
}

func TestProductEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	create := performRequest(t, router, http.MethodPost, "/api/v1/products", adminToken, gin.H{
		"sku":         "SKU-CHAIR",
		"name":        "Стул венский",
		"price_minor": int64(459900),
		"colors":      []string{"oak"},
	}, nil)
	require.Equal(t, http.StatusCreated, create.Code)

	var created productResponse
	require.NoError(t, json.Unmarshal(create.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, "SKU-CHAIR", created.SKU)
	require.Equal(t, int64(459900), created.PriceMinor)

	byID := performRequest(t, router, http.MethodGet, "/api/v1/products/"+created.ID, "", nil, nil)
	require.Equal(t, http.StatusOK, byID.Code)

	bySKU := performRequest(t, router, http.MethodGet, "/api/v1/products/sku/SKU-CHAIR", "", nil, nil)
	require.Equal(t, http.StatusOK, bySKU.Code)

	list := performRequest(t, router, http.MethodGet, "/api/v1/products?limit=10", "", nil, nil)
	require.Equal(t, http.StatusOK, list.Code)
	var listing struct {
		Products []productResponse `json:"products"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &listing))
	require.Len(t, listing.Products, 1)

	miss := performRequest(t, router, http.MethodGet, "/api/v1/products/no-such-id", "", nil, nil)
	require.Equal(t, http.StatusNotFound, miss.Code)

	duplicate := performRequest(t, router, http.MethodPost, "/api/v1/products", adminToken, gin.H{
		"sku":         "SKU-CHAIR",
		"name":        "Другой стул",
		"price_minor": int64(100),
	}, nil)
	require.Equal(t, http.StatusConflict, duplicate.Code)

	invalid := performRequest(t, router, http.MethodPost, "/api/v1/products", adminToken, gin.H{
		"sku":         "SKU-BAD",
		"name":        "Без цены",
		"price_minor": int64(0),
	}, nil)
	require.Equal(t, http.StatusBadRequest, invalid.Code)
}

func TestProductCreateAuthorization(t *testing.T) {
	router, _ := newTestRouter(t)

	body := gin.H{"sku": "SKU-X", "name": "X", "price_minor": int64(100)}

	anonymous := performRequest(t, router, http.MethodPost, "/api/v1/products", "", body, nil)
	require.Equal(t, http.StatusUnauthorized, anonymous.Code)

	asClient := performRequest(t, router, http.MethodPost, "/api/v1/products", clientToken, body, nil)
	require.Equal(t, http.StatusForbidden, asClient.Code)

	badToken := performRequest(t, router, http.MethodPost, "/api/v1/products", "token-unknown", body, nil)
	require.Equal(t, http.StatusUnauthorized, badToken.Code)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	router, catalogSvc := newTestRouter(t)
	seedProduct(t, catalogSvc, "SKU-SOFA", 1299900)

	create := performRequest(t, router, http.MethodPost, "/api/v1/orders", clientToken, nil, nil)
	require.Equal(t, http.StatusCreated, create.Code)

	created := decodeOrder(t, create)
	require.Equal(t, "client-1", created.ClientID)
	require.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{8}$`), created.Code)
	require.Equal(t, string(domain.OrderStatusPending), created.Status)
	require.Empty(t, created.Items)

	base := "/api/v1/orders/" + created.ID

	added := performRequest(t, router, http.MethodPost, base+"/items", clientToken, gin.H{
		"sku":   "SKU-SOFA",
		"qty":   2,
		"color": "black",
	}, nil)
	require.Equal(t, http.StatusOK, added.Code)

	withItem := decodeOrder(t, added)
	require.Len(t, withItem.Items, 1)
	require.Equal(t, int64(2599800), withItem.SubtotalMinor)
	require.Equal(t, "black", withItem.Items[0].Color)

	updated := performRequest(t, router, http.MethodPatch, base+"/items/0", clientToken, gin.H{"qty": 1}, nil)
	require.Equal(t, http.StatusOK, updated.Code)
	require.Equal(t, int64(1299900), decodeOrder(t, updated).SubtotalMinor)

	wished := performRequest(t, router, http.MethodPatch, base+"/items/0", clientToken, gin.H{"list": "wishlist"}, nil)
	require.Equal(t, http.StatusOK, wished.Code)

	afterMove := decodeOrder(t, wished)
	require.Empty(t, afterMove.Items)
	require.Len(t, afterMove.WishlistItems, 1)
	require.Zero(t, afterMove.SubtotalMinor)

	removed := performRequest(t, router, http.MethodDelete, base+"/items/0", clientToken, nil, nil)
	require.Equal(t, http.StatusOK, removed.Code)
	require.Empty(t, decodeOrder(t, removed).WishlistItems)

	closed := performRequest(t, router, http.MethodPost, base+"/close", clientToken, nil, nil)
	require.Equal(t, http.StatusOK, closed.Code)

	final := decodeOrder(t, closed)
	require.Equal(t, string(domain.OrderStatusClosed), final.Status)
	require.NotNil(t, final.ClosedAt)
}

func TestOrderItemErrors(t *testing.T) {
	router, catalogSvc := newTestRouter(t)
	seedProduct(t, catalogSvc, "SKU-LAMP", 5000)

	create := performRequest(t, router, http.MethodPost, "/api/v1/orders", clientToken, nil, nil)
	require.Equal(t, http.StatusCreated, create.Code)
	orderID := decodeOrder(t, create).ID
	base := "/api/v1/orders/" + orderID

	unknownSKU := performRequest(t, router, http.MethodPost, base+"/items", clientToken, gin.H{
		"sku": "SKU-MISSING",
		"qty": 1,
	}, nil)
	require.Equal(t, http.StatusNotFound, unknownSKU.Code)

	zeroQty := performRequest(t, router, http.MethodPost, base+"/items", clientToken, gin.H{
		"sku": "SKU-LAMP",
		"qty": 0,
	}, nil)
	require.Equal(t, http.StatusBadRequest, zeroQty.Code)

	badIndex := performRequest(t, router, http.MethodPatch, base+"/items/abc", clientToken, gin.H{"qty": 1}, nil)
	require.Equal(t, http.StatusBadRequest, badIndex.Code)

	outOfRange := performRequest(t, router, http.MethodDelete, base+"/items/5", clientToken, nil, nil)
	require.Equal(t, http.StatusBadRequest, outOfRange.Code)

	badList := performRequest(t, router, http.MethodPatch, base+"/items/0", clientToken, gin.H{"list": "basket"}, nil)
	require.Equal(t, http.StatusBadRequest, badList.Code)

	missingOrder := performRequest(t, router, http.MethodGet, "/api/v1/orders/absent", clientToken, nil, nil)
	require.Equal(t, http.StatusNotFound, missingOrder.Code)
}

func TestOrderStatusAndCodeLookupRoles(t *testing.T) {
	router, _ := newTestRouter(t)

	create := performRequest(t, router, http.MethodPost, "/api/v1/orders", clientToken, nil, nil)
	require.Equal(t, http.StatusCreated, create.Code)
	created := decodeOrder(t, create)
	statusPath := "/api/v1/orders/" + created.ID + "/status"

	asClient := performRequest(t, router, http.MethodPut, statusPath, clientToken, gin.H{"status": "confirmed"}, nil)
	require.Equal(t, http.StatusForbidden, asClient.Code)

	asCashier := performRequest(t, router, http.MethodPut, statusPath, cashierToken, gin.H{"status": "confirmed"}, nil)
	require.Equal(t, http.StatusOK, asCashier.Code)
	require.Equal(t, string(domain.OrderStatusConfirmed), decodeOrder(t, asCashier).Status)

	badStatus := performRequest(t, router, http.MethodPut, statusPath, cashierToken, gin.H{"status": "teleported"}, nil)
	require.Equal(t, http.StatusBadRequest, badStatus.Code)

	closedStatus := performRequest(t, router, http.MethodPut, statusPath, adminToken, gin.H{"status": "closed"}, nil)
	require.Equal(t, http.StatusBadRequest, closedStatus.Code)

	codePath := "/api/v1/orders/code/" + created.Code

	lookupAsClient := performRequest(t, router, http.MethodGet, codePath, clientToken, nil, nil)
	require.Equal(t, http.StatusForbidden, lookupAsClient.Code)

	lookupAsCashier := performRequest(t, router, http.MethodGet, codePath, cashierToken, nil, nil)
	require.Equal(t, http.StatusOK, lookupAsCashier.Code)
	require.Equal(t, created.ID, decodeOrder(t, lookupAsCashier).ID)

	lookupMiss := performRequest(t, router, http.MethodGet, "/api/v1/orders/code/ZZZZZZZZ", adminToken, nil, nil)
	require.Equal(t, http.StatusNotFound, lookupMiss.Code)
}

func TestOrderRoutesRequireAuthentication(t *testing.T) {
	router, _ := newTestRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/orders"},
		{http.MethodGet, "/api/v1/orders/some-id"},
		{http.MethodPost, "/api/v1/orders/some-id/items"},
		{http.MethodPut, "/api/v1/orders/some-id/status"},
	}

	for _, route := range paths {
		recorder := performRequest(t, router, route.method, route.path, "", nil, nil)
		require.Equal(t, http.StatusUnauthorized, recorder.Code, "%s %s", route.method, route.path)
	}
}

func TestCreateOrderIdempotency(t *testing.T) {
	router, _ := newTestRouter(t)

	headers := map[string]string{idempotencyKeyHeader: "key-create-1"}

	first := performRequest(t, router, http.MethodPost, "/api/v1/orders", clientToken, nil, headers)
	require.Equal(t, http.StatusCreated, first.Code)
	firstOrder := decodeOrder(t, first)

	replay := performRequest(t, router, http.MethodPost, "/api/v1/orders", clientToken, nil, headers)
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, firstOrder.ID, decodeOrder(t, replay).ID)
	require.Equal(t, firstOrder.Code, decodeOrder(t, replay).Code)

	// Тот же ключ с другим телом меняет request hash.
	mismatch := performRequest(t, router, http.MethodPost, "/api/v1/orders", clientToken, gin.H{"note": "other"}, headers)
	require.Equal(t, http.StatusConflict, mismatch.Code)

	fresh := performRequest(t, router, http.MethodPost, "/api/v1/orders", clientToken, nil, map[string]string{
		idempotencyKeyHeader: "key-create-2",
	})
	require.Equal(t, http.StatusCreated, fresh.Code)
	require.NotEqual(t, firstOrder.ID, decodeOrder(t, fresh).ID)
}
