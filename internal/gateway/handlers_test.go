package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/osomejk/stonedesk-gateway/internal/backend"
	"github.com/osomejk/stonedesk-gateway/internal/cartview"
	"github.com/osomejk/stonedesk-gateway/internal/charges"
	"github.com/osomejk/stonedesk-gateway/internal/common"
	"github.com/osomejk/stonedesk-gateway/internal/resilience"
)

func fakeBackend(t *testing.T, mux *http.ServeMux) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &backend.Client{
		BaseURL: srv.URL,
		HTTP: resilience.HTTPClient{
			Client:  srv.Client(),
			Breaker: resilience.NewBreaker(100, 0.9, time.Minute),
		},
	}
}

func cartPayload() map[string]any {
	return map[string]any{
		"success": true,
		"data": map[string]any{
			"items": []map[string]any{
				{"id": "i1", "productId": "p1", "name": "Granite Slab", "unitPrice": 500, "quantity": 200},
			},
			"additionalCharges": map[string]any{
				"loadingFee":       1000,
				"woodPackaging":    1500,
				"transportAdvance": 15000,
				"gstRate":          18,
			},
		},
	}
}

func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(common.WithBearerToken(req.Context(), "opaque-token"))
}

func TestGetCartComputesTotals(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/getUserCart", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(cartPayload())
	})
	h := &Handler{Backend: fakeBackend(t, mux), Logger: zerolog.Nop()}

	rec := httptest.NewRecorder()
	h.GetCart(rec, authedRequest(http.MethodGet, "/api/v1/cart", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Charges chargesView `json:"charges"`
			Totals  totalsView  `json:"totals"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, charges.Money(345), resp.Data.Charges.Insurance)
	require.False(t, resp.Data.Charges.InsuranceManual)
	require.Equal(t, "basic", resp.Data.Charges.WoodTier)
	require.Equal(t, charges.Money(117_845), resp.Data.Totals.SubtotalBeforeTax)
	require.Equal(t, charges.Money(21_212), resp.Data.Totals.GSTAmount)
	require.Equal(t, charges.Money(139_057), resp.Data.Totals.TotalAmount)
}

func TestUpdateChargesRespondsImmediatelyAndEnqueues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/getUserCart", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(cartPayload())
	})

	var mu sync.Mutex
	var pushed []charges.Config
	flushed := make(chan struct{}, 4)
	persister := &cartview.Persister{
		Push: func(ctx context.Context, token string, cfg charges.Config) error {
			mu.Lock()
			pushed = append(pushed, cfg)
			mu.Unlock()
			return nil
		},
		Delay:   10 * time.Millisecond,
		Logger:  zerolog.Nop(),
		OnFlush: func(string, error) { flushed <- struct{}{} },
	}
	h := &Handler{Backend: fakeBackend(t, mux), Persister: persister, Logger: zerolog.Nop()}

	rec := httptest.NewRecorder()
	h.UpdateCharges(rec, authedRequest(http.MethodPatch, "/api/v1/cart/charges", `{"woodPackaging":2500,"gstRate":12}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Charges chargesView `json:"charges"`
			Totals  totalsView  `json:"totals"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "standard", resp.Data.Charges.WoodTier)
	// 100000 + 1000 + 2500 + 345 + 15000 = 118845; 12% GST = 14261
	require.Equal(t, charges.Money(118_845), resp.Data.Totals.SubtotalBeforeTax)
	require.Equal(t, charges.Money(14_261), resp.Data.Totals.GSTAmount)
	require.Equal(t, charges.Money(133_106), resp.Data.Totals.TotalAmount)

	// the push happens after the quiet period, not inline
	<-flushed
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, pushed, 1)
	require.Equal(t, charges.Money(2500), pushed[0].WoodPackaging)
	require.Equal(t, 1200, pushed[0].GSTRateBps)
}

func TestUpdateChargesAccumulatesBurstEdits(t *testing.T) {
	// the backend keeps serving the pre-burst cart; later edits in the
	// window must still build on the earlier ones
	mux := http.NewServeMux()
	mux.HandleFunc("/api/getUserCart", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(cartPayload())
	})

	var mu sync.Mutex
	var pushed []charges.Config
	flushed := make(chan struct{}, 4)
	persister := &cartview.Persister{
		Push: func(ctx context.Context, token string, cfg charges.Config) error {
			mu.Lock()
			pushed = append(pushed, cfg)
			mu.Unlock()
			return nil
		},
		Delay:   150 * time.Millisecond,
		Logger:  zerolog.Nop(),
		OnFlush: func(string, error) { flushed <- struct{}{} },
	}
	h := &Handler{Backend: fakeBackend(t, mux), Persister: persister, Logger: zerolog.Nop()}

	rec := httptest.NewRecorder()
	h.UpdateCharges(rec, authedRequest(http.MethodPatch, "/api/v1/cart/charges", `{"loadingFee":9999}`))
	require.Equal(t, http.StatusOK, rec.Code)

	time.Sleep(50 * time.Millisecond)

	rec = httptest.NewRecorder()
	h.UpdateCharges(rec, authedRequest(http.MethodPatch, "/api/v1/cart/charges", `{"gstRate":12}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Charges chargesView `json:"charges"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, charges.Money(9999), resp.Data.Charges.LoadingFee)

	<-flushed
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, pushed, 1)
	require.Equal(t, charges.Money(9999), pushed[0].LoadingFee)
	require.Equal(t, 1200, pushed[0].GSTRateBps)
}

func TestUpdateChargesRejectsBadGSTRate(t *testing.T) {
	h := &Handler{Logger: zerolog.Nop()}
	rec := httptest.NewRecorder()
	h.UpdateCharges(rec, authedRequest(http.MethodPatch, "/api/v1/cart/charges", `{"gstRate":250}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestUpdateChargesRejectsMalformedBody(t *testing.T) {
	h := &Handler{Logger: zerolog.Nop()}
	rec := httptest.NewRecorder()
	h.UpdateCharges(rec, authedRequest(http.MethodPatch, "/api/v1/cart/charges", `{"loadingFee":`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestCreateOrderValidation(t *testing.T) {
	h := &Handler{Validate: validator.New(), Logger: zerolog.Nop()}
	rec := httptest.NewRecorder()
	h.CreateOrder(rec, authedRequest(http.MethodPost, "/api/v1/orders", `{"shippingAddress":"short","paymentMethod":"barter"}`))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "VALIDATION", resp.Error.Code)
}

func TestCreateOrderHappyPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/createOrder", func(w http.ResponseWriter, r *http.Request) {
		var in backend.CreateOrderInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Equal(t, "bank_transfer", in.PaymentMethod)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"orderId": "ord-9", "status": "pending"},
		})
	})
	h := &Handler{Backend: fakeBackend(t, mux), Validate: validator.New(), Logger: zerolog.Nop()}

	body := `{"shippingAddress":"14 Quarry Road, Jaipur 302001","paymentMethod":"bank_transfer"}`
	rec := httptest.NewRecorder()
	h.CreateOrder(rec, authedRequest(http.MethodPost, "/api/v1/orders", body))
	require.Equal(t, http.StatusCreated, rec.Code)
}

func orderPayload(storedTotal charges.Money) map[string]any {
	return map[string]any{
		"success": true,
		"data": map[string]any{
			"id":        "ord-1",
			"clientId":  "cl-1",
			"status":    "confirmed",
			"createdAt": "2026-08-01T10:00:00Z",
			"items": []map[string]any{
				{"id": "i1", "productId": "p1", "name": "Granite Slab", "unitPrice": 500, "quantity": 200},
			},
			"additionalCharges": map[string]any{
				"loadingFee":       1000,
				"woodPackaging":    1500,
				"transportAdvance": 15000,
				"gstRate":          18,
				"gstAmount":        21212,
				"totalAmount":      storedTotal,
			},
		},
	}
}

func getOrderVia(t *testing.T, h *Handler, orderID string) orderView {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/v1/orders/{orderID}", h.GetOrder)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/orders/"+orderID, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data orderView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Data
}

func TestGetOrderNoDrift(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/orders/ord-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(orderPayload(139_057))
	})
	h := &Handler{Backend: fakeBackend(t, mux), Logger: zerolog.Nop()}

	view := getOrderVia(t, h, "ord-1")
	require.False(t, view.Drift)
	require.Nil(t, view.RecomputedTotal)
	require.Equal(t, charges.Money(139_057), view.Totals.TotalAmount)
}

func TestGetOrderSurfacesDrift(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/orders/ord-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(orderPayload(139_000))
	})
	h := &Handler{Backend: fakeBackend(t, mux), Logger: zerolog.Nop()}

	view := getOrderVia(t, h, "ord-1")
	require.True(t, view.Drift)
	require.NotNil(t, view.RecomputedTotal)
	require.Equal(t, charges.Money(139_057), *view.RecomputedTotal)
	// stored figures still win for display
	require.Equal(t, charges.Money(139_000), view.Totals.TotalAmount)
}

func TestWriteErrorMapsBackendFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/getUserCart", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]any{"code": "NOT_FOUND", "message": "no active cart"},
		})
	})
	h := &Handler{Backend: fakeBackend(t, mux), Logger: zerolog.Nop()}

	rec := httptest.NewRecorder()
	h.GetCart(rec, authedRequest(http.MethodGet, "/api/v1/cart", ""))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingTokenRejected(t *testing.T) {
	h := &Handler{Logger: zerolog.Nop()}
	rec := httptest.NewRecorder()
	h.GetCart(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
