package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/osomejk/stonedesk-gateway/internal/charges"
	"github.com/osomejk/stonedesk-gateway/internal/obs"
	"github.com/osomejk/stonedesk-gateway/internal/resilience"
)

// ErrNotFound indicates the backend reported a missing resource.
var ErrNotFound = errors.New("backend: not found")

// ErrUnauthorized indicates the backend rejected the bearer token.
var ErrUnauthorized = errors.New("backend: unauthorized")

// Client is a typed client for the distributor backend REST API. Tokens are
// opaque bearer strings forwarded verbatim; the client never inspects them.
type Client struct {
	BaseURL string
	HTTP    resilience.HTTPClient
}

// envelope is the backend's standard success wrapper.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

// GetUserCart fetches the caller's active cart with its additional charges.
func (c *Client) GetUserCart(ctx context.Context, token string) (Cart, error) {
	var out envelope[Cart]
	if err := c.do(ctx, "get_user_cart", http.MethodGet, "/api/getUserCart", token, nil, &out); err != nil {
		return Cart{}, err
	}
	return out.Data, nil
}

// UpdateCartCharges pushes the edited additional charges. The backend echoes
// the accepted values.
func (c *Client) UpdateCartCharges(ctx context.Context, token string, cfg charges.Config) (AdditionalCharges, error) {
	var out envelope[AdditionalCharges]
	payload := ChargesPayload(cfg)
	if err := c.do(ctx, "update_cart_charges", http.MethodPost, "/api/updateCartAdditionalCharges", token, payload, &out); err != nil {
		return AdditionalCharges{}, err
	}
	return out.Data, nil
}

// CreateOrder converts the cart into an order.
func (c *Client) CreateOrder(ctx context.Context, token string, in CreateOrderInput) (OrderConfirmation, error) {
	var out envelope[OrderConfirmation]
	if err := c.do(ctx, "create_order", http.MethodPost, "/api/createOrder", token, in, &out); err != nil {
		return OrderConfirmation{}, err
	}
	return out.Data, nil
}

// GetOrder fetches a single order with its stored charge breakdown.
func (c *Client) GetOrder(ctx context.Context, token, orderID string) (Order, error) {
	var out envelope[Order]
	path := "/api/orders/" + url.PathEscape(orderID)
	if err := c.do(ctx, "get_order", http.MethodGet, path, token, nil, &out); err != nil {
		return Order{}, err
	}
	return out.Data, nil
}

// ListClientOrders fetches all orders for a client, used by the agent view.
func (c *Client) ListClientOrders(ctx context.Context, token, clientID string) ([]Order, error) {
	var out envelope[[]Order]
	path := "/api/clients/" + url.PathEscape(clientID) + "/orders"
	if err := c.do(ctx, "list_client_orders", http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ListUserOrders fetches the caller's own orders.
func (c *Client) ListUserOrders(ctx context.Context, token string) ([]Order, error) {
	var out envelope[[]Order]
	if err := c.do(ctx, "list_user_orders", http.MethodGet, "/api/orders", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Ping probes the backend's health endpoint for readiness checks. An auth
// rejection still counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	err := c.do(ctx, "ping", http.MethodGet, "/api/health", "", nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) error {
	if c == nil || strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("backend: client not configured")
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode %s body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, reader)
	if err != nil {
		return fmt.Errorf("backend: build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(ctx, req)
	observeBackendCall(op, start, err == nil && resp != nil && resp.StatusCode < 400)
	if err != nil {
		return fmt.Errorf("backend: %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s response: %w", op, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &body); err == nil {
			if body.Error.Message != "" {
				apiErr.Code = body.Error.Code
				apiErr.Message = body.Error.Message
			} else if body.Message != "" {
				apiErr.Message = body.Message
			}
		}
	}
	return apiErr
}

func observeBackendCall(op string, start time.Time, success bool) {
	result := "error"
	if success {
		result = "ok"
	}
	if obs.BackendRequestTotal != nil {
		obs.BackendRequestTotal.WithLabelValues(op, result).Inc()
	}
	if obs.BackendRequestLatency != nil {
		obs.BackendRequestLatency.WithLabelValues(op).Observe(obs.DurationMillis(time.Since(start)))
	}
}
