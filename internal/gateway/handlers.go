package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/osomejk/stonedesk-gateway/internal/backend"
	"github.com/osomejk/stonedesk-gateway/internal/cache"
	"github.com/osomejk/stonedesk-gateway/internal/cartview"
	"github.com/osomejk/stonedesk-gateway/internal/charges"
	"github.com/osomejk/stonedesk-gateway/internal/common"
	"github.com/osomejk/stonedesk-gateway/internal/obs"
	"github.com/osomejk/stonedesk-gateway/internal/resilience"
)

// Handler exposes the storefront and agent dashboard endpoints. Every charge
// figure rendered to a client goes through the same calculator, whether it
// comes from a live cart edit or a stored order.
type Handler struct {
	Backend   *backend.Client
	Cache     *cache.CartCache
	Persister *cartview.Persister
	Validate  *validator.Validate
	Logger    zerolog.Logger
}

// chargesView is the charge configuration as rendered to the dashboard.
type chargesView struct {
	LoadingFee       charges.Money `json:"loadingFee"`
	WoodPackaging    charges.Money `json:"woodPackaging"`
	WoodTier         string        `json:"woodTier"`
	Insurance        charges.Money `json:"insurance"`
	InsuranceManual  bool          `json:"insuranceManual"`
	TransportAdvance charges.Money `json:"transportAdvance"`
	GSTRate          float64       `json:"gstRate"`
}

// totalsView is the computed breakdown rendered alongside the configuration.
type totalsView struct {
	ItemsSubtotal     charges.Money `json:"itemsSubtotal"`
	SubtotalBeforeTax charges.Money `json:"subtotalBeforeTax"`
	GSTAmount         charges.Money `json:"gstAmount"`
	TotalAmount       charges.Money `json:"totalAmount"`
}

func newChargesView(cfg charges.Config, res charges.Result) chargesView {
	return chargesView{
		LoadingFee:       cfg.LoadingFee,
		WoodPackaging:    cfg.WoodPackaging,
		WoodTier:         charges.WoodTierLabel(cfg.WoodPackaging),
		Insurance:        res.Insurance,
		InsuranceManual:  cfg.InsuranceOverride > 0,
		TransportAdvance: cfg.TransportAdvance,
		GSTRate:          charges.BpsToPercent(cfg.GSTRateBps),
	}
}

func newTotalsView(res charges.Result) totalsView {
	return totalsView{
		ItemsSubtotal:     res.ItemsSubtotal,
		SubtotalBeforeTax: res.SubtotalBeforeTax,
		GSTAmount:         res.TaxAmount,
		TotalAmount:       res.TotalAmount,
	}
}

// GetCart returns the caller's cart with a freshly computed charge breakdown.
// Backend reads are cached briefly; totals are always recomputed locally so a
// cached snapshot can never show stale arithmetic.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := common.EffectiveToken(ctx)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}

	var cart backend.Cart
	found, err := h.Cache.GetJSON(ctx, token, &cart)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("cart cache read")
	}
	if !found {
		cart, err = h.Backend.GetUserCart(ctx, token)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if err := h.Cache.SetJSON(ctx, token, cart); err != nil {
			h.Logger.Warn().Err(err).Msg("cart cache write")
		}
	}

	cfg := cart.AdditionalCharges.Config()
	res := charges.Compute(cart.LineItems(), cfg)
	common.JSONData(w, http.StatusOK, map[string]any{
		"items":   cart.Items,
		"charges": newChargesView(cfg, res),
		"totals":  newTotalsView(res),
	})
}

// UpdateCharges applies a charge edit, returns recomputed totals immediately,
// and schedules the debounced backend push. The response never waits for
// persistence.
func (h *Handler) UpdateCharges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := common.EffectiveToken(ctx)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}

	var edit cartview.Edit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		h.writeError(w, common.NewAppError("BAD_REQUEST", "invalid charge payload", http.StatusBadRequest, err))
		return
	}
	if edit.GSTRatePercent != nil && (*edit.GSTRatePercent < 0 || *edit.GSTRatePercent > 100) {
		h.writeError(w, common.NewAppError("BAD_REQUEST", "gstRate must be between 0 and 100", http.StatusBadRequest, nil))
		return
	}

	cart, err := h.loadCart(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// edits inside a debounce burst accumulate: start from the pending
	// config when one exists, not from the backend's pre-burst snapshot
	cfg := cart.AdditionalCharges.Config()
	if pending, ok := h.Persister.Pending(cache.Key(token)); ok {
		cfg = pending
	}
	session := cartview.NewSession("cart", cart.LineItems(), cfg)
	res := session.Apply(edit)

	cart.AdditionalCharges = backend.ChargesPayload(session.Config)
	if err := h.Cache.SetJSON(ctx, token, cart); err != nil {
		h.Logger.Warn().Err(err).Msg("cart cache write")
	}
	h.Persister.Enqueue(cache.Key(token), token, session.Config)

	common.JSONData(w, http.StatusOK, map[string]any{
		"charges": newChargesView(session.Config, res),
		"totals":  newTotalsView(res),
	})
}

// loadCart fetches the cart for a charge edit, preferring the snapshot cache.
func (h *Handler) loadCart(r *http.Request) (backend.Cart, error) {
	ctx := r.Context()
	token, _ := common.EffectiveToken(ctx)

	var cart backend.Cart
	found, err := h.Cache.GetJSON(ctx, token, &cart)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("cart cache read")
	}
	if found {
		return cart, nil
	}
	return h.Backend.GetUserCart(ctx, token)
}

type createOrderRequest struct {
	ShippingAddress  string `json:"shippingAddress" validate:"required,min=10"`
	PaymentMethod    string `json:"paymentMethod" validate:"required,oneof=cod bank_transfer upi cheque"`
	Notes            string `json:"notes" validate:"omitempty,max=2000"`
	FollowUpReminder string `json:"followUpReminder" validate:"omitempty,datetime=2006-01-02"`
}

// CreateOrder converts the caller's cart into an order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := common.EffectiveToken(ctx)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, common.NewAppError("BAD_REQUEST", "invalid order payload", http.StatusBadRequest, err))
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			h.writeError(w, &common.AppError{
				Code:       "VALIDATION",
				Message:    "order payload failed validation",
				HTTPStatus: http.StatusUnprocessableEntity,
				Err:        err,
				Details:    validationDetails(err),
			})
			return
		}
	}

	confirmation, err := h.Backend.CreateOrder(ctx, token, backend.CreateOrderInput{
		ShippingAddress:  strings.TrimSpace(req.ShippingAddress),
		PaymentMethod:    req.PaymentMethod,
		Notes:            strings.TrimSpace(req.Notes),
		FollowUpReminder: req.FollowUpReminder,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	// the cart is consumed server side, drop the snapshot
	if err := h.Cache.Invalidate(ctx, token); err != nil {
		h.Logger.Warn().Err(err).Msg("cart cache invalidate")
	}
	common.JSONData(w, http.StatusCreated, confirmation)
}

// orderView pairs the backend's stored order with locally recomputed totals.
// When the two disagree the stored figures still win for display, but the
// response flags the drift so support can chase it instead of the gateway
// silently rewriting history.
type orderView struct {
	ID              string             `json:"id"`
	ClientID        string             `json:"clientId,omitempty"`
	Status          string             `json:"status"`
	CreatedAt       string             `json:"createdAt"`
	Items           []backend.CartItem `json:"items"`
	Charges         chargesView        `json:"charges"`
	Totals          totalsView         `json:"totals"`
	Drift           bool               `json:"drift"`
	RecomputedTotal *charges.Money     `json:"recomputedTotal,omitempty"`
}

func (h *Handler) orderToView(o backend.Order) orderView {
	cfg := o.AdditionalCharges.Config()
	res := charges.Compute(o.LineItems(), cfg)

	view := orderView{
		ID:        o.ID,
		ClientID:  o.ClientID,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
		Items:     o.Items,
		Charges:   newChargesView(cfg, res),
		Totals:    newTotalsView(res),
	}

	stored := o.AdditionalCharges.TotalAmount
	if stored != 0 && stored != res.TotalAmount {
		view.Drift = true
		recomputed := res.TotalAmount
		view.RecomputedTotal = &recomputed
		view.Totals.GSTAmount = o.AdditionalCharges.GSTAmount
		view.Totals.TotalAmount = stored
		if obs.ChargesDriftTotal != nil {
			obs.ChargesDriftTotal.Inc()
		}
		h.Logger.Warn().
			Str("order_id", o.ID).
			Int64("stored_total", stored).
			Int64("recomputed_total", recomputed).
			Msg("order totals drift")
	}
	return view
}

// GetOrder returns one order with drift detection against the stored totals.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := common.EffectiveToken(ctx)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	orderID := chi.URLParam(r, "orderID")
	if strings.TrimSpace(orderID) == "" {
		h.writeError(w, common.NewAppError("BAD_REQUEST", "missing order id", http.StatusBadRequest, nil))
		return
	}

	order, err := h.Backend.GetOrder(ctx, token, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, h.orderToView(order))
}

// ListOrders returns the caller's own orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := common.EffectiveToken(ctx)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	orders, err := h.Backend.ListUserOrders(ctx, token)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, h.ordersToViews(orders))
}

// ListClientOrders returns a client's orders for the agent dashboard.
func (h *Handler) ListClientOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := common.EffectiveToken(ctx)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	clientID := chi.URLParam(r, "clientID")
	if strings.TrimSpace(clientID) == "" {
		h.writeError(w, common.NewAppError("BAD_REQUEST", "missing client id", http.StatusBadRequest, nil))
		return
	}
	orders, err := h.Backend.ListClientOrders(ctx, token, clientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, h.ordersToViews(orders))
}

func (h *Handler) ordersToViews(orders []backend.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, h.orderToView(o))
	}
	return views
}

type agentProfileRequest struct {
	Name      string `json:"name" validate:"omitempty,min=2,max=120"`
	Phone     string `json:"phone" validate:"omitempty,e164"`
	Territory string `json:"territory" validate:"omitempty,max=120"`
	Status    string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// UpdateAgentProfile updates an agent's editable fields. The backend call may
// degrade to sequential per-section updates; a mid-sequence failure is
// surfaced as a partial update rather than hidden or rolled back.
func (h *Handler) UpdateAgentProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	// profile edits always act as the agent, never the impersonated client
	token, ok := common.BearerToken(ctx)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	agentID := chi.URLParam(r, "agentID")
	if strings.TrimSpace(agentID) == "" {
		h.writeError(w, common.NewAppError("BAD_REQUEST", "missing agent id", http.StatusBadRequest, nil))
		return
	}

	var req agentProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, common.NewAppError("BAD_REQUEST", "invalid profile payload", http.StatusBadRequest, err))
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			h.writeError(w, &common.AppError{
				Code:       "VALIDATION",
				Message:    "profile payload failed validation",
				HTTPStatus: http.StatusUnprocessableEntity,
				Err:        err,
				Details:    validationDetails(err),
			})
			return
		}
	}

	err := h.Backend.UpdateAgentProfile(ctx, token, agentID, backend.AgentProfileUpdate{
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Territory: strings.TrimSpace(req.Territory),
		Status:    req.Status,
	})
	if err != nil {
		if strings.Contains(err.Error(), "partially applied") {
			common.JSONError(w, http.StatusBadGateway, "PARTIAL_UPDATE", err.Error(), nil)
			return
		}
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]string{"status": "updated"})
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resilience.ErrOpenCircuit):
		common.JSONError(w, http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "distributor backend temporarily unavailable", nil)
		return
	case errors.Is(err, backend.ErrUnauthorized):
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "session expired or invalid", nil)
		return
	case errors.Is(err, backend.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "resource not found", nil)
		return
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			code := apiErr.Code
			if code == "" {
				code = "BAD_REQUEST"
			}
			common.JSONError(w, apiErr.StatusCode, code, apiErr.Message, nil)
			return
		}
		h.Logger.Error().Err(err).Msg("backend request failed")
		common.JSONError(w, http.StatusBadGateway, "BACKEND_ERROR", "distributor backend error", nil)
		return
	}

	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}

	h.Logger.Error().Err(err).Msg("gateway request failed")
	common.JSONError(w, http.StatusBadGateway, "BACKEND_ERROR", "distributor backend unreachable", nil)
}
