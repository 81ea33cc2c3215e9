package cartview

import (
	"github.com/osomejk/stonedesk-gateway/internal/charges"
	"github.com/osomejk/stonedesk-gateway/internal/obs"
)

// Session owns the in-memory charges configuration for one active cart view.
// Every mutation recomputes the charge breakdown synchronously so the caller
// can render fresh totals immediately; persistence happens separately through
// the debounced Persister.
type Session struct {
	View   string
	Items  []charges.LineItem
	Config charges.Config
	Result charges.Result
}

// Edit carries the charge fields a dashboard form may change. Nil fields are
// left untouched. A zero InsuranceOverride clears the manual override and
// returns insurance to auto-calculation.
type Edit struct {
	LoadingFee        *charges.Money `json:"loadingFee,omitempty"`
	WoodPackaging     *charges.Money `json:"woodPackaging,omitempty"`
	InsuranceOverride *charges.Money `json:"insurance,omitempty"`
	TransportAdvance  *charges.Money `json:"transportAdvance,omitempty"`
	GSTRatePercent    *float64       `json:"gstRate,omitempty"`
}

// NewSession builds a session from backend-supplied items and charges and
// computes the initial breakdown.
func NewSession(view string, items []charges.LineItem, cfg charges.Config) *Session {
	s := &Session{View: view, Items: items, Config: cfg}
	s.recompute()
	return s
}

// Apply merges the edit into the configuration, clamping negative amounts to
// zero at this boundary, and returns the recomputed breakdown.
func (s *Session) Apply(edit Edit) charges.Result {
	if edit.LoadingFee != nil {
		s.Config.LoadingFee = clamp(*edit.LoadingFee)
	}
	if edit.WoodPackaging != nil {
		s.Config.WoodPackaging = clamp(*edit.WoodPackaging)
	}
	if edit.InsuranceOverride != nil {
		s.Config.InsuranceOverride = clamp(*edit.InsuranceOverride)
	}
	if edit.TransportAdvance != nil {
		s.Config.TransportAdvance = clamp(*edit.TransportAdvance)
	}
	if edit.GSTRatePercent != nil {
		percent := *edit.GSTRatePercent
		if percent < 0 {
			percent = 0
		}
		s.Config.GSTRateBps = charges.PercentToBps(percent)
	}
	s.recompute()
	return s.Result
}

// Recompute recalculates the breakdown without changing the configuration.
func (s *Session) Recompute() charges.Result {
	s.recompute()
	return s.Result
}

func (s *Session) recompute() {
	s.Result = charges.Compute(s.Items, s.Config)
	if obs.ChargesRecomputeTotal != nil {
		view := s.View
		if view == "" {
			view = "unknown"
		}
		obs.ChargesRecomputeTotal.WithLabelValues(view).Inc()
	}
}

func clamp(v charges.Money) charges.Money {
	if v < 0 {
		return 0
	}
	return v
}
