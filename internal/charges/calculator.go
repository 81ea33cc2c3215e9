package charges

// Money represents a monetary value in whole currency units. The order data
// carries no sub-unit amounts, so integer rupees are exact.
type Money = int64

// Insurance is billed per started lakh of item exposure.
const (
	LakhUnit         Money = 100_000
	InsurancePerLakh Money = 345
)

// Wood packaging tier amounts. Any other non-negative amount is treated as a
// bespoke packaging charge and participates in the sum identically.
const (
	WoodTierBasic    Money = 1500
	WoodTierStandard Money = 2500
	WoodTierPremium  Money = 3500
	WoodTierDeluxe   Money = 4500
)

// LineItem describes a priced cart line. UnitPrice is the resolved display
// price supplied by the backend; commission adjustment already happened there.
type LineItem struct {
	UnitPrice Money
	Quantity  int
}

// Config holds the additional charge components applied on top of the items
// subtotal. InsuranceOverride greater than zero replaces the auto-calculated
// insurance verbatim; zero means auto. The GST rate is kept in basis points
// (1800 == 18%) so the tax computation stays in integer arithmetic.
type Config struct {
	LoadingFee        Money
	WoodPackaging     Money
	InsuranceOverride Money
	TransportAdvance  Money
	GSTRateBps        int
}

// Result aggregates the computed charge components. It is derived state and
// never persisted; the backend order record stays the source of truth.
type Result struct {
	ItemsSubtotal     Money
	Insurance         Money
	SubtotalBeforeTax Money
	TaxAmount         Money
	TotalAmount       Money
}

// ItemsSubtotal sums unit price times quantity over all lines. Non-positive
// quantities are skipped. No rounding happens here.
func ItemsSubtotal(items []LineItem) Money {
	var subtotal Money
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		subtotal += Money(it.Quantity) * it.UnitPrice
	}
	return subtotal
}

// Insurance returns the insurance charge for the given items subtotal. A
// manual override wins whenever it is positive. Otherwise insurance is billed
// in whole-lakh increments: any started lakh of exposure counts as a full
// unit, so the quotient always rounds up, never to nearest.
func Insurance(itemsSubtotal Money, cfg Config) Money {
	if cfg.InsuranceOverride > 0 {
		return cfg.InsuranceOverride
	}
	if itemsSubtotal <= 0 {
		return 0
	}
	lakhs := (itemsSubtotal + LakhUnit - 1) / LakhUnit
	return lakhs * InsurancePerLakh
}

// Compute derives the full charge breakdown for a cart. It is pure and
// synchronous; callers invoke it after every local edit. Inputs are assumed
// pre-clamped by the edit boundary, negative values are not corrected here.
func Compute(items []LineItem, cfg Config) Result {
	subtotal := ItemsSubtotal(items)
	insurance := Insurance(subtotal, cfg)
	beforeTax := subtotal + cfg.LoadingFee + cfg.WoodPackaging + insurance + cfg.TransportAdvance
	tax := roundHalfUpBps(beforeTax, cfg.GSTRateBps)
	return Result{
		ItemsSubtotal:     subtotal,
		Insurance:         insurance,
		SubtotalBeforeTax: beforeTax,
		TaxAmount:         tax,
		TotalAmount:       beforeTax + tax,
	}
}

// roundHalfUpBps applies a basis-point rate to an amount and rounds the
// product to the nearest whole unit, ties rounding up. Integer arithmetic
// keeps the tie-break exact across platforms.
func roundHalfUpBps(amount Money, bps int) Money {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*Money(bps) + 5000) / 10000
}

// PercentToBps converts a wire-format GST percentage (18, 12, or a fractional
// rate) to basis points, rounding half up.
func PercentToBps(percent float64) int {
	if percent <= 0 {
		return 0
	}
	return int(percent*100 + 0.5)
}

// BpsToPercent converts basis points back to the percentage used on the wire.
func BpsToPercent(bps int) float64 {
	return float64(bps) / 100
}

// WoodTierLabel names the packaging tier for a given amount. Amounts outside
// the standard tiers render with a generic custom label but are summed
// identically.
func WoodTierLabel(amount Money) string {
	switch amount {
	case WoodTierBasic:
		return "basic"
	case WoodTierStandard:
		return "standard"
	case WoodTierPremium:
		return "premium"
	case WoodTierDeluxe:
		return "deluxe"
	default:
		return "custom"
	}
}
