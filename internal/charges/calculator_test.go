package charges

import "testing"

func TestItemsSubtotal(t *testing.T) {
	items := []LineItem{
		{UnitPrice: 500, Quantity: 200},
		{UnitPrice: 1200, Quantity: 3},
		{UnitPrice: 999, Quantity: 0},
		{UnitPrice: 50, Quantity: -2},
	}
	if got := ItemsSubtotal(items); got != 103_600 {
		t.Fatalf("expected subtotal 103600, got %d", got)
	}
}

func TestInsuranceCeilsToNextLakh(t *testing.T) {
	cases := []struct {
		subtotal Money
		want     Money
	}{
		{0, 0},
		{1, 345},
		{99_999, 345},
		{100_000, 345},
		{100_001, 690},
		{250_000, 1035},
		{1_000_000, 3450},
	}
	for _, tc := range cases {
		if got := Insurance(tc.subtotal, Config{}); got != tc.want {
			t.Fatalf("subtotal %d: expected insurance %d, got %d", tc.subtotal, tc.want, got)
		}
	}
}

func TestInsuranceOverrideWins(t *testing.T) {
	cfg := Config{InsuranceOverride: 2000}
	if got := Insurance(250_000, cfg); got != 2000 {
		t.Fatalf("expected override 2000, got %d", got)
	}
	// zero override means auto
	if got := Insurance(250_000, Config{InsuranceOverride: 0}); got != 1035 {
		t.Fatalf("expected auto 1035, got %d", got)
	}
}

func TestComputeEndToEnd(t *testing.T) {
	items := []LineItem{{UnitPrice: 500, Quantity: 200}}
	cfg := Config{
		LoadingFee:       1000,
		WoodPackaging:    WoodTierBasic,
		TransportAdvance: 15_000,
		GSTRateBps:       1800,
	}
	got := Compute(items, cfg)
	want := Result{
		ItemsSubtotal:     100_000,
		Insurance:         345,
		SubtotalBeforeTax: 117_845,
		TaxAmount:         21_212,
		TotalAmount:       139_057,
	}
	if got != want {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestComputeDecompositionIdentity(t *testing.T) {
	items := []LineItem{
		{UnitPrice: 730, Quantity: 41},
		{UnitPrice: 12_500, Quantity: 7},
	}
	configs := []Config{
		{},
		{LoadingFee: 900, WoodPackaging: WoodTierDeluxe, TransportAdvance: 22_000, GSTRateBps: 1200},
		{LoadingFee: 150, WoodPackaging: 6100, InsuranceOverride: 5000, GSTRateBps: 1800},
	}
	for _, cfg := range configs {
		res := Compute(items, cfg)
		if res.TotalAmount != res.SubtotalBeforeTax+res.TaxAmount {
			t.Fatalf("total != subtotalBeforeTax + tax for %+v: %+v", cfg, res)
		}
		wantBefore := res.ItemsSubtotal + cfg.LoadingFee + cfg.WoodPackaging + res.Insurance + cfg.TransportAdvance
		if res.SubtotalBeforeTax != wantBefore {
			t.Fatalf("subtotalBeforeTax decomposition broken for %+v: %+v", cfg, res)
		}
	}
}

func TestComputeIdempotent(t *testing.T) {
	items := []LineItem{{UnitPrice: 333, Quantity: 9}}
	cfg := Config{LoadingFee: 100, WoodPackaging: WoodTierStandard, GSTRateBps: 1800}
	first := Compute(items, cfg)
	second := Compute(items, cfg)
	if first != second {
		t.Fatalf("compute is not idempotent: %+v vs %+v", first, second)
	}
}

func TestComputeEmptyCart(t *testing.T) {
	cfg := Config{
		LoadingFee:       1000,
		WoodPackaging:    WoodTierStandard,
		TransportAdvance: 5000,
		GSTRateBps:       1800,
	}
	res := Compute(nil, cfg)
	if res.ItemsSubtotal != 0 {
		t.Fatalf("expected zero items subtotal, got %d", res.ItemsSubtotal)
	}
	if res.Insurance != 0 {
		t.Fatalf("expected zero insurance on empty cart, got %d", res.Insurance)
	}
	if res.SubtotalBeforeTax != 8500 {
		t.Fatalf("expected flat charges 8500, got %d", res.SubtotalBeforeTax)
	}
	if res.TaxAmount != 1530 {
		t.Fatalf("expected tax 1530, got %d", res.TaxAmount)
	}
	if res.TotalAmount != 10_030 {
		t.Fatalf("expected total 10030, got %d", res.TotalAmount)
	}
}

func TestRoundHalfUpTieBreak(t *testing.T) {
	// 250 * 18% = 45 exactly; 25 * 18% = 4.5 rounds up to 5.
	if got := roundHalfUpBps(250, 1800); got != 45 {
		t.Fatalf("expected 45, got %d", got)
	}
	if got := roundHalfUpBps(25, 1800); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := roundHalfUpBps(24, 1800); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}

func TestPercentBpsRoundTrip(t *testing.T) {
	if got := PercentToBps(18); got != 1800 {
		t.Fatalf("expected 1800 bps, got %d", got)
	}
	if got := PercentToBps(12.5); got != 1250 {
		t.Fatalf("expected 1250 bps, got %d", got)
	}
	if got := BpsToPercent(1800); got != 18 {
		t.Fatalf("expected 18 percent, got %v", got)
	}
}

func TestWoodTierLabel(t *testing.T) {
	cases := map[Money]string{
		WoodTierBasic:    "basic",
		WoodTierStandard: "standard",
		WoodTierPremium:  "premium",
		WoodTierDeluxe:   "deluxe",
		6100:             "custom",
		0:                "custom",
	}
	for amount, want := range cases {
		if got := WoodTierLabel(amount); got != want {
			t.Fatalf("amount %d: expected %q, got %q", amount, want, got)
		}
	}
}
