package strategy

import "testing"

func TestDecideWithinRange(t *testing.T) {
	exp := Exposure{TotalDelta: 1, Notional: 100, DeltaPercentage: 0.01}
	got := Decide(exp, Policy{DeltaThreshold: 0.15})
	if got.Action != ActionNone {
		t.Fatalf("expected no action, got %+v", got)
	}
}

func TestDecideAtThresholdHedges(t *testing.T) {
	exp := Exposure{TotalDelta: 15, Notional: 100, DeltaPercentage: 0.15}
	got := Decide(exp, Policy{DeltaThreshold: 0.15})
	if got.Action != ActionHedge {
		t.Fatalf("expected hedge at threshold, got %+v", got)
	}
	if got.Side != SideSell || got.Size != -15 {
		t.Fatalf("expected sell 15, got %+v", got)
	}
}

func TestDecideShortExposureBuys(t *testing.T) {
	exp := Exposure{TotalDelta: -3, Notional: 10, DeltaPercentage: -0.3}
	got := Decide(exp, Policy{DeltaThreshold: 0.15, MinHedgeSize: 1})
	if got.Action != ActionHedge || got.Side != SideBuy || got.Size != 3 {
		t.Fatalf("expected buy 3, got %+v", got)
	}
}

func TestDecideTooSmall(t *testing.T) {
	exp := Exposure{TotalDelta: 0.5, Notional: 1, DeltaPercentage: 0.5}
	got := Decide(exp, Policy{DeltaThreshold: 0.15, MinHedgeSize: 1})
	if got.Action != ActionSkipSmall {
		t.Fatalf("expected skip, got %+v", got)
	}
}

func TestDecideAtMinimumSizeHedges(t *testing.T) {
	exp := Exposure{TotalDelta: 1, Notional: 2, DeltaPercentage: 0.5}
	got := Decide(exp, Policy{DeltaThreshold: 0.15, MinHedgeSize: 1})
	if got.Action != ActionHedge {
		t.Fatalf("expected hedge at minimum size, got %+v", got)
	}
}

func TestDecideZeroSizeNeverHedges(t *testing.T) {
	got := Decide(Exposure{}, Policy{})
	if got.Action == ActionHedge {
		t.Fatalf("expected no hedge for flat book, got %+v", got)
	}
}
