package status

import "testing"

func TestNormalizeCora(t *testing.T) {
	cases := map[string]Canonical{
		"OPEN":       Pending,
		"PENDING":    Pending,
		"PAID":       Approved,
		"EXPIRED":    Expired,
		"CANCELLED":  Cancelled,
		"PROCESSING": InProcess,
		"FAILED":     Rejected,
	}
	for raw, expected := range cases {
		if got := Normalize(ProviderCora, raw); got != expected {
			t.Fatalf("expected %s for %s, got %s", expected, raw, got)
		}
	}
}

func TestNormalizeMercadoPagoIsIdentity(t *testing.T) {
	for s := range canonical {
		if got := Normalize(ProviderMercadoPago, string(s)); got != s {
			t.Fatalf("expected identity for %s, got %s", s, got)
		}
	}
}

func TestNormalizeUnknownPassesThrough(t *testing.T) {
	if got := Normalize(ProviderCora, "WEIRD"); got != "WEIRD" {
		t.Fatalf("expected passthrough, got %s", got)
	}
	if got := Normalize(ProviderMercadoPago, "authorized"); got != "authorized" {
		t.Fatalf("expected passthrough, got %s", got)
	}
	if IsKnown(Normalize(ProviderCora, "WEIRD")) {
		t.Fatal("expected unknown status to be reported as unknown")
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		if Normalize(ProviderCora, "PAID") != Approved {
			t.Fatal("expected stable mapping")
		}
	}
}

func TestDescribe(t *testing.T) {
	if Describe("cc_rejected_high_risk") != "high risk payment" {
		t.Fatalf("unexpected description: %s", Describe("cc_rejected_high_risk"))
	}
	if Describe("") != "" {
		t.Fatal("expected empty description for empty detail")
	}
	if Describe("xyz") != "unknown status detail: xyz" {
		t.Fatalf("unexpected description: %s", Describe("xyz"))
	}
}

func TestIsFinal(t *testing.T) {
	if !IsFinal(Approved) || !IsFinal(ChargedBack) {
		t.Fatal("expected approved and charged_back to be final")
	}
	if IsFinal(Pending) || IsFinal(InProcess) || IsFinal(Canonical("on_hold")) {
		t.Fatal("expected open statuses to be non-final")
	}
}
