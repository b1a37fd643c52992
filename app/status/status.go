package status

import "strings"

// Canonical is the provider-independent payment status stored locally and remotely.
type Canonical string

const (
	Pending     Canonical = "pending"
	InProcess   Canonical = "in_process"
	Approved    Canonical = "approved"
	Expired     Canonical = "expired"
	Cancelled   Canonical = "cancelled"
	Rejected    Canonical = "rejected"
	Refunded    Canonical = "refunded"
	ChargedBack Canonical = "charged_back"
)

const (
	ProviderCora        = "cora"
	ProviderMercadoPago = "mercadopago"
)

var canonical = map[Canonical]struct{}{
	Pending:     {},
	InProcess:   {},
	Approved:    {},
	Expired:     {},
	Cancelled:   {},
	Rejected:    {},
	Refunded:    {},
	ChargedBack: {},
}

var coraStatuses = map[string]Canonical{
	"OPEN":       Pending,
	"PENDING":    Pending,
	"PAID":       Approved,
	"EXPIRED":    Expired,
	"CANCELLED":  Cancelled,
	"PROCESSING": InProcess,
	"FAILED":     Rejected,
}

// Normalize maps a raw provider status to the canonical vocabulary.
// Values without a mapping are returned unchanged.
func Normalize(provider, raw string) Canonical {
	if provider == ProviderCora {
		if mapped, ok := coraStatuses[raw]; ok {
			return mapped
		}
	}
	// MercadoPago already reports the canonical vocabulary.
	return Canonical(raw)
}

// IsKnown reports whether s belongs to the canonical vocabulary.
func IsKnown(s Canonical) bool {
	_, ok := canonical[s]
	return ok
}

// IsFinal reports whether no further provider transition is expected.
func IsFinal(s Canonical) bool {
	switch s {
	case Approved, Rejected, Cancelled, Refunded, ChargedBack:
		return true
	}
	return false
}

var detailDescriptions = map[string]string{
	"accredited":                           "payment approved and credited",
	"pending_contingency":                  "payment under analysis",
	"pending_review_manual":                "payment under manual review",
	"pending_waiting_payment":              "waiting for payment",
	"pending_waiting_transfer":             "waiting for transfer",
	"cc_rejected_bad_filled_card_number":   "invalid card number",
	"cc_rejected_bad_filled_date":          "invalid expiration date",
	"cc_rejected_bad_filled_other":         "invalid card data",
	"cc_rejected_bad_filled_security_code": "invalid security code",
	"cc_rejected_blacklist":                "card is blacklisted",
	"cc_rejected_call_for_authorize":       "issuer authorization required",
	"cc_rejected_card_disabled":            "card disabled",
	"cc_rejected_card_error":               "card error",
	"cc_rejected_duplicated_payment":       "duplicated payment",
	"cc_rejected_high_risk":                "high risk payment",
	"cc_rejected_insufficient_amount":      "insufficient amount",
	"cc_rejected_invalid_installments":     "invalid installments",
	"cc_rejected_max_attempts":             "max attempts exceeded",
	"cc_rejected_other_reason":             "rejected for other reasons",
	"expired":                              "payment expired",
	"cancelled":                            "payment cancelled",
}

// Describe returns a readable description of a provider status detail code.
func Describe(detail string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return ""
	}
	if description, ok := detailDescriptions[detail]; ok {
		return description
	}
	return "unknown status detail: " + detail
}
