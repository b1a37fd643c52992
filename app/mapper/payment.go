package mapper

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/entity"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/types"
)

func PaymentToResponse(item *entity.Payment) *types.Payment {
	if item == nil {
		return nil
	}

	return &types.Payment{
		ID:                item.ID,
		Reference:         item.Reference,
		ExternalReference: derefString(item.ExternalReference),
		Amount:            decimal.New(item.AmountCents, -2).StringFixed(2),
		AmountCents:       item.AmountCents,
		PayerName:         derefString(item.PayerName),
		PayerDocument:     derefString(item.PayerDocument),
		Status:            item.Status,
		StatusDetail:      derefString(item.StatusDetail),
		Kind:              item.Kind,
		Origin:            item.Origin,
		PaymentURL:        derefString(item.PaymentURL),
		CreatedAt:         formatTime(item.CreatedAt),
		UpdatedAt:         formatTime(item.UpdatedAt),
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
