package entity

import "time"

const (
	KindPix    = "pix"
	KindBoleto = "boleto"
	KindCard   = "card"
)

// Payment is one row of the local ledger. AmountCents is kept in minor units.
type Payment struct {
	ID uint64

	Reference         string
	ExternalReference *string

	AmountCents   int64
	PayerName     *string
	PayerDocument *string

	Status       string
	StatusDetail *string

	Kind   string
	Origin string

	PaymentURL      *string
	OriginalRequest *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Candidate is a ledger reference selected for a provider status lookup.
type Candidate struct {
	Reference         string
	ExternalReference string
}
