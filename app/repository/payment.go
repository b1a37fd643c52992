package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/entity"
)

var (
	ErrPaymentAlreadyExists   = errors.New("payment already exists")
	ErrPaymentAlreadyApproved = errors.New("payment already approved")
	ErrInvalidCandidateFilter = errors.New("candidate filter requires at least one kind")
)

const (
	statusApproved = "approved"
	statusRejected = "rejected"
)

const paymentColumns = `
	id, referencia, referencia_externa, valor, nome, documento,
	status, status_detail, tipo, origem, url_pagamento, requisicaooriginal,
	criado_em, atualizado_em
`

// CandidateFilter selects ledger rows awaiting a provider status lookup.
type CandidateFilter struct {
	Kinds            []string
	ExcludedStatuses []string
	Since            time.Time
	Limit            int32
}

type PaymentRepository struct {
	db TxDB
}

func NewPaymentRepository(db TxDB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// ListCandidates returns one entry per reference, oldest first.
func (r *PaymentRepository) ListCandidates(ctx context.Context, filter CandidateFilter) ([]entity.Candidate, error) {
	if len(filter.Kinds) == 0 {
		return nil, ErrInvalidCandidateFilter
	}

	conditions := []string{
		"tipo IN (" + placeholders(len(filter.Kinds)) + ")",
		"status IS NOT NULL",
		"referencia IS NOT NULL",
		"criado_em >= ?",
		"referencia NOT IN (SELECT referencia FROM pagamentos WHERE status = ? AND referencia IS NOT NULL)",
	}
	args := stringArgs(filter.Kinds)
	args = append(args, filter.Since.UTC(), statusApproved)

	if len(filter.ExcludedStatuses) > 0 {
		conditions = append(conditions, "status NOT IN ("+placeholders(len(filter.ExcludedStatuses))+")")
		args = append(args, stringArgs(filter.ExcludedStatuses)...)
	}

	query := `
		SELECT referencia, MAX(COALESCE(referencia_externa, ''))
		FROM pagamentos
		WHERE ` + strings.Join(conditions, " AND ") + `
		GROUP BY referencia
		ORDER BY MIN(criado_em) ASC
	`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]entity.Candidate, 0)
	for rows.Next() {
		var item entity.Candidate
		if err := rows.Scan(&item.Reference, &item.ExternalReference); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// ApplyStatus writes status to the rows of reference and returns the number
// of rows changed. Nothing changes once the reference has an approved row.
// Approval lands on the latest attempt only.
func (r *PaymentRepository) ApplyStatus(ctx context.Context, reference, status, statusDetail string, now time.Time) (int64, error) {
	target := "referencia = ?"
	targetArgs := []interface{}{reference}
	if status == statusApproved {
		target = "id = (SELECT id FROM (SELECT MAX(id) AS id FROM pagamentos WHERE referencia = ?) AS latest)"
	}

	query := `
		UPDATE pagamentos SET
			status = ?,
			status_detail = ?,
			atualizado_em = ?
		WHERE ` + target + `
			AND (status IS NULL OR status <> ?)
			AND NOT EXISTS (
				SELECT 1 FROM (
					SELECT id FROM pagamentos WHERE referencia = ? AND status = ?
				) AS settled
			)
	`

	args := []interface{}{status, statusDetail, now.UTC()}
	args = append(args, targetArgs...)
	args = append(args, statusApproved, reference, statusApproved)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (r *PaymentRepository) HasApproved(ctx context.Context, reference string) (bool, error) {
	return hasApproved(ctx, r.db, "referencia", reference)
}

// Register inserts a fresh attempt. It refuses when the reference or the
// external reference is already approved and purges rejected attempts first.
func (r *PaymentRepository) Register(ctx context.Context, payment *entity.Payment) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	approved, err := hasApproved(ctx, tx, "referencia", payment.Reference)
	if err != nil {
		return err
	}
	if approved {
		return ErrPaymentAlreadyApproved
	}

	externalRef := ""
	if payment.ExternalReference != nil {
		externalRef = strings.TrimSpace(*payment.ExternalReference)
	}
	if externalRef != "" {
		approved, err = hasApproved(ctx, tx, "referencia_externa", externalRef)
		if err != nil {
			return err
		}
		if approved {
			return ErrPaymentAlreadyApproved
		}
	}

	purge := "DELETE FROM pagamentos WHERE status = ? AND referencia = ?"
	purgeArgs := []interface{}{statusRejected, payment.Reference}
	if externalRef != "" {
		purge = "DELETE FROM pagamentos WHERE status = ? AND (referencia = ? OR referencia_externa = ?)"
		purgeArgs = append(purgeArgs, externalRef)
	}
	if _, err = tx.ExecContext(ctx, purge, purgeArgs...); err != nil {
		return err
	}

	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	if payment.UpdatedAt.IsZero() {
		payment.UpdatedAt = now
	}

	query := `
		INSERT INTO pagamentos (
			referencia, referencia_externa, valor, nome, documento,
			status, status_detail, tipo, origem, url_pagamento, requisicaooriginal,
			criado_em, atualizado_em
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		payment.Reference,
		nullableStringValue(payment.ExternalReference),
		amountFromCents(payment.AmountCents),
		nullableStringValue(payment.PayerName),
		nullableStringValue(payment.PayerDocument),
		payment.Status,
		nullableStringValue(payment.StatusDetail),
		payment.Kind,
		payment.Origin,
		nullableStringValue(payment.PaymentURL),
		nullableStringValue(payment.OriginalRequest),
		payment.CreatedAt.UTC(),
		payment.UpdatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	payment.ID = uint64(id)
	return nil
}

func (r *PaymentRepository) FindLatestByExternalReference(ctx context.Context, externalReference string) (*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM pagamentos
		WHERE referencia_externa = ?
		ORDER BY criado_em DESC, id DESC
		LIMIT 1
	`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, externalReference), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

func (r *PaymentRepository) ListByReference(ctx context.Context, reference string) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM pagamentos
		WHERE referencia = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, reference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Payment, 0)
	for rows.Next() {
		item, err := scanPaymentFromRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func hasApproved(ctx context.Context, db DBTX, column, value string) (bool, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM pagamentos WHERE %s = ? AND status = ?", column)
	if err := db.QueryRowContext(ctx, query, value, statusApproved).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var externalRef sql.NullString
	var amount decimal.NullDecimal
	var payerName sql.NullString
	var payerDocument sql.NullString
	var status sql.NullString
	var statusDetail sql.NullString
	var paymentURL sql.NullString
	var originalRequest sql.NullString
	var updatedAt sql.NullTime

	err := scan.Scan(
		&payment.ID,
		&payment.Reference,
		&externalRef,
		&amount,
		&payerName,
		&payerDocument,
		&status,
		&statusDetail,
		&payment.Kind,
		&payment.Origin,
		&paymentURL,
		&originalRequest,
		&payment.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return err
	}

	payment.ExternalReference = stringPtrFromNull(externalRef)
	payment.AmountCents = centsFromAmount(amount)
	payment.PayerName = stringPtrFromNull(payerName)
	payment.PayerDocument = stringPtrFromNull(payerDocument)
	payment.Status = status.String
	payment.StatusDetail = stringPtrFromNull(statusDetail)
	payment.PaymentURL = stringPtrFromNull(paymentURL)
	payment.OriginalRequest = stringPtrFromNull(originalRequest)
	if updatedAt.Valid {
		payment.UpdatedAt = updatedAt.Time
	}

	return nil
}

func scanPaymentFromRows(rows *sql.Rows) (*entity.Payment, error) {
	item := &entity.Payment{}
	if err := scanPayment(rows, item); err != nil {
		return nil, err
	}
	return item, nil
}
