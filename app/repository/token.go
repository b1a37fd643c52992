package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-payment-reconciler/app/entity"
)

// tokenRowID pins the cache to a single row so concurrent writers overwrite
// each other instead of appending.
const tokenRowID = 1

type TokenRepository struct {
	db    DBTX
	table string
}

func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db, table: "token_cora"}
}

func (r *TokenRepository) Get(ctx context.Context) (*entity.AccessToken, error) {
	query := "SELECT access_token, expires_at FROM " + r.table + " WHERE id = ?"

	token := &entity.AccessToken{}
	err := r.db.QueryRowContext(ctx, query, tokenRowID).Scan(&token.Value, &token.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return token, nil
}

func (r *TokenRepository) Put(ctx context.Context, token *entity.AccessToken) error {
	query := "REPLACE INTO " + r.table + " (id, access_token, expires_at) VALUES (?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query, tokenRowID, token.Value, token.ExpiresAt.UTC())
	return err
}
