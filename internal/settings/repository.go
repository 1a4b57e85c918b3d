package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
)

// ErrSettingsNotFound is returned when an account has no settings row.
var ErrSettingsNotFound = errors.New("accounting settings not found")

// PGRepository reads accounting settings from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Get(ctx context.Context, accountID int64) (invoice.Settings, error) {
	var rate string
	err := r.pool.QueryRow(ctx, `SELECT default_tax_rate::text FROM accounting_settings WHERE account_id = $1`, accountID).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return invoice.Settings{}, ErrSettingsNotFound
	}
	if err != nil {
		return invoice.Settings{}, fmt.Errorf("settings: get %d: %w", accountID, err)
	}
	pct, err := decimal.NewFromString(rate)
	if err != nil {
		return invoice.Settings{}, fmt.Errorf("settings: parse rate: %w", err)
	}
	return invoice.Settings{AccountID: accountID, DefaultTaxRate: pct}, nil
}

func (r *PGRepository) Upsert(ctx context.Context, s invoice.Settings) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO accounting_settings (account_id, default_tax_rate)
		VALUES ($1, $2::numeric)
		ON CONFLICT (account_id) DO UPDATE SET default_tax_rate = EXCLUDED.default_tax_rate`,
		s.AccountID, s.DefaultTaxRate.String())
	if err != nil {
		return fmt.Errorf("settings: upsert %d: %w", s.AccountID, err)
	}
	return nil
}
