package counterparty

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/invoicedesk/internal/invoice"
)

// PGRepository searches the counterparty directory in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Search matches name prefixes and tax id prefixes.
func (r *PGRepository) Search(ctx context.Context, accountID int64, query string, limit int) ([]invoice.Counterparty, error) {
	pattern := escapeLike(query) + "%"
	rows, err := r.pool.Query(ctx, `SELECT name, tax_id, address FROM counterparties
		WHERE account_id = $1 AND (name ILIKE $2 OR tax_id LIKE $2)
		ORDER BY name LIMIT $3`, accountID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("counterparty: search: %w", err)
	}
	defer rows.Close()
	var out []invoice.Counterparty
	for rows.Next() {
		var c invoice.Counterparty
		if err := rows.Scan(&c.Name, &c.TaxID, &c.Address); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
