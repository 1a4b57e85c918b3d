package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/invoicedesk/internal/platform/db"
)

// ErrInvoiceLinked is returned when deleting an invoice that downstream
// records (journal entries, filings) still reference.
var ErrInvoiceLinked = errors.New("invoice is linked to downstream records")

const selectColumns = `id, account_id, direction, variant, issued_date, doc_prefix, doc_suffix,
	net_amount::text, tax_amount::text, total_amount::text, tax_rate::text, tax_exempt,
	counterparty_name, counterparty_tax_id, counterparty_address,
	deduction, shared_amount, certificate_no, summary_count, description, linked, updated_at`

// Repository persists invoices in PostgreSQL. Saves are last-writer-wins:
// no version column is checked.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// Get loads a single invoice.
func (r *Repository) Get(ctx context.Context, id int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, err
}

// Summaries returns working-set summaries in the order of ids. Unknown ids
// are skipped.
func (r *Repository) Summaries(ctx context.Context, ids []int64) ([]Summary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, doc_prefix, doc_suffix, issued_date, total_amount::text, linked
		FROM invoices WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("invoice: list summaries: %w", err)
	}
	defer rows.Close()
	byID := make(map[int64]Summary, len(ids))
	for rows.Next() {
		var (
			s     Summary
			total string
		)
		if err := rows.Scan(&s.ID, &s.DocumentNo.Prefix, &s.DocumentNo.Suffix, &s.IssuedDate, &total, &s.Linked); err != nil {
			return nil, err
		}
		if s.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("invoice: parse total: %w", err)
		}
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// List returns the ids of an account's invoices in one direction, newest first.
func (r *Repository) List(ctx context.Context, accountID int64, direction Direction, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM invoices WHERE account_id = $1 AND direction = $2
		ORDER BY issued_date DESC, id DESC LIMIT $3`, accountID, string(direction), limit)
	if err != nil {
		return nil, fmt.Errorf("invoice: list: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Save writes the full editable projection. A missing row answers
// Success=false rather than an error.
func (r *Repository) Save(ctx context.Context, id int64, f Fields) (SaveResult, error) {
	var rate *string
	if f.TaxRate.IsSet() && !f.TaxRate.IsExempt() {
		v := f.TaxRate.Percent().String()
		rate = &v
	}
	var deduction *string
	if f.Deduction != nil {
		v := string(*f.Deduction)
		deduction = &v
	}
	var summaryCount *int32
	if f.SummaryCount != nil {
		v := int32(*f.SummaryCount)
		summaryCount = &v
	}
	row := r.pool.QueryRow(ctx, `UPDATE invoices SET
			variant = $2, issued_date = $3, doc_prefix = $4, doc_suffix = $5,
			net_amount = $6::numeric, tax_amount = $7::numeric, total_amount = $8::numeric,
			tax_rate = $9::numeric, tax_exempt = $10,
			counterparty_name = $11, counterparty_tax_id = $12, counterparty_address = $13,
			deduction = $14, shared_amount = $15, certificate_no = $16, summary_count = $17,
			description = $18, updated_at = $19
		WHERE id = $1
		RETURNING `+selectColumns,
		id, string(f.Variant), f.IssuedDate, f.DocumentNo.Prefix, f.DocumentNo.Suffix,
		f.NetAmount.String(), f.TaxAmount.String(), f.TotalAmount.String(),
		rate, f.TaxRate.IsExempt(),
		f.Counterparty.Name, f.Counterparty.TaxID, f.Counterparty.Address,
		deduction, f.SharedAmount, f.CertificateNo, summaryCount,
		f.Description, r.now().UTC(),
	)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return SaveResult{Success: false}, nil
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return SaveResult{}, ErrDuplicateDocumentNo
		}
		return SaveResult{}, fmt.Errorf("invoice: save %d: %w", id, err)
	}
	return SaveResult{Success: true, Data: inv}, nil
}

// Delete removes an unlinked invoice. The linkage check and the delete run in
// one transaction.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var linked bool
		err := tx.QueryRow(ctx, `SELECT linked FROM invoices WHERE id = $1 FOR UPDATE`, id).Scan(&linked)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvoiceNotFound
		}
		if err != nil {
			return fmt.Errorf("invoice: lock %d: %w", id, err)
		}
		if linked {
			return ErrInvoiceLinked
		}
		if _, err := tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id); err != nil {
			return fmt.Errorf("invoice: delete %d: %w", id, err)
		}
		return nil
	})
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv                Invoice
		direction, variant string
		net, tax, total    string
		rate               *string
		exempt             bool
		deduction          *string
		summaryCount       *int32
	)
	err := row.Scan(
		&inv.ID, &inv.AccountID, &direction, &variant, &inv.IssuedDate,
		&inv.DocumentNo.Prefix, &inv.DocumentNo.Suffix,
		&net, &tax, &total, &rate, &exempt,
		&inv.Counterparty.Name, &inv.Counterparty.TaxID, &inv.Counterparty.Address,
		&deduction, &inv.SharedAmount, &inv.CertificateNo, &summaryCount, &inv.Description,
		&inv.Linked, &inv.UpdatedAt,
	)
	if err != nil {
		return Invoice{}, err
	}
	inv.Direction = Direction(direction)
	inv.Variant = Variant(variant)
	if inv.NetAmount, err = decimal.NewFromString(net); err != nil {
		return Invoice{}, fmt.Errorf("invoice: parse net amount: %w", err)
	}
	if inv.TaxAmount, err = decimal.NewFromString(tax); err != nil {
		return Invoice{}, fmt.Errorf("invoice: parse tax amount: %w", err)
	}
	if inv.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return Invoice{}, fmt.Errorf("invoice: parse total amount: %w", err)
	}
	switch {
	case exempt:
		inv.TaxRate = Exempt()
	case rate != nil:
		pct, err := decimal.NewFromString(*rate)
		if err != nil {
			return Invoice{}, fmt.Errorf("invoice: parse tax rate: %w", err)
		}
		inv.TaxRate = Rate(pct)
	}
	if deduction != nil {
		d := Deduction(*deduction)
		inv.Deduction = &d
	}
	if summaryCount != nil {
		n := int(*summaryCount)
		inv.SummaryCount = &n
	}
	return inv, nil
}
