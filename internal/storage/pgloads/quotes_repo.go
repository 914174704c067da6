package pgloads

import (
	"context"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// convertibleFrom lists statuses a quote may be converted from.
var convertibleFrom = func() []string {
	var out []string
	for _, st := range models.QuoteStatuses {
		if models.CanTransition(st, models.QuoteStatusConverted) {
			out = append(out, string(st))
		}
	}
	return out
}()

// ConvertQuote marks the quote converted and links both rows. Returns false
// when no convertible quote has that number.
func (s *Storage) ConvertQuote(ctx context.Context, quoteNumber string, loadID uint64, at time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var quoteID uint64
	err = tx.QueryRow(ctx, `
UPDATE quotes
SET status = $2, load_id = $3, converted_at = $4, updated_at = now()
WHERE quote_number = $1 AND status = ANY($5)
RETURNING id
`, quoteNumber, string(models.QuoteStatusConverted), loadID, at.UTC(), convertibleFrom).Scan(&quoteID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "update quote")
	}

	if _, err := tx.Exec(ctx, `UPDATE loads SET quote_id = $2, updated_at = now() WHERE id = $1`, loadID, quoteID); err != nil {
		return false, errors.Wrap(err, "link quote")
	}

	if err := tx.Commit(ctx); err != nil {
		return false, errors.Wrap(err, "commit tx")
	}
	return true, nil
}

func (s *Storage) CreateQuote(ctx context.Context, q models.Quote) (*models.Quote, error) {
	if q.Status == "" {
		q.Status = models.QuoteStatusPending
	}
	return scanQuote(s.db.QueryRow(ctx, `
INSERT INTO quotes (quote_number, status, customer_name, origin, destination)
VALUES ($1,$2,$3,$4,$5)
RETURNING id, quote_number, status, customer_name, origin, destination, load_id, converted_at, created_at, updated_at
`, q.QuoteNumber, string(q.Status), q.CustomerName, q.Origin, q.Destination))
}

func (s *Storage) GetQuoteByNumber(ctx context.Context, quoteNumber string) (*models.Quote, error) {
	return scanQuote(s.db.QueryRow(ctx, `
SELECT id, quote_number, status, customer_name, origin, destination, load_id, converted_at, created_at, updated_at
FROM quotes
WHERE quote_number = $1
`, quoteNumber))
}

// UpdateQuoteStatus moves a quote along its lifecycle. Conversion goes
// through ConvertQuote since it also links the load.
func (s *Storage) UpdateQuoteStatus(ctx context.Context, quoteNumber string, to models.QuoteStatus) (*models.Quote, error) {
	if to == models.QuoteStatusConverted {
		return nil, errors.Wrap(models.ErrInvalidQuoteTransition, "use ConvertQuote")
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from string
	err = tx.QueryRow(ctx, `SELECT status FROM quotes WHERE quote_number = $1 FOR UPDATE`, quoteNumber).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select quote")
	}
	if !models.CanTransition(models.QuoteStatus(from), to) {
		return nil, errors.Wrapf(models.ErrInvalidQuoteTransition, "%s -> %s", from, to)
	}

	q, err := scanQuote(tx.QueryRow(ctx, `
UPDATE quotes SET status = $2, updated_at = now()
WHERE quote_number = $1
RETURNING id, quote_number, status, customer_name, origin, destination, load_id, converted_at, created_at, updated_at
`, quoteNumber, string(to)))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return q, nil
}

func scanQuote(row pgx.Row) (*models.Quote, error) {
	var q models.Quote
	var status string
	if err := row.Scan(
		&q.ID, &q.QuoteNumber, &status, &q.CustomerName, &q.Origin, &q.Destination,
		&q.LoadID, &q.ConvertedAt, &q.CreatedAt, &q.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan quote")
	}
	q.Status = models.QuoteStatus(status)
	return &q, nil
}
