package stay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/hospital-billing/internal/money"
)

const chargeColumns = `id, subject_id, from_bed, to_bed, from_tariff, admission_date, transfer_date,
days_stayed, total_amount, tax_pct, status, created_at, billed_at`

// PostgresStore persists charges in the stay_charges table. The billed
// transition is a conditional UPDATE so only one caller can win it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore constructs a Store backed by a pgx connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InsertPending stores a new pending charge.
func (s *PostgresStore) InsertPending(ctx context.Context, c *Charge) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	if c == nil || c.ID() == "" {
		return fmt.Errorf("%w: charge without id", ErrInvalidInput)
	}
	if !c.Pending() {
		return fmt.Errorf("%w: charge %s is not pending", ErrInvalidInput, c.ID())
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO stay_charges (`+chargeColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULL)`,
		c.ID(), c.SubjectID(), c.FromBed(), c.ToBed(), c.FromTariff(), c.AdmissionDate(), c.TransferDate(),
		c.DaysStayed(), c.TotalAmount(), float64(c.TaxPct()), string(c.Status()), c.CreatedAt())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: duplicate charge %s", ErrInvalidInput, c.ID())
	}
	return err
}

// ListPending returns the subject's pending charges ordered by transfer date.
func (s *PostgresStore) ListPending(ctx context.Context, subjectID string) ([]*Charge, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT `+chargeColumns+` FROM stay_charges
WHERE subject_id = $1 AND status = 'pending' ORDER BY transfer_date, id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*Charge, 0)
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get loads a charge by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Charge, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	row := s.pool.QueryRow(ctx, `SELECT `+chargeColumns+` FROM stay_charges WHERE id = $1`, id)
	c, err := scanCharge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// MarkBilled flips a pending charge to billed. The status predicate in the
// UPDATE makes the transition single-winner under concurrency.
func (s *PostgresStore) MarkBilled(ctx context.Context, id string, at time.Time) (bool, error) {
	if s == nil || s.pool == nil {
		return false, ErrStoreUnavailable
	}
	tag, err := s.pool.Exec(ctx, `UPDATE stay_charges SET status = 'billed', billed_at = $2
WHERE id = $1 AND status = 'pending'`, id, at.UTC())
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stay_charges WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

func scanCharge(row pgx.Row) (*Charge, error) {
	var (
		rec      Record
		taxPct   float64
		status   string
		billedAt *time.Time
	)
	if err := row.Scan(&rec.ID, &rec.SubjectID, &rec.FromBed, &rec.ToBed, &rec.FromTariff,
		&rec.AdmissionDate, &rec.TransferDate, &rec.DaysStayed, &rec.TotalAmount,
		&taxPct, &status, &rec.CreatedAt, &billedAt); err != nil {
		return nil, err
	}
	rec.TaxPct = money.Percent(taxPct)
	rec.Status = Status(status)
	rec.BilledAt = billedAt
	return FromRecord(rec)
}
