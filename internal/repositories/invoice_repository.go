package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"invoicepdf/internal/models"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

// ErrNotStartable is returned when a guarded transition matched no row:
// the job is already processing, already terminal, or missing.
var ErrNotStartable = errors.New("invoice not in a startable state")

// ErrStaleTransition is returned when a done/failed update found the row no
// longer in processing, meaning another worker already moved it.
var ErrStaleTransition = errors.New("invoice status changed by another worker")

type InvoiceRepository struct {
	db *pgxpool.Pool
}

func NewInvoiceRepository(db *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *models.Invoice) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO invoices (id, uuid, status, data_json, template_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, inv.ID, inv.UUID, inv.Status, inv.DataJSON, inv.TemplateID, inv.CreatedAt.UTC()).Scan(&inv.CreatedAt)
}

func (r *InvoiceRepository) Get(ctx context.Context, id string) (*models.Invoice, error) {
	var inv models.Invoice
	var pdfPath, errDetail *string
	err := r.db.QueryRow(ctx, `
		SELECT id, uuid, status, data_json, pdf_path, error_detail, attempt_count,
		       template_id, created_at, started_at, finished_at
		FROM invoices
		WHERE id=$1
	`, id).Scan(
		&inv.ID,
		&inv.UUID,
		&inv.Status,
		&inv.DataJSON,
		&pdfPath,
		&errDetail,
		&inv.AttemptCount,
		&inv.TemplateID,
		&inv.CreatedAt,
		&inv.StartedAt,
		&inv.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	if pdfPath != nil {
		inv.PDFPath = *pdfPath
	}
	if errDetail != nil {
		inv.ErrorDetail = *errDetail
	}
	return &inv, nil
}

func (r *InvoiceRepository) List(ctx context.Context, status models.Status, limit int) ([]models.Invoice, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		rows, err = r.db.Query(ctx, `
			SELECT id, uuid, status, attempt_count, created_at, finished_at
			FROM invoices WHERE status=$1
			ORDER BY created_at DESC
			LIMIT $2`, status, limit)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT id, uuid, status, attempt_count, created_at, finished_at
			FROM invoices
			ORDER BY created_at DESC
			LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Invoice
	for rows.Next() {
		var inv models.Invoice
		if err := rows.Scan(&inv.ID, &inv.UUID, &inv.Status, &inv.AttemptCount, &inv.CreatedAt, &inv.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// MarkProcessing admits a job into processing. The WHERE clause is the
// concurrency guard: only a queued row, or a failed row that still has
// attempts left and no terminal error_detail, matches. A row already in
// processing (or terminal) matches nothing, so a second caller gets
// ErrNotStartable instead of a duplicate render.
func (r *InvoiceRepository) MarkProcessing(ctx context.Context, id string, maxAttempts int) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE invoices
		SET status='processing', started_at=now(), finished_at=NULL
		WHERE id=$1
		  AND (status='queued'
		       OR (status='failed' AND error_detail IS NULL AND attempt_count < $2))
	`, id, maxAttempts)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotStartable
	}
	return nil
}

// MarkDone records the output path and the done status in one statement, so
// no observer can see pdf_path without status=done or vice versa.
func (r *InvoiceRepository) MarkDone(ctx context.Context, id, pdfPath string) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE invoices
		SET status='done', pdf_path=$2, finished_at=now()
		WHERE id=$1 AND status='processing'
	`, id, pdfPath)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkFailedRetryable records a failed attempt that will be retried.
// error_detail stays NULL, which is what keeps the row re-admittable.
func (r *InvoiceRepository) MarkFailedRetryable(ctx context.Context, id string) (attempts int, err error) {
	err = r.db.QueryRow(ctx, `
		UPDATE invoices
		SET status='failed', attempt_count=attempt_count+1, finished_at=now()
		WHERE id=$1 AND status='processing'
		RETURNING attempt_count
	`, id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrStaleTransition
		}
		return 0, err
	}
	return attempts, nil
}

// MarkFailedTerminal ends the job for good. Writing error_detail is what
// makes the failure permanent; MarkProcessing never re-admits such a row.
func (r *InvoiceRepository) MarkFailedTerminal(ctx context.Context, id, detail string) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE invoices
		SET status='failed', error_detail=$2, finished_at=now()
		WHERE id=$1 AND status='processing'
	`, id, detail)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

// Touch is used by health checks and tests to verify connectivity.
func (r *InvoiceRepository) Touch(ctx context.Context) error {
	var now time.Time
	return r.db.QueryRow(ctx, `SELECT now()`).Scan(&now)
}
