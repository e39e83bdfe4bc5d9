// Package processor owns the render job state machine: it admits a job
// into processing, drives one render attempt against the browser, and
// persists the outcome with status-guarded writes so concurrent workers
// can never double-run or clobber a transition.
package processor

import (
	"bytes"
	"context"
	"time"

	"invoicepdf/internal/browser"
	"invoicepdf/internal/models"
	"invoicepdf/internal/notify"
	apperrors "invoicepdf/internal/pkg/errors"
	"invoicepdf/internal/pkg/logger"
	"invoicepdf/internal/ports"
)

// InvoiceStore is the slice of the invoice repository the state machine
// needs. Implementations must make every Mark* call a single guarded
// write (see repositories.InvoiceRepository).
type InvoiceStore interface {
	Get(ctx context.Context, id string) (*models.Invoice, error)
	MarkProcessing(ctx context.Context, id string, maxAttempts int) error
	MarkDone(ctx context.Context, id, pdfPath string) error
	MarkFailedRetryable(ctx context.Context, id string) (int, error)
	MarkFailedTerminal(ctx context.Context, id, detail string) error
}

// RetryScheduler re-enqueues a job after its backoff delay.
type RetryScheduler interface {
	PushDelayed(ctx context.Context, jobID string, delay time.Duration) error
}

type Deps struct {
	Repo     InvoiceStore
	Renderer browser.Client
	Store    ports.StorageProvider
	Queue    RetryScheduler
	Notifier notify.Notifier
	Retry    RetryPolicy
	PDF      browser.PDFOptions
	Log      *logger.Logger
}

type Processor struct {
	repo     InvoiceStore
	renderer browser.Client
	store    ports.StorageProvider
	queue    RetryScheduler
	notifier notify.Notifier
	retry    RetryPolicy
	pdf      browser.PDFOptions
	log      *logger.Logger
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	retry := d.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	pdf := d.PDF
	if pdf.PaperWidthMM == 0 {
		pdf = browser.A4Invoice()
	}

	return &Processor{
		repo:     d.Repo,
		renderer: d.Renderer,
		store:    d.Store,
		queue:    d.Queue,
		notifier: d.Notifier,
		retry:    retry,
		pdf:      pdf,
		log:      log.WithComponent("processor"),
	}
}

// ErrNotStartable is surfaced when the admission guard matched no row.
// The dispatcher treats it as "someone else has this job", not a failure.
var ErrNotStartable = apperrors.New(apperrors.CodeConflict, "job is not in a startable state")

// Process runs one render attempt for jobID, end to end. The processing
// transition is persisted before any render work so a crash mid-attempt
// leaves a recoverable row, never a lost job.
func (p *Processor) Process(ctx context.Context, jobID string) error {
	log := p.log.FromContext(ctx).WithJobID(jobID)

	if err := p.repo.MarkProcessing(ctx, jobID, p.retry.MaxAttempts); err != nil {
		log.Debug("job not admitted", "reason", err.Error())
		return ErrNotStartable
	}

	inv, err := p.repo.Get(ctx, jobID)
	if err != nil {
		// Admitted but unreadable: the row vanished under us. Nothing to
		// transition, nothing to retry.
		return apperrors.WrapWithCode(err, apperrors.CodeNotFound, "processor.load", "invoice disappeared after admission")
	}

	log.Info("render attempt starting", "attempt_count", inv.AttemptCount)
	start := time.Now()

	if err := p.renderOnce(ctx, inv); err != nil {
		return p.handleFailure(ctx, inv, err)
	}

	log.Info("render attempt succeeded", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (p *Processor) renderOnce(ctx context.Context, inv *models.Invoice) error {
	html, err := buildInvoiceHTML(inv)
	if err != nil {
		return err
	}

	pdf, err := p.renderer.Render(ctx, html, p.pdf)
	if err != nil {
		return err
	}

	objectKey := inv.UUID + ".pdf"
	if _, err := p.store.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   objectKey,
		ContentType: "application/pdf",
		Reader:      bytes.NewReader(pdf),
		Size:        int64(len(pdf)),
	}); err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeRenderError, "processor.store", "failed to persist rendered pdf")
	}

	if err := p.repo.MarkDone(ctx, inv.ID, objectKey); err != nil {
		return apperrors.Wrap(err, "processor.done", "failed to record completion")
	}
	return nil
}

// handleFailure classifies the attempt's failure and persists exactly one
// transition: failed-pending-retry with a scheduled re-enqueue, or failed
// for good with error_detail and a fire-and-forget alert.
func (p *Processor) handleFailure(ctx context.Context, inv *models.Invoice, cause error) error {
	log := p.log.FromContext(ctx).WithJobID(inv.ID)

	var appErr *apperrors.Error
	if apperrors.As(cause, &appErr) {
		log.Warn("render attempt failed",
			"code", string(appErr.Code),
			"op", appErr.Op,
			"attempt_count", inv.AttemptCount,
		)
	} else {
		log.Warn("render attempt failed", "error", cause.Error(), "attempt_count", inv.AttemptCount)
	}

	dec := p.retry.Decide(inv.AttemptCount, cause)
	if !dec.Retry {
		detail := cause.Error()
		if len(detail) > 2000 {
			detail = detail[:2000]
		}
		if err := p.repo.MarkFailedTerminal(ctx, inv.ID, detail); err != nil {
			return apperrors.Wrap(err, "processor.fail", "failed to record terminal failure")
		}
		if p.notifier != nil {
			p.notifier.NotifyFailure(inv.ID, detail)
		}
		log.Error("job failed permanently", "attempt_count", inv.AttemptCount)
		return cause
	}

	attempts, err := p.repo.MarkFailedRetryable(ctx, inv.ID)
	if err != nil {
		return apperrors.Wrap(err, "processor.fail", "failed to record retryable failure")
	}
	if err := p.queue.PushDelayed(ctx, inv.ID, dec.After); err != nil {
		// The row stays failed with attempts left, so a later sweep or a
		// manual re-enqueue can still pick it up.
		log.Error("retry enqueue failed", "error", err.Error())
		return apperrors.Wrap(err, "processor.retry", "failed to schedule retry")
	}

	log.Info("retry scheduled",
		"attempt_count", attempts,
		"delay_ms", dec.After.Milliseconds(),
	)
	return cause
}
