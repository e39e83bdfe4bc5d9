package handlers

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"invoicepdf/internal/pkg/logger"
	"invoicepdf/internal/ports"
	"invoicepdf/internal/repositories"
	"invoicepdf/internal/tokens"
	"invoicepdf/internal/worker/queue"
)

type Deps struct {
	Pool   *pgxpool.Pool
	RDB    *redis.Client
	SP     ports.StorageProvider
	Tokens tokens.Store
	Queue  *queue.RedisQueue
	Log    *logger.Logger
}

type Handler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	sp        ports.StorageProvider
	tokens    tokens.Store
	queue     *queue.RedisQueue
	invoices  *repositories.InvoiceRepository
	templates *repositories.TemplateRepository
	log       *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		pool:      d.Pool,
		rdb:       d.RDB,
		sp:        d.SP,
		tokens:    d.Tokens,
		queue:     d.Queue,
		invoices:  repositories.NewInvoiceRepository(d.Pool),
		templates: repositories.NewTemplateRepository(d.Pool),
		log:       log.WithComponent("httpapi"),
	}
}
