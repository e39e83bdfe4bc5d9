package httpapi

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"invoicepdf/internal/httpapi/handlers"
	"invoicepdf/internal/httpkit"
	"invoicepdf/internal/pkg/logger"
	"invoicepdf/internal/pkg/middleware"
	"invoicepdf/internal/ports"
	"invoicepdf/internal/tokens"
	"invoicepdf/internal/worker/queue"
)

type Deps struct {
	Pool      *pgxpool.Pool
	RDB       *redis.Client
	SP        ports.StorageProvider
	Tokens    tokens.Store
	QueueName string
	Log       *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))

	allowedOrigins := envCSV("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:8081",
		"http://localhost:5173",
	})
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	h := handlers.New(handlers.Deps{
		Pool:   d.Pool,
		RDB:    d.RDB,
		SP:     d.SP,
		Tokens: d.Tokens,
		Queue:  queue.NewRedisQueue(d.RDB, d.QueueName),
		Log:    log,
	})

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- INVOICES ----
	r.Post("/invoices", h.PostInvoice)
	r.Get("/invoices", h.ListInvoices)
	r.Get("/invoices/{invoiceId}", h.GetInvoice)
	r.Get("/invoices/{invoiceId}/download", h.IssueDownload)

	// ---- DOWNLOAD REDEMPTION (public, token is the only credential) ----
	r.Get("/download/{token}", h.RedeemDownload)

	// ---- TEMPLATES ----
	r.Post("/templates", h.PostTemplate)
	r.Get("/templates", h.ListTemplates)
	r.Get("/templates/{templateId}", h.GetTemplate)
	r.Delete("/templates/{templateId}", h.DeleteTemplate)

	return r
}

func envCSV(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
