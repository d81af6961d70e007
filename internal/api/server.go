package api

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/banktx/internal/ledger"
	"github.com/cleared-dev/banktx/internal/model"
	"github.com/cleared-dev/banktx/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Ledger is the part of ledger.Service the HTTP layer needs.
type Ledger interface {
	Import(ctx context.Context, r io.Reader) (ledger.Result, error)
	List(ctx context.Context) ([]model.Transaction, error)
}

// Options configures a Server.
type Options struct {
	Ledger    Ledger
	Formatter *view.Formatter
	Logger    zerolog.Logger
	BodyLimit int    // bytes; 0 keeps fiber's default
	ImportLog string // import log path; "" disables it
}

// Server serves the transaction endpoints.
type Server struct {
	app  *fiber.App
	opts Options
}

// New builds a Server with its routes and middleware registered.
func New(opts Options) *Server {
	if opts.Formatter == nil {
		opts.Formatter = view.New(view.DefaultOptions())
	}

	app := fiber.New(fiber.Config{
		AppName:               "banktx",
		BodyLimit:             opts.BodyLimit,
		ErrorHandler:          handleError,
		DisableStartupMessage: true,
	})

	s := &Server{app: app, opts: opts}

	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))
	app.Use(requestLogger(opts.Logger))
	app.Use(recover.New())

	app.Get("/health", s.handleHealth)
	app.Get("/transactions", s.handleListHTML)
	app.Post("/transactions", s.handleUpload)
	app.Get("/api/transactions", s.handleListJSON)

	return s
}

// App exposes the underlying fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
