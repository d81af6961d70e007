package api

import (
	"bytes"
	"fmt"
	"mime"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cleared-dev/banktx/internal/importer"
	"github.com/cleared-dev/banktx/internal/importlog"
	"github.com/cleared-dev/banktx/internal/logger"
	"github.com/cleared-dev/banktx/internal/model"
)

// uploadSource names HTTP uploads in the import log.
const uploadSource = "http"

var csvMediaTypes = map[string]bool{
	"":                         true,
	"text/csv":                 true,
	"text/plain":               true,
	"application/octet-stream": true,
}

// ListResponse is the JSON body of GET /api/transactions.
type ListResponse struct {
	Transactions []model.Row `json:"transactions"`
	Count        int         `json:"count"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	if ct := c.Get(fiber.HeaderContentType); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || !csvMediaTypes[mt] {
			return fiber.NewError(fiber.StatusUnsupportedMediaType, fmt.Sprintf("Unsupported content type %q, expected text/csv", ct))
		}
	}

	ctx := c.UserContext()
	res, err := s.opts.Ledger.Import(ctx, bytes.NewReader(c.Body()))
	s.recordImport(c, res.BatchID, res.Count, err)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

func (s *Server) handleListHTML(c *fiber.Ctx) error {
	rows, err := s.rows(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "transactions.html", struct{ Rows []model.Row }{rows}); err != nil {
		return fmt.Errorf("rendering transactions page: %w", err)
	}

	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

func (s *Server) handleListJSON(c *fiber.Ctx) error {
	rows, err := s.rows(c)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []model.Row{}
	}
	return c.JSON(ListResponse{Transactions: rows, Count: len(rows)})
}

func (s *Server) rows(c *fiber.Ctx) ([]model.Row, error) {
	txs, err := s.opts.Ledger.List(c.UserContext())
	if err != nil {
		return nil, err
	}
	return s.opts.Formatter.Format(txs), nil
}

func (s *Server) recordImport(c *fiber.Ctx, batchID string, count int, err error) {
	if s.opts.ImportLog == "" {
		return
	}

	entry := importlog.Entry{
		Timestamp: time.Now().UTC(),
		Source:    uploadSource,
		Outcome:   importlog.OutcomeImported,
		BatchID:   batchID,
		Count:     count,
	}
	if err != nil {
		entry.Outcome = importlog.OutcomeFailed
		if verr, ok := importer.AsValidationError(err); ok {
			entry.Outcome = importlog.OutcomeRejected
			entry.Details = verr.Error()
		}
	}

	if lerr := importlog.Append(s.opts.ImportLog, []importlog.Entry{entry}); lerr != nil {
		log := logger.FromContext(c.UserContext())
		log.Error().Err(lerr).Str("path", s.opts.ImportLog).Msg("writing import log")
	}
}
