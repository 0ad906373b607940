package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/training"
)

// DocumentRequest is the request body for POST /api/v1/documents
type DocumentRequest struct {
	Text         string `json:"text"`
	DocumentType string `json:"document_type,omitempty"`
}

// CorrectionRequest is the request body for POST /api/v1/corrections.
// SourceText is optional when the document was processed by this server.
type CorrectionRequest struct {
	Original     model.ExtractionResult `json:"original"`
	Corrected    model.Correction       `json:"corrected"`
	DocumentType string                 `json:"document_type,omitempty"`
	SourceText   string                 `json:"source_text,omitempty"`
}

// RulesResponse is the response body for GET /api/v1/rules
type RulesResponse struct {
	Fingerprint string              `json:"fingerprint"`
	Version     int64               `json:"version"`
	Rules       []model.PatternRule `json:"rules"`
}

// HealthResponse is the response body for GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Rules  int    `json:"rules"`
}

// ErrorResponse is returned for any failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Rules: s.pipeline.Bank().Len()})
}

// handleDocument extracts a structured result. An unrecognised document_type is not
// an error: the run reports a degraded_hint signal and classifies as UNKNOWN.
func (s *Server) handleDocument(c echo.Context) error {
	var req DocumentRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid document request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	run := s.pipeline.Process(req.Text, model.DocumentType(req.DocumentType))
	return c.JSON(http.StatusOK, run)
}

func (s *Server) handleCorrection(c echo.Context) error {
	var req CorrectionRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid correction request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	docType := model.DocTypeUnknown
	if req.DocumentType != "" {
		t, err := model.ParseDocumentType(req.DocumentType)
		if err != nil {
			return err
		}
		docType = t
	}

	var opts []training.Option
	if req.SourceText != "" {
		text, _ := s.pipeline.Normalize(req.SourceText)
		opts = append(opts, training.WithSourceText(text))
	}
	rec, err := s.pipeline.TrainWithCorrection(c.Request().Context(), req.Original, req.Corrected, docType, opts...)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleEffectiveness(c echo.Context) error {
	rep, err := s.pipeline.Report(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (s *Server) handleRules(c echo.Context) error {
	bank := s.pipeline.Bank()
	return c.JSON(http.StatusOK, RulesResponse{
		Fingerprint: bank.Fingerprint(),
		Version:     bank.Version(),
		Rules:       s.pipeline.Rules(),
	})
}
