package processpdf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/a-h/pdfprocessor/analysis"
	"github.com/a-h/pdfprocessor/auth"
	"github.com/a-h/pdfprocessor/models"
	"github.com/google/uuid"
)

const (
	missingParameterMessage     = "Missing pdf_url parameter"
	configurationMissingMessage = "Azure Document Intelligence credentials not found"
	notFoundMessage             = "The PDF file could not be found or accessed."
	unexpectedFailurePrefix     = "An error occurred: "
)

var (
	ErrMissingParameter     = errors.New("processpdf: missing pdf_url parameter")
	ErrConfigurationMissing = errors.New("processpdf: analysis credentials not configured")
)

// Config holds the credentials of the document analysis provider.
type Config struct {
	Endpoint string
	Key      string
}

// AnalyzerFactory creates an Analyzer for a single invocation.
type AnalyzerFactory func(endpoint, key string) analysis.Analyzer

func New(log *slog.Logger, config Config, newAnalyzer AnalyzerFactory) Handler {
	return Handler{
		log:         log,
		config:      config,
		newAnalyzer: newAnalyzer,
	}
}

type Handler struct {
	log         *slog.Logger
	config      Config
	newAnalyzer AnalyzerFactory
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("invocationId", uuid.NewString()))
	if name, ok := auth.GetKeyName(r); ok {
		log = log.With(slog.String("functionKey", name))
	}
	log.Info("process pdf called", slog.String("method", r.Method))

	resp, err := h.process(r.Context(), log, r.URL.Query().Get("pdf_url"))
	switch {
	case err == nil:
	case errors.Is(err, ErrMissingParameter):
		log.Warn("missing pdf_url parameter")
		writeText(w, missingParameterMessage, http.StatusBadRequest)
		return
	case errors.Is(err, ErrConfigurationMissing):
		log.Error("analysis credentials not found")
		writeText(w, configurationMissingMessage, http.StatusInternalServerError)
		return
	case errors.Is(err, analysis.ErrNotFound):
		log.Error("the pdf file could not be found or accessed", slog.Any("error", err))
		writeText(w, notFoundMessage, http.StatusNotFound)
		return
	default:
		log.Error("an error occurred", slog.Any("error", err))
		writeText(w, unexpectedFailurePrefix+err.Error(), http.StatusInternalServerError)
		return
	}

	body, err := encodeJSON(resp)
	if err != nil {
		log.Error("failed to encode response", slog.Any("error", err))
		writeText(w, unexpectedFailurePrefix+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h Handler) process(ctx context.Context, log *slog.Logger, pdfURL string) (resp models.ProcessPDFResponse, err error) {
	if pdfURL == "" {
		return resp, ErrMissingParameter
	}
	if h.config.Endpoint == "" || h.config.Key == "" {
		return resp, ErrConfigurationMissing
	}

	analyzer := h.newAnalyzer(h.config.Endpoint, h.config.Key)
	result, err := analyzer.AnalyzeDocument(ctx, pdfURL)
	if err != nil {
		return resp, err
	}
	log.Info("analysis result", slog.String("url", pdfURL), slog.Int("pages", len(result.Pages)), slog.Int("contentLength", len(result.Content)))
	log.Debug("analysis result", slog.Any("result", result))

	return models.NewProcessPDFResponse(result), nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func writeText(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	io.WriteString(w, msg)
}
