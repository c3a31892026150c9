package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/a-h/pdfprocessor/models"
)

type AnalyzeCommand struct {
	PDFURL     string `arg:"" name:"pdf-url" help:"The URL of the PDF to analyze."`
	Local      bool   `help:"Extract the text layer locally instead of calling Azure Document Intelligence." default:"false"`
	Endpoint   string `help:"The Azure Document Intelligence endpoint." env:"FORM_RECOGNIZER_ENDPOINT" default:""`
	Key        string `help:"The Azure Document Intelligence key." env:"FORM_RECOGNIZER_KEY" default:""`
	Model      string `help:"The Document Intelligence model to analyze with." env:"ANALYZE_MODEL" default:"prebuilt-read"`
	APIVersion string `help:"The Document Intelligence API version." env:"ANALYZE_API_VERSION" default:"2023-07-31"`
	Format     string `help:"The output format." enum:"json,yaml" default:"json"`
	LogLevel   string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c AnalyzeCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	provider := "azure"
	if c.Local {
		provider = "local"
	} else if c.Endpoint == "" || c.Key == "" {
		return errors.New("document intelligence credentials not found, set FORM_RECOGNIZER_ENDPOINT and FORM_RECOGNIZER_KEY or use --local")
	}

	log.Info("analyzing document", slog.String("provider", provider), slog.String("url", c.PDFURL))
	analyzer := newAnalyzerFactory(provider, c.Model, c.APIVersion, &http.Client{})(c.Endpoint, c.Key)
	result, err := analyzer.AnalyzeDocument(ctx, c.PDFURL)
	if err != nil {
		return fmt.Errorf("failed to analyze document: %w", err)
	}
	log.Debug("analysis result", slog.Any("result", result))

	return writeOutput(os.Stdout, c.Format, models.NewProcessPDFResponse(result))
}
