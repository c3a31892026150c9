package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/a-h/pdfprocessor/analysis"
	"github.com/a-h/pdfprocessor/analysis/azure"
	"github.com/a-h/pdfprocessor/analysis/local"
	"github.com/a-h/pdfprocessor/auth"
	healthget "github.com/a-h/pdfprocessor/handlers/health/get"
	"github.com/a-h/pdfprocessor/handlers/processpdf"
	"github.com/rs/cors"
)

type ServeCommand struct {
	Endpoint         string `help:"The Azure Document Intelligence endpoint." env:"FORM_RECOGNIZER_ENDPOINT" default:""`
	Key              string `help:"The Azure Document Intelligence key." env:"FORM_RECOGNIZER_KEY" default:""`
	Provider         string `help:"The analysis provider to use." env:"ANALYSIS_PROVIDER" enum:"azure,local" default:"azure"`
	Model            string `help:"The Document Intelligence model to analyze with." env:"ANALYZE_MODEL" default:"prebuilt-read"`
	APIVersion       string `help:"The Document Intelligence API version." env:"ANALYZE_API_VERSION" default:"2023-07-31"`
	ListenAddr       string `help:"The address to listen on." env:"LISTEN_ADDR" default:"localhost:7071"`
	TLSCertFile      string `help:"The TLS certificate file." env:"TLS_CERT_FILE" default:""`
	TLSKeyFile       string `help:"The TLS key file." env:"TLS_KEY_FILE" default:""`
	FunctionKeysFile string `help:"The file containing a JSON map of function keys to key names. If empty, no key is required." env:"FUNCTION_KEYS_FILE" default:""`
	LogLevel         string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func newAnalyzerFactory(provider, model, apiVersion string, httpClient *http.Client) processpdf.AnalyzerFactory {
	if provider == "local" {
		return func(endpoint, key string) analysis.Analyzer {
			return local.New(local.WithHTTPClient(httpClient))
		}
	}
	return func(endpoint, key string) analysis.Analyzer {
		return azure.New(endpoint, key,
			azure.WithModel(model),
			azure.WithAPIVersion(apiVersion),
			azure.WithHTTPClient(httpClient))
	}
}

func (c ServeCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	if c.Endpoint == "" || c.Key == "" {
		log.Warn("Azure Document Intelligence credentials not set, requests will fail until FORM_RECOGNIZER_ENDPOINT and FORM_RECOGNIZER_KEY are provided")
	}

	httpClient := &http.Client{}
	log.Info("creating analyzer", slog.String("provider", c.Provider), slog.String("model", c.Model), slog.String("apiVersion", c.APIVersion))
	pph := processpdf.New(log, processpdf.Config{
		Endpoint: c.Endpoint,
		Key:      c.Key,
	}, newAnalyzerFactory(c.Provider, c.Model, c.APIVersion, httpClient))

	var api http.Handler = pph
	if c.FunctionKeysFile != "" {
		log.Info("loading function keys", slog.String("file", c.FunctionKeysFile))
		keyToName, err := auth.LoadFromFile(c.FunctionKeysFile)
		if err != nil {
			return fmt.Errorf("failed to load function keys: %w", err)
		}
		api = auth.New(keyToName, pph)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/ProcessPDF", api)
	mux.Handle("POST /api/ProcessPDF", api)
	mux.Handle("GET /healthz", healthget.New())

	withCORSMux := cors.AllowAll().Handler(mux)

	log.Info("Listening", slog.String("addr", c.ListenAddr))
	s := &http.Server{
		Addr:    c.ListenAddr,
		Handler: withCORSMux,
	}
	if c.TLSCertFile != "" && c.TLSKeyFile != "" {
		log.Info("Enabling TLS mode")
		var cert tls.Certificate
		cert, err = tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load cert: %w", err)
		}
		s.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		return s.ListenAndServeTLS(c.TLSCertFile, c.TLSKeyFile)
	}
	return s.ListenAndServe()
}
