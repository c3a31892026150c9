package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/a-h/pdfprocessor/client"
	"github.com/a-h/pdfprocessor/models"
)

type ProcessCommand struct {
	PDFURL      string `arg:"" name:"pdf-url" help:"The URL of the PDF to process."`
	ServerURL   string `help:"The URL of the PDF processor server." env:"PDF_PROCESSOR_URL" default:"http://localhost:7071"`
	FunctionKey string `help:"The function key for the PDF processor server." env:"FUNCTION_KEY" default:""`
	Format      string `help:"The output format." enum:"json,yaml" default:"json"`
	LogLevel    string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ProcessCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)
	log.Info("processing pdf", slog.String("server", c.ServerURL), slog.String("url", c.PDFURL))

	status, body, err := client.New(c.ServerURL, c.FunctionKey).ProcessPDFRaw(ctx, c.PDFURL)
	if err != nil {
		return fmt.Errorf("failed to process pdf: %w", err)
	}
	return printResponse(os.Stdout, c.Format, status, body)
}

func printResponse(w io.Writer, format string, status int, body []byte) error {
	fmt.Fprintf(w, "Status Code: %d\n", status)
	fmt.Fprintf(w, "Response Content: %s\n", body)

	var resp models.ProcessPDFResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		fmt.Fprintln(w, "Response is not in JSON format")
		fmt.Fprintln(w, string(body))
		return nil
	}
	return writeOutput(w, format, resp)
}
