package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/jsonapi"
	"github.com/a-h/pdfprocessor/models"
)

func New(baseURL, functionKey string) Client {
	return Client{
		baseURL:     baseURL,
		functionKey: functionKey,
	}
}

type Client struct {
	baseURL     string
	functionKey string
}

// ProcessPDF asks the server to analyze the PDF at pdfURL. Non-200 responses
// are returned as a jsonapi.InvalidStatusError carrying the plain text body.
func (c Client) ProcessPDF(ctx context.Context, pdfURL string) (resp models.ProcessPDFResponse, err error) {
	status, body, err := c.ProcessPDFRaw(ctx, pdfURL)
	if err != nil {
		return resp, err
	}
	if status != http.StatusOK {
		return resp, jsonapi.InvalidStatusError{
			Status: status,
			Body:   string(body),
		}
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return resp, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}

// ProcessPDFRaw returns the status code and body of the response without
// interpreting them.
func (c Client) ProcessPDFRaw(ctx context.Context, pdfURL string) (status int, body []byte, err error) {
	url, err := jsonapi.URL(c.baseURL).
		Path("api", "ProcessPDF").
		Query(map[string]string{"pdf_url": pdfURL}).
		String()
	if err != nil {
		return 0, nil, err
	}
	return c.do(ctx, http.MethodPost, url)
}

func (c Client) Health(ctx context.Context) (resp models.HealthResponse, err error) {
	url, err := jsonapi.URL(c.baseURL).Path("healthz").String()
	if err != nil {
		return resp, err
	}
	status, body, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return resp, err
	}
	if status != http.StatusOK {
		return resp, jsonapi.InvalidStatusError{
			Status: status,
			Body:   string(body),
		}
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return resp, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}

func (c Client) do(ctx context.Context, method, url string) (status int, body []byte, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.functionKey != "" {
		httpReq.Header.Set("x-functions-key", c.functionKey)
	}
	res, err := jsonapi.Raw(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer res.Body.Close()
	body, err = io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return res.StatusCode, body, nil
}
