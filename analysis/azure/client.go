package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/jsonapi"
	"github.com/a-h/pdfprocessor"
	"github.com/a-h/pdfprocessor/analysis"
)

const (
	DefaultModel        = "prebuilt-read"
	DefaultAPIVersion   = "2023-07-31"
	DefaultPollInterval = time.Second
)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func WithAPIVersion(version string) Option {
	return func(c *Client) {
		if version != "" {
			c.apiVersion = version
		}
	}
}

// WithPollInterval sets the delay between operation status checks when the
// service does not send a Retry-After header.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// New creates a client for the Azure Document Intelligence REST API.
func New(endpoint, key string, opts ...Option) *Client {
	c := &Client{
		endpoint:     strings.TrimSuffix(endpoint, "/"),
		key:          key,
		model:        DefaultModel,
		apiVersion:   DefaultAPIVersion,
		pollInterval: DefaultPollInterval,
		httpClient:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Client struct {
	endpoint     string
	key          string
	model        string
	apiVersion   string
	pollInterval time.Duration
	httpClient   *http.Client
}

var _ analysis.Analyzer = (*Client)(nil)

// AnalyzeDocument starts an analysis of the document at url and blocks until
// the operation completes, fails, or ctx is done.
func (c *Client) AnalyzeDocument(ctx context.Context, url string) (result analysis.Result, err error) {
	operationURL, err := c.begin(ctx, url)
	if err != nil {
		return result, err
	}
	op, err := c.wait(ctx, operationURL)
	if err != nil {
		return result, err
	}
	if op.AnalyzeResult == nil {
		return result, fmt.Errorf("azure: operation succeeded without an analyze result")
	}
	return op.AnalyzeResult.toResult(), nil
}

func (c *Client) analyzeURL() (string, error) {
	return jsonapi.URL(c.endpoint).
		Path("formrecognizer", "documentModels", c.model+":analyze").
		Query(map[string]string{
			"api-version":     c.apiVersion,
			"stringIndexType": "unicodeCodePoint",
		}).
		String()
}

func (c *Client) begin(ctx context.Context, documentURL string) (operationURL string, err error) {
	u, err := c.analyzeURL()
	if err != nil {
		return "", fmt.Errorf("azure: invalid endpoint: %w", err)
	}
	body, err := json.Marshal(analyzeRequest{URLSource: documentURL})
	if err != nil {
		return "", fmt.Errorf("azure: failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("azure: failed to create request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return "", readError(resp)
	}
	operationURL = resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", fmt.Errorf("azure: analyze response is missing the Operation-Location header")
	}
	return operationURL, nil
}

func (c *Client) wait(ctx context.Context, operationURL string) (op operation, err error) {
	for {
		var retryAfter time.Duration
		op, retryAfter, err = c.poll(ctx, operationURL)
		if err != nil {
			return op, err
		}
		switch op.Status {
		case statusSucceeded:
			return op, nil
		case statusFailed, statusCanceled:
			if op.Error == nil {
				return op, &Error{Code: op.Status, Message: "analyze operation " + op.Status}
			}
			return op, op.Error.toError(0)
		case statusNotStarted, statusRunning:
		default:
			return op, fmt.Errorf("azure: unexpected operation status %q", op.Status)
		}
		select {
		case <-ctx.Done():
			return op, ctx.Err()
		case <-time.After(retryAfter):
		}
	}
}

func (c *Client) poll(ctx context.Context, operationURL string) (op operation, retryAfter time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return op, 0, fmt.Errorf("azure: failed to create request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return op, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err = readError(resp)
		var e *Error
		if errors.As(err, &e) {
			e.operation = true
		}
		return op, 0, err
	}
	if err = json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return op, 0, fmt.Errorf("azure: failed to decode operation: %w", err)
	}
	return op, c.retryAfter(resp.Header), nil
}

func (c *Client) retryAfter(h http.Header) time.Duration {
	seconds, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return c.pollInterval
	}
	return time.Duration(seconds) * time.Second
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := jsonapi.Raw(req,
		jsonapi.WithClient(c.httpClient),
		jsonapi.WithRequestHeader("Ocp-Apim-Subscription-Key", c.key),
		jsonapi.WithRequestHeader("User-Agent", "pdfprocessor/"+pdfprocessor.Version))
	if err != nil {
		return nil, fmt.Errorf("azure: %s %s failed: %w", req.Method, req.URL.Path, err)
	}
	return resp, nil
}

// Error is returned when the service rejects a request or reports a failed
// analysis. Errors with a 404 status or NotFound code match analysis.ErrNotFound,
// except when the operation status itself could not be fetched.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	InnerCode  string

	// operation is set when the error came from fetching the operation status.
	operation bool
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(e.Code)
	sb.WriteString(") ")
	sb.WriteString(e.Message)
	if e.InnerCode != "" {
		sb.WriteString(" Inner error: ")
		sb.WriteString(e.InnerCode)
	}
	return sb.String()
}

func (e *Error) Is(target error) bool {
	if target != analysis.ErrNotFound || e.operation {
		return false
	}
	return e.StatusCode == http.StatusNotFound || e.Code == "NotFound" || e.InnerCode == "NotFound"
}

func readError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("azure: failed to read error response with status %d: %w", resp.StatusCode, err)
	}
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != nil {
		return er.Error.toError(resp.StatusCode)
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{
		StatusCode: resp.StatusCode,
		Code:       strconv.Itoa(resp.StatusCode),
		Message:    msg,
	}
}
