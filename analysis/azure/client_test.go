package azure

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a-h/pdfprocessor/analysis"
	"github.com/google/go-cmp/cmp"
)

const testKey = "test-key"

const succeededOperation = `{
  "status": "succeeded",
  "analyzeResult": {
    "apiVersion": "2023-07-31",
    "modelId": "prebuilt-read",
    "stringIndexType": "unicodeCodePoint",
    "content": "Hello world\nPage two",
    "pages": [
      {
        "pageNumber": 1,
        "angle": 0,
        "width": 8.5,
        "height": 11,
        "unit": "inch",
        "lines": [
          {
            "content": "Hello world",
            "polygon": [0.1, 0.1, 1.2, 0.1, 1.2, 0.3, 0.1, 0.3],
            "spans": [{"offset": 0, "length": 5}, {"offset": 6, "length": 5}]
          }
        ]
      },
      {
        "pageNumber": 2,
        "width": 8.5,
        "height": 11,
        "unit": "inch",
        "lines": [
          {
            "content": "Page two",
            "spans": [{"offset": 12, "length": 8}]
          }
        ]
      }
    ]
  }
}`

type fakeService struct {
	t            *testing.T
	server       *httptest.Server
	submitStatus int
	submitBody   string
	polls        []string
	pollStatus   int
	pollCount    atomic.Int32
	urlSource    string
	omitLocation bool
}

func newFakeService(t *testing.T) *fakeService {
	fs := &fakeService{
		t:            t,
		submitStatus: http.StatusAccepted,
	}
	fs.server = httptest.NewServer(http.HandlerFunc(fs.ServeHTTP))
	t.Cleanup(fs.server.Close)
	return fs
}

func (fs *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Ocp-Apim-Subscription-Key") != testKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "pdfprocessor/") {
		fs.t.Errorf("unexpected user agent %q", ua)
	}
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/formrecognizer/documentModels/prebuilt-read:analyze":
		if got := r.URL.Query().Get("api-version"); got != DefaultAPIVersion {
			fs.t.Errorf("expected api-version %q, got %q", DefaultAPIVersion, got)
		}
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			fs.t.Errorf("failed to decode analyze request: %v", err)
		}
		fs.urlSource = req.URLSource
		if fs.submitStatus != http.StatusAccepted {
			w.WriteHeader(fs.submitStatus)
			w.Write([]byte(fs.submitBody))
			return
		}
		if !fs.omitLocation {
			w.Header().Set("Operation-Location", fs.server.URL+"/formrecognizer/documentModels/prebuilt-read/analyzeResults/abc?api-version="+DefaultAPIVersion)
		}
		w.WriteHeader(http.StatusAccepted)
	case r.Method == http.MethodGet && r.URL.Path == "/formrecognizer/documentModels/prebuilt-read/analyzeResults/abc":
		i := int(fs.pollCount.Add(1)) - 1
		if i >= len(fs.polls) {
			i = len(fs.polls) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		if fs.pollStatus != 0 {
			w.WriteHeader(fs.pollStatus)
		}
		w.Write([]byte(fs.polls[i]))
	default:
		fs.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func (fs *fakeService) client() *Client {
	return New(fs.server.URL+"/", testKey, WithPollInterval(time.Millisecond))
}

func TestAnalyzeDocument(t *testing.T) {
	fs := newFakeService(t)
	fs.polls = []string{
		`{"status": "notStarted"}`,
		`{"status": "running"}`,
		succeededOperation,
	}

	result, err := fs.client().AnalyzeDocument(context.Background(), "https://example.com/doc.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.urlSource != "https://example.com/doc.pdf" {
		t.Errorf("expected urlSource to be sent, got %q", fs.urlSource)
	}
	if n := fs.pollCount.Load(); n != 3 {
		t.Errorf("expected 3 polls, got %d", n)
	}
	expected := analysis.Result{
		Content: "Hello world\nPage two",
		Pages: []analysis.Page{
			{
				PageNumber: 1,
				Width:      8.5,
				Height:     11,
				Unit:       "inch",
				Lines: []analysis.Line{
					{Content: "Hello world", Spans: []analysis.Span{{Offset: 0, Length: 5}, {Offset: 6, Length: 5}}},
				},
			},
			{
				PageNumber: 2,
				Width:      8.5,
				Height:     11,
				Unit:       "inch",
				Lines: []analysis.Line{
					{Content: "Page two", Spans: []analysis.Span{{Offset: 12, Length: 8}}},
				},
			},
		},
	}
	if diff := cmp.Diff(expected, result); diff != "" {
		t.Error(diff)
	}
}

func TestAnalyzeDocumentErrors(t *testing.T) {
	tests := []struct {
		name           string
		setup          func(fs *fakeService)
		expectNotFound bool
		expectContains string
	}{
		{
			name: "a 404 on submit is not found",
			setup: func(fs *fakeService) {
				fs.submitStatus = http.StatusNotFound
				fs.submitBody = `{"error": {"code": "NotFound", "message": "Resource not found."}}`
			},
			expectNotFound: true,
			expectContains: "(NotFound) Resource not found.",
		},
		{
			name: "a 400 on submit is a generic failure",
			setup: func(fs *fakeService) {
				fs.submitStatus = http.StatusBadRequest
				fs.submitBody = `{"error": {"code": "InvalidRequest", "message": "Invalid request.", "innererror": {"code": "InvalidContent", "message": "The file is corrupted."}}}`
			},
			expectContains: "(InvalidRequest) Invalid request. Inner error: InvalidContent",
		},
		{
			name: "non-JSON error bodies are used as the message",
			setup: func(fs *fakeService) {
				fs.submitStatus = http.StatusInternalServerError
				fs.submitBody = "upstream exploded"
			},
			expectContains: "(500) upstream exploded",
		},
		{
			name: "a missing Operation-Location header is an error",
			setup: func(fs *fakeService) {
				fs.omitLocation = true
			},
			expectContains: "Operation-Location",
		},
		{
			name: "a failed operation returns the operation error",
			setup: func(fs *fakeService) {
				fs.polls = []string{`{"status": "failed", "error": {"code": "InternalServerError", "message": "An unexpected error occurred."}}`}
			},
			expectContains: "(InternalServerError) An unexpected error occurred.",
		},
		{
			name: "a failed operation with a NotFound code is not found",
			setup: func(fs *fakeService) {
				fs.polls = []string{`{"status": "failed", "error": {"code": "NotFound", "message": "Missing."}}`}
			},
			expectNotFound: true,
		},
		{
			name: "a 404 while fetching the operation is not a missing document",
			setup: func(fs *fakeService) {
				fs.pollStatus = http.StatusNotFound
				fs.polls = []string{`{"error": {"code": "NotFound", "message": "Operation not found."}}`}
			},
			expectNotFound: false,
			expectContains: "(NotFound) Operation not found.",
		},
		{
			name: "unknown statuses are errors",
			setup: func(fs *fakeService) {
				fs.polls = []string{`{"status": "sideways"}`}
			},
			expectContains: `unexpected operation status "sideways"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeService(t)
			fs.polls = []string{succeededOperation}
			tt.setup(fs)

			_, err := fs.client().AnalyzeDocument(context.Background(), "https://example.com/doc.pdf")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if errors.Is(err, analysis.ErrNotFound) != tt.expectNotFound {
				t.Errorf("expected not found to be %v, got error %v", tt.expectNotFound, err)
			}
			if !strings.Contains(err.Error(), tt.expectContains) {
				t.Errorf("expected error to contain %q, got %q", tt.expectContains, err.Error())
			}
		})
	}
}

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type failingReader struct {
	err error
}

func (r failingReader) Read(p []byte) (int, error) {
	return 0, r.err
}

func TestAnalyzeDocumentReportsUnreadableErrorBodies(t *testing.T) {
	errRead := errors.New("connection reset")
	hc := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Header:     http.Header{},
				Body:       io.NopCloser(failingReader{err: errRead}),
				Request:    req,
			}, nil
		}),
	}
	c := New("https://example.cognitiveservices.azure.com", testKey, WithHTTPClient(hc))

	_, err := c.AnalyzeDocument(context.Background(), "https://example.com/doc.pdf")
	if !errors.Is(err, errRead) {
		t.Fatalf("expected the read error to be wrapped, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("expected the status in the error, got %q", err.Error())
	}
}

func TestAnalyzeDocumentStopsPollingWhenContextIsDone(t *testing.T) {
	fs := newFakeService(t)
	fs.polls = []string{`{"status": "running"}`}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := fs.client().AnalyzeDocument(ctx, "https://example.com/doc.pdf")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestAnalyzeURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		opts     []Option
		expected string
	}{
		{
			name:     "trailing slashes are removed",
			endpoint: "https://example.cognitiveservices.azure.com/",
			expected: "https://example.cognitiveservices.azure.com/formrecognizer/documentModels/prebuilt-read:analyze?api-version=2023-07-31&stringIndexType=unicodeCodePoint",
		},
		{
			name:     "model and version can be overridden",
			endpoint: "https://example.cognitiveservices.azure.com",
			opts:     []Option{WithModel("prebuilt-layout"), WithAPIVersion("2024-11-30")},
			expected: "https://example.cognitiveservices.azure.com/formrecognizer/documentModels/prebuilt-layout:analyze?api-version=2024-11-30&stringIndexType=unicodeCodePoint",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := New(tt.endpoint, testKey, tt.opts...).analyzeURL()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if actual != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, actual)
			}
		})
	}
}

func TestAnalyzeURLRequiresScheme(t *testing.T) {
	_, err := New("example.cognitiveservices.azure.com", testKey).analyzeURL()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
