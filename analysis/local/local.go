// Package local analyzes PDF documents without a cloud provider. The text
// layer of the PDF is read directly, so scanned documents without embedded
// text produce empty pages.
package local

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/a-h/pdfprocessor/analysis"
	"github.com/ledongthuc/pdf"
	"github.com/tmc/langchaingo/documentloaders"
)

const pointsPerInch = 72

type Option func(*Analyzer)

func WithHTTPClient(hc *http.Client) Option {
	return func(a *Analyzer) {
		a.httpClient = hc
	}
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type Analyzer struct {
	httpClient *http.Client
}

var _ analysis.Analyzer = (*Analyzer)(nil)

func (a *Analyzer) AnalyzeDocument(ctx context.Context, url string) (result analysis.Result, err error) {
	f, size, err := a.download(ctx, url)
	if err != nil {
		return result, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	pages, err := readPages(ctx, f, size)
	if err != nil {
		return result, err
	}
	return buildResult(pages), nil
}

func (a *Analyzer) download(ctx context.Context, url string) (f *os.File, size int64, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("local: failed to create request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("local: failed to download file: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, 0, fmt.Errorf("local: download returned %d: %w", resp.StatusCode, analysis.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, 0, fmt.Errorf("local: download returned unexpected status %d", resp.StatusCode)
	}

	f, err = os.CreateTemp("", "pdfprocessor-*.pdf")
	if err != nil {
		return nil, 0, fmt.Errorf("local: failed to create temporary file: %w", err)
	}
	if size, err = io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, fmt.Errorf("local: failed to write file: %w", err)
	}
	return f, size, nil
}

type pageText struct {
	Number int
	Width  float64
	Height float64
	Text   string
}

func readPages(ctx context.Context, r io.ReaderAt, size int64) (pages []pageText, err error) {
	docs, err := documentloaders.NewPDF(r, size).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("local: failed to load PDF: %w", err)
	}
	pr, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("local: failed to read PDF: %w", err)
	}
	pages = make([]pageText, len(docs))
	for i, doc := range docs {
		number, ok := doc.Metadata["page"].(int)
		if !ok {
			number = i + 1
		}
		pages[i] = pageText{
			Number: number,
			Text:   doc.PageContent,
		}
		if number >= 1 && number <= pr.NumPage() {
			pages[i].Width, pages[i].Height = mediaBox(pr.Page(number))
		}
	}
	return pages, nil
}

// mediaBox returns the page size in inches. MediaBox may be inherited from
// an ancestor in the page tree.
func mediaBox(p pdf.Page) (width, height float64) {
	v := p.V
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			width = (box.Index(2).Float64() - box.Index(0).Float64()) / pointsPerInch
			height = (box.Index(3).Float64() - box.Index(1).Float64()) / pointsPerInch
			return width, height
		}
		v = v.Key("Parent")
	}
	return 0, 0
}

// buildResult joins every non-blank line of every page with newlines to form
// the document content. Span offsets and lengths count Unicode code points.
func buildResult(pages []pageText) (r analysis.Result) {
	var content strings.Builder
	var offset int
	r.Pages = make([]analysis.Page, len(pages))
	for i, p := range pages {
		r.Pages[i] = analysis.Page{
			PageNumber: p.Number,
			Width:      p.Width,
			Height:     p.Height,
			Unit:       "inch",
			Lines:      []analysis.Line{},
		}
		for _, text := range strings.Split(p.Text, "\n") {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			if content.Len() > 0 {
				content.WriteString("\n")
				offset++
			}
			length := utf8.RuneCountInString(text)
			r.Pages[i].Lines = append(r.Pages[i].Lines, analysis.Line{
				Content: text,
				Spans:   []analysis.Span{{Offset: offset, Length: length}},
			})
			content.WriteString(text)
			offset += length
		}
	}
	r.Content = content.String()
	return r
}
