package models

import "github.com/a-h/pdfprocessor/analysis"

// ProcessPDFResponse is the JSON document returned for a successful analysis.
// It mirrors the provider result: pages, lines and spans keep their order.
type ProcessPDFResponse struct {
	Content string `json:"content" yaml:"content"`
	Pages   []Page `json:"pages" yaml:"pages"`
}

type Page struct {
	PageNumber int     `json:"page_number" yaml:"page_number"`
	Width      float64 `json:"width" yaml:"width"`
	Height     float64 `json:"height" yaml:"height"`
	Lines      []Line  `json:"lines" yaml:"lines"`
}

type Line struct {
	Content string `json:"content" yaml:"content"`
	Spans   []Span `json:"spans" yaml:"spans"`
}

type Span struct {
	Offset int `json:"offset" yaml:"offset"`
	Length int `json:"length" yaml:"length"`
}

func NewProcessPDFResponse(r analysis.Result) (resp ProcessPDFResponse) {
	resp.Content = r.Content
	resp.Pages = make([]Page, len(r.Pages))
	for i, p := range r.Pages {
		lines := make([]Line, len(p.Lines))
		for j, l := range p.Lines {
			spans := make([]Span, len(l.Spans))
			for k, s := range l.Spans {
				spans[k] = Span{Offset: s.Offset, Length: s.Length}
			}
			lines[j] = Line{Content: l.Content, Spans: spans}
		}
		resp.Pages[i] = Page{
			PageNumber: p.PageNumber,
			Width:      p.Width,
			Height:     p.Height,
			Lines:      lines,
		}
	}
	return resp
}
