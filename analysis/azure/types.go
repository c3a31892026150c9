package azure

import "github.com/a-h/pdfprocessor/analysis"

const (
	statusNotStarted = "notStarted"
	statusRunning    = "running"
	statusSucceeded  = "succeeded"
	statusFailed     = "failed"
	statusCanceled   = "canceled"
)

type analyzeRequest struct {
	URLSource string `json:"urlSource"`
}

type operation struct {
	Status        string         `json:"status"`
	AnalyzeResult *analyzeResult `json:"analyzeResult,omitempty"`
	Error         *errorBody     `json:"error,omitempty"`
}

type errorResponse struct {
	Error *errorBody `json:"error"`
}

type errorBody struct {
	Code       string     `json:"code"`
	Message    string     `json:"message"`
	InnerError *errorBody `json:"innererror,omitempty"`
}

func (eb *errorBody) toError(statusCode int) *Error {
	e := &Error{
		StatusCode: statusCode,
		Code:       eb.Code,
		Message:    eb.Message,
	}
	if eb.InnerError != nil {
		e.InnerCode = eb.InnerError.Code
	}
	return e
}

type analyzeResult struct {
	APIVersion      string `json:"apiVersion"`
	ModelID         string `json:"modelId"`
	StringIndexType string `json:"stringIndexType"`
	Content         string `json:"content"`
	Pages           []page `json:"pages"`
}

type page struct {
	PageNumber int     `json:"pageNumber"`
	Angle      float64 `json:"angle"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Unit       string  `json:"unit"`
	Lines      []line  `json:"lines"`
}

type line struct {
	Content string    `json:"content"`
	Polygon []float64 `json:"polygon"`
	Spans   []span    `json:"spans"`
}

type span struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

func (ar analyzeResult) toResult() (r analysis.Result) {
	r.Content = ar.Content
	r.Pages = make([]analysis.Page, len(ar.Pages))
	for i, p := range ar.Pages {
		lines := make([]analysis.Line, len(p.Lines))
		for j, l := range p.Lines {
			spans := make([]analysis.Span, len(l.Spans))
			for k, s := range l.Spans {
				spans[k] = analysis.Span{Offset: s.Offset, Length: s.Length}
			}
			lines[j] = analysis.Line{Content: l.Content, Spans: spans}
		}
		r.Pages[i] = analysis.Page{
			PageNumber: p.PageNumber,
			Width:      p.Width,
			Height:     p.Height,
			Unit:       p.Unit,
			Lines:      lines,
		}
	}
	return r
}
