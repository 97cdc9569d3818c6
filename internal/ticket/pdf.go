package ticket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Renderer writes a document in its output format.
type Renderer interface {
	Render(w io.Writer, doc *Document) error
}

// A4 portrait in points.
const (
	pageHeight   = 842.0
	marginLeft   = 50.0
	marginTop    = 60.0
	lineHeight   = 16.0
	linesPerPage = 45
)

type pdfFont struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type pdfText struct {
	Value string     `json:"value"`
	Pos   [2]float64 `json:"pos"`
	Font  pdfFont    `json:"font"`
}

type pdfContent struct {
	Text []pdfText `json:"text,omitempty"`
}

type pdfPage struct {
	Content pdfContent `json:"content"`
}

type pdfLayout struct {
	Paper string             `json:"paper"`
	Pages map[string]pdfPage `json:"pages"`
}

// PDFRenderer lays a document out with the standard PDF fonts.
type PDFRenderer struct {
	conf *model.Configuration
}

func NewPDFRenderer() *PDFRenderer {
	api.DisableConfigDir()
	return &PDFRenderer{conf: model.NewDefaultConfiguration()}
}

func (r *PDFRenderer) Render(w io.Writer, doc *Document) error {
	layout, err := json.Marshal(pdfPages(doc))
	if err != nil {
		return fmt.Errorf("failed to encode page layout: %w", err)
	}
	if err := api.Create(nil, bytes.NewReader(layout), w, r.conf); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}

func pdfPages(doc *Document) pdfLayout {
	lines := append([]Line{{Text: doc.Title, Style: StyleTitle}, {}}, doc.Lines...)

	layout := pdfLayout{Paper: "A4", Pages: map[string]pdfPage{}}
	for i, l := range lines {
		page := strconv.Itoa(i/linesPerPage + 1)
		row := i % linesPerPage
		if l.Text == "" {
			if _, ok := layout.Pages[page]; !ok {
				layout.Pages[page] = pdfPage{}
			}
			continue
		}
		p := layout.Pages[page]
		p.Content.Text = append(p.Content.Text, pdfText{
			Value: pdfSafe(l.Text),
			Pos:   [2]float64{marginLeft, pageHeight - marginTop - float64(row)*lineHeight},
			Font:  fontFor(l.Style),
		})
		layout.Pages[page] = p
	}
	return layout
}

func fontFor(s Style) pdfFont {
	switch s {
	case StyleTitle:
		return pdfFont{Name: "Helvetica-Bold", Size: 18}
	case StyleHeading:
		return pdfFont{Name: "Helvetica-Bold", Size: 12}
	case StyleFooter:
		return pdfFont{Name: "Helvetica-Oblique", Size: 9}
	default:
		return pdfFont{Name: "Helvetica", Size: 11}
	}
}

// pdfSafe keeps text within the WinAnsi range of the standard fonts.
func pdfSafe(s string) string {
	s = strings.ReplaceAll(s, "→", "->")
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '?'
		}
		return r
	}, s)
}
