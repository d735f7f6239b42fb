// Package exporter renders a final summary as plain text and PDF.
package exporter

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/xhad/digest/internal/models"
	"github.com/xhad/digest/internal/types"
	"golang.org/x/text/encoding/charmap"
)

const (
	MIMEText = "text/plain"
	MIMEPDF  = "application/pdf"

	fileStamp   = "20060102_150405"
	footerStamp = "2006-01-02 15:04:05"
)

type ExporterConfig struct {
	Title      string
	FontFamily string
	// Now stamps summaries that carry no generation time.
	Now func() time.Time
}

type Exporter struct {
	config ExporterConfig
}

var _ types.Exporter = (*Exporter)(nil)

// Artifacts holds both renderings of one summary. A PDF failure leaves Text
// intact and is reported in PDFErr.
type Artifacts struct {
	Text     []byte
	PDF      []byte
	PDFErr   error
	TextName string
	PDFName  string
}

func NewWithConfig(config ExporterConfig) *Exporter {
	if config.Title == "" {
		config.Title = "Detailed Content Summary"
	}
	if config.FontFamily == "" {
		config.FontFamily = "Arial"
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Exporter{config: config}
}

func New() *Exporter {
	return NewWithConfig(ExporterConfig{})
}

// FileName returns detailed_summary_<YYYYMMDD_HHMMSS>.<ext>.
func FileName(ext string, t time.Time) string {
	return fmt.Sprintf("detailed_summary_%s.%s", t.Format(fileStamp), ext)
}

func (e *Exporter) PlainText(summary models.FinalSummary) []byte {
	return []byte(summary.Text)
}

// PDF lays the summary out on A4 pages with the core font. Runes the core
// font cannot encode are printed as '?'.
func (e *Exporter) PDF(summary models.FinalSummary) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &types.ExportError{Format: "pdf", Err: fmt.Errorf("renderer panic: %v", r)}
		}
	}()

	generated := summary.GeneratedAt
	if generated.IsZero() {
		generated = e.config.Now()
	}
	family := e.config.FontFamily

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 25)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-20)
		pdf.SetFont(family, "I", 8)
		pdf.CellFormat(0, 5, "Generated on: "+generated.Format(footerStamp), "", 1, "L", false, 0, "")
		if summary.SourceURL != "" {
			pdf.CellFormat(0, 5, toWinANSI("Source: "+summary.SourceURL), "", 1, "L", false, 0, "")
		}
	})
	pdf.AddPage()

	pdf.SetFont(family, "B", 16)
	pdf.CellFormat(0, 10, toWinANSI(e.config.Title), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont(family, "", 12)
	pdf.MultiCell(0, 6, toWinANSI(summary.Text), "", "L", false)

	if err := pdf.Error(); err != nil {
		return nil, &types.ExportError{Format: "pdf", Err: err}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &types.ExportError{Format: "pdf", Err: err}
	}
	return buf.Bytes(), nil
}

// Export renders both formats. The text rendering never depends on the PDF
// one succeeding.
func (e *Exporter) Export(summary models.FinalSummary) Artifacts {
	generated := summary.GeneratedAt
	if generated.IsZero() {
		generated = e.config.Now()
	}

	a := Artifacts{
		Text:     e.PlainText(summary),
		TextName: FileName("txt", generated),
		PDFName:  FileName("pdf", generated),
	}
	a.PDF, a.PDFErr = e.PDF(summary)
	if a.PDFErr != nil {
		log.Printf("exporter: pdf rendering failed: %v", a.PDFErr)
	}
	return a
}

// WriteFiles writes the text file and, when it rendered, the PDF into dir.
// It returns the paths written and the PDF error, if any.
func (e *Exporter) WriteFiles(dir string, summary models.FinalSummary) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.ExportError{Format: "txt", Err: fmt.Errorf("failed to create output directory: %w", err)}
	}

	a := e.Export(summary)

	var written []string
	textPath := filepath.Join(dir, a.TextName)
	if err := os.WriteFile(textPath, a.Text, 0o644); err != nil {
		return nil, &types.ExportError{Format: "txt", Err: err}
	}
	written = append(written, textPath)

	if a.PDFErr != nil {
		return written, a.PDFErr
	}
	pdfPath := filepath.Join(dir, a.PDFName)
	if err := os.WriteFile(pdfPath, a.PDF, 0o644); err != nil {
		return written, &types.ExportError{Format: "pdf", Err: err}
	}
	return append(written, pdfPath), nil
}

func toWinANSI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		c, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			c = '?'
		}
		b.WriteByte(c)
	}
	return b.String()
}
