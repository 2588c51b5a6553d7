// Package export renders parse results as downloadable reports.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/labreport/labreport/internal/domain/labreport"
)

const (
	TextTitle    = "RELATÓRIO DE EXAMES"
	WordTitle    = "RELATÓRIO DE EXAMES MÉDICOS"
	FooterNote   = "Relatório gerado automaticamente pelo Processador de Exames Médicos"
	calculatedAs = " (calculado)"
)

// Format is a supported export format.
type Format string

const (
	FormatText Format = "txt"
	FormatWord Format = "docx"
)

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatWord {
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "text/plain; charset=utf-8"
}

// ParseFormat accepts the query-string spelling of a format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "txt", "text":
		return FormatText, nil
	case "docx", "word":
		return FormatWord, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// FileName builds relatorio_exame_<dd-mm-yyyy>.<ext>. An empty date yields
// relatorio_exame.<ext>.
func FileName(collectionDate string, f Format) string {
	if collectionDate == "" {
		return "relatorio_exame." + string(f)
	}
	return "relatorio_exame_" + strings.ReplaceAll(collectionDate, "/", "-") + "." + string(f)
}

// Render dispatches to Text or Word.
func Render(r *labreport.ParseResult, f Format) ([]byte, error) {
	if f == FormatWord {
		return Word(r)
	}
	return Text(r), nil
}

// Text renders r as a plain-text report. Abnormal entries are marked with
// '*' and calculated ones are tagged.
func Text(r *labreport.ParseResult) []byte {
	var b bytes.Buffer
	b.WriteString(TextTitle + "\n\n")
	fmt.Fprintf(&b, "Paciente: %s\n", r.Meta.SubjectName)
	fmt.Fprintf(&b, "Data: %s\n", r.Meta.CollectionDate)

	for _, c := range labreport.MeasurementCategories {
		ms := r.Measurements(c)
		if len(ms) == 0 {
			continue
		}
		writeHeading(&b, c.Title())
		for _, m := range ms {
			b.WriteString(marker(m.IsAbnormal))
			b.WriteString(m.Name + ": " + m.Value)
			if m.IsCalculated {
				b.WriteString(calculatedAs)
			}
			if m.Reference != "" {
				b.WriteString(" [Referência: " + m.Reference + "]")
			}
			b.WriteByte('\n')
		}
	}

	if len(r.Imaging) > 0 {
		writeHeading(&b, labreport.CategoryImaging.Title())
		for _, f := range r.Imaging {
			b.WriteString(marker(f.IsAbnormal()) + f.Name + ": " + f.Value + "\n")
		}
	}

	b.WriteString("\n" + FooterNote + "\n")
	return b.Bytes()
}

func writeHeading(b *bytes.Buffer, title string) {
	b.WriteString("\n" + title + "\n")
	b.WriteString(strings.Repeat("-", len([]rune(title))) + "\n")
}

func marker(abnormal bool) string {
	if abnormal {
		return "* "
	}
	return "  "
}
