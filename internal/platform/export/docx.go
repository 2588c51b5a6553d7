package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/labreport/labreport/internal/domain/labreport"
)

const abnormalColor = "C00000"

// Word renders r as a WordprocessingML document.
func Word(r *labreport.ParseResult) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	parts := []struct {
		name, body string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML},
		{"word/numbering.xml", numberingXML},
		{"word/document.xml", documentXML(r)},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("docx: create %s: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			return nil, fmt.Errorf("docx: write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("docx: close: %w", err)
	}
	return buf.Bytes(), nil
}

// run is one span of text with character formatting.
type run struct {
	text   string
	bold   bool
	italic bool
	color  string
	// half-points; 0 keeps the style size
	size int
}

func (r run) xml(b *strings.Builder) {
	b.WriteString("<w:r>")
	if r.bold || r.italic || r.color != "" || r.size > 0 {
		b.WriteString("<w:rPr>")
		if r.bold {
			b.WriteString("<w:b/>")
		}
		if r.italic {
			b.WriteString("<w:i/>")
		}
		if r.color != "" {
			b.WriteString(`<w:color w:val="` + r.color + `"/>`)
		}
		if r.size > 0 {
			fmt.Fprintf(b, `<w:sz w:val="%d"/>`, r.size)
		}
		b.WriteString("</w:rPr>")
	}
	b.WriteString(`<w:t xml:space="preserve">`)
	b.WriteString(escape(r.text))
	b.WriteString("</w:t></w:r>")
}

type paraOpts struct {
	style  string
	center bool
	bullet bool
}

func paragraph(b *strings.Builder, o paraOpts, runs ...run) {
	b.WriteString("<w:p>")
	if o.style != "" || o.center || o.bullet {
		b.WriteString("<w:pPr>")
		if o.style != "" {
			b.WriteString(`<w:pStyle w:val="` + o.style + `"/>`)
		}
		if o.bullet {
			b.WriteString(`<w:numPr><w:ilvl w:val="0"/><w:numId w:val="1"/></w:numPr>`)
		}
		if o.center {
			b.WriteString(`<w:jc w:val="center"/>`)
		}
		b.WriteString("</w:pPr>")
	}
	for _, r := range runs {
		r.xml(b)
	}
	b.WriteString("</w:p>")
}

func cell(b *strings.Builder, runs ...run) {
	b.WriteString(`<w:tc><w:tcPr><w:tcW w:w="4500" w:type="dxa"/></w:tcPr>`)
	paragraph(b, paraOpts{}, runs...)
	b.WriteString("</w:tc>")
}

func measurementTable(b *strings.Builder, ms []labreport.Measurement) {
	b.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/><w:tblW w:w="0" w:type="auto"/></w:tblPr>`)
	b.WriteString(`<w:tblGrid><w:gridCol w:w="4500"/><w:gridCol w:w="4500"/></w:tblGrid>`)

	b.WriteString("<w:tr>")
	cell(b, run{text: "Exame", bold: true})
	cell(b, run{text: "Resultado", bold: true})
	b.WriteString("</w:tr>")

	for _, m := range ms {
		value := run{text: m.Value}
		if m.IsAbnormal {
			value.bold = true
			value.color = abnormalColor
		}
		runs := []run{value}
		if m.IsCalculated {
			runs = append(runs, run{text: calculatedAs, italic: true, size: 18})
		}
		b.WriteString("<w:tr>")
		cell(b, run{text: m.Name})
		cell(b, runs...)
		b.WriteString("</w:tr>")
	}
	b.WriteString("</w:tbl>")
}

func documentXML(r *labreport.ParseResult) string {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	paragraph(&b, paraOpts{style: "Heading1", center: true}, run{text: WordTitle})
	paragraph(&b, paraOpts{})
	paragraph(&b, paraOpts{}, run{text: "Paciente: " + r.Meta.SubjectName})
	paragraph(&b, paraOpts{}, run{text: "Data da coleta: " + r.Meta.CollectionDate})
	paragraph(&b, paraOpts{})
	paragraph(&b, paraOpts{}, run{text: strings.Repeat("_", 80), bold: true})

	for _, c := range labreport.MeasurementCategories {
		ms := r.Measurements(c)
		if len(ms) == 0 {
			continue
		}
		paragraph(&b, paraOpts{style: "Heading2"}, run{text: c.Title()})
		measurementTable(&b, ms)
		paragraph(&b, paraOpts{})
	}

	if len(r.Imaging) > 0 {
		paragraph(&b, paraOpts{style: "Heading2"}, run{text: labreport.CategoryImaging.Title()})
		for _, f := range r.Imaging {
			paragraph(&b, paraOpts{style: "ListBullet", bullet: true},
				run{text: f.Name + ": ", bold: true},
				run{text: f.Value},
			)
		}
	}

	paragraph(&b, paraOpts{})
	paragraph(&b, paraOpts{center: true}, run{text: FooterNote})

	b.WriteString(`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/>` +
		`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/>` +
		`</w:sectPr></w:body></w:document>`)
	return b.String()
}

func escape(s string) string {
	var b bytes.Buffer
	// EscapeText only fails when the writer does.
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/word/numbering.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"/>` +
	`</Types>`

const rootRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const documentRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering" Target="numbering.xml"/>` +
	`</Relationships>`

const stylesXML = xml.Header + `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Arial" w:hAnsi="Arial" w:cs="Arial"/><w:sz w:val="22"/></w:rPr></w:rPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/>` +
	`<w:pPr><w:keepNext/><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/>` +
	`<w:pPr><w:keepNext/><w:spacing w:before="200" w:after="80"/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="ListBullet"><w:name w:val="List Bullet"/><w:basedOn w:val="Normal"/></w:style>` +
	`<w:style w:type="table" w:styleId="TableGrid"><w:name w:val="Table Grid"/><w:tblPr><w:tblBorders>` +
	`<w:top w:val="single" w:sz="4" w:space="0" w:color="auto"/><w:left w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`<w:bottom w:val="single" w:sz="4" w:space="0" w:color="auto"/><w:right w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`<w:insideH w:val="single" w:sz="4" w:space="0" w:color="auto"/><w:insideV w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`</w:tblBorders></w:tblPr></w:style>` +
	`</w:styles>`

const numberingXML = xml.Header + `<w:numbering xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:abstractNum w:abstractNumId="0"><w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="bullet"/>` +
	`<w:lvlText w:val="•"/><w:lvlJc w:val="left"/><w:pPr><w:ind w:left="720" w:hanging="360"/></w:pPr></w:lvl></w:abstractNum>` +
	`<w:num w:numId="1"><w:abstractNumId w:val="0"/></w:num>` +
	`</w:numbering>`
