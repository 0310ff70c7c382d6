package parser

import (
	"archive/zip"
	"fmt"
	"html"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/lu4p/cat"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const docxParaEnd = "</w:p>"

var (
	// <w:t>text</w:t> or <w:t xml:space="preserve">text</w:t>
	wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

	// <a:t>text</a:t> inside slide XML
	atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

	slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

func defaultBackends() map[string]Backend {
	return map[string]Backend{
		".pdf":      parsePDF,
		".docx":     parseDOCX,
		".pptx":     parsePPTX,
		".xlsx":     parseSpreadsheet,
		".xlsm":     parseSpreadsheet,
		".md":       parseMarkdown,
		".markdown": parseMarkdown,
		".html":     parseHTML,
		".htm":      parseHTML,
		".odt":      parseCat,
		".rtf":      parseCat,
		".txt":      parsePlain,
	}
}

// one fragment per page
func parsePDF(filePath string) (Result, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var pages Fragments
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		pages = append(pages, Text{Text: pageText})
	}
	return pages, nil
}

// one fragment per paragraph; runs inside a paragraph are concatenated
func parseDOCX(filePath string) (Result, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var paragraphs Fragments
	for _, para := range strings.Split(content, docxParaEnd) {
		var b strings.Builder
		for _, m := range wtTag.FindAllStringSubmatch(para, -1) {
			b.WriteString(m[1])
		}
		if t := strings.TrimSpace(html.UnescapeString(b.String())); t != "" {
			paragraphs = append(paragraphs, Text{Text: t})
		}
	}
	return paragraphs, nil
}

// one fragment per slide, in slide order
func parsePPTX(filePath string) (Result, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range f.File {
		m := slideName.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var result Fragments
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", s.file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", s.file.Name, err)
		}
		var parts []string
		for _, m := range atTag.FindAllStringSubmatch(string(data), -1) {
			if t := strings.TrimSpace(m[1]); t != "" {
				parts = append(parts, html.UnescapeString(t))
			}
		}
		if len(parts) > 0 {
			result = append(result, Text{Text: strings.Join(parts, " ")})
		}
	}
	return result, nil
}

// parseSpreadsheet reads workbooks with excelize and falls back to tealeg/xlsx
// for files excelize refuses to open.
func parseSpreadsheet(filePath string) (Result, error) {
	result, err := parseExcelize(filePath)
	if err == nil {
		return result, nil
	}
	log.Warn().Err(err).Str("file", filePath).Msg("excelize could not open workbook, retrying with xlsx")

	result, fallbackErr := parseXLSX(filePath)
	if fallbackErr != nil {
		return nil, fmt.Errorf("failed to open workbook: %v; fallback: %w", err, fallbackErr)
	}
	return result, nil
}

func parseExcelize(filePath string) (Result, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sheets Fragments
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
		}
		var b strings.Builder
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
		sheets = append(sheets, sheetResult(sheetName, b.String()))
	}
	return sheets, nil
}

func parseXLSX(filePath string) (Result, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var sheets Fragments
	for _, sheet := range f.Sheets {
		var b strings.Builder
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			b.WriteString(strings.Join(cells, "\t"))
			b.WriteByte('\n')
		}
		sheets = append(sheets, sheetResult(sheet.Name, b.String()))
	}
	return sheets, nil
}

func sheetResult(name, body string) KeyedText {
	body = strings.TrimSpace(body)
	if body == "" {
		return KeyedText{"sheet": name}
	}
	return KeyedText{"sheet": name, textKey: fmt.Sprintf("## Sheet: %s\n%s", name, body)}
}

func parseMarkdown(filePath string) (Result, error) {
	source, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	var title string
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && b.Len() > 0 {
				endBlock(&b, n.Parent() != nil && n.Parent().Kind() == ast.KindDocument)
			}
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			if title == "" && v.Level == 1 {
				title = inlineText(v, source)
			}
		case *ast.Text:
			b.Write(textValue(v, source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.Label(source))
		case *ast.FencedCodeBlock:
			writeLines(&b, v.Lines(), source)
		case *ast.CodeBlock:
			writeLines(&b, v.Lines(), source)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return KeyedText{"title": title, textKey: strings.TrimSpace(b.String())}, nil
}

// endBlock terminates a block with a newline, or a blank line for top-level blocks.
func endBlock(b *strings.Builder, topLevel bool) {
	s := b.String()
	if !strings.HasSuffix(s, "\n") {
		b.WriteByte('\n')
		s += "\n"
	}
	if topLevel && !strings.HasSuffix(s, "\n\n") {
		b.WriteByte('\n')
	}
}

func writeLines(b *strings.Builder, lines *text.Segments, source []byte) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
}

// textValue resolves entities and backslash escapes. Code span text is raw and kept verbatim.
func textValue(t *ast.Text, source []byte) []byte {
	v := t.Segment.Value(source)
	if t.IsRaw() {
		return v
	}
	return util.UnescapePunctuations(util.ResolveNumericReferences(util.ResolveEntityNames(v)))
}

func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			b.Write(textValue(v, source))
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.Label(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func parseHTML(filePath string) (Result, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}
	article, err := readability.FromReader(f, &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)})
	if err != nil {
		return nil, err
	}
	return KeyedText{
		"title": strings.TrimSpace(article.Title),
		textKey: strings.TrimSpace(article.TextContent),
	}, nil
}

// .odt and .rtf
func parseCat(filePath string) (Result, error) {
	content, err := cat.File(filePath)
	if err != nil {
		return nil, err
	}
	return Text{Text: content}, nil
}

func parsePlain(filePath string) (Result, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return Text{Text: strings.ToValidUTF8(string(data), "�")}, nil
}
