package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

const (
	blockSelector  = "h1, h2, h3, h4, h5, h6, p, li, dt, dd, pre, blockquote"
	noiseSelector  = "script, style, noscript, template, svg, nav, footer, header, form, iframe, button"
	rootSelector   = "main, article, [role=main]"
	maxBlankInARow = 1
)

var htmlTagPattern = regexp.MustCompile(`(?i)<(html|body|div|p|br|li|ul|ol|h[1-6]|span|strong|b|em|table|tr|td)\b[^>]*>`)

// TruncateText cuts text to at most maxLen runes and reports whether it did.
func TruncateText(text string, maxLen int) (string, bool) {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return text, false
	}
	runes := []rune(text)
	return strings.TrimRightFunc(string(runes[:maxLen]), func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' }), true
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return cleanText(doc.Text())
}

// NormalizeJDText prepares pasted JD text for storage. HTML input is
// sanitized and flattened to one line per block; plain text only has its
// line endings and blank runs normalized.
func NormalizeJDText(raw string) string {
	raw = sanitizeUTF8(raw)
	if looksLikeHTML(raw) {
		_, text := parseHTMLDocument(raw)
		raw = text
	}
	text, _ := TruncateText(normalizeLines(raw), MaxJDChars)
	return text
}

func looksLikeHTML(s string) bool {
	return htmlTagPattern.MatchString(s)
}

// normalizeLines trims every line and keeps at most one blank line in a row.
func normalizeLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	out := make([]string, 0, 64)
	blank := 0
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.Join(strings.Fields(line), " "))
		if line == "" {
			blank++
			if blank > maxBlankInARow || len(out) == 0 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

// sanitizeHTML uses bluemonday to strip unsafe tags and attributes from HTML.
func sanitizeHTML(s string) string {
	p := bluemonday.UGCPolicy()
	return p.Sanitize(s)
}

// parseHTMLDocument returns the page title and the structured body text of
// an HTML job posting.
func parseHTMLDocument(htmlBody string) (string, string) {
	title := extractTitle(htmlBody)
	return title, buildStructuredExtractionText(sanitizeHTML(htmlBody))
}

func extractTitle(htmlBody string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return ""
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && cleanText(og) != "" {
		return cleanText(og)
	}
	if t := cleanText(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return cleanText(doc.Find("h1").First().Text())
}

// buildStructuredExtractionText keeps one line per heading, paragraph or
// list item, followed by table rows as "label: value | value". Pages built
// from bare divs fall back to the collapsed body text.
func buildStructuredExtractionText(htmlBody string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return HTMLToText(htmlBody)
	}
	doc.Find(noiseSelector).Remove()

	root := doc.Find(rootSelector).First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	lines := make([]string, 0, 64)
	root.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		if sel.Is("li") {
			item := sel.Clone()
			item.Find("ul, ol").Remove()
			if text := cleanText(item.Text()); text != "" {
				lines = append(lines, "- "+text)
			}
			return
		}
		if sel.ParentsFiltered("li").Length() > 0 || sel.Find(blockSelector).Length() > 0 {
			return
		}
		if text := cleanText(sel.Text()); text != "" {
			lines = append(lines, text)
		}
	})

	root.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := make([]string, 0, 4)
		row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			if value := cleanText(cell.Text()); value != "" {
				cells = append(cells, value)
			}
		})
		switch len(cells) {
		case 0:
		case 1:
			lines = append(lines, cells[0])
		default:
			lines = append(lines, cells[0]+": "+strings.Join(cells[1:], " | "))
		}
	})

	lines = mergeUniqueFold(nil, lines)
	structured := strings.Join(lines, "\n")
	bodyText := cleanText(root.Text())
	if len(structured) < len(bodyText)/2 {
		return bodyText
	}
	return structured
}
