package ingest

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	rpdf "rsc.io/pdf"
)

var pdfMagic = []byte("%PDF-")

func isPDF(contentType string, body []byte) bool {
	return strings.Contains(strings.ToLower(contentType), "application/pdf") || bytes.HasPrefix(body, pdfMagic)
}

// extractPDFText rebuilds text lines from positioned glyphs. A change in
// baseline starts a new line; a horizontal gap inserts a space.
func extractPDFText(content []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		glyphs := page.Content().Text
		if zeroAdvance(glyphs) {
			builder.WriteString(showTextOperands(page.V.Key("Contents")))
			builder.WriteString("\n\n")
			continue
		}

		first := true
		var prevY, prevEnd float64
		for _, glyph := range glyphs {
			if !first {
				lineGap := math.Max(glyph.FontSize*0.5, 1)
				switch {
				case math.Abs(glyph.Y-prevY) > lineGap:
					builder.WriteString("\n")
				case glyph.X-prevEnd > glyph.FontSize*0.2:
					builder.WriteString(" ")
				}
			}
			builder.WriteString(glyph.S)
			prevY = glyph.Y
			prevEnd = glyph.X + glyph.W
			first = false
		}
		builder.WriteString("\n\n")
	}

	return builder.String(), nil
}

// zeroAdvance reports whether every glyph on the page has no width. Base-14
// fonts without a /Widths array come back this way, with all glyphs stacked
// at the same X and word spaces dropped.
func zeroAdvance(glyphs []rpdf.Text) bool {
	if len(glyphs) == 0 {
		return false
	}
	for _, glyph := range glyphs {
		if glyph.W != 0 {
			return false
		}
	}
	return true
}

// kernSpace is the TJ adjustment, in thousandths of an em, treated as a word gap.
const kernSpace = -200

// showTextOperands reads the strings passed to the text-showing operators of
// a content stream. Positioning operators start a new line.
func showTextOperands(contents rpdf.Value) string {
	var builder strings.Builder
	var line strings.Builder

	flush := func() {
		if text := strings.TrimSpace(line.String()); text != "" {
			builder.WriteString(text)
			builder.WriteString("\n")
		}
		line.Reset()
	}

	streams := []rpdf.Value{contents}
	if contents.Kind() == rpdf.Array {
		streams = streams[:0]
		for i := 0; i < contents.Len(); i++ {
			streams = append(streams, contents.Index(i))
		}
	}

	do := func(stk *rpdf.Stack, op string) {
		n := stk.Len()
		args := make([]rpdf.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		case "Tj", "'", "\"":
			if op != "Tj" {
				flush()
			}
			if n > 0 {
				line.WriteString(latin1(args[n-1].RawString()))
			}
		case "TJ":
			if n == 0 {
				return
			}
			arr := args[n-1]
			for i := 0; i < arr.Len(); i++ {
				item := arr.Index(i)
				if item.Kind() == rpdf.String {
					line.WriteString(latin1(item.RawString()))
				} else if item.Float64() <= kernSpace {
					line.WriteString(" ")
				}
			}
		case "Td", "TD", "T*", "Tm", "ET":
			flush()
		}
	}
	for _, strm := range streams {
		rpdf.Interpret(strm, do)
	}
	flush()

	return builder.String()
}

func latin1(raw string) string {
	runes := make([]rune, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		runes = append(runes, rune(raw[i]))
	}
	return string(runes)
}
