package pdftext

import (
	"strings"
)

// DecodeContent returns the text drawn by the show-text operators (Tj, TJ, '
// and ") of a page content stream. Line moves become newlines. Only simple
// single-byte font encodings are rendered faithfully.
func DecodeContent(stream []byte) string {
	lx := lexer{src: stream}
	var (
		out      strings.Builder
		operands []token
	)
	newline := func() {
		s := out.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
	}

	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}
		switch tok.text {
		case "Tj":
			writeStrings(&out, operands)
		case "'", "\"":
			newline()
			writeStrings(&out, operands)
		case "TJ":
			writeArray(&out, operands)
		case "T*", "Td", "TD":
			newline()
		case "ET":
			newline()
		}
		operands = operands[:0]
	}
	return strings.TrimSpace(out.String())
}

func writeStrings(out *strings.Builder, operands []token) {
	for _, op := range operands {
		if op.kind == tokString {
			out.WriteString(op.text)
		}
	}
}

// writeArray renders a TJ array. Large negative kerning adjustments are
// word gaps in practice.
func writeArray(out *strings.Builder, operands []token) {
	for _, op := range operands {
		switch op.kind {
		case tokString:
			out.WriteString(op.text)
		case tokNumber:
			if op.num < -200 {
				out.WriteByte(' ')
			}
		}
	}
}
