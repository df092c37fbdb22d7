package pdftext

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokName
	tokOperator
	tokOther
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

// lexer tokenises a content stream. Array brackets are dropped so TJ sees its
// elements as plain operands; dictionaries and inline images are skipped.
type lexer struct {
	src []byte
	pos int
}

func isWhite(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isWhite(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
				l.pos++
			}
		case c == '[' || c == ']':
			l.pos++
		case c == '(':
			return token{kind: tokString, text: l.literal()}, true
		case c == '<':
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '<' {
				l.pos += 2
				continue
			}
			return token{kind: tokString, text: l.hex()}, true
		case c == '>':
			l.pos++
		case c == '/':
			l.pos++
			return token{kind: tokName, text: l.word()}, true
		default:
			w := l.word()
			if w == "" {
				l.pos++
				continue
			}
			if n, err := strconv.ParseFloat(w, 64); err == nil {
				return token{kind: tokNumber, text: w, num: n}, true
			}
			if w == "BI" {
				l.skipInlineImage()
				continue
			}
			return token{kind: tokOperator, text: w}, true
		}
	}
	return token{}, false
}

func (l *lexer) word() string {
	start := l.pos
	for l.pos < len(l.src) && !isWhite(l.src[l.pos]) && !isDelim(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

// literal reads a (string) with nested parentheses and escapes.
func (l *lexer) literal() string {
	l.pos++ // (
	var sb strings.Builder
	depth := 1
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch c {
		case '\\':
			if l.pos >= len(l.src) {
				return decodeBytes(sb.String())
			}
			e := l.src[l.pos]
			l.pos++
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case '\r':
				if l.pos < len(l.src) && l.src[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '7'; i++ {
						v = v*8 + int(l.src[l.pos]-'0')
						l.pos++
					}
					sb.WriteByte(byte(v))
				} else {
					sb.WriteByte(e)
				}
			}
		case '(':
			depth++
			sb.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return decodeBytes(sb.String())
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return decodeBytes(sb.String())
}

// hex reads a <hex string>.
func (l *lexer) hex() string {
	l.pos++ // <
	var digits []byte
	for l.pos < len(l.src) && l.src[l.pos] != '>' {
		c := l.src[l.pos]
		if !isWhite(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	raw := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		raw = append(raw, byte(v))
	}
	return decodeBytes(string(raw))
}

func (l *lexer) skipInlineImage() {
	idx := strings.Index(string(l.src[l.pos:]), "EI")
	if idx < 0 {
		l.pos = len(l.src)
		return
	}
	l.pos += idx + 2
}

// decodeBytes maps single-byte text to UTF-8. UTF-16BE strings with a byte
// order mark are decoded as such; everything else is read as Latin-1, which
// matches WinAnsi for the accented letters Portuguese needs.
func decodeBytes(s string) string {
	b := []byte(s)
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		var sb strings.Builder
		for i := 2; i+1 < len(b); i += 2 {
			sb.WriteRune(rune(b[i])<<8 | rune(b[i+1]))
		}
		return sb.String()
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
