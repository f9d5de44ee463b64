package reader

import (
	"bytes"
	"encoding/hex"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// literalEscapes maps the single-character escapes of a literal string.
var literalEscapes = map[byte]byte{
	'n': '\n', 'r': '\r', 't': '\t', 'b': '\b', 'f': '\f',
	'(': '(', ')': ')', '\\': '\\',
}

func isOctal(b byte) bool { return b >= '0' && b <= '7' }

// unescapeLiteral resolves the backslash escapes of a literal string body,
// the text between the outer parentheses. Escaped end-of-line markers join
// lines; up to three octal digits give one byte.
func unescapeLiteral(s string) []byte {
	var out bytes.Buffer
	out.Grow(len(s))
	for rest := s; rest != ""; {
		i := strings.IndexByte(rest, '\\')
		if i < 0 || i == len(rest)-1 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:i])
		esc, tail := rest[i+1], rest[i+2:]

		switch {
		case literalEscapes[esc] != 0:
			out.WriteByte(literalEscapes[esc])
		case esc == '\r':
			tail = strings.TrimPrefix(tail, "\n")
		case esc == '\n':
		case isOctal(esc):
			v, n := int(esc-'0'), 0
			for ; n < 2 && n < len(tail) && isOctal(tail[n]); n++ {
				v = v<<3 | int(tail[n]-'0')
			}
			out.WriteByte(byte(v))
			tail = tail[n:]
		default:
			out.WriteByte(esc)
		}
		rest = tail
	}
	return out.Bytes()
}

// unhexLiteral decodes a hex string body. Whitespace is ignored and an odd
// final digit is read as if followed by 0.
func unhexLiteral(s string) []byte {
	digits := strings.Map(func(r rune) rune {
		if strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return r
		}
		return -1
	}, s)
	if len(digits)%2 == 1 {
		digits += "0"
	}
	out, _ := hex.DecodeString(digits)
	return out
}

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

// decodePDFString turns string bytes into text: UTF-16BE when they start
// with the FE FF mark, Latin-1 otherwise.
func decodePDFString(data []byte) string {
	if bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		if len(data)%2 == 1 {
			data = append(data[:len(data):len(data)], 0)
		}
		if text, err := utf16BE.NewDecoder().Bytes(data); err == nil {
			return string(text)
		}
	}
	text, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
	return string(text)
}
