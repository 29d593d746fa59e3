package textlayer

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ExtractLines returns the text shown by a PDF content stream, one line per
// string operand in stream order. Strings inside a TJ array form one line.
func ExtractLines(content string) []string {
	var (
		lines   []string
		array   strings.Builder
		inArray bool
	)
	emit := func(s string) {
		if inArray {
			array.WriteString(s)
			return
		}
		if s = strings.TrimSpace(s); s != "" {
			lines = append(lines, s)
		}
	}

	for i := 0; i < len(content); {
		switch ch := content[i]; {
		case ch == '%':
			// comment until end of line
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case ch == '(':
			str, end := extractPDFString(content, i)
			if end <= i {
				i++
				continue
			}
			emit(decodePDFString(str))
			i = end
		case ch == '<' && i+1 < len(content) && content[i+1] == '<':
			i += 2
		case ch == '<':
			end := strings.IndexByte(content[i:], '>')
			if end < 0 {
				return lines
			}
			emit(decodeHexString(content[i+1 : i+end]))
			i += end + 1
		case ch == '[':
			inArray = true
			array.Reset()
			i++
		case ch == ']':
			if inArray {
				inArray = false
				emit(array.String())
			}
			i++
		default:
			i++
		}
	}
	return lines
}

// extractPDFString extracts a single parenthesized string starting at start.
// It returns the string content without the outer parentheses and the index
// after the closing one. Escapes are kept for decodePDFString.
func extractPDFString(content string, start int) (string, int) {
	if start >= len(content) || content[start] != '(' {
		return "", start
	}

	var result strings.Builder
	depth := 0
	for i := start; i < len(content); i++ {
		ch := content[i]
		switch {
		case ch == '\\' && i+1 < len(content):
			result.WriteByte(ch)
			result.WriteByte(content[i+1])
			i++
		case ch == '(':
			depth++
			if depth > 1 {
				result.WriteByte(ch)
			}
		case ch == ')':
			depth--
			if depth == 0 {
				return result.String(), i + 1
			}
			result.WriteByte(ch)
		default:
			result.WriteByte(ch)
		}
	}
	return result.String(), len(content)
}

// decodePDFString resolves the escape sequences of a literal string. Bytes
// that are not valid UTF-8 are read as Windows-1254, the code page of
// Turkish PDFs.
func decodePDFString(s string) string {
	var raw []byte
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			raw = append(raw, s[i])
			continue
		}
		i++
		switch c := s[i]; c {
		case 'n':
			raw = append(raw, '\n')
		case 'r':
			raw = append(raw, '\r')
		case 't':
			raw = append(raw, '\t')
		case 'b':
			raw = append(raw, '\b')
		case 'f':
			raw = append(raw, '\f')
		case '\n', '\r':
			// line continuation
		default:
			if c >= '0' && c <= '7' {
				j := i
				for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
					j++
				}
				if v, err := strconv.ParseUint(s[i:j], 8, 8); err == nil {
					raw = append(raw, byte(v))
				}
				i = j - 1
				continue
			}
			raw = append(raw, c)
		}
	}
	return decodeBytes(raw)
}

// decodeHexString decodes a hex string operand. UTF-16BE is recognized by its
// byte order mark or by mostly zero high bytes.
func decodeHexString(hex string) string {
	hex = strings.Join(strings.Fields(hex), "")
	if len(hex)%2 != 0 {
		hex += "0"
	}

	data := make([]byte, 0, len(hex)/2)
	for i := 0; i+1 < len(hex); i += 2 {
		v, err := strconv.ParseUint(hex[i:i+2], 16, 8)
		if err != nil {
			continue
		}
		data = append(data, byte(v))
	}

	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		return decodeUTF16BE(data[2:])
	}
	if isLikelyUTF16BE(data) {
		return decodeUTF16BE(data)
	}

	printable := data[:0]
	for _, b := range data {
		if b >= 32 {
			printable = append(printable, b)
		}
	}
	return decodeBytes(printable)
}

func decodeBytes(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.Windows1254.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// isLikelyUTF16BE reports whether at least half of the high bytes are zero,
// as they are for Latin text in UTF-16BE.
func isLikelyUTF16BE(data []byte) bool {
	if len(data) < 4 || len(data)%2 != 0 {
		return false
	}
	zero := 0
	for i := 0; i < len(data); i += 2 {
		if data[i] == 0 {
			zero++
		}
	}
	return zero*2 >= len(data)/2
}

func decodeUTF16BE(data []byte) string {
	if len(data)%2 != 0 {
		data = append(data, 0)
	}
	u16 := make([]uint16, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		u16[i/2] = uint16(data[i])<<8 | uint16(data[i+1])
	}

	var b strings.Builder
	for _, r := range utf16.Decode(u16) {
		if r >= 32 || r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
