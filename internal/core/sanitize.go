package core

import (
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// CellPlaceholder replaces characters a spreadsheet cell cannot hold.
const CellPlaceholder = "?"

// SanitizeCell makes s safe to store in a workbook cell. Characters outside
// the XML 1.0 character range (control characters other than tab, LF and CR,
// U+FFFE, U+FFFF, invalid UTF-8) become CellPlaceholder, and text longer
// than the cell limit is cut to the limit. changed reports whether either
// rule applied.
func SanitizeCell(s string) (clean string, changed bool) {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, CellPlaceholder)
		changed = true
	}

	if strings.IndexFunc(s, isIllegalXMLRune) >= 0 {
		s = strings.Map(func(r rune) rune {
			if isIllegalXMLRune(r) {
				return '?'
			}
			return r
		}, s)
		changed = true
	}

	if utf8.RuneCountInString(s) > excelize.TotalCellChars {
		s = string([]rune(s)[:excelize.TotalCellChars])
		changed = true
	}

	return s, changed
}

func isIllegalXMLRune(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return false
	case r < 0x20:
		return true
	case r >= 0xD800 && r <= 0xDFFF:
		return true
	case r == 0xFFFE, r == 0xFFFF:
		return true
	default:
		return false
	}
}
