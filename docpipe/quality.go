package docpipe

import "unicode"

// Quality describes how much usable text the PDF carries. Scanned policies
// have no text layer and extract less reliably.
type Quality struct {
	CharsPerPage    float64 `json:"charsPerPage"`
	PrintableRatio  float64 `json:"printableRatio"`
	HasImageStreams bool    `json:"hasImageStreams"`
}

// Scanned reports whether the PDF is most likely an image-only scan.
func (q *Quality) Scanned() bool {
	return (q.CharsPerPage < 50 && q.HasImageStreams) || q.PrintableRatio < 0.85
}

// printableRatio returns the share of printable characters in text, treating
// private-use glyphs, U+FFFD and control characters as garbage.
func printableRatio(text string) float64 {
	total, printable := 0, 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	switch {
	case r >= 0xE000 && r <= 0xF8FF:
		return true
	case r == 0xFFFD:
		return true
	case r < 0x0020 && r != '\n' && r != '\r' && r != '\t':
		return true
	}
	return false
}
