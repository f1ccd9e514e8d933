package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	reDMY    = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4})$`)
	reISO    = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ].*)?$`)
	reDigits = regexp.MustCompile(`\d+`)
)

// cleanText trims and collapses internal whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanPlate upper-cases a license plate and drops spaces and dashes.
func cleanPlate(s string) string {
	s = strings.ToUpper(s)
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '\t' {
			return -1
		}
		return r
	}, s)
}

// NormalizeDate converts the date spellings seen in policies to YYYY-MM-DD.
// Text that is not a recognizable date is returned cleaned but unchanged, so
// that validation can flag it.
func NormalizeDate(s string) string {
	s = cleanText(s)
	if s == "" {
		return ""
	}
	if m := reISO.FindStringSubmatch(s); m != nil {
		if d, ok := mkDate(m[1], m[2], m[3]); ok {
			return d
		}
	}
	if m := reDMY.FindStringSubmatch(s); m != nil {
		if d, ok := mkDate(m[3], m[2], m[1]); ok {
			return d
		}
	}
	return s
}

func mkDate(y, m, d string) (string, bool) {
	yi, _ := strconv.Atoi(y)
	mi, _ := strconv.Atoi(m)
	di, _ := strconv.Atoi(d)
	t := time.Date(yi, time.Month(mi), di, 0, 0, 0, 0, time.UTC)
	if t.Year() != yi || int(t.Month()) != mi || t.Day() != di {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

// ParseAmount reads a money amount written with either decimal convention
// ("1.234,56" or "1,234.56") and any currency marker, rounded to cents.
// Anything unparseable yields 0.
func ParseAmount(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		} else if r == '-' && b.Len() == 0 {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" || clean == "-" {
		return 0
	}

	lastDot := strings.LastIndex(clean, ".")
	lastComma := strings.LastIndex(clean, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		clean = resolveSingleSeparator(clean, ",")
	case lastDot >= 0:
		clean = resolveSingleSeparator(clean, ".")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0
	}
	return d.Round(2).InexactFloat64()
}

// resolveSingleSeparator decides whether sep is a thousands separator or the
// decimal point when it is the only separator present. Repeated, or followed
// by exactly three digits after a non-zero integer part, means thousands.
func resolveSingleSeparator(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	i := strings.Index(s, sep)
	intPart := strings.TrimPrefix(s[:i], "-")
	if len(s)-i-1 == 3 && intPart != "" && intPart != "0" {
		return strings.Replace(s, sep, "", 1)
	}
	return strings.Replace(s, sep, ".", 1)
}

// parseNumberLiteral reads a JSON number literal exactly.
func parseNumberLiteral(raw string) float64 {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0
	}
	return d.Round(2).InexactFloat64()
}

// parseInt takes the first run of digits, so "12 cuotas" reads as 12.
func parseInt(s string) int {
	m := reDigits.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}
