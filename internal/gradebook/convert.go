package gradebook

// convert.go turns raw spreadsheet cells into typed values.
//
// Every conversion is soft: a cell that cannot be converted yields ok=false
// or an invalid pgtype value, never an error. Gradebook exports are messy
// (Excel formula prefixes, serial dates, stray quotes) and a single bad
// cell must not abort an upload.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex matches integers, decimals and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted. Years that
// would land more than this many years in the future belong to the previous
// century.
var TwoDigitYearPivot = 20

// excelEpoch is day zero of the 1900 date system as Excel counts it
// (including the phantom 1900-02-29).
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// maxExcelSerial is 9999-12-31.
const maxExcelSerial = 2958465

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
		"2-Jan-06", "02-Jan-06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "Jan 2 2006", "January 2, 2006", "January 2 2006",
		"2 Jan 2006", "2 January 2006", "2-Jan-2006", "02-Jan-2006",
		"Mon, Jan 2, 2006", "Monday, January 2, 2006",
		"2006-01-02 15:04:05", "2006-01-02T15:04:05", time.RFC3339,
		"1/2/2006 15:04", "1/2/2006 15:04:05", "1/2/2006 3:04:05 PM",
		"20060102",
	}
)

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, the Excel formula prefix (="...") and surrounding
// quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// ParseNumber parses a cell as a finite float.
func ParseNumber(s string) (float64, bool) {
	s = CleanCell(s)
	if s == "" || !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseScore parses a student score. Negative values are not scores.
func ParseScore(s string) (float64, bool) {
	f, ok := ParseNumber(s)
	if !ok || f < 0 {
		return 0, false
	}
	return f, true
}

// ParsePoints parses a max-points cell. Only positive values qualify.
func ParsePoints(s string) (float64, bool) {
	f, ok := ParseNumber(s)
	if !ok || f <= 0 {
		return 0, false
	}
	return f, true
}

// ParseDate converts a date-row cell to pgtype.Date.
//
// Written dates are tried against a list of common layouts; 2-digit years
// use TwoDigitYearPivot. A purely numeric cell is read as an Excel serial
// day. Results that are epoch artifacts (see IsEpochArtifact) are returned
// as invalid.
func ParseDate(s string) pgtype.Date {
	s = CleanCell(s)
	if s == "" {
		return pgtype.Date{}
	}

	t, ok := parseDateTime(s)
	if !ok || IsEpochArtifact(t) {
		return pgtype.Date{}
	}
	return pgtype.Date{
		Time:  time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
		Valid: true,
	}
}

func parseDateTime(s string) (time.Time, bool) {
	if numericRegex.MatchString(s) && !looksLikeCompactDate(s) {
		return fromExcelSerial(s)
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// looksLikeCompactDate reports whether s is an 8-digit YYYYMMDD value
// rather than a serial day count.
func looksLikeCompactDate(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s[0] == '1' || s[0] == '2'
}

func fromExcelSerial(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > maxExcelSerial {
		return time.Time{}, false
	}
	return excelEpoch.AddDate(0, 0, int(math.Floor(f))), true
}

// IsEpochArtifact reports whether t is a zero value produced by a blank or
// zero numeric cell being read as a timestamp: the Unix epoch, Excel day 0
// and 1, or Go's zero time.
func IsEpochArtifact(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	y, m, d := t.Date()
	switch {
	case y == 1970 && m == time.January && d == 1:
		return true
	case y == 1899 && m == time.December && (d == 30 || d == 31):
		return true
	case y == 1 && m == time.January && d == 1:
		return true
	}
	return false
}

// NormalizeEmail lowercases and trims an email cell.
func NormalizeEmail(s string) string {
	return strings.ToLower(CleanCell(s))
}

// DefaultMissingPlaceholders are cell values that spreadsheet tools write
// for an absent value.
var DefaultMissingPlaceholders = []string{"nan", "none", "null", "n/a", "#n/a"}

// IsMissing reports whether a normalized cell is empty or one of the given
// placeholders (compared case-insensitively).
func IsMissing(s string, placeholders []string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return true
	}
	for _, p := range placeholders {
		if s == strings.ToLower(p) {
			return true
		}
	}
	return false
}

// FormatDate renders a date as YYYY-MM-DD, or "" when it is not set.
func FormatDate(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format("2006-01-02")
}

// SameDate reports whether two optional dates fall in the same identity
// bucket: both unset, or both set to the same calendar day.
func SameDate(a, b pgtype.Date) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || FormatDate(a) == FormatDate(b)
}
