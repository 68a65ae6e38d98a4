package schema

// convert.go turns user-entered cell values into typed values.
//
// Cells arrive from the browser as strings more often than not:
//   - Multiple date formats (US, EU, ISO, etc.)
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Spreadsheet paste artifacts (="value", surrounding quotes)
//
// Each Parse* function reports ok=false for empty or unparseable input.

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// DateLayout is the canonical form dates are stored in.
const DateLayout = "2006-01-02"

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
		time.RFC3339,
	}
)

// ParseDate parses a date in any supported layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
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

// ParseNumeric parses a number, accepting currency symbols, thousands
// separators and accounting format (parentheses for negative).
func ParseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}
	if !numericRegex.MatchString(s) {
		return 0, false
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseBool accepts true/false, yes/no, t/f, y/n, 1/0.
func ParseBool(s string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	}
	return false, false
}

// CleanCell removes common paste artifacts from a cell value:
// - Trims whitespace
// - Removes spreadsheet formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

// coerce converts a string value to the field type. Values that are not
// strings, are empty, or do not parse are returned unchanged so that
// validation can report them.
func coerce(t FieldType, v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = CleanCell(s)
	if s == "" {
		return s
	}
	switch t {
	case FieldNumeric:
		if n, ok := ParseNumeric(s); ok {
			return n
		}
	case FieldDate:
		if d, ok := ParseDate(s); ok {
			return d.Format(DateLayout)
		}
	case FieldBool:
		if b, ok := ParseBool(s); ok {
			return b
		}
	}
	return s
}

// conforms reports whether v already has the shape of the field type.
// Empty values conform; "required" covers them.
func conforms(t FieldType, v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		if strings.TrimSpace(val) == "" {
			return true
		}
		switch t {
		case FieldNumeric:
			_, ok := ParseNumeric(val)
			return ok
		case FieldDate:
			_, ok := ParseDate(val)
			return ok
		case FieldBool:
			_, ok := ParseBool(val)
			return ok
		}
		return true
	case bool:
		return t == FieldBool || t == FieldText || t == ""
	case int, int32, int64, float32, float64:
		return t == FieldNumeric || t == FieldText || t == ""
	case time.Time:
		return t == FieldDate || t == FieldText || t == ""
	}
	return t == FieldText || t == ""
}
