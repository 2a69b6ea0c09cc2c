package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/cesargomez89/flixetl/internal/constants"
)

// IsNull reports whether a raw field is the \N sentinel or blank.
func IsNull(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == constants.NullSentinel
}

// NullString maps null fields to nil.
func NullString(s string) *string {
	if IsNull(s) {
		return nil
	}
	v := strings.TrimSpace(s)
	return &v
}

// ParseNullInt parses an integer field. Null and non-numeric values yield nil.
// Integral floats such as "81004276.0" are accepted.
func ParseNullInt(s string) *int64 {
	if IsNull(s) {
		return nil
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	n := int64(f)
	return &n
}

// ParseNullFloat parses a decimal field. Null and non-numeric values yield nil.
func ParseNullFloat(s string) *float64 {
	if IsNull(s) {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// FormatNullInt renders an optional integer back into artifact form.
func FormatNullInt(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

// FormatNullFloat renders an optional decimal back into artifact form.
func FormatNullFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// truncate keeps the first n bytes, used to reduce dates to their year.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
