package charts

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"2006-01",
}

// ToFloat converts a database value to a finite number. NaN and infinities,
// including their spelled-out string forms, are not numbers here.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, finite(x)
	case float32:
		return float64(x), finite(float64(x))
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil && finite(f)
	case []byte:
		return ToFloat(string(x))
	default:
		return 0, false
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ToTime converts a time value or a date-like string.
func ToTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	case []byte:
		return ToTime(string(x))
	}
	return time.Time{}, false
}

// Label renders a value for an axis or a summary.
func Label(v any) string {
	switch x := v.(type) {
	case nil:
		return "(null)"
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04")
	case float64:
		return FormatNumber(x)
	case float32:
		return FormatNumber(float64(x))
	default:
		return fmt.Sprint(x)
	}
}

// PeriodLabel names the period of a date-like value: "Mar 2024" for a month
// (a first-of-month date or a "2024-03" string), the plain label otherwise.
func PeriodLabel(v any) string {
	if _, isNum := ToFloat(v); isNum {
		return Label(v)
	}
	t, ok := ToTime(v)
	if !ok {
		return Label(v)
	}
	if t.Day() == 1 && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return MonthNames[t.Month()-1] + " " + strconv.Itoa(t.Year())
	}
	return Label(t)
}

// FormatNumber prints integers without a fraction and everything else with two decimals.
func FormatNumber(f float64) string {
	if f == float64(int64(f)) && f < 1e15 && f > -1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// Floats converts every value, failing on the first non-numeric non-null one.
// Nulls are skipped.
func Floats(column string, values []any) ([]float64, error) {
	out := make([]float64, 0, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		f, ok := ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("column %q has a non-numeric value %q at row %d", column, Label(v), i)
		}
		out = append(out, f)
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Series pairs each label with its numeric value. Rows whose value is null
// are skipped.
func Series(column string, labels, values []any) ([]string, []float64, error) {
	outL := make([]string, 0, len(values))
	outV := make([]float64, 0, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		f, ok := ToFloat(v)
		if !ok {
			return nil, nil, fmt.Errorf("column %q has a non-numeric value %q at row %d", column, Label(v), i)
		}
		outL = append(outL, Label(labels[i]))
		outV = append(outV, f)
	}
	return outL, outV, nil
}
