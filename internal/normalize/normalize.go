// Package normalize implements the canonicalization rules applied to gap
// report values before they are persisted into snapshot tables.
package normalize

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// UPC canonicalizes a UPC-like value to a digit-only string.
//
// Spreadsheet and numeric round-tripping upstream produces artifacts like
// "850017944176.0"; those break cross-week joins, which key on exact string
// equality. Accepts string, integer, and float inputs. Returns ok=false for
// empty or non-normalizable values; callers persist those as NULL rather
// than aborting the batch.
func UPC(value any) (string, bool) {
	if value == nil {
		return "", false
	}

	var s string
	switch v := value.(type) {
	case string:
		s = strings.TrimSpace(v)
	case *string:
		if v == nil {
			return "", false
		}
		s = strings.TrimSpace(*v)
	case int:
		s = fmt.Sprintf("%d", v)
	case int32:
		s = fmt.Sprintf("%d", v)
	case int64:
		s = fmt.Sprintf("%d", v)
	case float32:
		return floatUPC(float64(v))
	case float64:
		return floatUPC(v)
	default:
		s = strings.TrimSpace(fmt.Sprint(v))
	}

	switch strings.ToLower(s) {
	case "", "nan", "none", "null":
		return "", false
	}

	s = strings.TrimSuffix(s, ".0")

	var b strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

func floatUPC(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	return fmt.Sprintf("%d", int64(math.Round(f))), true
}

// Bool coerces boolean-like values (1/0, "1"/"0", true/false) into a real
// bool. Returns ok=false when the value is not recognizably boolean.
func Bool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int:
		return intBool(int64(v))
	case int16:
		return intBool(int64(v))
	case int32:
		return intBool(int64(v))
	case int64:
		return intBool(v)
	case float64:
		return intBool(int64(v))
	case string:
		switch strings.TrimSpace(v) {
		case "1":
			return true, true
		case "0":
			return false, true
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func intBool(v int64) (bool, bool) {
	switch v {
	case 1:
		return true, true
	case 0:
		return false, true
	}
	return false, false
}

// WeekStart returns the Monday at or before t, normalized to midnight UTC.
// Week identity is time-zone-naive: only the UTC calendar date matters.
// Idempotent under repeated application.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	// time.Weekday puts Sunday at 0; ISO weeks start on Monday.
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
