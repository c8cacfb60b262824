package rows

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const (
	// MaxNestedLen bounds the rendered JSON of a nested value, in runes.
	MaxNestedLen = 200
	// Ellipsis marks a truncated cell.
	Ellipsis = "…"
	// CircularMarker replaces a value that refers back to one of its ancestors.
	CircularMarker = "[Circular]"

	maxDepth = 64

	displayTimeLayout = "2006-01-02 15:04:05"
)

var nestedJSON = sonic.Config{SortMapKeys: true, ValidateString: true}.Froze()

// Cell renders v as a display-safe string: nil is empty, nested values are
// truncated JSON, scalars use their natural string form.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case map[string]any, []any:
		return truncate(NestedJSON(x), MaxNestedLen)
	default:
		return fmt.Sprint(x)
	}
}

// NestedJSON renders v as compact JSON with sorted keys. Self-references
// become CircularMarker.
func NestedJSON(v any) string {
	b, err := nestedJSON.Marshal(sanitize(v, nil, 0))
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// sanitize copies v into a tree with no shared ancestors. stack holds the
// identities of the containers currently being walked.
func sanitize(v any, stack []uintptr, depth int) any {
	if depth > maxDepth {
		return CircularMarker
	}
	switch x := v.(type) {
	case map[string]any:
		id := reflect.ValueOf(x).Pointer()
		if onStack(stack, id) {
			return CircularMarker
		}
		stack = append(stack, id)
		out := make(map[string]any, len(x))
		for k, sub := range x {
			out[k] = sanitize(sub, stack, depth+1)
		}
		return out
	case []any:
		if len(x) == 0 {
			return []any{}
		}
		id := reflect.ValueOf(x).Pointer()
		if onStack(stack, id) {
			return CircularMarker
		}
		stack = append(stack, id)
		out := make([]any, len(x))
		for i, sub := range x {
			out[i] = sanitize(sub, stack, depth+1)
		}
		return out
	case nil, string, bool, json.Number, float64, float32, int, int64:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func onStack(stack []uintptr, id uintptr) bool {
	if id == 0 {
		return false
	}
	for _, s := range stack {
		if s == id {
			return true
		}
	}
	return false
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + Ellipsis
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// FormatTimestamp renders a timestamp in local time. Values that cannot be
// parsed are returned in their original string form.
func FormatTimestamp(v any) string {
	s, ok := v.(string)
	if !ok {
		return Cell(v)
	}
	if t, ok := ParseTimestamp(s); ok {
		return t.Local().Format(displayTimeLayout)
	}
	return s
}

// ParseTimestamp parses the layouts the backend emits. Zone-less values are UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
