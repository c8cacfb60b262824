package rows

import (
	"strings"

	"github.com/five82/plume/internal/parseable"
)

// LevelClass is the styling bucket for a level-like value.
type LevelClass int

// Level classes a record can fall into.
const (
	LevelNone LevelClass = iota
	LevelError
	LevelWarning
	LevelInfo
	LevelMetric
)

func (c LevelClass) String() string {
	switch c {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInfo:
		return "info"
	case LevelMetric:
		return "metric"
	default:
		return "none"
	}
}

var levelMatchers = []struct {
	token string
	class LevelClass
}{
	{"error", LevelError},
	{"warn", LevelWarning},
	{"info", LevelInfo},
	{"metric", LevelMetric},
}

// Classify buckets s by case-insensitive substring. The first match wins.
func Classify(s string) LevelClass {
	lower := strings.ToLower(s)
	for _, m := range levelMatchers {
		if strings.Contains(lower, m.token) {
			return m.class
		}
	}
	return LevelNone
}

// levelFields are consulted in order for the value to classify.
var levelFields = []string{"level", "severity", "event_type"}

// LevelValue returns the first non-empty level-like value of rec.
func LevelValue(rec parseable.LogRecord) string {
	for _, key := range levelFields {
		v, ok := rec.Get(key)
		if !ok {
			continue
		}
		if s := strings.TrimSpace(Cell(v)); s != "" {
			return s
		}
	}
	return ""
}

// LevelOf classifies the level-like value of rec.
func LevelOf(rec parseable.LogRecord) LevelClass {
	return Classify(LevelValue(rec))
}
