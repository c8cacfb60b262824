package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// TimestampField is the canonical ingestion timestamp column.
	TimestampField = "p_timestamp"
	// DefaultTextField receives plain text searches.
	DefaultTextField = "body"
	// DefaultWindow is applied when no time range is given.
	DefaultWindow = 5 * time.Minute
)

const (
	// ExportTimeField is the column the CSV export endpoint bounds by time.
	ExportTimeField = "timestamp"
)

var (
	// ErrNoDataset is returned when a request names no dataset.
	ErrNoDataset = errors.New("dataset is required")
	// ErrInvalidRange is returned when a range starts after it ends.
	ErrInvalidRange = errors.New("time range start is after end")
)

// TimeRange bounds a query. Both ends are inclusive.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Last returns the window of length d ending at now.
func Last(now time.Time, d time.Duration) TimeRange {
	return TimeRange{Start: now.Add(-d), End: now}
}

// IsZero reports whether neither bound is set.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// OrDefault fills a zero range with the default window ending at now.
func (r TimeRange) OrDefault(now time.Time) TimeRange {
	if r.IsZero() {
		return Last(now, DefaultWindow)
	}
	if r.End.IsZero() {
		r.End = now
	}
	if r.Start.IsZero() {
		r.Start = r.End.Add(-DefaultWindow)
	}
	return r
}

// Validate enforces start <= end.
func (r TimeRange) Validate() error {
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, FormatTime(r.Start), FormatTime(r.End))
	}
	return nil
}

// Request is the compiler input.
type Request struct {
	Dataset string
	Filter  string
	Range   TimeRange
	Limit   int
}

// Spec is the compiled backend query. Its JSON form is the /api/v1/query body.
type Spec struct {
	Query     string `json:"query"`
	Dataset   string `json:"streamName"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Kind classifies a filter expression.
type Kind int

const (
	// KindNone is an empty or blank filter.
	KindNone Kind = iota
	// KindText is matched as a substring of DefaultTextField.
	KindText
	// KindStructured is passed to the backend as a predicate.
	KindStructured
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindStructured:
		return "structured"
	default:
		return "none"
	}
}

// Classify decides whether filter is a plain text search or a backend predicate.
func Classify(filter string) Kind {
	if strings.TrimSpace(filter) == "" {
		return KindNone
	}
	if strings.ContainsAny(filter, "=<>") {
		return KindStructured
	}
	lower := strings.ToLower(filter)
	if strings.Contains(lower, " and ") || strings.Contains(lower, " or ") {
		return KindStructured
	}
	return KindText
}

// Predicate returns the WHERE fragment for filter, or "" when there is none.
// Structured predicates are embedded verbatim: the caller owns their syntax and
// they are not escaped.
func Predicate(filter string) string {
	switch Classify(filter) {
	case KindText:
		return fmt.Sprintf("%s ILIKE '%%%s%%'", DefaultTextField, filter)
	case KindStructured:
		return filter
	default:
		return ""
	}
}

// Compile builds the backend query for req. It has no side effects; equal
// requests produce equal specs.
func Compile(req Request) (Spec, error) {
	dataset := strings.TrimSpace(req.Dataset)
	if dataset == "" {
		return Spec{}, ErrNoDataset
	}
	if err := req.Range.Validate(); err != nil {
		return Spec{}, err
	}

	start := FormatTime(req.Range.Start)
	end := FormatTime(req.Range.End)

	conditions := make([]string, 0, 3)
	if pred := Predicate(req.Filter); pred != "" {
		conditions = append(conditions, pred)
	}
	conditions = append(conditions,
		fmt.Sprintf("%s >= '%s'", TimestampField, start),
		fmt.Sprintf("%s <= '%s'", TimestampField, end),
	)

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(dataset)
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(conditions, " AND "))
	b.WriteString(" ORDER BY ")
	b.WriteString(TimestampField)
	b.WriteString(" DESC")
	if req.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(req.Limit))
	}

	return Spec{
		Query:     b.String(),
		Dataset:   dataset,
		StartTime: start,
		EndTime:   end,
	}, nil
}

// ExportQuery builds the q parameter of the CSV export endpoint: the filter
// predicate ANDed with inclusive bounds on ExportTimeField. Unset bounds are
// omitted, so the result may be empty.
func ExportQuery(filter string, rng TimeRange) (string, error) {
	conditions := make([]string, 0, 3)
	if pred := Predicate(filter); pred != "" {
		conditions = append(conditions, pred)
	}
	if !rng.Start.IsZero() && !rng.End.IsZero() {
		if err := rng.Validate(); err != nil {
			return "", err
		}
	}
	if !rng.Start.IsZero() {
		conditions = append(conditions, fmt.Sprintf("%s >= %q", ExportTimeField, FormatTime(rng.Start)))
	}
	if !rng.End.IsZero() {
		conditions = append(conditions, fmt.Sprintf("%s <= %q", ExportTimeField, FormatTime(rng.End)))
	}
	return strings.Join(conditions, " AND "), nil
}

// FormatTime renders t as an ISO-8601 UTC instant.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime accepts RFC3339 instants and a few looser layouts used on the command line.
func ParseTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unsupported layout", value)
}
