package parseable

import (
	"encoding/json"
	"errors"
	"fmt"
)

// LogRecord is one backend event. The field set is dynamic and differs between
// records of the same batch; field order is preserved as received.
//
// Values are one of: nil, string, bool, json.Number, float64, int, int64,
// map[string]any or []any.
type LogRecord struct {
	keys   []string
	fields map[string]any
}

// NewLogRecord builds a record from alternating key/value pairs. It is mostly
// useful in tests.
func NewLogRecord(kv ...any) LogRecord {
	var rec LogRecord
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		rec.Set(key, kv[i+1])
	}
	return rec
}

// Set stores value under key, keeping the original position of existing keys.
func (r *LogRecord) Set(key string, value any) {
	if r.fields == nil {
		r.fields = make(map[string]any)
	}
	if _, ok := r.fields[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.fields[key] = value
}

// Get returns the value stored under key.
func (r LogRecord) Get(key string) (any, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// Keys returns field names in arrival order.
func (r LogRecord) Keys() []string {
	if len(r.keys) == 0 {
		return nil
	}
	dup := make([]string, len(r.keys))
	copy(dup, r.keys)
	return dup
}

// Len returns the number of fields.
func (r LogRecord) Len() int {
	return len(r.keys)
}

// Kind tags the value held by a record field.
type Kind int

// Value kinds a LogRecord field can hold.
const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
	KindOther
)

// KindOf classifies v.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case json.Number, float64, float32, int, int32, int64, uint, uint32, uint64:
		return KindNumber
	case bool:
		return KindBool
	case map[string]any:
		return KindObject
	case []any:
		return KindArray
	default:
		return KindOther
	}
}

// DatasetList is the listDatasets result.
type DatasetList struct {
	Identity string
	Datasets []string
}

// SchemaField describes a single column from /schema.
type SchemaField struct {
	Name     string
	DataType string
	Nullable bool
}

// Schema is the fetchSchema result. Raw holds the decoded body untouched.
type Schema struct {
	Dataset string
	Fields  []SchemaField
	Raw     map[string]any
}

var (
	// ErrNoBaseURL is returned by NewClient for an empty base URL.
	ErrNoBaseURL = errors.New("parseable base url is not configured")
	// ErrNoCredential is returned by NewClient when a non-demo endpoint has
	// no credential.
	ErrNoCredential = errors.New("parseable credential is not configured (set PARSEABLE_B64_CRED)")
)

// AuthError reports a 401/403 from the backend.
type AuthError struct {
	Op     string
	Path   string
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed (%s returned status %d); check the parseable credential", e.Op, e.Path, e.Status)
}

// TransportError reports a non-2xx status other than 401/403, or a network
// failure when Status is zero.
type TransportError struct {
	Op     string
	Path   string
	Status int
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: request %s failed: %v", e.Op, e.Path, e.Err)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: api %s returned status %d: %s", e.Op, e.Path, e.Status, e.Reason)
	}
	return fmt.Sprintf("%s: api %s returned status %d", e.Op, e.Path, e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FormatError reports a response body that violates the expected shape.
type FormatError struct {
	Op          string
	Expectation string
	Err         error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid response format: %s: %v", e.Op, e.Expectation, e.Err)
	}
	return fmt.Sprintf("%s: invalid response format: %s", e.Op, e.Expectation)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
