package parseable

import (
	"encoding/json"
	"fmt"

	"github.com/valyala/fastjson"
)

type fieldType int

const (
	fieldString fieldType = iota
	fieldNumber
	fieldStorageSize
)

// knownFields are type-checked when present. Anything else passes through.
var knownFields = map[string]fieldType{
	"address":      fieldString,
	"commit":       fieldString,
	"event_time":   fieldString,
	"event_type":   fieldString,
	"node_type":    fieldString,
	"p_format":     fieldString,
	"p_timestamp":  fieldString,
	"p_user_agent": fieldString,
	"staging":      fieldString,

	"parseable_deleted_events_ingested":       fieldNumber,
	"parseable_deleted_events_ingested_size":  fieldNumber,
	"parseable_events_ingested":               fieldNumber,
	"parseable_events_ingested_size":          fieldNumber,
	"parseable_lifetime_events_ingested":      fieldNumber,
	"parseable_lifetime_events_ingested_size": fieldNumber,
	"parseable_staging_files":                 fieldNumber,
	"process_resident_memory_bytes":           fieldNumber,

	"parseable_deleted_storage_size":  fieldStorageSize,
	"parseable_lifetime_storage_size": fieldStorageSize,
	"parseable_storage_size":          fieldStorageSize,
}

var recordParsers fastjson.ParserPool

// parseRecords validates a query response body. The body is either an array
// of objects or an object carrying such an array under "records". A null in a
// known field counts as absent rather than as a type mismatch, so backends
// that emit explicit nulls still validate.
func parseRecords(body []byte) ([]LogRecord, error) {
	p := recordParsers.Get()
	defer recordParsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, &FormatError{Op: "run query", Expectation: "response is not valid JSON", Err: err}
	}

	if v.Type() == fastjson.TypeObject && v.Exists("records") {
		v = v.Get("records")
	}
	if v.Type() != fastjson.TypeArray {
		return nil, &FormatError{Op: "run query", Expectation: fmt.Sprintf("expected an array of records, got %s", v.Type())}
	}

	items, _ := v.Array()
	records := make([]LogRecord, 0, len(items))
	for i, item := range items {
		rec, err := toRecord(item)
		if err != nil {
			return nil, &FormatError{Op: "run query", Expectation: fmt.Sprintf("record %d: %v", i, err)}
		}
		records = append(records, rec)
	}
	return records, nil
}

func toRecord(v *fastjson.Value) (LogRecord, error) {
	obj, err := v.Object()
	if err != nil {
		return LogRecord{}, fmt.Errorf("expected object, got %s", v.Type())
	}

	var rec LogRecord
	var verr error
	obj.Visit(func(key []byte, val *fastjson.Value) {
		if verr != nil {
			return
		}
		name := string(key)
		if want, ok := knownFields[name]; ok {
			if err := checkKnown(name, want, val); err != nil {
				verr = err
				return
			}
		}
		rec.Set(name, toValue(val))
	})
	if verr != nil {
		return LogRecord{}, verr
	}
	return rec, nil
}

// checkKnown rejects a known field carrying the wrong type. null counts as absent.
func checkKnown(name string, want fieldType, val *fastjson.Value) error {
	if val.Type() == fastjson.TypeNull {
		return nil
	}
	switch want {
	case fieldString:
		if val.Type() != fastjson.TypeString {
			return fmt.Errorf("field %q: expected string, got %s", name, val.Type())
		}
	case fieldNumber:
		if val.Type() != fastjson.TypeNumber {
			return fmt.Errorf("field %q: expected number, got %s", name, val.Type())
		}
	case fieldStorageSize:
		obj, err := val.Object()
		if err != nil {
			return fmt.Errorf("field %q: expected object, got %s", name, val.Type())
		}
		var inner error
		obj.Visit(func(key []byte, sub *fastjson.Value) {
			if inner != nil {
				return
			}
			k := string(key)
			if (k == "staging" || k == "data") && sub.Type() != fastjson.TypeNumber && sub.Type() != fastjson.TypeNull {
				inner = fmt.Errorf("field %q.%s: expected number, got %s", name, k, sub.Type())
			}
		})
		return inner
	}
	return nil
}

func toValue(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeNull:
		return nil
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return json.Number(v.String())
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeArray:
		items, _ := v.Array()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = toValue(item)
		}
		return out
	case fastjson.TypeObject:
		obj, _ := v.Object()
		out := make(map[string]any, obj.Len())
		obj.Visit(func(key []byte, sub *fastjson.Value) {
			out[string(key)] = toValue(sub)
		})
		return out
	default:
		return v.String()
	}
}
