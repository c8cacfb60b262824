package parseable

import (
	"errors"
	"testing"
)

func TestParseRecords_AcceptsRecordsEnvelope(t *testing.T) {
	records, err := parseRecords([]byte(`{"records":[{"a":"x"}],"fields":["a"]}`))
	if err != nil {
		t.Fatalf("parseRecords returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
}

func TestParseRecords_RejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{oops`},
		{"scalar", `42`},
		{"object without records", `{"a":1}`},
		{"non-object element", `[{"a":1}, 7]`},
		{"known string as number", `[{"p_timestamp": 1700000000}]`},
		{"known number as string", `[{"parseable_events_ingested": "12"}]`},
		{"storage size scalar", `[{"parseable_storage_size": 3}]`},
		{"storage size nested string", `[{"parseable_storage_size": {"staging": 1, "data": "x"}}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRecords([]byte(tt.body))
			var formatErr *FormatError
			if !errors.As(err, &formatErr) {
				t.Fatalf("parseRecords(%s) error = %v, want FormatError", tt.body, err)
			}
		})
	}
}

func TestParseRecords_KnownFieldsAccepted(t *testing.T) {
	body := `[{
		"p_timestamp": "2024-01-01T00:00:00Z",
		"event_type": null,
		"parseable_events_ingested": 12,
		"parseable_storage_size": {"staging": 1, "data": 2.5, "extra": "ok"},
		"anything": ["x", {"y": null}]
	}]`
	records, err := parseRecords([]byte(body))
	if err != nil {
		t.Fatalf("parseRecords returned error: %v", err)
	}
	rec := records[0]
	if rec.Len() != 5 {
		t.Fatalf("Len = %d, want 5", rec.Len())
	}
	if v, ok := rec.Get("event_type"); !ok || v != nil {
		t.Fatalf("event_type = %#v, want present nil", v)
	}
	size, _ := rec.Get("parseable_storage_size")
	m, ok := size.(map[string]any)
	if !ok || m["extra"] != "ok" {
		t.Fatalf("parseable_storage_size = %#v, want decoded object", size)
	}
	list, _ := rec.Get("anything")
	if arr, ok := list.([]any); !ok || len(arr) != 2 {
		t.Fatalf("anything = %#v, want 2-element array", list)
	}
}

func TestLogRecord_SetKeepsPosition(t *testing.T) {
	rec := NewLogRecord("a", 1, "b", 2, 3, "skipped")
	rec.Set("a", 9)
	keys := rec.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("Keys = %v, want [a b]", keys)
	}
	if v, _ := rec.Get("a"); v != 9 {
		t.Fatalf("a = %v, want 9", v)
	}
	keys[0] = "mutated"
	if rec.Keys()[0] != "a" {
		t.Fatalf("Keys must return a copy")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		in   any
		want Kind
	}{
		{nil, KindNull},
		{"s", KindString},
		{3.5, KindNumber},
		{true, KindBool},
		{map[string]any{}, KindObject},
		{[]any{}, KindArray},
		{struct{}{}, KindOther},
	}
	for _, tt := range tests {
		if got := KindOf(tt.in); got != tt.want {
			t.Fatalf("KindOf(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
