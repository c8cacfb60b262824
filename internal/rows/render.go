package rows

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/five82/plume/internal/parseable"
)

// RecordJSON renders rec as a JSON object in field arrival order. Nested values
// are emitted in full, with self-references replaced by CircularMarker.
func RecordJSON(rec parseable.LogRecord, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range rec.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := nestedJSON.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("encode key %q: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, _ := rec.Get(key)
		encoded, err := nestedJSON.Marshal(sanitize(v, nil, 0))
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", key, err)
		}
		buf.Write(encoded)
	}
	buf.WriteByte('}')

	if !indent {
		return buf.Bytes(), nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent record: %w", err)
	}
	return out.Bytes(), nil
}

// WriteCSV writes the table with a header row of column keys.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Key
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := cw.Write(row.Cells); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the table's records as a JSON array, one record per line.
func WriteJSON(w io.Writer, t Table) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	for i, row := range t.Rows {
		sep := "\n  "
		if i > 0 {
			sep = ",\n  "
		}
		b, err := RecordJSON(row.Record, false)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	tail := "]\n"
	if len(t.Rows) > 0 {
		tail = "\n]\n"
	}
	_, err := io.WriteString(w, tail)
	return err
}
