// Package rows turns heterogeneous log records into a stable table: a
// synthesized timestamp column, a fixed set of priority columns, then every
// other field in the order it was first seen.
package rows

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/five82/plume/internal/parseable"
)

// TimestampColumn is the synthesized column that replaces every timestamp alias.
const TimestampColumn = "timestamp"

// TimestampAliases are collapsed into TimestampColumn. The first non-empty
// value wins per record.
var TimestampAliases = []string{"p_timestamp", "event_time", "timestamp", "datetime"}

// PriorityFields follow the timestamp column, in this order, when present.
var PriorityFields = []string{"level", "status", "method", "host", "id", "severity", "event_type", "message", "body"}

// Column describes one table column.
type Column struct {
	Key   string
	Title string
}

// Row is one normalized record. Cells align with Table.Columns.
type Row struct {
	Cells  []string
	Level  LevelClass
	Record parseable.LogRecord
}

// Table is the stable tabular view of a record batch.
type Table struct {
	Columns []Column
	Rows    []Row
}

// Index returns the position of the column named key, or -1.
func (t Table) Index(key string) int {
	for i, c := range t.Columns {
		if c.Key == key {
			return i
		}
	}
	return -1
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Normalize derives columns from the union of fields across records and
// renders every cell. It never fails.
func Normalize(records []parseable.LogRecord) Table {
	columns := discoverColumns(records)
	table := Table{Columns: columns, Rows: make([]Row, 0, len(records))}
	for _, rec := range records {
		cells := make([]string, len(columns))
		for i, col := range columns {
			if col.Key == TimestampColumn {
				cells[i] = FormatTimestamp(timestampValue(rec))
				continue
			}
			v, _ := rec.Get(col.Key)
			cells[i] = Cell(v)
		}
		table.Rows = append(table.Rows, Row{Cells: cells, Level: LevelOf(rec), Record: rec})
	}
	return table
}

func discoverColumns(records []parseable.LogRecord) []Column {
	seen := make(map[string]bool)
	var discovered []string
	for _, rec := range records {
		for _, key := range rec.Keys() {
			if isTimestampAlias(key) || seen[key] {
				continue
			}
			seen[key] = true
			discovered = append(discovered, key)
		}
	}

	columns := make([]Column, 0, len(discovered)+1)
	columns = append(columns, Column{Key: TimestampColumn, Title: title(TimestampColumn)})

	placed := make(map[string]bool, len(PriorityFields))
	for _, key := range PriorityFields {
		if seen[key] {
			columns = append(columns, Column{Key: key, Title: title(key)})
			placed[key] = true
		}
	}
	for _, key := range discovered {
		if !placed[key] {
			columns = append(columns, Column{Key: key, Title: title(key)})
		}
	}
	return columns
}

func timestampValue(rec parseable.LogRecord) any {
	for _, alias := range TimestampAliases {
		v, ok := rec.Get(alias)
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func isTimestampAlias(key string) bool {
	for _, alias := range TimestampAliases {
		if key == alias {
			return true
		}
	}
	return false
}

func title(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	if len(words) == 0 {
		return key
	}
	r, size := utf8.DecodeRuneInString(words[0])
	words[0] = string(unicode.ToUpper(r)) + words[0][size:]
	return strings.Join(words, " ")
}
