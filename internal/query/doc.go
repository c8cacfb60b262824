// Package query compiles a dataset selection, a filter and a time range into
// the SQL text accepted by Parseable's /api/v1/query endpoint.
//
// # Filters
//
// A filter is either plain text or a structured predicate. Anything containing
// '=', '<' or '>', or the words AND/OR surrounded by spaces (any case), is
// structured and is embedded into the WHERE clause as written. Everything else
// becomes a case-insensitive substring match on the body field:
//
//	"timeout"          -> body ILIKE '%timeout%'
//	"status >= 500"    -> status >= 500
//
// Structured predicates are not escaped. They are trusted backend syntax and
// give the caller the backend's full query surface.
//
// # Output shape
//
//	SELECT * FROM <dataset>
//	WHERE [<predicate> AND] p_timestamp >= '<start>' AND p_timestamp <= '<end>'
//	ORDER BY p_timestamp DESC
//	[LIMIT <n>]
//
// Compile is pure. Callers resolve "now" themselves, typically through
// TimeRange.OrDefault.
package query
