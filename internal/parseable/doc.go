// Package parseable provides an HTTP client for the Parseable log API.
//
// # Overview
//
// The client lists datasets, fetches a dataset schema, runs compiled queries
// and streams server-side CSV exports. Every request carries Basic
// authentication built from a base64 "user:pass" credential.
//
// # Client Usage
//
//	client, err := parseable.NewClient("https://logs.example.com", cred, 10*time.Second)
//	if err != nil {
//		return err
//	}
//
//	list, err := client.ListDatasets(ctx)
//	spec, _ := query.Compile(query.Request{Dataset: list.Datasets[0], Range: rng, Limit: 100})
//	records, err := client.RunQuery(ctx, spec)
//
// # API Endpoints
//
//   - GET  /api/v1/logstream: dataset names, as [{"name": ...}] or bare strings
//   - GET  /api/v1/logstream/{dataset}/schema: field map
//   - POST /api/v1/query: {query, streamName, startTime, endTime} returning records
//   - GET  /api/v1/logstream/{dataset}/csv?q=<predicate>: CSV export
//
// Any path on the base address is kept, so the client works behind a prefix
// such as a reverse proxy mount.
//
// # Demo Endpoint
//
// When the base address names demo.parseable.com the client sends the demo's
// published admin credential instead of the configured one, and a missing
// credential is not an error.
//
// # Error Handling
//
//   - *AuthError: the backend answered 401 or 403
//   - *TransportError: any other non-2xx status, or a network failure (Status 0)
//   - *FormatError: the body was not JSON of the expected shape
//
// Use errors.As to branch on the kind.
//
// # Records
//
// Query results are parsed with a pooled fastjson parser so the field order of
// each record is kept as received. Well-known fields (p_timestamp, event_type,
// the parseable_* counters and storage sizes) are type-checked; a mismatch
// rejects the whole response with a *FormatError. Unknown fields pass through.
// A JSON null in a known field is treated as absent.
//
// # Timeouts
//
// List, schema and query calls are bounded by the client timeout on top of the
// caller's context. Exports are bounded by the caller's context only, since a
// large CSV may take longer than any single request budget.
package parseable
