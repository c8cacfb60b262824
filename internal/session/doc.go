// Package session is the stateful core of plume: it owns the selected
// dataset, the filter, the time range and the live-tail flag of one view, and
// supervises every fetch made on its behalf.
//
// # State Machine
//
//	Idle ──select──▶ Loading ──ok──▶ Ready
//	                    │              │
//	                    └──fail──▶ Error
//
// Selecting a dataset clears the previous result and error, resets the filter,
// sets the range to the last 30 minutes and fetches. It also turns live tail
// off; the caller re-enables it for the new dataset. A search stops live tail
// and fetches with the new filter and range. Either transition goes through
// Loading and ends in Ready or Error.
//
// # Live Tail
//
// Turning live tail on starts a poller goroutine that ticks immediately and
// then every poll interval (3s by default). Each tick re-runs the current
// query over a window of the same length ending now. A tick that arrives while
// a fetch is outstanding is dropped, never queued. A failed fetch turns live
// tail off. Turning live tail off stops the poller but lets an outstanding
// fetch complete and apply.
//
// # Stale Results
//
// Every fetch carries a generation number. Starting a new fetch cancels the
// previous one, and a result is applied only when its generation is still the
// current one.
//
// # Teardown
//
// Close cancels the poller and every outstanding operation, then waits for all
// of them to return. No backend call is made after Close returns, and every
// method afterwards reports ErrClosed.
//
// # Observing State
//
// Snapshot returns a copy that is safe to read without synchronization. The
// ResultSet and Schema it points at are never modified once published.
package session
