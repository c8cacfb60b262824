// Package config loads plume's configuration.
//
// # Resolution Order
//
//  1. Built-in defaults
//  2. The TOML file (~/.config/plume/config.toml unless a path is given);
//     a missing file is not an error
//  3. Environment: PARSEABLE_BASE_URL and PARSEABLE_B64_CRED
//  4. Command-line overrides applied with Config.Apply
//
// # Default Values
//
//   - poll_interval: 3s (live tail cadence)
//   - query_limit: 100 (0 means unbounded)
//   - request_timeout: 10s
//   - log_file: ~/.local/share/plume/plume.log
//   - log_level: info
//   - theme: Nightfox
//
// # TOML Format
//
//	base_url = "https://logs.example.com"
//	credential = "YWRtaW46YWRtaW4="   # base64 of user:pass
//	poll_interval = "3s"
//	query_limit = 100
//	request_timeout = "10s"
//	log_file = "~/.local/share/plume/plume.log"
//	log_level = "info"
//	theme = "Nightfox"
//
// Paths starting with ~ are expanded to the user's home directory and made
// absolute. String values are trimmed.
//
// # Validation
//
// Load never fails for a missing base URL; Validate does, with ErrNoBaseURL.
// Commands that talk to the backend call Validate first so an unconfigured
// address is a reported precondition failure rather than a crash.
package config
