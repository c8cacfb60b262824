// Package app is plume's composition root.
//
// # Overview
//
// Bootstrap turns a config path and command-line overrides into the shared
// dependencies every entry point needs. Run builds a session from them and
// hands it to the TUI.
//
// # Initialization
//
//  1. Load ~/.config/plume/config.toml (or the given path) and env overrides
//  2. Apply --base-url / --credential overrides and validate
//  3. Open the zerolog log file, optionally mirrored to a console writer
//  4. Build the Parseable client; a missing credential fails here unless the
//     base URL is the public demo
//  5. (Run only) load TUI preferences, create a session and start the
//     Bubble Tea program
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │ Bootstrap, session.New
//	└──────┬───────┘
//	       │
//	       ▼
//	┌──────────────┐      intents      ┌──────────────┐
//	│    ui.Run    │ ────────────────▶ │   Session    │
//	│              │ ◀──────────────── │  (poller,    │
//	└──────────────┘     Snapshot()    │   fetches)   │
//	                                   └──────┬───────┘
//	                                          │ HTTP
//	                                          ▼
//	                                   ┌──────────────┐
//	                                   │  Parseable   │
//	                                   └──────────────┘
//
// # Shutdown
//
// When the TUI exits, for any reason, Run closes the session, which cancels
// outstanding fetches and waits for the poller, then closes the log file.
// Cancellation of ctx by a signal is a clean exit.
package app
