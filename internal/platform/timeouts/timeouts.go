// Package timeouts defines shared timeout constants used across commands.
// Centralizing these values prevents drift between transport boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// ProviderCall caps a single Geography/Knowledge/Decision provider call
// made from inside a turn.
const ProviderCall = 10 * time.Second
