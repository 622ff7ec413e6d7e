// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// APIRequest caps the time allowed for a single request from a satellite
// process (bot, MCP bridge, tools) to the backoffice API.
const APIRequest = 10 * time.Second

// CourierFetch caps one fetch of the courier tracking page. Courier sites
// are slow under load, so this runs longer than internal calls.
const CourierFetch = 15 * time.Second

// TelegramCall caps a single Telegram Bot API call outside long polling.
const TelegramCall = 30 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
