// Package api implements the HTTP and WebSocket interface to the
// register engine.
//
// The server exposes a versioned REST API under /api/v1 and a
// WebSocket endpoint for live telemetry. Handlers are thin: they
// decode the request, call into the profile store and the engine, and
// map domain errors onto HTTP statuses. No EC state is cached in this
// package; every request sees the hardware and the configuration file
// as they are at that moment.
//
// # Routes
//
// Public (no token):
//
//	GET  /api/v1/health
//	GET  /api/v1/version
//	POST /api/v1/auth/login
//
// Protected (bearer token when auth is enabled):
//
//	GET  /api/v1/profiles
//	GET  /api/v1/profiles/{name}
//	PUT  /api/v1/profiles/{name}
//	POST /api/v1/profiles/{name}/apply
//	GET  /api/v1/ec/snapshot
//	GET  /api/v1/ec/realtime
//	GET  /api/v1/ec/dump
//	POST /api/v1/ec/boost
//	POST /api/v1/ec/backlight
//	POST /api/v1/ec/battery
//	POST /api/v1/ec/register
//	GET  /api/v1/telemetry/history
//	GET  /api/v1/audit
//	POST /api/v1/auth/ws-ticket
//	GET  /api/v1/ws
//
// # Error mapping
//
// Domain failures carry their own HTTP semantics: a missing EC
// interface is 503 (the hardware is simply not there, the response
// names the kernel module to load), a register read or write that
// failed mid-operation is 502 (the message already names the address
// and direction), configuration problems are 400 and unknown sections
// or profiles 404.
//
// # Authentication
//
// Auth is optional and off by default, on the theory that the daemon
// binds to localhost. When enabled, POST /auth/login exchanges the
// configured password for a short-lived HS256 JWT, and every protected
// route requires it as a bearer token. Browsers cannot set headers on
// WebSocket dials, so /auth/ws-ticket issues a single-use ticket that
// /ws accepts as a query parameter for the next sixty seconds.
//
// # WebSocket
//
// The hub broadcasts on two channels: "telemetry" carries monitor
// samples and "ec.applied" announces profile applies from any
// interface. Clients subscribe per channel. The daemon shares one hub
// between this server and the MQTT bridge so both reach the same
// browsers.
package api
