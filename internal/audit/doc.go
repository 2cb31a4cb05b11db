// Package audit delivers engine operation events to pluggable sinks.
//
// # Components
//
//   - [Sink] consumes events: channel, JSON lines, slog, or no-op.
//   - [Dispatcher] relays events asynchronously with drop-if-full or
//     block-if-full semantics.
//   - [Event] records the operation, principal, service, request and outcome.
//
// The package does not decide which events to emit; the Engine does.
package audit
