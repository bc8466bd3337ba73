// Package audit delivers credential lifecycle events to pluggable sinks.
//
// The engine decides which events exist (register, login, external login,
// refresh, reset request/confirm). This package only buffers them and hands
// them to a [Sink] off the request path through a [Dispatcher].
//
// Sinks provided here:
//
//   - [NoOpSink] drops everything.
//   - [ChannelSink] exposes events on a buffered channel, mostly for tests.
//   - [JSONWriterSink] writes one JSON object per line.
//   - [SlogSink] forwards events to a structured logger.
//   - [MultiSink] fans one event out to several sinks.
//
// Events never carry passwords, password hashes or token values.
package audit
