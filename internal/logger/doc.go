// Package logger wraps zap for the whole tool:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - leveled helpers (Info, InfoKV, WarnKV, ...).
//
// Level and Logger expose the shared state to callers that gate work on the
// level or flush the logger before exiting.
//
// Stages receive a context and log through the logger stored in it.
package logger
