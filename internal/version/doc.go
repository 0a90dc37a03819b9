// Package version exposes build metadata for axget.
//
// Version, Commit and BuildTime are injected with -ldflags at release time.
package version
