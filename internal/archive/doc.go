// Package archive extracts downloaded release archives.
//
// The format is picked from the file extension: zip-based (.zip, .war, .jar),
// plain tar, gzip and zstd compressed tar. Entries that would land outside the
// destination are rejected. An archive whose only top-level entry is a
// directory can have that directory stripped, which is how source snapshots
// are laid out.
package archive
