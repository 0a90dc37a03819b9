package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Format identifies an archive container.
type Format int

// Supported formats.
const (
	FormatUnknown Format = iota
	FormatZip
	FormatTar
	FormatTarGzip
	FormatTarZstd
)

const (
	defaultDirMode  os.FileMode = 0o755
	defaultFileMode os.FileMode = 0o644
)

var (
	// ErrUnsupportedFormat is returned when the extension maps to no known format.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrIllegalPath is returned for entries escaping the destination directory.
	ErrIllegalPath = errors.New("illegal path in archive")
	// ErrCorrupt is returned when the archive cannot be read.
	ErrCorrupt = errors.New("corrupt archive")
)

// suffixes is ordered so that compound extensions match first.
//
//nolint:gochecknoglobals // Read-only lookup table.
var suffixes = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTarGzip},
	{".tgz", FormatTarGzip},
	{".tar.zst", FormatTarZstd},
	{".tzst", FormatTarZstd},
	{".tar", FormatTar},
	{".zip", FormatZip},
	{".war", FormatZip},
	{".jar", FormatZip},
}

// String returns a short format name.
func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTar:
		return "tar"
	case FormatTarGzip:
		return "tar.gz"
	case FormatTarZstd:
		return "tar.zst"
	default:
		return "unknown"
	}
}

// DetectFormat picks the format implied by the file name.
func DetectFormat(name string) (Format, error) {
	lower := strings.ToLower(name)

	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.format, nil
		}
	}

	return FormatUnknown, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
}

// Options tune extraction.
type Options struct {
	// StripSingleRoot removes the top-level directory when it is the only root entry.
	StripSingleRoot bool
}

// Result summarizes an extraction.
type Result struct {
	// Format is the detected container format.
	Format Format
	// Files is the number of regular files written.
	Files int
	// Stripped is the removed root directory, empty when nothing was stripped.
	Stripped string
	// TopLevel lists the names written directly into the destination.
	TopLevel []string
}

// Extract unpacks src into dest, creating dest when needed.
// Files already written stay on disk when extraction fails midway.
func Extract(ctx context.Context, src, dest string, opts Options) (*Result, error) {
	format, err := DetectFormat(src)
	if err != nil {
		return nil, err
	}

	if err = os.MkdirAll(dest, defaultDirMode); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	var (
		entries []entry
		root    string
	)

	switch format {
	case FormatZip:
		entries, root, err = extractZip(ctx, src, dest, opts)
	default:
		entries, root, err = extractTar(ctx, src, dest, format, opts)
	}

	result := summarize(format, entries)
	result.Stripped = root

	return result, err
}

// entry is one item written to disk, with its name relative to dest.
type entry struct {
	name  string
	isDir bool
}

func summarize(format Format, entries []entry) *Result {
	result := &Result{Format: format}
	seen := make(map[string]struct{}, len(entries))

	for _, e := range entries {
		if !e.isDir {
			result.Files++
		}

		top := strings.SplitN(e.name, "/", 2)[0]
		if _, ok := seen[top]; ok || top == "" {
			continue
		}

		seen[top] = struct{}{}
		result.TopLevel = append(result.TopLevel, top)
	}

	return result
}
