package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// openTar opens src and wraps it with the decompressor for format.
func openTar(src string, format Format) (*tar.Reader, func(), error) {
	file, err := os.Open(src)
	if err != nil {
		return nil, nil, err
	}

	var (
		reader  io.Reader = file
		closers           = []func(){func() { _ = file.Close() }}
	)

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch format {
	case FormatTarGzip:
		gz, err := gzip.NewReader(file)
		if err != nil {
			closeAll()

			return nil, nil, fmt.Errorf("%s: %w: %w", src, ErrCorrupt, err)
		}

		closers = append(closers, func() { _ = gz.Close() })
		reader = gz
	case FormatTarZstd:
		dec, err := zstd.NewReader(file)
		if err != nil {
			closeAll()

			return nil, nil, fmt.Errorf("%s: %w: %w", src, ErrCorrupt, err)
		}

		closers = append(closers, dec.Close)
		reader = dec
	}

	return tar.NewReader(reader), closeAll, nil
}

// listTar reads every header once so the root can be detected before writing.
func listTar(src string, format Format) ([]entry, error) {
	tr, closeAll, err := openTar(src, format)
	if err != nil {
		return nil, err
	}

	defer closeAll()

	var listed []entry

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return listed, nil
		}

		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", src, ErrCorrupt, err)
		}

		if !extractable(header.Typeflag) {
			continue
		}

		name, err := cleanName(header.Name)
		if err != nil {
			return nil, err
		}

		listed = append(listed, entry{name: name, isDir: header.Typeflag == tar.TypeDir})
	}
}

// extractTar unpacks plain, gzip and zstd compressed tarballs.
func extractTar(ctx context.Context, src, dest string, format Format, opts Options) ([]entry, string, error) {
	root := ""

	if opts.StripSingleRoot {
		listed, err := listTar(src, format)
		if err != nil {
			return nil, "", err
		}

		root = singleRoot(listed)
	}

	tr, closeAll, err := openTar(src, format)
	if err != nil {
		return nil, root, err
	}

	defer closeAll()

	var written []entry

	for {
		if err = ctx.Err(); err != nil {
			return written, root, err
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return written, root, nil
		}

		if err != nil {
			return written, root, fmt.Errorf("%s: %w: %w", src, ErrCorrupt, err)
		}

		if !extractable(header.Typeflag) {
			continue
		}

		cleaned, err := cleanName(header.Name)
		if err != nil {
			return written, root, err
		}

		name, ok := stripRoot(cleaned, root)
		if !ok {
			continue
		}

		target, err := targetPath(dest, name)
		if err != nil {
			return written, root, err
		}

		isDir := header.Typeflag == tar.TypeDir

		switch header.Typeflag {
		case tar.TypeDir:
			err = writeDir(dest, target, os.FileMode(header.Mode))
		case tar.TypeSymlink:
			err = writeSymlink(dest, target, header.Linkname)
		default:
			err = writeFile(dest, target, tr, os.FileMode(header.Mode))
		}

		if err != nil {
			return written, root, fmt.Errorf("%s: %w", header.Name, corruptIfTruncated(err))
		}

		written = append(written, entry{name: name, isDir: isDir})
	}
}

// extractable reports whether a tar entry type is written to disk.
// Hard links, devices and pax metadata are skipped.
func extractable(flag byte) bool {
	switch flag {
	case tar.TypeDir, tar.TypeReg, tar.TypeSymlink:
		return true
	default:
		//nolint:staticcheck // TypeRegA still appears in archives produced by old tools.
		return flag == tar.TypeRegA
	}
}

func corruptIfTruncated(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return err
}
