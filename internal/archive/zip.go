package archive

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zip"
)

// extractZip unpacks zip, war and jar archives.
func extractZip(ctx context.Context, src, dest string, opts Options) ([]entry, string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w: %w", src, ErrCorrupt, err)
	}

	defer func() {
		_ = r.Close()
	}()

	listed := make([]entry, 0, len(r.File))

	for _, f := range r.File {
		name, err := cleanName(f.Name)
		if err != nil {
			return nil, "", err
		}

		listed = append(listed, entry{name: name, isDir: f.FileInfo().IsDir()})
	}

	root := ""
	if opts.StripSingleRoot {
		root = singleRoot(listed)
	}

	written := make([]entry, 0, len(listed))

	for i, f := range r.File {
		if err = ctx.Err(); err != nil {
			return written, root, err
		}

		name, ok := stripRoot(listed[i].name, root)
		if !ok {
			continue
		}

		target, err := targetPath(dest, name)
		if err != nil {
			return written, root, err
		}

		if err = writeZipEntry(dest, target, f); err != nil {
			return written, root, err
		}

		written = append(written, entry{name: name, isDir: listed[i].isDir})
	}

	return written, root, nil
}

func writeZipEntry(dest, target string, f *zip.File) error {
	mode := f.Mode()

	if mode.IsDir() {
		return writeDir(dest, target, mode)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%s: %w: %w", f.Name, ErrCorrupt, err)
	}

	defer func() {
		_ = rc.Close()
	}()

	if mode&os.ModeSymlink != 0 {
		link, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("%s: %w: %w", f.Name, ErrCorrupt, err)
		}

		return writeSymlink(dest, target, string(link))
	}

	if err = writeFile(dest, target, rc, mode); err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}

	return nil
}
