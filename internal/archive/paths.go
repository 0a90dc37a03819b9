package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// cleanName normalizes an archive entry name to a relative slash path.
// It returns "" for entries naming the archive root itself.
func cleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%s: %w", name, ErrIllegalPath)
	}

	cleaned := path.Clean(name)

	switch {
	case cleaned == ".":
		return "", nil
	case cleaned == ".." || strings.HasPrefix(cleaned, "../"):
		return "", fmt.Errorf("%s: %w", name, ErrIllegalPath)
	default:
		return cleaned, nil
	}
}

// singleRoot returns the directory shared by every entry when it is the only
// top-level item, or "" otherwise.
func singleRoot(entries []entry) string {
	root := ""

	for _, e := range entries {
		if e.name == "" {
			continue
		}

		first, _, nested := strings.Cut(e.name, "/")

		switch {
		case root == "":
			root = first
		case first != root:
			return ""
		}

		if !nested && !e.isDir {
			return ""
		}
	}

	return root
}

// stripRoot removes root from name. It reports false for the root entry itself.
func stripRoot(name, root string) (string, bool) {
	if root == "" {
		return name, name != ""
	}

	if name == root {
		return "", false
	}

	return strings.TrimPrefix(name, root+"/"), true
}

// targetPath joins a cleaned entry name onto dest and checks containment.
func targetPath(dest, name string) (string, error) {
	base := filepath.Clean(dest)
	target := filepath.Join(base, filepath.FromSlash(name))

	if !strings.HasPrefix(target, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("%s: %w", name, ErrIllegalPath)
	}

	return target, nil
}

// within reports whether p is root or lies below it.
func within(root, p string) bool {
	return p == root || strings.HasPrefix(p, root+string(os.PathSeparator))
}

// ensureInside resolves the deepest existing ancestor of target's parent on
// disk and checks that it stays inside dest. Links written by earlier entries
// are followed, so a chain of individually harmless links cannot redirect a write.
func ensureInside(dest, target string) error {
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return err
	}

	dir := filepath.Dir(target)

	for {
		resolved, err := filepath.EvalSymlinks(dir)

		switch {
		case err == nil:
			if !within(root, resolved) {
				return fmt.Errorf("%s resolves to %s: %w", target, resolved, ErrIllegalPath)
			}

			return nil
		case !errors.Is(err, fs.ErrNotExist):
			return err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}

		dir = parent
	}
}

// writeFile streams r into target, replacing whatever was there.
func writeFile(dest, target string, r io.Reader, mode os.FileMode) error {
	if err := ensureInside(dest, target); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), defaultDirMode); err != nil {
		return err
	}

	if err := removeExisting(target); err != nil {
		return err
	}

	if mode.Perm() == 0 {
		mode = defaultFileMode
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, r); err != nil {
		_ = out.Close()

		return err
	}

	return out.Close()
}

// writeDir creates a directory entry.
func writeDir(dest, target string, mode os.FileMode) error {
	if err := ensureInside(dest, target); err != nil {
		return err
	}

	if mode.Perm() == 0 {
		mode = defaultDirMode
	}

	return os.MkdirAll(target, mode.Perm()|0o700)
}

// writeSymlink creates a link whose target must stay inside dest.
func writeSymlink(dest, target, linkname string) error {
	if filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return fmt.Errorf("%s -> %s: %w", target, linkname, ErrIllegalPath)
	}

	resolved := filepath.Join(filepath.Dir(target), filepath.FromSlash(linkname))
	if _, err := targetPath(dest, mustRel(dest, resolved)); err != nil {
		return fmt.Errorf("%s -> %s: %w", target, linkname, ErrIllegalPath)
	}

	if err := ensureInside(dest, target); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), defaultDirMode); err != nil {
		return err
	}

	if err := removeExisting(target); err != nil {
		return err
	}

	if err := os.Symlink(linkname, target); err != nil {
		return err
	}

	// The text check above cannot see links created earlier; resolve what is on disk now.
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return err
	}

	if resolved, err := filepath.EvalSymlinks(target); err == nil && !within(root, resolved) {
		_ = os.Remove(target)

		return fmt.Errorf("%s -> %s resolves to %s: %w", target, linkname, resolved, ErrIllegalPath)
	}

	return nil
}

func removeExisting(target string) error {
	info, err := os.Lstat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	if info.IsDir() {
		return nil
	}

	return os.Remove(target)
}

// mustRel returns p relative to base as a slash path; escaping paths keep their "..".
func mustRel(base, p string) string {
	rel, err := filepath.Rel(filepath.Clean(base), p)
	if err != nil {
		return ".."
	}

	return filepath.ToSlash(rel)
}
