package fetcher

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/axget/internal/config"
	"github.com/oshokin/axget/internal/domain/release"
)

// brandLogo is a validated logo file ready to be installed.
type brandLogo struct {
	path string
	name string
}

// resolveBrandLogo validates the configured logo. Relative paths are taken
// from the output directory. The default logo is optional; a missing
// user-supplied logo is an error.
func resolveBrandLogo(outputDir, brandFile string) (*brandLogo, error) {
	if brandFile == "" {
		return nil, nil
	}

	explicit := brandFile != config.DefaultBrandFile

	path := brandFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(outputDir, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if !explicit {
				return nil, nil
			}

			return nil, fmt.Errorf("brand file %s: %w: file does not exist", path, release.ErrInvalidInput)
		}

		return nil, fmt.Errorf("brand file %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("brand file %s: %w: not a regular file", path, release.ErrInvalidPathType)
	}

	return &brandLogo{path: path, name: filepath.Base(path)}, nil
}

// fileChecksum streams the file at path through DefaultChecksumFunction.
func fileChecksum(path string) ([]byte, error) {
	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := DefaultChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return nil, err
	}

	return hasher.Sum(nil), nil
}

// installBrandLogo copies the logo to target. The checksum comes from a
// separate read of the file on disk, so go-update rejects a buffer that does
// not match it before replacing target.
func installBrandLogo(logo *brandLogo, target string) error {
	checksum, err := fileChecksum(logo.path)
	if err != nil {
		return fmt.Errorf("checksum brand file: %w", err)
	}

	data, err := os.ReadFile(logo.path)
	if err != nil {
		return fmt.Errorf("read brand file: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(target), DefaultDirMode); err != nil {
		return err
	}

	// go-update renames the current target aside, so one has to exist.
	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		placeholder, err := os.Create(target)
		if err != nil {
			return err
		}

		if err = placeholder.Close(); err != nil {
			return err
		}
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultFileMode,
		Checksum:   checksum,
		Hash:       DefaultChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("install brand file: %w", err)
	}

	for _, leftover := range []string{
		target + ".old",
		filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".old"),
	} {
		if _, err = os.Stat(leftover); err == nil {
			_ = os.Remove(leftover)
		}
	}

	return nil
}
