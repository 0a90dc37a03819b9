package fetcher

import (
	"context"
	"crypto"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/oshokin/axget/internal/ownership"
	"github.com/oshokin/axget/internal/service/common"

	// Ensure SHA512 is available for brand logo checksums.
	_ "crypto/sha512"
)

const (
	// DefaultFileMode is applied to installed files such as the brand logo.
	DefaultFileMode os.FileMode = 0o644

	// DefaultDirMode is applied to directories created by the fetcher.
	DefaultDirMode os.FileMode = 0o755

	// DefaultChecksumFunction verifies the installed brand logo.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512

	// progressStep is how many bytes pass between download progress entries.
	progressStep = 16 << 20

	// keepAlive is the TCP keep-alive period of download connections.
	keepAlive = 30 * time.Second

	// stagingSuffix names the sibling folder a release is extracted into before it replaces the old one.
	stagingSuffix = ".partial"
)

var (
	errBadHTTPStatus    = errors.New("unexpected http status")
	errNoURL            = errors.New("artifact has no download url")
	errOptionsNotSet    = errors.New("options are not set")
	errHashUnavailable  = errors.New("hash function unavailable")
	errBadVersionArgs   = errors.New("expected <major> <minor> <patch> or <major.minor.patch>")
	errLogLevelNotKnown = errors.New("unknown log level")
)

// Options are the inputs accepted by Run.
type Options struct {
	// ConfigPath is the optional settings YAML file.
	ConfigPath string
	// VersionArgs holds either three components or one "X.Y.Z" string.
	VersionArgs []string
	// Source selects the source snapshot instead of the WAR.
	Source bool

	// OutputDir overrides the configured output directory when non-empty.
	OutputDir string
	// BrandFile overrides the configured brand logo when non-empty.
	BrandFile string
	// Owner overrides the configured service account when non-empty.
	Owner string
	// Group overrides the configured service group when non-empty.
	Group string
	// LogLevel overrides the configured log level when non-empty.
	LogLevel string
	// NoClobber refuses to replace an existing release folder.
	NoClobber bool
	// KeepArchive keeps downloaded archives after extraction.
	KeepArchive bool

	// HTTPClient replaces the client built from the timeouts.
	HTTPClient *http.Client
	// GOOS replaces runtime.GOOS for the ownership capability check.
	GOOS string
	// Changer replaces the ownership changer chosen for GOOS.
	Changer ownership.Changer
	// ProcessLister replaces the host process table.
	ProcessLister common.ProcessLister
}

// Result describes what a successful run produced.
type Result struct {
	// ReleaseDir is the absolute path of the extracted release folder.
	ReleaseDir string
	// Archives are the absolute paths of downloaded archives still on disk.
	Archives []string
	// BrandPath is where the logo was installed, empty when none was.
	BrandPath string
	// Chowned reports whether ownership was changed.
	Chowned bool
}

// stage names are prefixed to errors so the terminal shows where a run stopped.
const (
	stageConfig    = "configuration"
	stageVersion   = "version"
	stagePreflight = "preflight"
	stageDownload  = "download"
	stageExtract   = "extract"
	stageBrand     = "brand logo"
	stageOwnership = "change ownership"
)

// withStage wraps err with the stage name.
func withStage(stage string, err error) error {
	if err == nil {
		return nil
	}

	return &StageError{Stage: stage, Err: err}
}

// StageError records the pipeline stage where a run failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage name carried by err, or "" when there is none.
func StageOf(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}

	return ""
}

// contextDone reports whether ctx has been cancelled or timed out.
func contextDone(ctx context.Context) bool {
	return ctx.Err() != nil
}
