package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/oshokin/axget/internal/archive"
	"github.com/oshokin/axget/internal/config"
	"github.com/oshokin/axget/internal/domain/release"
	"github.com/oshokin/axget/internal/logger"
	"github.com/oshokin/axget/internal/ownership"
	"github.com/oshokin/axget/internal/service/common"
)

// runner holds the state of a single fetch.
// It is unexported; callers use Run.
type runner struct {
	opts      *Options
	cfg       *config.Config
	plan      *release.Plan
	client    *http.Client
	changer   ownership.Changer
	outputDir string
	logo      *brandLogo
	// archives maps an artifact filename to its downloaded path.
	archives map[string]string
}

// Run executes the whole pipeline and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	if opts == nil {
		return nil, errOptionsNotSet
	}

	ctx = logger.WithName(ctx, "axget")

	r, err := newRunner(ctx, opts)
	if err != nil {
		logger.ErrorKV(ctx, "Fetch failed", "stage", StageOf(err), "error", err)
		return nil, err
	}

	ctx = logger.WithKV(ctx, "version", r.plan.Version.String(), "mode", r.plan.Mode.String())

	result, err := r.Run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Fetch failed", "stage", StageOf(err), "error", err)
		return result, err
	}

	logger.InfoKV(ctx, "Fetch completed", "release", result.ReleaseDir)

	return result, nil
}

// newRunner loads settings, parses the version and resolves the release plan.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, withStage(stageConfig, err)
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	} else {
		return nil, withStage(stageConfig,
			fmt.Errorf("%w: %w: %q", release.ErrInvalidInput, errLogLevelNotKnown, cfg.LogLevel))
	}

	version, err := parseVersionArgs(opts.VersionArgs)
	if err != nil {
		return nil, withStage(stageVersion, err)
	}

	plan, err := release.Resolve(version, release.ModeFromFlag(opts.Source), cfg.URLs)
	if err != nil {
		return nil, withStage(stageVersion, err)
	}

	r := &runner{
		opts:     opts,
		cfg:      cfg,
		plan:     plan,
		client:   opts.HTTPClient,
		changer:  opts.Changer,
		archives: make(map[string]string, len(plan.Artifacts)),
	}

	if r.client == nil {
		r.client = newHTTPClient(cfg)
	}

	if r.changer == nil {
		goos := opts.GOOS
		if goos == "" {
			goos = runtime.GOOS
		}

		r.changer = ownership.New(goos, cfg.Owner, cfg.Group)
	}

	logger.DebugKV(ctx, "Resolved release plan",
		"folder", plan.Folder, "archives", plan.Archives(), "url", plan.PrimaryURL())

	return r, nil
}

// loadConfig reads the settings file and applies command-line overrides.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}

	if opts.BrandFile != "" {
		cfg.BrandFile = opts.BrandFile
	}

	if opts.Owner != "" {
		cfg.Owner = opts.Owner
		// An owner override without a group override implies the owner's group.
		if opts.Group == "" {
			cfg.Group = ""
		}
	}

	if opts.Group != "" {
		cfg.Group = opts.Group
	}

	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	if err = config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", release.ErrInvalidInput, err)
	}

	return cfg, nil
}

// parseVersionArgs accepts "<major> <minor> <patch>" or "<major.minor.patch>".
func parseVersionArgs(args []string) (release.Version, error) {
	switch len(args) {
	case 1:
		return release.ParseVersion(args[0])
	case 3:
		return release.ParseTriple(args[0], args[1], args[2])
	default:
		return release.Version{}, fmt.Errorf("%w: %w: got %q",
			release.ErrInvalidVersion, errBadVersionArgs, strings.Join(args, " "))
	}
}

// Run executes the pipeline stages in order.
func (r *runner) Run(ctx context.Context) (*Result, error) {
	if err := r.preflight(ctx); err != nil {
		return nil, withStage(stagePreflight, err)
	}

	if err := r.downloadAll(ctx); err != nil {
		return nil, withStage(stageDownload, err)
	}

	result := &Result{
		ReleaseDir: filepath.Join(r.outputDir, r.plan.Folder),
	}

	if err := r.extractAll(ctx, result); err != nil {
		return result, withStage(stageExtract, err)
	}

	if err := r.installBrand(ctx, result); err != nil {
		return result, withStage(stageBrand, err)
	}

	if err := r.changeOwnership(ctx, result); err != nil {
		return result, withStage(stageOwnership, err)
	}

	r.printNextSteps(ctx, result)

	return result, nil
}

// preflight validates the output directory and the brand logo before any network traffic.
func (r *runner) preflight(ctx context.Context) error {
	outputDir, err := filepath.Abs(r.cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("%w: %w", release.ErrDirectory, err)
	}

	info, err := os.Stat(outputDir)

	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: directory %s does not exist", release.ErrDirectory, outputDir)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: no permission to access %s: %w", release.ErrPermission, outputDir, err)
	case err != nil:
		return fmt.Errorf("%w: %w", release.ErrDirectory, err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s is not a directory", release.ErrInvalidPathType, outputDir)
	}

	r.outputDir = outputDir

	if r.logo, err = resolveBrandLogo(outputDir, r.cfg.BrandFile); err != nil {
		return err
	}

	releaseDir := filepath.Join(outputDir, r.plan.Folder)
	if _, err = os.Lstat(releaseDir); err == nil && r.opts.NoClobber {
		return fmt.Errorf("%w: %s", release.ErrAlreadyExists, releaseDir)
	}

	r.warnAboutHost(ctx)

	return nil
}

// warnAboutHost logs conditions that do not stop the run but often surprise operators.
func (r *runner) warnAboutHost(ctx context.Context) {
	if actor, err := common.DetectActor(); err == nil {
		logger.DebugKV(ctx, "Running as", "user", actor.Username, "host", actor.Hostname)

		if r.changer.Supported() && !actor.IsPrivileged() && actor.Username != r.cfg.Owner {
			logger.WarnKV(ctx, "Changing ownership usually requires root privileges",
				"user", actor.Username, "owner", r.cfg.Owner)
		}
	}

	running, err := common.FindProcesses(r.opts.ProcessLister, r.cfg.ServletProcesses)
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)
		return
	}

	for _, process := range running {
		logger.WarnKV(ctx, "A servlet container is running; deploy the new release after stopping it",
			"process", process.Executable, "pid", process.PID)
	}
}

// downloadAll fetches every artifact before anything is extracted, so a
// failed download never leaves a partial release folder behind.
func (r *runner) downloadAll(ctx context.Context) error {
	for _, artifact := range r.plan.Artifacts {
		path, err := r.downloadArtifact(ctx, artifact)
		if err != nil {
			return err
		}

		r.archives[artifact.Filename] = path
	}

	return nil
}

// extractAll unpacks every archive into a staging folder next to the release
// folder and swaps it in only once all of them extracted cleanly, so a bad
// archive never costs the previous release. A failed staging folder is left for inspection.
func (r *runner) extractAll(ctx context.Context, result *Result) error {
	staging := result.ReleaseDir + stagingSuffix

	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("remove stale staging folder: %w", err)
	}

	for _, artifact := range r.plan.Artifacts {
		archivePath := r.archives[artifact.Filename]
		dest := filepath.Join(staging, filepath.FromSlash(artifact.Subdir))

		logger.InfoKV(ctx, "Extracting archive", "archive", archivePath, "destination", dest)

		extracted, err := archive.Extract(ctx, archivePath, dest, archive.Options{StripSingleRoot: artifact.StripRoot})
		if err != nil {
			return fmt.Errorf("%s: %w: %w", filepath.Base(archivePath), release.ErrExtraction, err)
		}

		logger.DebugKV(ctx, "Extracted archive",
			"format", extracted.Format.String(), "files", extracted.Files, "stripped", extracted.Stripped)
	}

	if _, err := os.Lstat(result.ReleaseDir); err == nil {
		logger.InfoKV(ctx, "Replacing existing release folder", "path", result.ReleaseDir)

		if err = os.RemoveAll(result.ReleaseDir); err != nil {
			return fmt.Errorf("remove previous release: %w", err)
		}
	}

	if err := os.Rename(staging, result.ReleaseDir); err != nil {
		return fmt.Errorf("move release into place: %w", err)
	}

	for _, artifact := range r.plan.Artifacts {
		archivePath := r.archives[artifact.Filename]

		if r.opts.KeepArchive {
			result.Archives = append(result.Archives, archivePath)
			continue
		}

		if err := os.Remove(archivePath); err != nil {
			logger.WarnKV(ctx, "Unable to remove downloaded archive", "path", archivePath, "error", err)
			result.Archives = append(result.Archives, archivePath)
		}
	}

	return nil
}

// installBrand copies the validated logo into the release.
func (r *runner) installBrand(ctx context.Context, result *Result) error {
	if r.logo == nil {
		return nil
	}

	target := filepath.Join(result.ReleaseDir, filepath.FromSlash(r.plan.BrandPath(r.logo.name)))

	if err := installBrandLogo(r.logo, target); err != nil {
		return err
	}

	result.BrandPath = target

	logger.InfoKV(ctx, "Installed brand logo", "path", target)

	return nil
}

// changeOwnership hands the release over to the service account.
func (r *runner) changeOwnership(ctx context.Context, result *Result) error {
	if !r.changer.Supported() {
		logger.Debug(ctx, "Ownership is not supported on this platform, skipping")
		return nil
	}

	logger.InfoKV(ctx, "Changing ownership", "path", result.ReleaseDir, "owner", r.cfg.Owner, "group", r.cfg.Group)

	err := r.changer.Chown(ctx, result.ReleaseDir)

	switch {
	case err == nil:
		result.Chowned = true
		return nil
	case errors.Is(err, ownership.ErrUnknownAccount):
		logger.WarnKV(ctx, "Service account not found, downloaded content cannot be chowned",
			"owner", r.cfg.Owner, "group", r.cfg.Group, "error", err)

		return nil
	case errors.Is(err, ownership.ErrPermission):
		return fmt.Errorf("%w: %w", release.ErrPermission, err)
	default:
		return err
	}
}
