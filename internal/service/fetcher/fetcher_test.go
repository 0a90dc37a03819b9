package fetcher

import (
	"bytes"
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/axget/internal/config"
	"github.com/oshokin/axget/internal/domain/release"
	"github.com/oshokin/axget/internal/ownership"
)

// upstream serves fixed bodies by path and counts requests.
type upstream struct {
	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
}

func newUpstream(t *testing.T, files map[string][]byte) (*upstream, *httptest.Server) {
	t.Helper()

	u := &upstream{files: files, hits: make(map[string]int)}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.hits[r.URL.Path]++
		body, ok := u.files[r.URL.Path]
		u.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)

	return u, server
}

func (u *upstream) hitCount(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.hits[path]
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)

	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)

		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())

	return buf.Bytes()
}

// testOptions writes a settings file pointing every template at server.
func testOptions(t *testing.T, server *httptest.Server, outputDir string, args ...string) *Options {
	t.Helper()

	settingsPath := filepath.Join(t.TempDir(), "settings.yaml")

	require.NoError(t, config.Save(settingsPath, &config.Config{
		OutputDir: outputDir,
		URLs: release.Templates{
			SuiteWAR:     server.URL + "/suite/v{version}/axelor-erp-v{version}.war",
			WebappWAR:    server.URL + "/webapp/v{version}/axelor-erp-v{version}.war",
			SuiteSource:  server.URL + "/suite/archive/v{version}.zip",
			WebappSource: server.URL + "/webapp/archive/v{version}.zip",
		},
	}))

	if len(args) == 0 {
		args = []string{"8", "1", "4"}
	}

	return &Options{
		ConfigPath:  settingsPath,
		VersionArgs: args,
		HTTPClient:  server.Client(),
		GOOS:        "windows",
		ProcessLister: func() ([]ps.Process, error) {
			return nil, nil
		},
	}
}

// requireTree compares every regular file under root with want, keyed by slash path.
func requireTree(t *testing.T, root string, want map[string]string) {
	t.Helper()

	got := make(map[string]string, len(want))

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		got[filepath.ToSlash(rel)] = string(body)

		return nil
	})
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func fakeAccounts(userName, groupName string) (ownership.Account, error) {
	return ownership.Account{User: userName, Group: groupName, UID: 91, GID: 91}, nil
}

var warFiles = map[string]string{
	"WEB-INF/web.xml":                        "<web-app/>",
	"WEB-INF/classes/application.properties": "db.default.url=jdbc:postgresql://localhost:5432/axelor",
	"index.html":                             "<html>axelor</html>",
}

func TestRun_WARExtractsByteForByte(t *testing.T) {
	t.Parallel()

	war := zipBytes(t, warFiles)
	_, server := newUpstream(t, map[string][]byte{"/suite/v8.1.4/axelor-erp-v8.1.4.war": war})

	outputDir := t.TempDir()

	result, err := Run(context.Background(), testOptions(t, server, outputDir))
	require.NoError(t, err)

	releaseDir := filepath.Join(outputDir, "axelor-v8.1.4")
	require.Equal(t, releaseDir, result.ReleaseDir)
	require.False(t, result.Chowned)
	require.Empty(t, result.Archives)
	require.Empty(t, result.BrandPath)

	requireTree(t, releaseDir, warFiles)

	require.NoFileExists(t, filepath.Join(outputDir, "axelor-erp-v8.1.4.war"))
	require.NoDirExists(t, releaseDir+stagingSuffix)
}

func TestRun_WARFallsBackToWebapp(t *testing.T) {
	t.Parallel()

	war := zipBytes(t, warFiles)
	u, server := newUpstream(t, map[string][]byte{"/webapp/v8.1.4/axelor-erp-v8.1.4.war": war})

	outputDir := t.TempDir()

	opts := testOptions(t, server, outputDir, "8.1.4")
	opts.KeepArchive = true

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)

	require.Equal(t, 1, u.hitCount("/suite/v8.1.4/axelor-erp-v8.1.4.war"))
	require.Equal(t, 1, u.hitCount("/webapp/v8.1.4/axelor-erp-v8.1.4.war"))

	archivePath := filepath.Join(outputDir, "axelor-erp-v8.1.4.war")
	require.Equal(t, []string{archivePath}, result.Archives)

	contents, err := os.ReadFile(archivePath)
	require.NoError(t, err)
	require.Equal(t, war, contents)
}

func TestRun_NotFoundLeavesNothing(t *testing.T) {
	t.Parallel()

	_, server := newUpstream(t, nil)

	outputDir := t.TempDir()

	_, err := Run(context.Background(), testOptions(t, server, outputDir))
	require.ErrorIs(t, err, release.ErrNetwork)
	require.ErrorIs(t, err, errBadHTTPStatus)
	require.Equal(t, stageDownload, StageOf(err))
	require.Equal(t, release.ExitNetwork, release.ExitCode(err))

	require.NoDirExists(t, filepath.Join(outputDir, "axelor-v8.1.4"))
	require.NoFileExists(t, filepath.Join(outputDir, "axelor-erp-v8.1.4.war"))
}

func TestRun_SourceNestsSuite(t *testing.T) {
	t.Parallel()

	webapp := zipBytes(t, map[string]string{
		"open-suite-webapp-8.1.4/settings.gradle":                           "rootProject.name = 'open-suite-webapp'",
		"open-suite-webapp-8.1.4/src/main/resources/application.properties": "application.logo = img/axelor.png",
	})
	suite := zipBytes(t, map[string]string{
		"axelor-open-suite-8.1.4/axelor-base/build.gradle": "apply plugin: 'com.axelor.app-module'",
	})

	_, server := newUpstream(t, map[string][]byte{
		"/webapp/archive/v8.1.4.zip": webapp,
		"/suite/archive/v8.1.4.zip":  suite,
	})

	outputDir := t.TempDir()

	opts := testOptions(t, server, outputDir)
	opts.Source = true

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)

	releaseDir := filepath.Join(outputDir, "axelor-v8.1.4-src")
	require.Equal(t, releaseDir, result.ReleaseDir)

	require.FileExists(t, filepath.Join(releaseDir, "settings.gradle"))
	require.FileExists(t, filepath.Join(releaseDir, "src", "main", "resources", "application.properties"))

	contents, err := os.ReadFile(filepath.Join(releaseDir, "modules", "axelor-open-suite", "axelor-base", "build.gradle"))
	require.NoError(t, err)
	require.Equal(t, "apply plugin: 'com.axelor.app-module'", string(contents))

	require.NoFileExists(t, filepath.Join(outputDir, "open-suite-webapp-v8.1.4-src.zip"))
	require.NoFileExists(t, filepath.Join(outputDir, "axelor-open-suite-v8.1.4-src.zip"))
}

func TestRun_OwnershipWithoutPrivilege(t *testing.T) {
	t.Parallel()

	_, server := newUpstream(t, map[string][]byte{"/suite/v8.1.4/axelor-erp-v8.1.4.war": zipBytes(t, warFiles)})

	outputDir := t.TempDir()

	opts := testOptions(t, server, outputDir)
	opts.Changer = ownership.New("linux", "tomcat", "tomcat",
		ownership.WithLookup(fakeAccounts),
		ownership.WithLchown(func(string, int, int) error {
			return fs.ErrPermission
		}),
	)

	_, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, release.ErrPermission)
	require.Equal(t, stageOwnership, StageOf(err))
	require.Equal(t, release.ExitPermission, release.ExitCode(err))

	require.FileExists(t, filepath.Join(outputDir, "axelor-v8.1.4", "WEB-INF", "web.xml"))
	require.FileExists(t, filepath.Join(outputDir, "axelor-v8.1.4", "index.html"))
}

func TestRun_OwnershipChangesEveryPath(t *testing.T) {
	t.Parallel()

	_, server := newUpstream(t, map[string][]byte{"/suite/v8.1.4/axelor-erp-v8.1.4.war": zipBytes(t, warFiles)})

	outputDir := t.TempDir()

	var (
		mu      sync.Mutex
		changed []string
	)

	opts := testOptions(t, server, outputDir)
	opts.Changer = ownership.New("linux", "tomcat", "tomcat",
		ownership.WithLookup(fakeAccounts),
		ownership.WithLchown(func(name string, uid, gid int) error {
			require.Equal(t, 91, uid)
			require.Equal(t, 91, gid)

			mu.Lock()
			changed = append(changed, name)
			mu.Unlock()

			return nil
		}),
	)

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.True(t, result.Chowned)

	releaseDir := filepath.Join(outputDir, "axelor-v8.1.4")
	require.Contains(t, changed, releaseDir)
	require.Contains(t, changed, filepath.Join(releaseDir, "index.html"))
	require.Contains(t, changed, filepath.Join(releaseDir, "WEB-INF", "classes", "application.properties"))
}

func TestRun_UnknownAccountIsSkipped(t *testing.T) {
	t.Parallel()

	_, server := newUpstream(t, map[string][]byte{"/suite/v8.1.4/axelor-erp-v8.1.4.war": zipBytes(t, warFiles)})

	opts := testOptions(t, server, t.TempDir())
	opts.Changer = ownership.New("linux", "tomcat", "tomcat",
		ownership.WithLookup(func(string, string) (ownership.Account, error) {
			return ownership.Account{}, ownership.ErrUnknownAccount
		}),
	)

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.False(t, result.Chowned)
}

func TestRun_ExistingReleaseFolder(t *testing.T) {
	t.Parallel()

	_, server := newUpstream(t, map[string][]byte{"/suite/v8.1.4/axelor-erp-v8.1.4.war": zipBytes(t, warFiles)})

	outputDir := t.TempDir()
	releaseDir := filepath.Join(outputDir, "axelor-v8.1.4")
	stale := filepath.Join(releaseDir, "stale.txt")

	require.NoError(t, os.MkdirAll(releaseDir, 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	opts := testOptions(t, server, outputDir)
	opts.NoClobber = true

	_, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, release.ErrAlreadyExists)
	require.Equal(t, release.ExitAlreadyExists, release.ExitCode(err))
	require.FileExists(t, stale)

	opts.NoClobber = false

	_, err = Run(context.Background(), opts)
	require.NoError(t, err)
	require.NoFileExists(t, stale)
	require.NoDirExists(t, releaseDir+stagingSuffix)
	requireTree(t, releaseDir, warFiles)
}

func TestRun_CorruptArchiveKeepsPreviousRelease(t *testing.T) {
	t.Parallel()

	_, server := newUpstream(t, map[string][]byte{"/suite/v8.1.4/axelor-erp-v8.1.4.war": []byte("not a zip")})

	outputDir := t.TempDir()
	releaseDir := filepath.Join(outputDir, "axelor-v8.1.4")
	deployed := filepath.Join(releaseDir, "WEB-INF", "web.xml")

	require.NoError(t, os.MkdirAll(filepath.Dir(deployed), 0o755))
	require.NoError(t, os.WriteFile(deployed, []byte("<web-app version=\"previous\"/>"), 0o600))

	_, err := Run(context.Background(), testOptions(t, server, outputDir))
	require.ErrorIs(t, err, release.ErrExtraction)

	contents, err := os.ReadFile(deployed)
	require.NoError(t, err)
	require.Equal(t, "<web-app version=\"previous\"/>", string(contents))
}

func TestRun_InstallsBrandLogo(t *testing.T) {
	t.Parallel()

	_, server := newUpstream(t, map[string][]byte{"/suite/v8.1.4/axelor-erp-v8.1.4.war": zipBytes(t, warFiles)})

	outputDir := t.TempDir()
	logo := []byte("\x89PNG\r\n\x1a\nlogo")

	require.NoError(t, os.WriteFile(filepath.Join(outputDir, config.DefaultBrandFile), logo, 0o600))

	result, err := Run(context.Background(), testOptions(t, server, outputDir))
	require.NoError(t, err)

	target := filepath.Join(outputDir, "axelor-v8.1.4", "img", config.DefaultBrandFile)
	require.Equal(t, target, result.BrandPath)

	contents, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, logo, contents)

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRun_InputErrors(t *testing.T) {
	t.Parallel()

	_, server := newUpstream(t, nil)

	tests := []struct {
		name   string
		mutate func(t *testing.T, opts *Options)
		want   error
		code   int
	}{
		{
			name:   "non-numeric component",
			mutate: func(_ *testing.T, opts *Options) { opts.VersionArgs = []string{"8", "x", "4"} },
			want:   release.ErrInvalidVersion,
			code:   release.ExitInvalidInput,
		},
		{
			name:   "two components",
			mutate: func(_ *testing.T, opts *Options) { opts.VersionArgs = []string{"8", "1"} },
			want:   errBadVersionArgs,
			code:   release.ExitInvalidInput,
		},
		{
			name:   "missing output directory",
			mutate: func(t *testing.T, opts *Options) { opts.OutputDir = filepath.Join(t.TempDir(), "missing") },
			want:   release.ErrDirectory,
			code:   release.ExitDirectory,
		},
		{
			name:   "missing explicit brand file",
			mutate: func(_ *testing.T, opts *Options) { opts.BrandFile = "company.png" },
			want:   release.ErrInvalidInput,
			code:   release.ExitInvalidInput,
		},
		{
			name: "brand file is a directory",
			mutate: func(t *testing.T, opts *Options) {
				opts.BrandFile = t.TempDir()
			},
			want: release.ErrInvalidPathType,
			code: release.ExitInvalidType,
		},
		{
			name:   "unknown log level",
			mutate: func(_ *testing.T, opts *Options) { opts.LogLevel = "verbose" },
			want:   errLogLevelNotKnown,
			code:   release.ExitInvalidInput,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := testOptions(t, server, t.TempDir())
			tt.mutate(t, opts)

			_, err := Run(context.Background(), opts)
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, tt.code, release.ExitCode(err))
		})
	}
}

func TestRun_CorruptArchive(t *testing.T) {
	t.Parallel()

	_, server := newUpstream(t, map[string][]byte{"/suite/v8.1.4/axelor-erp-v8.1.4.war": []byte("<html>not found</html>")})

	_, err := Run(context.Background(), testOptions(t, server, t.TempDir()))
	require.ErrorIs(t, err, release.ErrExtraction)
	require.Equal(t, stageExtract, StageOf(err))
	require.Equal(t, release.ExitExtraction, release.ExitCode(err))
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	_, server := newUpstream(t, map[string][]byte{"/suite/v8.1.4/axelor-erp-v8.1.4.war": zipBytes(t, warFiles)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outputDir := t.TempDir()

	_, err := Run(ctx, testOptions(t, server, outputDir))
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, release.ErrNetwork)
	require.NoDirExists(t, filepath.Join(outputDir, "axelor-v8.1.4"))
}

func TestParseVersionArgs(t *testing.T) {
	t.Parallel()

	v, err := parseVersionArgs([]string{"7", "2", "3"})
	require.NoError(t, err)
	require.Equal(t, "7.2.3", v.String())

	v, err = parseVersionArgs([]string{"7.2.3"})
	require.NoError(t, err)
	require.Equal(t, "7.2.3", v.String())

	_, err = parseVersionArgs(nil)
	require.ErrorIs(t, err, release.ErrInvalidVersion)
}

func TestRun_NilOptions(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), nil)
	require.ErrorIs(t, err, errOptionsNotSet)
}
