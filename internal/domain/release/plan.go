package release

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// VersionPlaceholder is substituted with "major.minor.patch" in URL templates.
const VersionPlaceholder = "{version}"

const (
	// DefaultSuiteWARTemplate points at the WAR published with the Open Suite releases.
	DefaultSuiteWARTemplate = "https://github.com/axelor/axelor-open-suite/releases/download/v{version}/axelor-erp-v{version}.war"
	// DefaultWebappWARTemplate is tried when the Open Suite release has no WAR attached.
	DefaultWebappWARTemplate = "https://github.com/axelor/open-suite-webapp/releases/download/v{version}/axelor-erp-v{version}.war"
	// DefaultSuiteSourceTemplate is the Open Suite source snapshot for a tag.
	DefaultSuiteSourceTemplate = "https://github.com/axelor/axelor-open-suite/archive/refs/tags/v{version}.zip"
	// DefaultWebappSourceTemplate is the Open Suite webapp source snapshot for a tag.
	DefaultWebappSourceTemplate = "https://github.com/axelor/open-suite-webapp/archive/refs/tags/v{version}.zip"
)

// Sub-paths inside an extracted release folder.
const (
	suiteModuleDir = "modules/axelor-open-suite"

	warPropertiesPath    = "WEB-INF/classes/application.properties"
	sourcePropertiesPath = "src/main/resources/application.properties"
	warImageDir          = "img"
	sourceImageDir       = "src/main/webapp/img"
)

var errMissingPlaceholder = errors.New("template must contain " + VersionPlaceholder)

// Templates holds the URL templates for every artifact.
type Templates struct {
	// SuiteWAR is the first WAR location tried.
	SuiteWAR string `yaml:"suite_war"`
	// WebappWAR is the WAR fallback location.
	WebappWAR string `yaml:"webapp_war"`
	// SuiteSource is the Open Suite source archive.
	SuiteSource string `yaml:"suite_source"`
	// WebappSource is the webapp source archive; the suite is nested inside it.
	WebappSource string `yaml:"webapp_source"`
}

// DefaultTemplates returns the upstream GitHub locations.
func DefaultTemplates() Templates {
	return Templates{
		SuiteWAR:     DefaultSuiteWARTemplate,
		WebappWAR:    DefaultWebappWARTemplate,
		SuiteSource:  DefaultSuiteSourceTemplate,
		WebappSource: DefaultWebappSourceTemplate,
	}
}

// WithDefaults fills empty templates from DefaultTemplates.
func (t Templates) WithDefaults() Templates {
	d := DefaultTemplates()

	if t.SuiteWAR == "" {
		t.SuiteWAR = d.SuiteWAR
	}

	if t.WebappWAR == "" {
		t.WebappWAR = d.WebappWAR
	}

	if t.SuiteSource == "" {
		t.SuiteSource = d.SuiteSource
	}

	if t.WebappSource == "" {
		t.WebappSource = d.WebappSource
	}

	return t
}

// Validate checks that every non-empty template is an http(s) URL with a version placeholder.
func (t Templates) Validate() error {
	for name, tmpl := range map[string]string{
		"suite_war":     t.SuiteWAR,
		"webapp_war":    t.WebappWAR,
		"suite_source":  t.SuiteSource,
		"webapp_source": t.WebappSource,
	} {
		if tmpl == "" {
			continue
		}

		if !strings.Contains(tmpl, VersionPlaceholder) {
			return fmt.Errorf("url template %s: %w", name, errMissingPlaceholder)
		}

		u, err := url.Parse(strings.ReplaceAll(tmpl, VersionPlaceholder, "0.0.0"))
		if err != nil {
			return fmt.Errorf("url template %s: %w", name, err)
		}

		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("url template %s: scheme %q is not http(s)", name, u.Scheme)
		}
	}

	return nil
}

// Expand substitutes the version into a template.
func Expand(template string, v Version) string {
	return strings.ReplaceAll(template, VersionPlaceholder, v.String())
}

// Artifact is one archive to download and extract.
type Artifact struct {
	// Name is a human-readable label used in logs.
	Name string
	// URLs are tried in order; the first successful response wins.
	URLs []string
	// Filename is the local archive name, unique per version and mode.
	Filename string
	// Subdir is where the archive is extracted, relative to the release folder.
	Subdir string
	// StripRoot drops the single top-level folder of tag snapshots.
	StripRoot bool
}

// Plan describes everything a single run produces for a version and mode.
type Plan struct {
	Version Version
	Mode    Mode
	// Folder is the release folder name created in the output directory.
	Folder string
	// Artifacts are downloaded and extracted in order.
	Artifacts []Artifact
	// PropertiesPath locates application.properties inside Folder.
	PropertiesPath string
	// ImageDir is where a brand logo goes inside Folder.
	ImageDir string
}

// Resolve builds the plan for v and m from the templates.
func Resolve(v Version, m Mode, t Templates) (*Plan, error) {
	if v.IsZero() {
		return nil, fmt.Errorf("%w: version is not set", ErrInvalidVersion)
	}

	t = t.WithDefaults()
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	ver := v.String()

	if m == ModeSource {
		return &Plan{
			Version: v,
			Mode:    m,
			Folder:  "axelor-v" + ver + "-src",
			Artifacts: []Artifact{
				{
					Name:      "open-suite-webapp",
					URLs:      []string{Expand(t.WebappSource, v)},
					Filename:  "open-suite-webapp-v" + ver + "-src.zip",
					Subdir:    ".",
					StripRoot: true,
				},
				{
					Name:      "axelor-open-suite",
					URLs:      []string{Expand(t.SuiteSource, v)},
					Filename:  "axelor-open-suite-v" + ver + "-src.zip",
					Subdir:    suiteModuleDir,
					StripRoot: true,
				},
			},
			PropertiesPath: sourcePropertiesPath,
			ImageDir:       sourceImageDir,
		}, nil
	}

	return &Plan{
		Version: v,
		Mode:    m,
		Folder:  "axelor-v" + ver,
		Artifacts: []Artifact{
			{
				Name:     "axelor-erp",
				URLs:     []string{Expand(t.SuiteWAR, v), Expand(t.WebappWAR, v)},
				Filename: "axelor-erp-v" + ver + ".war",
				Subdir:   ".",
			},
		},
		PropertiesPath: warPropertiesPath,
		ImageDir:       warImageDir,
	}, nil
}

// PrimaryURL returns the first URL of the first artifact.
func (p *Plan) PrimaryURL() string {
	if len(p.Artifacts) == 0 || len(p.Artifacts[0].URLs) == 0 {
		return ""
	}

	return p.Artifacts[0].URLs[0]
}

// Archives returns the local archive filenames in download order.
func (p *Plan) Archives() []string {
	names := make([]string, 0, len(p.Artifacts))
	for _, a := range p.Artifacts {
		names = append(names, a.Filename)
	}

	return names
}

// BrandPath returns the slash-separated logo destination inside Folder.
func (p *Plan) BrandPath(logoName string) string {
	return path.Join(p.ImageDir, path.Base(logoName))
}
