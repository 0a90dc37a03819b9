package fetcher

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/oshokin/axget/internal/domain/release"
	"github.com/oshokin/axget/internal/logger"
)

// printNextSteps logs what the operator still has to do by hand.
func (r *runner) printNextSteps(ctx context.Context, result *Result) {
	propertiesPath := filepath.Join(result.ReleaseDir, filepath.FromSlash(r.plan.PropertiesPath))

	var builder strings.Builder

	if result.BrandPath != "" {
		builder.WriteString("A personalized logo has been copied to ")
		builder.WriteString(result.BrandPath)
		builder.WriteString(".\nEdit the \"application.logo\" entry in ")
		builder.WriteString(propertiesPath)
		builder.WriteString(" to apply it: the default value \"img/axelor.png\" becomes \"img/")
		builder.WriteString(filepath.Base(result.BrandPath))
		builder.WriteString("\".\n\n")
	}

	builder.WriteString("Axelor needs database settings before it can start. Edit ")
	builder.WriteString(propertiesPath)
	builder.WriteString(" and enter the database name and the account that owns it.\n")
	builder.WriteString("axget does not create the database. Do not reuse a database of a previous Axelor version; ")
	builder.WriteString("use the built-in backup and restore feature to carry data over.\n")
	builder.WriteString("Naming the database after the version, for example axelor-")
	builder.WriteString(r.plan.Version.String())
	builder.WriteString(", makes reverting to a previous version painless.")

	if r.plan.Mode == release.ModeWAR {
		builder.WriteString("\n\nRename ")
		builder.WriteString(r.plan.Folder)
		builder.WriteString(" to \"ROOT\" to serve Axelor without the folder name in the URL.")
	}

	logger.Info(ctx, builder.String())
}
