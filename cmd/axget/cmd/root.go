package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/axget/internal/config"
	"github.com/oshokin/axget/internal/domain/release"
	"github.com/oshokin/axget/internal/logger"
	"github.com/oshokin/axget/internal/service/fetcher"
	"github.com/oshokin/axget/internal/version"
)

// flags holds the values bound to the root command.
type flags struct {
	configPath  string
	source      bool
	outputDir   string
	brandFile   string
	owner       string
	group       string
	logLevel    string
	noClobber   bool
	keepArchive bool
}

// newRootCmd builds the axget command. Tests build their own instance.
func newRootCmd() *cobra.Command {
	f := new(flags)

	rootCmd := &cobra.Command{
		Use:   "axget [flags] <major> <minor> <patch> | <major.minor.patch>",
		Short: "Download and unpack an Axelor Open Suite release",
		Long: "axget downloads the Axelor Open Suite WAR (or, with --src, the webapp and suite sources),\n" +
			"extracts it into axelor-vX.Y.Z[-src] and hands the tree over to the servlet container account.",
		Example: "  axget 8 1 4\n  axget --src -o /opt/axelor 8.1.4\n  sudo axget -o /var/lib/tomcat9/webapps --owner tomcat9 8.1.4",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 && len(args) != 3 {
				return fmt.Errorf("%w: accepts 1 or 3 arg(s), received %d", release.ErrInvalidVersion, len(args))
			}

			return nil
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &fetcher.Options{
				ConfigPath:  f.configPath,
				VersionArgs: args,
				Source:      f.source,
				OutputDir:   f.outputDir,
				BrandFile:   f.brandFile,
				Owner:       f.owner,
				Group:       f.group,
				LogLevel:    f.logLevel,
				NoClobber:   f.noClobber,
				KeepArchive: f.keepArchive,
			}

			_, err := fetcher.Run(ctx, options)

			return err
		},
	}

	flagSet := rootCmd.Flags()
	flagSet.StringVarP(&f.configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flagSet.BoolVarP(&f.source, "src", "s", false, "download the source code instead of the WAR")
	flagSet.StringVarP(&f.outputDir, "out", "o", "", "output directory (default from configuration, else the current directory)")
	flagSet.StringVarP(&f.brandFile, "brand-file", "b", "",
		"logo copied into the release, relative to the output directory (default "+config.DefaultBrandFile+" when present)")
	flagSet.StringVar(&f.owner, "owner", "", "account receiving ownership of the release (default "+config.DefaultOwner+")")
	flagSet.StringVar(&f.group, "group", "", "group receiving ownership of the release (default: the owner)")
	flagSet.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.BoolVar(&f.noClobber, "no-clobber", false, "fail instead of replacing an existing release folder")
	flagSet.BoolVar(&f.keepArchive, "keep-archive", false, "keep downloaded archives after extraction")

	version.AttachCobraVersionCommand(rootCmd)

	return rootCmd
}

// Execute runs the axget CLI and exits with a status describing the failure.
func Execute() {
	rootCmd := newRootCmd()

	err := rootCmd.ExecuteContext(context.Background())

	//nolint:errcheck // Sync on a terminal returns EINVAL on some platforms.
	logger.Logger().Sync()

	if err != nil {
		os.Exit(release.ExitCode(err))
	}
}
